package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/and161185/lexes/internal/errs"
)

// errCode pairs an error with the numeric code clients switch on. Lists are
// matched in order, so specific sentinels go before the ones they wrap.
type errCode struct {
	err error
	no  int
}

var (
	signupCodes  = []errCode{{errs.ErrUsernameTaken, 3}}
	profileCodes = []errCode{
		{errs.ErrViewerNotFound, 2},
		{errs.ErrNotFound, 1},
	}
	updateCodes = []errCode{
		{errs.ErrBadToken, 2},
		{errs.ErrUsernameTaken, 3},
		{errs.ErrNotFound, 1},
	}
	loginCodes = []errCode{
		{errs.ErrWrongUsername, 1},
		{errs.ErrWrongPassword, 2},
		{errs.ErrRateLimited, 5},
	}
	logoutCodes = []errCode{{errs.ErrBadToken, 2}}
	followCodes = []errCode{
		{errs.ErrFollowerNotFound, 2},
		{errs.ErrFolloweeNotFound, 3},
		{errs.ErrBadToken, 4},
		{errs.ErrPersist, 1},
	}
	lexCodes = []errCode{
		{errs.ErrBadToken, 3},
		{errs.ErrNotFound, 2},
		{errs.ErrPersist, 1},
	}
)

type failure struct {
	Success bool   `json:"success"`
	ErrorNo int    `json:"error_no"`
	Status  string `json:"status"`
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func writeFailure(w http.ResponseWriter, status, no int, msg string) {
	writeJSON(w, status, failure{ErrorNo: no, Status: msg})
}

// fail maps a service error onto the status convention and the operation's codes.
// Only sentinel texts reach the client.
func fail(w http.ResponseWriter, err error, codes []errCode) {
	status, msg := statusOf(err)
	no := 0
	for _, c := range codes {
		if errors.Is(err, c.err) {
			no, msg = c.no, c.err.Error()
			break
		}
	}
	writeFailure(w, status, no, msg)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, errs.ErrValidation):
		return http.StatusBadRequest, errs.ErrValidation.Error()
	case errors.Is(err, errs.ErrRateLimited):
		return http.StatusTooManyRequests, errs.ErrRateLimited.Error()
	case errors.Is(err, errs.ErrUnauthorized):
		return http.StatusUnauthorized, errs.ErrUnauthorized.Error()
	case errors.Is(err, errs.ErrNotFound):
		return http.StatusNotFound, errs.ErrNotFound.Error()
	case errors.Is(err, errs.ErrAlreadyExists):
		return http.StatusConflict, errs.ErrAlreadyExists.Error()
	case errors.Is(err, errs.ErrUnavailable), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, errs.ErrUnavailable.Error()
	case errors.Is(err, errs.ErrPersist):
		return http.StatusInternalServerError, errs.ErrPersist.Error()
	default:
		return http.StatusInternalServerError, "internal"
	}
}
