package httpserver

import (
	"fmt"
	"strings"
	"time"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/gofrs/uuid/v5"
)

const dateLayout = "2006-01-02"

type signupRequest struct {
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Username  string  `json:"username"`
	Password  string  `json:"password"`
	Email     *string `json:"email,omitempty"`
	Birthday  *string `json:"birthday,omitempty"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type logoutRequest struct {
	AccountID string `json:"account_id"`
}

type updateRequest struct {
	Username    string  `json:"username"`
	FirstName   string  `json:"first_name"`
	LastName    string  `json:"last_name"`
	Email       *string `json:"email,omitempty"`
	Birthday    *string `json:"birthday,omitempty"`
	NewPassword *string `json:"new_password,omitempty"`
}

type followRequest struct {
	FollowerID string `json:"follower_id"`
	FolloweeID string `json:"followee_id"`
	Action     string `json:"action"`
}

type lexRequest struct {
	AccountID string `json:"account_id"`
	Content   string `json:"content"`
	Status    string `json:"status"`
}

type accountDTO struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Status    string    `json:"status"`
	Email     *string   `json:"email,omitempty"`
	Birthday  *string   `json:"birthday,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type summaryDTO struct {
	ID        string `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type followEntryDTO struct {
	summaryDTO
	Following bool `json:"following"`
}

type lexDTO struct {
	ID        string      `json:"id"`
	AccountID string      `json:"account_id"`
	Content   string      `json:"content"`
	Status    string      `json:"status"`
	PublishAt time.Time   `json:"publish_dt"`
	Author    *summaryDTO `json:"author,omitempty"`
}

type authResponse struct {
	Success   bool       `json:"success"`
	Account   accountDTO `json:"account"`
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expires_at"`
}

type profileResponse struct {
	Success   bool             `json:"success"`
	Account   accountDTO       `json:"account"`
	Following bool             `json:"following"`
	Lexes     []lexDTO         `json:"lexes"`
	Follows   []followEntryDTO `json:"follows"`
	Followers []followEntryDTO `json:"followers"`
}

func toAccountDTO(a model.Account) accountDTO {
	d := accountDTO{
		ID:        a.ID.String(),
		Username:  a.Username,
		FirstName: a.FirstName,
		LastName:  a.LastName,
		Status:    string(a.Status),
		Email:     a.Email,
		CreatedAt: a.CreatedAt,
	}
	if a.Birthday != nil {
		s := a.Birthday.Format(dateLayout)
		d.Birthday = &s
	}
	return d
}

func toSummaryDTO(s model.AccountSummary) summaryDTO {
	return summaryDTO{ID: s.ID.String(), Username: s.Username, FirstName: s.FirstName, LastName: s.LastName}
}

func toFollowEntries(in []model.FollowEntry) []followEntryDTO {
	out := make([]followEntryDTO, 0, len(in))
	for _, e := range in {
		out = append(out, followEntryDTO{summaryDTO: toSummaryDTO(e.Account), Following: e.Following})
	}
	return out
}

func toLexDTO(l model.Lex) lexDTO {
	return lexDTO{
		ID:        l.ID.String(),
		AccountID: l.AccountID.String(),
		Content:   l.Content,
		Status:    string(l.Status),
		PublishAt: l.PublishAt,
	}
}

func toLexViews(in []model.LexView) []lexDTO {
	out := make([]lexDTO, 0, len(in))
	for _, v := range in {
		d := toLexDTO(v.Lex)
		author := toSummaryDTO(v.Author)
		d.Author = &author
		out = append(out, d)
	}
	return out
}

func parseDate(s *string) (*time.Time, error) {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, strings.TrimSpace(*s))
	if err != nil {
		return nil, fmt.Errorf("%w: birthday must be YYYY-MM-DD", errs.ErrValidation)
	}
	return &t, nil
}

// parseID parses an account id. Empty and malformed ids are validation errors.
func parseID(s, field string) (uuid.UUID, error) {
	id, err := uuid.FromString(strings.TrimSpace(s))
	if err != nil || id == uuid.Nil {
		return uuid.Nil, fmt.Errorf("%w: bad %s", errs.ErrValidation, field)
	}
	return id, nil
}
