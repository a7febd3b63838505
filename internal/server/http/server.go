// Package httpserver exposes the lexes JSON API over chi.
package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/model"
	"github.com/and161185/lexes/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gofrs/uuid/v5"
	"go.uber.org/zap"
)

const maxBodyBytes = 1 << 20

// Pinger reports storage readiness.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server wires services into HTTP handlers.
type Server struct {
	accounts service.AccountService
	auth     service.AuthService
	follows  service.FollowService
	lexes    service.LexService
	db       Pinger
	log      *zap.Logger
}

// New constructs a server with injected services. db may be nil.
func New(accounts service.AccountService, auth service.AuthService, follows service.FollowService, lexes service.LexService, db Pinger, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	return &Server{accounts: accounts, auth: auth, follows: follows, lexes: lexes, db: db, log: log}
}

// Routes builds the router with the middleware chain.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		Logging(s.log),
		Recover(s.log),
		middleware.RequestSize(maxBodyBytes),
		Bearer,
	)

	r.Get("/healthz", s.healthz)
	r.Post("/login", s.login)
	r.Post("/logout", s.logout)
	r.Post("/follows", s.setFollow)
	r.Route("/accounts", func(r chi.Router) {
		r.Post("/", s.createAccount)
		r.Get("/unique", s.usernameUnique)
		r.Get("/{id}", s.profile)
		r.Put("/{id}", s.updateAccount)
		r.Get("/{id}/following", s.listFollowing)
		r.Get("/{id}/followers", s.listFollowers)
	})
	r.Route("/lexes", func(r chi.Router) {
		r.Post("/", s.postLex)
		r.Get("/", s.feed)
	})
	return r
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.ErrValidation
	}
	return nil
}

// --- Health ---

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if s.db != nil {
		if err := s.db.Ping(r.Context()); err != nil {
			s.log.Warn("healthz", zap.Error(err))
			fail(w, errs.ErrUnavailable, nil)
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Accounts ---

func (s *Server) createAccount(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, signupCodes)
		return
	}
	bday, err := parseDate(req.Birthday)
	if err != nil {
		fail(w, err, signupCodes)
		return
	}
	a, tok, err := s.accounts.Create(r.Context(), model.Signup{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Password:  req.Password,
		Email:     req.Email,
		Birthday:  bday,
	})
	if err != nil {
		s.logFailure("create account", err)
		fail(w, err, signupCodes)
		return
	}
	writeJSON(w, http.StatusCreated, authResponse{
		Success: true, Account: toAccountDTO(a), Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt,
	})
}

func (s *Server) usernameUnique(w http.ResponseWriter, r *http.Request) {
	free, err := s.accounts.UsernameUnique(r.Context(), r.URL.Query().Get("username"))
	if err != nil {
		s.logFailure("username unique", err)
		fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true, "unique": free})
}

func (s *Server) profile(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		fail(w, err, profileCodes)
		return
	}
	viewer := uuid.Nil
	if v := r.URL.Query().Get("viewer_id"); v != "" {
		if viewer, err = parseID(v, "viewer_id"); err != nil {
			fail(w, err, profileCodes)
			return
		}
	}
	p, err := s.accounts.Profile(r.Context(), id, viewer)
	if err != nil {
		s.logFailure("profile", err)
		fail(w, err, profileCodes)
		return
	}
	writeJSON(w, http.StatusOK, profileResponse{
		Success:   true,
		Account:   toAccountDTO(p.Account),
		Following: p.Following,
		Lexes:     toLexViews(p.Lexes),
		Follows:   toFollowEntries(p.Follows),
		Followers: toFollowEntries(p.Followers),
	})
}

func (s *Server) updateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		fail(w, err, updateCodes)
		return
	}
	var req updateRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, updateCodes)
		return
	}
	bday, err := parseDate(req.Birthday)
	if err != nil {
		fail(w, err, updateCodes)
		return
	}
	tok, _ := BearerFromCtx(r.Context())
	a, err := s.accounts.Update(r.Context(), id, tok, model.ProfileUpdate{
		Username:    req.Username,
		FirstName:   req.FirstName,
		LastName:    req.LastName,
		Email:       req.Email,
		Birthday:    bday,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		s.logFailure("update account", err)
		fail(w, err, updateCodes)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "account": toAccountDTO(a)})
}

func (s *Server) listFollowing(w http.ResponseWriter, r *http.Request) {
	s.listFollows(w, r, s.follows.ListFollowing)
}

func (s *Server) listFollowers(w http.ResponseWriter, r *http.Request) {
	s.listFollows(w, r, s.follows.ListFollowers)
}

func (s *Server) listFollows(w http.ResponseWriter, r *http.Request, list func(context.Context, uuid.UUID, uuid.UUID) ([]model.FollowEntry, error)) {
	id, err := parseID(chi.URLParam(r, "id"), "id")
	if err != nil {
		fail(w, err, profileCodes)
		return
	}
	viewer, err := parseID(r.URL.Query().Get("viewer_id"), "viewer_id")
	if err != nil {
		fail(w, err, profileCodes)
		return
	}
	entries, err := list(r.Context(), id, viewer)
	if err != nil {
		s.logFailure("list follows", err)
		fail(w, err, profileCodes)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "accounts": toFollowEntries(entries)})
}

// --- Auth ---

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, loginCodes)
		return
	}
	a, tok, err := s.auth.Login(r.Context(), req.Username, req.Password, r.RemoteAddr)
	if err != nil {
		s.logFailure("login", err)
		fail(w, err, loginCodes)
		return
	}
	writeJSON(w, http.StatusOK, authResponse{
		Success: true, Account: toAccountDTO(a), Token: tok.AccessToken, ExpiresAt: tok.ExpiresAt,
	})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	var req logoutRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, logoutCodes)
		return
	}
	id, err := parseID(req.AccountID, "account_id")
	if err != nil {
		fail(w, err, logoutCodes)
		return
	}
	tok, _ := BearerFromCtx(r.Context())
	if err := s.auth.Logout(r.Context(), id, tok); err != nil {
		s.logFailure("logout", err)
		fail(w, err, logoutCodes)
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"success": true})
}

// --- Follows ---

func (s *Server) setFollow(w http.ResponseWriter, r *http.Request) {
	var req followRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, followCodes)
		return
	}
	follower, err := parseID(req.FollowerID, "follower_id")
	if err != nil {
		fail(w, err, followCodes)
		return
	}
	followee, err := parseID(req.FolloweeID, "followee_id")
	if err != nil {
		fail(w, err, followCodes)
		return
	}
	action := model.ParseFollowAction(req.Action)
	tok, _ := BearerFromCtx(r.Context())
	if err := s.follows.SetFollow(r.Context(), follower, tok, followee, action); err != nil {
		s.logFailure("set follow", err)
		fail(w, err, followCodes)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "action": string(action)})
}

// --- Lexes ---

func (s *Server) postLex(w http.ResponseWriter, r *http.Request) {
	var req lexRequest
	if err := decode(r, &req); err != nil {
		fail(w, err, lexCodes)
		return
	}
	id, err := parseID(req.AccountID, "account_id")
	if err != nil {
		fail(w, err, lexCodes)
		return
	}
	tok, _ := BearerFromCtx(r.Context())
	l, err := s.lexes.Post(r.Context(), id, tok, req.Content, model.LexStatus(req.Status))
	if err != nil {
		s.logFailure("post lex", err)
		fail(w, err, lexCodes)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "lex": toLexDTO(l)})
}

func (s *Server) feed(w http.ResponseWriter, r *http.Request) {
	index := 0
	if v := r.URL.Query().Get("index"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			fail(w, errs.ErrValidation, nil)
			return
		}
		index = n
	}
	views, err := s.lexes.Feed(r.Context(), index)
	if err != nil {
		s.logFailure("feed", err)
		fail(w, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "lexes": toLexViews(views)})
}

// logFailure logs unexpected errors; expected client errors stay at debug.
func (s *Server) logFailure(op string, err error) {
	if status, _ := statusOf(err); status >= http.StatusInternalServerError {
		s.log.Error(op, zap.Error(err))
		return
	}
	s.log.Debug(op, zap.Error(err))
}
