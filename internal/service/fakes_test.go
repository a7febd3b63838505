package service

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/and161185/lexes/internal/errs"
	"github.com/and161185/lexes/internal/limiter"
	"github.com/and161185/lexes/internal/model"
	"github.com/and161185/lexes/internal/repository"
	"github.com/gofrs/uuid/v5"
)

// memStore is an in-memory database shared by the fake repositories. It
// enforces the same uniqueness rules as the schema.
type memStore struct {
	mu sync.Mutex

	accounts map[uuid.UUID]model.Account
	byName   map[string]uuid.UUID
	creds    map[uuid.UUID]model.Credential
	sessions []*model.Session
	follows  map[[2]uuid.UUID]time.Time // {followee, follower}
	lexes    []model.Lex
	seq      time.Time

	getErr     error
	updateErr  error
	addErr     error
	removeGap  bool // Remove reports one fewer removed row than observed
	lexNoWrite bool
}

func newMemStore() *memStore {
	return &memStore{
		accounts: map[uuid.UUID]model.Account{},
		byName:   map[string]uuid.UUID{},
		creds:    map[uuid.UUID]model.Credential{},
		follows:  map[[2]uuid.UUID]time.Time{},
		seq:      time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memStore) tick() time.Time {
	m.seq = m.seq.Add(time.Second)
	return m.seq
}

func (m *memStore) summary(id uuid.UUID) model.AccountSummary {
	a := m.accounts[id]
	return model.AccountSummary{ID: a.ID, Username: a.Username, FirstName: a.FirstName, LastName: a.LastName}
}

type fakeAccounts struct{ *memStore }
type fakeSessions struct{ *memStore }
type fakeFollows struct{ *memStore }
type fakeLexes struct{ *memStore }

var (
	_ repository.AccountRepository = fakeAccounts{}
	_ repository.SessionRepository = fakeSessions{}
	_ repository.FollowRepository  = fakeFollows{}
	_ repository.LexRepository     = fakeLexes{}
)

func (f fakeAccounts) Create(_ context.Context, a *model.Account, c *model.Credential, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := strings.ToLower(a.Username)
	if _, taken := f.byName[key]; taken {
		return errs.ErrAlreadyExists
	}
	f.accounts[a.ID] = *a
	f.byName[key] = a.ID
	f.creds[a.ID] = *c
	if s != nil {
		cpy := *s
		f.sessions = append(f.sessions, &cpy)
	}
	return nil
}

func (f fakeAccounts) GetByID(_ context.Context, id uuid.UUID) (*model.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, f.getErr
	}
	a, ok := f.accounts[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return &a, nil
}

func (f fakeAccounts) GetByUsername(_ context.Context, username string) (*model.Account, *model.Credential, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.getErr != nil {
		return nil, nil, f.getErr
	}
	id, ok := f.byName[strings.ToLower(username)]
	if !ok {
		return nil, nil, errs.ErrNotFound
	}
	a, c := f.accounts[id], f.creds[id]
	return &a, &c, nil
}

func (f fakeAccounts) Exists(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.accounts[id]
	return ok, nil
}

func (f fakeAccounts) UsernameExists(_ context.Context, username string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.byName[strings.ToLower(username)]
	return ok, nil
}

func (f fakeAccounts) Update(_ context.Context, ch model.AccountChange) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.updateErr != nil {
		return f.updateErr
	}
	cur, ok := f.accounts[ch.Account.ID]
	if !ok {
		return errs.ErrNotFound
	}
	newKey, oldKey := strings.ToLower(ch.Account.Username), strings.ToLower(cur.Username)
	if id, taken := f.byName[newKey]; taken && id != cur.ID {
		return errs.ErrAlreadyExists
	}
	delete(f.byName, oldKey)
	f.byName[newKey] = cur.ID
	f.accounts[cur.ID] = ch.Account
	if ch.Credential != nil {
		f.creds[cur.ID] = *ch.Credential
		now := f.tick()
		for _, s := range f.sessions {
			if s.AccountID == cur.ID && s.RevokedAt == nil && !bytes.Equal(s.TokenHash, ch.KeepToken) {
				s.RevokedAt = &now
			}
		}
	}
	return nil
}

func (f fakeSessions) Create(_ context.Context, s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.accounts[s.AccountID]; !ok {
		return errs.ErrNotFound
	}
	cpy := *s
	f.sessions = append(f.sessions, &cpy)
	return nil
}

func (f fakeSessions) Find(_ context.Context, accountID uuid.UUID, tokenHash []byte) (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.AccountID == accountID && bytes.Equal(s.TokenHash, tokenHash) {
			cpy := *s
			return &cpy, nil
		}
	}
	return nil, errs.ErrNotFound
}

func (f fakeSessions) Revoke(_ context.Context, accountID uuid.UUID, tokenHash []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := f.tick()
	for _, s := range f.sessions {
		if s.AccountID == accountID && bytes.Equal(s.TokenHash, tokenHash) && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (f fakeSessions) PurgeExpired(_ context.Context, t time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.sessions[:0]
	var n int64
	for _, s := range f.sessions {
		if s.ExpiresAt.Before(t) || (s.RevokedAt != nil && s.RevokedAt.Before(t)) {
			n++
			continue
		}
		kept = append(kept, s)
	}
	f.sessions = kept
	return n, nil
}

func (f fakeSessions) count(accountID uuid.UUID) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.sessions {
		if s.AccountID == accountID {
			n++
		}
	}
	return n
}

func (f fakeFollows) Add(_ context.Context, followeeID, followerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.addErr != nil {
		return false, f.addErr
	}
	k := [2]uuid.UUID{followeeID, followerID}
	if _, ok := f.follows[k]; ok {
		return false, nil
	}
	f.follows[k] = f.tick()
	return true, nil
}

func (f fakeFollows) Remove(_ context.Context, followeeID, followerID uuid.UUID) (int64, int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k := [2]uuid.UUID{followeeID, followerID}
	if _, ok := f.follows[k]; !ok {
		return 0, 0, nil
	}
	if f.removeGap {
		return 1, 0, nil
	}
	delete(f.follows, k)
	return 1, 1, nil
}

func (f fakeFollows) ListFollowing(_ context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	return f.list(func(k [2]uuid.UUID) (uuid.UUID, bool) { return k[0], k[1] == accountID }, viewerID), nil
}

func (f fakeFollows) ListFollowers(_ context.Context, accountID, viewerID uuid.UUID) ([]model.FollowEntry, error) {
	return f.list(func(k [2]uuid.UUID) (uuid.UUID, bool) { return k[1], k[0] == accountID }, viewerID), nil
}

func (f fakeFollows) list(match func([2]uuid.UUID) (uuid.UUID, bool), viewerID uuid.UUID) []model.FollowEntry {
	f.mu.Lock()
	defer f.mu.Unlock()
	type row struct {
		e  model.FollowEntry
		at time.Time
	}
	var rows []row
	for k, at := range f.follows {
		other, ok := match(k)
		if !ok {
			continue
		}
		_, following := f.follows[[2]uuid.UUID{other, viewerID}]
		rows = append(rows, row{e: model.FollowEntry{Account: f.summary(other), Following: following}, at: at})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].at.After(rows[j].at) })
	out := make([]model.FollowEntry, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.e)
	}
	return out
}

func (f fakeFollows) IsFollowing(_ context.Context, followeeID, followerID uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.follows[[2]uuid.UUID{followeeID, followerID}]
	return ok, nil
}

func (f fakeLexes) Create(_ context.Context, l *model.Lex) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lexNoWrite {
		return false, nil
	}
	l.PublishAt = f.tick()
	f.lexes = append(f.lexes, *l)
	return true, nil
}

func (f fakeLexes) ListPublished(_ context.Context, limit, offset int) ([]model.LexView, error) {
	if offset < 0 {
		return nil, fmt.Errorf("OFFSET must not be negative: %d", offset)
	}
	return f.published(func(model.Lex) bool { return true }, limit, offset), nil
}

func (f fakeLexes) ListByAccount(_ context.Context, accountID uuid.UUID, limit int) ([]model.LexView, error) {
	return f.published(func(l model.Lex) bool { return l.AccountID == accountID }, limit, 0), nil
}

func (f fakeLexes) published(keep func(model.Lex) bool, limit, offset int) []model.LexView {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.LexView
	for i := len(f.lexes) - 1; i >= 0; i-- {
		l := f.lexes[i]
		if l.Status != model.LexPublished || !keep(l) {
			continue
		}
		if offset > 0 {
			offset--
			continue
		}
		if len(out) == limit {
			break
		}
		out = append(out, model.LexView{Lex: l, Author: f.summary(l.AccountID)})
	}
	return out
}

// plainHasher stands in for Argon2id where hashing cost does not matter.
type plainHasher struct{}

func (plainHasher) Hash(password string) ([]byte, []byte, error) {
	return []byte("h:" + password), []byte("salt"), nil
}

func (plainHasher) Verify(password string, _, hash []byte) bool {
	return string(hash) == "h:"+password
}

type fakeLimiter struct {
	mu sync.Mutex

	allowOK  bool
	allowErr error

	failBlocked bool

	allowCalls   int
	failureCalls int
	successCalls int
	lastKey      limiter.Key
}

var _ limiter.Limiter = (*fakeLimiter)(nil)

func (l *fakeLimiter) Allow(_ context.Context, k limiter.Key) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.allowCalls++
	l.lastKey = k
	return l.allowOK, 0, l.allowErr
}

func (l *fakeLimiter) Success(context.Context, limiter.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.successCalls++
	return nil
}

func (l *fakeLimiter) Failure(context.Context, limiter.Key) (bool, time.Duration, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.failureCalls++
	return l.failBlocked, time.Minute, nil
}

// env bundles the services over one memStore.
type env struct {
	store    *memStore
	lim      *fakeLimiter
	auth     *AuthServiceImpl
	accounts *AccountServiceImpl
	follows  *FollowServiceImpl
	lexes    *LexServiceImpl
}

func newEnv() *env {
	m := newMemStore()
	lim := &fakeLimiter{allowOK: true}
	auth := NewAuthService(fakeAccounts{m}, fakeSessions{m}, lim, time.Hour)
	auth.hasher = plainHasher{}
	return &env{
		store:    m,
		lim:      lim,
		auth:     auth,
		accounts: NewAccountService(fakeAccounts{m}, fakeFollows{m}, fakeLexes{m}, auth),
		follows:  NewFollowService(fakeAccounts{m}, fakeFollows{m}, auth),
		lexes:    NewLexService(fakeAccounts{m}, fakeLexes{m}, auth),
	}
}

// signup creates an account and returns it with its token.
func (e *env) signup(username string) (model.Account, string) {
	a, tok, err := e.accounts.Create(context.Background(), model.Signup{
		FirstName: "first", LastName: "last", Username: username, Password: "pw-" + username,
	})
	if err != nil {
		panic(err)
	}
	return a, tok.AccessToken
}
