// Package session holds the authenticated identity of the CLI: the
// access/refresh token pair, the current user, and the role flags derived
// from it. The Store is the only writer of token state; the API client reads
// tokens from it and asks it to refresh on 401.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/pickoala/pickoala-cli/internal/api"
)

// Errors returned by Store operations.
var (
	ErrNoRefreshToken = errors.New("session: no refresh token")
	ErrAuth           = errors.New("session: authentication failed")
	ErrRefresh        = errors.New("session: token refresh failed")
	ErrClosed         = fmt.Errorf("session: store closed: %w", api.ErrCredentialsClosed)
)

const refreshKey = "refresh"

// Backend is the slice of the API the store talks to. *api.Client
// satisfies it.
type Backend interface {
	Login(ctx context.Context, username, password string) (*api.TokenPair, error)
	OAuthCallback(ctx context.Context, provider, code, state, redirectURL string) (*api.TokenPair, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.User, error)
	Refresh(ctx context.Context, refreshToken string) (*api.TokenPair, error)
	Me(ctx context.Context) (*api.User, error)
}

// Store is the session state. Safe for concurrent use. Concurrent refreshes
// share a single in-flight exchange.
type Store struct {
	backend Backend
	persist *persister // nil = memory only
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.RWMutex
	access  string
	refresh string
	expiry  time.Time
	user    *api.User
	loaded  bool
	closed  bool

	refreshGroup singleflight.Group
	inflight     sync.WaitGroup
}

// NewStore creates an empty store. tokenPath is where tokens persist ("" for
// memory only); server binds the token file to one API root.
func NewStore(backend Backend, tokenPath, server string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		backend: backend,
		logger:  logger,
		now:     time.Now,
	}

	if tokenPath != "" {
		s.persist = &persister{path: tokenPath, server: server, logger: logger}
	}

	return s
}

// Init hydrates the store from the token file and loads the current user.
// A missing, foreign, or unreadable token file leaves the session anonymous.
func (s *Store) Init(ctx context.Context) error {
	if s.persist != nil {
		tok, meta := s.persist.load()
		if tok != nil {
			s.mu.Lock()
			s.access = tok.AccessToken
			s.refresh = tok.RefreshToken
			s.expiry = tok.Expiry
			s.mu.Unlock()

			s.logger.Debug("session hydrated",
				slog.String("username", meta["username"]),
				slog.Time("expiry", tok.Expiry),
				slog.Bool("expired", !tok.Expiry.IsZero() && tok.Expiry.Before(s.now())),
			)
		}
	}

	return s.LoadUser(ctx)
}

// Close waits for an in-flight refresh and drops in-memory state. The token
// file is left untouched so the next process can resume the session.
func (s *Store) Close() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.inflight.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.access, s.refresh, s.user = "", "", nil
	s.expiry = time.Time{}
	s.loaded = false
}

// Login exchanges credentials for a token pair, persists it, and loads the
// user profile.
func (s *Store) Login(ctx context.Context, username, password string) (*api.TokenPair, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	pair, err := s.backend.Login(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuth, err)
	}

	s.setTokens(pair)

	if err := s.LoadUser(ctx); err != nil {
		s.logger.Warn("profile load after login failed", slog.String("error", err.Error()))
	}

	return pair, nil
}

// LoginWithOAuth completes a third-party login through the server's provider
// callback, then behaves like Login.
func (s *Store) LoginWithOAuth(
	ctx context.Context, provider, code, state, redirectURL string,
) (*api.TokenPair, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	pair, err := s.backend.OAuthCallback(ctx, provider, code, state, redirectURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrAuth, provider, err)
	}

	s.setTokens(pair)

	if err := s.LoadUser(ctx); err != nil {
		s.logger.Warn("profile load after oauth login failed", slog.String("error", err.Error()))
	}

	return pair, nil
}

// Register creates an account. The session is not changed; the user logs in
// separately (the server may require email verification first).
func (s *Store) Register(ctx context.Context, username, email, password string) (*api.User, error) {
	u, err := s.backend.Register(ctx, api.RegisterRequest{
		Username: username,
		Email:    email,
		Password: password,
	})
	if err != nil {
		return nil, fmt.Errorf("session: registering %q: %w", username, err)
	}

	return u, nil
}

// RefreshAccessToken exchanges the refresh token for a new pair and returns
// the new access token. Without a refresh token it fails immediately with
// ErrNoRefreshToken and makes no request. A failed exchange clears the
// session. Concurrent callers share one exchange; a caller whose ctx ends
// stops waiting but the exchange itself runs to completion.
func (s *Store) RefreshAccessToken(ctx context.Context) (string, error) {
	if err := s.checkOpen(); err != nil {
		return "", err
	}

	ch := s.refreshGroup.DoChan(refreshKey, func() (any, error) {
		return s.doRefresh(context.WithoutCancel(ctx))
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}

		tok, _ := res.Val.(string) //nolint:errcheck // doRefresh always returns a string

		return tok, nil
	case <-ctx.Done():
		// A result that is already in hand wins over cancellation.
		select {
		case res := <-ch:
			if res.Err == nil {
				tok, _ := res.Val.(string) //nolint:errcheck // doRefresh always returns a string
				return tok, nil
			}
		default:
		}

		return "", fmt.Errorf("session: waiting for refresh: %w", ctx.Err())
	}
}

func (s *Store) doRefresh(ctx context.Context) (string, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return "", ErrClosed
	}

	// Added under mu so Close cannot start waiting before the count rises.
	s.inflight.Add(1)
	refreshToken := s.refresh
	s.mu.Unlock()

	defer s.inflight.Done()

	if refreshToken == "" {
		return "", ErrNoRefreshToken
	}

	s.logger.Info("refreshing access token")

	pair, err := s.backend.Refresh(ctx, refreshToken)
	if err != nil {
		s.Clear()
		return "", fmt.Errorf("%w: %w", ErrRefresh, err)
	}

	s.setTokens(pair)

	s.logger.Info("access token refreshed")

	return pair.AccessToken, nil
}

// Refresh implements api.Credentials. When the held access token already
// differs from stale, another request refreshed first and the current token
// is returned without a new exchange.
func (s *Store) Refresh(ctx context.Context, stale string) (string, error) {
	s.mu.RLock()
	current := s.access
	s.mu.RUnlock()

	if current != "" && current != stale {
		s.logger.Debug("access token already refreshed by another request")
		return current, nil
	}

	return s.RefreshAccessToken(ctx)
}

// LoadUser fetches the current user. Without an access token the session is
// marked loaded as anonymous. Any fetch failure except cancellation clears
// the session (the token is treated as invalid). The session is marked
// loaded in every case.
func (s *Store) LoadUser(ctx context.Context) error {
	defer s.markLoaded()

	if s.AccessToken() == "" {
		return nil
	}

	u, err := s.backend.Me(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("session: loading user: %w", ctx.Err())
		}

		s.logger.Warn("user profile fetch failed, clearing session",
			slog.String("error", err.Error()),
		)
		s.Clear()

		return fmt.Errorf("session: loading user: %w", err)
	}

	s.mu.Lock()
	s.user = u
	s.mu.Unlock()

	if s.persist != nil {
		s.persist.saveMeta(map[string]string{
			"username": u.Username,
			"email":    u.Email,
			"role":     u.Role,
		})
	}

	return nil
}

// Logout clears the session unconditionally. No request is made.
func (s *Store) Logout() {
	s.logger.Info("logging out")
	s.Clear()
}

// Clear drops tokens and user, in memory and on disk. Implements
// api.Credentials.
func (s *Store) Clear() {
	s.mu.Lock()
	s.access, s.refresh, s.user = "", "", nil
	s.expiry = time.Time{}
	s.mu.Unlock()

	if s.persist != nil {
		s.persist.remove()
	}
}

// AccessToken returns the held access token, "" when anonymous. Implements
// api.Credentials.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access
}

// HasRefreshToken reports whether a refresh token is held.
func (s *Store) HasRefreshToken() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.refresh != ""
}

// Expiry returns the access token expiry, zero when unknown.
func (s *Store) Expiry() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.expiry
}

// User returns a copy of the current user, nil when anonymous.
func (s *Store) User() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.user == nil {
		return nil
	}

	u := *s.user

	return &u
}

// Loaded reports whether LoadUser has finished at least once.
func (s *Store) Loaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.loaded
}

// IsLoggedIn holds iff both an access token and a user are present.
func (s *Store) IsLoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.access != "" && s.user != nil
}

// IsAdmin reports whether the current user has the admin role.
func (s *Store) IsAdmin() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return IsAdmin(s.user)
}

// IsVIP reports whether the current user has VIP privileges.
func (s *Store) IsVIP() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return IsVIP(s.user, s.now())
}

// IsAdmin reports whether u has the admin role. A nil user is not admin.
func IsAdmin(u *api.User) bool {
	return u != nil && u.Role == api.RoleAdmin
}

// IsVIP reports whether u is VIP at now: admins always are; anyone else
// needs a valid VIP expiry strictly after now.
func IsVIP(u *api.User, now time.Time) bool {
	if u == nil {
		return false
	}

	if u.Role == api.RoleAdmin {
		return true
	}

	exp := u.VIPExpiry()

	return !exp.IsZero() && exp.After(now)
}

func (s *Store) setTokens(pair *api.TokenPair) {
	expiry := tokenExpiry(pair, s.now())

	s.mu.Lock()
	s.access = pair.AccessToken
	s.refresh = pair.RefreshToken
	s.expiry = expiry
	s.mu.Unlock()

	if s.persist != nil {
		s.persist.save(pair, expiry)
	}
}

func (s *Store) markLoaded() {
	s.mu.Lock()
	s.loaded = true
	s.mu.Unlock()
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return ErrClosed
	}

	return nil
}
