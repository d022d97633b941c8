// Package session owns the client's authenticated session: durable token
// storage, credential attachment, and recovery from rejected credentials
// through a single shared refresh.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/model"
)

var (
	// ErrNoSession is returned when an operation needs a logged-in user.
	ErrNoSession = errors.New("no active session")

	// ErrNoRefreshToken is returned when credentials were rejected and no
	// refresh token is stored.
	ErrNoRefreshToken = errors.New("no refresh token stored")

	// ErrSessionExpired wraps every failure that ended the session.
	ErrSessionExpired = errors.New("session expired")
)

// DefaultRefreshTimeout bounds a single token exchange.
const DefaultRefreshTimeout = 15 * time.Second

// Login paths returned by Guard.
const (
	LoginPath        = "/login"
	ExpiredLoginPath = "/login?session_expired=true"
)

// AuthBackend performs the credential exchanges against the backend.
type AuthBackend interface {
	Login(ctx context.Context, email, password string) (model.Tokens, model.User, error)
	Refresh(ctx context.Context, refreshToken string) (model.Tokens, error)
}

type refreshOutcome struct {
	token string
	err   error
}

// Manager is the session state machine. It is safe for concurrent use.
type Manager struct {
	tokens         *TokenStore
	backend        AuthBackend
	signals        *events.Signals
	logger         *zap.Logger
	refreshTimeout time.Duration
	now            func() time.Time

	// base outlives any caller; the exchange runs on it so that one
	// caller's cancellation does not fail the refresh for everyone queued.
	base   context.Context
	cancel context.CancelFunc

	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshOutcome
	expired    bool
	// generation changes on every login and logout.
	generation uint64
}

// Option configures a Manager.
type Option func(*Manager)

// WithRefreshTimeout overrides DefaultRefreshTimeout.
func WithRefreshTimeout(d time.Duration) Option {
	return func(m *Manager) { m.refreshTimeout = d }
}

// WithClock overrides the time source used for expiry checks.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a Manager. signals and logger may be nil.
func NewManager(tokens *TokenStore, backend AuthBackend, signals *events.Signals, logger *zap.Logger, opts ...Option) *Manager {
	if signals == nil {
		signals = events.NewSignals()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	base, cancel := context.WithCancel(context.Background())
	m := &Manager{
		tokens:         tokens,
		backend:        backend,
		signals:        signals,
		logger:         logger,
		refreshTimeout: DefaultRefreshTimeout,
		now:            time.Now,
		base:           base,
		cancel:         cancel,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Close aborts an in-flight refresh. The Manager must not be used after.
func (m *Manager) Close() {
	m.cancel()
}

// Signals returns the bus the Manager publishes on.
func (m *Manager) Signals() *events.Signals { return m.signals }

// AttachCredentials sets the bearer header from durable storage and
// returns the token attached. Without a token the request is left
// unauthenticated and "" is returned.
func (m *Manager) AttachCredentials(req *http.Request) string {
	token := m.tokens.AccessToken()
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return token
}

// HandleAuthFailure is called when a request carrying rejected was
// answered 401. It returns a token to retry with.
//
// While a refresh is in flight callers queue and are released in arrival
// order with that refresh's outcome. If the stored token already differs
// from rejected, a refresh completed after the request was sent and the
// current token is returned without another exchange.
func (m *Manager) HandleAuthFailure(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	if m.refreshing {
		ch := make(chan refreshOutcome, 1)
		m.waiters = append(m.waiters, ch)
		m.mu.Unlock()

		select {
		case out := <-ch:
			return out.token, out.err
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}

	if current := m.tokens.AccessToken(); current != "" && current != rejected {
		m.mu.Unlock()
		return current, nil
	}
	m.refreshing = true
	gen := m.generation
	m.mu.Unlock()

	token, reason, err := m.refresh(gen)

	m.mu.Lock()
	waiters := m.waiters
	m.waiters = nil
	m.refreshing = false
	m.mu.Unlock()

	for _, ch := range waiters {
		ch <- refreshOutcome{token: token, err: err}
	}

	switch {
	case errors.Is(err, ErrNoSession):
		m.logger.Debug("session changed during refresh, result discarded", zap.Int("released", len(waiters)))
		return "", err
	case err != nil:
		m.signals.SessionInvalidated.Publish(events.SessionInvalidated{Reason: reason, Err: err})
		m.signals.AuthChanged.Publish(events.AuthStateChanged{LoggedIn: false})
		return "", err
	}
	m.logger.Debug("session refreshed", zap.Int("released", len(waiters)))
	return token, nil
}

// refresh runs one token exchange for the session generation gen. The
// outcome is applied only if no login or logout happened meanwhile;
// otherwise ErrNoSession is returned and storage is left alone.
func (m *Manager) refresh(gen uint64) (string, events.InvalidationReason, error) {
	refreshToken := m.tokens.RefreshToken()

	var tokens model.Tokens
	var exchangeErr error
	if refreshToken != "" {
		ctx, cancel := context.WithTimeout(m.base, m.refreshTimeout)
		tokens, exchangeErr = m.backend.Refresh(ctx, refreshToken)
		cancel()
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.generation != gen {
		return "", "", ErrNoSession
	}

	token, reason, err := m.commit(refreshToken, tokens, exchangeErr)
	if err != nil {
		m.logger.Warn("session refresh failed, logging out", zap.String("reason", string(reason)), zap.Error(err))
		if clearErr := m.tokens.Clear(); clearErr != nil {
			m.logger.Error("clearing session state", zap.Error(clearErr))
		}
		m.expired = true
		return "", reason, fmt.Errorf("%w: %w", ErrSessionExpired, err)
	}
	return token, "", nil
}

// commit stores the result of an exchange. The caller holds m.mu.
func (m *Manager) commit(refreshToken string, tokens model.Tokens, err error) (string, events.InvalidationReason, error) {
	if refreshToken == "" {
		return "", events.ReasonMissingRefreshToken, ErrNoRefreshToken
	}
	if err != nil {
		return "", events.ReasonRefreshFailed, fmt.Errorf("refreshing access token: %w", err)
	}
	if tokens.AccessToken == "" {
		return "", events.ReasonRefreshFailed, errors.New("refresh response carried no access token")
	}

	if err := m.tokens.SetAccessToken(tokens.AccessToken); err != nil {
		return "", events.ReasonRefreshFailed, err
	}
	if tokens.RefreshToken != "" && tokens.RefreshToken != refreshToken {
		if err := m.tokens.SetRefreshToken(tokens.RefreshToken); err != nil {
			return "", events.ReasonRefreshFailed, err
		}
	}
	return tokens.AccessToken, "", nil
}

// Login exchanges credentials for a session and persists it.
func (m *Manager) Login(ctx context.Context, email, password string) (*model.User, error) {
	tokens, user, err := m.backend.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if tokens.AccessToken == "" {
		return nil, errors.New("login response carried no access token")
	}

	m.mu.Lock()
	m.generation++
	m.mu.Unlock()

	if err := m.tokens.Save(tokens, user); err != nil {
		return nil, fmt.Errorf("saving session: %w", err)
	}

	m.mu.Lock()
	m.expired = false
	m.mu.Unlock()

	m.logger.Info("logged in", zap.String("user_id", user.ID.String()))
	m.signals.AuthChanged.Publish(events.AuthStateChanged{LoggedIn: true, User: &user})
	return &user, nil
}

// Logout clears all durable session state. It makes no network call.
// A refresh still in flight is discarded when it returns.
func (m *Manager) Logout() error {
	m.mu.Lock()
	m.generation++
	m.expired = false
	m.mu.Unlock()

	err := m.tokens.Clear()

	m.signals.AuthChanged.Publish(events.AuthStateChanged{LoggedIn: false})
	if err != nil {
		return fmt.Errorf("clearing session: %w", err)
	}
	return nil
}

// CurrentUser returns the logged-in user, if any.
func (m *Manager) CurrentUser() (*model.User, bool) {
	if !m.HasSession() {
		return nil, false
	}
	return m.tokens.User()
}

// AccessToken returns the stored access token, or "".
func (m *Manager) AccessToken() string { return m.tokens.AccessToken() }

// HasSession reports whether an access token is stored.
func (m *Manager) HasSession() bool { return m.tokens.AccessToken() != "" }

// Expired reports whether the last session ended in a forced logout.
func (m *Manager) Expired() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.expired
}

// ExpiresAt decodes the exp claim of the access token without verifying
// its signature. ok is false for tokens that are not JWTs or carry no exp.
func (m *Manager) ExpiresAt() (exp time.Time, ok bool) {
	token := m.tokens.AccessToken()
	if token == "" {
		return time.Time{}, false
	}
	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return time.Time{}, false
	}
	if claims.ExpiresAt == nil {
		return time.Time{}, false
	}
	return claims.ExpiresAt.Time, true
}

// ExpiringWithin reports whether the access token expires within d.
func (m *Manager) ExpiringWithin(d time.Duration) bool {
	exp, ok := m.ExpiresAt()
	if !ok {
		return false
	}
	return !m.now().Add(d).Before(exp)
}

// Guard decides whether a protected destination may be shown. When it may
// not, redirect is the login location to go to instead.
func (m *Manager) Guard(path string) (redirect string, ok bool) {
	if m.HasSession() {
		return "", true
	}
	if m.Expired() {
		return ExpiredLoginPath, false
	}
	if path == "" {
		return LoginPath, false
	}
	return LoginPath + "?redirect=" + url.QueryEscape(path), false
}

// queued returns the number of callers waiting on the in-flight refresh.
func (m *Manager) queued() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.waiters)
}
