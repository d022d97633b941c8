package session

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/credential"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/store"
)

// Keys under which session state is persisted.
const (
	keyAccessToken  = "access_token"
	keyRefreshToken = "refresh_token"
	keyCurrentUser  = "current_user"
)

var allKeys = []string{keyAccessToken, keyRefreshToken, keyCurrentUser}

// KV is a durable string store. credential.Keyring and store.Values both
// satisfy it.
type KV interface {
	Get(key string) (string, error)
	Set(key, value string) error
	Delete(key string) error
}

func isNotFound(err error) bool {
	return errors.Is(err, credential.ErrNotFound) || errors.Is(err, store.ErrNotFound)
}

// TokenStore persists session state in two places: a primary store (the
// OS keyring) that is read first, and a fallback store (the local
// database) that answers when the primary is empty or unavailable.
type TokenStore struct {
	primary  KV
	fallback KV
	logger   *zap.Logger
}

// NewTokenStore creates a TokenStore. primary may be nil when no system
// keyring is available; fallback must not be nil.
func NewTokenStore(primary, fallback KV, logger *zap.Logger) *TokenStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenStore{primary: primary, fallback: fallback, logger: logger}
}

func (s *TokenStore) read(key string) string {
	if s.primary != nil {
		v, err := s.primary.Get(key)
		switch {
		case err == nil && v != "":
			return v
		case err != nil && !isNotFound(err):
			s.logger.Warn("primary credential store read failed", zap.String("key", key), zap.Error(err))
		}
	}

	v, err := s.fallback.Get(key)
	if err != nil {
		if !isNotFound(err) {
			s.logger.Warn("fallback credential store read failed", zap.String("key", key), zap.Error(err))
		}
		return ""
	}
	return v
}

func (s *TokenStore) write(key, value string) error {
	if s.primary != nil {
		if err := s.primary.Set(key, value); err != nil {
			s.logger.Warn("primary credential store write failed", zap.String("key", key), zap.Error(err))
			// A stale primary value would shadow the fallback on read.
			if delErr := s.primary.Delete(key); delErr != nil && !isNotFound(delErr) {
				s.logger.Warn("dropping stale primary credential", zap.String("key", key), zap.Error(delErr))
			}
		}
	}
	if err := s.fallback.Set(key, value); err != nil {
		return fmt.Errorf("persisting %s: %w", key, err)
	}
	return nil
}

// AccessToken returns the stored access token, or "".
func (s *TokenStore) AccessToken() string { return s.read(keyAccessToken) }

// RefreshToken returns the stored refresh token, or "".
func (s *TokenStore) RefreshToken() string { return s.read(keyRefreshToken) }

// User returns the stored current user, if any.
func (s *TokenStore) User() (*model.User, bool) {
	raw := s.read(keyCurrentUser)
	if raw == "" {
		return nil, false
	}
	var u model.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		s.logger.Warn("discarding unreadable stored user", zap.Error(err))
		return nil, false
	}
	return &u, true
}

// Save persists a complete session.
func (s *TokenStore) Save(tokens model.Tokens, user model.User) error {
	raw, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encoding user: %w", err)
	}
	if err := s.write(keyAccessToken, tokens.AccessToken); err != nil {
		return err
	}
	if err := s.write(keyRefreshToken, tokens.RefreshToken); err != nil {
		return err
	}
	return s.write(keyCurrentUser, string(raw))
}

// SetAccessToken replaces the access token in place.
func (s *TokenStore) SetAccessToken(token string) error {
	return s.write(keyAccessToken, token)
}

// SetRefreshToken replaces the refresh token in place.
func (s *TokenStore) SetRefreshToken(token string) error {
	return s.write(keyRefreshToken, token)
}

// Clear deletes every session key from both stores.
func (s *TokenStore) Clear() error {
	var errs []error
	for _, key := range allKeys {
		if s.primary != nil {
			if err := s.primary.Delete(key); err != nil && !isNotFound(err) {
				errs = append(errs, err)
			}
		}
		if err := s.fallback.Delete(key); err != nil && !isNotFound(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
