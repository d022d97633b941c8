package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/api"
	"github.com/nhle/storefront/internal/credential"
	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/logging"
	"github.com/nhle/storefront/internal/model"
	"github.com/nhle/storefront/internal/notify"
	"github.com/nhle/storefront/internal/session"
	"github.com/nhle/storefront/internal/store"
)

// errNotLoggedIn is returned by commands that need a session.
var errNotLoggedIn = errors.New("not logged in; run `storefront login` first")

// services are the long-lived components shared by every command.
type services struct {
	cfg     *model.AppConfig
	logger  *zap.Logger
	store   *store.SQLiteStore
	signals *events.Signals
	client  *api.Client
	session *session.Manager
	center  *notify.Center
}

// newServices opens storage and wires the session, REST client and
// notification center together. logFile redirects logs away from the
// terminal when set.
func newServices(cfg *model.AppConfig, logFile string) (*services, error) {
	logger, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		File:   logFile,
	})
	if err != nil {
		return nil, err
	}

	if dir := filepath.Dir(cfg.Storage.DBPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory %s: %w", dir, err)
		}
	}
	st, err := store.NewSQLiteStore(cfg.Storage.DBPath)
	if err != nil {
		return nil, err
	}

	// The OS keyring is preferred; without one the session lives in sqlite only.
	var primary session.KV
	ring, err := credential.Open(credential.Options{
		ServiceName: cfg.Storage.KeyringService,
		FileDir:     cfg.Storage.KeyringDir,
	})
	if err != nil {
		logger.Warn("keyring unavailable, using local database for tokens", zap.Error(err))
	} else {
		primary = ring
	}

	signals := events.NewSignals()
	client := api.NewClient(cfg.API, logging.WithComponent(logger, "api"))
	client.SetSignals(signals)

	tokens := session.NewTokenStore(primary, store.NewValues(st), logging.WithComponent(logger, "tokens"))
	mgr := session.NewManager(tokens, client, signals, logging.WithComponent(logger, "session"))
	client.SetAuthenticator(mgr)

	center := notify.NewCenter(client, mgr, st, logging.WithComponent(logger, "notify"))
	center.WatchSession(signals)

	return &services{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		signals: signals,
		client:  client,
		session: mgr,
		center:  center,
	}, nil
}

// requireUser returns the signed-in user or errNotLoggedIn.
func (s *services) requireUser() (*model.User, error) {
	if _, ok := s.session.Guard(""); !ok {
		return nil, errNotLoggedIn
	}
	user, ok := s.session.CurrentUser()
	if !ok {
		return nil, errNotLoggedIn
	}
	return user, nil
}

// refresh loads the notification list, falling back to the local cache
// when the backend cannot be reached.
func (s *services) refresh(ctx context.Context) error {
	err := s.center.Refresh(ctx)
	if err == nil || !api.IsRetryable(err) {
		return err
	}
	if cacheErr := s.center.LoadCached(ctx); cacheErr != nil {
		return errors.Join(err, cacheErr)
	}
	s.logger.Warn("backend unreachable, showing cached notifications", zap.Error(err))
	return nil
}

func (s *services) Close() {
	s.center.Close()
	s.session.Close()
	if err := s.store.Close(); err != nil {
		s.logger.Warn("closing store", zap.Error(err))
	}
	_ = s.logger.Sync()
}
