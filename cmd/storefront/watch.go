package main

import (
	"context"
	"errors"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/nhle/storefront/internal/app"
	"github.com/nhle/storefront/internal/cli/output"
	"github.com/nhle/storefront/internal/events"
	"github.com/nhle/storefront/internal/logging"
	"github.com/nhle/storefront/internal/realtime"
	appsync "github.com/nhle/storefront/internal/sync"
)

// connectRefreshTimeout bounds the catch-up refresh after each connect.
const connectRefreshTimeout = 30 * time.Second

func newWatchCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Open the live notification and chat screen",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !output.IsInteractive() {
				return errors.New("watch needs an interactive terminal")
			}

			svc, err := newServices(g.cfg, g.cfg.Log.File)
			if err != nil {
				return err
			}
			defer svc.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			logger := svc.logger
			if user, ok := svc.session.CurrentUser(); ok {
				logger = logging.WithUserID(logger, user.ID.String())
				if err := svc.center.LoadCached(ctx); err != nil {
					logger.Warn("loading cached notifications", zap.Error(err))
				}
			}

			channel := realtime.New(
				realtime.OptionsFromConfig(g.cfg),
				svc.session,
				svc.center.HandleEvent,
				logging.WithComponent(logger, "realtime"),
			)
			defer channel.Close()

			// Events missed while disconnected are recovered by a refresh.
			channel.OnConnected(func() {
				rctx, rcancel := context.WithTimeout(ctx, connectRefreshTimeout)
				defer rcancel()
				if err := svc.center.Refresh(rctx); err != nil {
					logger.Warn("refresh after connect", zap.Error(err))
				}
			})
			unsubscribe := svc.signals.AuthChanged.Subscribe(func(e events.AuthStateChanged) {
				if e.LoggedIn {
					channel.Wake()
				} else {
					// Parked, not closed: the login view can sign in again.
					channel.Disconnect()
				}
			})
			defer unsubscribe()

			poller := appsync.New(
				svc.center,
				svc.client,
				svc.session,
				g.cfg.Notifications,
				logging.WithComponent(logger, "poller"),
			)
			defer poller.Stop()

			channel.Start(ctx)

			root := app.New(app.Deps{
				Session:    svc.session,
				Center:     svc.center,
				Poller:     poller,
				Connection: channel,
				Catalog:    svc.client,
				Signals:    svc.signals,
				ToastTTL:   time.Duration(g.cfg.Display.ToastSec) * time.Second,
				Logger:     logging.WithComponent(logger, "ui"),
			})

			_, err = tea.NewProgram(root, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
			if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
				return nil
			}
			return err
		},
	}
}
