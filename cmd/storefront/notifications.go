package main

import (
	"github.com/spf13/cobra"

	"github.com/nhle/storefront/internal/model"
)

func newNotificationsCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "notifications",
		Aliases: []string{"notif", "n"},
		Short:   "List and acknowledge notifications",
	}
	cmd.AddCommand(
		newNotificationsListCmd(g),
		newNotificationsCountCmd(g),
		newNotificationsReadCmd(g),
		newNotificationsReadAllCmd(g),
	)
	return cmd
}

func newNotificationsListCmd(g *globals) *cobra.Command {
	var unreadOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List notifications, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.requireUser(); err != nil {
				return err
			}
			if err := svc.refresh(cmd.Context()); err != nil {
				return err
			}

			ns := svc.center.Notifications()
			if unreadOnly {
				ns = unread(ns)
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Notifications(ns)
		},
	}
	cmd.Flags().BoolVar(&unreadOnly, "unread", false, "only unread notifications")
	return cmd
}

func newNotificationsCountCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "count",
		Short: "Print the server's unread count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			user, err := svc.requireUser()
			if err != nil {
				return err
			}
			n, err := svc.client.UnreadCount(cmd.Context(), user.ID.String())
			if err != nil {
				return err
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Count("unread", n)
		},
	}
}

func newNotificationsReadCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "read <id>...",
		Short: "Mark notifications as read",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.requireUser(); err != nil {
				return err
			}
			if err := svc.refresh(cmd.Context()); err != nil {
				return err
			}
			for _, id := range args {
				if err := svc.center.MarkAsRead(cmd.Context(), id); err != nil {
					return err
				}
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Count("unread", svc.center.UnreadCount())
		},
	}
}

func newNotificationsReadAllCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "read-all",
		Short: "Mark every notification as read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if _, err := svc.requireUser(); err != nil {
				return err
			}
			if err := svc.refresh(cmd.Context()); err != nil {
				return err
			}
			if err := svc.center.MarkAllAsRead(cmd.Context()); err != nil {
				return err
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Message("All notifications marked as read.")
		},
	}
}

// unread filters ns down to unread notifications.
func unread(ns []model.Notification) []model.Notification {
	var out []model.Notification
	for _, n := range ns {
		if n.IsUnread() {
			out = append(out, n)
		}
	}
	return out
}
