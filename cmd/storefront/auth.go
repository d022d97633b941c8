package main

import (
	"errors"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/storefront/internal/cli/output"
)

func newLoginCmd(g *globals) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if email == "" || password == "" {
				if !output.IsInteractive() {
					return errors.New("--email and --password are required when not running in a terminal")
				}
				if err := promptCredentials(&email, &password); err != nil {
					return err
				}
			}

			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			user, err := svc.session.Login(cmd.Context(), strings.TrimSpace(email), password)
			if err != nil {
				return err
			}

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Message("Logged in as " + user.DisplayName())
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password (prompted when omitted)")
	return cmd
}

// promptCredentials asks for whichever of email and password is missing.
func promptCredentials(email, password *string) error {
	var fields []huh.Field
	if *email == "" {
		fields = append(fields, huh.NewInput().
			Title("Email").
			Value(email).
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("Email is required")
				}
				return nil
			}))
	}
	if *password == "" {
		fields = append(fields, huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(password))
	}
	return huh.NewForm(huh.NewGroup(fields...)).Run()
}

func newLogoutCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			svc, err := newServices(g.cfg, "")
			if err != nil {
				return err
			}
			defer svc.Close()

			if err := svc.session.Logout(); err != nil {
				return err
			}
			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.Message("Logged out.")
		},
	}
}

func newWhoamiCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
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
			exp, _ := svc.session.ExpiresAt()

			p, err := g.printer(cmd)
			if err != nil {
				return err
			}
			return p.User(*user, exp)
		},
	}
}
