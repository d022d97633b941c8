package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nhle/storefront/internal/cli/output"
	"github.com/nhle/storefront/internal/model"
)

// globals holds the flags shared by every command.
type globals struct {
	configPath string
	format     string
	v          *viper.Viper
	cfg        *model.AppConfig
}

func newRootCmd() *cobra.Command {
	g := &globals{}

	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Terminal client for the storefront",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return g.load(cmd)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&g.configPath, "config", model.DefaultConfigPath(), "config file path")
	flags.StringVar(&g.format, "format", "", "output format: table or json (default: table on a terminal)")
	flags.String("base-url", "", "backend base URL (overrides api.base_url)")
	flags.String("log-level", "", "log level: debug, info, warn, error")

	root.AddCommand(
		newLoginCmd(g),
		newLogoutCmd(g),
		newWhoamiCmd(g),
		newNotificationsCmd(g),
		newCartCmd(g),
		newCategoriesCmd(g),
		newWatchCmd(g),
		newConfigCmd(g),
	)
	return root
}

// load reads the config file with flag overrides applied.
func (g *globals) load(cmd *cobra.Command) error {
	g.v = model.NewViper(g.configPath)
	flags := cmd.Flags()
	if err := g.v.BindPFlag("api.base_url", flags.Lookup("base-url")); err != nil {
		return fmt.Errorf("binding --base-url: %w", err)
	}
	if err := g.v.BindPFlag("log.level", flags.Lookup("log-level")); err != nil {
		return fmt.Errorf("binding --log-level: %w", err)
	}

	cfg, err := model.LoadConfigFrom(g.v)
	if err != nil {
		return err
	}
	g.cfg = cfg
	return nil
}

func (g *globals) printer(cmd *cobra.Command) (*output.Printer, error) {
	return output.New(cmd.OutOrStdout(), g.format)
}
