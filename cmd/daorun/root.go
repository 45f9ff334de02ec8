package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/daokit/config"
)

// app carries state shared by the subcommands.
type app struct {
	configPath string
	debug      bool

	cfg    config.File
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "daorun",
		Short:         "Run DAOPHOT and ALLSTAR pipelines",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.load(cmd)
		},
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "Path to a YAML, TOML or JSON config file")
	root.PersistentFlags().BoolVar(&a.debug, "debug", false, "Log every command and output line")

	root.AddCommand(newFindCmd(a), newPSFCmd(a), newSchemaCmd())
	return root
}

func (a *app) load(cmd *cobra.Command) error {
	a.cfg = config.Default()
	if a.configPath != "" {
		cfg, err := config.Load(a.configPath)
		if err != nil {
			return err
		}
		a.cfg = cfg
	}
	a.logger = a.cfg.Log.Logger(cmd.ErrOrStderr(), a.debug)
	return nil
}
