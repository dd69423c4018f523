package main

import (
	"io"
	"log/slog"

	"github.com/FranksOps/digest/internal/config"
	"github.com/spf13/cobra"
)

// globalOptions carries persistent flags and the loaded config to every
// subcommand.
type globalOptions struct {
	configPath string
	logLevel   string

	cfg    *config.Config
	logger *slog.Logger
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:   "digest",
		Short: "Topic news digests",
		Long: `digest searches recent news for a topic, reads the top articles and
asks a language model for a short numbered summary.

Modes:
  digest run        Build one digest and print it
  digest serve      Serve the HTTP API
  digest schedule   Send daily digests to every registered user
  digest users      Manage users and their topics
  digest history    List stored digests`,
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.load(cmd.ErrOrStderr())
		},
	}

	root.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Config file (yaml, toml or json)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "",
		"Log level: debug, info, warn, error (overrides config)")

	root.AddCommand(
		newRunCmd(opts),
		newServeCmd(opts),
		newScheduleCmd(opts),
		newUsersCmd(opts),
		newHistoryCmd(opts),
	)
	return root
}

func (o *globalOptions) load(stderr io.Writer) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return err
	}
	if o.logLevel != "" {
		cfg.LogLevel = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	o.logger = slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(o.logger)
	o.cfg = cfg
	return nil
}
