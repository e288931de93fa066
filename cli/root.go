// Package cli implements the statectl command tree.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/stevemurr/localstate/app"
	"github.com/stevemurr/localstate/config"
	"github.com/stevemurr/localstate/logging"
	"github.com/stevemurr/localstate/outcome"
)

// RootOptions holds global flags and what PersistentPreRunE builds from them.
type RootOptions struct {
	ConfigPath string
	DataDir    string
	Backend    string
	Verbose    bool

	cfg *config.Config
	log *zap.Logger
}

// NewRootCommand creates the statectl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:           "statectl",
		Short:         "Inspect and edit local app state",
		Long:          "statectl reads and writes the favorites, recent tools, focus stats and consent state kept on this device.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if opts.log != nil {
				_ = opts.log.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (default: none, built-in defaults)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", "", "directory holding state files")
	cmd.PersistentFlags().StringVar(&opts.Backend, "backend", "", "key-value backend (json|sqlite|memory)")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "debug logging")

	cmd.AddCommand(NewFavoritesCommand(opts))
	cmd.AddCommand(NewRecentCommand(opts))
	cmd.AddCommand(NewStatsCommand(opts))
	cmd.AddCommand(NewConsentCommand(opts))
	cmd.AddCommand(NewInspectCommand(opts))
	cmd.AddCommand(NewWatchCommand(opts))

	return cmd
}

// Execute runs statectl and exits non-zero on error.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func (o *RootOptions) setup() error {
	cfg, err := config.Load(o.ConfigPath)
	if err != nil {
		return err
	}
	if o.DataDir != "" {
		cfg.DataDir = o.DataDir
	}
	if o.Backend != "" {
		cfg.Backend = o.Backend
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log, err := logging.New(cfg.Logging, o.Verbose)
	if err != nil {
		return err
	}
	o.cfg = cfg
	o.log = log
	o.log.Debug("config loaded", zap.String("data_dir", cfg.DataDir), zap.String("backend", cfg.Backend))
	return nil
}

// withApp opens the stores for the duration of fn.
func (o *RootOptions) withApp(cmd *cobra.Command, fn func(*app.App) error) error {
	a, err := app.Open(cmd.Context(), o.cfg, o.log)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			o.log.Warn("close store", zap.Error(err))
		}
	}()
	return fn(a)
}

// check turns a failed outcome into a command error.
func check(op string, out outcome.Outcome) error {
	if out.Failed() {
		return fmt.Errorf("%s: %w", op, out.Err)
	}
	return nil
}
