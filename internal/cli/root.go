// Package cli implements syncctl, the operator CLI of the sync engine.
package cli

import (
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/app"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/config"
	"github.com/wekeepgrowing/stripe-notion-sync/pkg/logger"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Format     string // "json" | "text"
	ConfigPath string

	// open wires the application; tests replace it.
	open func(opts *RootOptions) (*app.App, error)
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for syncctl.
func NewRootCommand() *cobra.Command {
	return newRootCommand(openApp)
}

func newRootCommand(open func(opts *RootOptions) (*app.App, error)) *cobra.Command {
	opts := &RootOptions{open: open}

	cmd := &cobra.Command{
		Use:   "syncctl",
		Short: "Operate the Stripe to Notion sync engine",
		Long: `syncctl drives backfills, inspects and resets entity mappings,
syncs single records and checks the entity registry.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", "", "config file (overrides CONFIG_PATH)")

	// Add subcommands
	cmd.AddCommand(NewRegistryCommand(opts))
	cmd.AddCommand(NewBackfillCommand(opts))
	cmd.AddCommand(NewMappingsCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))

	return cmd
}

// openApp loads the configuration and wires the database and usecases.
func openApp(opts *RootOptions) (*app.App, error) {
	if opts.ConfigPath != "" {
		os.Setenv("CONFIG_PATH", opts.ConfigPath)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, err
	}

	// keep stdout for command output
	cfg.Log.Output = "stderr"
	zapLogger, err := logger.NewZapLogger(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return app.New(cfg, zapLogger)
}
