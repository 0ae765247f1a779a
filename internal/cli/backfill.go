package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/app"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// NewBackfillCommand creates the backfill command group.
func NewBackfillCommand(rootOpts *RootOptions) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "backfill",
		Short: "Run and inspect a tenant's historical sync",
	}
	cmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "tenant ID")
	cmd.MarkPersistentFlagRequired("tenant")

	cmd.AddCommand(&cobra.Command{
		Use:   "run",
		Short: "Run the backfill in the foreground until it completes",
		Long: `Resumes the tenant's backfill from its persisted cursors, or starts a
new run when none is in progress. Interrupting the command keeps the progress
of every finished record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return withApp(rootOpts, func(a *app.App) error {
				state, err := a.Backfill.Run(ctx, tenantID)
				if err != nil {
					return err
				}
				return printState(newFormatter(rootOpts, cmd), state)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the persisted backfill state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, func(a *app.App) error {
				state, err := a.Backfill.Status(cmd.Context(), tenantID)
				if err != nil {
					return err
				}
				return printState(newFormatter(rootOpts, cmd), state)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Drop the backfill progress so the next run starts over",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(rootOpts, func(a *app.App) error {
				if err := a.Backfill.Reset(cmd.Context(), tenantID); err != nil {
					return err
				}
				newFormatter(rootOpts, cmd).Printf("backfill of %s reset", tenantID)
				return nil
			})
		},
	})

	return cmd
}

func newFormatter(opts *RootOptions, cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{Format: opts.Format, Writer: cmd.OutOrStdout()}
}

// withApp opens the application for the duration of fn.
func withApp(opts *RootOptions, fn func(a *app.App) error) error {
	a, err := opts.open(opts)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func printState(out *OutputFormatter, state *entity.BackfillState) error {
	if done, err := out.JSON(state); done {
		return err
	}

	out.Printf("tenant:    %s", state.TenantID)
	out.Printf("run:       %s", state.RunID)
	out.Printf("status:    %s", state.Status)
	out.Printf("processed: %d", state.RecordsProcessed)
	if state.CurrentEntity != "" {
		out.Printf("current:   %s", state.CurrentEntity)
	}
	if len(state.Cursors) == 0 {
		return nil
	}

	rows := make([][]interface{}, 0, len(state.Cursors))
	for _, c := range state.Cursors {
		cursor := c.Cursor
		if cursor == "" {
			cursor = "-"
		}
		rows = append(rows, []interface{}{c.EntityType, yesNo(c.Completed), c.Processed, cursor})
	}
	out.Printf("")
	return out.Table([]interface{}{"TYPE", "COMPLETED", "PROCESSED", "CURSOR"}, rows)
}

// runContext is the command context, or Background outside cobra execution.
func runContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
