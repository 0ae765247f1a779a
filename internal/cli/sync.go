package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/app"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/usecase"
)

// NewSyncCommand creates the command that syncs one source record.
func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		tenantID string
		force    bool
	)

	cmd := &cobra.Command{
		Use:   "sync <type> <source-id>",
		Short: "Fetch one source record and write it with its dependencies",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, ok := entity.ParseEntityType(args[0])
			if !ok {
				return fmt.Errorf("unknown entity type %q", args[0])
			}
			return withApp(rootOpts, func(a *app.App) error {
				result, err := a.Sync.SyncEntity(runContext(cmd), tenantID, t, args[1], force)
				if err != nil {
					return err
				}
				return printSyncResult(newFormatter(rootOpts, cmd), result)
			})
		},
	}
	cmd.Flags().StringVarP(&tenantID, "tenant", "t", "", "tenant ID")
	cmd.Flags().BoolVar(&force, "force", false, "rewrite a record that is already mapped")
	cmd.MarkFlagRequired("tenant")

	return cmd
}

func printSyncResult(out *OutputFormatter, result *usecase.SyncResult) error {
	if done, err := out.JSON(result); done {
		return err
	}
	if result.Skipped {
		out.Printf("%s %s skipped: no destination database configured", result.EntityType, result.SourceID)
		return nil
	}

	verb := "unchanged"
	if result.Written {
		verb = "written"
	}
	out.Printf("%s %s %s -> %s", result.EntityType, result.SourceID, verb, result.DestinationID)
	if result.Children.Processed > 0 || result.Children.Failed > 0 {
		out.Printf("children: %d processed, %d failed", result.Children.Processed, result.Children.Failed)
	}
	for _, depErr := range result.DependencyErrors {
		out.Printf("dependency error: %s", depErr)
	}
	return nil
}
