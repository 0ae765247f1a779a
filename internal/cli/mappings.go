package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/app"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

// NewMappingsCommand creates the mappings command group.
func NewMappingsCommand(rootOpts *RootOptions) *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "mappings",
		Short: "Inspect and reset source to destination mappings",
	}
	cmd.PersistentFlags().StringVarP(&tenantID, "tenant", "t", "", "tenant ID")
	cmd.MarkPersistentFlagRequired("tenant")

	var (
		typeName string
		limit    int
		offset   int
	)
	list := &cobra.Command{
		Use:   "list",
		Short: "List mappings, optionally of one entity type",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var t entity.EntityType
			if typeName != "" {
				parsed, ok := entity.ParseEntityType(typeName)
				if !ok {
					return fmt.Errorf("unknown entity type %q", typeName)
				}
				t = parsed
			}
			return withApp(rootOpts, func(a *app.App) error {
				coord, err := a.Sync.Coordinator(tenantID)
				if err != nil {
					return err
				}
				ctx := runContext(cmd)
				mappings, err := coord.List(ctx, t, limit, offset)
				if err != nil {
					return err
				}
				total, err := coord.Count(ctx, t)
				if err != nil {
					return err
				}
				return printMappings(newFormatter(rootOpts, cmd), mappings, total)
			})
		},
	}
	list.Flags().StringVar(&typeName, "type", "", "entity type or Stripe object name")
	list.Flags().IntVar(&limit, "limit", 50, "maximum mappings to print")
	list.Flags().IntVar(&offset, "offset", 0, "mappings to skip")
	cmd.AddCommand(list)

	var confirmed bool
	reset := &cobra.Command{
		Use:   "reset",
		Short: "Forget every mapping of the tenant",
		Long: `Deletes the tenant's mappings. Destination records stay in place and
are matched again by natural key on the next sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return fmt.Errorf("refusing to reset mappings of %s without --yes", tenantID)
			}
			return withApp(rootOpts, func(a *app.App) error {
				coord, err := a.Sync.Coordinator(tenantID)
				if err != nil {
					return err
				}
				deleted, err := coord.Reset(runContext(cmd))
				if err != nil {
					return err
				}
				out := newFormatter(rootOpts, cmd)
				if done, err := out.JSON(map[string]int64{"deleted": deleted}); done {
					return err
				}
				out.Printf("deleted %d mappings of %s", deleted, tenantID)
				return nil
			})
		},
	}
	reset.Flags().BoolVar(&confirmed, "yes", false, "confirm the reset")
	cmd.AddCommand(reset)

	return cmd
}

func printMappings(out *OutputFormatter, mappings []*entity.EntityMapping, total int64) error {
	if done, err := out.JSON(map[string]interface{}{"mappings": mappings, "total": total}); done {
		return err
	}

	rows := make([][]interface{}, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []interface{}{m.EntityType, m.SourceID, m.DestinationID, m.UpdatedAt.Format(time.RFC3339)})
	}
	if err := out.Table([]interface{}{"TYPE", "SOURCE", "DESTINATION", "UPDATED"}, rows); err != nil {
		return err
	}
	out.Printf("%d of %d", len(mappings), total)
	return nil
}
