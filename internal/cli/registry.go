package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/registry"
)

// TypePlan is the dependency plan of one entity type.
type TypePlan struct {
	Type      entity.EntityType   `json:"type"`
	Title     string              `json:"title"`
	Listable  bool                `json:"listable"`
	Fetchable bool                `json:"fetchable"`
	Plan      []entity.EntityType `json:"plan"`
	Children  []entity.EntityType `json:"children,omitempty"`
}

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Inspect the entity registry",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "check",
		Short: "Validate the registry and print each type's dependency plan",
		Long: `Validates that every dependency target is registered, that the
dependency graph is acyclic and that the listable set is complete, then prints
the order in which each type's dependencies are synchronized.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryCheck(&OutputFormatter{Format: rootOpts.Format, Writer: cmd.OutOrStdout()})
		},
	})
	return cmd
}

func buildPlans(reg *registry.Registry) ([]TypePlan, error) {
	plans := make([]TypePlan, 0, len(reg.Types()))
	for _, t := range reg.Types() {
		def, err := reg.Lookup(t)
		if err != nil {
			return nil, err
		}
		plan, err := reg.Plan(t)
		if err != nil {
			return nil, err
		}
		tp := TypePlan{
			Type:      t,
			Title:     t.Title(),
			Listable:  def.Listable,
			Fetchable: def.Fetchable,
			Plan:      plan,
		}
		for _, child := range def.Children {
			tp.Children = append(tp.Children, child.Type)
		}
		plans = append(plans, tp)
	}
	return plans, nil
}

func runRegistryCheck(out *OutputFormatter) error {
	reg, err := registry.Default()
	if err != nil {
		return err
	}
	plans, err := buildPlans(reg)
	if err != nil {
		return err
	}

	if done, err := out.JSON(plans); done {
		return err
	}

	rows := make([][]interface{}, 0, len(plans))
	for _, p := range plans {
		rows = append(rows, []interface{}{p.Type, yesNo(p.Listable), yesNo(p.Fetchable), joinTypes(p.Plan, " > "), joinTypes(p.Children, ", ")})
	}
	if err := out.Table([]interface{}{"TYPE", "LISTABLE", "FETCHABLE", "PLAN", "CHILDREN"}, rows); err != nil {
		return err
	}
	out.Printf("registry ok: %d types, %d listable", len(plans), len(reg.Listable()))
	return nil
}

func joinTypes(types []entity.EntityType, sep string) string {
	if len(types) == 0 {
		return "-"
	}
	parts := make([]string, len(types))
	for i, t := range types {
		parts[i] = string(t)
	}
	return strings.Join(parts, sep)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
