package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/app"
	"github.com/wekeepgrowing/stripe-notion-sync/internal/domain/entity"
)

var errOpen = errors.New("open failed")

// execute runs the root command with args and a failing app opener.
func execute(t *testing.T, args ...string) (string, int, error) {
	t.Helper()
	opened := 0
	cmd := newRootCommand(func(*RootOptions) (*app.App, error) {
		opened++
		return nil, errOpen
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), opened, err
}

func TestRootCommand(t *testing.T) {
	cmd := NewRootCommand()
	require.NotNil(t, cmd)
	assert.Equal(t, "syncctl", cmd.Use)
	assert.True(t, cmd.SilenceUsage)
}

func TestCommandPresence(t *testing.T) {
	cmd := NewRootCommand()
	commands := [][]string{
		{"registry", "check"},
		{"backfill", "run"},
		{"backfill", "status"},
		{"backfill", "reset"},
		{"mappings", "list"},
		{"mappings", "reset"},
		{"sync"},
	}

	for _, path := range commands {
		t.Run(path[len(path)-1], func(t *testing.T) {
			subCmd, _, err := cmd.Find(path)
			require.NoError(t, err)
			require.NotNil(t, subCmd)
			assert.Equal(t, path[len(path)-1], subCmd.Name())
		})
	}
}

func TestGlobalFlags(t *testing.T) {
	cmd := NewRootCommand()

	formatFlag := cmd.PersistentFlags().Lookup("format")
	require.NotNil(t, formatFlag)
	assert.Equal(t, "text", formatFlag.DefValue)

	configFlag := cmd.PersistentFlags().Lookup("config")
	require.NotNil(t, configFlag)
	assert.Equal(t, "c", configFlag.Shorthand)
}

func TestCommandFlags(t *testing.T) {
	cmd := NewRootCommand()

	listCmd, _, err := cmd.Find([]string{"mappings", "list"})
	require.NoError(t, err)
	limitFlag := listCmd.Flags().Lookup("limit")
	require.NotNil(t, limitFlag)
	assert.Equal(t, "50", limitFlag.DefValue)
	assert.NotNil(t, listCmd.InheritedFlags().Lookup("tenant"))

	syncCmd, _, err := cmd.Find([]string{"sync"})
	require.NoError(t, err)
	forceFlag := syncCmd.Flags().Lookup("force")
	require.NotNil(t, forceFlag)
	assert.Equal(t, "false", forceFlag.DefValue)
}

func TestInvalidFormat(t *testing.T) {
	_, _, err := execute(t, "--format", "yaml", "registry", "check")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid format")
}

func TestRegistryCheck_Text(t *testing.T) {
	out, opened, err := execute(t, "registry", "check")
	require.NoError(t, err)
	assert.Zero(t, opened)

	assert.Contains(t, out, "TYPE")
	assert.Contains(t, out, "PLAN")
	assert.Contains(t, out, "line_item")
	assert.Contains(t, out, "registry ok:")
}

func TestRegistryCheck_JSON(t *testing.T) {
	out, _, err := execute(t, "--format", "json", "registry", "check")
	require.NoError(t, err)

	var plans []TypePlan
	require.NoError(t, json.Unmarshal([]byte(out), &plans))
	require.NotEmpty(t, plans)

	byType := make(map[entity.EntityType]TypePlan, len(plans))
	for _, p := range plans {
		byType[p.Type] = p
		assert.NotContains(t, p.Plan, p.Type)
	}
	assert.Empty(t, byType[entity.Customer].Plan)
	assert.True(t, byType[entity.Customer].Listable)
	assert.Equal(t, []entity.EntityType{entity.Product}, byType[entity.Price].Plan)
	assert.Equal(t, []entity.EntityType{entity.Discount}, byType[entity.InvoiceItem].Children)
}

func TestCommandsValidateBeforeOpening(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"missing tenant", []string{"backfill", "status"}, "tenant"},
		{"reset without confirmation", []string{"mappings", "reset", "-t", "acme"}, "--yes"},
		{"unknown list type", []string{"mappings", "list", "-t", "acme", "--type", "bogus"}, "unknown entity type"},
		{"unknown sync type", []string{"sync", "-t", "acme", "bogus", "x_1"}, "unknown entity type"},
		{"sync arity", []string{"sync", "-t", "acme", "customer"}, "accepts 2 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, opened, err := execute(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Zero(t, opened)
		})
	}
}

func TestCommandsReportOpenErrors(t *testing.T) {
	for _, args := range [][]string{
		{"backfill", "status", "-t", "acme"},
		{"mappings", "list", "-t", "acme"},
		{"mappings", "reset", "-t", "acme", "--yes"},
		{"sync", "-t", "acme", "customer", "cus_1"},
	} {
		_, opened, err := execute(t, args...)
		require.ErrorIs(t, err, errOpen)
		assert.Equal(t, 1, opened)
	}
}
