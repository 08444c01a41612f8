package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/recora/recora/internal/resource"
)

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <Type> <id>",
		Short: "List all versions of a resource",
		Long: `List every stored version of one resource, newest first, including
the tombstone if the resource was deleted.

Example:
  recora history Task 1e9c1b2a-45f0-4c96-9a7e-0a8e3d2f6b11`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(rootOpts, args[0], args[1])
		},
	}
}

func runHistory(rootOpts *RootOptions, resourceType, id string) error {
	e, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	versions, err := e.store.History(context.Background(), e.identity, resourceType, id)
	if err != nil {
		return err
	}

	if rootOpts.Format == "json" {
		return printJSON(versions)
	}
	for _, res := range versions {
		state := "live"
		if res.Deleted {
			state = "deleted"
		}
		fmt.Printf("v%-4d %s %s\n", res.VersionID, resource.FormatTimestamp(res.LastUpdated), state)
	}
	return nil
}
