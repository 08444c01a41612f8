package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/recora/recora/internal/resource"
)

// loadEntry is one resource in a load file.
type loadEntry struct {
	ResourceType string           `json:"resourceType"`
	ID           string           `json:"id,omitempty"`
	Body         map[string]any   `json:"body"`
	Grants       []resource.Grant `json:"grants"`
}

// NewLoadCommand creates the load command.
func NewLoadCommand(rootOpts *RootOptions) *cobra.Command {
	var conditional bool

	cmd := &cobra.Command{
		Use:   "load <file.json>",
		Short: "Load resources from a JSON file",
		Long: `Load resources from a JSON file holding an array of entries:

  [{"resourceType": "Task", "body": {...}, "grants": [...]}, ...]

Each entry is created; with --conditional, entries whose type declares a
uniqueness criterion reuse an existing match instead of duplicating it.

Example:
  recora load --config recora.yaml fixtures/organizations.json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLoad(rootOpts, args[0], conditional)
		},
	}

	cmd.Flags().BoolVar(&conditional, "conditional", false, "use conditional create")

	return cmd
}

func runLoad(rootOpts *RootOptions, path string, conditional bool) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	var entries []loadEntry
	if err := json.Unmarshal(raw, &entries); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}

	e, err := setup(rootOpts)
	if err != nil {
		return err
	}
	defer e.close()

	ctx := context.Background()
	created := 0
	for i, entry := range entries {
		res := &resource.Resource{
			Type:   entry.ResourceType,
			ID:     entry.ID,
			Body:   entry.Body,
			Grants: entry.Grants,
		}

		var stored *resource.Resource
		if conditional {
			var fresh bool
			stored, fresh, err = e.store.ConditionalCreate(ctx, e.identity, res)
			if err == nil && fresh {
				created++
			}
		} else {
			stored, err = e.store.Create(ctx, res)
			if err == nil {
				created++
			}
		}
		if err != nil {
			return fmt.Errorf("entry %d (%s): %w", i, entry.ResourceType, err)
		}
		e.log.Debug().
			Str("resource_type", stored.Type).
			Str("id", stored.ID).
			Int64("version", stored.VersionID).
			Msg("loaded resource")
	}

	e.log.Info().Int("entries", len(entries)).Int("created", created).Msg("load complete")
	return nil
}
