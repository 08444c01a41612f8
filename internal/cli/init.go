package cli

import (
	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		Long: `Create the configured SQLite database if it does not exist and
apply the schema and pending migrations. Safe to run repeatedly.

Example:
  recora init --config recora.yaml`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setup(rootOpts)
			if err != nil {
				return err
			}
			defer e.close()

			e.log.Info().Str("database", e.cfg.DatabasePath).Msg("database ready")
			return nil
		},
	}
}
