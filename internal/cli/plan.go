package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// NewPlanCmd creates the plan command, a shorthand for migrate --dry-run
func NewPlanCmd() *cobra.Command {
	var resume bool

	cmd := &cobra.Command{
		Use:   "plan [file]",
		Short: "Validate a migration and print its steps",
		Long: `Load and validate a migration file and print the steps that would run on the
selected network. Nothing is broadcast and no connection is made.

With --resume, steps completed by the last run are shown as done.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.ExecuteMigrationParams{DryRun: true, Resume: resume}
			if len(args) == 1 {
				params.Path = args[0]
			}
			return runMigration(cmd, app.ExecuteMigration, params, app.Config.JSON)
		},
	}

	cmd.Flags().BoolVar(&resume, "resume", false, "Show which steps a resumed run would skip")
	cmd.Flags().Bool("json", false, "Output the plan as JSON")

	return cmd
}
