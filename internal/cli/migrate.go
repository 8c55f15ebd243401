package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// NewMigrateCmd creates the migrate command
func NewMigrateCmd() *cobra.Command {
	var (
		dryRun bool
		resume bool
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "migrate [file]",
		Short: "Run a migration against a network",
		Long: `Run the steps of a migration file in order against the selected network.

Without a file argument the migrations directory is searched. When it holds
more than one file you are asked to pick one.

Steps are validated before anything is broadcast. The run stops at the first
failing step and prints the contracts deployed so far. Progress is saved in
.treb/runs so that --resume can continue from the failed step without
redeploying finished contracts.`,
		Example: `  # Deploy to the local development node
  treb-migrate migrate

  # Deploy to Harmony testnet, key read from $DEPLOYER_PRIVATE_KEY
  treb-migrate migrate migrations/2_deploy.yaml -n harmony_testnet

  # Continue a failed run
  treb-migrate migrate -n harmony_testnet --resume`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			params := usecase.ExecuteMigrationParams{
				DryRun: dryRun,
				Resume: resume,
				Yes:    yes,
			}
			if len(args) == 1 {
				params.Path = args[0]
			}

			return runMigration(cmd, app.ExecuteMigration, params, app.Config.JSON)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and print the plan without broadcasting")
	cmd.Flags().BoolVar(&resume, "resume", false, "Continue the last failed run of this migration on this network")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the broadcast confirmation")
	cmd.Flags().Bool("json", false, "Output the result as JSON")

	return cmd
}

func runMigration(cmd *cobra.Command, uc *usecase.ExecuteMigration, params usecase.ExecuteMigrationParams, jsonOutput bool) error {
	result, err := uc.Run(cmd.Context(), params)
	renderer := render.NewMigrationRenderer(cmd.OutOrStdout())

	if result == nil {
		return err
	}
	if jsonOutput {
		if jsonErr := renderer.RenderJSON(result, err); jsonErr != nil {
			return jsonErr
		}
		return err
	}

	renderer.RenderResult(result)
	return err
}
