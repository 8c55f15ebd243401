package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// NewShowCmd creates the show command
func NewShowCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <contract|address|id>",
		Short: "Show details of a recorded deployment",
		Long: `Show a deployment from the registry. The argument is a contract name or
address on the selected network, or a full id such as
harmony_testnet/1666700000/LuvNFT.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			deployment, err := app.ShowDeployment.Run(cmd.Context(), usecase.ShowDeploymentParams{Query: args[0]})
			if err != nil {
				return err
			}

			if app.Config.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(deployment)
			}
			return render.NewDeploymentRenderer(cmd.OutOrStdout()).RenderDeployment(deployment)
		},
	}

	cmd.Flags().Bool("json", false, "Output as JSON")
	return cmd
}
