package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// NewDeploymentsCmd creates the deployments command
func NewDeploymentsCmd() *cobra.Command {
	var (
		contractName string
		deployType   string
		all          bool
	)

	cmd := &cobra.Command{
		Use:     "deployments",
		Aliases: []string{"ls", "list"},
		Short:   "List deployments from the registry",
		Long: `List contracts recorded in .treb/deployments.json by earlier migrations.

Deployments are shown for the selected network. Use --all to list every
network.`,
		Example: `  # Deployments on harmony_testnet
  treb-migrate deployments -n harmony_testnet

  # Libraries on every network
  treb-migrate deployments --all --type library`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			var deploymentType models.DeploymentType
			switch deployType {
			case "":
			case "singleton", "contract":
				deploymentType = models.SingletonDeployment
			case "library":
				deploymentType = models.LibraryDeployment
			default:
				return fmt.Errorf("invalid deployment type: %s (valid: singleton, library)", deployType)
			}

			params := usecase.ListDeploymentsParams{
				ContractName: contractName,
				Type:         deploymentType,
			}
			if all {
				params.Network = usecase.AllNetworks
			}

			result, err := app.ListDeployments.Run(cmd.Context(), params)
			if err != nil {
				return err
			}

			if app.Config.JSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(result.Deployments)
			}
			return render.NewDeploymentsRenderer(cmd.OutOrStdout()).RenderDeploymentList(result)
		},
	}

	cmd.Flags().StringVar(&contractName, "contract", "", "Filter by contract name")
	cmd.Flags().StringVar(&deployType, "type", "", "Filter by deployment type (singleton, library)")
	cmd.Flags().BoolVar(&all, "all", false, "List deployments on every network")
	cmd.Flags().Bool("json", false, "Output as JSON")

	return cmd
}
