package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// NewNetworksCmd creates the networks command
func NewNetworksCmd() *cobra.Command {
	var check bool

	cmd := &cobra.Command{
		Use:   "networks",
		Short: "List networks from migrate.toml",
		Long: `List all networks configured in the [networks] section of migrate.toml.

With --check each RPC endpoint is asked for its chain id, which is compared
with the configured network_id.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.ListNetworks.Run(cmd.Context(), usecase.ListNetworksParams{Check: check})
			if err != nil {
				return err
			}

			return render.NewNetworksRenderer(cmd.OutOrStdout()).RenderNetworksList(result)
		},
	}

	cmd.Flags().BoolVar(&check, "check", false, "Query each RPC endpoint for its chain id")
	return cmd
}
