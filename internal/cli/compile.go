package cli

import (
	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
)

// NewCompileCmd creates the compile command
func NewCompileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "compile",
		Short: "Compile contracts with solc into artifacts",
		Long: `Compile every .sol file in the contracts directory with the installed solc and
write one artifact per contract into the artifacts directory.

The solc version must satisfy [compiler] version in migrate.toml, for example
^0.7.6. Set TREB_SOLC to use a solc binary that is not on PATH.

Each contract is listed with its deployed bytecode size. Contracts above the
EIP-170 limit of 24576 bytes are flagged since most chains reject them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := getApp(cmd)
			if err != nil {
				return err
			}

			result, err := app.CompileContracts.Run(cmd.Context())
			if err != nil {
				return err
			}

			return render.NewCompileRenderer(cmd.OutOrStdout(), app.Config.ProjectRoot).RenderCompileResult(result)
		},
	}
}
