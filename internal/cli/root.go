package cli

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/progress"
	"github.com/trebuchet-org/treb-migrate/internal/app"
	"github.com/trebuchet-org/treb-migrate/internal/cli/render"
	"github.com/trebuchet-org/treb-migrate/internal/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// contextKey is the type for context keys
type contextKey string

const (
	// appKey is the context key for the app instance
	appKey contextKey = "app"
)

// NewRootCmd creates the root command
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "treb-migrate",
		Short: "Ordered contract migrations for EVM networks",
		Long: `treb-migrate runs ordered migrations against an EVM network: it deploys
compiled artifacts, links deployed libraries into dependent bytecode and
submits post-deploy calls, one transaction at a time.

Networks are configured in migrate.toml. Private keys are never stored there:
a network's private_key must reference an environment variable such as
${DEPLOYER_PRIVATE_KEY}, which may be set in .env.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip for help/version commands
			if cmd.Name() == "version" || cmd.Name() == "help" || cmd.Name() == "completion" {
				return nil
			}

			projectRoot, configPath, err := resolveProject(cmd)
			if err != nil {
				return err
			}

			v := config.SetupViper(projectRoot, cmd)
			if configPath != "" {
				v.Set("config", configPath)
			}

			appInstance, err := app.InitApp(v, newProgressSink(cmd, v.GetBool("json")))
			if err != nil {
				return fmt.Errorf("failed to initialize app: %w", err)
			}

			ctx := context.WithValue(cmd.Context(), appKey, appInstance)
			if appInstance.Config.Timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, appInstance.Config.Timeout)
				cmd.PostRun = func(cmd *cobra.Command, args []string) {
					cancel()
				}
			}
			cmd.SetContext(ctx)

			return nil
		},
	}

	// Global flags
	rootCmd.PersistentFlags().StringP("network", "n", "", "Network from migrate.toml (defaults to development when configured)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug output")
	rootCmd.PersistentFlags().Bool("non-interactive", false, "Disable interactive prompts")
	rootCmd.PersistentFlags().String("config", "", "Path to migrate.toml (defaults to the nearest one above the working directory)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "Abort the command after this duration (default 30m)")

	rootCmd.AddGroup(&cobra.Group{
		ID:    "main",
		Title: "Main Commands",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    "management",
		Title: "Management Commands",
	})

	for _, c := range []*cobra.Command{NewMigrateCmd(), NewPlanCmd(), NewCompileCmd()} {
		c.GroupID = "main"
		rootCmd.AddCommand(c)
	}
	for _, c := range []*cobra.Command{NewDeploymentsCmd(), NewShowCmd(), NewNetworksCmd()} {
		c.GroupID = "management"
		rootCmd.AddCommand(c)
	}
	rootCmd.AddCommand(NewVersionCmd())

	return rootCmd
}

// resolveProject finds the project root. An explicit --config pins the root
// to the directory holding it.
func resolveProject(cmd *cobra.Command) (root, configPath string, err error) {
	if f := cmd.Flag("config"); f != nil && f.Changed && f.Value.String() != "" {
		abs, err := filepath.Abs(f.Value.String())
		if err != nil {
			return "", "", fmt.Errorf("failed to resolve --config: %w", err)
		}
		return filepath.Dir(abs), abs, nil
	}

	root, err = config.FindProjectRoot()
	if err != nil {
		return "", "", err
	}
	return root, "", nil
}

// newProgressSink keeps stdout machine readable in JSON mode
func newProgressSink(cmd *cobra.Command, jsonOutput bool) usecase.ProgressSink {
	if jsonOutput {
		return progress.NewNopSink()
	}
	return progress.NewMigrateProgress(render.NewMigrationRenderer(cmd.OutOrStdout()))
}

// getApp retrieves the app instance from the command context
func getApp(cmd *cobra.Command) (*app.App, error) {
	appInstance := cmd.Context().Value(appKey)
	if appInstance == nil {
		return nil, fmt.Errorf("app not initialized")
	}

	a, ok := appInstance.(*app.App)
	if !ok {
		return nil, fmt.Errorf("invalid app instance")
	}

	return a, nil
}
