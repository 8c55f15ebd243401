package render

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// DeploymentRenderer renders detailed information about a single deployment
type DeploymentRenderer struct {
	out io.Writer
}

// NewDeploymentRenderer creates a new deployment renderer
func NewDeploymentRenderer(out io.Writer) *DeploymentRenderer {
	return &DeploymentRenderer{out: out}
}

// RenderDeployment renders detailed deployment information
func (r *DeploymentRenderer) RenderDeployment(deployment *models.Deployment) error {
	color.New(color.FgCyan, color.Bold).Fprintf(r.out, "Deployment: %s\n", deployment.ID)
	fmt.Fprintln(r.out, strings.Repeat("=", 80))

	fmt.Fprintln(r.out, "\nBasic Information:")
	fmt.Fprintf(r.out, "  Contract: %s\n", color.New(color.FgYellow).Sprint(deployment.ContractName))
	fmt.Fprintf(r.out, "  Address: %s\n", deployment.Address)
	fmt.Fprintf(r.out, "  Type: %s\n", deployment.Type)
	fmt.Fprintf(r.out, "  Network: %s (chain %d)\n", deployment.Network, deployment.ChainID)

	fmt.Fprintln(r.out, "\nMigration:")
	fmt.Fprintf(r.out, "  Name: %s\n", deployment.Migration)
	if deployment.RunID != "" {
		fmt.Fprintf(r.out, "  Run: %s\n", deployment.RunID)
	}
	fmt.Fprintf(r.out, "  Step: %d\n", deployment.StepIndex)

	if len(deployment.Libraries) > 0 {
		fmt.Fprintln(r.out, "\nLinked Libraries:")
		names := make([]string, 0, len(deployment.Libraries))
		for name := range deployment.Libraries {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Fprintf(r.out, "  %s: %s\n", color.New(color.FgBlue).Sprint(name), deployment.Libraries[name])
		}
	}

	if deployment.ArtifactPath != "" || deployment.CompilerVersion != "" {
		fmt.Fprintln(r.out, "\nArtifact Information:")
		if deployment.ArtifactPath != "" {
			fmt.Fprintf(r.out, "  Path: %s\n", deployment.ArtifactPath)
		}
		if deployment.CompilerVersion != "" {
			fmt.Fprintf(r.out, "  Compiler: %s\n", deployment.CompilerVersion)
		}
	}

	fmt.Fprintln(r.out, "\nTransaction Information:")
	fmt.Fprintf(r.out, "  Hash: %s\n", deployment.TxHash)
	fmt.Fprintf(r.out, "  Deployer: %s\n", deployment.Deployer)
	fmt.Fprintf(r.out, "  Block: %d\n", deployment.BlockNumber)
	fmt.Fprintf(r.out, "  Gas Used: %d\n", deployment.GasUsed)

	fmt.Fprintln(r.out, "\nTimestamps:")
	fmt.Fprintf(r.out, "  Created: %s\n", deployment.CreatedAt.Format("2006-01-02 15:04:05"))

	return nil
}
