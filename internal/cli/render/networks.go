package render

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// NetworksRenderer renders network lists
type NetworksRenderer struct {
	out io.Writer
}

// NewNetworksRenderer creates a new networks renderer
func NewNetworksRenderer(out io.Writer) *NetworksRenderer {
	return &NetworksRenderer{out: out}
}

// RenderNetworksList renders the configured networks, with the chain id check result
// when they were checked
func (r *NetworksRenderer) RenderNetworksList(result *usecase.ListNetworksResult) error {
	if len(result.Networks) == 0 {
		fmt.Fprintln(r.out, "No networks configured in migrate.toml [networks]")
		return nil
	}

	fmt.Fprintln(r.out, "🌐 Available Networks:")
	fmt.Fprintln(r.out)

	for _, network := range result.Networks {
		id := "any chain"
		if network.NetworkID != 0 {
			id = fmt.Sprintf("Chain ID: %d", network.NetworkID)
		}

		switch {
		case !network.Checked:
			fmt.Fprintf(r.out, "  • %s - %s %s\n", network.Name, id, labelStyle.Sprint(network.RPCURL))
		case network.Error != nil:
			fmt.Fprintf(r.out, "  ❌ %s - Error: %v\n", network.Name, network.Error)
		case network.Mismatch():
			color.New(color.FgYellow).Fprintf(r.out, "  ⚠️  %s - node reports chain %d, configured %d\n",
				network.Name, network.ChainID, network.NetworkID)
		default:
			fmt.Fprintf(r.out, "  ✅ %s - Chain ID: %d\n", network.Name, network.ChainID)
		}
	}

	return nil
}
