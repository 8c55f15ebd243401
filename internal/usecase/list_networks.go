package usecase

import (
	"context"
	"sort"

	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
)

// ListNetworksParams contains parameters for listing networks
type ListNetworksParams struct {
	// Check queries each RPC endpoint for its chain id
	Check bool
}

// ListNetworksResult contains the result of listing networks
type ListNetworksResult struct {
	Networks []NetworkStatus
}

// NetworkStatus represents the status of a network
type NetworkStatus struct {
	Name      string
	RPCURL    string
	NetworkID uint64 // configured id, 0 accepts any
	ChainID   uint64 // reported by the node when checked
	Checked   bool
	Error     error
}

// Mismatch reports whether the node answered with a different chain id
func (s NetworkStatus) Mismatch() bool {
	return s.Checked && s.Error == nil && s.NetworkID != 0 && s.ChainID != s.NetworkID
}

// ListNetworks is a use case for listing configured networks
type ListNetworks struct {
	config   *config.RuntimeConfig
	provider NetworkProvider
}

// NewListNetworks creates a new ListNetworks use case
func NewListNetworks(cfg *config.RuntimeConfig, provider NetworkProvider) *ListNetworks {
	return &ListNetworks{
		config:   cfg,
		provider: provider,
	}
}

// Run executes the use case
func (uc *ListNetworks) Run(ctx context.Context, params ListNetworksParams) (*ListNetworksResult, error) {
	names := uc.config.Project.NetworkNames()
	sort.Strings(names)

	networks := make([]NetworkStatus, 0, len(names))
	for _, name := range names {
		network := uc.config.Project.Networks[name]
		status := NetworkStatus{
			Name:      name,
			RPCURL:    network.RPCURL,
			NetworkID: network.NetworkID,
		}

		if params.Check {
			status.Checked = true
			chainID, err := uc.provider.ChainID(ctx, network)
			if err != nil {
				status.Error = err
			} else {
				status.ChainID = chainID
			}
		}

		networks = append(networks, status)
	}

	return &ListNetworksResult{
		Networks: networks,
	}, nil
}
