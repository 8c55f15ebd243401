package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/trebuchet-org/treb-migrate/internal/domain"
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/domain/models"
)

// ShowDeploymentParams contains parameters for showing a deployment
type ShowDeploymentParams struct {
	// Query is a registry id (network/chainId/Contract), an address or a
	// contract name. Addresses and names are looked up on the selected network.
	Query string
}

// ShowDeployment is the use case for showing deployment details
type ShowDeployment struct {
	config *config.RuntimeConfig
	repo   DeploymentRepository
	sink   ProgressSink
}

// NewShowDeployment creates a new ShowDeployment use case
func NewShowDeployment(cfg *config.RuntimeConfig, repo DeploymentRepository, sink ProgressSink) *ShowDeployment {
	return &ShowDeployment{
		config: cfg,
		repo:   repo,
		sink:   sink,
	}
}

// Run executes the show deployment use case
func (uc *ShowDeployment) Run(ctx context.Context, params ShowDeploymentParams) (*models.Deployment, error) {
	uc.sink.OnProgress(ctx, ProgressEvent{
		Stage:   "loading",
		Message: "Loading deployment details",
		Spinner: true,
	})
	defer uc.sink.OnProgress(ctx, ProgressEvent{Stage: "complete"})

	query := strings.TrimSpace(params.Query)
	if query == "" {
		return nil, fmt.Errorf("a deployment id, address or contract name is required")
	}

	// Full registry id
	if strings.Count(query, "/") == 2 {
		return uc.repo.GetDeployment(ctx, query)
	}

	network := uc.config.Network
	if network == nil {
		return nil, fmt.Errorf("%w: no network selected, use --network or a full deployment id", domain.ErrConfig)
	}

	if common.IsHexAddress(query) {
		matches, err := uc.repo.ListDeployments(ctx, models.DeploymentFilter{Network: network.Name})
		if err != nil {
			return nil, err
		}
		if len(matches) == 0 {
			return nil, fmt.Errorf("no deployments on %s: %w", network.Name, domain.ErrNotFound)
		}
		return uc.repo.GetDeploymentByAddress(ctx, matches[0].ChainID, query)
	}

	matches, err := uc.repo.ListDeployments(ctx, models.DeploymentFilter{
		Network:      network.Name,
		ContractName: query,
	})
	if err != nil {
		return nil, err
	}
	switch len(matches) {
	case 0:
		return nil, fmt.Errorf("deployment %s on %s: %w", query, network.Name, domain.ErrNotFound)
	case 1:
		return matches[0], nil
	default:
		ids := make([]string, len(matches))
		for i, m := range matches {
			ids[i] = m.ID
		}
		return nil, fmt.Errorf("multiple deployments of %s on %s, use one of: %s", query, network.Name, strings.Join(ids, ", "))
	}
}
