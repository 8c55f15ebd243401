package app

import (
	"github.com/trebuchet-org/treb-migrate/internal/domain/config"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// App is the main application container that holds all use cases
type App struct {
	// Configuration
	Config *config.RuntimeConfig

	// Use cases
	ExecuteMigration *usecase.ExecuteMigration
	CompileContracts *usecase.CompileContracts
	ListDeployments  *usecase.ListDeployments
	ShowDeployment   *usecase.ShowDeployment
	ListNetworks     *usecase.ListNetworks
}

// NewApp creates a new application instance with all use cases
func NewApp(
	cfg *config.RuntimeConfig,
	executeMigration *usecase.ExecuteMigration,
	compileContracts *usecase.CompileContracts,
	listDeployments *usecase.ListDeployments,
	showDeployment *usecase.ShowDeployment,
	listNetworks *usecase.ListNetworks,
) (*App, error) {
	return &App{
		Config:           cfg,
		ExecuteMigration: executeMigration,
		CompileContracts: compileContracts,
		ListDeployments:  listDeployments,
		ShowDeployment:   showDeployment,
		ListNetworks:     listNetworks,
	}, nil
}
