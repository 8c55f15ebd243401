//go:build wireinject
// +build wireinject

package app

import (
	"github.com/google/wire"
	"github.com/spf13/viper"
	"github.com/trebuchet-org/treb-migrate/internal/adapters"
	"github.com/trebuchet-org/treb-migrate/internal/config"
	"github.com/trebuchet-org/treb-migrate/internal/logging"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// InitApp creates a fully wired App instance
func InitApp(v *viper.Viper, sink usecase.ProgressSink) (*App, error) {
	wire.Build(
		// Configuration
		config.Provider,
		logging.LoggingSet,

		// Adapters
		adapters.AllAdapters,

		// Use cases
		usecase.NewRunMigration,
		usecase.NewExecuteMigration,
		usecase.NewCompileContracts,
		usecase.NewListDeployments,
		usecase.NewShowDeployment,
		usecase.NewListNetworks,

		// App
		NewApp,
	)
	return nil, nil
}
