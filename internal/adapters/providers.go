package adapters

import (
	"github.com/google/wire"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/abi"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/compiler"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/ethereum"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/fs"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/interactive"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/migration"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/repository/contracts"
	"github.com/trebuchet-org/treb-migrate/internal/adapters/repository/deployments"
	"github.com/trebuchet-org/treb-migrate/internal/usecase"
)

// EthereumSet provides the JSON-RPC network provider
var EthereumSet = wire.NewSet(
	ethereum.NewProvider,
	wire.Bind(new(usecase.NetworkProvider), new(*ethereum.Provider)),
)

// RepositorySet provides artifact and registry storage
var RepositorySet = wire.NewSet(
	contracts.NewRepository,
	wire.Bind(new(usecase.ArtifactSource), new(*contracts.Repository)),
	wire.Bind(new(usecase.ArtifactWriter), new(*contracts.Repository)),

	deployments.NewFileRepository,
	wire.Bind(new(usecase.DeploymentRepository), new(*deployments.FileRepository)),
)

// FSSet provides filesystem-based implementations
var FSSet = wire.NewSet(
	fs.NewMigrationStateStore,
	wire.Bind(new(usecase.MigrationStateStore), new(*fs.MigrationStateStore)),
)

// MigrationSet provides migration file loading and argument encoding
var MigrationSet = wire.NewSet(
	migration.NewLoader,
	wire.Bind(new(usecase.MigrationLoader), new(*migration.Loader)),

	abi.NewEncoder,
	wire.Bind(new(usecase.ArgsEncoder), new(*abi.Encoder)),
)

// CompilerSet provides the solc compiler
var CompilerSet = wire.NewSet(
	compiler.NewSolc,
	wire.Bind(new(usecase.Compiler), new(*compiler.Solc)),
)

// InteractiveSet provides interactive implementations
var InteractiveSet = wire.NewSet(
	interactive.NewSelectorAdapter,
	wire.Bind(new(usecase.Confirmer), new(*interactive.SelectorAdapter)),
	wire.Bind(new(usecase.MigrationSelector), new(*interactive.SelectorAdapter)),
)

// AllAdapters includes all adapter sets
var AllAdapters = wire.NewSet(
	EthereumSet,
	RepositorySet,
	FSSet,
	MigrationSet,
	CompilerSet,
	InteractiveSet,
)
