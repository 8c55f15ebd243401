package config

import (
	"path/filepath"
	"time"
)

// RuntimeConfig represents the complete runtime configuration
// This is injected into use cases and contains all resolved settings
type RuntimeConfig struct {
	// Core settings
	ProjectRoot string
	DataDir     string
	ConfigPath  string

	// Context settings
	Network *NetworkConfig // nil if not specified

	// Execution settings
	Debug          bool
	NonInteractive bool
	JSON           bool // Output in JSON format
	Timeout        time.Duration

	// Resolved configurations
	Project *ProjectConfig
}

// ArtifactsDir returns the absolute artifacts directory
func (c *RuntimeConfig) ArtifactsDir() string {
	return c.resolve(c.Project.Artifacts)
}

// MigrationsDir returns the absolute migrations directory
func (c *RuntimeConfig) MigrationsDir() string {
	return c.resolve(c.Project.Migrations)
}

// SourcesDir returns the absolute contracts source directory
func (c *RuntimeConfig) SourcesDir() string {
	return c.resolve(c.Project.Contracts)
}

func (c *RuntimeConfig) resolve(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.ProjectRoot, p)
}
