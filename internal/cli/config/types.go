// Package config provides configuration management for the leapetl CLI.
//
// Settings are layered: built-in defaults, then leapetl.yaml, then LEAPETL_*
// environment variables, then explicitly set flags.
package config

import (
	"github.com/leapstack-labs/leapetl/pkg/adapter"
	"github.com/leapstack-labs/leapetl/pkg/adapters/duckdb"
)

// Config holds all CLI configuration options.
type Config struct {
	DatabasePath string       `koanf:"database"`
	StatePath    string       `koanf:"state_path"`
	LogLevel     string       `koanf:"log_level"`
	Verbose      bool         `koanf:"verbose"`
	OutputFormat string       `koanf:"output"`
	DuckDB       DuckDBConfig `koanf:"duckdb"`

	// ConfigFile is the settings file that was loaded, if any.
	ConfigFile string `koanf:"-"`
	// ProjectRoot anchors relative paths from the settings file.
	ProjectRoot string `koanf:"-"`
}

// DuckDBConfig holds table engine session settings.
type DuckDBConfig struct {
	Threads     int               `koanf:"threads"`
	MemoryLimit string            `koanf:"memory_limit"`
	Extensions  []string          `koanf:"extensions"`
	Settings    map[string]string `koanf:"settings"`
	Secrets     []map[string]any  `koanf:"secrets"`
}

// Default configuration values.
const (
	DefaultDatabase  = ":memory:"
	DefaultStateFile = ".leapetl/state.db"
	DefaultLogLevel  = "warn"
	DefaultOutput    = "auto" // TTY=text, otherwise plain text without styling
)

// Output modes.
const (
	OutputAuto = "auto"
	OutputText = "text"
	OutputJSON = "json"
)

// AdapterConfig builds the table engine connection config.
// Threads and memory_limit are folded into the session settings.
func (c *Config) AdapterConfig() adapter.Config {
	settings := make(map[string]any, len(c.DuckDB.Settings)+2)
	for k, v := range c.DuckDB.Settings {
		settings[k] = v
	}
	if c.DuckDB.Threads > 0 {
		settings["threads"] = c.DuckDB.Threads
	}
	if c.DuckDB.MemoryLimit != "" {
		settings["memory_limit"] = c.DuckDB.MemoryLimit
	}

	params := map[string]any{}
	if len(settings) > 0 {
		params["settings"] = settings
	}
	if len(c.DuckDB.Extensions) > 0 {
		params["extensions"] = c.DuckDB.Extensions
	}
	if len(c.DuckDB.Secrets) > 0 {
		secrets := make([]any, len(c.DuckDB.Secrets))
		for i, s := range c.DuckDB.Secrets {
			secrets[i] = s
		}
		params["secrets"] = secrets
	}

	return adapter.Config{
		Type:   duckdb.Name,
		Path:   c.DatabasePath,
		Params: params,
	}
}
