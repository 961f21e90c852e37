package config

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFlags() *pflag.FlagSet {
	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("config", "", "")
	flags.String("database", "", "")
	flags.String("state", "", "")
	flags.String("log-level", "", "")
	flags.BoolP("verbose", "v", false, "")
	flags.StringP("output", "o", "", "")
	flags.Int("threads", 0, "")
	flags.String("memory-limit", "", "")
	return flags
}

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	p := filepath.Join(dir, "leapetl.yaml")
	require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)

	cfg, err := Load("", testFlags())
	require.NoError(t, err)

	assert.Equal(t, ":memory:", cfg.DatabasePath)
	assert.Equal(t, filepath.Join(cfg.ProjectRoot, DefaultStateFile), cfg.StatePath)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, OutputAuto, cfg.OutputFormat)
	assert.Empty(t, cfg.ConfigFile)
	assert.Equal(t, slog.LevelWarn, cfg.Level())
}

func TestLoad_Precedence(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, `
database: warehouse.duckdb
log_level: info
output: text
duckdb:
  threads: 2
  memory_limit: 1GB
  extensions: [httpfs]
  settings:
    enable_progress_bar: "false"
`)

	tests := []struct {
		name  string
		env   map[string]string
		args  []string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "file over defaults",
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, filepath.Join(cfg.ProjectRoot, "warehouse.duckdb"), cfg.DatabasePath)
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, 2, cfg.DuckDB.Threads)
				assert.Equal(t, []string{"httpfs"}, cfg.DuckDB.Extensions)
				assert.Equal(t, "false", cfg.DuckDB.Settings["enable_progress_bar"])
			},
		},
		{
			name: "env over file",
			env:  map[string]string{"LEAPETL_LOG_LEVEL": "error", "LEAPETL_DUCKDB_THREADS": "8", "LEAPETL_DUCKDB_MEMORY_LIMIT": "4GB"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "error", cfg.LogLevel)
				assert.Equal(t, 8, cfg.DuckDB.Threads)
				assert.Equal(t, "4GB", cfg.DuckDB.MemoryLimit)
			},
		},
		{
			name: "flags over env",
			env:  map[string]string{"LEAPETL_LOG_LEVEL": "error"},
			args: []string{"--log-level", "debug", "--threads", "3", "--state", "ledger.db", "-o", "json"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "debug", cfg.LogLevel)
				assert.Equal(t, 3, cfg.DuckDB.Threads)
				assert.Equal(t, OutputJSON, cfg.OutputFormat)
				assert.True(t, filepath.IsAbs(cfg.StatePath))
				assert.Equal(t, "ledger.db", filepath.Base(cfg.StatePath))
			},
		},
		{
			name: "unset flags do not override",
			args: []string{"-v"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "info", cfg.LogLevel)
				assert.Equal(t, slog.LevelDebug, cfg.Level())
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			flags := testFlags()
			require.NoError(t, flags.Parse(tt.args))

			cfg, err := Load("", flags)
			require.NoError(t, err)
			assert.NotEmpty(t, cfg.ConfigFile)
			tt.check(t, cfg)
		})
	}
}

func TestLoad_ExplicitConfigAnchorsPaths(t *testing.T) {
	project := t.TempDir()
	p := writeConfig(t, project, "state_path: state/runs.db\n")
	t.Chdir(t.TempDir())

	cfg, err := Load(p, testFlags())
	require.NoError(t, err)

	root, err := filepath.Abs(project)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "state", "runs.db"), cfg.StatePath)
}

func TestLoad_EmptyStatePathDisablesLedger(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	writeConfig(t, dir, "state_path: \"\"\n")

	cfg, err := Load("", testFlags())
	require.NoError(t, err)
	assert.Empty(t, cfg.StatePath)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{name: "log level", content: "log_level: loud\n", wantErr: `invalid log_level "loud"`},
		{name: "output", content: "output: xml\n", wantErr: `invalid output "xml"`},
		{name: "threads", content: "duckdb: {threads: -1}\n", wantErr: "invalid duckdb.threads -1"},
		{name: "yaml", content: "log_level: [\n", wantErr: "error reading config file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			writeConfig(t, dir, tt.content)

			_, err := Load("", testFlags())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	t.Chdir(t.TempDir())
	_, err := Load("nope.yaml", testFlags())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nope.yaml")
}

func TestEnvKey(t *testing.T) {
	tests := map[string]string{
		"LEAPETL_STATE_PATH":          "state_path",
		"LEAPETL_DUCKDB_THREADS":      "duckdb.threads",
		"LEAPETL_DUCKDB_MEMORY_LIMIT": "duckdb.memory_limit",
		"LEAPETL_VERBOSE":             "verbose",
	}
	for in, want := range tests {
		assert.Equal(t, want, envKey(in), in)
	}
}

func TestAdapterConfig(t *testing.T) {
	cfg := &Config{
		DatabasePath: "/tmp/w.duckdb",
		DuckDB: DuckDBConfig{
			Threads:     4,
			MemoryLimit: "2GB",
			Extensions:  []string{"httpfs"},
			Settings:    map[string]string{"timezone": "UTC"},
		},
	}
	got := cfg.AdapterConfig()
	assert.Equal(t, "duckdb", got.Type)
	assert.Equal(t, "/tmp/w.duckdb", got.Path)
	assert.Equal(t, map[string]any{"timezone": "UTC", "threads": 4, "memory_limit": "2GB"}, got.Params["settings"])
	assert.Equal(t, []string{"httpfs"}, got.Params["extensions"])
	assert.NotContains(t, got.Params, "secrets")

	assert.Empty(t, (&Config{}).AdapterConfig().Params)
}

func TestContextHelpers(t *testing.T) {
	ctx := context.Background()
	assert.Equal(t, DefaultStateFile, FromContext(ctx).StatePath)
	assert.NotNil(t, GetLogger(ctx))

	cfg := &Config{StatePath: "x"}
	logger := slog.New(slog.DiscardHandler)
	ctx = WithLogger(WithConfig(ctx, cfg), logger)
	assert.Same(t, cfg, FromContext(ctx))
	assert.Same(t, logger, GetLogger(ctx))
}
