package config

import (
	"fmt"
	"log/slog"
	"strings"
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if _, ok := logLevels[strings.ToLower(c.LogLevel)]; !ok {
		return fmt.Errorf("invalid log_level %q (expected debug, info, warn or error)", c.LogLevel)
	}
	switch c.OutputFormat {
	case OutputAuto, OutputText, OutputJSON:
	default:
		return fmt.Errorf("invalid output %q (expected auto, text or json)", c.OutputFormat)
	}
	if c.DuckDB.Threads < 0 {
		return fmt.Errorf("invalid duckdb.threads %d: must not be negative", c.DuckDB.Threads)
	}
	return nil
}

// Level returns the slog level for the settings. Verbose forces debug.
func (c *Config) Level() slog.Level {
	if c.Verbose {
		return slog.LevelDebug
	}
	if l, ok := logLevels[strings.ToLower(c.LogLevel)]; ok {
		return l
	}
	return slog.LevelWarn
}
