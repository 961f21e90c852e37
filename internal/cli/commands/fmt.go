package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapetl/pkg/pipeline"
)

// NewFmtCommand creates the fmt command.
func NewFmtCommand() *cobra.Command {
	var write bool

	cmd := &cobra.Command{
		Use:   "fmt <pipeline.yaml>",
		Short: "Rewrite a pipeline in canonical form",
		Long: `Parse a pipeline document and print it in canonical YAML: shorthand
chains expanded, tags in a fixed order and defaults spelled out where they
are stored. Comments are not preserved. TOML documents are printed as
YAML and cannot be rewritten in place.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runFmt(cmd, args[0], write)
		},
	}

	cmd.Flags().BoolVarP(&write, "write", "w", false, "Write the result back to the file instead of stdout")
	return cmd
}

func runFmt(cmd *cobra.Command, path string, write bool) error {
	cc := NewCommandContextWithoutEngine(cmd)

	doc, err := pipeline.ParseFile(path)
	if err != nil {
		return err
	}
	data, err := pipeline.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to format %s: %w", path, err)
	}

	if !write {
		_, err := cc.Renderer.Writer().Write(data)
		return err
	}
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		return fmt.Errorf("%s is TOML; fmt prints YAML, run without --write to convert it", path)
	}

	current, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if bytes.Equal(current, data) {
		cc.Logger.Debug("already formatted", "path", path)
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, info.Mode().Perm()); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	cc.Renderer.Success("formatted " + path)
	return nil
}
