package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Create a starter leapetl project",
		Long: `Create a starter project with a settings file, sample data and two
pipeline documents, one importing the other.

This creates:
  - leapetl.yaml settings
  - data/issues.csv sample data
  - pipelines/issues.yaml, which imports pipelines/shared/open_issues.yaml`,
		Example: `  # Initialize in current directory
  leapetl init

  # Initialize in a new directory
  leapetl init my-project

  # Overwrite existing files
  leapetl init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			return runInit(cmd, dir, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	return cmd
}

func runInit(cmd *cobra.Command, dir string, force bool) error {
	r := NewCommandContextWithoutEngine(cmd).Renderer

	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, "leapetl.yaml")); err == nil && !force {
		return fmt.Errorf("leapetl.yaml already exists. Use --force to overwrite")
	}

	files, err := copyTemplate("example", dir, force)
	if err != nil {
		return fmt.Errorf("failed to initialize project: %w", err)
	}
	for _, f := range files {
		r.Success(f)
	}

	r.Println("")
	r.Println("Next steps:")
	r.Println("  leapetl check pipelines/issues.yaml     Compile without reading data")
	r.Println("  leapetl preview pipelines/issues.yaml   Show the first rows")
	r.Println("  leapetl run pipelines/issues.yaml       Write the exports to out/")
	return nil
}
