package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"vecbind/config"
)

var (
	initDimensions uint32
	initMetric     string
	initForce      bool
)

var initCmd = &cobra.Command{
	Use:   "init [name]",
	Short: "Write a vecbind.yaml with a local emulated binding",
	Long: `Write vecbind.yaml in the root directory declaring one emulator binding
(default VECTORIZE) stored in .vecbind/<name>.db.

Examples:
  vecbind init
  vecbind init DOCS --dimensions 768 --metric dot-product`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func init() {
	initCmd.Flags().Uint32Var(&initDimensions, "dimensions", 0, "vector dimensions (0 accepts any length)")
	initCmd.Flags().StringVar(&initMetric, "metric", "cosine", "distance metric")
	initCmd.Flags().BoolVar(&initForce, "force", false, "overwrite an existing vecbind.yaml")
	rootCmd.AddCommand(initCmd)
}

func runInit(cmd *cobra.Command, args []string) error {
	name := "VECTORIZE"
	if len(args) > 0 {
		name = args[0]
	}

	root := GetRootDir()
	path := filepath.Join(root, "vecbind.yaml")

	if _, err := os.Stat(path); err == nil && !initForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	if err := config.EnsureDir(root); err != nil {
		return fmt.Errorf("failed to create .vecbind directory: %w", err)
	}

	c := config.DefaultConfig()
	c.Bindings = []config.BindingConfig{
		{
			Name:       name,
			Kind:       config.KindEmulator,
			Path:       config.EmulatorPath("", name),
			IndexName:  name,
			Dimensions: initDimensions,
			Metric:     initMetric,
		},
	}

	if err := c.Save(path); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	fmt.Printf("Wrote %s\n", path)
	return nil
}
