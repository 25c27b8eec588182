package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"vecbind/config"
	"vecbind/internal/env"
)

var (
	cfgFile  string
	cfg      *config.Config
	rootDir  string
	logLevel string
	logger   = logrus.New()
)

var rootCmd = &cobra.Command{
	Use:   "vecbind",
	Short: "Typed access to dynamic vector index bindings",
	Long: `vecbind resolves the vector index bindings declared in vecbind.yaml into
a typed client and lets you describe them, insert vector files into them, or
serve them over HTTP.

Example usage:
  vecbind bindings                       # List declared bindings
  vecbind describe VECTORIZE             # Print index details as JSON
  vecbind insert VECTORIZE ./vectors     # Insert vector files
  vecbind serve                          # Serve bindings over HTTP`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if rootDir == "" {
			rootDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(rootDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		return setupLogging(cfg.Logging)
	},
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./vecbind.yaml)")
	rootCmd.PersistentFlags().StringVarP(&rootDir, "dir", "d", "", "root directory (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level, overrides logging.level")
}

func setupLogging(lc config.LoggingConfig) error {
	level := lc.Level
	if logLevel != "" {
		level = logLevel
	}

	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	logger.SetLevel(lvl)
	logger.SetOutput(os.Stderr)

	switch strings.ToLower(lc.Format) {
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format: %q", lc.Format)
	}

	return nil
}

// openEnv builds the configured environment. Relative emulator paths are
// resolved against the root directory.
func openEnv() (*env.Env, error) {
	c := *cfg
	c.Bindings = make([]config.BindingConfig, len(cfg.Bindings))

	for i, b := range cfg.Bindings {
		if b.Kind == config.KindEmulator && !filepath.IsAbs(b.Path) {
			b.Path = filepath.Join(rootDir, b.Path)
		}
		c.Bindings[i] = b
	}

	e, err := env.New(&c, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open bindings: %w", err)
	}
	return e, nil
}

func GetConfig() *config.Config {
	return cfg
}

func GetRootDir() string {
	return rootDir
}
