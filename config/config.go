package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration for vecbind.
type Config struct {
	Bindings []BindingConfig `yaml:"bindings"`
	Server   ServerConfig    `yaml:"server"`
	Insert   InsertConfig    `yaml:"insert"`
	Logging  LoggingConfig   `yaml:"logging"`
}

// BindingConfig declares one entry of the binding environment.
type BindingConfig struct {
	Name   string `yaml:"name"`
	Kind   string `yaml:"kind"`             // "emulator", "memory", "fixture"
	Path   string `yaml:"path,omitempty"`   // bbolt file for kind emulator
	Schema string `yaml:"schema,omitempty"` // "current" or "legacy"

	// Index description for emulator and memory hosts.
	IndexName   string `yaml:"index_name,omitempty"`
	Description string `yaml:"description,omitempty"`
	Dimensions  uint32 `yaml:"dimensions"`
	Metric      string `yaml:"metric"`

	// Fields make up the plain object of a fixture binding.
	Fields map[string]any `yaml:"fields,omitempty"`
	// Responses turn into callable members of a fixture returning the given
	// literal, e.g. describe: {dimensions: 5}.
	Responses map[string]any `yaml:"responses,omitempty"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Address     string        `yaml:"address"`
	RateLimit   int           `yaml:"rate_limit"` // requests per second, 0 = unlimited
	CORSOrigins []string      `yaml:"cors_origins,omitempty"`
	CallTimeout time.Duration `yaml:"call_timeout"`

	// DescribeCacheTTL keeps describe results per binding for this long;
	// 0 disables the cache. Writes through the server drop the entry.
	DescribeCacheTTL time.Duration `yaml:"describe_cache_ttl"`
}

// InsertConfig holds vector file ingestion configuration.
type InsertConfig struct {
	BatchSize   int      `yaml:"batch_size"`
	Concurrency int      `yaml:"concurrency"`
	Includes    []string `yaml:"includes"`
	Excludes    []string `yaml:"excludes"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"` // "text" or "json"
}

const (
	KindEmulator = "emulator"
	KindMemory   = "memory"
	KindFixture  = "fixture"
)

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Bindings: []BindingConfig{
			{
				Name:       "VECTORIZE",
				Kind:       KindMemory,
				IndexName:  "VECTORIZE",
				Dimensions: 0,
				Metric:     "cosine",
			},
		},
		Server: ServerConfig{
			Address:     ":8080",
			RateLimit:   0,
			CallTimeout: 30 * time.Second,
		},
		Insert: InsertConfig{
			BatchSize:   1000,
			Concurrency: 4,
			Includes:    []string{"**/*.json", "**/*.jsonl", "**/*.ndjson"},
			Excludes:    []string{"**/node_modules/**", "**/.git/**", "**/.vecbind/**"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load loads configuration from a YAML file. Environment variables (and a
// .env file next to the config, if present) are expanded before parsing.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := godotenv.Load(filepath.Join(filepath.Dir(path), ".env")); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil // Return defaults if no config file
		}
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for vecbind.yaml).
func LoadFromDir(dir string) (*Config, error) {
	path := filepath.Join(dir, "vecbind.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	path = filepath.Join(dir, ".vecbind", "config.yaml")
	if _, err := os.Stat(path); err == nil {
		return Load(path)
	}

	return DefaultConfig(), nil
}

// Validate checks binding declarations.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Bindings))

	for i, b := range c.Bindings {
		if b.Name == "" {
			return fmt.Errorf("binding %d: name is required", i)
		}
		if seen[b.Name] {
			return fmt.Errorf("binding %s: declared twice", b.Name)
		}
		seen[b.Name] = true

		switch b.Kind {
		case KindEmulator:
			if b.Path == "" {
				return fmt.Errorf("binding %s: path is required for kind %s", b.Name, b.Kind)
			}
		case KindMemory, KindFixture:
		default:
			return fmt.Errorf("binding %s: unknown kind %q", b.Name, b.Kind)
		}
	}

	return nil
}

// Binding returns the declaration with the given name.
func (c *Config) Binding(name string) (BindingConfig, bool) {
	for _, b := range c.Bindings {
		if b.Name == name {
			return b, true
		}
	}
	return BindingConfig{}, false
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// EmulatorPath returns the default bbolt path for an emulated binding.
func EmulatorPath(dir, name string) string {
	return filepath.Join(dir, ".vecbind", name+".db")
}

// EnsureDir ensures the .vecbind directory exists.
func EnsureDir(dir string) error {
	return os.MkdirAll(filepath.Join(dir, ".vecbind"), 0755)
}
