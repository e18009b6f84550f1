// Package config handles repository discovery and configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents repository configuration stored in .linkmesh/config.yml.
type Config struct {
	// PageRank iteration parameters.
	Damping       float64 `yaml:"damping,omitempty"`
	MaxIterations int     `yaml:"max_iterations,omitempty"`
	Tolerance     float64 `yaml:"tolerance,omitempty"`

	// Workers bounds batch processing concurrency.
	Workers int `yaml:"workers,omitempty"`

	// Verifier settings.
	VerifyRateLimit float64 `yaml:"verify_rate_limit,omitempty"`
	UserAgent       string  `yaml:"user_agent,omitempty"`

	// Cron expressions for the schedule daemon.
	PageRankSchedule string `yaml:"pagerank_schedule,omitempty"`
	VerifySchedule   string `yaml:"verify_schedule,omitempty"`
}

const (
	// LinkmeshDir is the repository marker directory.
	LinkmeshDir = ".linkmesh"
	// ConfigFile is the config file name.
	ConfigFile = "config.yml"
	// DBFile is the SQLite database file name.
	DBFile = "linkmesh.db"

	// RootEnv overrides repository discovery when set.
	RootEnv = "LM_ROOT"
)

// Default returns the configuration used when config.yml is absent or a
// field is unset.
func Default() *Config {
	return &Config{
		Damping:          0.85,
		MaxIterations:    100,
		Tolerance:        1e-6,
		Workers:          4,
		VerifyRateLimit:  2.0,
		PageRankSchedule: "0 3 * * *",
		VerifySchedule:   "30 4 * * 0",
	}
}

// LinkmeshPath returns the path to the .linkmesh directory from a root path.
func LinkmeshPath(root string) string {
	return filepath.Join(root, LinkmeshDir)
}

// ConfigPath returns the path to config.yml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, LinkmeshDir, ConfigFile)
}

// DBPath returns the path to the database file from a root path.
func DBPath(root string) string {
	return filepath.Join(root, LinkmeshDir, DBFile)
}

// IsRepository checks if the given path contains a linkmesh repository.
func IsRepository(root string) bool {
	info, err := os.Stat(LinkmeshPath(root))
	return err == nil && info.IsDir()
}

// FindRepository walks up from the given path to find a linkmesh repository.
// The LM_ROOT environment variable short-circuits discovery.
func FindRepository(start string) (string, error) {
	if root := os.Getenv(RootEnv); root != "" {
		if !IsRepository(root) {
			return "", fmt.Errorf("%s=%s is not a linkmesh repository", RootEnv, root)
		}
		return root, nil
	}

	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsRepository(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", fmt.Errorf("not in a linkmesh repository (no .linkmesh directory found)")
		}
		abs = parent
	}
}

// configCache caches loaded configs per repository root.
var configCache = map[string]*Config{}

// Load reads configuration from the repository at the given root. A missing
// config.yml yields the defaults; unset fields fall back to them.
func Load(root string) (*Config, error) {
	if cfg, ok := configCache[root]; ok {
		return cfg, nil
	}

	cfg := Default()
	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			configCache[root] = cfg
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	applyDefaults(cfg)

	configCache[root] = cfg
	return cfg, nil
}

// ResetCache clears the cached configs. Useful for testing.
func ResetCache() {
	configCache = map[string]*Config{}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.Damping <= 0 || cfg.Damping >= 1 {
		cfg.Damping = def.Damping
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = def.MaxIterations
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = def.Tolerance
	}
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.VerifyRateLimit <= 0 {
		cfg.VerifyRateLimit = def.VerifyRateLimit
	}
	if cfg.PageRankSchedule == "" {
		cfg.PageRankSchedule = def.PageRankSchedule
	}
	if cfg.VerifySchedule == "" {
		cfg.VerifySchedule = def.VerifySchedule
	}
}

// Save writes configuration to the repository at the given root.
func (c *Config) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Init creates the .linkmesh directory at root with a default config.yml.
func Init(root string) error {
	if IsRepository(root) {
		return fmt.Errorf("already a linkmesh repository: %s", root)
	}
	if err := os.MkdirAll(LinkmeshPath(root), 0755); err != nil {
		return fmt.Errorf("creating repository: %w", err)
	}
	return Default().Save(root)
}
