package recorder

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config configures a Recorder's limits, redaction patterns, and backend
// selection. Loaded the same way the rest of the ecosystem loads its
// agent/session config: a plain YAML document unmarshaled into tagged
// struct fields.
type Config struct {
	MaxSteps          int    `yaml:"max_steps"`
	MaxSnapshotBytes  int64  `yaml:"max_snapshot_bytes"`
	Strict            bool   `yaml:"strict"`
	Redaction         RedactionConfig `yaml:"redaction,omitempty"`
	Store             StoreConfig     `yaml:"store,omitempty"`
	Lock              LockConfig      `yaml:"lock,omitempty"`
}

// RedactionConfig configures the recorder's redaction pipeline.
type RedactionConfig struct {
	Patterns   []string `yaml:"patterns,omitempty"`
	KeyPattern string   `yaml:"key_pattern,omitempty"`
}

// StoreConfig selects and configures the artifact store backend.
type StoreConfig struct {
	Backend string `yaml:"backend"` // "file" | "firestore"
	BaseDir string `yaml:"base_dir,omitempty"`
}

// LockConfig selects and configures the active-run exclusivity backend.
type LockConfig struct {
	Backend   string `yaml:"backend"` // "local" | "redis"
	RedisAddr string `yaml:"redis_addr,omitempty"`
}

// DefaultConfig returns the configuration described in SPEC_FULL.md §10:
// a 1000-step ceiling, a 10MB snapshot ceiling, strict mode on, the
// package's default redaction patterns, and a local file store with an
// in-process lock.
func DefaultConfig() Config {
	return Config{
		MaxSteps:         1000,
		MaxSnapshotBytes: 10 * 1024 * 1024,
		Strict:           true,
		Store:            StoreConfig{Backend: "file", BaseDir: "traces"},
		Lock:             LockConfig{Backend: "local"},
	}
}

// LoadConfig reads and unmarshals a YAML config file, filling in defaults
// for any zero-valued field the file leaves unset.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied config path
	if err != nil {
		return cfg, fmt.Errorf("recorder: read config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("recorder: parse config: %w", err)
	}

	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = 1000
	}
	if cfg.MaxSnapshotBytes <= 0 {
		cfg.MaxSnapshotBytes = 10 * 1024 * 1024
	}
	if cfg.Store.Backend == "" {
		cfg.Store.Backend = "file"
	}
	if cfg.Lock.Backend == "" {
		cfg.Lock.Backend = "local"
	}
	return cfg, nil
}
