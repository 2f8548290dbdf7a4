// Package config handles DeltaGraph configuration via environment variables
// and optional YAML files.
//
// Configuration is loaded with LoadFromEnv() — every setting has a
// DELTAGRAPH_-prefixed environment variable — or from a YAML file with
// LoadFromFile(). Either way, Validate() should be called before use.
//
// Environment Variables:
//   - DELTAGRAPH_NODE_CAPACITY=16384       (initial matrix domain, also the growth block)
//   - DELTAGRAPH_MAINTAIN_TRANSPOSE=true   (keep transpose mirrors on every matrix)
//   - DELTAGRAPH_SYNC_POLICY=batched       (eager | batched | on-read)
//   - DELTAGRAPH_SYNC_BATCH_THRESHOLD=10000
//
// Example Usage:
//
//	cfg := config.LoadFromEnv()
//	if err := cfg.Validate(); err != nil {
//		log.Fatalf("invalid config: %v", err)
//	}
//	g := graph.New(cfg)
package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Sync policies. The delta core only exposes the Sync primitive and the
// dirty flag; when to fold is decided up here.
const (
	// SyncPolicyEager folds overlays after every mutation.
	SyncPolicyEager = "eager"
	// SyncPolicyBatched folds after BatchThreshold mutations.
	SyncPolicyBatched = "batched"
	// SyncPolicyOnRead folds lazily, on the first read that observes a
	// dirty matrix.
	SyncPolicyOnRead = "on-read"
)

// Config holds all DeltaGraph configuration.
type Config struct {
	// Matrix settings
	Matrix MatrixConfig `yaml:"matrix"`

	// Sync (overlay fold) settings
	Sync SyncConfig `yaml:"sync"`
}

// MatrixConfig controls matrix construction and growth.
type MatrixConfig struct {
	// NodeCapacity is the initial node domain of every matrix, and the
	// block size by which the domain grows when it fills up.
	NodeCapacity uint64 `yaml:"node_capacity"`

	// MaintainTranspose keeps a transpose mirror on the adjacency and
	// relation matrices, giving O(degree) incoming-edge queries at the cost
	// of doubled mutation work.
	MaintainTranspose bool `yaml:"maintain_transpose"`
}

// SyncConfig controls when pending overlays are folded into base matrices.
type SyncConfig struct {
	// Policy is one of eager, batched, on-read.
	Policy string `yaml:"policy"`

	// BatchThreshold is the mutation count that triggers a fold under the
	// batched policy.
	BatchThreshold int `yaml:"batch_threshold"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Matrix: MatrixConfig{
			NodeCapacity:      16384,
			MaintainTranspose: true,
		},
		Sync: SyncConfig{
			Policy:         SyncPolicyBatched,
			BatchThreshold: 10000,
		},
	}
}

// LoadFromEnv builds a Config from environment variables, falling back to
// defaults for anything unset.
func LoadFromEnv() *Config {
	cfg := Default()

	if v := os.Getenv("DELTAGRAPH_NODE_CAPACITY"); v != "" {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Matrix.NodeCapacity = n
		}
	}
	if v := os.Getenv("DELTAGRAPH_MAINTAIN_TRANSPOSE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Matrix.MaintainTranspose = b
		}
	}
	if v := os.Getenv("DELTAGRAPH_SYNC_POLICY"); v != "" {
		cfg.Sync.Policy = v
	}
	if v := os.Getenv("DELTAGRAPH_SYNC_BATCH_THRESHOLD"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Sync.BatchThreshold = n
		}
	}

	return cfg
}

// LoadFromFile reads a YAML config file. Settings absent from the file keep
// their defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks the configuration for contradictions.
func (c *Config) Validate() error {
	if c.Matrix.NodeCapacity == 0 {
		return fmt.Errorf("config: node_capacity must be > 0")
	}
	switch c.Sync.Policy {
	case SyncPolicyEager, SyncPolicyBatched, SyncPolicyOnRead:
	default:
		return fmt.Errorf("config: unknown sync policy %q", c.Sync.Policy)
	}
	if c.Sync.Policy == SyncPolicyBatched && c.Sync.BatchThreshold <= 0 {
		return fmt.Errorf("config: batch_threshold must be > 0 for the batched policy")
	}
	return nil
}
