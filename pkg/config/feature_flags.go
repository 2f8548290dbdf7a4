// Feature flags for experimental functionality in DeltaGraph.
//
// Centralized feature flag management. All flags are loaded from environment
// variables on startup and can be toggled at runtime for testing.
//
// DEFAULTS:
//   - Parallel sync (fan-out fold of the graph's matrices) is ENABLED
//   - Object pooling for scan buffers is ENABLED
//
// Usage:
//
//	if config.IsParallelSyncEnabled() {
//		// fold matrices concurrently
//	}
//
//	// Runtime toggles (for tests)
//	config.DisableParallelSync()
//	defer config.EnableParallelSync()
//
// Environment variables (to DISABLE default-on features if problems occur):
//
//	DELTAGRAPH_PARALLEL_SYNC_ENABLED=false
//	DELTAGRAPH_POOLING_ENABLED=false
package config

import (
	"os"
	"sync"
	"sync/atomic"
)

// Feature flag keys
const (
	// EnvParallelSyncEnabled is the environment variable controlling whether
	// a graph-wide fold runs its matrices' Sync passes concurrently.
	EnvParallelSyncEnabled = "DELTAGRAPH_PARALLEL_SYNC_ENABLED"

	// EnvPoolingEnabled is the environment variable controlling buffer
	// pooling on the scan paths.
	EnvPoolingEnabled = "DELTAGRAPH_POOLING_ENABLED"
)

var (
	// Global feature flag state
	parallelSyncEnabled atomic.Bool
	poolingEnabled      atomic.Bool
	initOnce            sync.Once
)

func init() {
	// Check environment variables on startup
	initOnce.Do(func() {
		// Default-on features - disable with "false" or "0"
		parallelSyncEnabled.Store(true)
		if env := os.Getenv(EnvParallelSyncEnabled); env == "false" || env == "0" {
			parallelSyncEnabled.Store(false)
		}
		poolingEnabled.Store(true)
		if env := os.Getenv(EnvPoolingEnabled); env == "false" || env == "0" {
			poolingEnabled.Store(false)
		}
	})
}

// IsParallelSyncEnabled reports whether graph-wide folds fan out across
// goroutines.
func IsParallelSyncEnabled() bool {
	return parallelSyncEnabled.Load()
}

// EnableParallelSync turns the concurrent fold on at runtime.
func EnableParallelSync() {
	parallelSyncEnabled.Store(true)
}

// DisableParallelSync forces graph-wide folds to run serially.
func DisableParallelSync() {
	parallelSyncEnabled.Store(false)
}

// IsPoolingEnabled reports whether scan-buffer pooling is active.
func IsPoolingEnabled() bool {
	return poolingEnabled.Load()
}

// EnablePooling turns scan-buffer pooling on at runtime.
func EnablePooling() {
	poolingEnabled.Store(true)
}

// DisablePooling turns scan-buffer pooling off at runtime.
func DisablePooling() {
	poolingEnabled.Store(false)
}
