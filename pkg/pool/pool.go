// Package pool provides object pooling for DeltaGraph to reduce allocations.
//
// Object pooling reuses allocated objects instead of creating new ones,
// reducing GC pressure for the high-frequency scan paths: neighbor
// collection, edge-id gathering during node deletion, and matrix tuple
// extraction.
//
// Pooled objects:
// - uint64 id slices (node/edge ids from matrix row scans)
// - coordinate tuple slices (matrix dumps)
//
// Usage:
//
//	ids := pool.GetIDSlice()
//	defer pool.PutIDSlice(ids)
//
//	// Use the slice...
//	ids = append(ids, id)
package pool

import (
	"sync"
)

// PoolConfig configures object pooling behavior.
type PoolConfig struct {
	// Enabled controls whether pooling is active
	Enabled bool

	// MaxSize limits maximum slice capacity kept in each pool
	MaxSize int
}

// DefaultMaxSize is the default cap on slice capacity retained by the pools.
const DefaultMaxSize = 65536

var globalConfig = PoolConfig{
	Enabled: true,
	MaxSize: DefaultMaxSize,
}

// Configure sets global pool configuration.
// Should be called early during initialization.
func Configure(config PoolConfig) {
	globalConfig = config

	// Reinitialize pools to ensure New functions are set correctly
	initPools()
}

// initPools reinitializes all pools with their New functions.
func initPools() {
	idSlicePool = sync.Pool{
		New: func() any {
			return make([]uint64, 0, 64)
		},
	}
	tupleSlicePool = sync.Pool{
		New: func() any {
			return make([]Tuple, 0, 64)
		},
	}
}

// IsEnabled returns whether pooling is enabled.
func IsEnabled() bool {
	return globalConfig.Enabled
}

// =============================================================================
// ID Slice Pool (node/edge ids collected from matrix row scans)
// =============================================================================

var idSlicePool = sync.Pool{
	New: func() any {
		return make([]uint64, 0, 64)
	},
}

// GetIDSlice returns an id slice from the pool.
// The returned slice has length 0 but may have capacity.
// Call PutIDSlice when done.
func GetIDSlice() []uint64 {
	if !globalConfig.Enabled {
		return make([]uint64, 0, 64)
	}
	return idSlicePool.Get().([]uint64)[:0]
}

// PutIDSlice returns an id slice to the pool.
func PutIDSlice(ids []uint64) {
	if !globalConfig.Enabled {
		return
	}
	// Don't pool very large slices (memory leak prevention)
	if cap(ids) > globalConfig.MaxSize {
		return
	}
	idSlicePool.Put(ids[:0])
}

// =============================================================================
// Tuple Slice Pool (matrix coordinate dumps)
// =============================================================================

// Tuple is one matrix entry: a coordinate and its payload.
type Tuple struct {
	Row uint64
	Col uint64
	Val uint64
}

var tupleSlicePool = sync.Pool{
	New: func() any {
		return make([]Tuple, 0, 64)
	},
}

// GetTupleSlice returns a tuple slice from the pool.
func GetTupleSlice() []Tuple {
	if !globalConfig.Enabled {
		return make([]Tuple, 0, 64)
	}
	return tupleSlicePool.Get().([]Tuple)[:0]
}

// PutTupleSlice returns a tuple slice to the pool.
func PutTupleSlice(tuples []Tuple) {
	if !globalConfig.Enabled {
		return
	}
	if cap(tuples) > globalConfig.MaxSize {
		return
	}
	tupleSlicePool.Put(tuples[:0])
}
