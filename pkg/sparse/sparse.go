// Package sparse provides the sparse matrix primitives DeltaGraph is built on.
//
// The package defines the Matrix interface — the minimal capability surface the
// delta-overlay layer (pkg/delta) consumes — and BitmapMatrix, the default
// in-memory implementation backed by Roaring bitmaps. The delta layer is
// written entirely against the Matrix interface, so any conforming sparse
// backend can be substituted for BitmapMatrix.
//
// Design Principles:
//   - Coordinates are uint64 (row, col), values are uint64 payloads
//   - Boolean relations store the value 1; nothing in the interface is
//     type-specialized
//   - Lookups report absence as (0, false), never as an error
//   - No internal locking: synchronization is owned by the caller
//     (pkg/delta serializes access under its own mutex)
//
// Example Usage:
//
//	m := sparse.NewBitmapMatrix(100, 100)
//	defer m.Free()
//
//	m.Set(3, 7, 42)
//	v, ok := m.Extract(3, 7) // 42, true
//	n := m.NumVals()         // 1
//
//	// Fold another matrix in (used by the delta Sync pass)
//	m.Union(other)      // other wins on conflicting coordinates
//	m.Difference(mask)  // drop every coordinate present in mask
package sparse

import "errors"

// Common errors
var (
	ErrIndexOutOfRange = errors.New("sparse: index out of range")
	ErrShapeMismatch   = errors.New("sparse: shape mismatch")
	ErrResizeFailed    = errors.New("sparse: resize failed")
)

// Matrix is the capability surface consumed by the delta-overlay layer.
//
// Implementations are not required to be thread-safe; callers serialize
// access. All index arguments are validated against the current shape and
// out-of-range access returns ErrIndexOutOfRange (mutators) or a not-found
// result (Extract).
type Matrix interface {
	// Rows returns the number of rows in the matrix domain.
	Rows() uint64

	// Cols returns the number of columns in the matrix domain.
	Cols() uint64

	// Extract returns the value stored at (i, j) and whether an entry
	// exists there. Out-of-range coordinates report not found.
	Extract(i, j uint64) (uint64, bool)

	// Set stores v at (i, j), overwriting any existing entry.
	Set(i, j, v uint64) error

	// Remove deletes the entry at (i, j). Removing an absent entry is a
	// no-op.
	Remove(i, j uint64) error

	// NumVals returns the number of stored entries.
	NumVals() uint64

	// Resize changes the matrix domain to rows x cols. Growing preserves
	// every entry; shrinking discards entries that fall outside the new
	// domain.
	Resize(rows, cols uint64) error

	// Clear removes every entry, keeping the domain unchanged.
	Clear()

	// Clone returns a deep, independent copy of the matrix.
	Clone() Matrix

	// Union folds other into the receiver. Where both matrices hold an
	// entry at the same coordinate, other's value wins. Shapes must match.
	Union(other Matrix) error

	// Difference removes from the receiver every coordinate that has an
	// entry in other, regardless of value. Shapes must match.
	Difference(other Matrix) error

	// Scan visits every entry in row-major order. Returning false from fn
	// stops the scan.
	Scan(fn func(i, j, v uint64) bool)

	// ScanRow visits every entry of row i in ascending column order.
	// Returning false from fn stops the scan.
	ScanRow(i uint64, fn func(j, v uint64) bool)

	// Free releases the matrix's internal storage. The matrix must not be
	// used afterwards.
	Free()
}

// Factory creates a Matrix with the given domain. pkg/delta accepts a Factory
// so the backing implementation is injectable; NewBitmapMatrix is the default.
type Factory func(rows, cols uint64) Matrix
