// Package delta implements the delta-overlay sparse matrix at the heart of
// DeltaGraph.
//
// A graph mutates constantly, but bulk sparse algebra (multiply, transpose,
// masked select) is only efficient against a stable, compacted matrix. The
// delta matrix reconciles the two: point mutations land in cheap overlay
// matrices and are folded into the committed base lazily, while every read
// observes the single logical matrix that is the superposition of all three
// containers.
//
// Each Matrix is composed of:
//   - base: the committed matrix, untouched between Sync calls
//   - deltaPlus: entries inserted since the last Sync
//   - deltaMinus: tombstone sentinels for entries deleted since the last Sync
//
// The precedence rule for reads is fixed: deltaPlus first, then deltaMinus,
// then base. A matrix may also maintain a transpose mirror — a second delta
// matrix holding the transposed relation — and every structural mutation on
// the primary cascades to the mirror with row/column swapped.
//
// Example Usage:
//
//	m, err := delta.New(1000, 1000, &delta.Config{MaintainTranspose: true})
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer m.Free()
//
//	m.SetElement(0, 1, 1)    // lands in deltaPlus
//	v, ok := m.ExtractElement(0, 1) // 1, true
//	n := m.NumEntries()      // 1
//
//	// Fold pending changes so bulk algebra can run against the base
//	if m.IsDirty() {
//		if err := m.Sync(); err != nil {
//			log.Fatal(err)
//		}
//	}
//	base := m.Underlying() // compacted, overlay-free matrix
//
// ELI12:
//
// Think of the base matrix as a printed phone book and the overlays as two
// sticky notes on its cover:
//   - New numbers go on the "added" sticky note (deltaPlus)
//   - Disconnected numbers go on the "removed" sticky note (deltaMinus)
//
// Looking up a number means checking the sticky notes first, then the book.
// Reprinting the book for every change would be crazy expensive, so you only
// reprint (Sync) once the notes fill up — and after reprinting, both notes
// are blank and the book alone is correct again.
//
// Thread Safety:
//
// Every operation acquires the matrix's internal mutex, and a transpose
// mirror shares its primary's mutex so the pair is never observably out of
// step. Lock and Unlock are exported for callers that need to coordinate
// multi-step sections against the raw base matrix; do not call other Matrix
// methods while holding the lock.
package delta

import (
	"errors"
	"sync"

	"github.com/orneryd/deltagraph/pkg/sparse"
)

// Common errors
var (
	ErrResizeFailed = errors.New("delta: resize failed")
	ErrSyncFailed   = errors.New("delta: sync failed")
	ErrFreed        = errors.New("delta: matrix freed")
)

// tombstone is the payload stored in deltaMinus for a pending deletion.
// ExtractElement surfaces it as a found entry; see the method's contract.
const tombstone = uint64(1)

// Config controls matrix construction. A nil Config means no transpose
// mirror, no multi-edge, and the default BitmapMatrix provider.
type Config struct {
	// MaintainTranspose keeps an owned mirror matrix holding the transposed
	// relation, updated in lock-step with the primary.
	MaintainTranspose bool

	// MultiEdge marks the relation as allowing parallel entries per
	// coordinate. The flag cascades to the mirror and is consulted by the
	// graph layer; the delta layer itself stores one payload per coordinate.
	MultiEdge bool

	// Provider creates the three backing matrices. Defaults to
	// sparse.NewMatrix.
	Provider sparse.Factory
}

// Matrix is a delta-overlay sparse matrix: a committed base plus pending
// insertion/deletion overlays, with an optional maintained transpose mirror.
//
// All methods are safe for concurrent use. The zero value is not usable;
// construct with New.
type Matrix struct {
	mu *sync.Mutex // shared with the transpose mirror

	base       sparse.Matrix
	deltaPlus  sparse.Matrix
	deltaMinus sparse.Matrix

	dirty     bool
	multiEdge bool

	maintainTranspose bool
	transposed        *Matrix
}

// New creates a rows x cols delta matrix. With cfg.MaintainTranspose set, the
// matrix owns a cols x rows mirror that every mutation cascades to; the
// mirror shares the primary's mutex and is destroyed with it.
func New(rows, cols uint64, cfg *Config) (*Matrix, error) {
	if cfg == nil {
		cfg = &Config{}
	}
	provider := cfg.Provider
	if provider == nil {
		provider = sparse.NewMatrix
	}

	m := &Matrix{
		mu:                &sync.Mutex{},
		base:              provider(rows, cols),
		deltaPlus:         provider(rows, cols),
		deltaMinus:        provider(rows, cols),
		multiEdge:         cfg.MultiEdge,
		maintainTranspose: cfg.MaintainTranspose,
	}

	if cfg.MaintainTranspose {
		m.transposed = &Matrix{
			mu:         m.mu,
			base:       provider(cols, rows),
			deltaPlus:  provider(cols, rows),
			deltaMinus: provider(cols, rows),
			multiEdge:  cfg.MultiEdge,
			// the mirror never cascades back; this is the recursion guard
			maintainTranspose: false,
		}
	}

	return m, nil
}

// Rows returns the number of rows in the logical matrix domain.
func (m *Matrix) Rows() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base.Rows()
}

// Cols returns the number of columns in the logical matrix domain.
func (m *Matrix) Cols() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base.Cols()
}

// IsDirty reports whether any container has been mutated since the last Sync.
func (m *Matrix) IsDirty() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dirty
}

// SetDirty forces the dirty flag, cascading to the mirror.
func (m *Matrix) SetDirty(dirty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setDirty(dirty)
}

func (m *Matrix) setDirty(dirty bool) {
	m.dirty = dirty
	if m.maintainTranspose {
		m.transposed.setDirty(dirty)
	}
}

// MultiEdge reports whether the relation allows parallel entries per
// coordinate.
func (m *Matrix) MultiEdge() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.multiEdge
}

// SetMultiEdge updates the multi-edge flag, cascading to the mirror.
func (m *Matrix) SetMultiEdge(multiEdge bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setMultiEdge(multiEdge)
}

func (m *Matrix) setMultiEdge(multiEdge bool) {
	if m.maintainTranspose {
		m.transposed.setMultiEdge(multiEdge)
	}
	m.multiEdge = multiEdge
}

// Transpose returns the maintained transpose mirror, or nil when the matrix
// was constructed without one. The mirror is borrowed: it is owned by the
// primary and freed with it.
func (m *Matrix) Transpose() *Matrix {
	return m.transposed
}

// Underlying returns the committed base matrix. Callers hand this to bulk
// algebra after a Sync; mutating it directly breaks the overlay invariants.
func (m *Matrix) Underlying() sparse.Matrix {
	return m.base
}

// DeltaPlus returns the pending-insertion overlay. Exposed for diagnostics
// and tests; treat it as read-only.
func (m *Matrix) DeltaPlus() sparse.Matrix {
	return m.deltaPlus
}

// Lock acquires the matrix mutex. The transpose mirror shares the same
// mutex, so holding it freezes the pair.
func (m *Matrix) Lock() {
	m.mu.Lock()
}

// Unlock releases the matrix mutex.
func (m *Matrix) Unlock() {
	m.mu.Unlock()
}

// Free releases the three containers and, if present, the transpose mirror.
// The matrix must not be used afterwards.
func (m *Matrix) Free() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.base == nil {
		return
	}
	m.base.Free()
	m.deltaPlus.Free()
	m.deltaMinus.Free()
	m.base, m.deltaPlus, m.deltaMinus = nil, nil, nil

	if m.maintainTranspose {
		t := m.transposed
		t.base.Free()
		t.deltaPlus.Free()
		t.deltaMinus.Free()
		t.base, t.deltaPlus, t.deltaMinus = nil, nil, nil
	}
}
