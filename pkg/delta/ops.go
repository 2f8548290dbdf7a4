package delta

import (
	"fmt"
	"sync"

	"github.com/orneryd/deltagraph/pkg/pool"
	"github.com/orneryd/deltagraph/pkg/sparse"
)

// ExtractElement returns the value at (i, j) under the overlay precedence
// rule:
//
//  1. deltaPlus first — pending insertions always win.
//  2. Otherwise, if deltaMinus holds a tombstone at (i, j), the tombstone is
//     returned as a found entry with its stored sentinel payload. Callers of
//     this raw accessor must treat a known-deleted coordinate accordingly;
//     higher layers (pkg/graph) consult the overlays directly and never
//     conflate a tombstone with a live entry.
//  3. Otherwise base decides: its entry, or not found.
//
// The lock is taken so a concurrent Sync can never be observed mid-fold,
// where an entry would transiently exist in no container.
func (m *Matrix) ExtractElement(i, j uint64) (uint64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.extractElement(i, j)
}

func (m *Matrix) extractElement(i, j uint64) (uint64, bool) {
	if v, ok := m.deltaPlus.Extract(i, j); ok {
		return v, true
	}
	if v, ok := m.deltaMinus.Extract(i, j); ok {
		return v, true
	}
	return m.base.Extract(i, j)
}

// SetElement inserts value v at (i, j), reconciling against any pending
// state for the coordinate:
//
//   - a pending insert is overwritten in place (deltaPlus)
//   - a pending delete is undone: the tombstone is cleared and the value is
//     refreshed on the committed entry, which deltaMinus guarantees exists
//   - a committed entry is refreshed in place
//   - an entirely new coordinate lands in deltaPlus
//
// deltaPlus therefore stays disjoint from base, which is what keeps
// NumEntries an exact identity. Marks the matrix dirty and cascades to the
// transpose mirror with coordinates swapped.
func (m *Matrix) SetElement(i, j, v uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return ErrFreed
	}
	return m.setElement(i, j, v)
}

func (m *Matrix) setElement(i, j, v uint64) error {
	if m.maintainTranspose {
		if err := m.transposed.setElement(j, i, v); err != nil {
			return err
		}
	}

	switch {
	case m.has(m.deltaPlus, i, j):
		if err := m.deltaPlus.Set(i, j, v); err != nil {
			return err
		}
	case m.has(m.deltaMinus, i, j):
		if err := m.deltaMinus.Remove(i, j); err != nil {
			return err
		}
		if err := m.base.Set(i, j, v); err != nil {
			return err
		}
	case m.has(m.base, i, j):
		if err := m.base.Set(i, j, v); err != nil {
			return err
		}
	default:
		if err := m.deltaPlus.Set(i, j, v); err != nil {
			return err
		}
	}

	m.dirty = true
	return nil
}

// RemoveElement deletes the entry at (i, j):
//
//   - a pending, not-yet-folded insert is simply retracted from deltaPlus
//     (base never saw it, so no tombstone is needed)
//   - a committed entry gets a tombstone in deltaMinus
//   - an absent coordinate is a no-op; deletes targeting non-existent
//     entries are the caller's contract to avoid and are not surfaced as
//     faults here
//
// Marks the matrix dirty and cascades to the transpose mirror.
func (m *Matrix) RemoveElement(i, j uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return ErrFreed
	}
	return m.removeElement(i, j)
}

func (m *Matrix) removeElement(i, j uint64) error {
	if m.maintainTranspose {
		if err := m.transposed.removeElement(j, i); err != nil {
			return err
		}
	}

	switch {
	case m.has(m.deltaPlus, i, j):
		if err := m.deltaPlus.Remove(i, j); err != nil {
			return err
		}
	case m.has(m.base, i, j):
		if err := m.deltaMinus.Set(i, j, tombstone); err != nil {
			return err
		}
	default:
		return nil
	}

	m.dirty = true
	return nil
}

// PendingDelete reports whether (i, j) carries a deltaMinus tombstone. This
// is the caller-side contract companion to ExtractElement's step 2: a raw
// extraction that reports "found" for a tombstoned coordinate can be
// disambiguated with this check.
func (m *Matrix) PendingDelete(i, j uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.has(m.deltaMinus, i, j)
}

// NumEntries returns the logical entry count:
//
//	nvals(base) + nvals(deltaPlus) - nvals(deltaMinus)
//
// The identity holds because deltaPlus is kept disjoint from base and
// deltaMinus is always a subset of base's coordinates. There is no runtime
// cross-check; the three cardinality queries keep this O(1).
func (m *Matrix) NumEntries() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.base.NumVals() + m.deltaPlus.NumVals() - m.deltaMinus.NumVals()
}

// Resize changes the logical domain to rows x cols, resizing all three
// containers and, first, the transpose mirror with swapped dimensions. The
// cascade order is fixed (mirror, then base, then deltaPlus, then
// deltaMinus) so a failure part-way leaves a detectable inconsistency rather
// than a silently half-updated mirror.
//
// Resize offers no partial-success contract: on error the matrix must be
// treated as unusable.
func (m *Matrix) Resize(rows, cols uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return ErrFreed
	}
	return m.resize(rows, cols)
}

func (m *Matrix) resize(rows, cols uint64) error {
	if m.maintainTranspose {
		if err := m.transposed.resize(cols, rows); err != nil {
			return err
		}
	}

	if err := m.base.Resize(rows, cols); err != nil {
		return fmt.Errorf("%w: base: %v", ErrResizeFailed, err)
	}
	if err := m.deltaPlus.Resize(rows, cols); err != nil {
		return fmt.Errorf("%w: delta-plus: %v", ErrResizeFailed, err)
	}
	if err := m.deltaMinus.Resize(rows, cols); err != nil {
		return fmt.Errorf("%w: delta-minus: %v", ErrResizeFailed, err)
	}
	return nil
}

// Clear empties the logical matrix: all three containers lose every entry,
// the domain is unchanged, and the matrix is left clean. Cascades to the
// mirror.
func (m *Matrix) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return ErrFreed
	}
	m.clear()
	return nil
}

func (m *Matrix) clear() {
	if m.maintainTranspose {
		m.transposed.clear()
	}
	m.base.Clear()
	m.deltaPlus.Clear()
	m.deltaMinus.Clear()
	m.dirty = false
}

// Copy returns an independent delta matrix with the same logical content,
// overlay layout, flags, and (if maintained) a copied transpose mirror.
func (m *Matrix) Copy() (*Matrix, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return nil, ErrFreed
	}

	c := &Matrix{
		mu:                &sync.Mutex{},
		base:              m.base.Clone(),
		deltaPlus:         m.deltaPlus.Clone(),
		deltaMinus:        m.deltaMinus.Clone(),
		dirty:             m.dirty,
		multiEdge:         m.multiEdge,
		maintainTranspose: m.maintainTranspose,
	}
	if m.maintainTranspose {
		t := m.transposed
		c.transposed = &Matrix{
			mu:         c.mu,
			base:       t.base.Clone(),
			deltaPlus:  t.deltaPlus.Clone(),
			deltaMinus: t.deltaMinus.Clone(),
			dirty:      t.dirty,
			multiEdge:  t.multiEdge,
		}
	}
	return c, nil
}

// ExtractTuples returns every logical entry as (row, col, val) triples:
// committed entries first (minus pending deletes) in row-major order, then
// pending insertions in row-major order. The result is a fresh slice owned by
// the caller; a pooled buffer absorbs the scan itself.
func (m *Matrix) ExtractTuples() []pool.Tuple {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return nil
	}

	buf := pool.GetTupleSlice()
	defer pool.PutTupleSlice(buf)

	m.base.Scan(func(i, j, v uint64) bool {
		if _, deleted := m.deltaMinus.Extract(i, j); !deleted {
			buf = append(buf, pool.Tuple{Row: i, Col: j, Val: v})
		}
		return true
	})
	m.deltaPlus.Scan(func(i, j, v uint64) bool {
		buf = append(buf, pool.Tuple{Row: i, Col: j, Val: v})
		return true
	})

	out := make([]pool.Tuple, len(buf))
	copy(out, buf)
	return out
}

// has reports structural presence without caring about the payload.
func (m *Matrix) has(c sparse.Matrix, i, j uint64) bool {
	_, ok := c.Extract(i, j)
	return ok
}
