package delta

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/deltagraph/pkg/sparse"
)

func TestSync(t *testing.T) {
	t.Run("folds_overlays_into_base", func(t *testing.T) {
		m := newMatrix(t, 10, 10, nil)
		require.NoError(t, m.SetElement(0, 0, 1))
		require.NoError(t, m.SetElement(0, 1, 2))
		require.NoError(t, m.Sync())
		require.NoError(t, m.RemoveElement(0, 0))
		require.NoError(t, m.SetElement(5, 5, 3))

		require.NoError(t, m.Sync())

		assert.False(t, m.IsDirty())
		assert.Equal(t, uint64(0), m.DeltaPlus().NumVals())
		assert.Equal(t, uint64(2), m.Underlying().NumVals())

		// post-sync logical content == (base0 ∪ inserts) \ deletes
		_, ok := m.ExtractElement(0, 0)
		assert.False(t, ok)
		v, ok := m.ExtractElement(0, 1)
		assert.True(t, ok)
		assert.Equal(t, uint64(2), v)
		v, ok = m.ExtractElement(5, 5)
		assert.True(t, ok)
		assert.Equal(t, uint64(3), v)
	})

	t.Run("idempotent", func(t *testing.T) {
		m := newMatrix(t, 10, 10, nil)
		require.NoError(t, m.SetElement(1, 2, 3))
		require.NoError(t, m.RemoveElement(1, 2))
		require.NoError(t, m.SetElement(4, 4, 4))

		require.NoError(t, m.Sync())
		baseAfterFirst := m.Underlying().NumVals()
		entriesAfterFirst := m.NumEntries()

		require.NoError(t, m.Sync())
		assert.Equal(t, baseAfterFirst, m.Underlying().NumVals())
		assert.Equal(t, entriesAfterFirst, m.NumEntries())
		assert.False(t, m.IsDirty())
	})

	t.Run("clean_matrix_is_noop", func(t *testing.T) {
		m := newMatrix(t, 10, 10, nil)
		require.NoError(t, m.Sync())
		assert.False(t, m.IsDirty())
		assert.Equal(t, uint64(0), m.NumEntries())
	})

	t.Run("insertion_wins_on_refold", func(t *testing.T) {
		m := newMatrix(t, 10, 10, nil)
		require.NoError(t, m.SetElement(7, 7, 1))
		require.NoError(t, m.Sync())
		// delete then re-create the coordinate between folds
		require.NoError(t, m.RemoveElement(7, 7))
		require.NoError(t, m.SetElement(7, 7, 2))
		require.NoError(t, m.Sync())

		v, ok := m.ExtractElement(7, 7)
		assert.True(t, ok)
		assert.Equal(t, uint64(2), v)
		assert.Equal(t, uint64(1), m.Underlying().NumVals())
	})

	t.Run("commutes_with_transpose", func(t *testing.T) {
		m := newMatrix(t, 6, 6, &Config{MaintainTranspose: true})
		require.NoError(t, m.SetElement(0, 5, 11))
		require.NoError(t, m.SetElement(2, 3, 12))
		require.NoError(t, m.Sync())
		require.NoError(t, m.RemoveElement(0, 5))
		require.NoError(t, m.Sync())

		tr := m.Transpose()
		primary := dump(m.Underlying())
		mirror := dump(tr.Underlying())
		require.Len(t, mirror, len(primary))
		for c, v := range primary {
			mv, ok := mirror[[2]uint64{c[1], c[0]}]
			assert.True(t, ok, "mirror missing transposed coordinate of %v", c)
			assert.Equal(t, v, mv)
		}
	})
}

// dump flattens a sparse matrix into a coordinate map.
func dump(m sparse.Matrix) map[[2]uint64]uint64 {
	out := make(map[[2]uint64]uint64)
	m.Scan(func(i, j, v uint64) bool {
		out[[2]uint64{i, j}] = v
		return true
	})
	return out
}

// failingMatrix wraps a sparse.Matrix and fails Resize on demand, standing in
// for a provider whose underlying resize can fail.
type failingMatrix struct {
	sparse.Matrix
	failResize bool
}

var errBackend = errors.New("backend exploded")

func (f *failingMatrix) Resize(rows, cols uint64) error {
	if f.failResize {
		return errBackend
	}
	return f.Matrix.Resize(rows, cols)
}

func TestResizeFailureIsFatal(t *testing.T) {
	created := 0
	m := newMatrix(t, 4, 4, &Config{
		Provider: func(rows, cols uint64) sparse.Matrix {
			created++
			// fail on the deltaPlus container only
			return &failingMatrix{
				Matrix:     sparse.NewMatrix(rows, cols),
				failResize: created == 2,
			}
		},
	})

	err := m.Resize(8, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrResizeFailed)
	// no partial-success contract: the matrix is unusable now, and the
	// containers are visibly out of step
	assert.Equal(t, uint64(8), m.Underlying().Rows())
	assert.Equal(t, uint64(4), m.DeltaPlus().Rows())
}
