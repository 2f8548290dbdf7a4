package delta

import "fmt"

// Sync folds both overlays into the base matrix and resets the dirty state:
//
//	base = (base ∪ deltaPlus) \ deltaMinus
//
// deltaPlus wins on conflicting coordinates during the union, deltaMinus is
// applied as a structural mask (values ignored), and both overlays are left
// empty. After Sync the base alone represents the committed state and can be
// handed to bulk algebra via Underlying.
//
// The transpose mirror is folded first with an equivalent pass of its own;
// folding commutes with transposition, so the mirror's post-Sync base is the
// exact transpose of the primary's.
//
// Sync is idempotent: with no intervening mutation a second call leaves base,
// NumEntries, and the dirty flag unchanged. When to call it — eagerly,
// batched, or on first read after a write — is the caller's policy; this
// layer only exposes the primitive and IsDirty.
func (m *Matrix) Sync() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.base == nil {
		return ErrFreed
	}
	return m.sync()
}

func (m *Matrix) sync() error {
	if m.maintainTranspose {
		if err := m.transposed.sync(); err != nil {
			return err
		}
	}

	if !m.dirty {
		return nil
	}

	if err := m.base.Union(m.deltaPlus); err != nil {
		return fmt.Errorf("%w: fold delta-plus: %v", ErrSyncFailed, err)
	}
	if err := m.base.Difference(m.deltaMinus); err != nil {
		return fmt.Errorf("%w: fold delta-minus: %v", ErrSyncFailed, err)
	}
	m.deltaPlus.Clear()
	m.deltaMinus.Clear()
	m.dirty = false
	return nil
}
