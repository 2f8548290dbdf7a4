package graph

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/orneryd/deltagraph/pkg/config"
	"github.com/orneryd/deltagraph/pkg/delta"
	"github.com/orneryd/deltagraph/pkg/pool"
)

// noteMutation records one mutation against the sync policy and folds when
// the policy says so. Called with g.mu held.
func (g *Graph) noteMutation() {
	g.pending++
	switch g.cfg.Sync.Policy {
	case config.SyncPolicyEager:
		_ = g.syncAll(context.Background())
	case config.SyncPolicyBatched:
		if g.pending >= g.cfg.Sync.BatchThreshold {
			_ = g.syncAll(context.Background())
		}
	}
	// on-read: nothing to do until a read observes the dirty flag
}

// ensureSynced folds one matrix if a read is about to scan its base while
// pending overlay entries exist.
func (g *Graph) ensureSynced(m *delta.Matrix) error {
	if !m.IsDirty() {
		return nil
	}
	return m.Sync()
}

// SyncAll folds every dirty matrix in the graph concurrently, so the bases
// can be handed to bulk algebra. Each matrix is its own lock domain, which
// is what makes the fan-out safe.
func (g *Graph) SyncAll(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGraphClosed
	}
	return g.syncAll(ctx)
}

// syncAll folds everything. Called with g.mu held.
func (g *Graph) syncAll(ctx context.Context) error {
	matrices := make([]*delta.Matrix, 0, 1+len(g.labels)+len(g.relations))
	matrices = append(matrices, g.adjacency)
	matrices = append(matrices, g.labels...)
	for _, r := range g.relations {
		matrices = append(matrices, r.m)
	}

	if config.IsParallelSyncEnabled() {
		eg, _ := errgroup.WithContext(ctx)
		for _, m := range matrices {
			if !m.IsDirty() {
				continue
			}
			eg.Go(m.Sync)
		}
		if err := eg.Wait(); err != nil {
			return fmt.Errorf("graph: sync: %w", err)
		}
	} else {
		for _, m := range matrices {
			if !m.IsDirty() {
				continue
			}
			if err := m.Sync(); err != nil {
				return fmt.Errorf("graph: sync: %w", err)
			}
		}
	}

	g.pending = 0
	return nil
}

// Dirty reports whether any matrix has pending overlay entries.
func (g *Graph) Dirty() bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.adjacency.IsDirty() {
		return true
	}
	for _, l := range g.labels {
		if l.IsDirty() {
			return true
		}
	}
	for _, r := range g.relations {
		if r.m.IsDirty() {
			return true
		}
	}
	return false
}

// Neighbors returns the nodes reachable from id over one edge of the given
// relation type. The relation matrix is folded first if dirty, then its base
// row is scanned directly.
func (g *Graph) Neighbors(id NodeID, rel RelationID) ([]NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGraphClosed
	}
	if uint64(id) >= g.nextNode {
		return nil, ErrUnknownNode
	}
	if int(rel) < 0 || int(rel) >= len(g.relations) {
		return nil, ErrUnknownRelation
	}
	m := g.relations[rel].m
	if err := g.ensureSynced(m); err != nil {
		return nil, err
	}
	return g.scanRow(m, uint64(id)), nil
}

// IncomingNeighbors returns the nodes with an edge of the given relation
// type pointing at id. With a maintained transpose this is one mirror row
// scan; without one it degrades to a full-matrix column filter.
func (g *Graph) IncomingNeighbors(id NodeID, rel RelationID) ([]NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return nil, ErrGraphClosed
	}
	if uint64(id) >= g.nextNode {
		return nil, ErrUnknownNode
	}
	if int(rel) < 0 || int(rel) >= len(g.relations) {
		return nil, ErrUnknownRelation
	}
	m := g.relations[rel].m
	if err := g.ensureSynced(m); err != nil {
		return nil, err
	}

	if t := m.Transpose(); t != nil {
		return g.scanRow(t, uint64(id)), nil
	}

	ids := pool.GetIDSlice()
	defer pool.PutIDSlice(ids)
	m.Underlying().Scan(func(i, j, _ uint64) bool {
		if j == uint64(id) {
			ids = append(ids, i)
		}
		return true
	})
	return toNodeIDs(ids), nil
}

// scanRow collects the column ids of one base row through a pooled buffer.
func (g *Graph) scanRow(m *delta.Matrix, row uint64) []NodeID {
	ids := pool.GetIDSlice()
	defer pool.PutIDSlice(ids)
	m.Underlying().ScanRow(row, func(j, _ uint64) bool {
		ids = append(ids, j)
		return true
	})
	return toNodeIDs(ids)
}

func toNodeIDs(ids []uint64) []NodeID {
	out := make([]NodeID, len(ids))
	for i, v := range ids {
		out[i] = NodeID(v)
	}
	return out
}
