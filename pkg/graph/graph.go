// Package graph implements the property-graph engine layered on delta
// matrices.
//
// Every relation in the graph is a delta matrix (pkg/delta):
//   - one adjacency matrix: adjacency[src][dst] = 1 for every connected pair
//   - one diagonal matrix per label: label[id][id] = 1 when the node carries it
//   - one matrix per relation type: relation[src][dst] = edge id payload
//
// Point mutations (create/delete node, create/delete edge) land in the
// matrices' overlays; bulk reads run against their folded bases. The graph
// owns the sync triggering policy the delta layer deliberately leaves open:
//
//   - eager: fold after every mutation
//   - batched: fold once a configured number of mutations accumulated
//   - on-read: fold lazily when a read observes a dirty matrix
//
// Multi-edge relations store parallel edges the same way the matrices store
// single ones: a cell holds the edge id directly while the pair has one edge,
// and flips to a flagged index into an edge-id list once a parallel edge
// arrives.
//
// Example Usage:
//
//	g := graph.New(config.Default())
//	defer g.Close()
//
//	knows := g.AddRelation("KNOWS", false)
//	person := g.AddLabel("Person")
//
//	alice := g.CreateNode(person)
//	bob := g.CreateNode(person)
//
//	edge, _ := g.CreateEdge(alice, bob, knows)
//	friends, _ := g.Neighbors(alice, knows) // [bob]
//
// Thread Safety:
//
// All methods are safe for concurrent use. The graph serializes topology
// changes under its own mutex; each matrix additionally carries the delta
// layer's per-matrix lock.
package graph

import (
	"errors"
	"fmt"
	"sync"

	"github.com/orneryd/deltagraph/pkg/config"
	"github.com/orneryd/deltagraph/pkg/delta"
	"github.com/orneryd/deltagraph/pkg/pool"
)

// Common errors
var (
	ErrUnknownNode     = errors.New("graph: unknown node")
	ErrUnknownLabel    = errors.New("graph: unknown label")
	ErrUnknownRelation = errors.New("graph: unknown relation")
	ErrEdgeNotFound    = errors.New("graph: edge not found")
	ErrGraphClosed     = errors.New("graph: closed")
)

// NodeID identifies a node; ids double as matrix row/column indices.
type NodeID uint64

// EdgeID identifies an edge; ids double as relation-matrix payloads.
type EdgeID uint64

// LabelID indexes a label matrix.
type LabelID int

// RelationID indexes a relation-type matrix.
type RelationID int

// edgeListFlag marks a relation-matrix payload as an index into the
// relation's parallel-edge lists rather than a direct edge id.
const edgeListFlag = uint64(1) << 63

// Edge is a directed, typed connection between two nodes.
type Edge struct {
	ID       EdgeID
	Src      NodeID
	Dst      NodeID
	Relation RelationID
}

// relation bundles a relation type's matrix with its parallel-edge lists.
type relation struct {
	name      string
	m         *delta.Matrix
	multiEdge bool

	// lists[i] holds the parallel edge ids for cells flagged with
	// edgeListFlag | i. Slots never shrink away; emptied ones are reused
	// only by falling back to direct-id cells.
	lists [][]EdgeID
}

// Graph is a property graph whose topology lives in delta matrices.
type Graph struct {
	mu  sync.Mutex
	cfg *config.Config

	adjacency *delta.Matrix
	labels    []*delta.Matrix
	labelIDs  map[string]LabelID
	relations []*relation
	relIDs    map[string]RelationID

	edges    map[EdgeID]*Edge
	nextNode uint64
	nextEdge uint64
	nodeCap  uint64

	// mutations since the last graph-wide fold (batched policy)
	pending int

	closed bool
}

// New creates an empty graph with the given configuration; nil means
// config.Default().
func New(cfg *config.Config) *Graph {
	if cfg == nil {
		cfg = config.Default()
	}
	capacity := cfg.Matrix.NodeCapacity

	pool.Configure(pool.PoolConfig{
		Enabled: config.IsPoolingEnabled(),
		MaxSize: pool.DefaultMaxSize,
	})

	adjacency, _ := delta.New(capacity, capacity, &delta.Config{
		MaintainTranspose: cfg.Matrix.MaintainTranspose,
	})

	return &Graph{
		cfg:       cfg,
		adjacency: adjacency,
		labelIDs:  make(map[string]LabelID),
		relIDs:    make(map[string]RelationID),
		edges:     make(map[EdgeID]*Edge),
		nodeCap:   capacity,
	}
}

// Close frees every matrix. The graph must not be used afterwards.
func (g *Graph) Close() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return
	}
	g.adjacency.Free()
	for _, l := range g.labels {
		l.Free()
	}
	for _, r := range g.relations {
		r.m.Free()
	}
	g.closed = true
}

// AddLabel registers a label and its diagonal matrix, returning its id.
// Registering an existing name returns the existing id.
func (g *Graph) AddLabel(name string) LabelID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.labelIDs[name]; ok {
		return id
	}
	m, _ := delta.New(g.nodeCap, g.nodeCap, nil)
	id := LabelID(len(g.labels))
	g.labels = append(g.labels, m)
	g.labelIDs[name] = id
	return id
}

// AddRelation registers a relation type and its matrix, returning its id.
// multiEdge controls whether parallel edges between the same pair are kept.
func (g *Graph) AddRelation(name string, multiEdge bool) RelationID {
	g.mu.Lock()
	defer g.mu.Unlock()

	if id, ok := g.relIDs[name]; ok {
		return id
	}
	m, _ := delta.New(g.nodeCap, g.nodeCap, &delta.Config{
		MaintainTranspose: g.cfg.Matrix.MaintainTranspose,
		MultiEdge:         multiEdge,
	})
	id := RelationID(len(g.relations))
	g.relations = append(g.relations, &relation{name: name, m: m, multiEdge: multiEdge})
	g.relIDs[name] = id
	return id
}

// CreateNode allocates a node id, growing every matrix domain by the
// configured capacity block when the current one is full, and stamps the
// given labels onto it.
func (g *Graph) CreateNode(labels ...LabelID) (NodeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, ErrGraphClosed
	}

	if g.nextNode == g.nodeCap {
		if err := g.grow(g.nodeCap + g.cfg.Matrix.NodeCapacity); err != nil {
			return 0, err
		}
	}

	id := NodeID(g.nextNode)
	g.nextNode++

	for _, l := range labels {
		if int(l) < 0 || int(l) >= len(g.labels) {
			return 0, ErrUnknownLabel
		}
		if err := g.labels[l].SetElement(uint64(id), uint64(id), 1); err != nil {
			return 0, err
		}
	}

	g.noteMutation()
	return id, nil
}

// grow resizes every matrix to the new node capacity. A resize failure
// leaves the graph unusable, matching the delta layer's no-partial-success
// contract.
func (g *Graph) grow(newCap uint64) error {
	if err := g.adjacency.Resize(newCap, newCap); err != nil {
		return fmt.Errorf("graph: grow adjacency: %w", err)
	}
	for i, l := range g.labels {
		if err := l.Resize(newCap, newCap); err != nil {
			return fmt.Errorf("graph: grow label %d: %w", i, err)
		}
	}
	for _, r := range g.relations {
		if err := r.m.Resize(newCap, newCap); err != nil {
			return fmt.Errorf("graph: grow relation %q: %w", r.name, err)
		}
	}
	g.nodeCap = newCap
	return nil
}

// CreateEdge connects src to dst with the given relation type and returns
// the new edge's id.
func (g *Graph) CreateEdge(src, dst NodeID, rel RelationID) (EdgeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return 0, ErrGraphClosed
	}
	if uint64(src) >= g.nextNode || uint64(dst) >= g.nextNode {
		return 0, ErrUnknownNode
	}
	if int(rel) < 0 || int(rel) >= len(g.relations) {
		return 0, ErrUnknownRelation
	}

	r := g.relations[rel]
	id := EdgeID(g.nextEdge)
	g.nextEdge++

	if err := g.adjacency.SetElement(uint64(src), uint64(dst), 1); err != nil {
		return 0, err
	}

	cell, occupied := g.liveCell(r.m, uint64(src), uint64(dst))
	switch {
	case !occupied:
		if err := r.m.SetElement(uint64(src), uint64(dst), uint64(id)); err != nil {
			return 0, err
		}
	case r.multiEdge && cell&edgeListFlag != 0:
		idx := cell &^ edgeListFlag
		r.lists[idx] = append(r.lists[idx], id)
	case r.multiEdge:
		// second parallel edge: promote the cell to a list
		idx := uint64(len(r.lists))
		r.lists = append(r.lists, []EdgeID{EdgeID(cell), id})
		if err := r.m.SetElement(uint64(src), uint64(dst), edgeListFlag|idx); err != nil {
			return 0, err
		}
	default:
		// single-edge relation: the new edge replaces the old connection
		delete(g.edges, EdgeID(cell))
		if err := r.m.SetElement(uint64(src), uint64(dst), uint64(id)); err != nil {
			return 0, err
		}
	}

	g.edges[id] = &Edge{ID: id, Src: src, Dst: dst, Relation: rel}
	g.noteMutation()
	return id, nil
}

// DeleteEdge removes an edge. The adjacency entry for the pair is dropped
// only when no relation still connects it.
func (g *Graph) DeleteEdge(id EdgeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGraphClosed
	}
	if err := g.deleteEdge(id); err != nil {
		return err
	}
	g.noteMutation()
	return nil
}

func (g *Graph) deleteEdge(id EdgeID) error {
	e, ok := g.edges[id]
	if !ok {
		return ErrEdgeNotFound
	}
	r := g.relations[e.Relation]
	src, dst := uint64(e.Src), uint64(e.Dst)

	cell, occupied := g.liveCell(r.m, src, dst)
	if occupied && cell&edgeListFlag != 0 {
		idx := cell &^ edgeListFlag
		list := r.lists[idx]
		for i, eid := range list {
			if eid == id {
				list = append(list[:i], list[i+1:]...)
				break
			}
		}
		r.lists[idx] = list
		if len(list) == 1 {
			// collapse back to a direct-id cell
			if err := r.m.SetElement(src, dst, uint64(list[0])); err != nil {
				return err
			}
			r.lists[idx] = nil
		}
	} else if occupied {
		if err := r.m.RemoveElement(src, dst); err != nil {
			return err
		}
	}

	delete(g.edges, id)

	if !g.pairConnected(e.Src, e.Dst) {
		if err := g.adjacency.RemoveElement(src, dst); err != nil {
			return err
		}
	}
	return nil
}

// pairConnected reports whether any relation still holds a live entry for
// (src, dst).
func (g *Graph) pairConnected(src, dst NodeID) bool {
	for _, r := range g.relations {
		if _, ok := g.liveCell(r.m, uint64(src), uint64(dst)); ok {
			return true
		}
	}
	return false
}

// liveCell extracts a relation cell, treating a pending-delete tombstone as
// absent. This is where the delta layer's tombstone-surfacing contract is
// honored.
func (g *Graph) liveCell(m *delta.Matrix, i, j uint64) (uint64, bool) {
	if m.PendingDelete(i, j) {
		return 0, false
	}
	return m.ExtractElement(i, j)
}

// DeleteNode removes a node's edges and label stamps. The node id itself is
// retired, never reused.
func (g *Graph) DeleteNode(id NodeID) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.closed {
		return ErrGraphClosed
	}
	if uint64(id) >= g.nextNode {
		return ErrUnknownNode
	}

	// collect the node's edges from the registry; the matrices lag behind
	// it only on already-deleted entries
	doomed := pool.GetIDSlice()
	defer pool.PutIDSlice(doomed)
	for eid, e := range g.edges {
		if e.Src == id || e.Dst == id {
			doomed = append(doomed, uint64(eid))
		}
	}
	for _, eid := range doomed {
		if err := g.deleteEdge(EdgeID(eid)); err != nil {
			return err
		}
	}

	for _, l := range g.labels {
		if _, ok := g.liveCell(l, uint64(id), uint64(id)); ok {
			if err := l.RemoveElement(uint64(id), uint64(id)); err != nil {
				return err
			}
		}
	}

	g.noteMutation()
	return nil
}

// HasEdge reports whether any relation connects src to dst.
func (g *Graph) HasEdge(src, dst NodeID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.liveCell(g.adjacency, uint64(src), uint64(dst))
	return ok
}

// HasLabel reports whether the node carries the label.
func (g *Graph) HasLabel(id NodeID, label LabelID) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(label) < 0 || int(label) >= len(g.labels) {
		return false
	}
	_, ok := g.liveCell(g.labels[label], uint64(id), uint64(id))
	return ok
}

// GetEdge returns an edge by id.
func (g *Graph) GetEdge(id EdgeID) (*Edge, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.edges[id]
	if !ok {
		return nil, ErrEdgeNotFound
	}
	c := *e
	return &c, nil
}

// EdgesBetween returns the ids of every edge of the given relation type
// connecting src to dst.
func (g *Graph) EdgesBetween(src, dst NodeID, rel RelationID) ([]EdgeID, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(rel) < 0 || int(rel) >= len(g.relations) {
		return nil, ErrUnknownRelation
	}
	r := g.relations[rel]

	cell, ok := g.liveCell(r.m, uint64(src), uint64(dst))
	if !ok {
		return nil, nil
	}
	if cell&edgeListFlag != 0 {
		list := r.lists[cell&^edgeListFlag]
		out := make([]EdgeID, len(list))
		copy(out, list)
		return out, nil
	}
	return []EdgeID{EdgeID(cell)}, nil
}

// NodeCount returns the number of allocated node ids.
func (g *Graph) NodeCount() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nextNode
}

// EdgeCount returns the number of live edges.
func (g *Graph) EdgeCount() uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return uint64(len(g.edges))
}

// LabeledNodeCount returns how many nodes carry the label, straight from the
// label matrix's logical cardinality.
func (g *Graph) LabeledNodeCount(label LabelID) (uint64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if int(label) < 0 || int(label) >= len(g.labels) {
		return 0, ErrUnknownLabel
	}
	return g.labels[label].NumEntries(), nil
}
