package graph

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orneryd/deltagraph/pkg/config"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Matrix.NodeCapacity = 16
	cfg.Sync.Policy = config.SyncPolicyOnRead
	return cfg
}

func newGraph(t *testing.T, cfg *config.Config) *Graph {
	t.Helper()
	if cfg == nil {
		cfg = testConfig()
	}
	require.NoError(t, cfg.Validate())
	g := New(cfg)
	t.Cleanup(g.Close)
	return g
}

func TestCreateNode(t *testing.T) {
	g := newGraph(t, nil)
	person := g.AddLabel("Person")

	a, err := g.CreateNode(person)
	require.NoError(t, err)
	b, err := g.CreateNode()
	require.NoError(t, err)

	assert.Equal(t, NodeID(0), a)
	assert.Equal(t, NodeID(1), b)
	assert.Equal(t, uint64(2), g.NodeCount())
	assert.True(t, g.HasLabel(a, person))
	assert.False(t, g.HasLabel(b, person))

	n, err := g.LabeledNodeCount(person)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestCreateEdge(t *testing.T) {
	g := newGraph(t, nil)
	knows := g.AddRelation("KNOWS", false)
	a, _ := g.CreateNode()
	b, _ := g.CreateNode()

	e, err := g.CreateEdge(a, b, knows)
	require.NoError(t, err)

	assert.True(t, g.HasEdge(a, b))
	assert.False(t, g.HasEdge(b, a))
	assert.Equal(t, uint64(1), g.EdgeCount())

	edge, err := g.GetEdge(e)
	require.NoError(t, err)
	assert.Equal(t, a, edge.Src)
	assert.Equal(t, b, edge.Dst)
	assert.Equal(t, knows, edge.Relation)

	t.Run("unknown_node", func(t *testing.T) {
		_, err := g.CreateEdge(a, NodeID(99), knows)
		assert.ErrorIs(t, err, ErrUnknownNode)
	})

	t.Run("unknown_relation", func(t *testing.T) {
		_, err := g.CreateEdge(a, b, RelationID(7))
		assert.ErrorIs(t, err, ErrUnknownRelation)
	})
}

func TestNeighbors(t *testing.T) {
	g := newGraph(t, nil)
	knows := g.AddRelation("KNOWS", false)
	a, _ := g.CreateNode()
	b, _ := g.CreateNode()
	c, _ := g.CreateNode()

	g.CreateEdge(a, b, knows)
	g.CreateEdge(a, c, knows)
	g.CreateEdge(b, c, knows)

	// on-read policy: the pending overlay entries must be visible
	out, err := g.Neighbors(a, knows)
	require.NoError(t, err)
	assert.ElementsMatch(t, []NodeID{b, c}, out)

	in, err := g.IncomingNeighbors(c, knows)
	require.NoError(t, err)
	assert.ElementsMatch(t, []NodeID{a, b}, in)

	empty, err := g.Neighbors(c, knows)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestIncomingNeighborsWithoutTranspose(t *testing.T) {
	cfg := testConfig()
	cfg.Matrix.MaintainTranspose = false
	g := newGraph(t, cfg)

	knows := g.AddRelation("KNOWS", false)
	a, _ := g.CreateNode()
	b, _ := g.CreateNode()
	c, _ := g.CreateNode()
	g.CreateEdge(a, c, knows)
	g.CreateEdge(b, c, knows)

	in, err := g.IncomingNeighbors(c, knows)
	require.NoError(t, err)
	assert.ElementsMatch(t, []NodeID{a, b}, in)
}

func TestDeleteEdge(t *testing.T) {
	g := newGraph(t, nil)
	knows := g.AddRelation("KNOWS", false)
	likes := g.AddRelation("LIKES", false)
	a, _ := g.CreateNode()
	b, _ := g.CreateNode()

	e1, _ := g.CreateEdge(a, b, knows)
	e2, _ := g.CreateEdge(a, b, likes)

	require.NoError(t, g.DeleteEdge(e1))
	assert.True(t, g.HasEdge(a, b), "adjacency survives while another relation connects the pair")

	require.NoError(t, g.DeleteEdge(e2))
	assert.False(t, g.HasEdge(a, b))
	assert.Equal(t, uint64(0), g.EdgeCount())

	assert.ErrorIs(t, g.DeleteEdge(e1), ErrEdgeNotFound)
}

func TestMultiEdge(t *testing.T) {
	g := newGraph(t, nil)
	sent := g.AddRelation("SENT", true)
	a, _ := g.CreateNode()
	b, _ := g.CreateNode()

	e1, err := g.CreateEdge(a, b, sent)
	require.NoError(t, err)
	e2, err := g.CreateEdge(a, b, sent)
	require.NoError(t, err)
	e3, err := g.CreateEdge(a, b, sent)
	require.NoError(t, err)

	ids, err := g.EdgesBetween(a, b, sent)
	require.NoError(t, err)
	assert.ElementsMatch(t, []EdgeID{e1, e2, e3}, ids)
	assert.Equal(t, uint64(3), g.EdgeCount())

	// parallel edges removed one at a time; the cell collapses back to a
	// direct id at one remaining edge
	require.NoError(t, g.DeleteEdge(e2))
	ids, _ = g.EdgesBetween(a, b, sent)
	assert.ElementsMatch(t, []EdgeID{e1, e3}, ids)

	require.NoError(t, g.DeleteEdge(e1))
	ids, _ = g.EdgesBetween(a, b, sent)
	assert.ElementsMatch(t, []EdgeID{e3}, ids)
	assert.True(t, g.HasEdge(a, b))

	require.NoError(t, g.DeleteEdge(e3))
	ids, _ = g.EdgesBetween(a, b, sent)
	assert.Empty(t, ids)
	assert.False(t, g.HasEdge(a, b))
}

func TestSingleEdgeRelationReplaces(t *testing.T) {
	g := newGraph(t, nil)
	knows := g.AddRelation("KNOWS", false)
	a, _ := g.CreateNode()
	b, _ := g.CreateNode()

	e1, _ := g.CreateEdge(a, b, knows)
	e2, _ := g.CreateEdge(a, b, knows)

	_, err := g.GetEdge(e1)
	assert.ErrorIs(t, err, ErrEdgeNotFound)
	ids, _ := g.EdgesBetween(a, b, knows)
	assert.Equal(t, []EdgeID{e2}, ids)
	assert.Equal(t, uint64(1), g.EdgeCount())
}

func TestDeleteNode(t *testing.T) {
	g := newGraph(t, nil)
	person := g.AddLabel("Person")
	knows := g.AddRelation("KNOWS", false)
	a, _ := g.CreateNode(person)
	b, _ := g.CreateNode(person)
	c, _ := g.CreateNode()

	g.CreateEdge(a, b, knows)
	g.CreateEdge(c, a, knows)
	g.CreateEdge(b, c, knows)

	require.NoError(t, g.DeleteNode(a))

	assert.Equal(t, uint64(1), g.EdgeCount(), "only b->c survives")
	assert.False(t, g.HasEdge(a, b))
	assert.False(t, g.HasEdge(c, a))
	assert.True(t, g.HasEdge(b, c))
	assert.False(t, g.HasLabel(a, person))

	n, _ := g.LabeledNodeCount(person)
	assert.Equal(t, uint64(1), n)
}

func TestCapacityGrowth(t *testing.T) {
	cfg := testConfig()
	cfg.Matrix.NodeCapacity = 4
	g := newGraph(t, cfg)

	knows := g.AddRelation("KNOWS", false)
	person := g.AddLabel("Person")

	// allocate past the initial capacity block; every matrix must follow
	ids := make([]NodeID, 0, 10)
	for i := 0; i < 10; i++ {
		id, err := g.CreateNode(person)
		require.NoError(t, err)
		ids = append(ids, id)
	}

	_, err := g.CreateEdge(ids[8], ids[9], knows)
	require.NoError(t, err)

	out, err := g.Neighbors(ids[8], knows)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{ids[9]}, out)

	n, _ := g.LabeledNodeCount(person)
	assert.Equal(t, uint64(10), n)
}

func TestSyncPolicies(t *testing.T) {
	t.Run("eager_folds_every_mutation", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sync.Policy = config.SyncPolicyEager
		g := newGraph(t, cfg)

		knows := g.AddRelation("KNOWS", false)
		a, _ := g.CreateNode()
		b, _ := g.CreateNode()
		g.CreateEdge(a, b, knows)

		assert.False(t, g.Dirty())
	})

	t.Run("batched_folds_at_threshold", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sync.Policy = config.SyncPolicyBatched
		cfg.Sync.BatchThreshold = 5
		g := newGraph(t, cfg)

		knows := g.AddRelation("KNOWS", false)
		a, _ := g.CreateNode() // mutation 1
		b, _ := g.CreateNode() // mutation 2
		g.CreateEdge(a, b, knows)
		g.CreateEdge(b, a, knows)
		assert.True(t, g.Dirty(), "below threshold, overlays still pending")

		g.CreateEdge(a, b, knows) // fifth mutation trips the fold
		assert.False(t, g.Dirty())
	})

	t.Run("on_read_defers_until_query", func(t *testing.T) {
		cfg := testConfig()
		cfg.Sync.Policy = config.SyncPolicyOnRead
		g := newGraph(t, cfg)

		knows := g.AddRelation("KNOWS", false)
		a, _ := g.CreateNode()
		b, _ := g.CreateNode()
		g.CreateEdge(a, b, knows)
		assert.True(t, g.Dirty())

		_, err := g.Neighbors(a, knows)
		require.NoError(t, err)
		// the queried relation matrix folded; the adjacency matrix may
		// still be dirty, which is the point of the lazy policy
		rel, _ := g.EdgesBetween(a, b, knows)
		assert.Len(t, rel, 1)
	})
}

func TestSyncAll(t *testing.T) {
	g := newGraph(t, nil)
	person := g.AddLabel("Person")
	knows := g.AddRelation("KNOWS", false)
	likes := g.AddRelation("LIKES", true)

	a, _ := g.CreateNode(person)
	b, _ := g.CreateNode(person)
	g.CreateEdge(a, b, knows)
	g.CreateEdge(a, b, likes)
	g.CreateEdge(b, a, likes)
	require.True(t, g.Dirty())

	require.NoError(t, g.SyncAll(context.Background()))
	assert.False(t, g.Dirty())

	// everything still reachable from the folded bases
	out, err := g.Neighbors(a, knows)
	require.NoError(t, err)
	assert.Equal(t, []NodeID{b}, out)
}

func TestClosedGraph(t *testing.T) {
	g := New(testConfig())
	g.Close()

	_, err := g.CreateNode()
	assert.ErrorIs(t, err, ErrGraphClosed)
	err = g.SyncAll(context.Background())
	assert.ErrorIs(t, err, ErrGraphClosed)
	// double close is harmless
	g.Close()
}
