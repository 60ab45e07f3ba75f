package replication

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
)

func TestNode_SetCreatesCellLazily(t *testing.T) {
	n := NewNode()
	_, ok := n.Cell("health")
	assert.False(t, ok)

	n.Set("health", ir.IRInt(100))

	c, ok := n.Cell("health")
	require.True(t, ok)
	assert.True(t, c.Changed())
	assert.Equal(t, int64(0), c.Version())
	assert.Equal(t, ir.IRInt(100), c.Value())
	assert.Nil(t, c.Node())
	assert.True(t, n.HasUnflushedChange())
}

func TestNode_IdempotentWrite(t *testing.T) {
	n := NewNode()
	calls := 0
	n.OnChange(func(string) { calls++ })

	n.Set("name", ir.IRString("orc"))
	n.Set("name", ir.IRString("orc"))
	assert.Equal(t, 1, calls, "writing the same scalar twice is one change")

	n.Commit(1)
	n.Set("name", ir.IRString("orc"))
	assert.Equal(t, 1, calls)
	assert.False(t, n.HasUnflushedChange(), "no-op write must not dirty the node")

	c, _ := n.Cell("name")
	assert.False(t, c.Changed())
}

func TestNode_CompositeValuesCompareByIdentity(t *testing.T) {
	n := NewNode()
	calls := 0
	n.OnChange(func(string) { calls++ })

	tags := ir.IRArray{ir.IRString("a")}
	n.Set("tags", tags)
	n.Set("tags", tags)
	assert.Equal(t, 1, calls)

	n.Set("tags", ir.IRArray{ir.IRString("a")})
	assert.Equal(t, 2, calls, "an equal copy is a different value")
}

func TestNode_PropagatesOncePerDirtyWindow(t *testing.T) {
	root := NewNode()
	child := NewNode()
	require.NoError(t, root.Attach("pos", child))
	root.GenDiff(0, 1)

	var rootCalls []string
	root.OnChange(func(key string) { rootCalls = append(rootCalls, key) })

	child.Set("x", ir.IRInt(1))
	child.Set("y", ir.IRInt(2))
	child.Set("x", ir.IRInt(3))
	assert.Equal(t, []string{"pos"}, rootCalls, "parent notified once per window")
	assert.True(t, root.HasUnflushedChange())

	c, _ := root.Cell("pos")
	assert.True(t, c.Changed())
	assert.Same(t, child, c.Node(), "re-check signal keeps the nested node")

	root.GenDiff(1, 2)
	assert.False(t, child.HasUnflushedChange())

	child.Set("x", ir.IRInt(4))
	assert.Equal(t, []string{"pos", "pos"}, rootCalls, "new window notifies again")
}

func TestNode_PropagatesThroughSeveralLevels(t *testing.T) {
	root, mid, leaf := NewNode(), NewNode(), NewNode()
	require.NoError(t, mid.Attach("leaf", leaf))
	require.NoError(t, root.Attach("mid", mid))
	root.Commit(1)

	leaf.Set("v", ir.IRBool(true))

	assert.True(t, mid.HasUnflushedChange())
	assert.True(t, root.HasUnflushedChange())

	d := root.GenDiff(1, 2)
	require.True(t, d.Ok())
	assert.Equal(t, Snapshot{
		"mid": Snapshot{"leaf": Snapshot{"v": ir.IRBool(true)}},
	}, d.Snapshot)
}

func TestNode_TouchRetainsNestedNode(t *testing.T) {
	root := NewNode()
	child := NewNode()
	require.NoError(t, root.Attach("inv", child))
	root.Commit(1)

	root.Touch("inv")

	got, ok := root.Child("inv")
	require.True(t, ok)
	assert.Same(t, child, got)
	c, _ := root.Cell("inv")
	assert.True(t, c.Changed())
}

func TestNode_TouchClearsLeaf(t *testing.T) {
	n := NewNode()
	n.Set("target", ir.IRString("e1"))
	n.Touch("target")

	v, ok := n.Get("target")
	assert.True(t, ok)
	assert.Nil(t, v)
	assert.Equal(t, ir.O("target", ir.IRNull{}), n.State())
}

func TestNode_AttachSetsBackReference(t *testing.T) {
	root := NewNode()
	child := NewNode()
	require.NoError(t, root.Attach("pos", child))

	parent, key := child.Parent()
	assert.Same(t, root, parent)
	assert.Equal(t, "pos", key)
}

func TestNode_ReplacingChildClearsBackReference(t *testing.T) {
	root := NewNode()
	child := NewNode()
	require.NoError(t, root.Attach("pos", child))
	root.Commit(1)

	root.Set("pos", ir.IRNull{})

	parent, key := child.Parent()
	assert.Nil(t, parent)
	assert.Empty(t, key)

	calls := 0
	root.OnChange(func(string) { calls++ })
	root.Commit(2)
	child.Set("x", ir.IRInt(1))
	assert.Zero(t, calls, "detached child must not notify its old owner")
	assert.False(t, root.HasUnflushedChange())
}

func TestNode_ReattachedChildKeepsNewParent(t *testing.T) {
	a, b := NewNode(), NewNode()
	child := NewNode()
	require.NoError(t, a.Attach("slot", child))
	require.NoError(t, b.Attach("other", child))

	a.Set("slot", ir.IRInt(0))

	parent, key := child.Parent()
	assert.Same(t, b, parent)
	assert.Equal(t, "other", key)
}

func TestNode_AttachNilClearsSlot(t *testing.T) {
	root := NewNode()
	child := NewNode()
	require.NoError(t, root.Attach("pos", child))
	require.NoError(t, root.Attach("pos", nil))

	_, ok := root.Child("pos")
	assert.False(t, ok)
	v, ok := root.Get("pos")
	assert.True(t, ok)
	assert.Equal(t, ir.IRNull{}, v)
}

func TestNode_AttachRefusesCycles(t *testing.T) {
	a, b, c := NewNode(), NewNode(), NewNode()
	require.NoError(t, a.Attach("b", b))
	require.NoError(t, b.Attach("c", c))

	assert.ErrorIs(t, a.Attach("self", a), ErrCycle)
	assert.ErrorIs(t, c.Attach("a", a), ErrCycle)
	assert.ErrorIs(t, b.Attach("a", a), ErrCycle)

	_, ok := c.Cell("a")
	assert.False(t, ok, "refused attach must not create a cell")
}

func TestNode_State(t *testing.T) {
	root := NewNode()
	pos := NewNode()
	root.Set("health", ir.IRInt(100))
	pos.Set("x", ir.IRInt(1))
	pos.Set("y", ir.IRInt(2))
	require.NoError(t, root.Attach("pos", pos))
	root.Touch("owner")

	want := ir.O(
		"health", ir.IRInt(100),
		"owner", ir.IRNull{},
		"pos", ir.O("x", ir.IRInt(1), "y", ir.IRInt(2)),
	)
	assert.True(t, ir.Equal(want, root.State()))
	assert.Equal(t, []string{"health", "owner", "pos"}, root.Keys())
}

func TestNode_CommitEstablishesBaseline(t *testing.T) {
	root := NewNode()
	pos := NewNode()
	root.Set("health", ir.IRInt(100))
	pos.Set("x", ir.IRInt(0))
	require.NoError(t, root.Attach("pos", pos))

	root.Commit(3)

	assert.Equal(t, int64(3), root.LastVersion())
	assert.Equal(t, int64(3), pos.LastVersion())
	assert.False(t, root.HasUnflushedChange())
	assert.False(t, pos.HasUnflushedChange())
	for _, key := range root.Keys() {
		c, _ := root.Cell(key)
		assert.False(t, c.Changed(), key)
		assert.Equal(t, int64(3), c.Version(), key)
	}
	assert.Equal(t, DiffEmpty, root.GenDiff(4, 5).Kind)
}
