package replication

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
)

func TestApplyDiff_RoundTripIntoMirror(t *testing.T) {
	root, pos := newCharacter(t)
	root.Set("health", ir.IRInt(80))
	root.Set("tags", ir.IRArray{ir.IRString("elite")})
	pos.Set("x", ir.IRInt(5))

	mirror := NewNode()
	mirror.Set("health", ir.IRInt(100))
	mpos := NewNode()
	mpos.Set("x", ir.IRInt(0))
	require.NoError(t, mirror.Attach("pos", mpos))

	d := root.GenDiff(0, 1)
	require.True(t, d.Ok())
	require.NoError(t, ApplyDiff(mirror, d.Snapshot))

	assert.True(t, ir.Equal(root.State(), mirror.State()))
}

func TestApplyDiff_LeavesAbsentKeysUntouched(t *testing.T) {
	obj := ir.O("health", ir.IRInt(100), "name", ir.IRString("orc"))

	err := ApplyDiff(ObjectTarget(obj), Snapshot{"health": ir.IRInt(1)})

	require.NoError(t, err)
	assert.Equal(t, ir.IRInt(1), obj["health"])
	assert.Equal(t, ir.IRString("orc"), obj["name"])
}

func TestApplyDiff_NestedObjectTarget(t *testing.T) {
	obj := ir.O("pos", ir.O("x", ir.IRInt(0), "y", ir.IRInt(0)))

	err := ApplyDiff(ObjectTarget(obj), Snapshot{"pos": Snapshot{"x": ir.IRInt(5)}})

	require.NoError(t, err)
	assert.Equal(t, ir.O("x", ir.IRInt(5), "y", ir.IRInt(0)), obj["pos"])
}

func TestApplyDiff_LeafObjectReplacedWhole(t *testing.T) {
	obj := ir.O("meta", ir.O("a", ir.IRInt(1), "b", ir.IRInt(2)))

	err := ApplyDiff(ObjectTarget(obj), Snapshot{"meta": ir.O("a", ir.IRInt(9))})

	require.NoError(t, err)
	assert.Equal(t, ir.O("a", ir.IRInt(9)), obj["meta"])
}

func TestApplyDiff_MissingNestedTarget(t *testing.T) {
	tests := []struct {
		name   string
		target Target
		diff   Snapshot
		path   string
	}{
		{
			name:   "top level",
			target: ObjectTarget(ir.O()),
			diff:   Snapshot{"pos": Snapshot{"x": ir.IRInt(1)}},
			path:   "pos",
		},
		{
			name:   "deeper",
			target: ObjectTarget(ir.O("a", ir.O())),
			diff:   Snapshot{"a": Snapshot{"b": Snapshot{"c": ir.IRInt(1)}}},
			path:   "a.b",
		},
		{
			name:   "leaf where node expected",
			target: ObjectTarget(ir.O("pos", ir.IRInt(3))),
			diff:   Snapshot{"pos": Snapshot{"x": ir.IRInt(1)}},
			path:   "pos",
		},
		{
			name:   "node target",
			target: NewNode(),
			diff:   Snapshot{"pos": Snapshot{"x": ir.IRInt(1)}},
			path:   "pos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ApplyDiff(tt.target, tt.diff)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrMissingTarget)

			var applyErr *ApplyError
			require.True(t, errors.As(err, &applyErr))
			assert.Equal(t, tt.path, applyErr.Path)
			assert.Contains(t, err.Error(), tt.path)
		})
	}
}

func TestApplyDiff_UnsupportedValueKeepsTarget(t *testing.T) {
	tests := []struct {
		name  string
		value any
	}{
		{"plain map", map[string]any{"x": ir.IRInt(5)}},
		{"go int", 5},
		{"go string", "five"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pos := ir.O("x", ir.IRInt(0))
			obj := ir.O("pos", pos)

			err := ApplyDiff(ObjectTarget(obj), Snapshot{"pos": tt.value})

			require.Error(t, err)
			assert.ErrorIs(t, err, ErrUnsupportedValue)
			var applyErr *ApplyError
			require.True(t, errors.As(err, &applyErr))
			assert.Equal(t, "pos", applyErr.Path)
			assert.Equal(t, pos, obj["pos"], "nested object must survive")
		})
	}
}

func TestApplyDiff_UnsupportedValueInNestedNode(t *testing.T) {
	root, pos := newCharacter(t)

	err := ApplyDiff(root, Snapshot{"pos": Snapshot{"x": map[string]any{}}})

	assert.ErrorIs(t, err, ErrUnsupportedValue)
	assert.Contains(t, err.Error(), "pos.x")
	v, _ := pos.Get("x")
	assert.Equal(t, ir.IRInt(0), v)
}

func TestApplyDiff_NilValueClearsLeaf(t *testing.T) {
	obj := ir.O("target", ir.IRString("e-1"))

	require.NoError(t, ApplyDiff(ObjectTarget(obj), Snapshot{"target": nil}))
	assert.Equal(t, ir.IRNull{}, obj["target"])
}

func TestApplyDiff_AppliesInKeyOrderBeforeFailing(t *testing.T) {
	obj := ir.O("a", ir.IRInt(0), "z", ir.IRInt(0))

	err := ApplyDiff(ObjectTarget(obj), Snapshot{
		"a": ir.IRInt(1),
		"m": Snapshot{"x": ir.IRInt(1)},
		"z": ir.IRInt(1),
	})

	require.Error(t, err)
	assert.Equal(t, ir.IRInt(1), obj["a"])
	assert.Equal(t, ir.IRInt(0), obj["z"])
}

func TestApplyDiff_MirrorTracksAppliedWrites(t *testing.T) {
	mirror := NewNode()
	mirror.Set("health", ir.IRInt(100))
	mirror.Commit(1)

	require.NoError(t, ApplyDiff(mirror, Snapshot{"health": ir.IRInt(80)}))

	assert.True(t, mirror.HasUnflushedChange())
	mirror.Commit(2)
	assert.False(t, mirror.HasUnflushedChange())
}
