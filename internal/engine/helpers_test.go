package engine

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
	"github.com/roach88/repgraph/internal/testutil"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testClasses() []ir.ClassSpec {
	return []ir.ClassSpec{
		{
			Name:    "Vec2",
			Purpose: "A position on the map.",
			Properties: []ir.PropertySpec{
				{Name: "x", Type: ir.TypeInt},
				{Name: "y", Type: ir.TypeInt},
			},
		},
		{
			Name:    "Character",
			Purpose: "A player or NPC.",
			Properties: []ir.PropertySpec{
				{Name: "health", Type: ir.TypeInt},
				{Name: "name", Type: ir.TypeString, Condition: ir.ConditionInitialOnly},
				{Name: "pos", Type: ir.TypeClass, Class: "Vec2"},
				{Name: "tags", Type: ir.TypeArray},
				{Name: "target", Type: ir.TypeRef, Class: "Item"},
			},
		},
	}
}

func testSchema(t *testing.T) *Schema {
	t.Helper()
	s, err := NewSchema(testClasses())
	require.NoError(t, err)
	return s
}

func newTestReplicator(t *testing.T, opts ...Option) *Replicator {
	t.Helper()
	base := []Option{
		WithClock(testutil.NewDeterministicClock()),
		WithIDGenerator(testutil.NewSequentialIDs("e")),
		WithLogger(discardLogger()),
	}
	return NewReplicator(testSchema(t), append(base, opts...)...)
}

func newTestFollower(t *testing.T, id string) *Follower {
	t.Helper()
	return NewFollower(id, testSchema(t), WithLogger(discardLogger()))
}

func defaultCharacterState() ir.IRObject {
	return ir.O(
		"health", ir.IRInt(0),
		"name", ir.IRString(""),
		"pos", ir.O("x", ir.IRInt(0), "y", ir.IRInt(0)),
		"tags", ir.IRArray{},
		"target", ir.IRString(""),
	)
}

func fullCharacterSnapshot(health int64) replication.Snapshot {
	return replication.Snapshot{
		"health": ir.IRInt(health),
		"name":   ir.IRString(""),
		"pos":    replication.Snapshot{"x": ir.IRInt(0), "y": ir.IRInt(0)},
		"tags":   ir.IRArray{},
		"target": ir.IRString(""),
	}
}

// recordingLog is an in-memory PacketLog.
type recordingLog struct {
	packets   []ir.PacketRecord
	acks      map[string]int64
	entities  []ir.EntityRecord
	despawned map[string]int64
	appendErr error
}

func newRecordingLog() *recordingLog {
	return &recordingLog{acks: map[string]int64{}, despawned: map[string]int64{}}
}

func (l *recordingLog) AppendPacket(_ context.Context, rec ir.PacketRecord) error {
	if l.appendErr != nil {
		return l.appendErr
	}
	l.packets = append(l.packets, rec)
	return nil
}

func (l *recordingLog) WriteAck(_ context.Context, follower string, version int64) error {
	l.acks[follower] = version
	return nil
}

func (l *recordingLog) WriteEntity(_ context.Context, rec ir.EntityRecord) error {
	l.entities = append(l.entities, rec)
	return nil
}

func (l *recordingLog) MarkDespawned(_ context.Context, id string, version int64) error {
	l.despawned[id] = version
	return nil
}
