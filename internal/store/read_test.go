package store

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
)

func TestReadPackets_OrderedByVersion(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendPacket(ctx, testPacket("client", 1, 3, `{"n":3}`)))
	require.NoError(t, s.AppendPacket(ctx, testPacket("client", 0, 1, `{"n":1}`)))
	require.NoError(t, s.AppendPacket(ctx, testPacket("other", 0, 2, `{"n":2}`)))

	got, err := s.ReadPackets(ctx, "client")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, int64(1), got[0].ToVersion)
	assert.Equal(t, int64(3), got[1].ToVersion)
	assert.Equal(t, `{"n":3}`, string(got[1].Payload))
}

func TestReadPackets_EmptyNotNil(t *testing.T) {
	s := createTestStore(t)

	got, err := s.ReadPackets(context.Background(), "nobody")

	require.NoError(t, err)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestReadPackets_CorruptPayload(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()
	_, err := s.Exec(ctx, `INSERT INTO packets VALUES ('x', 'client', 0, 1, X'FFFFFFFF')`)
	require.NoError(t, err)

	_, err = s.ReadPackets(ctx, "client")

	assert.ErrorContains(t, err, "decompress payload")
}

func TestReadFollowers(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.AppendPacket(ctx, testPacket("zed", 0, 1, `{}`)))
	require.NoError(t, s.AppendPacket(ctx, testPacket("amy", 0, 1, `{}`)))
	require.NoError(t, s.AppendPacket(ctx, testPacket("amy", 1, 2, `{"a":1}`)))
	require.NoError(t, s.WriteAck(ctx, "bob", 0))

	got, err := s.ReadFollowers(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"amy", "bob", "zed"}, got)
}

func TestSummarize(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	empty, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, LogSummary{}, empty)

	require.NoError(t, s.AppendPacket(ctx, testPacket("a", 0, 1, `{}`)))
	require.NoError(t, s.AppendPacket(ctx, testPacket("b", 0, 4, `{}`)))
	require.NoError(t, s.WriteEntity(ctx, entity("e-1", 1)))
	require.NoError(t, s.WriteEntity(ctx, entity("e-2", 2)))
	require.NoError(t, s.MarkDespawned(ctx, "e-1", 3))

	sum, err := s.Summarize(ctx)
	require.NoError(t, err)
	assert.Equal(t, LogSummary{MaxVersion: 4, Packets: 2, Followers: 2, Entities: 2, Alive: 1}, sum)
}

func entity(id string, spawnedAt int64) ir.EntityRecord {
	return ir.EntityRecord{ID: id, Class: "Character", SpawnedAt: spawnedAt}
}
