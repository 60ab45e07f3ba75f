package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketIDDeterminism(t *testing.T) {
	payload := []byte(`{"from":0,"to":1}`)

	id1 := PacketID("client", payload)
	id2 := PacketID("client", payload)

	assert.Equal(t, id1, id2, "PacketID must be deterministic")
	assert.Len(t, id1, 64, "SHA-256 hex is 64 characters")
}

func TestPacketIDChangesWithInput(t *testing.T) {
	base := PacketID("client", []byte(`{"to":1}`))

	assert.NotEqual(t, base, PacketID("other", []byte(`{"to":1}`)), "follower is part of identity")
	assert.NotEqual(t, base, PacketID("client", []byte(`{"to":2}`)), "payload is part of identity")
}

func TestPacketIDFollowerBoundary(t *testing.T) {
	// "ab" + "c..." must not collide with "a" + "bc..."
	assert.NotEqual(t, PacketID("ab", []byte("c")), PacketID("a", []byte("bc")))
}

func TestHashWithDomainSeparation(t *testing.T) {
	data := []byte("same")
	assert.NotEqual(t, hashWithDomain(DomainPacket, data), hashWithDomain(DomainSchema, data))
}

func TestSchemaHash(t *testing.T) {
	classes := []ClassSpec{{
		Name:    "Vec2",
		Purpose: "position",
		Properties: []PropertySpec{
			{Name: "x", Type: TypeInt},
			{Name: "y", Type: TypeInt},
		},
	}}

	h1, err := SchemaHash(classes)
	require.NoError(t, err)
	h2, err := SchemaHash(classes)
	require.NoError(t, err)
	assert.Equal(t, h1, h2)

	classes[0].Properties[1].Condition = ConditionOwnerOnly
	h3, err := SchemaHash(classes)
	require.NoError(t, err)
	assert.NotEqual(t, h1, h3, "condition changes the schema")
}
