package wire

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
)

func TestEncodeSnapshot_Canonical(t *testing.T) {
	s := replication.Snapshot{
		"health": ir.IRInt(80),
		"pos":    replication.Snapshot{"x": ir.IRInt(5)},
	}

	got, err := EncodeSnapshot(s)

	require.NoError(t, err)
	assert.Equal(t, `{"nested":{"pos":{"set":{"x":5}}},"set":{"health":80}}`, string(got))
}

func TestEncodeSnapshot_LeafObjectStaysLeaf(t *testing.T) {
	s := replication.Snapshot{"meta": ir.O("x", ir.IRInt(1))}

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)
	assert.Equal(t, `{"set":{"meta":{"x":1}}}`, string(data))

	back, err := DecodeSnapshot(data)
	require.NoError(t, err)
	assert.Equal(t, s, back)
}

func TestEncodeSnapshot_NullLeaf(t *testing.T) {
	data, err := EncodeSnapshot(replication.Snapshot{"target": ir.IRNull{}})
	require.NoError(t, err)
	assert.Equal(t, `{"set":{"target":null}}`, string(data))
}

func TestEncodeSnapshot_RejectsForeignValues(t *testing.T) {
	_, err := EncodeSnapshot(replication.Snapshot{"bad": 1.5})
	assert.Error(t, err)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	s := replication.Snapshot{
		"health": ir.IRInt(80),
		"name":   ir.IRString("orc"),
		"alive":  ir.IRBool(true),
		"tags":   ir.IRArray{ir.IRString("a"), ir.IRString("b")},
		"owner":  ir.IRNull{},
		"pos": replication.Snapshot{
			"x":    ir.IRInt(5),
			"deep": replication.Snapshot{"z": ir.IRInt(-1)},
		},
	}

	data, err := EncodeSnapshot(s)
	require.NoError(t, err)
	back, err := DecodeSnapshot(data)
	require.NoError(t, err)

	assert.Equal(t, s, back)
}

func TestDecodeSnapshot_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", `{`},
		{"unknown tag", `{"sets":{}}`},
		{"float leaf", `{"set":{"x":1.5}}`},
		{"set and nested", `{"set":{"x":1},"nested":{"x":{}}}`},
		{"bad nested", `{"nested":{"p":{"set":{"x":1.5}}}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSnapshot([]byte(tt.data))
			assert.Error(t, err)
		})
	}
}

func TestDecodeSnapshot_Empty(t *testing.T) {
	s, err := DecodeSnapshot([]byte(`{}`))
	require.NoError(t, err)
	assert.Empty(t, s)
}
