package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
)

const (
	tagSet    = "set"
	tagNested = "nested"
)

// EncodeSnapshot returns the canonical tagged encoding of s.
func EncodeSnapshot(s replication.Snapshot) ([]byte, error) {
	tagged, err := taggedSnapshot(s)
	if err != nil {
		return nil, err
	}
	return ir.MarshalCanonical(tagged)
}

// DecodeSnapshot parses a tagged snapshot.
func DecodeSnapshot(data []byte) (replication.Snapshot, error) {
	return decodeTagged(data)
}

func taggedSnapshot(s replication.Snapshot) (map[string]any, error) {
	set := make(map[string]any)
	nested := make(map[string]any)
	for key, v := range s {
		switch val := v.(type) {
		case replication.Snapshot:
			inner, err := taggedSnapshot(val)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", key, err)
			}
			nested[key] = inner
		case ir.IRValue:
			set[key] = val
		default:
			return nil, fmt.Errorf("%s: unsupported snapshot value %T", key, v)
		}
	}

	out := make(map[string]any, 2)
	if len(set) > 0 {
		out[tagSet] = set
	}
	if len(nested) > 0 {
		out[tagNested] = nested
	}
	return out, nil
}

type taggedJSON struct {
	Set    map[string]json.RawMessage `json:"set"`
	Nested map[string]json.RawMessage `json:"nested"`
}

func decodeTagged(data []byte) (replication.Snapshot, error) {
	var raw taggedJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}

	out := make(replication.Snapshot, len(raw.Set)+len(raw.Nested))
	for key, msg := range raw.Set {
		v, err := ir.UnmarshalIRValue(msg)
		if err != nil {
			return nil, fmt.Errorf("decode snapshot: set %q: %w", key, err)
		}
		out[key] = v
	}
	for key, msg := range raw.Nested {
		if _, dup := out[key]; dup {
			return nil, fmt.Errorf("decode snapshot: key %q is both set and nested", key)
		}
		inner, err := decodeTagged(msg)
		if err != nil {
			return nil, fmt.Errorf("nested %q: %w", key, err)
		}
		out[key] = inner
	}
	return out, nil
}
