package wire

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
)

// Spawn announces a root entity the follower does not know yet.
type Spawn struct {
	ID    string `json:"id"`
	Class string `json:"class"`
}

// Packet moves a follower from From to To.
//
// Spawns are applied first (in order), then Updates, then Despawns. A
// follower may see the same spawn or update twice when From is behind what
// it already applied; both are idempotent.
type Packet struct {
	From     int64
	To       int64
	Spawns   []Spawn
	Despawns []string
	Updates  map[string]replication.Snapshot // entity ID -> diff
}

// Empty reports whether the packet carries no changes.
func (p Packet) Empty() bool {
	return len(p.Spawns) == 0 && len(p.Despawns) == 0 && len(p.Updates) == 0
}

// Encode returns the canonical encoding of the packet.
func (p Packet) Encode() ([]byte, error) {
	spawns := make([]any, len(p.Spawns))
	for i, s := range p.Spawns {
		spawns[i] = map[string]any{"id": s.ID, "class": s.Class}
	}

	despawns := p.Despawns
	if despawns == nil {
		despawns = []string{}
	}

	updates := make(map[string]any, len(p.Updates))
	for id, snap := range p.Updates {
		tagged, err := taggedSnapshot(snap)
		if err != nil {
			return nil, fmt.Errorf("encode packet: entity %s: %w", id, err)
		}
		updates[id] = tagged
	}

	return ir.MarshalCanonical(map[string]any{
		"v":        ir.WireVersion,
		"from":     p.From,
		"to":       p.To,
		"spawns":   spawns,
		"despawns": despawns,
		"updates":  updates,
	})
}

// ID returns the content hash of the packet as addressed to followerID.
func (p Packet) ID(followerID string) (string, error) {
	payload, err := p.Encode()
	if err != nil {
		return "", err
	}
	return ir.PacketID(followerID, payload), nil
}

type packetJSON struct {
	V        string                     `json:"v"`
	From     int64                      `json:"from"`
	To       int64                      `json:"to"`
	Spawns   []Spawn                    `json:"spawns"`
	Despawns []string                   `json:"despawns"`
	Updates  map[string]json.RawMessage `json:"updates"`
}

// Decode parses an encoded packet. Packets of another wire version are
// rejected.
func Decode(data []byte) (Packet, error) {
	var raw packetJSON
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&raw); err != nil {
		return Packet{}, fmt.Errorf("decode packet: %w", err)
	}
	if raw.V != ir.WireVersion {
		return Packet{}, fmt.Errorf("decode packet: wire version %q, want %q", raw.V, ir.WireVersion)
	}
	if raw.To <= raw.From {
		return Packet{}, fmt.Errorf("decode packet: invalid range (%d, %d]", raw.From, raw.To)
	}

	p := Packet{From: raw.From, To: raw.To}
	if len(raw.Spawns) > 0 {
		p.Spawns = raw.Spawns
	}
	if len(raw.Despawns) > 0 {
		p.Despawns = raw.Despawns
	}
	if len(raw.Updates) > 0 {
		p.Updates = make(map[string]replication.Snapshot, len(raw.Updates))
		for id, msg := range raw.Updates {
			snap, err := decodeTagged(msg)
			if err != nil {
				return Packet{}, fmt.Errorf("decode packet: entity %s: %w", id, err)
			}
			p.Updates[id] = snap
		}
	}
	return p, nil
}
