package engine

import (
	"fmt"
	"log/slog"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
	"github.com/roach88/repgraph/internal/wire"
)

type mirror struct {
	class string
	node  *replication.Node
}

// Follower is the receiving side: it mirrors the authority's root entities
// by applying packets in order.
//
// A Follower is not safe for concurrent use.
type Follower struct {
	id       string
	schema   *Schema
	logger   *slog.Logger
	version  int64
	entities map[string]*mirror
	order    []string
}

// NewFollower creates an empty follower at version 0. Only WithLogger
// applies to followers.
func NewFollower(id string, schema *Schema, opts ...Option) *Follower {
	o := buildOptions(opts)
	return &Follower{
		id:       id,
		schema:   schema,
		logger:   o.logger,
		entities: make(map[string]*mirror),
	}
}

// ID returns the follower's identifier.
func (f *Follower) ID() string { return f.id }

// Version returns the last version applied.
func (f *Follower) Version() int64 { return f.version }

// Apply merges p into the mirror and returns the version to acknowledge.
//
// A packet whose To is not newer than the follower is stale and ignored.
// A packet whose From is newer than the follower would skip changes and is
// rejected with a PACKET_GAP error. Spawns and updates the follower has
// already seen are applied again harmlessly. On error the follower is left
// at its previous version, possibly with part of the packet applied; the
// authority resends it because nothing was acknowledged.
func (f *Follower) Apply(p wire.Packet) (int64, error) {
	if p.To <= f.version {
		f.logger.Debug("stale packet ignored", "follower", f.id, "from", p.From, "to", p.To, "version", f.version)
		return f.version, nil
	}
	if p.From > f.version {
		return f.version, newGapError(f.id, p.From, f.version)
	}

	for _, s := range p.Spawns {
		if _, ok := f.entities[s.ID]; ok {
			continue
		}
		node, err := f.schema.Build(s.Class)
		if err != nil {
			return f.version, fmt.Errorf("spawn %s: %w", s.ID, err)
		}
		f.entities[s.ID] = &mirror{class: s.Class, node: node}
		f.order = append(f.order, s.ID)
	}

	for _, id := range ir.SortKeys(p.Updates) {
		m, ok := f.entities[id]
		if !ok {
			err := newUnknownEntityError(id)
			err.Follower = f.id
			return f.version, err
		}
		if err := replication.ApplyDiff(m.node, p.Updates[id]); err != nil {
			return f.version, fmt.Errorf("update %s: %w", id, err)
		}
	}

	for _, id := range p.Despawns {
		f.remove(id)
	}

	for _, m := range f.entities {
		m.node.Commit(p.To)
	}
	f.version = p.To

	f.logger.Debug("packet applied",
		"follower", f.id,
		"from", p.From,
		"to", p.To,
		"entities", len(f.entities),
	)
	return f.version, nil
}

func (f *Follower) remove(id string) {
	if _, ok := f.entities[id]; !ok {
		return
	}
	delete(f.entities, id)
	for i, e := range f.order {
		if e == id {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
}

// State returns the mirrored state of an entity.
func (f *Follower) State(id string) (ir.IRObject, bool) {
	m, ok := f.entities[id]
	if !ok {
		return nil, false
	}
	return m.node.State(), true
}

// Class returns the class of a mirrored entity.
func (f *Follower) Class(id string) (string, bool) {
	m, ok := f.entities[id]
	if !ok {
		return "", false
	}
	return m.class, true
}

// Entities returns mirrored entity IDs in spawn order.
func (f *Follower) Entities() []string {
	return append([]string(nil), f.order...)
}
