package engine

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
	"github.com/roach88/repgraph/internal/wire"
)

// PacketLog persists what the authority sends. Implemented by *store.Store.
type PacketLog interface {
	AppendPacket(ctx context.Context, rec ir.PacketRecord) error
	WriteAck(ctx context.Context, followerID string, version int64) error
	WriteEntity(ctx context.Context, rec ir.EntityRecord) error
	MarkDespawned(ctx context.Context, id string, version int64) error
}

// Outgoing is a packet addressed to one follower.
type Outgoing struct {
	Follower string
	Packet   wire.Packet
}

type entity struct {
	id          string
	class       string
	node        *replication.Node
	spawnedAt   int64
	despawnedAt int64 // 0 while alive
}

// Replicator is the authoritative side: it owns the root entities, tracks
// each follower's acknowledged version, and produces packets.
//
// Thread-safety model:
//   - Enqueue(): safe from any goroutine
//   - Spawn/Set/Despawn/Generate/Ack/Tick: serialized by an internal mutex;
//     Tick applies a whole batch of mutations and generates every
//     follower's packet under one lock, so each follower sees a consistent
//     graph
//   - Run(): must be called from exactly one goroutine
//
// INVARIANTS:
//   - every packet's To comes from the clock and is greater than every
//     version issued before it
//   - acks never decrease and never exceed the clock
type Replicator struct {
	mu sync.Mutex

	schema *Schema
	clock  VersionClock
	ids    EntityIDGenerator
	log    PacketLog
	logger *slog.Logger
	queue  *mutationQueue

	entities  map[string]*entity
	order     []string // spawn order, including despawned entities
	followers map[string]int64
	fOrder    []string
}

// Option configures a Replicator or Follower.
type Option func(*options)

type options struct {
	clock  VersionClock
	ids    EntityIDGenerator
	log    PacketLog
	logger *slog.Logger
}

// WithClock sets the version clock. Default: NewClock().
func WithClock(c VersionClock) Option {
	return func(o *options) {
		o.clock = c
	}
}

// WithIDGenerator sets the entity ID generator. Default: UUIDv7Generator.
func WithIDGenerator(g EntityIDGenerator) Option {
	return func(o *options) {
		o.ids = g
	}
}

// WithPacketLog persists packets, acks and the entity registry.
func WithPacketLog(l PacketLog) Option {
	return func(o *options) {
		o.log = l
	}
}

// WithLogger sets the structured logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func buildOptions(opts []Option) options {
	o := options{
		clock:  NewClock(),
		ids:    UUIDv7Generator{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// NewReplicator creates an authority for the given schema.
func NewReplicator(schema *Schema, opts ...Option) *Replicator {
	o := buildOptions(opts)
	return &Replicator{
		schema:    schema,
		clock:     o.clock,
		ids:       o.ids,
		log:       o.log,
		logger:    o.logger,
		queue:     newMutationQueue(),
		entities:  make(map[string]*entity),
		followers: make(map[string]int64),
	}
}

// NewEntityID returns a fresh entity ID for a queued spawn.
// Thread-safe: may be called from any goroutine.
func (r *Replicator) NewEntityID() string {
	return r.ids.Generate()
}

// Version returns the last issued version.
func (r *Replicator) Version() int64 {
	return r.clock.Current()
}

// Spawn creates a root entity of class with default property values.
func (r *Replicator) Spawn(ctx context.Context, class string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.ids.Generate()
	return id, r.spawn(ctx, id, class)
}

func (r *Replicator) spawn(ctx context.Context, id, class string) error {
	if id == "" {
		return fmt.Errorf("spawn %s: empty entity ID", class)
	}
	if _, exists := r.entities[id]; exists {
		return fmt.Errorf("spawn %s: entity %s already exists", class, id)
	}
	node, err := r.schema.Build(class)
	if err != nil {
		return err
	}

	e := &entity{
		id:        id,
		class:     class,
		node:      node,
		spawnedAt: r.clock.Current() + 1,
	}
	if r.log != nil {
		rec := ir.EntityRecord{ID: id, Class: class, SpawnedAt: e.spawnedAt}
		if err := r.log.WriteEntity(ctx, rec); err != nil {
			return fmt.Errorf("spawn %s: %w", id, err)
		}
	}
	r.entities[id] = e
	r.order = append(r.order, id)

	r.logger.Debug("entity spawned", "entity", id, "class", class, "version", e.spawnedAt)
	return nil
}

// Set writes v at the dotted property path of a live entity. The value must
// match the property's declared type; IRNull clears a leaf.
func (r *Replicator) Set(id, path string, v ir.IRValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.set(id, path, v)
}

func (r *Replicator) set(id, path string, v ir.IRValue) error {
	e, ok := r.alive(id)
	if !ok {
		return newUnknownEntityError(id)
	}
	node, prop, err := r.schema.resolve(e.node, e.class, id, path)
	if err != nil {
		return err
	}
	if v == nil {
		v = ir.IRNull{}
	}
	if !ir.Accepts(prop.Type, v) {
		return newTypeMismatchError(id, path, prop.Type, v)
	}
	node.Set(prop.Name, v)
	return nil
}

// Despawn removes a live entity. Followers learn about it in their next
// packet.
func (r *Replicator) Despawn(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.despawn(ctx, id)
}

func (r *Replicator) despawn(ctx context.Context, id string) error {
	e, ok := r.alive(id)
	if !ok {
		return newUnknownEntityError(id)
	}
	version := r.clock.Current() + 1
	if r.log != nil {
		if err := r.log.MarkDespawned(ctx, id, version); err != nil {
			return fmt.Errorf("despawn %s: %w", id, err)
		}
	}
	e.despawnedAt = version
	e.node = nil

	r.logger.Debug("entity despawned", "entity", id, "version", version)
	return nil
}

func (r *Replicator) alive(id string) (*entity, bool) {
	e, ok := r.entities[id]
	if !ok || e.despawnedAt != 0 {
		return nil, false
	}
	return e, true
}

// State returns the current full state of a live entity.
func (r *Replicator) State(id string) (ir.IRObject, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.alive(id)
	if !ok {
		return nil, false
	}
	return e.node.State(), true
}

// Entities returns the IDs of live entities in spawn order.
func (r *Replicator) Entities() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, id := range r.order {
		if r.entities[id].despawnedAt == 0 {
			out = append(out, id)
		}
	}
	return out
}

// AddFollower registers a follower that has acknowledged nothing yet.
// Adding a known follower is a no-op.
func (r *Replicator) AddFollower(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.followers[id]; ok {
		return
	}
	r.followers[id] = 0
	r.fOrder = append(r.fOrder, id)
}

// Followers returns follower IDs in registration order.
func (r *Replicator) Followers() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.fOrder...)
}

// Acked returns the last version the follower acknowledged.
func (r *Replicator) Acked(follower string) (int64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.followers[follower]
	return v, ok
}

// Ack records that follower has applied everything up to version.
// Older acks are ignored; acks beyond the clock are rejected.
func (r *Replicator) Ack(ctx context.Context, follower string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.followers[follower]
	if !ok {
		return newUnknownFollowerError(follower)
	}
	if version > r.clock.Current() {
		return newInvalidAckError(follower, version, r.clock.Current())
	}
	if version <= current {
		return nil
	}
	if r.log != nil {
		if err := r.log.WriteAck(ctx, follower, version); err != nil {
			return fmt.Errorf("ack %s@%d: %w", follower, version, err)
		}
	}
	r.followers[follower] = version
	return nil
}

// Generate produces the packet that moves follower from its acknowledged
// version to a newly issued one.
func (r *Replicator) Generate(ctx context.Context, follower string) (wire.Packet, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.followers[follower]; !ok {
		return wire.Packet{}, newUnknownFollowerError(follower)
	}
	return r.generate(ctx, follower, r.clock.Next())
}

func (r *Replicator) generate(ctx context.Context, follower string, to int64) (wire.Packet, error) {
	from := r.followers[follower]
	p := wire.Packet{From: from, To: to}

	for _, id := range r.order {
		e := r.entities[id]
		if e.despawnedAt != 0 {
			if e.despawnedAt > from {
				p.Despawns = append(p.Despawns, id)
			}
			continue
		}
		if e.spawnedAt > from {
			p.Spawns = append(p.Spawns, wire.Spawn{ID: id, Class: e.class})
		}

		d := e.node.GenDiff(from, to)
		switch d.Kind {
		case replication.DiffSnapshot:
			if p.Updates == nil {
				p.Updates = make(map[string]replication.Snapshot)
			}
			p.Updates[id] = d.Snapshot
		case replication.DiffInvalidRange:
			return wire.Packet{}, fmt.Errorf("generate %s: invalid range (%d, %d]", follower, from, to)
		}
	}

	if r.log != nil && !p.Empty() {
		payload, err := p.Encode()
		if err != nil {
			return wire.Packet{}, fmt.Errorf("generate %s: %w", follower, err)
		}
		rec := ir.PacketRecord{
			ID:          ir.PacketID(follower, payload),
			FollowerID:  follower,
			FromVersion: p.From,
			ToVersion:   p.To,
			Payload:     payload,
		}
		if err := r.log.AppendPacket(ctx, rec); err != nil {
			return wire.Packet{}, fmt.Errorf("generate %s: %w", follower, err)
		}
	}

	r.logger.Debug("packet generated",
		"follower", follower,
		"from", p.From,
		"to", p.To,
		"spawns", len(p.Spawns),
		"despawns", len(p.Despawns),
		"updates", len(p.Updates),
	)
	return p, nil
}

// Enqueue submits a mutation for the next tick.
// Thread-safe: may be called from any goroutine.
//
// Returns false if the replicator has been stopped.
func (r *Replicator) Enqueue(m Mutation) bool {
	return r.queue.Enqueue(m)
}

// Tick applies every queued mutation in FIFO order, then issues one new
// version and generates a packet for every follower against it. Followers
// with nothing to receive are left out of the result.
//
// ERROR HANDLING: a failed mutation is logged and skipped; the rest of the
// batch still applies. Generation and persistence failures abort the tick.
func (r *Replicator) Tick(ctx context.Context) ([]Outgoing, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range r.queue.Drain() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := r.apply(ctx, m); err != nil {
			logMutationError(r.logger, m, err)
		}
	}

	if len(r.fOrder) == 0 {
		return nil, nil
	}

	to := r.clock.Next()
	var out []Outgoing
	for _, f := range r.fOrder {
		p, err := r.generate(ctx, f, to)
		if err != nil {
			return nil, err
		}
		if p.Empty() {
			continue
		}
		out = append(out, Outgoing{Follower: f, Packet: p})
	}
	return out, nil
}

func (r *Replicator) apply(ctx context.Context, m Mutation) error {
	switch m.Kind {
	case MutationSpawn:
		return r.spawn(ctx, m.Entity, m.Class)
	case MutationSet:
		return r.set(m.Entity, m.Path, m.Value)
	case MutationDespawn:
		return r.despawn(ctx, m.Entity)
	default:
		return fmt.Errorf("unknown mutation kind: %d", m.Kind)
	}
}

func logMutationError(logger *slog.Logger, m Mutation, err error) {
	logger.Error("mutation failed",
		"kind", m.Kind.String(),
		"entity", m.Entity,
		"class", m.Class,
		"path", m.Path,
		"error", err,
	)
}

// Run ticks whenever mutations arrive and hands every outgoing packet to
// deliver. Blocks until ctx is cancelled or Stop is called.
//
// CRITICAL: Must be called from exactly ONE goroutine.
func (r *Replicator) Run(ctx context.Context, deliver func(Outgoing)) error {
	r.logger.Info("replicator starting")

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("replicator stopping: context cancelled")
			r.queue.Close()
			return ctx.Err()

		case _, ok := <-r.queue.Wait():
			out, err := r.Tick(ctx)
			if err != nil {
				return err
			}
			for _, o := range out {
				deliver(o)
			}
			if !ok {
				r.logger.Info("replicator stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the mutation queue. Run drains what is left and returns.
func (r *Replicator) Stop() {
	r.queue.Close()
}
