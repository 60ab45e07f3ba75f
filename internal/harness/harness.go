package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/repgraph/internal/compiler"
	"github.com/roach88/repgraph/internal/engine"
	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/store"
	"github.com/roach88/repgraph/internal/testutil"
	"github.com/roach88/repgraph/internal/wire"
)

// Harness is the test execution engine.
// It runs scenarios with a deterministic clock and entity IDs.
type Harness struct {
	store     *store.Store
	authority *engine.Replicator
	followers map[string]*engine.Follower
	aliases   map[string]string
	logger    *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Compile and check the schema
// 2. Create the authority, its packet log and the followers
// 3. Execute steps, checking per-step expectations
// 4. Read back the packet log and evaluate assertions
//
// Errors in the scenario itself (bad schema, unknown follower) are returned
// as errors; failed expectations are recorded in the Result.
func Run(scenario *Scenario) (*Result, error) {
	if err := validateScenario(scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	classes, err := loadClasses(scenario)
	if err != nil {
		return nil, err
	}
	schema, err := engine.NewSchema(classes)
	if err != nil {
		return nil, fmt.Errorf("failed to index schema: %w", err)
	}

	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	hash, err := ir.SchemaHash(classes)
	if err != nil {
		return nil, fmt.Errorf("failed to hash schema: %w", err)
	}
	if err := st.WriteSchemaHash(ctx, hash); err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	h := &Harness{
		store: st,
		authority: engine.NewReplicator(schema,
			engine.WithClock(testutil.NewDeterministicClock()),
			engine.WithIDGenerator(testutil.NewSequentialIDs("e")),
			engine.WithPacketLog(st),
			engine.WithLogger(logger),
		),
		followers: make(map[string]*engine.Follower, len(scenario.Followers)),
		aliases:   make(map[string]string),
		logger:    logger,
	}
	for _, name := range scenario.Followers {
		h.authority.AddFollower(name)
		h.followers[name] = engine.NewFollower(name, schema, engine.WithLogger(logger))
	}

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.executeStep(ctx, step, result); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}

	if err := h.readLog(ctx, result); err != nil {
		return nil, err
	}

	actx := &AssertionContext{
		Authority: h.authority,
		Followers: h.followers,
		Aliases:   h.aliases,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

func loadClasses(s *Scenario) ([]ir.ClassSpec, error) {
	var (
		classes []ir.ClassSpec
		err     error
	)
	if s.Schema != "" {
		classes, err = compiler.CompileSource(s.Name+".cue", s.Schema)
	} else {
		classes, err = compiler.LoadFiles(s.Specs...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	if errs := compiler.Check(classes); len(errs) > 0 {
		return nil, fmt.Errorf("invalid schema: %w", errors.Join(errs...))
	}
	return classes, nil
}

// entity resolves an alias to an entity ID. Unknown names are taken as IDs.
func (h *Harness) entity(ref string) string {
	if id, ok := h.aliases[ref]; ok {
		return id
	}
	return ref
}

func (h *Harness) executeStep(ctx context.Context, step Step, result *Result) error {
	switch {
	case step.Spawn != nil:
		h.spawn(ctx, step.Spawn, result)
	case step.Set != nil:
		return h.set(step.Set, result)
	case step.Despawn != nil:
		h.despawn(ctx, step.Despawn, result)
	case step.Sync != nil:
		return h.sync(ctx, step.Sync, result)
	case step.Tick != nil:
		return h.tick(ctx, step.Tick, result)
	}
	return nil
}

func (h *Harness) spawn(ctx context.Context, s *SpawnStep, result *Result) {
	var (
		id  string
		err error
	)
	if s.Queued {
		id = h.authority.NewEntityID()
		h.authority.Enqueue(engine.Mutation{Kind: engine.MutationSpawn, Entity: id, Class: s.Class})
	} else {
		id, err = h.authority.Spawn(ctx, s.Class)
	}
	if checkExpectedError(fmt.Sprintf("spawn %s", s.Class), s.ExpectError, err, result) && s.As != "" {
		h.aliases[s.As] = id
	}
}

func (h *Harness) set(s *SetStep, result *Result) error {
	v, err := ir.FromGo(s.Value)
	if err != nil {
		return fmt.Errorf("set %s.%s: %w", s.Entity, s.Path, err)
	}
	id := h.entity(s.Entity)
	if s.Queued {
		h.authority.Enqueue(engine.Mutation{Kind: engine.MutationSet, Entity: id, Path: s.Path, Value: v})
		return nil
	}
	err = h.authority.Set(id, s.Path, v)
	checkExpectedError(fmt.Sprintf("set %s.%s", s.Entity, s.Path), s.ExpectError, err, result)
	return nil
}

func (h *Harness) despawn(ctx context.Context, s *DespawnStep, result *Result) {
	id := h.entity(s.Entity)
	if s.Queued {
		h.authority.Enqueue(engine.Mutation{Kind: engine.MutationDespawn, Entity: id})
		return
	}
	err := h.authority.Despawn(ctx, id)
	checkExpectedError(fmt.Sprintf("despawn %s", s.Entity), s.ExpectError, err, result)
}

// checkExpectedError records a mismatch between err and the expected
// RuntimeErrorCode. Reports whether the step succeeded.
func checkExpectedError(step, want string, err error, result *Result) bool {
	switch {
	case want == "" && err != nil:
		result.AddError(fmt.Sprintf("%s: unexpected error: %v", step, err))
	case want != "" && err == nil:
		result.AddError(fmt.Sprintf("%s: expected error %s, got success", step, want))
	case want != "" && !engine.HasCode(err, engine.RuntimeErrorCode(want)):
		result.AddError(fmt.Sprintf("%s: expected error %s, got: %v", step, want, err))
	}
	return err == nil
}

func (h *Harness) sync(ctx context.Context, s *SyncStep, result *Result) error {
	p, err := h.authority.Generate(ctx, s.Follower)
	if err != nil {
		return fmt.Errorf("generate for %s: %w", s.Follower, err)
	}

	if s.Expect != nil {
		for _, msg := range checkPacket(p, s.Expect, h.entity) {
			result.AddError(fmt.Sprintf("sync %s (%d,%d]: %s", s.Follower, p.From, p.To, msg))
		}
	}

	return h.deliver(ctx, s.Follower, p, s.Ack == nil || *s.Ack, result)
}

func (h *Harness) tick(ctx context.Context, s *TickStep, result *Result) error {
	out, err := h.authority.Tick(ctx)
	if err != nil {
		return fmt.Errorf("tick: %w", err)
	}
	if s.Packets != nil && len(out) != *s.Packets {
		result.AddError(fmt.Sprintf("tick: expected %d packets, got %d", *s.Packets, len(out)))
	}
	for _, o := range out {
		if err := h.deliver(ctx, o.Follower, o.Packet, true, result); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends p through the wire codec to the follower and acknowledges
// what the follower applied.
func (h *Harness) deliver(ctx context.Context, follower string, p wire.Packet, ack bool, result *Result) error {
	payload, err := p.Encode()
	if err != nil {
		return fmt.Errorf("encode packet for %s: %w", follower, err)
	}
	received, err := wire.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode packet for %s: %w", follower, err)
	}

	version, err := h.followers[follower].Apply(received)
	if err != nil {
		result.AddError(fmt.Sprintf("apply (%d,%d] on %s: %v", p.From, p.To, follower, err))
		return nil
	}
	result.Deliveries++

	if !ack {
		return nil
	}
	if err := h.authority.Ack(ctx, follower, version); err != nil {
		return fmt.Errorf("ack %s@%d: %w", follower, version, err)
	}
	return nil
}

// readLog copies the persisted packet log and entity registry into result.
func (h *Harness) readLog(ctx context.Context, result *Result) error {
	followers, err := h.store.ReadFollowers(ctx)
	if err != nil {
		return fmt.Errorf("failed to read followers: %w", err)
	}
	for _, f := range followers {
		recs, err := h.store.ReadPackets(ctx, f)
		if err != nil {
			return fmt.Errorf("failed to read packets: %w", err)
		}
		for _, rec := range recs {
			result.Packets = append(result.Packets, PacketTrace{
				Follower: rec.FollowerID,
				From:     rec.FromVersion,
				To:       rec.ToVersion,
				Payload:  string(rec.Payload),
			})
		}
	}

	result.Entities, err = h.store.ReadEntities(ctx)
	if err != nil {
		return fmt.Errorf("failed to read entities: %w", err)
	}
	return nil
}
