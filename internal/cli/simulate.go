package cli

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/repgraph/internal/compiler"
	"github.com/roach88/repgraph/internal/engine"
	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/store"
	"github.com/roach88/repgraph/internal/wire"
)

// SimulateOptions holds flags for the simulate command.
type SimulateOptions struct {
	*RootOptions
	Entities  int
	Rounds    int
	Followers int
	Seed      uint64
	Drop      int // percent of packets lost in transit
}

// SimulationResult summarizes a simulation run.
type SimulationResult struct {
	Converged  bool             `json:"converged"`
	Version    int64            `json:"version"`
	Mutations  int              `json:"mutations"`
	Delivered  int              `json:"delivered"`
	Dropped    int              `json:"dropped"`
	Bytes      int              `json:"bytes"`
	Live       int              `json:"live"`
	Divergence []string         `json:"divergence,omitempty"`
	Log        store.LogSummary `json:"log"`
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SimulateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "simulate <specs-dir>",
		Short: "Replicate a random workload and check convergence",
		Long: `Drive an authority with random spawns, property writes and despawns,
replicate every tick to a set of followers over the wire encoding, and
check that each follower ends up with exactly the authority's state.

With --drop, that share of packets is lost; the authority resends what
was not acknowledged. With --db, every packet and ack is logged there for
trace and replay.

Examples:
  repgraph simulate ./specs
  repgraph simulate ./specs --rounds 50 --followers 3 --drop 20 --seed 7
  repgraph simulate ./specs --db ./repgraph.db`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSimulate(opts, args[0], cmd)
		},
	}

	cmd.Flags().IntVar(&opts.Entities, "entities", 5, "live entities to aim for")
	cmd.Flags().IntVar(&opts.Rounds, "rounds", 10, "ticks to run")
	cmd.Flags().IntVar(&opts.Followers, "followers", 1, "number of followers")
	cmd.Flags().Uint64Var(&opts.Seed, "seed", 1, "random seed")
	cmd.Flags().IntVar(&opts.Drop, "drop", 0, "percent of packets to drop (0-100)")

	return cmd
}

func runSimulate(opts *SimulateOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

	if opts.Followers < 1 || opts.Rounds < 0 || opts.Entities < 1 || opts.Drop < 0 || opts.Drop > 100 {
		return NewExitError(ExitCommandError, "need --followers >= 1, --entities >= 1, --rounds >= 0 and --drop in 0..100")
	}

	loadResult, loadErrors := LoadSpecs(specsDir, LoadModeFailFast)
	if len(loadErrors) > 0 {
		code, message := parseCompileError(loadErrors[0])
		_ = formatter.Error(code, message, nil)
		return NewExitError(ExitCommandError, fmt.Sprintf("%s: %s", code, message))
	}
	if errs := compiler.Check(loadResult.Classes); len(errs) > 0 {
		return outputCompileErrors(formatter, errs)
	}
	schema, err := engine.NewSchema(loadResult.Classes)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to index schema", err)
	}

	st, err := openSimulationLog(ctx, opts.Database, loadResult.Classes)
	if err != nil {
		_ = formatter.Error(ErrCodeSchemaHash, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to prepare packet log", err)
	}
	defer st.Close()

	// A resumed log already holds versions; keep issuing newer ones.
	before, err := st.Summarize(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize log", err)
	}

	sim := &simulation{
		opts:   opts,
		rng:    rand.New(rand.NewPCG(opts.Seed, opts.Seed^0x9e3779b97f4a7c15)),
		schema: schema,
		authority: engine.NewReplicator(schema,
			engine.WithClock(engine.NewClockAt(before.MaxVersion)),
			engine.WithPacketLog(st),
			engine.WithLogger(logger),
		),
		followers: make(map[string]*engine.Follower, opts.Followers),
		classOf:   make(map[string]string),
	}
	for i := range opts.Followers {
		name := fmt.Sprintf("follower-%d", i+1)
		sim.authority.AddFollower(name)
		sim.followers[name] = engine.NewFollower(name, schema, engine.WithLogger(logger))
		sim.names = append(sim.names, name)
	}

	for round := range opts.Rounds {
		sim.enqueueRound()
		if err := sim.tick(ctx, true); err != nil {
			return WrapExitError(ExitFailure, fmt.Sprintf("round %d", round+1), err)
		}
		formatter.VerboseLog("round %d: version %d, %d live", round+1, sim.authority.Version(), len(sim.live))
	}
	if err := sim.settle(ctx); err != nil {
		return WrapExitError(ExitFailure, "final sync", err)
	}

	result := SimulationResult{
		Version:   sim.authority.Version(),
		Mutations: sim.mutations,
		Delivered: sim.delivered,
		Dropped:   sim.dropped,
		Bytes:     sim.bytes,
		Live:      len(sim.authority.Entities()),
	}
	result.Divergence = sim.divergence()
	result.Converged = len(result.Divergence) == 0
	result.Log, err = st.Summarize(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize log", err)
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputSimulationText(formatter, result)
	}
	if !result.Converged {
		return NewExitError(ExitFailure, "followers diverged from the authority")
	}
	return nil
}

// openSimulationLog opens the packet log at path, or an in-memory one, and
// stamps it with the schema hash. An existing log must carry the same hash.
func openSimulationLog(ctx context.Context, path string, classes []ir.ClassSpec) (*store.Store, error) {
	var (
		st  *store.Store
		err error
	)
	if path == "" {
		st, err = store.OpenMemory()
	} else {
		st, err = store.Open(path)
	}
	if err != nil {
		return nil, err
	}
	if err := checkSchemaHash(ctx, st, classes); err != nil {
		st.Close()
		return nil, err
	}
	hash, err := ir.SchemaHash(classes)
	if err != nil {
		st.Close()
		return nil, err
	}
	if err := st.WriteSchemaHash(ctx, hash); err != nil {
		st.Close()
		return nil, err
	}
	return st, nil
}

type simulation struct {
	opts      *SimulateOptions
	rng       *rand.Rand
	schema    *engine.Schema
	authority *engine.Replicator
	followers map[string]*engine.Follower
	names     []string

	live      []string // entities spawned or queued for spawn, not despawned
	classOf   map[string]string
	mutations int
	delivered int
	dropped   int
	bytes     int
}

// enqueueRound queues one tick's worth of mutations. The live set is
// tracked at enqueue time, so every queued mutation names an entity that
// exists when the tick applies it.
func (s *simulation) enqueueRound() {
	for range s.opts.Entities {
		switch roll := s.rng.IntN(10); {
		case len(s.live) < s.opts.Entities && roll < 3:
			s.enqueueSpawn()
		case len(s.live) > 0 && roll == 9:
			i := s.rng.IntN(len(s.live))
			s.enqueue(engine.Mutation{Kind: engine.MutationDespawn, Entity: s.live[i]})
			s.live = slices.Delete(s.live, i, i+1)
		case len(s.live) > 0:
			s.enqueueSet(s.live[s.rng.IntN(len(s.live))])
		default:
			s.enqueueSpawn()
		}
	}
}

func (s *simulation) enqueueSpawn() {
	names := s.schema.Names()
	class := names[s.rng.IntN(len(names))]
	id := s.authority.NewEntityID()
	s.enqueue(engine.Mutation{Kind: engine.MutationSpawn, Entity: id, Class: class})
	s.live = append(s.live, id)
	s.classOf[id] = class
}

func (s *simulation) enqueueSet(id string) {
	class := s.classOf[id]
	paths := leafPaths(s.schema, class, "")
	if len(paths) == 0 {
		return
	}
	leaf := paths[s.rng.IntN(len(paths))]
	s.enqueue(engine.Mutation{
		Kind:   engine.MutationSet,
		Entity: id,
		Path:   leaf.path,
		Value:  s.randomValue(leaf.typ),
	})
}

func (s *simulation) enqueue(m engine.Mutation) {
	if s.authority.Enqueue(m) {
		s.mutations++
	}
}

type leaf struct {
	path string
	typ  string
}

// leafPaths lists the dotted paths of every leaf property of class,
// descending into nested classes.
func leafPaths(schema *engine.Schema, class, prefix string) []leaf {
	spec, ok := schema.Class(class)
	if !ok {
		return nil
	}
	var out []leaf
	for _, p := range spec.Properties {
		if p.Type == ir.TypeClass {
			out = append(out, leafPaths(schema, p.Class, prefix+p.Name+".")...)
			continue
		}
		out = append(out, leaf{path: prefix + p.Name, typ: p.Type})
	}
	return out
}

func (s *simulation) randomValue(typ string) ir.IRValue {
	if s.rng.IntN(20) == 0 {
		return ir.IRNull{}
	}
	switch typ {
	case ir.TypeString:
		return ir.IRString(fmt.Sprintf("s%d", s.rng.IntN(1000)))
	case ir.TypeInt:
		return ir.IRInt(s.rng.Int64N(2000) - 1000)
	case ir.TypeBool:
		return ir.IRBool(s.rng.IntN(2) == 1)
	case ir.TypeArray:
		arr := make(ir.IRArray, s.rng.IntN(4))
		for i := range arr {
			arr[i] = ir.IRInt(s.rng.IntN(100))
		}
		return arr
	case ir.TypeObject:
		return ir.IRObject{"n": ir.IRInt(s.rng.IntN(100))}
	case ir.TypeRef:
		if len(s.live) == 0 {
			return ir.IRString("")
		}
		return ir.IRString(s.live[s.rng.IntN(len(s.live))])
	default:
		return ir.IRNull{}
	}
}

// tick applies the queued mutations and delivers the resulting packets.
// With lossy set, packets are dropped at the configured rate.
func (s *simulation) tick(ctx context.Context, lossy bool) error {
	out, err := s.authority.Tick(ctx)
	if err != nil {
		return err
	}
	for _, o := range out {
		if lossy && s.rng.IntN(100) < s.opts.Drop {
			s.dropped++
			continue
		}
		if err := s.deliver(ctx, o); err != nil {
			return err
		}
	}
	return nil
}

// deliver sends one packet through the wire encoding and acknowledges what
// the follower applied.
func (s *simulation) deliver(ctx context.Context, o engine.Outgoing) error {
	payload, err := o.Packet.Encode()
	if err != nil {
		return fmt.Errorf("encode packet for %s: %w", o.Follower, err)
	}
	s.bytes += len(payload)

	p, err := wire.Decode(payload)
	if err != nil {
		return fmt.Errorf("decode packet for %s: %w", o.Follower, err)
	}
	version, err := s.followers[o.Follower].Apply(p)
	if err != nil {
		return fmt.Errorf("apply (%d,%d] on %s: %w", p.From, p.To, o.Follower, err)
	}
	s.delivered++
	return s.authority.Ack(ctx, o.Follower, version)
}

// settle ticks without loss until no follower has anything left to
// receive. One lossless tick is enough; the bound guards against a
// replicator that keeps producing packets.
func (s *simulation) settle(ctx context.Context) error {
	for range 3 {
		out, err := s.authority.Tick(ctx)
		if err != nil {
			return err
		}
		if len(out) == 0 {
			return nil
		}
		for _, o := range out {
			if err := s.deliver(ctx, o); err != nil {
				return err
			}
		}
	}
	return errors.New("authority still has packets to send after settling")
}

// divergence compares every follower's mirror with the authority.
func (s *simulation) divergence() []string {
	var out []string
	want := s.authority.Entities()
	for _, name := range s.names {
		f := s.followers[name]
		got := f.Entities()
		if !slices.Equal(sortedCopy(want), sortedCopy(got)) {
			out = append(out, fmt.Sprintf("%s: entities %v, want %v", name, got, want))
			continue
		}
		for _, id := range want {
			a, _ := s.authority.State(id)
			b, _ := f.State(id)
			if !ir.Equal(a, b) {
				out = append(out, fmt.Sprintf("%s: entity %s differs", name, id))
			}
		}
	}
	return out
}

func sortedCopy(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return out
}

func outputSimulationText(formatter *OutputFormatter, r SimulationResult) {
	w := formatter.Writer
	if r.Converged {
		fmt.Fprintf(w, "✓ Followers converged at version %d\n", r.Version)
	} else {
		fmt.Fprintf(w, "✗ Followers diverged at version %d\n", r.Version)
		for _, d := range r.Divergence {
			fmt.Fprintf(w, "  %s\n", d)
		}
	}
	fmt.Fprintf(w, "  %d mutation(s), %d live entit%s\n", r.Mutations, r.Live, plural(r.Live, "y", "ies"))
	fmt.Fprintf(w, "  %d packet(s) delivered, %d dropped, %d byte(s) on the wire\n", r.Delivered, r.Dropped, r.Bytes)
	fmt.Fprintf(w, "  log: %d packet(s), %d entit%s\n", r.Log.Packets, r.Log.Entities, plural(r.Log.Entities, "y", "ies"))
}
