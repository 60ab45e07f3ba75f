package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/repgraph/internal/compiler"
	"github.com/roach88/repgraph/internal/engine"
	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/store"
	"github.com/roach88/repgraph/internal/wire"
)

// ReplayOptions holds flags for the replay command.
type ReplayOptions struct {
	*RootOptions
	Follower string
}

// ReplayedEntity is one root entity as the rebuilt follower holds it.
type ReplayedEntity struct {
	ID    string         `json:"id"`
	Class string         `json:"class"`
	State map[string]any `json:"state"`
}

// FollowerReplay is the outcome of rebuilding one follower from its log.
type FollowerReplay struct {
	Follower string           `json:"follower"`
	Version  int64            `json:"version"`
	Acked    int64            `json:"acked"`
	Applied  int              `json:"applied"`
	Entities []ReplayedEntity `json:"entities"`
	Error    string           `json:"error,omitempty"`
}

// ReplayResult holds the replay output.
type ReplayResult struct {
	Success   bool             `json:"success"`
	Followers []FollowerReplay `json:"followers"`
	Summary   store.LogSummary `json:"summary"`
}

// NewReplayCommand creates the replay command.
func NewReplayCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ReplayOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "replay <specs-dir>",
		Short: "Rebuild followers from a packet log",
		Long: `Rebuild every follower's mirror by applying its logged packets in order.

The classes in <specs-dir> must hash to the schema the log was written
with. Replay fails if a packet cannot be decoded or applied, or if the
log skips versions.

Examples:
  repgraph replay ./specs --db ./repgraph.db
  repgraph replay ./specs --db ./repgraph.db --follower client
  repgraph replay ./specs --db ./repgraph.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReplay(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Follower, "follower", "", "only replay this follower")

	return cmd
}

func runReplay(opts *ReplayOptions, specsDir string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)
	logger := formatter.Logger()

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

	st, err := openLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	if err := checkSchemaHash(ctx, st, loadResult.Classes); err != nil {
		_ = formatter.Error(ErrCodeSchemaHash, err.Error(), nil)
		return WrapExitError(ExitCommandError, ErrCodeSchemaHash, err)
	}

	followers, err := selectFollowers(ctx, st, opts.Follower)
	if err != nil {
		return err
	}

	result := ReplayResult{Success: true, Followers: make([]FollowerReplay, 0, len(followers))}
	for _, f := range followers {
		fr, err := replayFollower(ctx, st, schema, f)
		if err != nil {
			return err
		}
		if fr.Error != "" {
			result.Success = false
			logger.Warn("replay failed", "follower", f, "version", fr.Version, "error", fr.Error)
		} else {
			logger.Debug("follower replayed", "follower", f, "version", fr.Version, "packets", fr.Applied)
		}
		result.Followers = append(result.Followers, fr)
	}

	result.Summary, err = st.Summarize(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize log", err)
	}

	if formatter.IsJSON() {
		if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		outputReplayText(formatter, result)
	}

	if !result.Success {
		return NewExitError(ExitFailure, "replay failed")
	}
	return nil
}

// checkSchemaHash rejects a log written for a different schema. A log
// without a recorded hash is accepted.
func checkSchemaHash(ctx context.Context, st *store.Store, classes []ir.ClassSpec) error {
	want, ok, err := st.ReadSchemaHash(ctx)
	if err != nil {
		return err
	}
	if !ok {
		return nil
	}
	got, err := ir.SchemaHash(classes)
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("schema hash mismatch: log has %s, specs hash to %s", want, got)
	}
	return nil
}

// replayFollower applies a follower's logged packets in order. Apply
// failures are reported in the result, storage failures as errors.
func replayFollower(ctx context.Context, st *store.Store, schema *engine.Schema, follower string) (FollowerReplay, error) {
	fr := FollowerReplay{Follower: follower, Entities: []ReplayedEntity{}}

	acked, _, err := st.ReadAck(ctx, follower)
	if err != nil {
		return fr, WrapExitError(ExitCommandError, "failed to read ack", err)
	}
	fr.Acked = acked

	recs, err := st.ReadPackets(ctx, follower)
	if err != nil {
		return fr, WrapExitError(ExitCommandError, "failed to read packets", err)
	}

	f := engine.NewFollower(follower, schema)
	for _, rec := range recs {
		p, err := wire.Decode(rec.Payload)
		if err != nil {
			fr.Error = fmt.Sprintf("packet %s: %v", rec.ID, err)
			break
		}
		if _, err := f.Apply(p); err != nil {
			fr.Error = fmt.Sprintf("packet (%d,%d]: %v", p.From, p.To, err)
			break
		}
		fr.Applied++
	}

	fr.Version = f.Version()
	for _, id := range f.Entities() {
		class, _ := f.Class(id)
		state, _ := f.State(id)
		m, _ := ir.ToGo(state).(map[string]any)
		fr.Entities = append(fr.Entities, ReplayedEntity{ID: id, Class: class, State: m})
	}
	return fr, nil
}

func outputReplayText(formatter *OutputFormatter, result ReplayResult) {
	w := formatter.Writer
	for _, fr := range result.Followers {
		mark := "✓"
		if fr.Error != "" {
			mark = "✗"
		}
		fmt.Fprintf(w, "%s %s at version %d (acked %d, %d packet(s) applied)\n", mark, fr.Follower, fr.Version, fr.Acked, fr.Applied)
		if fr.Error != "" {
			fmt.Fprintf(w, "  %s\n", fr.Error)
		}
		for _, e := range fr.Entities {
			state, err := ir.MarshalCanonical(e.State)
			if err != nil {
				state = []byte(err.Error())
			}
			fmt.Fprintf(w, "  %s %s %s\n", e.ID, e.Class, state)
		}
	}

	s := result.Summary
	fmt.Fprintf(w, "\nLog: version %d, %d packet(s), %d follower(s), %d alive of %d entit%s\n",
		s.MaxVersion, s.Packets, s.Followers, s.Alive, s.Entities, plural(s.Entities, "y", "ies"))
}
