package cli

import (
	"context"
	"fmt"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/roach88/repgraph/internal/store"
	"github.com/roach88/repgraph/internal/wire"
)

// TraceOptions holds flags for the trace command.
type TraceOptions struct {
	*RootOptions
	Follower string // optional - filter to one follower
	Payload  bool   // include the canonical payload of every packet
}

// PacketEntry is one logged packet.
type PacketEntry struct {
	ID       string `json:"id"`
	From     int64  `json:"from"`
	To       int64  `json:"to"`
	Spawns   int    `json:"spawns"`
	Despawns int    `json:"despawns"`
	Updates  int    `json:"updates"`
	Bytes    int    `json:"bytes"`
	Payload  string `json:"payload,omitempty"`
}

// FollowerTrace is the packet history of one follower.
type FollowerTrace struct {
	Follower string        `json:"follower"`
	Acked    int64         `json:"acked"`
	Packets  []PacketEntry `json:"packets"`
}

// TraceResult holds the complete trace output.
type TraceResult struct {
	SchemaHash string           `json:"schema_hash,omitempty"`
	Followers  []FollowerTrace  `json:"followers"`
	Summary    store.LogSummary `json:"summary"`
}

// NewTraceCommand creates the trace command.
func NewTraceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &TraceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "trace",
		Short: "List the packets in a packet log",
		Long: `List every packet an authority logged, per follower.

Each packet is shown with its version window, what it carries and its
encoded size, along with the version the follower last acknowledged.

Examples:
  repgraph trace --db ./repgraph.db
  repgraph trace --db ./repgraph.db --follower client --payload
  repgraph trace --db ./repgraph.db --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTrace(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Follower, "follower", "", "only show this follower")
	cmd.Flags().BoolVar(&opts.Payload, "payload", false, "include packet payloads")

	return cmd
}

// openLog opens an existing packet log. Open would create a missing file,
// so existence is checked first.
func openLog(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no packet log given: use --db or REPGRAPH_DB")
	}
	if _, err := os.Stat(path); err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("%s: packet log not found", ErrCodeNotFound), err)
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return st, nil
}

// selectFollowers returns the logged followers, narrowed to one if a filter
// is given.
func selectFollowers(ctx context.Context, st *store.Store, filter string) ([]string, error) {
	followers, err := st.ReadFollowers(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to read followers", err)
	}
	if filter == "" {
		return followers, nil
	}
	if !slices.Contains(followers, filter) {
		return nil, NewExitError(ExitCommandError, fmt.Sprintf("follower %q not found in log", filter))
	}
	return []string{filter}, nil
}

func runTrace(opts *TraceOptions, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	formatter := newFormatter(opts.RootOptions, cmd)

	st, err := openLog(opts.Database)
	if err != nil {
		return err
	}
	defer st.Close()

	followers, err := selectFollowers(ctx, st, opts.Follower)
	if err != nil {
		return err
	}

	result := TraceResult{Followers: make([]FollowerTrace, 0, len(followers))}
	result.SchemaHash, _, err = st.ReadSchemaHash(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read schema hash", err)
	}
	result.Summary, err = st.Summarize(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to summarize log", err)
	}

	for _, f := range followers {
		ft, err := traceFollower(ctx, st, f, opts.Payload)
		if err != nil {
			return err
		}
		result.Followers = append(result.Followers, ft)
	}

	if formatter.IsJSON() {
		return formatter.Success(result)
	}
	return outputTraceText(formatter, result)
}

func traceFollower(ctx context.Context, st *store.Store, follower string, withPayload bool) (FollowerTrace, error) {
	ft := FollowerTrace{Follower: follower, Packets: []PacketEntry{}}

	acked, _, err := st.ReadAck(ctx, follower)
	if err != nil {
		return ft, WrapExitError(ExitCommandError, "failed to read ack", err)
	}
	ft.Acked = acked

	recs, err := st.ReadPackets(ctx, follower)
	if err != nil {
		return ft, WrapExitError(ExitCommandError, "failed to read packets", err)
	}
	for _, rec := range recs {
		p, err := wire.Decode(rec.Payload)
		if err != nil {
			return ft, WrapExitError(ExitFailure, fmt.Sprintf("packet %s is corrupt", rec.ID), err)
		}
		entry := PacketEntry{
			ID:       rec.ID,
			From:     rec.FromVersion,
			To:       rec.ToVersion,
			Spawns:   len(p.Spawns),
			Despawns: len(p.Despawns),
			Updates:  len(p.Updates),
			Bytes:    len(rec.Payload),
		}
		if withPayload {
			entry.Payload = string(rec.Payload)
		}
		ft.Packets = append(ft.Packets, entry)
	}
	return ft, nil
}

func outputTraceText(formatter *OutputFormatter, result TraceResult) error {
	w := formatter.Writer
	if len(result.Followers) == 0 {
		fmt.Fprintln(w, "No packets logged.")
		return nil
	}

	if result.SchemaHash != "" {
		fmt.Fprintf(w, "Schema: %s\n\n", result.SchemaHash)
	}
	for _, ft := range result.Followers {
		fmt.Fprintf(w, "%s (acked %d, %d packet(s))\n", ft.Follower, ft.Acked, len(ft.Packets))
		for _, p := range ft.Packets {
			fmt.Fprintf(w, "  (%d,%d] +%d -%d ~%d %dB\n", p.From, p.To, p.Spawns, p.Despawns, p.Updates, p.Bytes)
			if p.Payload != "" {
				fmt.Fprintf(w, "    %s\n", p.Payload)
			}
		}
		fmt.Fprintln(w)
	}

	s := result.Summary
	fmt.Fprintf(w, "Version %d: %d packet(s) to %d follower(s), %d entit%s (%d alive)\n",
		s.MaxVersion, s.Packets, s.Followers, s.Entities, plural(s.Entities, "y", "ies"), s.Alive)
	return nil
}
