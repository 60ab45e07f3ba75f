package harness

import (
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/roach88/repgraph/internal/engine"
	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
	"github.com/roach88/repgraph/internal/wire"
)

// AssertionContext provides what assertions inspect after a run.
type AssertionContext struct {
	Authority *engine.Replicator
	Followers map[string]*engine.Follower
	Aliases   map[string]string
}

func (a *AssertionContext) entity(ref string) string {
	if id, ok := a.Aliases[ref]; ok {
		return id
	}
	return ref
}

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Follower string
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s (follower=%s)\n", e.Type, e.Follower)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s", e.Actual)
	return buf.String()
}

// EvaluateAssertions runs all assertions and returns error messages for
// failures. Returns an empty slice if all assertions pass.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	errs := []string{}
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertFollowerState:
			err = assertFollowerState(a, actx)
		case AssertInSync:
			err = assertInSync(a, actx)
		case AssertPacketCount:
			err = assertPacketCount(result, a)
		default:
			err = fmt.Errorf("unknown assertion type: %s", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

// assertFollowerState checks the follower's copy of one entity. Expect is a
// subset match: only the listed properties (recursively) are compared.
func assertFollowerState(a Assertion, actx *AssertionContext) error {
	f, ok := actx.Followers[a.Follower]
	if !ok {
		return fmt.Errorf("unknown follower %q", a.Follower)
	}
	id := actx.entity(a.Entity)
	state, exists := f.State(id)

	if a.Absent {
		if exists {
			return &AssertionError{
				Type:     AssertFollowerState,
				Follower: a.Follower,
				Expected: fmt.Sprintf("entity %s absent", a.Entity),
				Actual:   fmt.Sprintf("present with state %v", ir.ToGo(state)),
			}
		}
		return nil
	}

	if !exists {
		return &AssertionError{
			Type:     AssertFollowerState,
			Follower: a.Follower,
			Expected: fmt.Sprintf("entity %s with %v", a.Entity, a.Expect),
			Actual:   "entity not found",
		}
	}

	expected, err := normalize(a.Expect)
	if err != nil {
		return fmt.Errorf("follower_state expect: %w", err)
	}
	actual := ir.ToGo(state)
	if !subsetMatch(actual, expected) {
		return &AssertionError{
			Type:     AssertFollowerState,
			Follower: a.Follower,
			Expected: fmt.Sprintf("%s contains %v", a.Entity, expected),
			Actual:   fmt.Sprintf("%v", actual),
		}
	}
	return nil
}

// assertInSync checks that the follower mirrors exactly the authority's
// live entities with equal state.
func assertInSync(a Assertion, actx *AssertionContext) error {
	f, ok := actx.Followers[a.Follower]
	if !ok {
		return fmt.Errorf("unknown follower %q", a.Follower)
	}

	want := actx.Authority.Entities()
	got := f.Entities()
	if !slices.Equal(sorted(want), sorted(got)) {
		return &AssertionError{
			Type:     AssertInSync,
			Follower: a.Follower,
			Expected: fmt.Sprintf("entities %v", want),
			Actual:   fmt.Sprintf("entities %v", got),
		}
	}

	for _, id := range want {
		authState, _ := actx.Authority.State(id)
		mirrorState, _ := f.State(id)
		if !ir.Equal(authState, mirrorState) {
			return &AssertionError{
				Type:     AssertInSync,
				Follower: a.Follower,
				Expected: fmt.Sprintf("%s = %v", id, ir.ToGo(authState)),
				Actual:   fmt.Sprintf("%s = %v", id, ir.ToGo(mirrorState)),
			}
		}
	}
	return nil
}

func assertPacketCount(result *Result, a Assertion) error {
	got := len(result.PacketsFor(a.Follower))
	if got != a.Count {
		return &AssertionError{
			Type:     AssertPacketCount,
			Follower: a.Follower,
			Expected: fmt.Sprintf("%d packets", a.Count),
			Actual:   fmt.Sprintf("%d packets", got),
		}
	}
	return nil
}

// checkPacket compares a generated packet with a sync expectation and
// returns one message per mismatch.
func checkPacket(p wire.Packet, want *PacketExpect, resolve func(string) string) []string {
	var msgs []string

	if want.From != nil && p.From != *want.From {
		msgs = append(msgs, fmt.Sprintf("from: expected %d, got %d", *want.From, p.From))
	}
	if want.To != nil && p.To != *want.To {
		msgs = append(msgs, fmt.Sprintf("to: expected %d, got %d", *want.To, p.To))
	}
	if want.Empty != nil && p.Empty() != *want.Empty {
		msgs = append(msgs, fmt.Sprintf("empty: expected %t, got %t", *want.Empty, p.Empty()))
	}

	if want.Spawns != nil {
		got := make([]string, len(p.Spawns))
		for i, s := range p.Spawns {
			got[i] = s.ID
		}
		if exp := resolveAll(want.Spawns, resolve); !slices.Equal(exp, got) {
			msgs = append(msgs, fmt.Sprintf("spawns: expected %v, got %v", exp, got))
		}
	}

	if want.Despawns != nil {
		if exp := resolveAll(want.Despawns, resolve); !slices.Equal(exp, p.Despawns) {
			msgs = append(msgs, fmt.Sprintf("despawns: expected %v, got %v", exp, p.Despawns))
		}
	}

	if want.Updates != nil {
		exp := make(map[string]any, len(want.Updates))
		for ref, diff := range want.Updates {
			n, err := normalize(diff)
			if err != nil {
				msgs = append(msgs, fmt.Sprintf("updates[%s]: %v", ref, err))
				continue
			}
			exp[resolve(ref)] = n
		}
		got := make(map[string]any, len(p.Updates))
		for id, snap := range p.Updates {
			got[id] = snapshotToGo(snap)
		}
		if !reflect.DeepEqual(exp, got) {
			msgs = append(msgs, fmt.Sprintf("updates: expected %v, got %v", exp, got))
		}
	}

	return msgs
}

func resolveAll(refs []string, resolve func(string) string) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = resolve(r)
	}
	return out
}

func sorted(s []string) []string {
	out := slices.Clone(s)
	slices.Sort(out)
	return out
}

// normalize converts decoded YAML into the shape ir.ToGo produces, so that
// YAML ints compare equal to IRInt values.
func normalize(m map[string]any) (map[string]any, error) {
	v, err := ir.FromGo(m)
	if err != nil {
		return nil, err
	}
	out, _ := ir.ToGo(v).(map[string]any)
	return out, nil
}

// snapshotToGo renders a diff in plain form: leaves through ir.ToGo, nested
// diffs as maps.
func snapshotToGo(s replication.Snapshot) map[string]any {
	out := make(map[string]any, len(s))
	for k, v := range s {
		switch val := v.(type) {
		case replication.Snapshot:
			out[k] = snapshotToGo(val)
		case ir.IRValue:
			out[k] = ir.ToGo(val)
		}
	}
	return out
}

// subsetMatch reports whether every key of expected is present in actual
// with a matching value. Nested maps match recursively; anything else must
// be deeply equal.
func subsetMatch(actual, expected any) bool {
	expMap, ok := expected.(map[string]any)
	if !ok {
		return reflect.DeepEqual(actual, expected)
	}
	actMap, ok := actual.(map[string]any)
	if !ok {
		return false
	}
	for k, ev := range expMap {
		av, exists := actMap[k]
		if !exists || !subsetMatch(av, ev) {
			return false
		}
	}
	return true
}
