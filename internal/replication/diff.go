package replication

import "github.com/roach88/repgraph/internal/ir"

// Snapshot is a partial, possibly nested, view of a Node's state. Values are
// either ir.IRValue leaves or nested Snapshots; a nested Snapshot only
// contains the part of the child that needs sending.
type Snapshot map[string]any

// Keys returns the snapshot keys in canonical order.
func (s Snapshot) Keys() []string {
	return ir.SortKeys(s)
}

// DiffKind tags the outcome of GenDiff.
type DiffKind int

const (
	// DiffEmpty means nothing in the window needs sending.
	DiffEmpty DiffKind = iota
	// DiffInvalidRange means toVersion <= fromVersion; a caller error.
	DiffInvalidRange
	// DiffSnapshot means Snapshot holds the data to send.
	DiffSnapshot
)

func (k DiffKind) String() string {
	switch k {
	case DiffEmpty:
		return "empty"
	case DiffInvalidRange:
		return "invalid_range"
	case DiffSnapshot:
		return "snapshot"
	default:
		return "unknown"
	}
}

// Diff is the result of GenDiff.
type Diff struct {
	Kind     DiffKind
	Snapshot Snapshot // nil unless Kind == DiffSnapshot
}

// Ok reports whether the diff carries a snapshot.
func (d Diff) Ok() bool {
	return d.Kind == DiffSnapshot
}

// GenDiff produces the partial snapshot a follower that acknowledged
// fromVersion needs in order to reach toVersion.
//
// toVersion must come from the caller's single, monotonically increasing
// version counter and be shared by every root flushed in the same pass.
//
// For each slot:
//   - changed since the last flush: captured, stamped with toVersion, sent
//   - stamped before fromVersion: the follower has it, skipped
//   - stamped inside [fromVersion, toVersion]: flushed earlier, sent again
//
// A slot stamped exactly at fromVersion is resent, so a follower that
// acknowledged fromVersion sees that window's values once more.
//
// Nested nodes are walked with the same window and contribute only if they
// have something to send.
func (n *Node) GenDiff(fromVersion, toVersion int64) Diff {
	if toVersion <= fromVersion {
		return Diff{Kind: DiffInvalidRange}
	}
	if fromVersion > n.lastVersion && !n.dirty {
		return Diff{Kind: DiffEmpty}
	}

	out := make(Snapshot)
	for key, c := range n.slots {
		if c.changed {
			c.stamp(toVersion)
		} else if c.version < fromVersion {
			continue
		}

		if c.node != nil {
			if nested := c.node.GenDiff(fromVersion, toVersion); nested.Ok() {
				out[key] = nested.Snapshot
			}
			continue
		}
		out[key] = c.leaf()
	}

	if toVersion > n.lastVersion {
		n.lastVersion = toVersion
	}
	n.dirty = false

	if len(out) == 0 {
		return Diff{Kind: DiffEmpty}
	}
	return Diff{Kind: DiffSnapshot, Snapshot: out}
}
