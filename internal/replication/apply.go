package replication

import (
	"fmt"

	"github.com/roach88/repgraph/internal/ir"
)

// Target is a live object a Snapshot can be applied to.
//
// *Node implements Target, so a follower's mirror graph can be built from the
// same types as the authority's. ObjectTarget adapts a plain ir.IRObject.
type Target interface {
	// SetProperty assigns a leaf value. Arrays and objects are replaced
	// as a whole.
	SetProperty(key string, v ir.IRValue)
	// Nested returns the nested object a nested Snapshot is merged into.
	Nested(key string) (Target, bool)
}

// ApplyDiff merges diff into target in place. Keys absent from diff are left
// untouched. The target must already mirror the shape of the source graph:
// a nested Snapshot addressed to a missing nested object stops the merge
// with an *ApplyError wrapping ErrMissingTarget. A value that is neither a
// Snapshot nor an ir.IRValue stops it with ErrUnsupportedValue, leaving the
// target's slot untouched. Keys are applied in
// canonical order, so a failed merge leaves a deterministic prefix applied.
func ApplyDiff(target Target, diff Snapshot) error {
	return applyDiff(target, diff, "")
}

func applyDiff(target Target, diff Snapshot, path string) error {
	for _, key := range diff.Keys() {
		keyPath := key
		if path != "" {
			keyPath = path + "." + key
		}

		switch v := diff[key].(type) {
		case Snapshot:
			nested, ok := target.Nested(key)
			if !ok {
				return &ApplyError{Path: keyPath, Err: ErrMissingTarget}
			}
			if err := applyDiff(nested, v, keyPath); err != nil {
				return err
			}
		case ir.IRValue:
			target.SetProperty(key, v)
		case nil:
			target.SetProperty(key, ir.IRNull{})
		default:
			return &ApplyError{Path: keyPath, Err: fmt.Errorf("%w: %T", ErrUnsupportedValue, v)}
		}
	}
	return nil
}

// ObjectTarget applies snapshots to a plain object tree. Nested snapshots
// merge into nested IRObjects.
type ObjectTarget ir.IRObject

// SetProperty implements Target.
func (o ObjectTarget) SetProperty(key string, v ir.IRValue) {
	o[key] = v
}

// Nested implements Target.
func (o ObjectTarget) Nested(key string) (Target, bool) {
	obj, ok := o[key].(ir.IRObject)
	if !ok {
		return nil, false
	}
	return ObjectTarget(obj), true
}
