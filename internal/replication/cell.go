package replication

import "github.com/roach88/repgraph/internal/ir"

// Cell is one property's replicated state.
//
// A Cell holds either a leaf value or a nested *Node, never both. version
// is the toVersion of the GenDiff call that last captured a change, and only
// ever increases.
type Cell struct {
	changed bool
	version int64
	value   ir.IRValue
	node    *Node
}

// Changed reports whether the cell was written since the flush that last
// covered it.
func (c *Cell) Changed() bool { return c.changed }

// Version returns the version at which the cell's value was last flushed.
func (c *Cell) Version() int64 { return c.version }

// Value returns the leaf value, or nil if the cell holds a node or nothing.
func (c *Cell) Value() ir.IRValue { return c.value }

// Node returns the nested node, or nil for leaf cells.
func (c *Cell) Node() *Node { return c.node }

// holds reports whether v is the data already stored in the cell.
func (c *Cell) holds(v any) bool {
	switch val := v.(type) {
	case nil:
		return c.node == nil && c.value == nil
	case *Node:
		return c.node == val
	case ir.IRValue:
		return c.node == nil && c.value != nil && ir.Same(c.value, val)
	default:
		return false
	}
}

// store replaces the cell's data. A nested node that is being replaced is
// detached from this slot first.
func (c *Cell) store(owner *Node, key string, v any) {
	next, _ := v.(*Node)
	if c.node != nil && c.node != next {
		c.node.detachFrom(owner, key)
	}
	switch val := v.(type) {
	case *Node:
		c.node, c.value = val, nil
	case ir.IRValue:
		c.node, c.value = nil, val
	default:
		c.node, c.value = nil, nil
	}
}

// stamp records a flush at version, never moving the stamp backwards.
func (c *Cell) stamp(version int64) {
	c.changed = false
	if version > c.version {
		c.version = version
	}
}

// leaf returns the value to put in a snapshot for a leaf cell.
func (c *Cell) leaf() ir.IRValue {
	if c.value == nil {
		return ir.IRNull{}
	}
	return c.value
}
