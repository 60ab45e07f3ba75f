package replication

import (
	"github.com/roach88/repgraph/internal/ir"
)

// Node aggregates the named Cells of one replicated object.
//
// A Node nested in another Node's slot keeps a back-reference to that
// (owner, slot) pair. The back-reference is only used to propagate change
// notifications upward; it carries no ownership and is never traversed
// downward.
//
// INVARIANTS:
//   - lastVersion is the highest toVersion ever passed to GenDiff or Commit
//   - dirty is set by the first effective write after a flush and cleared by
//     the next flush; the parent is notified only on that first write
//   - the graph below a Node is acyclic (Attach refuses cycles)
type Node struct {
	slots       map[string]*Cell
	lastVersion int64
	dirty       bool

	parent    *Node
	parentKey string

	onChange func(key string)
}

// NewNode creates an empty, clean node.
func NewNode() *Node {
	return &Node{slots: make(map[string]*Cell)}
}

// Set writes a leaf value into the named slot. A nil value is the
// no-value signal (see Touch).
func (n *Node) Set(key string, v ir.IRValue) {
	n.propertyChanged(key, v)
}

// Attach stores child as the nested node of the named slot and points the
// child's back-reference at this slot. Attaching nil clears the slot.
//
// Returns ErrCycle if child is n or already contains n.
func (n *Node) Attach(key string, child *Node) error {
	if child == nil {
		n.propertyChanged(key, ir.IRNull{})
		return nil
	}
	if child.contains(n) {
		return ErrCycle
	}
	n.propertyChanged(key, child)
	return nil
}

// Touch marks the named slot changed without supplying a value. A nested
// node stored in the slot is retained; this is the signal a child sends its
// parent when it becomes dirty. On a leaf slot the value is cleared.
func (n *Node) Touch(key string) {
	n.propertyChanged(key, nil)
}

// propertyChanged routes a write into the named cell and propagates the
// change upward once per dirty window.
func (n *Node) propertyChanged(key string, v any) {
	c, ok := n.slots[key]
	if ok {
		if c.holds(v) {
			return
		}
		c.changed = true
		if v != nil || c.node == nil {
			c.store(n, key, v)
		}
	} else {
		c = &Cell{changed: true}
		c.store(n, key, v)
		n.slots[key] = c
	}

	if c.node != nil {
		c.node.attachTo(n, key)
	}

	if !n.dirty && n.parent != nil {
		n.parent.propertyChanged(n.parentKey, nil)
	}
	n.dirty = true

	if n.onChange != nil {
		n.onChange(key)
	}
}

// contains reports whether target is n or is nested anywhere below n.
func (n *Node) contains(target *Node) bool {
	if n == target {
		return true
	}
	for _, c := range n.slots {
		if c.node != nil && c.node.contains(target) {
			return true
		}
	}
	return false
}

func (n *Node) attachTo(parent *Node, key string) {
	n.parent = parent
	n.parentKey = key
}

// detachFrom clears the back-reference if it still points at (parent, key).
// A node that has since been reattached elsewhere keeps its new parent.
func (n *Node) detachFrom(parent *Node, key string) {
	if n.parent == parent && n.parentKey == key {
		n.parent = nil
		n.parentKey = ""
	}
}

// OnChange registers fn to be called after every effective write to this
// node, including the re-check signals sent by nested nodes. Only one
// observer is kept; passing nil removes it.
func (n *Node) OnChange(fn func(key string)) {
	n.onChange = fn
}

// Get returns the leaf value of the named slot. It reports false if the
// slot does not exist or holds a nested node.
func (n *Node) Get(key string) (ir.IRValue, bool) {
	c, ok := n.slots[key]
	if !ok || c.node != nil {
		return nil, false
	}
	return c.value, true
}

// Child returns the nested node of the named slot.
func (n *Node) Child(key string) (*Node, bool) {
	c, ok := n.slots[key]
	if !ok || c.node == nil {
		return nil, false
	}
	return c.node, true
}

// Cell returns the named cell for inspection.
func (n *Node) Cell(key string) (*Cell, bool) {
	c, ok := n.slots[key]
	return c, ok
}

// Keys returns the slot names in canonical order.
func (n *Node) Keys() []string {
	return ir.SortKeys(n.slots)
}

// LastVersion returns the highest toVersion flushed through this node.
func (n *Node) LastVersion() int64 { return n.lastVersion }

// HasUnflushedChange reports whether any slot changed since the last flush.
func (n *Node) HasUnflushedChange() bool { return n.dirty }

// Parent returns the node and slot this node is attached to, if any.
func (n *Node) Parent() (*Node, string) { return n.parent, n.parentKey }

// State materializes the full current state: leaves as values, nested nodes
// as objects. Slots that hold no value appear as IRNull.
func (n *Node) State() ir.IRObject {
	out := make(ir.IRObject, len(n.slots))
	for key, c := range n.slots {
		if c.node != nil {
			out[key] = c.node.State()
			continue
		}
		out[key] = c.leaf()
	}
	return out
}

// Commit marks the whole graph below n as flushed at version without
// producing a snapshot. Used to establish a baseline after a full-state
// transfer, e.g. on a follower's mirror after applying a packet.
func (n *Node) Commit(version int64) {
	for _, c := range n.slots {
		c.stamp(version)
		if c.node != nil {
			c.node.Commit(version)
		}
	}
	if version > n.lastVersion {
		n.lastVersion = version
	}
	n.dirty = false
}

// SetProperty implements Target: leaf values from a diff are written
// through the node, so the mirror tracks them like any other write.
func (n *Node) SetProperty(key string, v ir.IRValue) {
	n.Set(key, v)
}

// Nested implements Target.
func (n *Node) Nested(key string) (Target, bool) {
	child, ok := n.Child(key)
	if !ok {
		return nil, false
	}
	return child, true
}
