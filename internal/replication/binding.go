package replication

import (
	"fmt"

	"github.com/roach88/repgraph/internal/ir"
)

// Condition restricts which followers a property is meant for. Conditions
// are recorded with the binding; evaluating them belongs to the layer that
// decides what to send to whom.
type Condition string

const (
	CondAlways      Condition = "always"
	CondInitialOnly Condition = "initial_only"
	CondOwnerOnly   Condition = "owner_only"
	CondSkipOwner   Condition = "skip_owner"
)

// NotifyFunc is called before a bound property is written. Its result is
// ignored: the write always proceeds.
type NotifyFunc func(host *Host, key string, v any) bool

// Options describe one bound property.
type Options struct {
	Condition Condition
	Notify    NotifyFunc
}

// Option configures a binding.
type Option func(*Options)

// WithCondition records a send condition for the property.
func WithCondition(c Condition) Option {
	return func(o *Options) {
		o.Condition = c
	}
}

// WithNotify installs a callback run before every write through the binding.
func WithNotify(fn NotifyFunc) Option {
	return func(o *Options) {
		o.Notify = fn
	}
}

// Host is a replicated object: a set of bound properties backed by a Node.
// The Node is created on first use.
type Host struct {
	node  *Node
	props map[string]Options
}

// Node returns the backing node, creating it on first call.
func (h *Host) Node() *Node {
	if h.node == nil {
		h.node = NewNode()
	}
	return h.node
}

// Registration returns the options a property was bound with.
func (h *Host) Registration(key string) (Options, bool) {
	o, ok := h.props[key]
	return o, ok
}

// Registered returns the bound property names in canonical order.
func (h *Host) Registered() []string {
	return ir.SortKeys(h.props)
}

func (h *Host) register(key string, opts []Option) Options {
	if h.props == nil {
		h.props = make(map[string]Options)
	}
	if _, dup := h.props[key]; dup {
		panic(fmt.Sprintf("replication: property %q bound twice", key))
	}
	o := Options{Condition: CondAlways}
	for _, opt := range opts {
		opt(&o)
	}
	h.props[key] = o
	return o
}

func (h *Host) notify(o Options, key string, v any) {
	if o.Notify != nil {
		_ = o.Notify(h, key, v)
	}
}

// Prop is a typed leaf property bound to a Host.
type Prop[T ir.IRValue] struct {
	host *Host
	key  string
	opts Options
}

// Replicated binds a leaf property of type T on h. Binding the same key
// twice panics.
func Replicated[T ir.IRValue](h *Host, key string, opts ...Option) *Prop[T] {
	return &Prop[T]{host: h, key: key, opts: h.register(key, opts)}
}

// Key returns the property name.
func (p *Prop[T]) Key() string { return p.key }

// Set writes v through the host's node.
func (p *Prop[T]) Set(v T) {
	p.host.notify(p.opts, p.key, v)
	p.host.Node().Set(p.key, v)
}

// Get returns the current value, or the zero T if the property was never
// written or holds a value of another type.
func (p *Prop[T]) Get() T {
	var zero T
	v, ok := p.host.Node().Get(p.key)
	if !ok {
		return zero
	}
	t, ok := v.(T)
	if !ok {
		return zero
	}
	return t
}

// ChildProp is a property holding another replicated object.
type ChildProp struct {
	host *Host
	key  string
	opts Options
}

// ReplicatedChild binds a nested-object property on h.
func ReplicatedChild(h *Host, key string, opts ...Option) *ChildProp {
	return &ChildProp{host: h, key: key, opts: h.register(key, opts)}
}

// Key returns the property name.
func (p *ChildProp) Key() string { return p.key }

// Set attaches child's node to the property. A nil child clears it.
func (p *ChildProp) Set(child *Host) error {
	p.host.notify(p.opts, p.key, child)
	if child == nil {
		return p.host.Node().Attach(p.key, nil)
	}
	return p.host.Node().Attach(p.key, child.Node())
}

// Get returns the attached node, or nil.
func (p *ChildProp) Get() *Node {
	n, _ := p.host.Node().Child(p.key)
	return n
}
