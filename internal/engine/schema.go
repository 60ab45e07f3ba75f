package engine

import (
	"fmt"
	"strings"

	"github.com/roach88/repgraph/internal/ir"
	"github.com/roach88/repgraph/internal/replication"
)

// Schema indexes compiled classes by name.
type Schema struct {
	classes map[string]*ir.ClassSpec
	order   []string
}

// NewSchema indexes classes. Duplicate names are an error.
func NewSchema(classes []ir.ClassSpec) (*Schema, error) {
	s := &Schema{classes: make(map[string]*ir.ClassSpec, len(classes))}
	for i := range classes {
		c := &classes[i]
		if _, dup := s.classes[c.Name]; dup {
			return nil, fmt.Errorf("duplicate class %q", c.Name)
		}
		s.classes[c.Name] = c
		s.order = append(s.order, c.Name)
	}
	return s, nil
}

// Class returns the named class.
func (s *Schema) Class(name string) (*ir.ClassSpec, bool) {
	c, ok := s.classes[name]
	return c, ok
}

// Names returns class names in declaration order.
func (s *Schema) Names() []string {
	return s.order
}

// Build creates a node graph for class with every leaf set to its type's
// zero value and every nested class property attached to a fresh child.
// A fresh graph is fully changed, so its first GenDiff carries everything.
func (s *Schema) Build(class string) (*replication.Node, error) {
	return s.build(class, nil)
}

func (s *Schema) build(class string, seen []string) (*replication.Node, error) {
	spec, ok := s.classes[class]
	if !ok {
		return nil, newUnknownClassError(class)
	}
	for _, name := range seen {
		if name == class {
			return nil, fmt.Errorf("class %q contains itself (%s)", class, strings.Join(append(seen, class), " -> "))
		}
	}

	n := replication.NewNode()
	for _, p := range spec.Properties {
		if p.Type != ir.TypeClass {
			n.Set(p.Name, ir.Zero(p.Type))
			continue
		}
		child, err := s.build(p.Class, append(seen, class))
		if err != nil {
			return nil, err
		}
		if err := n.Attach(p.Name, child); err != nil {
			return nil, err
		}
	}
	return n, nil
}

// resolve walks a dotted property path from an entity's root class and
// returns the node holding the final property together with its spec.
func (s *Schema) resolve(root *replication.Node, class, entity, path string) (*replication.Node, ir.PropertySpec, error) {
	parts := strings.Split(path, ".")
	node := root
	spec, ok := s.classes[class]
	if !ok {
		return nil, ir.PropertySpec{}, newUnknownClassError(class)
	}

	for i, part := range parts {
		prop, ok := spec.Property(part)
		if !ok {
			return nil, ir.PropertySpec{}, newUnknownPropertyError(entity, path)
		}
		if i == len(parts)-1 {
			return node, prop, nil
		}
		if prop.Type != ir.TypeClass {
			return nil, ir.PropertySpec{}, newUnknownPropertyError(entity, path)
		}
		child, ok := node.Child(part)
		if !ok {
			return nil, ir.PropertySpec{}, newUnknownPropertyError(entity, path)
		}
		node = child
		spec, ok = s.classes[prop.Class]
		if !ok {
			return nil, ir.PropertySpec{}, newUnknownClassError(prop.Class)
		}
	}
	return nil, ir.PropertySpec{}, newUnknownPropertyError(entity, path)
}
