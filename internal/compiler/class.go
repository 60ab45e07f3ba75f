package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/repgraph/internal/ir"
)

// CompileClass parses a CUE value into a ClassSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the class struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`class: Vec2: { purpose: "...", property: { x: int } }`)
//	spec, err := CompileClass(v.LookupPath(cue.ParsePath("class.Vec2")))
//
// A property is declared either as a CUE type (string, int, bool, a list or
// a struct) or as a descriptor struct:
//
//	pos:    {class: "Vec2"}                           // nested replicated object
//	target: {ref: "Item"}                             // identifier of an external object
//	name:   {type: string, condition: "initial_only"} // leaf with a send condition
func CompileClass(v cue.Value) (*ir.ClassSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ClassSpec{}

	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	purposeVal := v.LookupPath(cue.ParsePath("purpose"))
	if !purposeVal.Exists() {
		return nil, &CompileError{
			Field:   "purpose",
			Message: "purpose is required",
			Pos:     v.Pos(),
		}
	}
	purpose, err := purposeVal.String()
	if err != nil {
		return nil, formatCUEError(err)
	}
	spec.Purpose = purpose

	spec.Properties, err = parseProperties(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseProperties extracts property declarations in declaration order.
func parseProperties(v cue.Value) ([]ir.PropertySpec, error) {
	var props []ir.PropertySpec

	propVal := v.LookupPath(cue.ParsePath("property"))
	if !propVal.Exists() {
		return props, nil
	}

	iter, err := propVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	for iter.Next() {
		prop, err := parseProperty(iter.Label(), iter.Value())
		if err != nil {
			return nil, err
		}
		props = append(props, prop)
	}

	return props, nil
}

// descriptorFields are the labels that turn a struct into a descriptor
// rather than an object-typed property.
var descriptorFields = []string{"class", "ref", "type"}

func isDescriptor(v cue.Value) bool {
	if v.IncompleteKind() != cue.StructKind {
		return false
	}
	for _, f := range descriptorFields {
		if v.LookupPath(cue.ParsePath(f)).Exists() {
			return true
		}
	}
	return false
}

func parseProperty(name string, v cue.Value) (ir.PropertySpec, error) {
	prop := ir.PropertySpec{Name: name}
	field := "property." + name

	if !isDescriptor(v) {
		typ, err := extractTypeName(v, field)
		if err != nil {
			return prop, err
		}
		prop.Type = typ
		return prop, nil
	}

	classVal := v.LookupPath(cue.ParsePath("class"))
	refVal := v.LookupPath(cue.ParsePath("ref"))
	typeVal := v.LookupPath(cue.ParsePath("type"))

	set := 0
	for _, x := range []cue.Value{classVal, refVal, typeVal} {
		if x.Exists() {
			set++
		}
	}
	if set > 1 {
		return prop, &CompileError{
			Field:   field,
			Message: "only one of class, ref and type may be given",
			Pos:     v.Pos(),
		}
	}

	switch {
	case classVal.Exists():
		class, err := classVal.String()
		if err != nil {
			return prop, formatCUEError(err)
		}
		prop.Type = ir.TypeClass
		prop.Class = class
	case refVal.Exists():
		class, err := refVal.String()
		if err != nil {
			return prop, formatCUEError(err)
		}
		prop.Type = ir.TypeRef
		prop.Class = class
	default:
		typ, err := extractTypeName(typeVal, field+".type")
		if err != nil {
			return prop, err
		}
		prop.Type = typ
	}

	condVal := v.LookupPath(cue.ParsePath("condition"))
	if condVal.Exists() {
		cond, err := condVal.String()
		if err != nil {
			return prop, formatCUEError(err)
		}
		prop.Condition = cond
	}

	return prop, nil
}

// extractTypeName converts CUE type to IR type string.
// Floats are forbidden.
func extractTypeName(v cue.Value, field string) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		return ir.TypeString, nil
	case cue.IntKind:
		return ir.TypeInt, nil
	case cue.BoolKind:
		return ir.TypeBool, nil
	case cue.ListKind:
		return ir.TypeArray, nil
	case cue.StructKind:
		return ir.TypeObject, nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   field,
			Message: "float types are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("unsupported type kind: %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	first := errs[0]
	positions := errors.Positions(first)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: first.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
