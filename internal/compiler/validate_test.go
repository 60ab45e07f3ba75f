package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/repgraph/internal/ir"
)

func validVec2() ir.ClassSpec {
	return ir.ClassSpec{
		Name:    "Vec2",
		Purpose: "2D position",
		Properties: []ir.PropertySpec{
			{Name: "x", Type: ir.TypeInt},
			{Name: "y", Type: ir.TypeInt},
		},
	}
}

func validCharacter() ir.ClassSpec {
	return ir.ClassSpec{
		Name:    "Character",
		Purpose: "player avatar",
		Properties: []ir.PropertySpec{
			{Name: "health", Type: ir.TypeInt},
			{Name: "name", Type: ir.TypeString, Condition: ir.ConditionInitialOnly},
			{Name: "pos", Type: ir.TypeClass, Class: "Vec2"},
			{Name: "target", Type: ir.TypeRef, Class: "Item"},
		},
	}
}

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func TestValidateClassSpecValid(t *testing.T) {
	spec := validVec2()
	assert.Empty(t, Validate(&spec))
	assert.Empty(t, Validate(spec))
}

func TestValidateSchemaValid(t *testing.T) {
	errs := Validate([]ir.ClassSpec{validVec2(), validCharacter()})
	assert.Empty(t, errs, "ref targets outside the schema are allowed")
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate("not a class")
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedIRType, errs[0].Code)
}

func TestValidateClassSpecErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*ir.ClassSpec)
		want   []string
	}{
		{
			name:   "empty purpose",
			mutate: func(s *ir.ClassSpec) { s.Purpose = "  " },
			want:   []string{ErrClassPurposeEmpty},
		},
		{
			name:   "no properties",
			mutate: func(s *ir.ClassSpec) { s.Properties = nil },
			want:   []string{ErrClassNoProperties},
		},
		{
			name:   "dotted name",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Name = "a.b" },
			want:   []string{ErrInvalidPropertyName},
		},
		{
			name:   "empty name",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Name = "" },
			want:   []string{ErrInvalidPropertyName},
		},
		{
			name:   "duplicate name",
			mutate: func(s *ir.ClassSpec) { s.Properties[1].Name = "x" },
			want:   []string{ErrDuplicateName},
		},
		{
			name:   "invalid type",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Type = "uuid" },
			want:   []string{ErrInvalidPropertyType},
		},
		{
			name:   "float type",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Type = "float64" },
			want:   []string{ErrFloatTypeForbidden},
		},
		{
			name:   "invalid condition",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Condition = "sometimes" },
			want:   []string{ErrInvalidCondition},
		},
		{
			name:   "class without name",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Type = ir.TypeClass },
			want:   []string{ErrMissingClassName},
		},
		{
			name:   "ref without name",
			mutate: func(s *ir.ClassSpec) { s.Properties[0].Type = ir.TypeRef },
			want:   []string{ErrMissingClassName},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := validVec2()
			tt.mutate(&spec)
			assert.Equal(t, tt.want, codes(Validate(&spec)))
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	spec := &ir.ClassSpec{
		Name: "Bad",
		Properties: []ir.PropertySpec{
			{Name: "a", Type: "float"},
			{Name: "a", Type: ir.TypeInt, Condition: "never"},
		},
	}

	assert.Equal(t, []string{
		ErrClassPurposeEmpty,
		ErrFloatTypeForbidden,
		ErrDuplicateName,
		ErrInvalidCondition,
	}, codes(Validate(spec)))
}

func TestValidateSchemaUnknownNestedClass(t *testing.T) {
	errs := Validate([]ir.ClassSpec{validCharacter()})

	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnknownClass, errs[0].Code)
	assert.Equal(t, "classes[0].properties[2].class", errs[0].Field)
	assert.Contains(t, errs[0].Message, `"Vec2"`)
}

func TestValidateSchemaDuplicateClass(t *testing.T) {
	errs := Validate([]ir.ClassSpec{validVec2(), validVec2()})

	require.Len(t, errs, 1)
	assert.Equal(t, ErrDuplicateClass, errs[0].Code)
	assert.Equal(t, "classes[1].name", errs[0].Field)
}

func TestValidateSchemaPrefixesFields(t *testing.T) {
	bad := validVec2()
	bad.Name = "Other"
	bad.Purpose = ""

	errs := Validate([]ir.ClassSpec{validVec2(), bad})
	require.Len(t, errs, 1)
	assert.Equal(t, "classes[1].purpose", errs[0].Field)
}

func TestValidationErrorFormat(t *testing.T) {
	err := ValidationError{Field: "purpose", Message: "required", Code: "E101"}
	assert.Equal(t, "[E101] purpose: required", err.Error())

	err.Line = 7
	assert.Equal(t, "[E101] line 7: purpose: required", err.Error())
}
