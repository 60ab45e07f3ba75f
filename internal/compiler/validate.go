package compiler

import (
	"fmt"
	"strings"

	"github.com/roach88/repgraph/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// ClassSpec errors (E101-E109)
	ErrClassPurposeEmpty   = "E101" // purpose is required
	ErrClassNoProperties   = "E102" // at least one property required
	ErrInvalidPropertyName = "E103" // empty or dotted property name
	ErrInvalidPropertyType = "E104" // invalid type string
	ErrDuplicateName       = "E105" // duplicate property name
	ErrFloatTypeForbidden  = "E106" // float types not allowed
	ErrInvalidCondition    = "E107" // unknown replication condition
	ErrMissingClassName    = "E108" // class/ref property without a class name

	// Schema errors (E110-E119)
	ErrUnknownClass   = "E110" // nested class not declared
	ErrDuplicateClass = "E111" // class declared twice
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
// Supports a single ClassSpec or a whole schema ([]ClassSpec); only the
// latter checks cross-class references.
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.ClassSpec:
		return validateClassSpec(spec, "")
	case ir.ClassSpec:
		return validateClassSpec(&spec, "")
	case []ir.ClassSpec:
		return validateSchema(spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

// validateClassSpec validates one class. prefix qualifies field paths when
// the class is validated as part of a schema.
func validateClassSpec(spec *ir.ClassSpec, prefix string) []ValidationError {
	var errs []ValidationError

	// E101: purpose is required
	if strings.TrimSpace(spec.Purpose) == "" {
		errs = append(errs, ValidationError{
			Field:   prefix + "purpose",
			Message: "purpose is required and must be non-empty",
			Code:    ErrClassPurposeEmpty,
		})
	}

	// E102: at least one property required
	if len(spec.Properties) == 0 {
		errs = append(errs, ValidationError{
			Field:   prefix + "properties",
			Message: "at least one property is required",
			Code:    ErrClassNoProperties,
		})
	}

	names := make(map[string]bool)
	for i, prop := range spec.Properties {
		field := fmt.Sprintf("%sproperties[%d]", prefix, i)

		// E103: names become path segments
		if prop.Name == "" || strings.Contains(prop.Name, ".") {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("invalid property name %q: must be non-empty and contain no '.'", prop.Name),
				Code:    ErrInvalidPropertyName,
			})
		}

		// E105: duplicate property name
		if names[prop.Name] {
			errs = append(errs, ValidationError{
				Field:   field + ".name",
				Message: fmt.Sprintf("duplicate property name: %q", prop.Name),
				Code:    ErrDuplicateName,
			})
		}
		names[prop.Name] = true

		errs = append(errs, validatePropertyType(prop, field)...)

		// E107: unknown condition
		if prop.Condition != "" && !ir.ValidConditions[prop.Condition] {
			errs = append(errs, ValidationError{
				Field:   field + ".condition",
				Message: fmt.Sprintf("invalid condition %q for property %q", prop.Condition, prop.Name),
				Code:    ErrInvalidCondition,
			})
		}
	}

	return errs
}

// validatePropertyType validates a type string, returning errors for
// invalid types, floats and class properties without a class name.
func validatePropertyType(prop ir.PropertySpec, field string) []ValidationError {
	var errs []ValidationError

	// E106: float forbidden (explicit check even if not in valid types)
	if isFloatType(prop.Type) {
		return append(errs, ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("float type forbidden for property %q, use int instead", prop.Name),
			Code:    ErrFloatTypeForbidden,
		})
	}

	// E104: check for valid type
	if !ir.ValidTypes[prop.Type] {
		return append(errs, ValidationError{
			Field:   field + ".type",
			Message: fmt.Sprintf("invalid type %q for property %q", prop.Type, prop.Name),
			Code:    ErrInvalidPropertyType,
		})
	}

	// E108
	if (prop.Type == ir.TypeClass || prop.Type == ir.TypeRef) && prop.Class == "" {
		errs = append(errs, ValidationError{
			Field:   field + ".class",
			Message: fmt.Sprintf("%s property %q requires a class name", prop.Type, prop.Name),
			Code:    ErrMissingClassName,
		})
	}

	return errs
}

// validateSchema validates every class, then checks names and nested class
// references across the schema.
func validateSchema(classes []ir.ClassSpec) []ValidationError {
	var errs []ValidationError

	declared := make(map[string]bool, len(classes))
	for i := range classes {
		name := classes[i].Name
		// E111: duplicate class
		if declared[name] {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("classes[%d].name", i),
				Message: fmt.Sprintf("duplicate class name: %q", name),
				Code:    ErrDuplicateClass,
			})
		}
		declared[name] = true
	}

	for i := range classes {
		spec := &classes[i]
		prefix := fmt.Sprintf("classes[%d].", i)
		errs = append(errs, validateClassSpec(spec, prefix)...)

		for j, prop := range spec.Properties {
			// E110: nested class must be part of the schema; ref targets
			// are external and need not be.
			if prop.Type == ir.TypeClass && prop.Class != "" && !declared[prop.Class] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("%sproperties[%d].class", prefix, j),
					Message: fmt.Sprintf("unknown class %q nested in %s.%s", prop.Class, spec.Name, prop.Name),
					Code:    ErrUnknownClass,
				})
			}
		}
	}

	return errs
}

// isFloatType checks if a type string represents a float type.
func isFloatType(t string) bool {
	lower := strings.ToLower(t)
	return lower == "float" || lower == "float32" || lower == "float64" || lower == "number"
}
