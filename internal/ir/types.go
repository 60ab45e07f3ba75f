package ir

// ClassSpec represents a compiled replicated class: the set of properties a
// host object of this class exposes to replication.
type ClassSpec struct {
	Name       string         `json:"name"`
	Purpose    string         `json:"purpose"`
	Properties []PropertySpec `json:"properties"` // declaration order
}

// PropertySpec represents one replicated property of a class.
type PropertySpec struct {
	Name      string `json:"name"`
	Type      string `json:"type"`                // one of the Type* constants
	Class     string `json:"class,omitempty"`     // nested class (TypeClass) or referenced class (TypeRef)
	Condition string `json:"condition,omitempty"` // one of the Condition* constants, empty = always
}

// Property type names.
const (
	TypeString = "string"
	TypeInt    = "int"
	TypeBool   = "bool"
	TypeArray  = "array"
	TypeObject = "object"
	TypeRef    = "ref"   // identifier of an external object, carried as a string leaf
	TypeClass  = "class" // nested replicated object
)

// ValidTypes defines the allowed property type strings.
// NO "float" - floats are forbidden.
var ValidTypes = map[string]bool{
	TypeString: true,
	TypeInt:    true,
	TypeBool:   true,
	TypeArray:  true,
	TypeObject: true,
	TypeRef:    true,
	TypeClass:  true,
}

// Replication condition names. Conditions are recorded with the schema and
// carried to the host application; the replication core does not evaluate
// them.
const (
	ConditionAlways      = "always"
	ConditionInitialOnly = "initial_only"
	ConditionOwnerOnly   = "owner_only"
	ConditionSkipOwner   = "skip_owner"
)

// ValidConditions defines the allowed condition strings.
var ValidConditions = map[string]bool{
	ConditionAlways:      true,
	ConditionInitialOnly: true,
	ConditionOwnerOnly:   true,
	ConditionSkipOwner:   true,
}

// Property returns the named property spec.
func (c *ClassSpec) Property(name string) (PropertySpec, bool) {
	for _, p := range c.Properties {
		if p.Name == name {
			return p, true
		}
	}
	return PropertySpec{}, false
}

// Zero returns the default leaf value for a property type.
// Nested classes have no leaf default; Zero returns IRNull for them.
func Zero(typ string) IRValue {
	switch typ {
	case TypeString, TypeRef:
		return IRString("")
	case TypeInt:
		return IRInt(0)
	case TypeBool:
		return IRBool(false)
	case TypeArray:
		return IRArray{}
	case TypeObject:
		return IRObject{}
	default:
		return IRNull{}
	}
}

// Accepts reports whether v is a legal value for a property of type typ.
// IRNull is accepted for every leaf type (property cleared).
func Accepts(typ string, v IRValue) bool {
	if _, ok := v.(IRNull); ok {
		return typ != TypeClass
	}
	switch typ {
	case TypeString, TypeRef:
		_, ok := v.(IRString)
		return ok
	case TypeInt:
		_, ok := v.(IRInt)
		return ok
	case TypeBool:
		_, ok := v.(IRBool)
		return ok
	case TypeArray:
		_, ok := v.(IRArray)
		return ok
	case TypeObject:
		_, ok := v.(IRObject)
		return ok
	default:
		return false
	}
}

func (c *ClassSpec) canonicalMap() map[string]any {
	props := make([]any, len(c.Properties))
	for i, p := range c.Properties {
		m := map[string]any{
			"name": p.Name,
			"type": p.Type,
		}
		if p.Class != "" {
			m["class"] = p.Class
		}
		if p.Condition != "" {
			m["condition"] = p.Condition
		}
		props[i] = m
	}
	return map[string]any{
		"name":       c.Name,
		"purpose":    c.Purpose,
		"properties": props,
	}
}
