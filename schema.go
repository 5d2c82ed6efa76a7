package dataguard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Schema describes an entity type in the host store: its two-part identifier
// and the fields an instance carries. Rules are checked against the schema
// when they are added, so a rule can never point at a field that does not exist.
type Schema struct {
	// Entity type identifier in the form app_label.model, for example dcim.site.
	ID string `json:"id"`
	// User-friendly name for the entity type
	Name string `json:"name,omitempty"`
	// A user-friendly description of the entity type
	Description string `json:"description,omitempty"`
	// Fields carried by every instance of the entity type
	Fields []Field `json:"fields,omitempty"`
}

// Field describes a single attribute of an entity type.
type Field struct {
	// Attribute name, as used in rules and on Object.Fields.
	Name string `json:"name"`

	// One of the Type implementations defined in this package.
	Type Type `json:"type"`

	// Editable is false for fields the user cannot change directly.
	Editable bool `json:"editable"`

	// Auto marks fields the host store fills in (timestamps, counters).
	Auto bool `json:"auto,omitempty"`

	// Identity marks the primary key of the entity type.
	Identity bool `json:"identity,omitempty"`

	// Relation marks a reference to another entity type.
	Relation bool `json:"relation,omitempty"`

	// Optional description of the field.
	Description string `json:"description,omitempty"`
}

func (s *Schema) String() string {
	x := strings.Builder{}
	x.WriteString(s.ID)
	if s.Name != "" {
		x.WriteString("  '" + s.Name + "'")
	}
	x.WriteString("\n")
	for _, f := range s.Fields {
		x.WriteString(f.String())
		x.WriteString("\n")
	}
	return x.String()
}

func (f *Field) String() string {
	return fmt.Sprintf("  %s (%s)", f.Name, f.Type)
}

// Field returns the field with the name.
func (s *Schema) Field(name string) (Field, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// ErrBadEntityType is returned when an entity type identifier is not in
// the app_label.model form.
var ErrBadEntityType = errors.New("entity type must be in the form app_label.model")

// ErrUnknownEntityType is returned when no schema is registered for an entity type.
var ErrUnknownEntityType = errors.New("unknown entity type")

// ParseEntityType splits a two-part entity type identifier.
func ParseEntityType(s string) (app string, model string, err error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("%w: %q", ErrBadEntityType, s)
	}
	return parts[0], parts[1], nil
}

// SchemaProvider resolves an entity type identifier to its schema.
type SchemaProvider interface {
	Lookup(entityType string) (Schema, error)
}

// Schemas is an in-process registry of entity type schemas.
// It is safe for concurrent use.
type Schemas struct {
	mu      sync.RWMutex
	schemas map[string]Schema
}

// NewSchemas returns a registry holding the schemas.
func NewSchemas(schemas ...Schema) (*Schemas, error) {
	r := &Schemas{schemas: map[string]Schema{}}
	for _, s := range schemas {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds or replaces the schema for s.ID.
func (r *Schemas) Register(s Schema) error {
	if _, _, err := ParseEntityType(s.ID); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.schemas == nil {
		r.schemas = map[string]Schema{}
	}
	r.schemas[s.ID] = s
	return nil
}

// Lookup returns the schema for the entity type.
func (r *Schemas) Lookup(entityType string) (Schema, error) {
	if _, _, err := ParseEntityType(entityType); err != nil {
		return Schema{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.schemas[entityType]
	if !ok {
		return Schema{}, fmt.Errorf("%w: %s", ErrUnknownEntityType, entityType)
	}
	return s, nil
}

// EntityTypes returns the registered entity type identifiers in sorted order.
func (r *Schemas) EntityTypes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.schemas))
	for id := range r.schemas {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Type defines a field type. Types are used to decide which rules a field
// supports, and by evaluators to declare variables for check expressions.
type Type interface {
	// Implements the stringer interface
	String() string

	// Zero returns the Go zero value an evaluator can use to infer the
	// native type.
	Zero() any
}

// String defines a string type.
type String struct{}

// Int defines an integer type.
type Int struct{}

// Float defines a floating point type.
type Float struct{}

// Decimal defines a fixed point numeric type; values are handled as float64.
type Decimal struct{}

// Bool defines a true/false type.
type Bool struct{}

// Duration defines a type for time.Duration.
type Duration struct{}

// Timestamp defines a type for time.Time.
type Timestamp struct{}

// UUID defines a type for identifiers stored as strings.
type UUID struct{}

// JSON defines a free-form structured document.
type JSON struct{}

// Any defines an unspecified type.
type Any struct{}

// List defines a slice of values
type List struct {
	ValueType Type // the type of element stored in the list
}

// Map defines a map of keys and values.
type Map struct {
	KeyType   Type // the type of the map key
	ValueType Type // the type of the value stored in the map
}

func (String) Zero() any    { return "" }
func (Int) Zero() any       { return int64(0) }
func (Float) Zero() any     { return float64(0) }
func (Decimal) Zero() any   { return float64(0) }
func (Bool) Zero() any      { return false }
func (Duration) Zero() any  { return time.Duration(0) }
func (Timestamp) Zero() any { return time.Time{} }
func (UUID) Zero() any      { return "" }
func (JSON) Zero() any      { return map[string]any{} }
func (Any) Zero() any       { return nil }
func (List) Zero() any      { return []any{} }
func (Map) Zero() any       { return map[string]any{} }

func (String) String() string    { return "string" }
func (Int) String() string       { return "int" }
func (Float) String() string     { return "float" }
func (Decimal) String() string   { return "decimal" }
func (Bool) String() string      { return "bool" }
func (Duration) String() string  { return "duration" }
func (Timestamp) String() string { return "timestamp" }
func (UUID) String() string      { return "uuid" }
func (JSON) String() string      { return "json" }
func (Any) String() string       { return "any" }
func (t List) String() string    { return fmt.Sprintf("[]%v", t.ValueType) }
func (t Map) String() string     { return fmt.Sprintf("map[%s]%s", t.KeyType, t.ValueType) }

// IsNumeric reports whether min/max bounds can be applied to values of the type.
func IsNumeric(t Type) bool {
	switch t.(type) {
	case Int, Float, Decimal:
		return true
	}
	return false
}

// ParseType parses a string that represents a type and returns the type.
// The primitive types are their lower-case names (string, int, duration, etc.)
// Maps and lists look like Go maps and slices: map[string]float and []string.
func ParseType(t string) (Type, error) {
	t = strings.TrimSpace(t)

	if strings.HasPrefix(t, "map[") {
		return parseMap(t)
	}

	if strings.HasPrefix(t, "[]") {
		return parseList(t)
	}

	switch t {
	case "string":
		return String{}, nil
	case "int":
		return Int{}, nil
	case "float":
		return Float{}, nil
	case "decimal":
		return Decimal{}, nil
	case "bool":
		return Bool{}, nil
	case "duration":
		return Duration{}, nil
	case "timestamp":
		return Timestamp{}, nil
	case "uuid":
		return UUID{}, nil
	case "json":
		return JSON{}, nil
	case "any":
		return Any{}, nil
	default:
		return Any{}, fmt.Errorf("unrecognized type: %s", t)
	}
}

// parseMap parses a string and returns a map type.
// The string must be in the format map[<keytype>]<valuetype>.
// Example: map[string]int
func parseMap(t string) (Type, error) {
	end := strings.Index(t, "]")
	if end == -1 {
		return Any{}, fmt.Errorf("bad map specification: %s", t)
	}

	keyType, err := ParseType(t[len("map["):end])
	if err != nil {
		return Any{}, err
	}

	valueType, err := ParseType(t[end+1:])
	if err != nil {
		return Any{}, err
	}

	return Map{
		KeyType:   keyType,
		ValueType: valueType,
	}, nil
}

// parseList parses a string and returns a list type.
// The string must be in the format []<valuetype>
// Example: []string
func parseList(t string) (Type, error) {
	valueType, err := ParseType(strings.TrimPrefix(t, "[]"))
	if err != nil {
		return Any{}, err
	}

	return List{
		ValueType: valueType,
	}, nil
}
