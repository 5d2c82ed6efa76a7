package dataguard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// AllFields is the key used for messages that concern the whole object
// rather than a single attribute.
const AllFields = "__all__"

// Violation is a single field-level failure produced by the Validator.
type Violation struct {
	Field   string
	Rule    string
	Message string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

// FieldError is the structured error the save-path hook returns. It maps
// attribute names to the messages raised against them.
type FieldError struct {
	Fields map[string][]string
}

// NewFieldError collects violations into a FieldError. It returns nil when
// there are no violations.
func NewFieldError(violations []Violation) *FieldError {
	if len(violations) == 0 {
		return nil
	}
	fe := &FieldError{Fields: map[string][]string{}}
	for _, v := range violations {
		fe.Add(v.Field, v.Message)
	}
	return fe
}

// Add records a message against the field.
func (e *FieldError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	if field == "" {
		field = AllFields
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Merge copies the messages of o into e.
func (e *FieldError) Merge(o *FieldError) {
	if o == nil {
		return
	}
	for _, f := range o.fieldNames() {
		for _, m := range o.Fields[f] {
			e.Add(f, m)
		}
	}
}

// Empty reports whether e holds no messages.
func (e *FieldError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

func (e *FieldError) fieldNames() []string {
	names := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		names = append(names, f)
	}
	sort.Strings(names)
	return names
}

func (e *FieldError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.fieldNames() {
		parts = append(parts, fmt.Sprintf("%s: %s", f, strings.Join(e.Fields[f], "; ")))
	}
	return strings.Join(parts, ", ")
}

// ConfigError reports a broken rule or check definition: a field that does
// not exist or cannot carry the rule, incoherent bounds, or an entity type
// that does not resolve. It is never recorded as data; it goes back to the
// user that created the definition.
type ConfigError struct {
	// Name of the rule or check at fault
	Subject string

	// Messages keyed by the offending attribute of the definition
	Fields map[string]string

	// Underlying cause, if any
	Err error
}

func configError(subject, field, msg string) *ConfigError {
	return &ConfigError{Subject: subject, Fields: map[string]string{field: msg}}
}

func (e *ConfigError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	if e.Err != nil {
		parts = append(parts, e.Err.Error())
	}
	return fmt.Sprintf("invalid configuration for %s: %s", e.Subject, strings.Join(parts, ", "))
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsConfigError reports whether err is, or wraps, a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
