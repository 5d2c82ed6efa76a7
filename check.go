package dataguard

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
)

// Check is a unit of compliance logic that audits one instance of an entity type.
//
// Audit returns nil when the instance passes. A *ComplianceError reports
// failures against individual attributes; an *AuditError reports failures
// against the instance as a whole. Any other error is treated as an
// unexpected failure of the check itself.
type Check interface {
	// Unique name of the check
	Name() string

	// Entity type the check audits (app_label.model)
	EntityType() string

	// Whether a failure blocks the save path
	Enforce() bool

	Audit(ctx context.Context, obj *Object) error
}

// IsCheck reports whether v is a usable check: a non-nil Check with a name
// and an entity type.
func IsCheck(v any) bool {
	c, ok := v.(Check)
	if !ok {
		return false
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Ptr && rv.IsNil() {
		return false
	}
	return c.Name() != "" && c.EntityType() != ""
}

// BaseCheck carries the identity of a check. Embed it in a type that
// implements Audit. A bare BaseCheck is not a check.
type BaseCheck struct {
	CheckName string
	Entity    string
	Enforced  bool
}

func (b *BaseCheck) Name() string       { return b.CheckName }
func (b *BaseCheck) EntityType() string { return b.Entity }
func (b *BaseCheck) Enforce() bool      { return b.Enforced }

// ComplianceError is the structured failure a check raises: messages keyed by
// attribute name.
type ComplianceError struct {
	Fields map[string][]string
}

// NewComplianceError returns an empty ComplianceError.
func NewComplianceError() *ComplianceError {
	return &ComplianceError{Fields: map[string][]string{}}
}

// Add records a message against the attribute.
func (e *ComplianceError) Add(attribute, msg string) *ComplianceError {
	if e.Fields == nil {
		e.Fields = map[string][]string{}
	}
	e.Fields[attribute] = append(e.Fields[attribute], msg)
	return e
}

// Attributes returns the attribute names in sorted order.
func (e *ComplianceError) Attributes() []string {
	names := make([]string, 0, len(e.Fields))
	for a := range e.Fields {
		names = append(names, a)
	}
	sort.Strings(names)
	return names
}

func (e *ComplianceError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, a := range e.Attributes() {
		parts = append(parts, fmt.Sprintf("%s: %s", a, strings.Join(e.Fields[a], ", ")))
	}
	return "compliance failure: " + strings.Join(parts, "; ")
}

// AuditError is the unstructured failure a check raises: messages about the
// instance as a whole.
type AuditError struct {
	Messages []string
}

// NewAuditError returns an AuditError holding the messages.
func NewAuditError(msgs ...string) *AuditError {
	return &AuditError{Messages: msgs}
}

func (e *AuditError) Error() string {
	return "audit failure: " + strings.Join(e.Messages, "; ")
}

// AsComplianceError returns the *ComplianceError in err's chain, if any.
func AsComplianceError(err error) (*ComplianceError, bool) {
	var ce *ComplianceError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

// AsAuditError returns the *AuditError in err's chain, if any.
func AsAuditError(err error) (*AuditError, bool) {
	var ae *AuditError
	if errors.As(err, &ae) {
		return ae, true
	}
	return nil, false
}
