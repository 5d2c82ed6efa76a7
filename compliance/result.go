// Package compliance runs compliance checks against the objects of the host
// store and reconciles their outcome into persisted results.
//
// Each check produces one result per (check, object, attribute) it has ever
// reported on, plus a whole-object result keyed by WholeObject. Results are
// upserted, never appended, so running the same checks over unchanged data
// leaves the result store unchanged apart from timestamps.
package compliance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ezachrisen/dataguard"
	"github.com/google/uuid"
)

// WholeObject is the attribute of the result that summarizes an object.
const WholeObject = dataguard.AllFields

// ErrResultNotFound is returned when deleting a result that does not exist.
var ErrResultNotFound = errors.New("result not found")

// Key identifies a result. There is at most one result per key.
type Key struct {
	CheckName  string
	EntityType string
	ObjectID   string
	Attribute  string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s/%s", k.CheckName, k.EntityType, k.ObjectID, k.Attribute)
}

// Result is the recorded outcome of a check for one attribute of one object.
type Result struct {
	ID             uuid.UUID `json:"id"`
	CheckName      string    `json:"check_name"`
	EntityType     string    `json:"entity_type"`
	ObjectID       string    `json:"object_id"`
	Attribute      string    `json:"attribute"`
	LastEvaluated  time.Time `json:"last_evaluated"`
	AttributeValue string    `json:"attribute_value,omitempty"`
	Valid          bool      `json:"valid"`
	Message        string    `json:"message,omitempty"`
}

// Key returns the key of the result.
func (r Result) Key() Key {
	return Key{
		CheckName:  r.CheckName,
		EntityType: r.EntityType,
		ObjectID:   r.ObjectID,
		Attribute:  r.Attribute,
	}
}

// ResultStore persists results.
type ResultStore interface {
	// Upsert inserts the result, or updates the result with the same key.
	// An updated result keeps its ID.
	Upsert(ctx context.Context, r Result) error

	// ForObject returns the results a check recorded for an object.
	ForObject(ctx context.Context, checkName, entityType, objectID string) ([]Result, error)

	// All returns every result.
	All(ctx context.Context) ([]Result, error)

	// Delete removes the result with the key, or returns an error wrapping
	// ErrResultNotFound.
	Delete(ctx context.Context, k Key) error
}

// NewID returns an identifier for a new result.
func NewID() uuid.UUID {
	return uuid.New()
}

// valueString renders an attribute value for storage.
func valueString(v any) string {
	if v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
