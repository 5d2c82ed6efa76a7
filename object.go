package dataguard

import (
	"context"
	"errors"
	"fmt"
)

// Object is one instance of an entity type in the host store.
type Object struct {
	// Entity type identifier (app_label.model)
	Type string `json:"type"`

	// Identifier of the instance. Empty for an instance that has not
	// been saved yet.
	ID string `json:"id,omitempty"`

	// Attribute values keyed by field name
	Fields map[string]any `json:"fields"`
}

// NewObject returns an object of the entity type with a copy of fields.
func NewObject(entityType, id string, fields map[string]any) *Object {
	o := &Object{
		Type:   entityType,
		ID:     id,
		Fields: make(map[string]any, len(fields)),
	}
	for k, v := range fields {
		o.Fields[k] = v
	}
	return o
}

// Get returns the value of the attribute, or nil if the object does not carry it.
func (o *Object) Get(name string) any {
	if o == nil || o.Fields == nil {
		return nil
	}
	return o.Fields[name]
}

// Set assigns the value of the attribute.
func (o *Object) Set(name string, value any) {
	if o.Fields == nil {
		o.Fields = map[string]any{}
	}
	o.Fields[name] = value
}

func (o *Object) String() string {
	if o == nil {
		return "<nil>"
	}
	if o.ID == "" {
		return o.Type + "(unsaved)"
	}
	return fmt.Sprintf("%s(%s)", o.Type, o.ID)
}

// ErrObjectNotFound is returned by an ObjectStore when an instance does not exist.
var ErrObjectNotFound = errors.New("object not found")

// ObjectStore is the part of the host store the engine reads from.
type ObjectStore interface {
	// All returns every instance of the entity type.
	All(ctx context.Context, entityType string) ([]*Object, error)

	// Get returns the instance with the id, or an error wrapping ErrObjectNotFound.
	Get(ctx context.Context, entityType, id string) (*Object, error)

	// CountMatching returns the number of instances of the entity type whose
	// field equals value, not counting the instance with excludeID.
	CountMatching(ctx context.Context, entityType, field string, value any, excludeID string) (int, error)
}
