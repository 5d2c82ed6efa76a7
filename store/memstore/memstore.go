// Package memstore provides in-memory object and result stores, for tests
// and dry runs.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/ezachrisen/dataguard"
)

// Objects is an in-memory dataguard.ObjectStore.
// It is safe for concurrent use.
type Objects struct {
	mu      sync.RWMutex
	objects map[string]map[string]*dataguard.Object // entity type -> id -> object
}

// NewObjects returns a store holding objs.
func NewObjects(objs ...*dataguard.Object) *Objects {
	s := &Objects{objects: map[string]map[string]*dataguard.Object{}}
	if err := s.Put(objs...); err != nil {
		panic(err)
	}
	return s
}

// Put adds or replaces objects. Objects must have an ID.
func (s *Objects) Put(objs ...*dataguard.Object) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, o := range objs {
		if o.ID == "" {
			return fmt.Errorf("memstore: %s has no id", o)
		}
		m, ok := s.objects[o.Type]
		if !ok {
			m = map[string]*dataguard.Object{}
			s.objects[o.Type] = m
		}
		m[o.ID] = dataguard.NewObject(o.Type, o.ID, o.Fields)
	}
	return nil
}

// Remove deletes an object.
func (s *Objects) Remove(entityType, id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects[entityType], id)
}

func (s *Objects) All(_ context.Context, entityType string) ([]*dataguard.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*dataguard.Object, 0, len(s.objects[entityType]))
	for _, o := range s.objects[entityType] {
		out = append(out, dataguard.NewObject(o.Type, o.ID, o.Fields))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Objects) Get(_ context.Context, entityType, id string) (*dataguard.Object, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	o, ok := s.objects[entityType][id]
	if !ok {
		return nil, fmt.Errorf("%s(%s): %w", entityType, id, dataguard.ErrObjectNotFound)
	}
	return dataguard.NewObject(o.Type, o.ID, o.Fields), nil
}

func (s *Objects) CountMatching(_ context.Context, entityType, field string, value any, excludeID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for id, o := range s.objects[entityType] {
		if id != excludeID && equal(o.Get(field), value) {
			n++
		}
	}
	return n, nil
}

// equal compares values, treating numbers of different Go types as equal
// when they hold the same value.
func equal(a, b any) bool {
	fa, aok := number(a)
	fb, bok := number(b)
	if aok && bok {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func number(v any) (float64, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	case reflect.Float32, reflect.Float64:
		return rv.Float(), true
	}
	return 0, false
}
