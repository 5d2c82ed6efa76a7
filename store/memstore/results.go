package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ezachrisen/dataguard/compliance"
)

// Results is an in-memory compliance.ResultStore.
// It is safe for concurrent use.
type Results struct {
	mu      sync.RWMutex
	results map[compliance.Key]compliance.Result
}

// NewResults returns an empty result store.
func NewResults() *Results {
	return &Results{results: map[compliance.Key]compliance.Result{}}
}

func (s *Results) Upsert(_ context.Context, r compliance.Result) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	k := r.Key()
	if prev, ok := s.results[k]; ok {
		r.ID = prev.ID
	}
	s.results[k] = r
	return nil
}

func (s *Results) ForObject(_ context.Context, checkName, entityType, objectID string) ([]compliance.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []compliance.Result{}
	for k, r := range s.results {
		if k.CheckName == checkName && k.EntityType == entityType && k.ObjectID == objectID {
			out = append(out, r)
		}
	}
	sortResults(out)
	return out, nil
}

func (s *Results) All(_ context.Context) ([]compliance.Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]compliance.Result, 0, len(s.results))
	for _, r := range s.results {
		out = append(out, r)
	}
	sortResults(out)
	return out, nil
}

func (s *Results) Delete(_ context.Context, k compliance.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.results[k]; !ok {
		return fmt.Errorf("%s: %w", k, compliance.ErrResultNotFound)
	}
	delete(s.results, k)
	return nil
}

// Len returns the number of stored results.
func (s *Results) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.results)
}

func sortResults(rs []compliance.Result) {
	sort.Slice(rs, func(i, j int) bool {
		return rs[i].Key().String() < rs[j].Key().String()
	})
}
