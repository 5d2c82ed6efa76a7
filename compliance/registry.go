package compliance

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/ezachrisen/dataguard"
)

// ErrDuplicateCheck is returned when registering a check whose name is taken.
var ErrDuplicateCheck = errors.New("duplicate check")

// ErrNotACheck is returned when registering a value that is not a usable check.
var ErrNotACheck = errors.New("not a check")

// Registry holds the checks compiled into the program.
// It is safe for concurrent use.
type Registry struct {
	mu     sync.RWMutex
	checks map[string]dataguard.Check
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{checks: map[string]dataguard.Check{}}
}

// Register adds checks to the registry. Values that are not usable checks
// (see dataguard.IsCheck) are rejected.
func (r *Registry) Register(checks ...dataguard.Check) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range checks {
		if !dataguard.IsCheck(c) {
			return fmt.Errorf("%w: %T", ErrNotACheck, c)
		}
		if _, ok := r.checks[c.Name()]; ok {
			return fmt.Errorf("%w: %s", ErrDuplicateCheck, c.Name())
		}
		r.checks[c.Name()] = c
	}
	return nil
}

// RegisterRuleChecks registers a RuleCheck for each entity type, running the
// validator's declarative rules as a compliance check.
func (r *Registry) RegisterRuleChecks(v *dataguard.Validator, entityTypes ...string) error {
	for _, et := range entityTypes {
		c, err := NewRuleCheck(v, et)
		if err != nil {
			return err
		}
		if err := r.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// For returns the checks for the entity type, ordered by name.
func (r *Registry) For(entityType string) []dataguard.Check {
	out := []dataguard.Check{}
	for _, c := range r.All() {
		if c.EntityType() == entityType {
			out = append(out, c)
		}
	}
	return out
}

// All returns every registered check, ordered by name.
func (r *Registry) All() []dataguard.Check {
	r.mu.RLock()
	out := make([]dataguard.Check, 0, len(r.checks))
	for _, c := range r.checks {
		out = append(out, c)
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
