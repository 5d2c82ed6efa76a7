package dataguard

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// ErrDuplicateRule is returned when a rule with the same name, or of the same
// kind on the same entity type and field, is already in the set.
var ErrDuplicateRule = errors.New("duplicate rule")

// ErrRuleNotFound is returned when removing a rule that is not in the set.
var ErrRuleNotFound = errors.New("rule not found")

// RuleSet holds the declarative rules known to a Validator.
// It is safe for concurrent use.
type RuleSet struct {
	// Used to resolve the schema each rule is checked against
	schemas SchemaProvider

	// Mutex for the rules map
	mu sync.RWMutex

	// Rules keyed by name
	rules map[string]Rule
}

// NewRuleSet returns an empty set that checks rules against the schemas
// supplied by p.
func NewRuleSet(p SchemaProvider) *RuleSet {
	return &RuleSet{
		schemas: p,
		rules:   map[string]Rule{},
	}
}

// Add checks each rule against the schema of its entity type and adds it to
// the set. Rules are added in order; the first rule that fails stops the add,
// leaving the rules before it in the set.
func (rs *RuleSet) Add(rules ...Rule) error {
	for _, r := range rules {
		if r == nil {
			return fmt.Errorf("nil rule")
		}
		b := r.Base()
		s, err := rs.schemas.Lookup(b.EntityType)
		if err != nil {
			return &ConfigError{
				Subject: b.Name,
				Fields:  map[string]string{"entity_type": "Not a valid entity type."},
				Err:     err,
			}
		}
		if err := r.Check(s); err != nil {
			return err
		}

		rs.mu.Lock()
		err = rs.addLocked(r)
		rs.mu.Unlock()
		if err != nil {
			return err
		}
	}
	return nil
}

func (rs *RuleSet) addLocked(r Rule) error {
	b := r.Base()
	if _, ok := rs.rules[b.Name]; ok {
		return fmt.Errorf("%w: name %s is already in use", ErrDuplicateRule, b.Name)
	}
	for _, x := range rs.rules {
		xb := x.Base()
		if x.Kind() == r.Kind() && xb.EntityType == b.EntityType && xb.Field == b.Field {
			return fmt.Errorf("%w: %s rule %s already applies to %s.%s",
				ErrDuplicateRule, r.Kind(), xb.Name, b.EntityType, b.Field)
		}
	}
	rs.rules[b.Name] = r
	return nil
}

// Remove deletes the rule with the name.
func (rs *RuleSet) Remove(name string) error {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if _, ok := rs.rules[name]; !ok {
		return fmt.Errorf("%w: %s", ErrRuleNotFound, name)
	}
	delete(rs.rules, name)
	return nil
}

// Get returns the rule with the name.
func (rs *RuleSet) Get(name string) (Rule, bool) {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	r, ok := rs.rules[name]
	return r, ok
}

// Len returns the number of rules in the set, enabled or not.
func (rs *RuleSet) Len() int {
	rs.mu.RLock()
	defer rs.mu.RUnlock()
	return len(rs.rules)
}

// ForEntity returns the enabled rules for the entity type, ordered by kind
// and then by name.
func (rs *RuleSet) ForEntity(entityType string) []Rule {
	rs.mu.RLock()
	out := []Rule{}
	for _, r := range rs.rules {
		if b := r.Base(); b.Enabled && b.EntityType == entityType {
			out = append(out, r)
		}
	}
	rs.mu.RUnlock()
	sortRules(out)
	return out
}

// All returns every rule in the set, ordered by entity type, kind and name.
func (rs *RuleSet) All() []Rule {
	rs.mu.RLock()
	out := make([]Rule, 0, len(rs.rules))
	for _, r := range rs.rules {
		out = append(out, r)
	}
	rs.mu.RUnlock()
	sortRules(out)
	return out
}

func sortRules(rules []Rule) {
	sort.SliceStable(rules, func(i, j int) bool {
		bi, bj := rules[i].Base(), rules[j].Base()
		if bi.EntityType != bj.EntityType {
			return bi.EntityType < bj.EntityType
		}
		if ki, kj := kindOrder[rules[i].Kind()], kindOrder[rules[j].Kind()]; ki != kj {
			return ki < kj
		}
		return bi.Name < bj.Name
	})
}

// String renders the rules in the set as a table.
func (rs *RuleSet) String() string {
	tw := table.NewWriter()
	tw.SetTitle("\nDATA VALIDATION RULES\n")
	tw.AppendHeader(table.Row{"Rule", "Kind", "Entity Type", "Field", "Enabled", "Parameters", "Message"})
	for _, r := range rs.All() {
		b := r.Base()
		tw.AppendRow(table.Row{
			b.Name,
			string(r.Kind()),
			b.EntityType,
			b.Field,
			yesNo(b.Enabled),
			parameters(r),
			b.ErrorMessage,
		})
	}
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return ""
}

// parameters summarizes the kind-specific settings of a rule.
func parameters(r Rule) string {
	switch x := r.(type) {
	case *RegexRule:
		if x.Templated {
			return "pattern=" + x.Pattern + " (templated)"
		}
		return "pattern=" + x.Pattern
	case *MinMaxRule:
		p := []string{}
		if x.Min != nil {
			p = append(p, fmt.Sprintf("min=%v", *x.Min))
		}
		if x.Max != nil {
			p = append(p, fmt.Sprintf("max=%v", *x.Max))
		}
		return strings.Join(p, " ")
	case *UniqueRule:
		return fmt.Sprintf("max_instances=%d", x.Limit())
	}
	return ""
}
