package dataguard

import (
	"fmt"
	"regexp"
	"strings"
)

// RuleKind names one of the four declarative rule variants.
type RuleKind string

const (
	KindRegex    RuleKind = "regex"
	KindMinMax   RuleKind = "min_max"
	KindRequired RuleKind = "required"
	KindUnique   RuleKind = "unique"
)

// kindOrder fixes the order in which RuleSet.ForEntity returns rules.
var kindOrder = map[RuleKind]int{
	KindRegex:    0,
	KindMinMax:   1,
	KindRequired: 2,
	KindUnique:   3,
}

// A Rule is a declarative data-quality constraint on one field of an entity type.
//
// Rules are pure data. Check validates the rule's own configuration against
// the live schema of the target entity type; the Validator evaluates the
// rule against objects.
type Rule interface {
	// Base returns the attributes shared by all rule kinds.
	Base() *RuleBase

	// Kind identifies the rule variant.
	Kind() RuleKind

	// Check returns a *ConfigError if the rule cannot be applied to the schema.
	Check(s Schema) error
}

// RuleBase holds the attributes shared by every rule kind.
type RuleBase struct {
	// Unique rule name (required)
	Name string `json:"name" yaml:"name"`

	// Entity type the rule applies to (app_label.model)
	EntityType string `json:"entity_type" yaml:"entity_type"`

	// Name of the field the rule constrains
	Field string `json:"field" yaml:"field"`

	// Only enabled rules are evaluated.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// Optional message to use instead of the generated one
	ErrorMessage string `json:"error_message,omitempty" yaml:"error_message,omitempty"`
}

// Base implements Rule for every type embedding RuleBase.
func (b *RuleBase) Base() *RuleBase { return b }

func (b *RuleBase) message(def string) string {
	if b.ErrorMessage != "" {
		return b.ErrorMessage
	}
	return def
}

// checkField performs the field checks common to all rule kinds and returns
// the schema field.
func (b *RuleBase) checkField(s Schema, what string) (Field, error) {
	if strings.TrimSpace(b.Name) == "" {
		return Field{}, configError("(unnamed rule)", "name", "A rule name is required.")
	}
	if b.EntityType != s.ID {
		return Field{}, configError(b.Name, "entity_type",
			fmt.Sprintf("Rule targets %s but was checked against %s.", b.EntityType, s.ID))
	}
	f, ok := s.Field(b.Field)
	if !ok {
		return Field{}, configError(b.Name, "field",
			fmt.Sprintf("Not a valid field for content type %s.", s.ID))
	}
	if strings.HasPrefix(f.Name, "_") || !f.Editable || f.Auto || f.Identity || f.Relation {
		return Field{}, configError(b.Name, "field",
			fmt.Sprintf("This field's type does not support %s validation.", what))
	}
	return f, nil
}

// RegexRule requires a field value to match a regular expression from the
// start of the string.
type RegexRule struct {
	RuleBase `yaml:",inline"`

	// Regular expression (RE2 syntax)
	Pattern string `json:"pattern" yaml:"pattern"`

	// Templated patterns are rendered with the object in scope before they
	// are compiled.
	Templated bool `json:"templated,omitempty" yaml:"templated,omitempty"`
}

func (r *RegexRule) Kind() RuleKind { return KindRegex }

func (r *RegexRule) Check(s Schema) error {
	f, err := r.checkField(s, "regular expression")
	if err != nil {
		return err
	}
	switch f.Type.(type) {
	case Bool, JSON, UUID, List, Map:
		return configError(r.Name, "field", "This field's type does not support regular expression validation.")
	}
	if r.Templated {
		// the rendered pattern is compiled at evaluation time
		return nil
	}
	if _, err := compileAnchored(r.Pattern); err != nil {
		return configError(r.Name, "pattern", fmt.Sprintf("%s is not a valid regular expression.", r.Pattern))
	}
	return nil
}

// compileAnchored compiles the pattern so that it only matches at the start
// of the input.
func compileAnchored(pattern string) (*regexp.Regexp, error) {
	if _, err := regexp.Compile(pattern); err != nil {
		return nil, err
	}
	return regexp.Compile(`^(?:` + pattern + `)`)
}

// MinMaxRule bounds a numeric field. At least one of Min and Max must be set.
type MinMaxRule struct {
	RuleBase `yaml:",inline"`

	// When set, values below Min are violations.
	Min *float64 `json:"min,omitempty" yaml:"min,omitempty"`

	// When set, values above Max are violations.
	Max *float64 `json:"max,omitempty" yaml:"max,omitempty"`
}

func (r *MinMaxRule) Kind() RuleKind { return KindMinMax }

func (r *MinMaxRule) Check(s Schema) error {
	f, err := r.checkField(s, "min/max")
	if err != nil {
		return err
	}
	if !IsNumeric(f.Type) {
		return configError(r.Name, "field", "This field's type does not support min/max validation.")
	}
	if r.Min == nil && r.Max == nil {
		return configError(r.Name, AllFields, "At least a minimum or maximum value must be specified.")
	}
	if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
		return &ConfigError{
			Subject: r.Name,
			Fields: map[string]string{
				"min": "Minimum value cannot be more than the maximum value.",
				"max": "Maximum value cannot be less than the minimum value.",
			},
		}
	}
	return nil
}

// RequiredRule requires a field to be present and non-blank.
type RequiredRule struct {
	RuleBase `yaml:",inline"`
}

func (r *RequiredRule) Kind() RuleKind { return KindRequired }

func (r *RequiredRule) Check(s Schema) error {
	f, err := r.checkField(s, "required")
	if err != nil {
		return err
	}
	if _, ok := f.Type.(Bool); ok {
		return configError(r.Name, "field", "This field's type does not support required validation.")
	}
	return nil
}

// UniqueRule limits how many instances may share the same field value.
type UniqueRule struct {
	RuleBase `yaml:",inline"`

	// Maximum number of instances sharing a value; zero means 1.
	MaxInstances int `json:"max_instances,omitempty" yaml:"max_instances,omitempty"`
}

func (r *UniqueRule) Kind() RuleKind { return KindUnique }

// Limit returns the effective instance limit.
func (r *UniqueRule) Limit() int {
	if r.MaxInstances == 0 {
		return 1
	}
	return r.MaxInstances
}

func (r *UniqueRule) Check(s Schema) error {
	f, err := r.checkField(s, "unique")
	if err != nil {
		return err
	}
	switch f.Type.(type) {
	case JSON, List, Map:
		return configError(r.Name, "field", "This field's type does not support unique validation.")
	}
	if r.MaxInstances < 0 {
		return configError(r.Name, "max_instances", "Max instances must be at least 1.")
	}
	return nil
}

// Float64 returns a pointer to f, for building MinMaxRule bounds.
func Float64(f float64) *float64 { return &f }
