package dataguard

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"reflect"

	"github.com/markbates/inflect"
)

// Validator evaluates declarative rules against objects. It never stops at
// the first failure: every enabled rule is evaluated and every violation is
// returned.
type Validator struct {
	// The rules applied by Clean
	rules *RuleSet

	// Options used by the validator during evaluation
	opts ValidatorOptions
}

// ValidatorOptions holds the collaborators a Validator uses.
type ValidatorOptions struct {
	// Renders templated regular expressions. Templated rules fail
	// validation when no templater is set.
	Templater Templater

	// Counts matching instances for unique rules. Unique rules fail
	// validation when no store is set.
	Objects ObjectStore

	Logger *slog.Logger
}

type ValidatorOption func(o *ValidatorOptions)

// Given an array of ValidatorOption functions, apply their effect
// on the ValidatorOptions struct.
func applyValidatorOptions(o *ValidatorOptions, opts ...ValidatorOption) {
	for _, opt := range opts {
		opt(o)
	}
}

// WithTemplater sets the templater used for templated regular expressions.
func WithTemplater(t Templater) ValidatorOption {
	return func(o *ValidatorOptions) {
		o.Templater = t
	}
}

// WithObjectStore sets the store used to count instances for unique rules.
func WithObjectStore(s ObjectStore) ValidatorOption {
	return func(o *ValidatorOptions) {
		o.Objects = s
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(l *slog.Logger) ValidatorOption {
	return func(o *ValidatorOptions) {
		o.Logger = l
	}
}

// NewValidator returns a validator applying the rules in rs.
func NewValidator(rs *RuleSet, opts ...ValidatorOption) *Validator {
	v := Validator{rules: rs}
	applyValidatorOptions(&v.opts, opts...)
	if v.opts.Logger == nil {
		v.opts.Logger = slog.Default()
	}
	return &v
}

// Rules returns the rule set the validator applies in Clean.
func (v *Validator) Rules() *RuleSet {
	return v.rules
}

// Clean validates obj against the enabled rules for its entity type. It
// returns a *FieldError holding every violation, or nil.
func (v *Validator) Clean(ctx context.Context, obj *Object) error {
	if v.rules == nil {
		return nil
	}
	violations := v.Validate(ctx, obj, v.rules.ForEntity(obj.Type))
	if len(violations) == 0 {
		return nil
	}
	v.opts.Logger.Debug("object failed validation",
		"object", obj.String(), "violations", len(violations))
	return NewFieldError(violations)
}

// Validate evaluates the rules against obj and returns the violations.
// Disabled rules and rules for other entity types are skipped.
func (v *Validator) Validate(ctx context.Context, obj *Object, rules []Rule) []Violation {
	var out []Violation
	for _, r := range rules {
		b := r.Base()
		if !b.Enabled || b.EntityType != obj.Type {
			continue
		}
		var msgs []string
		switch x := r.(type) {
		case *RegexRule:
			msgs = v.regex(x, obj)
		case *MinMaxRule:
			msgs = minMax(x, obj)
		case *RequiredRule:
			msgs = required(x, obj)
		case *UniqueRule:
			msgs = v.unique(ctx, x, obj)
		default:
			msgs = []string{fmt.Sprintf("Unsupported rule kind %s.", r.Kind())}
		}
		for _, m := range msgs {
			out = append(out, Violation{Field: b.Field, Rule: b.Name, Message: m})
		}
	}
	return out
}

func (v *Validator) regex(r *RegexRule, obj *Object) []string {
	var value string
	switch x := obj.Get(r.Field).(type) {
	case nil:
		value = ""
	case string:
		value = x
	default:
		value = fmt.Sprint(x)
	}

	pattern := r.Pattern
	if r.Templated {
		if v.opts.Templater == nil {
			return []string{"There was an error rendering the regular expression template: no templater configured."}
		}
		rendered, err := v.opts.Templater.Render(r.Pattern, obj)
		if err != nil {
			v.opts.Logger.Debug("template rendering failed", "rule", r.Name, "error", err)
			return []string{fmt.Sprintf("There was an error rendering the regular expression template: %v", err)}
		}
		pattern = rendered
	}

	re, err := compileAnchored(pattern)
	if err != nil {
		return []string{fmt.Sprintf("Rendered pattern is not a valid regular expression: %s", pattern)}
	}
	if !re.MatchString(value) {
		return []string{r.message(fmt.Sprintf("Value does not conform to regex: %s", pattern))}
	}
	return nil
}

func minMax(r *MinMaxRule, obj *Object) []string {
	value := obj.Get(r.Field)
	if value == nil {
		return []string{r.message(fmt.Sprintf("Value does not conform to min/max validation: min %s, max %s",
			bound(r.Min), bound(r.Max)))}
	}
	f, ok := toFloat(value)
	if !ok {
		return []string{fmt.Sprintf("Unable to validate against min/max rule %s because the field value is not numeric.", r.Name)}
	}
	var msgs []string
	if r.Min != nil && f < *r.Min {
		msgs = append(msgs, r.message(fmt.Sprintf("Value is less than minimum value: %v", *r.Min)))
	}
	if r.Max != nil && f > *r.Max {
		msgs = append(msgs, r.message(fmt.Sprintf("Value is more than maximum value: %v", *r.Max)))
	}
	return msgs
}

func bound(f *float64) string {
	if f == nil {
		return "None"
	}
	return fmt.Sprintf("%v", *f)
}

func required(r *RequiredRule, obj *Object) []string {
	if isBlank(obj.Get(r.Field)) {
		return []string{r.message("This field cannot be blank.")}
	}
	return nil
}

func (v *Validator) unique(ctx context.Context, r *UniqueRule, obj *Object) []string {
	value := obj.Get(r.Field)
	if isBlank(value) {
		return nil
	}
	if v.opts.Objects == nil {
		return []string{"Unable to check uniqueness: no object store configured."}
	}
	n, err := v.opts.Objects.CountMatching(ctx, obj.Type, r.Field, value, obj.ID)
	if err != nil {
		v.opts.Logger.Warn("unique rule lookup failed", "rule", r.Name, "object", obj.String(), "error", err)
		return []string{fmt.Sprintf("Unable to check uniqueness: %v", err)}
	}
	limit := r.Limit()
	if n < limit {
		return nil
	}
	noun := "instance"
	if limit != 1 {
		noun = inflect.Pluralize(noun)
	}
	return []string{r.message(fmt.Sprintf("There can only be %d %s with this value.", limit, noun))}
}

// isBlank reports whether a value counts as absent: nil, the empty string,
// or an empty slice or map. Zero numbers and false are present.
func isBlank(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Map, reflect.Array:
		return rv.Len() == 0
	case reflect.Ptr, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// toFloat converts Go numeric values to float64.
func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}
