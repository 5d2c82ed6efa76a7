package dataguard_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/ezachrisen/dataguard"
	"github.com/matryer/is"
)

func messages(vs []dataguard.Violation) []string {
	out := []string{}
	for _, v := range vs {
		out = append(out, v.Message)
	}
	return out
}

func TestRegex(t *testing.T) {

	cases := map[string]struct {
		rule *dataguard.RegexRule
		obj  *dataguard.Object
		want []string
	}{
		"match": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "name"), Pattern: "^ABC$"},
			obj:  site("1", map[string]any{"name": "ABC"}),
			want: []string{},
		},
		"prefix match": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "name"), Pattern: "AB"},
			obj:  site("1", map[string]any{"name": "ABC"}),
			want: []string{},
		},
		"match must start at the beginning": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "name"), Pattern: "BC"},
			obj:  site("1", map[string]any{"name": "ABC"}),
			want: []string{"Value does not conform to regex: BC"},
		},
		"alternation is anchored": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "name"), Pattern: "X|BC"},
			obj:  site("1", map[string]any{"name": "ABC"}),
			want: []string{"Value does not conform to regex: X|BC"},
		},
		"nil is coerced to empty": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "name"), Pattern: "^ABC$"},
			obj:  site("1", map[string]any{}),
			want: []string{"Value does not conform to regex: ^ABC$"},
		},
		"nil matches optional pattern": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "name"), Pattern: "^.*$"},
			obj:  site("1", map[string]any{"name": nil}),
			want: []string{},
		},
		"custom message": {
			rule: &dataguard.RegexRule{
				RuleBase: dataguard.RuleBase{Name: "r", EntityType: "dcim.site", Field: "name", Enabled: true, ErrorMessage: "Names start with ABC"},
				Pattern:  "^ABC",
			},
			obj:  site("1", map[string]any{"name": "XYZ"}),
			want: []string{"Names start with ABC"},
		},
		"templated match": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "description"), Pattern: "{{ prefix }}.*", Templated: true},
			obj:  site("1", map[string]any{"name": "AMS-195", "description": "AMS-195 is really cool"}),
			want: []string{},
		},
		"templated no match": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "description"), Pattern: "{{ prefix }}.*", Templated: true},
			obj:  site("1", map[string]any{"name": "AMS-195", "description": "I don't like AMS-195"}),
			want: []string{"Value does not conform to regex: AMS.*"},
		},
		"templated invalid pattern": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "description"), Pattern: "[{{ prefix }}.*", Templated: true},
			obj:  site("1", map[string]any{"name": "AMS-195"}),
			want: []string{"Rendered pattern is not a valid regular expression: [AMS.*"},
		},
		"templated render failure": {
			rule: &dataguard.RegexRule{RuleBase: base("r", "description"), Pattern: "{{ prefix }}.*", Templated: true},
			obj:  site("1", map[string]any{"name": "A"}),
			want: []string{`There was an error rendering the regular expression template: name "A" is too short`},
		},
	}

	v := dataguard.NewValidator(nil, dataguard.WithTemplater(prefixTemplater{}))
	for key, c := range cases {
		got := messages(v.Validate(context.Background(), c.obj, []dataguard.Rule{c.rule}))
		if strings.Join(got, "|") != strings.Join(c.want, "|") {
			t.Errorf("case %s: wanted %q, got %q", key, c.want, got)
		}
	}
}

func TestMinMax(t *testing.T) {

	rule := &dataguard.MinMaxRule{RuleBase: base("asn range", "asn"), Min: dataguard.Float64(5), Max: dataguard.Float64(10)}

	cases := map[string]struct {
		value any
		want  []string
	}{
		"below":       {value: 4, want: []string{"Value is less than minimum value: 5"}},
		"lower bound": {value: 5, want: []string{}},
		"upper bound": {value: int64(10), want: []string{}},
		"above":       {value: 11.5, want: []string{"Value is more than maximum value: 10"}},
		"nil":         {value: nil, want: []string{"Value does not conform to min/max validation: min 5, max 10"}},
		"string":      {value: "7", want: []string{"Unable to validate against min/max rule asn range because the field value is not numeric."}},
	}

	v := dataguard.NewValidator(nil)
	for key, c := range cases {
		obj := site("1", map[string]any{"asn": c.value})
		got := messages(v.Validate(context.Background(), obj, []dataguard.Rule{rule}))
		if strings.Join(got, "|") != strings.Join(c.want, "|") {
			t.Errorf("case %s: wanted %q, got %q", key, c.want, got)
		}
	}
}

func TestMinMaxOpenBound(t *testing.T) {
	is := is.New(t)

	rule := &dataguard.MinMaxRule{RuleBase: base("asn max", "asn"), Max: dataguard.Float64(10)}
	rule.ErrorMessage = "ASN too big"
	v := dataguard.NewValidator(nil)

	is.Equal(len(v.Validate(context.Background(), site("1", map[string]any{"asn": -1000}), []dataguard.Rule{rule})), 0)
	is.Equal(messages(v.Validate(context.Background(), site("1", map[string]any{"asn": 11}), []dataguard.Rule{rule})),
		[]string{"ASN too big"})
	is.Equal(messages(v.Validate(context.Background(), site("1", map[string]any{}), []dataguard.Rule{rule})),
		[]string{"ASN too big"})
}

func TestRequired(t *testing.T) {

	rule := &dataguard.RequiredRule{RuleBase: base("required", "description")}

	cases := map[string]struct {
		value any
		blank bool
	}{
		"nil":         {value: nil, blank: true},
		"empty":       {value: "", blank: true},
		"empty list":  {value: []string{}, blank: true},
		"empty map":   {value: map[string]any{}, blank: true},
		"zero":        {value: 0, blank: false},
		"false":       {value: false, blank: false},
		"text":        {value: "x", blank: false},
		"list":        {value: []any{1}, blank: false},
		"single char": {value: " ", blank: false},
	}

	v := dataguard.NewValidator(nil)
	for key, c := range cases {
		got := messages(v.Validate(context.Background(), site("1", map[string]any{"description": c.value}), []dataguard.Rule{rule}))
		if c.blank && (len(got) != 1 || got[0] != "This field cannot be blank.") {
			t.Errorf("case %s: wanted blank violation, got %q", key, got)
		}
		if !c.blank && len(got) != 0 {
			t.Errorf("case %s: wanted no violation, got %q", key, got)
		}
	}
}

func TestUnique(t *testing.T) {
	is := is.New(t)

	store := &fakeStore{objects: []*dataguard.Object{
		site("1", map[string]any{"name": "AMS"}),
		site("2", map[string]any{"name": "AMS"}),
		site("3", map[string]any{"name": "AMS"}),
		site("4", map[string]any{"name": "LHR"}),
	}}
	v := dataguard.NewValidator(nil, dataguard.WithObjectStore(store))
	ctx := context.Background()

	two := &dataguard.UniqueRule{RuleBase: base("two", "name"), MaxInstances: 2}
	for _, o := range store.objects[:3] {
		is.Equal(messages(v.Validate(ctx, o, []dataguard.Rule{two})),
			[]string{"There can only be 2 instances with this value."})
	}
	is.Equal(len(v.Validate(ctx, store.objects[3], []dataguard.Rule{two})), 0)

	one := &dataguard.UniqueRule{RuleBase: base("one", "name")}
	is.Equal(messages(v.Validate(ctx, site("", map[string]any{"name": "LHR"}), []dataguard.Rule{one})),
		[]string{"There can only be 1 instance with this value."})

	// the instance itself is not counted
	is.Equal(len(v.Validate(ctx, store.objects[3], []dataguard.Rule{one})), 0)

	// blank values are never checked
	is.Equal(len(v.Validate(ctx, site("", map[string]any{"name": ""}), []dataguard.Rule{one})), 0)

	// a store failure is a violation, not an error
	store.err = errors.New("connection refused")
	got := messages(v.Validate(ctx, store.objects[3], []dataguard.Rule{one}))
	is.Equal(len(got), 1)
	is.True(strings.Contains(got[0], "connection refused"))
}

func TestUniqueSavedInTurn(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	store := &fakeStore{}
	v := dataguard.NewValidator(nil, dataguard.WithObjectStore(store))
	rules := []dataguard.Rule{&dataguard.UniqueRule{RuleBase: base("two", "name"), MaxInstances: 2}}

	// each instance is validated before it is saved
	want := []int{0, 0, 1}
	for i, id := range []string{"1", "2", "3"} {
		o := site(id, map[string]any{"name": "AMS"})
		got := v.Validate(ctx, o, rules)
		if len(got) != want[i] {
			t.Errorf("instance %s: wanted %d violations, got %v", id, want[i], got)
		}
		if len(got) == 0 {
			store.objects = append(store.objects, o)
		}
	}
	is.Equal(len(store.objects), 2)

	// saving a stored instance again does not count it twice
	is.Equal(len(v.Validate(ctx, store.objects[1], rules)), 0)
}

func TestValidateAggregates(t *testing.T) {
	is := is.New(t)

	disabled := &dataguard.RequiredRule{RuleBase: base("disabled", "name")}
	disabled.Enabled = false

	rules := []dataguard.Rule{
		&dataguard.RegexRule{RuleBase: base("regex", "name"), Pattern: "^AMS"},
		&dataguard.RequiredRule{RuleBase: base("required", "description")},
		&dataguard.MinMaxRule{RuleBase: base("minmax", "asn"), Min: dataguard.Float64(5)},
		disabled,
	}
	obj := site("1", map[string]any{"name": "", "asn": 1})

	v := dataguard.NewValidator(nil)
	got := v.Validate(context.Background(), obj, rules)
	is.Equal(len(got), 3)

	reversed := []dataguard.Rule{rules[3], rules[2], rules[1], rules[0]}
	again := v.Validate(context.Background(), obj, reversed)
	is.Equal(len(again), 3)

	seen := map[string]bool{}
	for _, x := range got {
		seen[x.String()] = true
	}
	for _, x := range again {
		is.True(seen[x.String()])
	}
}

func TestClean(t *testing.T) {
	is := is.New(t)

	rs := dataguard.NewRuleSet(newSchemas())
	is.NoErr(rs.Add(
		&dataguard.RequiredRule{RuleBase: base("required description", "description")},
		&dataguard.RegexRule{RuleBase: base("name prefix", "name"), Pattern: "AMS"},
	))
	v := dataguard.NewValidator(rs)
	ctx := context.Background()

	err := v.Clean(ctx, site("1", map[string]any{"name": "LHR"}))
	var fe *dataguard.FieldError
	is.True(errors.As(err, &fe))
	is.Equal(fe.Fields["description"], []string{"This field cannot be blank."})
	is.Equal(fe.Fields["name"], []string{"Value does not conform to regex: AMS"})

	is.NoErr(v.Clean(ctx, site("1", map[string]any{"name": "AMS-1", "description": "ok"})))

	// other entity types have no rules
	is.NoErr(v.Clean(ctx, dataguard.NewObject("dcim.device", "1", nil)))
}
