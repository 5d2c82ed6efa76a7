package compliance_test

import (
	"context"
	"errors"
	"testing"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/compliance"
	"github.com/ezachrisen/dataguard/source"
	"github.com/matryer/is"
)

func TestHookClean(t *testing.T) {
	ctx := context.Background()

	rs := dataguard.NewRuleSet(newSchemas())
	if err := rs.Add(&dataguard.RequiredRule{RuleBase: dataguard.RuleBase{
		Name: "description-required", EntityType: "dcim.site", Field: "description", Enabled: true,
	}}); err != nil {
		t.Fatal(err)
	}
	v := dataguard.NewValidator(rs)

	cases := map[string]struct {
		obj  *dataguard.Object
		want map[string][]string
	}{
		"valid": {
			obj: site("1", map[string]any{"name": "AMS-1", "description": "Amsterdam", "asn": int64(65000)}),
		},
		"missing description": {
			obj: site("1", map[string]any{"name": "AMS-1", "asn": int64(65000)}),
			want: map[string][]string{
				"description": {"This field cannot be blank."},
			},
		},
		"enforced check fails": {
			obj: site("1", map[string]any{"name": "LHR-1", "asn": int64(65000)}),
			want: map[string][]string{
				"description": {"This field cannot be blank."},
				"name":        {"site names start with AMS"},
			},
		},
		"unsaved object": {
			obj: site("", map[string]any{"name": "LHR-1", "description": "London", "asn": int64(100)}),
			want: map[string][]string{
				"name": {"site names start with AMS"},
			},
		},
	}

	for k, c := range cases {
		f := newFixture()
		is.New(t).NoErr(f.registry.RegisterRuleChecks(v, "dcim.site"))
		h := &compliance.Hook{
			Validator: v,
			Discovery: &compliance.Discovery{
				Registry: f.registry,
				Loader:   source.NewLoader(newSchemas()),
				Sources:  []source.Source{source.NewDirSource("good", writeRules(t, rulesYAML))},
			},
			Runner: f.runner,
		}

		err := h.Clean(ctx, c.obj)
		if c.want == nil {
			if err != nil {
				t.Errorf("case %s: wanted no error, got %v", k, err)
			}
			continue
		}
		var fe *dataguard.FieldError
		if !errors.As(err, &fe) {
			t.Errorf("case %s: wanted *FieldError, got %v", k, err)
			continue
		}
		if len(fe.Fields) != len(c.want) {
			t.Errorf("case %s: wanted fields %v, got %v", k, c.want, fe.Fields)
			continue
		}
		for field, msgs := range c.want {
			if got := fe.Fields[field]; len(got) != len(msgs) || got[0] != msgs[0] {
				t.Errorf("case %s: field %s: wanted %v, got %v", k, field, msgs, got)
			}
		}
	}
}

func TestHookRecordsResults(t *testing.T) {
	is := is.New(t)
	ctx := context.Background()

	f := newFixture()
	is.NoErr(f.registry.Register(
		newCheck("Enforced", "dcim.site", true, func(*dataguard.Object) error {
			return dataguard.NewAuditError("site is decommissioned")
		}),
		newCheck("Advisory", "dcim.site", false, func(*dataguard.Object) error {
			return dataguard.NewComplianceError().Add("name", "too long")
		}),
	))
	h := &compliance.Hook{Discovery: &compliance.Discovery{Registry: f.registry}, Runner: f.runner}

	err := h.Clean(ctx, site("7", map[string]any{"name": "AMS-1"}))
	var fe *dataguard.FieldError
	is.True(errors.As(err, &fe))
	is.Equal(fe.Fields, map[string][]string{dataguard.AllFields: {"site is decommissioned"}})

	// both outcomes are recorded, enforced or not
	is.Equal(len(f.byAttribute("Enforced", "7")), 1)
	is.Equal(len(f.byAttribute("Advisory", "7")), 2)
}
