package config_test

import (
	"testing"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/config"
	"github.com/matryer/is"
)

const rulesYAML = `
rules:
  - kind: regex
    name: site-name-format
    entity_type: dcim.site
    field: name
    pattern: '[A-Z]{3}-\d+'
  - kind: min_max
    name: site-asn-range
    entity_type: dcim.site
    field: asn
    min: 64512
    max: 65534
    error_message: Use a private ASN.
  - kind: required
    name: site-name-required
    entity_type: dcim.site
    field: name
    enabled: false
  - kind: unique
    name: site-asn-unique
    entity_type: dcim.site
    field: asn
    max_instances: 2
`

func schemas(t *testing.T) *dataguard.Schemas {
	t.Helper()
	s, err := dataguard.NewSchemas(dataguard.Schema{
		ID: "dcim.site",
		Fields: []dataguard.Field{
			{Name: "name", Type: dataguard.String{}, Editable: true},
			{Name: "asn", Type: dataguard.Int{}, Editable: true},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestParseRules(t *testing.T) {
	is := is.New(t)

	rules, err := config.ParseRules([]byte(rulesYAML))
	is.NoErr(err)
	is.Equal(len(rules), 4)

	re, ok := rules[0].(*dataguard.RegexRule)
	is.True(ok)
	is.Equal(re.Pattern, `[A-Z]{3}-\d+`)
	is.True(re.Enabled)

	mm := rules[1].(*dataguard.MinMaxRule)
	is.Equal(*mm.Min, 64512.0)
	is.Equal(*mm.Max, 65534.0)
	is.Equal(mm.ErrorMessage, "Use a private ASN.")

	is.True(!rules[2].Base().Enabled)
	is.Equal(rules[3].(*dataguard.UniqueRule).Limit(), 2)
}

func TestLoadRules(t *testing.T) {
	is := is.New(t)

	rs := dataguard.NewRuleSet(schemas(t))
	is.NoErr(config.LoadRules(writeFile(t, "rules.yaml", rulesYAML), rs))
	is.Equal(rs.Len(), 4)
	is.Equal(len(rs.ForEntity("dcim.site")), 3)
}

func TestParseRulesInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown kind":     "rules:\n  - kind: length\n    name: a\n    entity_type: dcim.site\n    field: name\n",
		"no name":          "rules:\n  - kind: required\n    entity_type: dcim.site\n    field: name\n",
		"regex no pattern": "rules:\n  - kind: regex\n    name: a\n    entity_type: dcim.site\n    field: name\n",
		"unknown key":      "rules:\n  - kind: required\n    name: a\n    entity_type: dcim.site\n    field: name\n    colour: red\n",
		"not yaml":         "rules: [",
	}
	for k, body := range cases {
		if _, err := config.ParseRules([]byte(body)); err == nil {
			t.Errorf("case %s: wanted an error", k)
		}
	}
}

func TestLoadRulesSchemaMismatch(t *testing.T) {
	rs := dataguard.NewRuleSet(schemas(t))
	body := "rules:\n  - kind: min_max\n    name: a\n    entity_type: dcim.site\n    field: name\n    min: 1\n"
	err := config.LoadRules(writeFile(t, "rules.yaml", body), rs)
	if !dataguard.IsConfigError(err) {
		t.Errorf("wanted a config error, got %v", err)
	}
}
