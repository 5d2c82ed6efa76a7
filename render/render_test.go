package render_test

import (
	"testing"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/render"
	"github.com/matryer/is"
)

func TestRender(t *testing.T) {

	obj := dataguard.NewObject("dcim.site", "42", map[string]any{"name": "AMS-195", "owner": "R&D <lab>", "asn": 65000})

	cases := map[string]struct {
		tmpl      string
		want      string
		wantError bool
	}{
		"plain":     {tmpl: `^AMS.*$`, want: `^AMS.*$`},
		"prefix":    {tmpl: `<%= slice(object["name"], 0, 3) %>.*`, want: `AMS.*`},
		"negative":  {tmpl: `<%= slice(object["name"], -3, 100) %>`, want: `195`},
		"lower":     {tmpl: `(?i)<%= lower(object["name"]) %>`, want: `(?i)ams-195`},
		"id":        {tmpl: `<%= object_type %>/<%= object_id %>`, want: `dcim.site/42`},
		"unescaped": {tmpl: `^<%= object["owner"] %>$`, want: `^R&D <lab>$`},
		"sliced":    {tmpl: `<%= slice(object["owner"], 0, 3) %>`, want: `R&D`},
		"number":    {tmpl: `<%= object["asn"] %>`, want: `65000`},
		"invalid regex still renders": {
			tmpl: `[<%= slice(object["name"], 0, 3) %>.*`,
			want: `[AMS.*`,
		},
		"broken template": {tmpl: `<%= slice(object["name"], 0, %>`, wantError: true},
		"unknown helper":  {tmpl: `<%= exec("ls") %>`, wantError: true},
	}

	p := render.NewPlush()
	for key, c := range cases {
		got, err := p.Render(c.tmpl, obj)
		if c.wantError {
			if err == nil {
				t.Errorf("case %s: wanted error, got %q", key, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("case %s: didn't want error, got: %v", key, err)
			continue
		}
		if got != c.want {
			t.Errorf("case %s: wanted %q, got %q", key, c.want, got)
		}
	}
}

func TestRenderNilObject(t *testing.T) {
	is := is.New(t)
	_, err := render.NewPlush().Render("x", nil)
	is.True(err != nil)
}

// The plush templater plugs into the validator for templated regex rules.
func TestTemplatedRegex(t *testing.T) {
	is := is.New(t)

	rule := &dataguard.RegexRule{
		RuleBase:  dataguard.RuleBase{Name: "prefix", EntityType: "dcim.site", Field: "description", Enabled: true},
		Pattern:   `<%= slice(object["name"], 0, 3) %>.*`,
		Templated: true,
	}
	v := dataguard.NewValidator(nil, dataguard.WithTemplater(render.NewPlush()))

	ok := dataguard.NewObject("dcim.site", "1", map[string]any{"name": "AMS-195", "description": "AMS-195 is really cool"})
	is.Equal(len(v.Validate(t.Context(), ok, []dataguard.Rule{rule})), 0)

	bad := dataguard.NewObject("dcim.site", "1", map[string]any{"name": "AMS-195", "description": "I don't like AMS-195"})
	got := v.Validate(t.Context(), bad, []dataguard.Rule{rule})
	is.Equal(len(got), 1)
	is.Equal(got[0].Message, "Value does not conform to regex: AMS.*")
}

func TestTemplatedRegexWithMarkup(t *testing.T) {
	is := is.New(t)

	rule := &dataguard.RegexRule{
		RuleBase:  dataguard.RuleBase{Name: "owner", EntityType: "dcim.site", Field: "description", Enabled: true},
		Pattern:   `<%= object["name"] %> `,
		Templated: true,
	}
	v := dataguard.NewValidator(nil, dataguard.WithTemplater(render.NewPlush()))

	obj := dataguard.NewObject("dcim.site", "1", map[string]any{"name": "A&B", "description": "A&B site"})
	is.Equal(len(v.Validate(t.Context(), obj, []dataguard.Rule{rule})), 0)
}
