// Package render provides the dataguard Templater used by templated regular
// expression rules, backed by gobuffalo/plush.
//
// The object being validated is in scope as object (its field map), with its
// identifier and entity type as object_id and object_type. A rule that
// requires the description to start with the first three characters of the
// name looks like this:
//
//	<%= slice(object["name"], 0, 3) %>.*
//
// String field values, object_id and object_type are inserted as they are;
// plush does not HTML escape them. The helpers slice, upper and lower return
// their output unescaped too.
package render

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/ezachrisen/dataguard"
	"github.com/gobuffalo/plush/v4"
)

// Plush renders templates with plush.
type Plush struct{}

// NewPlush returns a plush templater.
func NewPlush() *Plush {
	return &Plush{}
}

// Render renders tmpl with obj in scope.
func (p *Plush) Render(tmpl string, obj *dataguard.Object) (string, error) {
	if obj == nil {
		return "", fmt.Errorf("render: nil object")
	}
	fields := make(map[string]any, len(obj.Fields))
	for k, v := range obj.Fields {
		if str, ok := v.(string); ok {
			v = template.HTML(str)
		}
		fields[k] = v
	}

	ctx := plush.NewContext()
	ctx.Set("object", fields)
	ctx.Set("object_id", template.HTML(obj.ID))
	ctx.Set("object_type", template.HTML(obj.Type))
	ctx.Set("slice", slice)
	ctx.Set("upper", upper)
	ctx.Set("lower", lower)

	s, err := plush.Render(tmpl, ctx)
	if err != nil {
		return "", fmt.Errorf("rendering template for %s: %w", obj, err)
	}
	return s, nil
}

// slice returns the characters of v from i up to j. Negative indexes count
// from the end and out of range indexes are clamped.
func slice(v any, i, j int) template.HTML {
	r := []rune(text(v))
	n := len(r)
	i, j = clamp(i, n), clamp(j, n)
	if i >= j {
		return ""
	}
	return template.HTML(string(r[i:j]))
}

func clamp(i, n int) int {
	if i < 0 {
		i += n
	}
	if i < 0 {
		return 0
	}
	if i > n {
		return n
	}
	return i
}

func upper(v any) template.HTML {
	return template.HTML(strings.ToUpper(text(v)))
}

func lower(v any) template.HTML {
	return template.HTML(strings.ToLower(text(v)))
}

func text(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case template.HTML:
		return string(x)
	}
	return fmt.Sprint(v)
}
