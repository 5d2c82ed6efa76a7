package dataguard_test

import (
	"context"
	"fmt"
	"strings"

	"github.com/ezachrisen/dataguard"
)

// siteSchema returns the schema used throughout the tests.
func siteSchema() dataguard.Schema {
	return dataguard.Schema{
		ID:   "dcim.site",
		Name: "Site",
		Fields: []dataguard.Field{
			{Name: "id", Type: dataguard.UUID{}, Identity: true},
			{Name: "name", Type: dataguard.String{}, Editable: true},
			{Name: "description", Type: dataguard.String{}, Editable: true},
			{Name: "asn", Type: dataguard.Int{}, Editable: true},
			{Name: "latitude", Type: dataguard.Decimal{}, Editable: true},
			{Name: "active", Type: dataguard.Bool{}, Editable: true},
			{Name: "tags", Type: dataguard.List{ValueType: dataguard.String{}}, Editable: true},
			{Name: "config", Type: dataguard.JSON{}, Editable: true},
			{Name: "status", Type: dataguard.String{}, Editable: true, Relation: true},
			{Name: "created", Type: dataguard.Timestamp{}, Editable: true, Auto: true},
			{Name: "slug", Type: dataguard.String{}},
			{Name: "_custom_field_data", Type: dataguard.JSON{}, Editable: true},
		},
	}
}

func newSchemas() *dataguard.Schemas {
	s, err := dataguard.NewSchemas(siteSchema())
	if err != nil {
		panic(err)
	}
	return s
}

func site(id string, fields map[string]any) *dataguard.Object {
	return dataguard.NewObject("dcim.site", id, fields)
}

// fakeStore is an ObjectStore over a fixed list of objects.
type fakeStore struct {
	objects []*dataguard.Object
	err     error
}

func (f *fakeStore) All(_ context.Context, entityType string) ([]*dataguard.Object, error) {
	var out []*dataguard.Object
	for _, o := range f.objects {
		if o.Type == entityType {
			out = append(out, o)
		}
	}
	return out, f.err
}

func (f *fakeStore) Get(_ context.Context, entityType, id string) (*dataguard.Object, error) {
	for _, o := range f.objects {
		if o.Type == entityType && o.ID == id {
			return o, nil
		}
	}
	return nil, dataguard.ErrObjectNotFound
}

func (f *fakeStore) CountMatching(_ context.Context, entityType, field string, value any, excludeID string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	n := 0
	for _, o := range f.objects {
		if o.Type == entityType && o.ID != excludeID && fmt.Sprint(o.Get(field)) == fmt.Sprint(value) {
			n++
		}
	}
	return n, nil
}

// prefixTemplater replaces "{{ prefix }}" with the first three characters of
// the object's name.
type prefixTemplater struct{}

func (prefixTemplater) Render(tmpl string, obj *dataguard.Object) (string, error) {
	name, _ := obj.Get("name").(string)
	if !strings.Contains(tmpl, "{{ prefix }}") {
		return tmpl, nil
	}
	if len(name) < 3 {
		return "", fmt.Errorf("name %q is too short", name)
	}
	return strings.ReplaceAll(tmpl, "{{ prefix }}", name[:3]), nil
}
