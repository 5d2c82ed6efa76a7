package compliance_test

import (
	"context"
	"time"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/compliance"
	"github.com/ezachrisen/dataguard/store/memstore"
)

// funcCheck is a check whose audit outcome is set by the test.
type funcCheck struct {
	dataguard.BaseCheck
	audit func(obj *dataguard.Object) error
}

func (c *funcCheck) Audit(_ context.Context, obj *dataguard.Object) error {
	return c.audit(obj)
}

func newCheck(name, entityType string, enforce bool, audit func(obj *dataguard.Object) error) *funcCheck {
	return &funcCheck{
		BaseCheck: dataguard.BaseCheck{CheckName: name, Entity: entityType, Enforced: enforce},
		audit:     audit,
	}
}

func siteSchema() dataguard.Schema {
	return dataguard.Schema{
		ID: "dcim.site",
		Fields: []dataguard.Field{
			{Name: "name", Type: dataguard.String{}, Editable: true},
			{Name: "description", Type: dataguard.String{}, Editable: true},
			{Name: "asn", Type: dataguard.Int{}, Editable: true},
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

// fixedClock returns a clock that advances one second per call.
func fixedClock() func() time.Time {
	t := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		t = t.Add(time.Second)
		return t
	}
}

type fixture struct {
	objects  *memstore.Objects
	results  *memstore.Results
	registry *compliance.Registry
	runner   *compliance.Runner
}

func newFixture(objs ...*dataguard.Object) *fixture {
	f := &fixture{
		objects:  memstore.NewObjects(objs...),
		results:  memstore.NewResults(),
		registry: compliance.NewRegistry(),
	}
	d := &compliance.Discovery{Registry: f.registry}
	f.runner = compliance.NewRunner(f.results, f.objects, newSchemas(),
		compliance.WithDiscovery(d), compliance.WithClock(fixedClock()))
	return f
}

// byAttribute returns the results a check recorded for an object, keyed by
// attribute.
func (f *fixture) byAttribute(check, id string) map[string]compliance.Result {
	rs, err := f.results.ForObject(context.Background(), check, "dcim.site", id)
	if err != nil {
		panic(err)
	}
	out := map[string]compliance.Result{}
	for _, r := range rs {
		out[r.Attribute] = r
	}
	return out
}
