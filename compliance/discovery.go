package compliance

import (
	"context"
	"log/slog"
	"sort"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/source"
)

// Discovery finds the checks available to a run: the checks in the registry
// followed by the checks loaded from every source that advertises
// compliance rules. A check defined in more than one place is returned once
// per definition.
type Discovery struct {
	Registry *Registry
	Sources  []source.Source
	Loader   *source.Loader
	Logger   *slog.Logger
	Metrics  *Metrics
}

// AllRules returns every discovered check. A source that fails to load is
// logged and contributes no checks; discovery itself never fails.
func (d *Discovery) AllRules(ctx context.Context) []dataguard.Check {
	out := []dataguard.Check{}
	if d.Registry != nil {
		out = append(out, d.Registry.All()...)
	}
	if d.Loader == nil {
		return out
	}
	for _, src := range d.Sources {
		if !source.Provides(src, source.ContentComplianceRules) {
			continue
		}
		m, err := d.Loader.Load(ctx, src)
		if err != nil {
			d.logger().Error("skipping source", "source", src.Name(), "error", err)
			d.Metrics.sourceFailed(src.Name())
			continue
		}
		for _, c := range m.Checks {
			if dataguard.IsCheck(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// RulesFor returns the discovered checks for the entity type.
func (d *Discovery) RulesFor(ctx context.Context, entityType string) []dataguard.Check {
	out := []dataguard.Check{}
	for _, c := range d.AllRules(ctx) {
		if c.EntityType() == entityType {
			out = append(out, c)
		}
	}
	return out
}

// Names returns the sorted names of the discovered checks, for selecting
// checks to run.
func (d *Discovery) Names(ctx context.Context) []string {
	checks := d.AllRules(ctx)
	names := make([]string, 0, len(checks))
	for _, c := range checks {
		names = append(names, c.Name())
	}
	sort.Strings(names)
	return names
}

func (d *Discovery) logger() *slog.Logger {
	if d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
