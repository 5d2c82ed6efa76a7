package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/ezachrisen/dataguard"
)

// Runner executes checks and reconciles their outcome into a ResultStore.
type Runner struct {
	store     ResultStore
	objects   dataguard.ObjectStore
	schemas   dataguard.SchemaProvider
	discovery *Discovery
	logger    *slog.Logger
	metrics   *Metrics
	clock     func() time.Time
}

type RunnerOption func(r *Runner)

// WithDiscovery sets where Run finds its checks.
func WithDiscovery(d *Discovery) RunnerOption {
	return func(r *Runner) {
		r.discovery = d
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) {
		r.logger = l
	}
}

// WithMetrics sets the metrics the runner records to.
func WithMetrics(m *Metrics) RunnerOption {
	return func(r *Runner) {
		r.metrics = m
	}
}

// WithClock sets the source of evaluation timestamps. Default: time.Now
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) {
		r.clock = now
	}
}

// NewRunner returns a runner recording results in store for objects read
// from objects, whose entity types are resolved through schemas.
func NewRunner(store ResultStore, objects dataguard.ObjectStore, schemas dataguard.SchemaProvider, opts ...RunnerOption) *Runner {
	r := &Runner{
		store:   store,
		objects: objects,
		schemas: schemas,
		logger:  slog.Default(),
		clock:   time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// outcome of auditing one object
type outcome int

const (
	passed outcome = iota
	failed
	errored
)

func (o outcome) String() string {
	switch o {
	case passed:
		return "pass"
	case failed:
		return "fail"
	default:
		return "error"
	}
}

// Check audits obj with c and reconciles the outcome into the result store:
//
//   - pass: the whole-object result is marked valid, and so is every
//     attribute result recorded for the object before.
//   - *dataguard.ComplianceError: each reported attribute is marked invalid
//     with its messages, attributes recorded before but not reported now are
//     marked valid, and the whole-object result is marked invalid.
//   - *dataguard.AuditError: the messages are recorded on the whole-object
//     result only; attribute results are left alone.
//   - any other error: the whole-object result is marked invalid with the
//     error text.
//
// The check's error is returned only when enforce is true. Errors from the
// result store are always returned.
func (r *Runner) Check(ctx context.Context, c dataguard.Check, obj *dataguard.Object, enforce bool) error {
	_, checkErr, err := r.check(ctx, c, obj)
	if err != nil {
		return err
	}
	if enforce {
		return checkErr
	}
	return nil
}

func (r *Runner) check(ctx context.Context, c dataguard.Check, obj *dataguard.Object) (outcome, error, error) {
	now := r.clock()
	base := Result{
		CheckName:     c.Name(),
		EntityType:    obj.Type,
		ObjectID:      obj.ID,
		LastEvaluated: now,
	}

	checkErr := c.Audit(ctx, obj)
	if checkErr == nil {
		r.metrics.checkRun(c.Name(), passed.String())
		if err := r.upsert(ctx, base, WholeObject, nil, true, ""); err != nil {
			return passed, nil, err
		}
		return passed, nil, r.sweep(ctx, base, obj, nil)
	}

	if ce, ok := dataguard.AsComplianceError(checkErr); ok {
		r.metrics.checkRun(c.Name(), failed.String())
		touched := map[string]bool{}
		var whole []string
		for _, attr := range ce.Attributes() {
			msgs := ce.Fields[attr]
			if attr == WholeObject {
				whole = append(whole, msgs...)
				continue
			}
			touched[attr] = true
			if err := r.upsert(ctx, base, attr, obj.Get(attr), false, strings.Join(msgs, " AND ")); err != nil {
				return failed, checkErr, err
			}
		}
		if err := r.sweep(ctx, base, obj, touched); err != nil {
			return failed, checkErr, err
		}
		msg := summarize(touched, whole)
		return failed, checkErr, r.upsert(ctx, base, WholeObject, nil, false, msg)
	}

	if ae, ok := dataguard.AsAuditError(checkErr); ok {
		r.metrics.checkRun(c.Name(), failed.String())
		return failed, checkErr, r.upsert(ctx, base, WholeObject, nil, false, strings.Join(ae.Messages, " AND "))
	}

	r.metrics.checkRun(c.Name(), errored.String())
	return errored, checkErr, r.upsert(ctx, base, WholeObject, nil, false, checkErr.Error())
}

func (r *Runner) upsert(ctx context.Context, base Result, attr string, value any, valid bool, msg string) error {
	res := base
	res.ID = NewID()
	res.Attribute = attr
	res.AttributeValue = valueString(value)
	res.Valid = valid
	res.Message = msg
	if err := r.store.Upsert(ctx, res); err != nil {
		return fmt.Errorf("recording result %s: %w", res.Key(), err)
	}
	r.metrics.resultWritten(valid)
	return nil
}

// sweep marks valid every attribute result recorded for the object that is
// not in touched.
func (r *Runner) sweep(ctx context.Context, base Result, obj *dataguard.Object, touched map[string]bool) error {
	prior, err := r.store.ForObject(ctx, base.CheckName, base.EntityType, base.ObjectID)
	if err != nil {
		return fmt.Errorf("reading results for %s: %w", obj, err)
	}
	for _, p := range prior {
		if p.Attribute == WholeObject || touched[p.Attribute] {
			continue
		}
		if err := r.upsert(ctx, base, p.Attribute, obj.Get(p.Attribute), true, ""); err != nil {
			return err
		}
	}
	return nil
}

func summarize(touched map[string]bool, whole []string) string {
	attrs := make([]string, 0, len(touched))
	for a := range touched {
		attrs = append(attrs, a)
	}
	slices.Sort(attrs)
	parts := []string{}
	if len(attrs) > 0 {
		parts = append(parts, "Failed attributes: "+strings.Join(attrs, ", "))
	}
	parts = append(parts, whole...)
	return strings.Join(parts, " AND ")
}

// JobOptions selects what Run executes.
type JobOptions struct {
	// Names of the checks to run. Empty means every discovered check.
	Checks []string

	// Never return enforced failures, even for checks that enforce.
	OverrideEnforce bool
}

// Run executes the selected checks against every object of their entity
// types. A failure on one object is recorded and the run continues, unless
// the check enforces and opts.OverrideEnforce is not set: then the failure is
// recorded, the rest of that check's objects are skipped and the check error
// is returned. Checks whose entity type cannot be resolved are skipped and
// reported as *dataguard.ConfigError values. Errors from every check are
// joined in the returned error; the summary is returned in every case.
func (r *Runner) Run(ctx context.Context, opts JobOptions) (*Summary, error) {
	sum := &Summary{Started: r.clock()}

	var checks []dataguard.Check
	if r.discovery != nil {
		checks = r.discovery.AllRules(ctx)
	}

	if len(opts.Checks) > 0 {
		found := map[string]bool{}
		selected := checks[:0:0]
		for _, c := range checks {
			if slices.Contains(opts.Checks, c.Name()) {
				selected = append(selected, c)
				found[c.Name()] = true
			}
		}
		for _, name := range opts.Checks {
			if !found[name] {
				r.logger.Warn("requested check not found", "check", name)
				sum.Unknown = append(sum.Unknown, name)
			}
		}
		checks = selected
	}

	var errs []error
	for _, c := range checks {
		if err := ctx.Err(); err != nil {
			sum.Finished = r.clock()
			return sum, err
		}
		cs, err := r.runCheck(ctx, c, opts)
		sum.Checks = append(sum.Checks, cs)
		if err != nil {
			errs = append(errs, err)
		}
	}

	sum.Finished = r.clock()
	return sum, errors.Join(errs...)
}

func (r *Runner) runCheck(ctx context.Context, c dataguard.Check, opts JobOptions) (CheckSummary, error) {
	cs := CheckSummary{Check: c.Name(), EntityType: c.EntityType()}

	if _, err := r.schemas.Lookup(c.EntityType()); err != nil {
		cerr := &dataguard.ConfigError{
			Subject: c.Name(),
			Fields:  map[string]string{"entity_type": fmt.Sprintf("%s does not resolve to a known entity type.", c.EntityType())},
			Err:     err,
		}
		r.logger.Error("skipping check", "check", c.Name(), "error", cerr)
		cs.Err = cerr
		return cs, cerr
	}

	objs, err := r.objects.All(ctx, c.EntityType())
	if err != nil {
		err = fmt.Errorf("listing %s for %s: %w", c.EntityType(), c.Name(), err)
		r.logger.Error("skipping check", "check", c.Name(), "error", err)
		cs.Err = err
		return cs, err
	}

	r.logger.Info("running check", "check", c.Name(), "entity_type", c.EntityType(), "objects", len(objs))

	enforce := c.Enforce() && !opts.OverrideEnforce
	for _, obj := range objs {
		if err := ctx.Err(); err != nil {
			return cs, err
		}
		cs.Objects++
		o, checkErr, err := r.check(ctx, c, obj)
		switch {
		case err != nil:
			cs.Errors++
			r.logger.Error("recording results failed", "check", c.Name(), "object", obj.String(), "error", err)
			continue
		case o == passed:
			cs.Passed++
		case o == failed:
			cs.Failed++
		default:
			cs.Errors++
		}
		if checkErr != nil && enforce {
			err := fmt.Errorf("enforced check %s failed on %s: %w", c.Name(), obj, checkErr)
			r.logger.Error("aborting check", "check", c.Name(), "object", obj.String(), "error", checkErr)
			cs.Err = err
			return cs, err
		}
	}
	return cs, nil
}

// CleanupOrphans deletes the results whose object no longer exists, or whose
// entity type no longer resolves, and returns how many were deleted.
func (r *Runner) CleanupOrphans(ctx context.Context) (int, error) {
	results, err := r.store.All(ctx)
	if err != nil {
		return 0, fmt.Errorf("listing results: %w", err)
	}

	type ref struct{ entityType, id string }
	exists := map[ref]bool{}
	deleted := 0

	for _, res := range results {
		k := ref{res.EntityType, res.ObjectID}
		ok, seen := exists[k]
		if !seen {
			ok, err = r.resolves(ctx, res.EntityType, res.ObjectID)
			if err != nil {
				return deleted, err
			}
			exists[k] = ok
		}
		if ok {
			continue
		}
		if err := r.store.Delete(ctx, res.Key()); err != nil && !errors.Is(err, ErrResultNotFound) {
			return deleted, fmt.Errorf("deleting result %s: %w", res.Key(), err)
		}
		deleted++
	}

	r.metrics.orphansDeleted(deleted)
	r.logger.Info("removed orphaned results", "deleted", deleted, "checked", len(results))
	return deleted, nil
}

func (r *Runner) resolves(ctx context.Context, entityType, id string) (bool, error) {
	if _, err := r.schemas.Lookup(entityType); err != nil {
		return false, nil
	}
	_, err := r.objects.Get(ctx, entityType, id)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, dataguard.ErrObjectNotFound):
		return false, nil
	default:
		return false, fmt.Errorf("resolving %s(%s): %w", entityType, id, err)
	}
}
