package compliance

import (
	"context"
	"errors"

	"github.com/ezachrisen/dataguard"
)

// Hook is the save-path integration: it runs the declarative rules and the
// discovered checks for an object about to be saved and returns every
// blocking failure as one *dataguard.FieldError.
type Hook struct {
	Validator *dataguard.Validator
	Discovery *Discovery

	// Records check outcomes for saved objects. Objects without an ID are
	// audited without recording.
	Runner *Runner
}

// Clean returns nil when obj may be saved.
//
// Violations of the declarative rules always block. Checks block only when
// they enforce. Rule checks are skipped, since the validator has already
// applied the same rules.
func (h *Hook) Clean(ctx context.Context, obj *dataguard.Object) error {
	fe := &dataguard.FieldError{}

	if h.Validator != nil {
		if err := h.Validator.Clean(ctx, obj); err != nil {
			var x *dataguard.FieldError
			if !errors.As(err, &x) {
				return err
			}
			fe.Merge(x)
		}
	}

	if h.Discovery != nil {
		for _, c := range h.Discovery.RulesFor(ctx, obj.Type) {
			if _, ok := c.(*RuleCheck); ok {
				continue
			}
			err := h.audit(ctx, c, obj)
			if err == nil {
				continue
			}
			if ce, ok := dataguard.AsComplianceError(err); ok {
				for _, attr := range ce.Attributes() {
					for _, m := range ce.Fields[attr] {
						fe.Add(attr, m)
					}
				}
				continue
			}
			if ae, ok := dataguard.AsAuditError(err); ok {
				for _, m := range ae.Messages {
					fe.Add(dataguard.AllFields, m)
				}
				continue
			}
			fe.Add(dataguard.AllFields, err.Error())
		}
	}

	if fe.Empty() {
		return nil
	}
	return fe
}

func (h *Hook) audit(ctx context.Context, c dataguard.Check, obj *dataguard.Object) error {
	if h.Runner == nil || obj.ID == "" {
		err := c.Audit(ctx, obj)
		if !c.Enforce() {
			return nil
		}
		return err
	}
	return h.Runner.Check(ctx, c, obj, c.Enforce())
}
