package source

import (
	"context"
	"fmt"

	"github.com/ezachrisen/dataguard"
)

// ExprCheck is a compliance check made of compiled assertions.
type ExprCheck struct {
	dataguard.BaseCheck

	// Name of the source that defined the check
	Source string

	// Language the assertions are written in
	Language string

	evaluator  dataguard.Evaluator
	assertions []assertion

	// Set when the entity type did not resolve at load time
	unresolved *dataguard.ConfigError
}

// Unresolved returns the configuration error of a check whose entity type
// did not resolve when it was loaded, or nil.
func (c *ExprCheck) Unresolved() *dataguard.ConfigError {
	return c.unresolved
}

type assertion struct {
	attribute string
	expr      string
	message   string
	program   any
}

// Audit evaluates every assertion against obj. Failed assertions on an
// attribute are returned as a *dataguard.ComplianceError; when only
// whole-object assertions fail, a *dataguard.AuditError is returned instead.
// An assertion that cannot be evaluated counts as failed. A check whose
// entity type did not resolve returns its *dataguard.ConfigError.
func (c *ExprCheck) Audit(ctx context.Context, obj *dataguard.Object) error {
	if c.unresolved != nil {
		return c.unresolved
	}
	ce := dataguard.NewComplianceError()
	var whole []string

	for _, a := range c.assertions {
		if err := ctx.Err(); err != nil {
			return err
		}
		msg, ok := c.evaluate(a, obj)
		if ok {
			continue
		}
		if a.attribute == dataguard.AllFields {
			whole = append(whole, msg)
			continue
		}
		ce.Add(a.attribute, msg)
	}

	if len(ce.Fields) > 0 {
		for _, m := range whole {
			ce.Add(dataguard.AllFields, m)
		}
		return ce
	}
	if len(whole) > 0 {
		return dataguard.NewAuditError(whole...)
	}
	return nil
}

func (c *ExprCheck) evaluate(a assertion, obj *dataguard.Object) (string, bool) {
	v, err := c.evaluator.Evaluate(a.program, obj)
	if err != nil {
		return fmt.Sprintf("Unable to evaluate %s: %v", a.expr, err), false
	}
	if b, _ := v.Bool(); b {
		return "", true
	}
	if a.message != "" {
		return a.message, false
	}
	return fmt.Sprintf("Assertion failed: %s", a.expr), false
}

// Assertions returns the number of assertions in the check.
func (c *ExprCheck) Assertions() int {
	return len(c.assertions)
}
