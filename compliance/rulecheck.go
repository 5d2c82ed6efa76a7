package compliance

import (
	"context"

	"github.com/ezachrisen/dataguard"
	"github.com/markbates/inflect"
)

// RuleCheck runs the declarative rules for one entity type as a compliance
// check, so batch runs record rule violations as results.
type RuleCheck struct {
	dataguard.BaseCheck
	validator *dataguard.Validator
}

// NewRuleCheck returns the rule check for the entity type. Its name is
// derived from the entity type: dcim.site becomes DcimSiteRuleCheck.
func NewRuleCheck(v *dataguard.Validator, entityType string) (*RuleCheck, error) {
	app, model, err := dataguard.ParseEntityType(entityType)
	if err != nil {
		return nil, err
	}
	return &RuleCheck{
		BaseCheck: dataguard.BaseCheck{
			CheckName: inflect.Camelize(app) + inflect.Camelize(model) + "RuleCheck",
			Entity:    entityType,
		},
		validator: v,
	}, nil
}

// Audit validates obj against the enabled rules for the entity type.
func (c *RuleCheck) Audit(ctx context.Context, obj *dataguard.Object) error {
	rs := c.validator.Rules()
	if rs == nil {
		return nil
	}
	violations := c.validator.Validate(ctx, obj, rs.ForEntity(c.Entity))
	if len(violations) == 0 {
		return nil
	}
	ce := dataguard.NewComplianceError()
	for _, v := range violations {
		ce.Add(v.Field, v.Message)
	}
	return ce
}
