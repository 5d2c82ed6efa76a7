// Package exprlang provides an implementation of the dataguard Evaluator
// interface backed by expr-lang/expr.
//
// Each field of the audited entity type is in scope under its own name, and
// the raw field map is available as object:
//
//	name startsWith "AMS" && asn >= 64512
//
// Fields the object does not carry are set to the zero value of their type.
package exprlang

import (
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/ezachrisen/dataguard"
)

// objectVar names the variable holding the raw field map.
const objectVar = "object"

// Evaluator compiles and evaluates expr assertions.
type Evaluator struct{}

// NewEvaluator returns an expr evaluator.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

type program struct {
	expr   string
	schema dataguard.Schema
	prg    *vm.Program
}

// Compile type checks the expression against the schema and returns a
// program ready for evaluation.
func (e *Evaluator) Compile(expression string, s dataguard.Schema) (any, error) {
	env := map[string]any{objectVar: map[string]any{}}
	for _, f := range s.Fields {
		if f.Name == objectVar {
			return nil, fmt.Errorf("field %s in schema %s: name is reserved", f.Name, s.ID)
		}
		env[f.Name] = f.Type.Zero()
	}

	prg, err := expr.Compile(expression, expr.Env(env), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression %q: %w", expression, err)
	}
	return &program{expr: expression, schema: s, prg: prg}, nil
}

// Evaluate runs a program returned by Compile against the object.
func (e *Evaluator) Evaluate(p any, obj *dataguard.Object) (dataguard.Value, error) {
	prog, ok := p.(*program)
	if !ok || prog == nil {
		return dataguard.Value{}, fmt.Errorf("exprlang: program of type %T was not compiled by this evaluator", p)
	}

	fields := map[string]any{}
	if obj != nil {
		for k, v := range obj.Fields {
			fields[k] = v
		}
	}
	env := map[string]any{objectVar: fields}
	for _, f := range prog.schema.Fields {
		v := fields[f.Name]
		if v == nil {
			v = f.Type.Zero()
		}
		env[f.Name] = v
	}

	result, err := expr.Run(prog.prg, env)
	if err != nil {
		return dataguard.Value{}, fmt.Errorf("evaluate expression %q: %w", prog.expr, err)
	}

	b, ok := result.(bool)
	if !ok {
		return dataguard.Value{}, fmt.Errorf("%w: %q returned %T", dataguard.ErrUnexpectedReturnType, prog.expr, result)
	}
	return dataguard.Value{Val: b, Type: dataguard.Bool{}}, nil
}
