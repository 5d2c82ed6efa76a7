package cel

import (
	"fmt"

	"github.com/ezachrisen/dataguard"
	celgo "github.com/google/cel-go/cel"
)

// Evaluator compiles and evaluates CEL assertions.
type Evaluator struct {
	// Additional environment options, applied after the schema declarations
	envOpts []celgo.EnvOption
}

type EvaluatorOption func(e *Evaluator)

// WithEnvOptions adds CEL environment options, such as custom functions, to
// every environment the evaluator creates.
func WithEnvOptions(opts ...celgo.EnvOption) EvaluatorOption {
	return func(e *Evaluator) {
		e.envOpts = append(e.envOpts, opts...)
	}
}

// NewEvaluator returns a CEL evaluator.
func NewEvaluator(opts ...EvaluatorOption) *Evaluator {
	e := Evaluator{}
	for _, opt := range opts {
		opt(&e)
	}
	return &e
}

// program is the compiled form of an expression, handed back to Evaluate.
type program struct {
	expr   string
	schema dataguard.Schema
	prg    celgo.Program
}

// Compile type checks the expression against the schema and returns a
// program ready for evaluation. Each call creates a new environment, so
// nothing declared for one schema is visible to another.
func (e *Evaluator) Compile(expr string, s dataguard.Schema) (any, error) {
	opts, err := convertSchemaToDeclarations(s)
	if err != nil {
		return nil, err
	}
	opts = append(opts, e.envOpts...)

	env, err := celgo.NewEnv(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating CEL environment for %s: %w", s.ID, err)
	}

	ast, iss := env.Compile(expr)
	if iss.Err() != nil {
		return nil, fmt.Errorf("compiling %q: %w", expr, iss.Err())
	}

	out := ast.OutputType()
	if !out.IsExactType(celgo.BoolType) && !out.IsExactType(celgo.DynType) {
		return nil, fmt.Errorf("%w: %q produces %s, wanted bool", dataguard.ErrUnexpectedReturnType, expr, out)
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("generating program for %q: %w", expr, err)
	}

	return &program{expr: expr, schema: s, prg: prg}, nil
}

// Evaluate runs a program returned by Compile against the object.
func (e *Evaluator) Evaluate(p any, obj *dataguard.Object) (dataguard.Value, error) {
	prog, ok := p.(*program)
	if !ok || prog == nil {
		return dataguard.Value{}, fmt.Errorf("cel: program of type %T was not compiled by this evaluator", p)
	}

	data, err := activation(prog.schema, obj)
	if err != nil {
		return dataguard.Value{}, err
	}

	out, _, err := prog.prg.Eval(data)
	if err != nil {
		return dataguard.Value{}, fmt.Errorf("evaluating %q: %w", prog.expr, err)
	}

	b, ok := out.Value().(bool)
	if !ok {
		return dataguard.Value{}, fmt.Errorf("%w: %q returned %v (%T)", dataguard.ErrUnexpectedReturnType, prog.expr, out.Value(), out.Value())
	}
	return dataguard.Value{Val: b, Type: dataguard.Bool{}}, nil
}
