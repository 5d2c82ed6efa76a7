package dataguard

import "errors"

// Evaluator is the interface implemented by types that can compile and
// evaluate the boolean assertions used by externally defined checks.
type Evaluator interface {
	// Compile pre-processes the expression against the schema of an entity
	// type, returning a compiled version. Every field of the schema is in
	// scope under its own name, and the whole field map is available as
	// object. The compiled version is later handed back to Evaluate.
	Compile(expr string, s Schema) (any, error)

	// Evaluate runs a compiled expression against the object.
	Evaluate(program any, obj *Object) (Value, error)
}

// Value is the result of evaluating an expression.
type Value struct {
	// The value returned by the evaluator
	Val any

	// The type of the value
	Type Type
}

// Bool returns the value as a bool, and false if the value is not a bool.
func (v Value) Bool() (bool, bool) {
	b, ok := v.Val.(bool)
	return b, ok
}

// Templater renders a templated regular expression with the object in scope.
type Templater interface {
	Render(tmpl string, obj *Object) (string, error)
}

// ErrUnexpectedReturnType is returned by an evaluator when an expression does
// not produce a boolean.
var ErrUnexpectedReturnType = errors.New("unexpected return type")
