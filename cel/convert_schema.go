package cel

// This file contains functions that convert
//   FROM a dataguard.Schema
//   TO CEL declarations
//
// The declarations are passed to the CEL compiler to validate the expression
// and perform type checking on it.

import (
	"fmt"

	"github.com/ezachrisen/dataguard"
	celgo "github.com/google/cel-go/cel"
)

// objectVar names the variable holding the raw field map.
const objectVar = "object"

// convertSchemaToDeclarations converts a schema to a list of CEL "EnvOption".
func convertSchemaToDeclarations(s dataguard.Schema) ([]celgo.EnvOption, error) {
	opts := []celgo.EnvOption{
		celgo.Variable(objectVar, celgo.MapType(celgo.StringType, celgo.DynType)),
	}

	for _, f := range s.Fields {
		if f.Name == objectVar {
			return nil, fmt.Errorf("field %s in schema %s: name is reserved", f.Name, s.ID)
		}
		typ, err := celType(f.Type)
		if err != nil {
			return nil, fmt.Errorf("converting field %s in schema %s: %w", f.Name, s.ID, err)
		}
		opts = append(opts, celgo.Variable(f.Name, typ))
	}

	opts = append(opts, blankFunction())
	return opts, nil
}

// celType converts a dataguard type to the type CEL uses in its declarations.
func celType(t dataguard.Type) (*celgo.Type, error) {
	switch v := t.(type) {
	case dataguard.String, dataguard.UUID:
		return celgo.StringType, nil
	case dataguard.Int:
		return celgo.IntType, nil
	case dataguard.Float, dataguard.Decimal:
		return celgo.DoubleType, nil
	case dataguard.Bool:
		return celgo.BoolType, nil
	case dataguard.Duration:
		return celgo.DurationType, nil
	case dataguard.Timestamp:
		return celgo.TimestampType, nil
	case dataguard.JSON:
		return celgo.MapType(celgo.StringType, celgo.DynType), nil
	case dataguard.Any:
		return celgo.DynType, nil
	case dataguard.List:
		val, err := celType(v.ValueType)
		if err != nil {
			return nil, fmt.Errorf("setting value of %v list: %w", v.ValueType, err)
		}
		return celgo.ListType(val), nil
	case dataguard.Map:
		key, err := celType(v.KeyType)
		if err != nil {
			return nil, fmt.Errorf("setting key of %v map: %w", v.KeyType, err)
		}
		val, err := celType(v.ValueType)
		if err != nil {
			return nil, fmt.Errorf("setting value of %v map: %w", v.ValueType, err)
		}
		return celgo.MapType(key, val), nil
	default:
		return nil, fmt.Errorf("unknown type %v", t)
	}
}
