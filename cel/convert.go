package cel

// This file contains functions that convert
//   FROM the field values of a dataguard.Object
//   TO the values CEL expects for the declared variables

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/ezachrisen/dataguard"
)

// activation builds the input data for a program: one entry per schema field,
// converted to the field's declared type, plus the raw field map.
func activation(s dataguard.Schema, obj *dataguard.Object) (map[string]any, error) {
	fields := map[string]any{}
	if obj != nil {
		for k, v := range obj.Fields {
			fields[k] = v
		}
	}

	data := make(map[string]any, len(s.Fields)+1)
	data[objectVar] = fields

	for _, f := range s.Fields {
		v, ok := fields[f.Name]
		if !ok || v == nil {
			data[f.Name] = f.Type.Zero()
			continue
		}
		c, err := convertValue(v, f.Type)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", f.Name, err)
		}
		data[f.Name] = c
	}
	return data, nil
}

// convertValue converts v to the Go type CEL maps to the declared type t.
func convertValue(v any, t dataguard.Type) (any, error) {
	switch t.(type) {
	case dataguard.String, dataguard.UUID:
		switch x := v.(type) {
		case string:
			return x, nil
		case []byte:
			return string(x), nil
		case fmt.Stringer:
			return x.String(), nil
		}
	case dataguard.Int:
		return toInt(v)
	case dataguard.Float, dataguard.Decimal:
		return toFloat(v)
	case dataguard.Bool:
		if b, ok := v.(bool); ok {
			return b, nil
		}
	case dataguard.Duration:
		switch x := v.(type) {
		case time.Duration:
			return x, nil
		case string:
			return time.ParseDuration(x)
		}
	case dataguard.Timestamp:
		switch x := v.(type) {
		case time.Time:
			return x, nil
		case string:
			return time.Parse(time.RFC3339Nano, x)
		}
	default:
		return v, nil
	}
	return nil, fmt.Errorf("cannot convert %v (%T) to %s", v, v, t)
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int:
		return int64(x), nil
	case int8:
		return int64(x), nil
	case int16:
		return int64(x), nil
	case int32:
		return int64(x), nil
	case int64:
		return x, nil
	case uint:
		return int64(x), nil
	case uint8:
		return int64(x), nil
	case uint16:
		return int64(x), nil
	case uint32:
		return int64(x), nil
	case uint64:
		if x > math.MaxInt64 {
			return 0, fmt.Errorf("%d overflows int", x)
		}
		return int64(x), nil
	case float32:
		return wholeFloat(float64(x))
	case float64:
		return wholeFloat(x)
	case json.Number:
		return x.Int64()
	}
	return 0, fmt.Errorf("cannot convert %v (%T) to int", v, v)
}

func wholeFloat(f float64) (int64, error) {
	if f != math.Trunc(f) || f > math.MaxInt64 || f < math.MinInt64 {
		return 0, fmt.Errorf("%v is not a whole number", f)
	}
	return int64(f), nil
}

func toFloat(v any) (float64, error) {
	switch x := v.(type) {
	case float32:
		return float64(x), nil
	case float64:
		return x, nil
	case json.Number:
		return x.Float64()
	}
	i, err := toInt(v)
	if err != nil {
		return 0, fmt.Errorf("cannot convert %v (%T) to float", v, v)
	}
	return float64(i), nil
}
