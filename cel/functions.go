package cel

import (
	celgo "github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/common/types/traits"
)

// blankFunction declares blank(dyn) bool.
func blankFunction() celgo.EnvOption {
	return celgo.Function("blank",
		celgo.Overload("blank_dyn",
			[]*celgo.Type{celgo.DynType},
			celgo.BoolType,
			celgo.UnaryBinding(func(v ref.Val) ref.Val {
				return types.Bool(isBlank(v))
			})))
}

func isBlank(v ref.Val) bool {
	switch x := v.(type) {
	case types.Null:
		return true
	case types.String:
		return x == ""
	case traits.Sizer:
		return x.Size().Equal(types.IntZero) == types.True
	}
	return false
}
