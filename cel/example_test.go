package cel_test

import (
	"fmt"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/cel"
)

func Example() {

	// Step 1: Describe the entity type
	schema := dataguard.Schema{
		ID: "dcim.site",
		Fields: []dataguard.Field{
			{Name: "name", Type: dataguard.String{}},
		},
	}

	// Step 2: Compile an assertion against the schema
	e := cel.NewEvaluator()
	p, err := e.Compile(`name.startsWith("AMS")`, schema)
	if err != nil {
		fmt.Println(err)
		return
	}

	// Step 3: Evaluate it against an object
	obj := dataguard.NewObject("dcim.site", "1", map[string]any{"name": "AMS-195"})
	v, err := e.Evaluate(p, obj)
	if err != nil {
		fmt.Println(err)
		return
	}
	fmt.Println(v.Val)
	// Output: true
}
