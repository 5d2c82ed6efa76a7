// Package cel provides an implementation of the dataguard Evaluator interface
// backed by Google's cel-go expression engine.
//
// See https://github.com/google/cel-go and https://opensource.google/projects/cel for more information
// about CEL.
//
// The assertions you write must conform to the CEL spec: https://github.com/google/cel-spec.
//
// # Variables
//
// Every field in the schema of the audited entity type is declared as a CEL
// variable of the corresponding type:
//
//	string, uuid        string
//	int                 int
//	float, decimal      double
//	bool                bool
//	duration            google.protobuf.Duration
//	timestamp           google.protobuf.Timestamp
//	json                map(string, dyn)
//	[]T, map[K]V        list(T), map(K, V)
//	any                 dyn
//
// Fields the object does not carry are set to the zero value of their type.
// The raw field map is also available as object, so presence can be tested
// with has():
//
//	has(object.description) && object.description != ""
//
// Values are converted to the declared type before evaluation; an integer
// field stored as a whole float64 (as it is after a JSON round trip) is
// accepted as an int.
//
// # Functions
//
// In addition to the CEL standard library, blank(value) returns true for
// null, the empty string and empty lists and maps.
//
// Assertions must produce a bool. Expressions that the type checker can prove
// produce some other type are rejected by Compile.
package cel
