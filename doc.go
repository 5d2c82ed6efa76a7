// Package dataguard provides a data validation engine for a network source of
// truth: declarative rules that constrain object attributes, and compliance
// checks whose outcomes are recorded per attribute.
//
// Declarative rules come in four kinds:
//
//	RegexRule     the value must match a regular expression from its start
//	MinMaxRule    a numeric value must lie within optional bounds
//	RequiredRule  the value must not be blank
//	UniqueRule    at most N instances may share the value
//
// Rules are added to a RuleSet, which checks each rule against the schema of
// the entity type it targets. A Validator evaluates the rules for an entity
// type against an object and collects every violation; Clean turns them into a
// single *FieldError for the save path.
//
// Typical use is as follows:
//
//  1. Register the schemas of the entity types you will validate
//  2. Create a RuleSet and add rules to it
//  3. Create a Validator, giving it a Templater and an ObjectStore
//  4. Call Clean on every object before it is saved
//
// Compliance checks implement the Check interface. They are discovered,
// executed and reconciled into stored results by the compliance package;
// checks defined outside the program are loaded by the source package and
// compiled by an Evaluator such as the one in the cel package.
package dataguard
