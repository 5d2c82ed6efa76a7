package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/ezachrisen/dataguard"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// rulesDoc is the layout of a declarative rules file:
//
//	rules:
//	  - kind: regex
//	    name: site-name-format
//	    entity_type: dcim.site
//	    field: name
//	    pattern: '[A-Z]{3}-\d+'
//	  - kind: min_max
//	    name: site-asn-range
//	    entity_type: dcim.site
//	    field: asn
//	    min: 64512
//	    max: 65534
//
// Rules are enabled unless they say enabled: false.
type rulesDoc struct {
	Rules []ruleDef `yaml:"rules" validate:"dive"`
}

type ruleDef struct {
	Kind         string   `yaml:"kind" validate:"oneof=regex min_max required unique"`
	Name         string   `yaml:"name" validate:"required"`
	EntityType   string   `yaml:"entity_type" validate:"required"`
	Field        string   `yaml:"field" validate:"required"`
	Enabled      *bool    `yaml:"enabled"`
	ErrorMessage string   `yaml:"error_message"`
	Pattern      string   `yaml:"pattern" validate:"required_if=Kind regex"`
	Templated    bool     `yaml:"templated"`
	Min          *float64 `yaml:"min"`
	Max          *float64 `yaml:"max"`
	MaxInstances int      `yaml:"max_instances"`
}

// ParseRules decodes a rules file into rules. The rules are not checked
// against any schema; RuleSet.Add does that.
func ParseRules(data []byte) ([]dataguard.Rule, error) {
	var doc rulesDoc
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(doc); err != nil {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}

	out := make([]dataguard.Rule, 0, len(doc.Rules))
	for _, d := range doc.Rules {
		base := dataguard.RuleBase{
			Name:         d.Name,
			EntityType:   d.EntityType,
			Field:        d.Field,
			Enabled:      d.Enabled == nil || *d.Enabled,
			ErrorMessage: d.ErrorMessage,
		}
		switch dataguard.RuleKind(d.Kind) {
		case dataguard.KindRegex:
			out = append(out, &dataguard.RegexRule{RuleBase: base, Pattern: d.Pattern, Templated: d.Templated})
		case dataguard.KindMinMax:
			out = append(out, &dataguard.MinMaxRule{RuleBase: base, Min: d.Min, Max: d.Max})
		case dataguard.KindRequired:
			out = append(out, &dataguard.RequiredRule{RuleBase: base})
		case dataguard.KindUnique:
			out = append(out, &dataguard.UniqueRule{RuleBase: base, MaxInstances: d.MaxInstances})
		}
	}
	return out, nil
}

// LoadRules reads the rules file at path and adds its rules to rs.
func LoadRules(path string, rs *dataguard.RuleSet) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read rules: %w", err)
	}
	rules, err := ParseRules(data)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	if err := rs.Add(rules...); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}
