package source

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/cel"
	"github.com/ezachrisen/dataguard/exprlang"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// DefaultLanguage is the assertion language used when a check names none.
const DefaultLanguage = "cel"

// LoadError reports a source whose checks could not be loaded. Nothing from
// the source is usable when it is returned.
type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("loading source %s: %v", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Module is the set of checks loaded from one source.
type Module struct {
	Source string
	Checks []dataguard.Check
}

// rulesFile is the layout of compliance_rules.yaml.
type rulesFile struct {
	Checks []checkDef `yaml:"checks" validate:"dive"`
}

type checkDef struct {
	Name       string         `yaml:"name" validate:"required"`
	EntityType string         `yaml:"entity_type" validate:"required"`
	Enforce    bool           `yaml:"enforce"`
	Language   string         `yaml:"language"`
	Assertions []assertionDef `yaml:"assertions" validate:"required,min=1,dive"`
}

type assertionDef struct {
	Attribute string `yaml:"attribute"`
	Expr      string `yaml:"expr" validate:"required"`
	Message   string `yaml:"message"`
}

// Loader compiles the check definitions carried by sources.
type Loader struct {
	schemas    dataguard.SchemaProvider
	evaluators map[string]dataguard.Evaluator
	validate   *validator.Validate
	logger     *slog.Logger
}

type LoaderOption func(l *Loader)

// WithEvaluator registers the evaluator for an assertion language,
// replacing any evaluator registered for it.
func WithEvaluator(language string, e dataguard.Evaluator) LoaderOption {
	return func(l *Loader) {
		l.evaluators[language] = e
	}
}

// WithLogger sets the logger. Default: slog.Default()
func WithLogger(log *slog.Logger) LoaderOption {
	return func(l *Loader) {
		l.logger = log
	}
}

// NewLoader returns a loader resolving entity types through schemas. The cel
// and expr languages are registered by default.
func NewLoader(schemas dataguard.SchemaProvider, opts ...LoaderOption) *Loader {
	l := &Loader{
		schemas: schemas,
		evaluators: map[string]dataguard.Evaluator{
			"cel":  cel.NewEvaluator(),
			"expr": exprlang.NewEvaluator(),
		},
		validate: validator.New(validator.WithRequiredStructEnabled()),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load refreshes the source and compiles the checks it defines. The
// definition file is read from disk on every call, so edits in the source
// are picked up without restarting. Sources that do not advertise
// ContentComplianceRules yield an empty module.
func (l *Loader) Load(ctx context.Context, src Source) (*Module, error) {
	m := &Module{Source: src.Name()}
	if !Provides(src, ContentComplianceRules) {
		return m, nil
	}

	if err := src.EnsureUpToDate(ctx); err != nil {
		return nil, &LoadError{Source: src.Name(), Err: errors.Wrap(err, "refreshing")}
	}

	path := filepath.Join(src.WorkingDir(), RulesFile)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: errors.Wrapf(err, "reading %s", RulesFile)}
	}

	checks, err := l.Parse(data, src.Name())
	if err != nil {
		return nil, &LoadError{Source: src.Name(), Err: err}
	}
	m.Checks = checks

	l.logger.Debug("loaded source", "source", src.Name(), "checks", len(checks))
	return m, nil
}

// Parse compiles the check definitions in data. Every check is compiled in
// an environment of its own, declaring only the fields of its entity type.
// A check whose entity type does not resolve is returned uncompiled; see
// ExprCheck.Unresolved.
func (l *Loader) Parse(data []byte, sourceName string) ([]dataguard.Check, error) {
	var f rulesFile
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "parsing %s", RulesFile)
	}
	if err := l.validate.Struct(f); err != nil {
		return nil, errors.Wrapf(err, "validating %s", RulesFile)
	}

	seen := map[string]bool{}
	checks := make([]dataguard.Check, 0, len(f.Checks))
	for _, def := range f.Checks {
		if seen[def.Name] {
			return nil, errors.Errorf("check %s is defined more than once", def.Name)
		}
		seen[def.Name] = true

		c, err := l.compile(def, sourceName)
		if err != nil {
			return nil, errors.Wrapf(err, "check %s", def.Name)
		}
		checks = append(checks, c)
	}
	return checks, nil
}

func (l *Loader) compile(def checkDef, sourceName string) (*ExprCheck, error) {
	lang := def.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	ev, ok := l.evaluators[lang]
	if !ok {
		return nil, errors.Errorf("unknown assertion language %q", lang)
	}

	c := &ExprCheck{
		BaseCheck: dataguard.BaseCheck{
			CheckName: def.Name,
			Entity:    def.EntityType,
			Enforced:  def.Enforce,
		},
		Source:    sourceName,
		Language:  lang,
		evaluator: ev,
	}

	// An unknown entity type is a problem with this check only. It is kept
	// uncompiled so that running it reports a configuration error.
	s, err := l.schemas.Lookup(def.EntityType)
	if err != nil {
		l.logger.Warn("check targets an unknown entity type",
			"source", sourceName, "check", def.Name, "entity_type", def.EntityType)
		c.unresolved = &dataguard.ConfigError{
			Subject: def.Name,
			Fields:  map[string]string{"entity_type": fmt.Sprintf("%s does not resolve to a known entity type.", def.EntityType)},
			Err:     err,
		}
		return c, nil
	}
	for i, a := range def.Assertions {
		attr := a.Attribute
		if attr == "" {
			attr = dataguard.AllFields
		}
		if attr != dataguard.AllFields {
			if _, ok := s.Field(attr); !ok {
				return nil, errors.Errorf("assertion %d: %s is not a field of %s", i, attr, s.ID)
			}
		}
		prg, err := ev.Compile(a.Expr, s)
		if err != nil {
			return nil, errors.Wrapf(err, "assertion %d", i)
		}
		c.assertions = append(c.assertions, assertion{
			attribute: attr,
			expr:      a.Expr,
			message:   a.Message,
			program:   prg,
		})
	}
	return c, nil
}
