// Package config loads the dataguard configuration from dataguard.yaml and
// DATAGUARD_* environment variables.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ezachrisen/dataguard"
	"github.com/ezachrisen/dataguard/source"
	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// Config is the complete configuration of the dataguard command.
type Config struct {
	Store    StoreConfig    `mapstructure:"store"`
	Log      LogConfig      `mapstructure:"log"`
	Schedule ScheduleConfig `mapstructure:"schedule"`

	// External sources of compliance checks
	Sources []SourceConfig `mapstructure:"sources" validate:"dive"`

	// YAML file of declarative rules; empty for none
	RulesFile string `mapstructure:"rules_file"`

	// Entity types whose declarative rules also run as compliance checks
	EntityTypes []string `mapstructure:"entity_types" validate:"dive,required"`

	// Entity types known to the engine
	Schemas []SchemaConfig `mapstructure:"schemas" validate:"dive"`
}

type StoreConfig struct {
	// Where objects and results live: sqlite or memory
	Driver string `mapstructure:"driver" validate:"oneof=sqlite memory"`

	// SQLite database file
	Path string `mapstructure:"path" validate:"required_if=Driver sqlite"`

	// Overrides where results are kept. Empty keeps them with the objects.
	Results string `mapstructure:"results" validate:"omitempty,oneof=badger"`

	// Directory of the badger result store
	BadgerPath string `mapstructure:"badger_path" validate:"required_if=Results badger"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" validate:"oneof=text json"`
}

type ScheduleConfig struct {
	// Zero disables scheduled runs.
	Interval time.Duration `mapstructure:"interval" validate:"gte=0"`

	// Checks to run; empty runs every check
	Checks []string `mapstructure:"checks"`

	OverrideEnforce bool `mapstructure:"override_enforce"`
}

type SourceConfig struct {
	Name string `mapstructure:"name" validate:"required"`

	// dir (the default) or git
	Kind string `mapstructure:"kind" validate:"omitempty,oneof=dir git"`

	// Local directory, or the clone directory of a git source
	Path string `mapstructure:"path" validate:"required"`

	URL    string `mapstructure:"url" validate:"required_if=Kind git"`
	Branch string `mapstructure:"branch"`

	// Artifact kinds the source provides. Empty means compliance rules.
	Contents []string `mapstructure:"contents"`
}

type SchemaConfig struct {
	EntityType string        `mapstructure:"entity_type" validate:"required"`
	Name       string        `mapstructure:"name"`
	Fields     []FieldConfig `mapstructure:"fields" validate:"required,dive"`
}

type FieldConfig struct {
	Name     string `mapstructure:"name" validate:"required"`
	Type     string `mapstructure:"type" validate:"required"`
	ReadOnly bool   `mapstructure:"read_only"`
	Auto     bool   `mapstructure:"auto"`
	Relation bool   `mapstructure:"relation"`
	Identity bool   `mapstructure:"identity"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "./dataguard.db")
	v.SetDefault("store.results", "")
	v.SetDefault("store.badger_path", "./dataguard-results")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("schedule.interval", "0s")
	v.SetDefault("schedule.checks", []string{})
	v.SetDefault("schedule.override_enforce", false)
	v.SetDefault("sources", []map[string]any{})
	v.SetDefault("rules_file", "")
	v.SetDefault("entity_types", []string{})
	v.SetDefault("schemas", []map[string]any{})
}

// Load reads the configuration. With an empty path, dataguard.yaml is looked
// up in the working directory and may be absent. Environment variables
// override the file: DATAGUARD_LOG_LEVEL sets log.level.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("dataguard")
		v.AddConfigPath(".")
	}
	v.SetEnvPrefix("DATAGUARD")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration for missing or inconsistent settings.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the configured log level.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// BuildSchemas returns a registry of the configured entity types.
func (c *Config) BuildSchemas() (*dataguard.Schemas, error) {
	reg, err := dataguard.NewSchemas()
	if err != nil {
		return nil, err
	}
	for _, sc := range c.Schemas {
		s := dataguard.Schema{ID: sc.EntityType, Name: sc.Name}
		for _, fc := range sc.Fields {
			t, err := dataguard.ParseType(fc.Type)
			if err != nil {
				return nil, fmt.Errorf("schema %s field %s: %w", sc.EntityType, fc.Name, err)
			}
			s.Fields = append(s.Fields, dataguard.Field{
				Name:     fc.Name,
				Type:     t,
				Editable: !fc.ReadOnly,
				Auto:     fc.Auto,
				Relation: fc.Relation,
				Identity: fc.Identity,
			})
		}
		if err := reg.Register(s); err != nil {
			return nil, fmt.Errorf("schema %s: %w", sc.EntityType, err)
		}
	}
	return reg, nil
}

// BuildSources returns the configured external sources.
func (c *Config) BuildSources(logger *slog.Logger) []source.Source {
	out := make([]source.Source, 0, len(c.Sources))
	for _, sc := range c.Sources {
		contents := sc.Contents
		if len(contents) == 0 {
			contents = []string{source.ContentComplianceRules}
		}
		switch sc.Kind {
		case "git":
			g := source.NewGitSource(sc.Name, sc.URL, sc.Branch, sc.Path)
			g.Contents = contents
			g.Logger = logger
			out = append(out, g)
		default:
			out = append(out, &source.DirSource{SourceName: sc.Name, Path: sc.Path, Contents: contents})
		}
	}
	return out
}
