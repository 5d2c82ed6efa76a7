// Package source loads compliance checks defined outside the program, from
// local directories or git repositories.
//
// A source that advertises ContentComplianceRules carries a file named
// compliance_rules.yaml at the root of its working directory:
//
//	checks:
//	  - name: SiteNaming
//	    entity_type: dcim.site
//	    enforce: false
//	    language: cel
//	    assertions:
//	      - attribute: name
//	        expr: 'name.startsWith("AMS")'
//	        message: site names start with AMS
//
// Each assertion is a boolean expression in the check's language (cel by
// default, or expr) with the fields of the entity type in scope. Assertions
// with an attribute report failures against that attribute; assertions
// without one report against the object as a whole.
package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strings"
)

// ContentComplianceRules is the artifact kind advertised by sources that carry
// compliance check definitions.
const ContentComplianceRules = "dataguard.compliance_rules"

// RulesFile is the name of the check definition file in a source's working
// directory.
const RulesFile = "compliance_rules.yaml"

// Source is an external code source the loader reads check definitions from.
type Source interface {
	// Name identifies the source in logs and errors
	Name() string

	// EnsureUpToDate brings the working directory up to date with its origin.
	EnsureUpToDate(ctx context.Context) error

	// WorkingDir is the local directory holding the source's files.
	WorkingDir() string

	// ProvidedContents lists the artifact kinds the source advertises.
	ProvidedContents() []string
}

// Provides reports whether src advertises the artifact kind.
func Provides(src Source, kind string) bool {
	return slices.Contains(src.ProvidedContents(), kind)
}

// DirSource is a source backed by a local directory.
type DirSource struct {
	SourceName string   `mapstructure:"name"`
	Path       string   `mapstructure:"path"`
	Contents   []string `mapstructure:"contents"`
}

// NewDirSource returns a source reading from path that advertises compliance rules.
func NewDirSource(name, path string) *DirSource {
	return &DirSource{SourceName: name, Path: path, Contents: []string{ContentComplianceRules}}
}

func (d *DirSource) Name() string               { return d.SourceName }
func (d *DirSource) WorkingDir() string         { return d.Path }
func (d *DirSource) ProvidedContents() []string { return d.Contents }

// EnsureUpToDate checks that the directory exists.
func (d *DirSource) EnsureUpToDate(ctx context.Context) error {
	fi, err := os.Stat(d.Path)
	if err != nil {
		return fmt.Errorf("source %s: %w", d.SourceName, err)
	}
	if !fi.IsDir() {
		return fmt.Errorf("source %s: %s is not a directory", d.SourceName, d.Path)
	}
	return nil
}

// GitSource is a source backed by a git repository, cloned into a local
// working directory and fast-forwarded on every refresh.
type GitSource struct {
	SourceName string   `mapstructure:"name"`
	URL        string   `mapstructure:"url"`
	Branch     string   `mapstructure:"branch"`
	Dir        string   `mapstructure:"path"`
	Contents   []string `mapstructure:"contents"`

	// Logger for git activity. Default: slog.Default()
	Logger *slog.Logger `mapstructure:"-"`
}

// NewGitSource returns a source cloning url into dir that advertises
// compliance rules.
func NewGitSource(name, url, branch, dir string) *GitSource {
	return &GitSource{
		SourceName: name,
		URL:        url,
		Branch:     branch,
		Dir:        dir,
		Contents:   []string{ContentComplianceRules},
	}
}

func (g *GitSource) Name() string               { return g.SourceName }
func (g *GitSource) WorkingDir() string         { return g.Dir }
func (g *GitSource) ProvidedContents() []string { return g.Contents }

// EnsureUpToDate clones the repository if the working directory has no
// checkout yet, and pulls otherwise. Only fast-forward pulls are made.
func (g *GitSource) EnsureUpToDate(ctx context.Context) error {
	log := g.Logger
	if log == nil {
		log = slog.Default()
	}

	if _, err := os.Stat(filepath.Join(g.Dir, ".git")); os.IsNotExist(err) {
		if err := os.MkdirAll(filepath.Dir(g.Dir), 0o755); err != nil {
			return fmt.Errorf("source %s: %w", g.SourceName, err)
		}
		args := []string{"clone", "--quiet", "--depth", "1"}
		if g.Branch != "" {
			args = append(args, "--branch", g.Branch)
		}
		args = append(args, g.URL, g.Dir)
		log.Info("cloning source", "source", g.SourceName, "url", g.URL, "dir", g.Dir)
		return g.git(ctx, "", args...)
	}

	log.Debug("pulling source", "source", g.SourceName, "dir", g.Dir)
	return g.git(ctx, g.Dir, "pull", "--quiet", "--ff-only")
}

func (g *GitSource) git(ctx context.Context, dir string, args ...string) error {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), "GIT_TERMINAL_PROMPT=0")
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("source %s: git %s: %w: %s", g.SourceName, args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
