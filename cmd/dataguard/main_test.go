package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/matryer/is"
)

const checksYAML = `
checks:
  - name: SiteNaming
    entity_type: dcim.site
    enforce: true
    assertions:
      - attribute: name
        expr: 'name.startsWith("AMS")'
        message: site names start with AMS
`

const rulesYAML = `
rules:
  - kind: min_max
    name: site-asn-range
    entity_type: dcim.site
    field: asn
    min: 64512
    max: 65534
`

const objectsJSON = `[
  {"type": "dcim.site", "id": "1", "fields": {"name": "AMS-1", "asn": 65000}},
  {"type": "dcim.site", "id": "2", "fields": {"name": "LHR-1", "asn": 100}}
]`

func write(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func setup(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	checks := filepath.Join(dir, "checks")
	if err := os.Mkdir(checks, 0o755); err != nil {
		t.Fatal(err)
	}
	write(t, checks, "compliance_rules.yaml", checksYAML)
	write(t, dir, "rules.yaml", rulesYAML)
	write(t, dir, "objects.json", objectsJSON)

	cfg := fmt.Sprintf(`
store:
  driver: sqlite
  path: %s
log:
  level: error
sources:
  - name: local
    path: %s
rules_file: %s
entity_types: [dcim.site]
schemas:
  - entity_type: dcim.site
    fields:
      - name: name
        type: string
      - name: asn
        type: int
`, filepath.Join(dir, "dataguard.db"), checks, filepath.Join(dir, "rules.yaml"))
	write(t, dir, "dataguard.yaml", cfg)
	return dir
}

func execute(t *testing.T, dir string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--config", filepath.Join(dir, "dataguard.yaml")}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestCommands(t *testing.T) {
	is := is.New(t)
	dir := setup(t)

	out, err := execute(t, dir, "import", filepath.Join(dir, "objects.json"))
	is.NoErr(err)
	is.True(strings.Contains(out, "imported 2 objects"))

	out, err = execute(t, dir, "checks")
	is.NoErr(err)
	is.True(strings.Contains(out, "DcimSiteRuleCheck"))
	is.True(strings.Contains(out, "SiteNaming"))

	out, err = execute(t, dir, "rules")
	is.NoErr(err)
	is.True(strings.Contains(out, "site-asn-range"))

	// site 2 fails the enforced SiteNaming check
	out, err = execute(t, dir, "run")
	is.True(err != nil)
	is.True(strings.Contains(out, "COMPLIANCE RUN SUMMARY"))
	is.True(strings.Contains(err.Error(), "SiteNaming"))

	out, err = execute(t, dir, "run", "--override-enforce")
	is.NoErr(err)
	is.True(strings.Contains(out, "SiteNaming"))

	out, err = execute(t, dir, "run", "--override-enforce", "--check", "SiteNaming", "--check", "Missing")
	is.NoErr(err)
	is.True(strings.Contains(out, "not found"))

	out, err = execute(t, dir, "validate", "--type", "dcim.site", "--id", "1")
	is.NoErr(err)
	is.True(strings.Contains(out, "is valid"))

	out, err = execute(t, dir, "validate", "--type", "dcim.site", "--id", "2")
	is.True(err != nil)
	is.True(strings.Contains(out, "site names start with AMS"))
	is.True(strings.Contains(out, "Value is less than minimum value: 64512"))

	_, err = execute(t, dir, "validate", "--type", "dcim.site", "--id", "3")
	is.True(err != nil)

	out, err = execute(t, dir, "cleanup")
	is.NoErr(err)
	is.True(strings.Contains(out, "deleted 0 orphaned results"))

	_, err = execute(t, dir, "schedule")
	is.True(err != nil) // no interval configured
}

func TestImportUnknownType(t *testing.T) {
	dir := setup(t)
	path := write(t, dir, "bad.json", `[{"type": "dcim.rack", "id": "1", "fields": {}}]`)
	if _, err := execute(t, dir, "import", path); err == nil {
		t.Error("wanted an error for an unknown entity type")
	}
}
