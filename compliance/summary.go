package compliance

import (
	"time"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// Summary describes a compliance run.
type Summary struct {
	Started  time.Time
	Finished time.Time

	// One entry per executed check, in the order they ran
	Checks []CheckSummary

	// Requested check names that were not discovered
	Unknown []string
}

// CheckSummary counts the outcomes of one check over its objects.
type CheckSummary struct {
	Check      string
	EntityType string
	Objects    int
	Passed     int
	Failed     int
	Errors     int

	// Set when the check could not run at all
	Err error
}

// Totals adds up the counts of every check.
func (s *Summary) Totals() CheckSummary {
	t := CheckSummary{Check: "TOTAL"}
	if s == nil {
		return t
	}
	for _, c := range s.Checks {
		t.Objects += c.Objects
		t.Passed += c.Passed
		t.Failed += c.Failed
		t.Errors += c.Errors
	}
	return t
}

// String renders the summary as a table.
func (s *Summary) String() string {
	tw := table.NewWriter()
	tw.SetTitle("\nCOMPLIANCE RUN SUMMARY\n")
	tw.AppendHeader(table.Row{"Check", "Entity Type", "Objects", "Passed", "Failed", "Errors", "Problem"})
	for _, c := range s.Checks {
		tw.AppendRow(checkRow(c))
	}
	for _, name := range s.Unknown {
		tw.AppendRow(table.Row{name, "", "", "", "", "", "not found"})
	}
	tw.AppendFooter(checkRow(s.Totals()))
	tw.SetCaption("ran %s in %s", humanize.Time(s.Started), s.Finished.Sub(s.Started).Round(time.Millisecond))
	style := table.StyleLight
	style.Format.Header = text.FormatDefault
	style.Format.Footer = text.FormatDefault
	tw.SetStyle(style)
	return tw.Render()
}

func checkRow(c CheckSummary) table.Row {
	problem := ""
	if c.Err != nil {
		problem = c.Err.Error()
	}
	return table.Row{
		c.Check,
		c.EntityType,
		humanize.Comma(int64(c.Objects)),
		humanize.Comma(int64(c.Passed)),
		humanize.Comma(int64(c.Failed)),
		humanize.Comma(int64(c.Errors)),
		problem,
	}
}
