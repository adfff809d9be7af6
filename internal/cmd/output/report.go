package output

import (
	"encoding/json"
	"io"
	"time"

	"github.com/goccy/go-yaml"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/cmd/table"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// Report is the machine readable form of a job report.
type Report struct {
	Job            string              `json:"job" yaml:"job"`
	Kind           string              `json:"kind" yaml:"kind"`
	RunID          string              `json:"run_id" yaml:"run_id"`
	Result         string              `json:"result,omitempty" yaml:"result,omitempty"`
	Started        time.Time           `json:"started" yaml:"started"`
	Finished       time.Time           `json:"finished" yaml:"finished"`
	Items          []Item              `json:"items" yaml:"items"`
	Products       int                 `json:"products,omitempty" yaml:"products,omitempty"`
	DuplicateRoles map[string][]string `json:"duplicate_roles,omitempty" yaml:"duplicate_roles,omitempty"`
	Errors         []string            `json:"errors,omitempty" yaml:"errors,omitempty"`
}

// Item is one processed component or team.
type Item struct {
	Name  string   `json:"name" yaml:"name"`
	Flags []string `json:"flags" yaml:"flags"`
}

// NewReport converts a job report.
func NewReport(r *jobs.Report) Report {
	items := make([]Item, 0, len(r.Results))
	for _, res := range r.Results {
		items = append(items, Item{Name: res.Name, Flags: res.Flags.Names()})
	}
	return Report{
		Job:            r.Job,
		Kind:           r.Kind.String(),
		RunID:          r.RunID,
		Result:         r.Result,
		Started:        r.Started,
		Finished:       r.Finished,
		Items:          items,
		Products:       r.Products,
		DuplicateRoles: r.DuplicateRoles,
		Errors:         r.Errors,
	}
}

// FormatReport writes a job report in the given format. Tables show the
// run properties, the flag counts and the flagged items in turn; empty
// sections are skipped.
func FormatReport(w io.Writer, r *jobs.Report, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(NewReport(r))
	case FormatYAML:
		out, err := yaml.MarshalWithOptions(NewReport(r), yaml.Indent(2), yaml.IndentSequence(false))
		if err != nil {
			return err
		}
		_, err = w.Write(out)
		return err
	}

	sections := []table.Data{
		table.RunToTableData(r),
		table.FlagCountsToTableData(r),
		table.ReportToTableData(r, format == FormatWide),
	}
	for _, data := range sections {
		if len(data.Rows) == 0 {
			continue
		}
		if err := writeTable(w, data); err != nil {
			return err
		}
	}
	return nil
}

var alignments = map[table.Align]tw.Align{
	table.AlignLeft:   tw.AlignLeft,
	table.AlignCenter: tw.AlignCenter,
	table.AlignRight:  tw.AlignRight,
}

func writeTable(w io.Writer, data table.Data) error {
	var config tablewriter.Config
	if len(data.ColumnAlignment) > 0 {
		perColumn := make([]tw.Align, len(data.ColumnAlignment))
		for i, a := range data.ColumnAlignment {
			if mapped, ok := alignments[a]; ok {
				perColumn[i] = mapped
			} else {
				perColumn[i] = tw.Skip
			}
		}
		config.Header.Alignment = tw.CellAlignment{PerColumn: perColumn}
		config.Row.Alignment = tw.CellAlignment{PerColumn: perColumn}
	}

	t := tablewriter.NewTable(w, tablewriter.WithConfig(config))
	t.Header(cells(data.Headers)...)
	for _, row := range data.Rows {
		if err := t.Append(cells(row)...); err != nil {
			return err
		}
	}
	return t.Render()
}

func cells(row []string) []any {
	out := make([]any, len(row))
	for i, c := range row {
		out[i] = c
	}
	return out
}
