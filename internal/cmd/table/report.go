// Package table turns job reports into rows for the table formatter.
package table

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// Align is a column alignment. AlignDefault leaves it to the renderer.
type Align int

const (
	AlignDefault Align = iota
	AlignLeft
	AlignCenter
	AlignRight
)

// Data is one section of a rendered report.
type Data struct {
	Headers []string
	Rows    [][]string
	// ColumnAlignment may be shorter than Headers or empty.
	ColumnAlignment []Align
}

// RunToTableData describes the run as a property table.
func RunToTableData(r *jobs.Report) Data {
	rows := [][]string{
		{"Job", r.Job},
		{"Run ID", r.RunID},
		{"Result", orDash(r.Result)},
		{"Started", r.Started.Format(time.RFC3339)},
		{"Duration", r.Finished.Sub(r.Started).Round(time.Millisecond).String()},
		{"Items", strconv.Itoa(len(r.Results))},
	}
	if r.Kind == jobs.Discovery || r.Kind == jobs.Products {
		rows = append(rows, []string{"Products", strconv.Itoa(r.Products)})
	}
	rows = append(rows, []string{"Errors", strconv.Itoa(len(r.Errors))})

	return Data{
		Headers: []string{"Property", "Value"},
		Rows:    rows,
	}
}

// FlagCountsToTableData counts the results carrying each flag.
func FlagCountsToTableData(r *jobs.Report) Data {
	counts := map[string]int{}
	for _, res := range r.Results {
		for _, flag := range res.Flags.Names() {
			counts[flag]++
		}
	}
	flags := make([]string, 0, len(counts))
	for flag := range counts {
		flags = append(flags, flag)
	}
	sort.Strings(flags)

	rows := make([][]string, 0, len(flags))
	for _, flag := range flags {
		rows = append(rows, []string{flag, strconv.Itoa(counts[flag])})
	}
	return Data{
		Headers:         []string{"Flag", "Count"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignRight},
	}
}

// ReportToTableData lists the processed items and their flags. Items
// without flags are only listed when wide is set.
func ReportToTableData(r *jobs.Report, wide bool) Data {
	rows := make([][]string, 0, len(r.Results))
	for _, res := range r.Results {
		names := res.Flags.Names()
		if len(names) == 0 && !wide {
			continue
		}
		rows = append(rows, []string{res.Name, orDash(strings.Join(names, ", "))})
	}
	return Data{
		Headers: []string{"Name", "Flags"},
		Rows:    rows,
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
