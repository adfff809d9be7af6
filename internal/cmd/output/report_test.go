package output

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

func testReport() *jobs.Report {
	started := time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)
	return &jobs.Report{
		Kind:     jobs.Discovery,
		Job:      "hmpps-github-discovery-incremental",
		RunID:    "run-1",
		Started:  started,
		Finished: started.Add(90 * time.Second),
		Result:   "Succeeded",
		Results: []dispatch.Result{
			{Name: "hmpps-a", Flags: dispatch.Flags{"archived": true}},
			{Name: "hmpps-b", Flags: dispatch.Flags{}},
		},
		Products: 2,
	}
}

func TestFormatReportJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatReport(&buf, testReport(), FormatJSON))

	var got Report
	require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, "discovery", got.Kind)
	assert.Equal(t, []Item{
		{Name: "hmpps-a", Flags: []string{"archived"}},
		{Name: "hmpps-b", Flags: []string{}},
	}, got.Items)
}

func TestFormatReportYAML(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatReport(&buf, testReport(), FormatYAML))
	assert.Contains(t, buf.String(), "run_id: run-1")
	assert.Contains(t, buf.String(), "products: 2")
}

func TestFormatReportTable(t *testing.T) {
	tests := []struct {
		name   string
		format Format
		wantB  bool
	}{
		{"table hides unflagged items", FormatTable, false},
		{"wide lists every item", FormatWide, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, FormatReport(&buf, testReport(), tt.format))
			out := buf.String()
			assert.Contains(t, out, "hmpps-github-discovery-incremental")
			assert.Contains(t, out, "1m30s")
			assert.Contains(t, out, "hmpps-a")
			assert.Equal(t, tt.wantB, bytes.Contains(buf.Bytes(), []byte("hmpps-b")))
		})
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("YAML")
	require.NoError(t, err)
	assert.Equal(t, FormatYAML, f)

	_, err = ParseFormat("xml")
	assert.Error(t, err)

	assert.Equal(t, FormatJSON, DetectFormat("json"))
	assert.Equal(t, FormatWide, DetectFormat(FormatWide))
}

func TestFormatReportTableIsPlainText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, FormatReport(&buf, testReport(), FormatTable))
	assert.Contains(t, buf.String(), "archived")
	assert.NotContains(t, buf.String(), "{", "tables never fall back to JSON")
}
