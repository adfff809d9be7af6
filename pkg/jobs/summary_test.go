package jobs

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/components"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
)

func sampleReport() *Report {
	return &Report{
		Results: []dispatch.Result{
			{Name: "hmpps-a", Flags: dispatch.Flags{components.FlagMainChanged: true, components.FlagEnvAdded: true}},
			{Name: "hmpps-b", Flags: dispatch.Flags{components.FlagArchived: true}},
			{Name: "hmpps-c", Flags: dispatch.Flags{}},
		},
		Products: 4,
	}
}

func TestDiscoverySummaryIncremental(t *testing.T) {
	got := discoverySummary(sampleReport(), false)

	want := "Github Discovery completed OK\n" +
		"3 component(s) processed\n" +
		"- 1 archived (monitoring disabled)\n" +
		"  hmpps-b\n" +
		"\n" +
		"4 product(s) processed\n" +
		footer
	assert.Equal(t, want, got)
}

func TestDiscoverySummaryFull(t *testing.T) {
	r := sampleReport()
	r.DuplicateRoles = map[string][]string{"role": {"hmpps-a", "hmpps-c"}}

	got := discoverySummary(r, true)

	assert.Contains(t, got, "Github Discovery completed OK full update\n\n\nCOMPONENT SUMMARY\n=================\n3 component(s) processed\n")
	assert.Contains(t, got, "- 0 had an environment configuration update\n- 1 had a main branch update\n")
	assert.NotContains(t, got, "had a main branch update\n  hmpps-a", "update categories are counted, not listed")
	assert.Contains(t, got, "- 1 environment(s) added\n- 0 environment(s) updated\n")
	assert.Contains(t, got, "- 1 archived (monitoring disabled)\n  hmpps-b\n\n")
	assert.Contains(t, got, "\n\nPRODUCT SUMMARY\n===============\n4 product(s) processed\n")
	assert.Contains(t, got, "1 component(s) found with duplicate Application Insights Cloud Role Name\n"+
		"\nCloud Role: role\n----------------\n  - Component: hmpps-a\n  - Component: hmpps-c\n")
}

func TestDuplicateSummaryOmittedWhenNone(t *testing.T) {
	got := discoverySummary(sampleReport(), false)
	assert.NotContains(t, got, "Cloud Role")

	got = discoverySummary(sampleReport(), true)
	assert.Contains(t, got, "0 component(s) found with duplicate Application Insights Cloud Role Name\n")
}

func TestDuplicateRoles(t *testing.T) {
	got := duplicateRoles([]catalogue.Component{
		{Name: "b", AppInsightsCloudRoleName: "shared"},
		{Name: "a", AppInsightsCloudRoleName: "shared"},
		{Name: "c", AppInsightsCloudRoleName: "own"},
		{Name: "d"},
		{Name: "e"},
	})
	assert.Equal(t, map[string][]string{"shared": {"a", "b"}}, got)
}
