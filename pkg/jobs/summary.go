package jobs

import (
	"fmt"
	"sort"
	"strings"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/components"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
)

// category is a summary line: the results carrying flag, described by desc.
type category struct {
	flag string
	desc string
	// counted categories are reported as a count without listing names.
	counted bool
}

var componentCategories = []category{
	{flag: components.FlagEnvChanged, desc: "had an environment configuration update", counted: true},
	{flag: components.FlagMainChanged, desc: "had a main branch update", counted: true},
	{flag: components.FlagUpdateError, desc: "with update errors", counted: true},
	{flag: components.FlagNotFound, desc: "not found / not accessible in Github"},
	{flag: components.FlagAppDisabled, desc: "requiring Github App to be enabled"},
	{flag: components.FlagWorkflowsDisabled, desc: "with workflows disabled"},
	{flag: components.FlagBranchProtectionDisabled, desc: "with branch protection disabled"},
	{flag: components.FlagArchived, desc: "archived (monitoring disabled)"},
	{flag: components.FlagEnvAdded, desc: "environment(s) added", counted: true},
	{flag: components.FlagEnvUpdated, desc: "environment(s) updated", counted: true},
	{flag: components.FlagEnvRemoved, desc: "environment(s) removed"},
	{flag: components.FlagEnvError, desc: "environment(s) encountered errors"},
	{flag: dispatch.FlagPanic, desc: "failed unexpectedly"},
}

var securityCategories = []category{
	{flag: components.FlagReposWithVulnerabilities, desc: "with code scanning alerts"},
	{flag: components.FlagUpdateError, desc: "with update errors", counted: true},
	{flag: components.FlagNotFound, desc: "not found / not accessible in Github"},
	{flag: dispatch.FlagPanic, desc: "failed unexpectedly"},
}

var workflowCategories = []category{
	{flag: components.FlagQtyRepos, desc: "with non-core workflows discovered"},
	{flag: components.FlagUpdateError, desc: "with update errors", counted: true},
	{flag: components.FlagNotFound, desc: "not found / not accessible in Github"},
	{flag: dispatch.FlagPanic, desc: "failed unexpectedly"},
}

var teamCategories = []category{
	{flag: FlagTerraformManaged, desc: "teams are terraform managed"},
	{flag: FlagTeamUpdated, desc: "team(s) updated"},
	{flag: FlagTeamAdded, desc: "team(s) added"},
	{flag: FlagTeamDeleted, desc: "team(s) deleted"},
	{flag: FlagTeamFailure, desc: "teams that encountered errors"},
}

const footer = "\n_(generated by <" + constants.RepositoryURL + "|hmpps-github-discovery>)_"

// heading is the underlined section title used by detailed summaries.
func heading(item string) string {
	return fmt.Sprintf("\n\n%s SUMMARY\n%s\n", strings.ToUpper(item), strings.Repeat("=", len(item)+8))
}

func withFlag(results []dispatch.Result, flag string) []string {
	var names []string
	for _, r := range results {
		if r.Flags.Has(flag) {
			names = append(names, r.Name)
		}
	}
	return names
}

// summarize reports the results per category. A detailed summary has a
// heading and lists every category, otherwise only the categories with
// results are listed. Counted categories never list names.
func summarize(b *strings.Builder, results []dispatch.Result, item string, cats []category, detailed bool) {
	if detailed {
		b.WriteString(heading(item))
	}
	fmt.Fprintf(b, "%d %s(s) processed\n", len(results), strings.ToLower(item))
	for _, c := range cats {
		names := withFlag(results, c.flag)
		switch {
		case c.counted:
			if detailed {
				fmt.Fprintf(b, "- %d %s\n", len(names), c.desc)
			}
		case len(names) > 0:
			fmt.Fprintf(b, "- %d %s\n", len(names), c.desc)
			for _, name := range names {
				fmt.Fprintf(b, "  %s\n", name)
			}
			b.WriteString("\n")
		case detailed:
			fmt.Fprintf(b, "- 0 %s\n", c.desc)
		}
	}
}

func summarizeDuplicates(b *strings.Builder, roles map[string][]string, detailed bool) {
	if detailed {
		b.WriteString(heading("component"))
	}
	if len(roles) == 0 && !detailed {
		return
	}
	fmt.Fprintf(b, "%d component(s) found with duplicate Application Insights Cloud Role Name\n", len(roles))
	names := make([]string, 0, len(roles))
	for role := range roles {
		names = append(names, role)
	}
	sort.Strings(names)
	for _, role := range names {
		fmt.Fprintf(b, "\nCloud Role: %s\n%s\n", role, strings.Repeat("-", len(role)+12))
		for _, c := range roles[role] {
			fmt.Fprintf(b, "  - Component: %s\n", c)
		}
	}
}

// discoverySummary is the Slack summary of a discovery run. Forced runs get
// the detailed layout.
func discoverySummary(r *Report, force bool) string {
	var b strings.Builder
	b.WriteString("Github Discovery completed OK")
	if force {
		b.WriteString(" full update")
	}
	b.WriteString("\n")
	summarize(&b, r.Results, "component", componentCategories, force)
	if force {
		b.WriteString(heading("product"))
	}
	fmt.Fprintf(&b, "%d product(s) processed\n", r.Products)
	summarizeDuplicates(&b, r.DuplicateRoles, force)
	b.WriteString(footer)
	return b.String()
}

// batchSummary is the detailed summary of a security or workflows run.
func batchSummary(r *Report, title string, cats []category) string {
	var b strings.Builder
	b.WriteString(title + "\n")
	summarize(&b, r.Results, "component", cats, true)
	b.WriteString(footer)
	return b.String()
}

// teamsSummary reports counts only.
func teamsSummary(r *Report) string {
	item := "Github Teams"
	var b strings.Builder
	b.WriteString(heading(item))
	for _, c := range teamCategories {
		fmt.Fprintf(&b, "- %d %s\n", len(withFlag(r.Results, c.flag)), c.desc)
	}
	return b.String()
}

func productsSummary(r *Report) string {
	return fmt.Sprintf("Github Products Discovery completed OK\n%d product(s) processed\n%s", r.Products, footer)
}
