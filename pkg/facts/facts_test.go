package facts

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository/repotest"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

func TestCompliance(t *testing.T) {
	snapshot := value.From(map[string]any{
		"default_branch": "main",
		"description":    "",
		"security_and_analysis": map[string]any{
			"secret_scanning":                 map[string]any{"status": "enabled"},
			"secret_scanning_push_protection": map[string]any{"status": "disabled"},
		},
	})

	assert.Equal(t, map[string]bool{
		"default_branch_main":             true,
		"repository_description":          false,
		"secret_scanning":                 true,
		"secret_scanning_push_protection": false,
	}, Compliance(snapshot, Standards))
}

func TestStandardNumeric(t *testing.T) {
	s := Standard{Name: "reviewers", Path: "required_reviewers", Expected: 2}
	assert.True(t, s.Evaluate(value.From(map[string]any{"required_reviewers": float64(3)})))
	assert.False(t, s.Evaluate(value.From(map[string]any{"required_reviewers": float64(1)})))
	assert.False(t, s.Evaluate(value.From(map[string]any{})))
}

func TestSummariseCodeScanning(t *testing.T) {
	got := SummariseCodeScanning([]repository.CodeScanningAlert{
		{Tool: "trivy", RuleID: "CVE-1", Severity: "", URL: "u1", State: "open"},
		{Tool: "trivy", RuleID: "CVE-1", Severity: "high", URL: "u2", State: "open"},
		{Tool: "codeql", RuleID: "js/xss", Severity: "", URL: "u3", State: "open"},
		{Tool: "trivy", RuleID: "CVE-2", Severity: "critical", URL: "u4", State: "fixed"},
	})

	require.NotNil(t, got)
	assert.Len(t, got.Alerts, 3)
	assert.Equal(t, map[string]string{"CVE-1": "HIGH", "js/xss": ""}, got.UniqueCVEs)
	assert.Equal(t, map[string]int{"HIGH": 1, "UNKNOWN": 1}, got.Counts)

	assert.Nil(t, SummariseCodeScanning([]repository.CodeScanningAlert{{RuleID: "x", State: "fixed"}}))
}

func TestNpmIgnoreScripts(t *testing.T) {
	tests := []struct {
		name     string
		language string
		npmrc    string
		want     bool
		ok       bool
	}{
		{"true", "TypeScript", "# comment\nengine-strict = true\nignore-scripts=true\n", true, true},
		{"false", "JavaScript", "ignore-scripts = false", false, true},
		{"unset", "JavaScript", "audit=false\n", false, false},
		{"other language", "Kotlin", "ignore-scripts=true\n", false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := repotest.New("r", map[string]string{".npmrc": tt.npmrc})
			got, ok, err := NpmIgnoreScripts(context.Background(), repo, tt.language)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.ok, ok)
		})
	}

	_, ok, err := NpmIgnoreScripts(context.Background(), repotest.New("r", nil), "TypeScript")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAppInsightsRoleName(t *testing.T) {
	tests := []struct {
		name     string
		language string
		files    map[string]string
		want     string
	}{
		{"kotlin", "Kotlin", map[string]string{"applicationinsights.json": `{"role":{"name":"hmpps-api"}}`}, "hmpps-api"},
		{"typescript", "TypeScript", map[string]string{"package.json": `{"name":"hmpps-ui"}`}, "hmpps-ui"},
		{"scoped package", "TypeScript", map[string]string{"package.json": `{"name":"@moj/ui"}`}, ""},
		{"missing file", "Java", map[string]string{}, ""},
		{"python", "Python", map[string]string{"package.json": `{"name":"x"}`}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok, err := AppInsightsRoleName(context.Background(), repotest.New("r", tt.files), tt.language, ".")
			require.NoError(t, err)
			assert.Equal(t, tt.want != "", ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRepositoryActions(t *testing.T) {
	repo := repotest.New("r", map[string]string{
		".github/workflows/build.yml": `
jobs:
  build:
    steps:
      - uses: actions/checkout@v4
      - uses: gradle/actions/setup-gradle@v3
      - uses: ./.github/actions/local
  scan:
    uses: ministryofjustice/hmpps-github-actions/.github/workflows/scan.yml@v2
`,
		".github/actions/local/action.yaml": `
runs:
  steps:
    - uses: peter-evans/create-pull-request@v6
`,
		".github/dependabot.json": `{"uses": "ignored/file@v1"}`,
	})

	got, err := RepositoryActions(context.Background(), repo)
	require.NoError(t, err)
	assert.ElementsMatch(t, []Action{
		{Owner: "gradle", Repo: "actions/setup-gradle", Version: "v3"},
		{Owner: "peter-evans", Repo: "create-pull-request", Version: "v6"},
	}, got)

	got, err = RepositoryActions(context.Background(), repotest.New("r", map[string]string{"main.go": ""}))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseAction(t *testing.T) {
	a, ok := ParseAction("owner/repo@sha")
	assert.True(t, ok)
	assert.Equal(t, Action{Owner: "owner", Repo: "repo", Version: "sha"}, a)

	for _, bad := range []string{"docker://alpine:3", "noslash@v1", "owner/repo"} {
		_, ok := ParseAction(bad)
		assert.False(t, ok, bad)
	}
}

func TestParseTerraformTeams(t *testing.T) {
	tf := `
locals {
  parent_teams = [
    { name = "hmpps-developers" parent = "hmpps" description = "All developers" },
  ]
  sub_teams = [
    {
      name        = "hmpps-prisons"
      parent      = "hmpps-developers"
      description = "Prisons digital"
    },
  ]
}
`
	assert.Equal(t, []TerraformTeam{
		{Name: "hmpps-developers", Parent: "hmpps", Description: "All developers"},
		{Name: "hmpps-prisons", Parent: "hmpps-developers", Description: "Prisons digital"},
	}, ParseTerraformTeams(tf))
}

func TestParseBootstrapProjects(t *testing.T) {
	got, err := ParseBootstrapProjects([]byte(`[
  {"github_repo_name": "hmpps-a", "circleci_context_k8s_namespaces": [{"env_name": "dev", "namespace": "hmpps-a-dev"}]},
  {"name": "no-repo"}
]`))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, []BootstrapNamespace{{EnvName: "dev", Namespace: "hmpps-a-dev"}}, got["hmpps-a"].Namespaces)

	_, err = ParseBootstrapProjects([]byte(`{`))
	assert.Error(t, err)
}
