package components

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository/repotest"
)

type fakeCatalogue struct {
	mu       sync.Mutex
	updates  map[string][]catalogue.ComponentUpdate
	added    []catalogue.EnvironmentData
	updated  []catalogue.EnvironmentData
	deleted  []string
	products map[string]string
	failAll  bool
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		updates:  map[string][]catalogue.ComponentUpdate{},
		products: map[string]string{"DPS001": "product-doc-1"},
	}
}

func (f *fakeCatalogue) UpdateComponent(_ context.Context, id string, u catalogue.ComponentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAll {
		return errors.NewAPIError("service-catalogue", 500, "internal error")
	}
	f.updates[id] = append(f.updates[id], u)
	return nil
}

func (f *fakeCatalogue) ProductDocumentID(_ context.Context, pid string) (string, error) {
	if id, ok := f.products[pid]; ok {
		return id, nil
	}
	return "", errors.NewNotFoundError("products", pid)
}

func (f *fakeCatalogue) AddEnvironment(_ context.Context, d catalogue.EnvironmentData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.added = append(f.added, d)
	return "env-" + d.Name, nil
}

func (f *fakeCatalogue) UpdateEnvironment(_ context.Context, _ string, d catalogue.EnvironmentData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updated = append(f.updated, d)
	return nil
}

func (f *fakeCatalogue) DeleteEnvironment(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeCatalogue) NamespaceDocumentID(_ context.Context, name string) (string, error) {
	return "ns-" + name, nil
}

func (f *fakeCatalogue) last(t *testing.T, id string) catalogue.ComponentUpdate {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.updates[id], "no update written for %s", id)
	return f.updates[id][len(f.updates[id])-1]
}

type fakeGitHub map[string]*repotest.Fake

func (g fakeGitHub) Repository(_ context.Context, name string) (repository.Handle, error) {
	repo, ok := g[name]
	if !ok {
		return nil, errors.NewNotFoundError("repository", name)
	}
	return repo, nil
}

type fakeTrivy struct {
	results map[string]any
	err     error
	calls   int
}

func (f *fakeTrivy) TrivyScan(context.Context, string) (map[string]any, error) {
	f.calls++
	return f.results, f.err
}

var committed = time.Date(2024, 6, 3, 9, 30, 0, 0, time.UTC)

// kotlinAPI is a single-project repository deploying dev and prod.
func kotlinAPI() *repotest.Fake {
	repo := repotest.New("hmpps-example-api", map[string]string{
		"helm_deploy/hmpps-example-api/values.yaml": "generic-service:\n  productId: DPS001\n  image:\n    repository: ghcr.io/ministryofjustice/hmpps-example-api\n  ingress:\n    modsecurity_enabled: true\n",
		"helm_deploy/hmpps-example-api/Chart.yaml":  "dependencies:\n  - name: generic-service\n    version: 3.2.1\n",
		"helm_deploy/values-dev.yaml":               "generic-service:\n  ingress:\n    host: a.dev.example.com\n",
		"helm_deploy/values-prod.yaml":              "generic-service:\n  ingress:\n    host: a.example.com\n",
		"build.gradle.kts":                          "plugins {\n  id(\"uk.gov.justice.hmpps.gradle-spring-boot\") version \"6.0.1\"\n}\n",
		"Dockerfile":                                "FROM eclipse-temurin:21-jre-jammy AS base\nFROM base\n",
		"applicationinsights.json":                  `{"role": {"name": "hmpps-example-api"}}`,
	})
	repo.Meta.Language = "Kotlin"
	repo.Meta.Description = "Example API"
	repo.Meta.Visibility = "public"
	repo.Commit = repository.Commit{SHA: "new-sha", Date: committed}
	repo.Access = repository.TeamAccess{Admin: []string{"hmpps-sre"}, Write: []string{"example-devs"}}
	repo.Protection = &repository.Protection{RestrictedTeams: []string{"hmpps-sre"}, EnforceAdmins: true}
	repo.Envs = []repository.Environment{
		{Name: "dev", Namespace: "hmpps-example-dev"},
		{Name: "prod", Namespace: "hmpps-example-prod"},
	}
	repo.WorkflowList = []repository.Workflow{
		{Name: "pipeline", State: "active"},
		{Name: "nightly", State: "disabled_manually"},
	}
	return repo
}

func component(sha string, envs ...string) catalogue.Component {
	c := catalogue.Component{
		Record:     catalogue.Record{DocumentID: "comp-1"},
		Name:       "hmpps-example-api",
		GithubRepo: "hmpps-example-api",
	}
	if sha != "" {
		c.LatestCommit = &catalogue.Commit{SHA: sha}
	}
	for _, name := range envs {
		c.Envs = append(c.Envs, catalogue.Environment{Record: catalogue.Record{DocumentID: "env-" + name}, Name: name})
	}
	return c
}

func newProcessor(cat *fakeCatalogue, gh fakeGitHub, trivy TrivyScanner, opts ...Option) *Processor {
	return NewProcessor(Services{
		Catalogue: cat,
		GitHub:    gh,
		CircleCI:  trivy,
		Bootstrap: map[string]facts.BootstrapProject{},
	}, opts...)
}

func TestDiscoverRepositoryNotFound(t *testing.T) {
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{}, nil)

	flags := p.Discover(context.Background(), component("abc"))

	assert.Equal(t, []string{FlagNotFound}, flags.Names())
	assert.Empty(t, cat.updates)
}

func TestDiscoverUnchangedRefreshesIndependentFieldsOnly(t *testing.T) {
	repo := kotlinAPI()
	repo.Commit.SHA = "same-sha"
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil)

	flags := p.Discover(context.Background(), component("same-sha", "dev", "prod"))

	assert.False(t, flags.Has(FlagMainChanged))
	assert.False(t, flags.Has(FlagEnvChanged))
	assert.Zero(t, repo.Reads("helm_deploy/values-dev.yaml"), "values files are only read on the changed path")
	assert.Zero(t, repo.Reads("Dockerfile"))
	assert.Empty(t, cat.added)

	u := cat.last(t, "comp-1")
	assert.Equal(t, "Kotlin", *u.Language)
	assert.Equal(t, "public", *u.GithubProjectVisibility)
	assert.Equal(t, &catalogue.Commit{SHA: "same-sha", DateTime: "2024-06-03T09:30:00Z"}, u.LatestCommit)
	assert.Equal(t, []string{"hmpps-sre"}, *u.TeamsAdmin)
	assert.Equal(t, []string{}, *u.TeamsMaintain)
	assert.Equal(t, []string{"hmpps-sre"}, *u.BranchProtectionRestrictedTeams)
	assert.True(t, *u.EnforceAdminsEnabled)
	assert.Equal(t, []string{"nightly"}, *u.DisabledWorkflows)
	assert.True(t, flags.Has(FlagWorkflowsDisabled))
	assert.Nil(t, u.Versions)
	assert.Nil(t, u.ContainerImage)
}

func TestDiscoverChangedCommitReconciles(t *testing.T) {
	repo := kotlinAPI()
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil)

	flags := p.Discover(context.Background(), component("old-sha"))

	assert.True(t, flags.Has(FlagMainChanged))
	assert.True(t, flags.Has(FlagEnvChanged))
	assert.True(t, flags.Has(FlagEnvAdded))
	assert.False(t, flags.Has(FlagUpdateError))

	u := cat.last(t, "comp-1")
	assert.Equal(t, "ghcr.io/ministryofjustice/hmpps-example-api", *u.ContainerImage)
	assert.Equal(t, "product-doc-1", *u.Product)
	assert.Equal(t, "hmpps-example-api", *u.AppInsightsCloudRoleName)
	assert.Equal(t, map[string]any{"ref": "3.2.1", "path": "helm_deploy/hmpps-example-api/Chart.yaml"},
		u.Versions[facts.VersionsHelm].(map[string]any)["generic-service"])
	assert.Equal(t, map[string]any{"ref": "6.0.1", "path": "build.gradle.kts"},
		u.Versions[facts.VersionsGradle].(map[string]any)["hmpps_gradle_spring_boot"])
	assert.Contains(t, u.Versions, facts.VersionsDockerfile)

	require.Len(t, cat.added, 2)
	urls := map[string]string{}
	for _, env := range cat.added {
		urls[env.Name] = *env.URL
		assert.True(t, *env.ModsecurityEnabled)
		assert.Equal(t, "comp-1", *env.Component)
	}
	assert.Equal(t, map[string]string{"dev": "https://a.dev.example.com", "prod": "https://a.example.com"}, urls)
}

func TestDiscoverTrivyFailureIsNotFatal(t *testing.T) {
	tl := logging.NewTestLogger(t)
	ctx := logging.WithLogger(context.Background(), tl.Logger)

	repo := kotlinAPI()
	repo.Files[facts.CircleCIConfigPath] = "orbs:\n  hmpps: ministryofjustice/hmpps@9.1.0\n"
	trivy := &fakeTrivy{err: errors.NewAPIError("circleci", 500, "internal error")}
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, trivy)

	flags := p.Discover(ctx, component("old-sha"))

	assert.False(t, flags.Has(FlagUpdateError))
	assert.Equal(t, 1, trivy.calls)
	u := cat.last(t, "comp-1")
	assert.Nil(t, u.TrivyScanSummary)
	assert.Nil(t, u.TrivyLastCompletedScanDate)
	assert.Equal(t, map[string]any{"ref": "9.1.0", "path": facts.CircleCIConfigPath},
		u.Versions[facts.VersionsCircleCI].(map[string]any)["hmpps_orb"])

	var warnings int
	for _, line := range tl.Lines() {
		if strings.Contains(line, `"level":"warn"`) && strings.Contains(line, "trivy") {
			warnings++
		}
	}
	assert.Equal(t, 1, warnings)
}

func TestDiscoverTrivyResults(t *testing.T) {
	repo := kotlinAPI()
	repo.Files[facts.CircleCIConfigPath] = "version: 2.1\n"
	trivy := &fakeTrivy{results: map[string]any{"CreatedAt": "2024-06-01T02:00:00Z", "Results": []any{}}}
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, trivy)

	p.Discover(context.Background(), component("old-sha"))

	u := cat.last(t, "comp-1")
	assert.Equal(t, trivy.results, u.TrivyScanSummary)
	assert.Equal(t, "2024-06-01T02:00:00Z", *u.TrivyLastCompletedScanDate)
}

func TestDiscoverSkipsTrivyWithoutCircleCIConfig(t *testing.T) {
	trivy := &fakeTrivy{}
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": kotlinAPI()}, trivy)

	p.Discover(context.Background(), component("old-sha"))
	assert.Zero(t, trivy.calls)
}

func TestDiscoverIsIdempotent(t *testing.T) {
	repo := kotlinAPI()
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil, WithForce(true))

	c := component("new-sha")
	p.Discover(context.Background(), c)
	require.Len(t, cat.added, 2)

	first := cat.last(t, "comp-1")
	c.Versions = first.Versions
	for _, d := range cat.added {
		fields, err := d.Fields()
		require.NoError(t, err)
		c.Envs = append(c.Envs, catalogue.Environment{
			Record: catalogue.Record{DocumentID: "env-" + d.Name},
			Name:   d.Name,
			Raw:    fields,
		})
	}
	cat.added = nil

	p.Discover(context.Background(), c)
	assert.Empty(t, cat.added)
	assert.Empty(t, cat.updated)
	assert.Empty(t, cat.deleted)
	assert.Nil(t, cat.last(t, "comp-1").Versions, "unchanged versions are not rewritten")
}

func TestDiscoverRemovesEnvironmentsNoLongerDeployed(t *testing.T) {
	repo := kotlinAPI()
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil)

	flags := p.Discover(context.Background(), component("new-sha", "dev", "prod", "preprod"))

	assert.True(t, flags.Has(FlagEnvChanged))
	assert.True(t, flags.Has(FlagEnvRemoved))
	assert.Equal(t, []string{"env-preprod"}, cat.deleted)
}

func TestDiscoverKeepsEnvironmentsWhenBootstrapUnknown(t *testing.T) {
	repo := kotlinAPI()
	cat := newFakeCatalogue()
	p := NewProcessor(Services{Catalogue: cat, GitHub: fakeGitHub{"hmpps-example-api": repo}})

	p.Discover(context.Background(), component("new-sha", "dev", "prod", "preprod"))
	assert.Empty(t, cat.deleted)
}

func TestDiscoverArchivedShortCircuits(t *testing.T) {
	repo := kotlinAPI()
	repo.Meta.Archived = true
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil, WithForce(true))

	flags := p.Discover(context.Background(), component("old-sha"))

	assert.True(t, flags.Has(FlagArchived))
	assert.False(t, flags.Has(FlagMainChanged))
	assert.Empty(t, cat.added)
	u := cat.last(t, "comp-1")
	assert.Equal(t, "[ARCHIVED] Example API", *u.Description)
	assert.True(t, *u.Archived)
}

func TestDiscoverBranchNotProtected(t *testing.T) {
	repo := kotlinAPI()
	repo.Protection = nil
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil)

	flags := p.Discover(context.Background(), component("new-sha", "dev", "prod"))

	assert.True(t, flags.Has(FlagBranchProtectionDisabled))
	assert.False(t, flags.Has(FlagAppDisabled))
	u := cat.last(t, "comp-1")
	assert.Equal(t, []string{}, *u.BranchProtectionRestrictedTeams)
	assert.False(t, *u.EnforceAdminsEnabled)
	assert.Equal(t, []string{"example-devs"}, *u.TeamsWrite)
}

func TestDiscoverAppDisabled(t *testing.T) {
	repo := kotlinAPI()
	repo.Errors["HeadCommit"] = errors.NewAPIError("github", 403, "Resource not accessible by integration")
	cat := newFakeCatalogue()
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": repo}, nil)

	flags := p.Discover(context.Background(), component("old-sha", "dev", "prod"))

	assert.True(t, flags.Has(FlagAppDisabled))
	assert.False(t, flags.Has(FlagMainChanged), "an unknown head commit is not a change")
	u := cat.last(t, "comp-1")
	assert.Nil(t, u.LatestCommit)
	assert.Nil(t, u.TeamsAdmin)
}

func TestDiscoverUpdateError(t *testing.T) {
	cat := newFakeCatalogue()
	cat.failAll = true
	p := newProcessor(cat, fakeGitHub{"hmpps-example-api": kotlinAPI()}, nil)

	flags := p.Discover(context.Background(), component("new-sha", "dev", "prod"))
	assert.True(t, flags.Has(FlagUpdateError))
}

func TestFrontendHeuristic(t *testing.T) {
	tests := []struct {
		name        string
		description string
		want        bool
	}{
		{"hmpps-prisoner-profile", "Frontend for the prisoner profile", true},
		{"hmpps-manage-users-ui", "", true},
		{"hmpps-book-a-video", "User Interface to book video links", true},
		{"hmpps-auth", "OAuth2 server", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := kotlinAPI()
			repo.Meta.Description = tt.description
			cat := newFakeCatalogue()
			p := newProcessor(cat, fakeGitHub{tt.name: repo}, nil)

			c := component("new-sha", "dev", "prod")
			c.Name, c.GithubRepo = tt.name, tt.name
			p.Discover(context.Background(), c)

			u := cat.last(t, "comp-1")
			if tt.want {
				require.NotNil(t, u.Frontend)
				assert.True(t, *u.Frontend)
			} else {
				assert.Nil(t, u.Frontend)
			}
		})
	}
}
