package jobs

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/alertmanager"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/github"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository/repotest"
)

type scheduledJob struct {
	name    string
	result  string
	details []string
}

type fakeCatalogue struct {
	mu      sync.Mutex
	connErr error

	components []catalogue.Component
	teams      []catalogue.GithubTeam
	products   []catalogue.Product

	componentUpdates map[string][]catalogue.ComponentUpdate
	addedTeams       []catalogue.GithubTeamData
	updatedTeams     map[string]catalogue.GithubTeamData
	deletedTeams     []string
	productUpdates   map[string]map[string]any
	jobs             []scheduledJob
}

func newFakeCatalogue() *fakeCatalogue {
	return &fakeCatalogue{
		componentUpdates: map[string][]catalogue.ComponentUpdate{},
		updatedTeams:     map[string]catalogue.GithubTeamData{},
		productUpdates:   map[string]map[string]any{},
	}
}

func (f *fakeCatalogue) TestConnection(context.Context) error { return f.connErr }

func (f *fakeCatalogue) Components(context.Context) ([]catalogue.Component, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]catalogue.Component, len(f.components))
	copy(out, f.components)
	return out, nil
}

func (f *fakeCatalogue) Component(_ context.Context, name string) (catalogue.Component, error) {
	for _, c := range f.components {
		if c.Name == name {
			return c, nil
		}
	}
	return catalogue.Component{}, errors.NewNotFoundError("components", name)
}

func (f *fakeCatalogue) UpdateComponent(_ context.Context, id string, u catalogue.ComponentUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.componentUpdates[id] = append(f.componentUpdates[id], u)
	return nil
}

func (f *fakeCatalogue) ProductDocumentID(_ context.Context, pid string) (string, error) {
	return "", errors.NewNotFoundError("products", pid)
}

func (f *fakeCatalogue) AddEnvironment(_ context.Context, d catalogue.EnvironmentData) (string, error) {
	return "env-" + d.Name, nil
}

func (f *fakeCatalogue) UpdateEnvironment(context.Context, string, catalogue.EnvironmentData) error {
	return nil
}

func (f *fakeCatalogue) DeleteEnvironment(context.Context, string) error { return nil }

func (f *fakeCatalogue) NamespaceDocumentID(_ context.Context, name string) (string, error) {
	return "ns-" + name, nil
}

func (f *fakeCatalogue) Teams(context.Context) ([]catalogue.GithubTeam, error) {
	return f.teams, nil
}

func (f *fakeCatalogue) AddTeam(_ context.Context, t catalogue.GithubTeamData) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.addedTeams = append(f.addedTeams, t)
	return "team-" + t.TeamName, nil
}

func (f *fakeCatalogue) UpdateTeam(_ context.Context, id string, t catalogue.GithubTeamData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updatedTeams[id] = t
	return nil
}

func (f *fakeCatalogue) DeleteTeam(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletedTeams = append(f.deletedTeams, id)
	sort.Strings(f.deletedTeams)
	return nil
}

func (f *fakeCatalogue) Products(context.Context) ([]catalogue.Product, error) {
	return f.products, nil
}

func (f *fakeCatalogue) UpdateProduct(_ context.Context, id string, fields map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.productUpdates[id] = fields
	return nil
}

func (f *fakeCatalogue) UpdateScheduledJob(_ context.Context, name, result string, details []string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jobs = append(f.jobs, scheduledJob{name: name, result: result, details: details})
	return nil
}

type fakeGitHub struct {
	connErr  error
	repos    map[string]*repotest.Fake
	teams    map[string]github.Team
	members  map[string][]string
	teamErrs map[string]error
}

func newFakeGitHub() *fakeGitHub {
	return &fakeGitHub{
		repos:    map[string]*repotest.Fake{},
		teams:    map[string]github.Team{},
		members:  map[string][]string{},
		teamErrs: map[string]error{},
	}
}

func (g *fakeGitHub) Repository(_ context.Context, name string) (repository.Handle, error) {
	repo, ok := g.repos[name]
	if !ok {
		return nil, errors.NewNotFoundError("repository", name)
	}
	return repo, nil
}

func (g *fakeGitHub) RateLimit(context.Context) (repository.RateLimit, error) {
	return repository.RateLimit{Limit: 5000, Remaining: 5000, Reset: time.Now().Add(time.Hour)}, nil
}

func (g *fakeGitHub) Reauthenticate(context.Context) error { return nil }
func (g *fakeGitHub) Authenticate(context.Context) error   { return nil }
func (g *fakeGitHub) TestConnection(context.Context) error { return g.connErr }

func (g *fakeGitHub) Team(_ context.Context, slug string) (github.Team, error) {
	if err := g.teamErrs[slug]; err != nil {
		return github.Team{}, err
	}
	t, ok := g.teams[slug]
	if !ok {
		return github.Team{}, errors.NewAPIError("github", 404, "Not Found")
	}
	return t, nil
}

func (g *fakeGitHub) TeamMembers(_ context.Context, slug string) ([]string, error) {
	return g.members[slug], nil
}

type fakeCircleCI struct {
	connErr error
}

func (c *fakeCircleCI) TestConnection(context.Context) error { return c.connErr }

func (c *fakeCircleCI) TrivyScan(context.Context, string) (map[string]any, error) {
	return nil, errors.NewNotFoundError("trivy scan", "")
}

type fakeAlertmanager struct {
	cfg *alertmanager.Config
	err error
}

func (a *fakeAlertmanager) Fetch(context.Context) (*alertmanager.Config, error) {
	return a.cfg, a.err
}

type fakeSlack struct {
	mu       sync.Mutex
	disabled bool
	notified []string
	alerts   []string
	channels map[string]string
}

func (s *fakeSlack) Enabled() bool { return !s.disabled }

func (s *fakeSlack) Notify(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified = append(s.notified, text)
	return nil
}

func (s *fakeSlack) Alert(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.alerts = append(s.alerts, text)
	return nil
}

func (s *fakeSlack) ChannelName(_ context.Context, id string) (string, error) {
	name, ok := s.channels[id]
	if !ok {
		return "", errors.NewAPIError("slack", 404, "channel_not_found")
	}
	return name, nil
}
