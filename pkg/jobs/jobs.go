// Package jobs runs the discovery jobs end to end: upstream checks, the
// batch itself, the Slack summary, the scheduled-jobs record and metrics.
package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/alertmanager"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/github"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/components"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Catalogue is the service catalogue as used by the jobs.
type Catalogue interface {
	components.Catalogue

	TestConnection(ctx context.Context) error
	Components(ctx context.Context) ([]catalogue.Component, error)
	Component(ctx context.Context, name string) (catalogue.Component, error)

	Teams(ctx context.Context) ([]catalogue.GithubTeam, error)
	AddTeam(ctx context.Context, t catalogue.GithubTeamData) (string, error)
	UpdateTeam(ctx context.Context, documentID string, t catalogue.GithubTeamData) error
	DeleteTeam(ctx context.Context, documentID string) error

	Products(ctx context.Context) ([]catalogue.Product, error)
	UpdateProduct(ctx context.Context, documentID string, fields map[string]any) error

	UpdateScheduledJob(ctx context.Context, name, result string, errorDetails []string, at time.Time) error
}

// GitHub is the GitHub App client as used by the jobs.
type GitHub interface {
	components.GitHub
	dispatch.RateLimiter

	Authenticate(ctx context.Context) error
	TestConnection(ctx context.Context) error
	Team(ctx context.Context, slug string) (github.Team, error)
	TeamMembers(ctx context.Context, slug string) ([]string, error)
}

// CircleCI provides trivy scan results.
type CircleCI interface {
	components.TrivyScanner
	TestConnection(ctx context.Context) error
}

// Alertmanager provides the alert routing configuration.
type Alertmanager interface {
	Fetch(ctx context.Context) (*alertmanager.Config, error)
}

// Notifier posts summaries and alerts, and resolves Slack channel names.
type Notifier interface {
	Enabled() bool
	Notify(ctx context.Context, text string) error
	Alert(ctx context.Context, text string) error
	ChannelName(ctx context.Context, id string) (string, error)
}

// Services are the upstreams of a Runner. Only Catalogue and Slack are
// needed by every kind; the others may be nil for kinds that do not use them.
type Services struct {
	Catalogue    Catalogue
	GitHub       GitHub
	CircleCI     CircleCI
	Alertmanager Alertmanager
	Slack        Notifier
	Prober       facts.Prober
}

// Request selects what to run.
type Request struct {
	Kind Kind
	// Force runs the full discovery path for every component.
	Force bool
	// Component names the component for the Component kind.
	Component string
}

// Report is the outcome of a run.
type Report struct {
	Kind     Kind
	Job      string
	RunID    string
	Started  time.Time
	Finished time.Time
	// Result is the scheduled-jobs result, empty for kinds that do not
	// record one.
	Result  string
	Results []dispatch.Result
	// Products is the number of products processed.
	Products int
	// DuplicateRoles maps app insights cloud role names used by more than
	// one component to those components.
	DuplicateRoles map[string][]string
	Summary        string
	Errors         []string
}

// Count is the number of results carrying flag.
func (r *Report) Count(flag string) int {
	n := 0
	for _, res := range r.Results {
		if res.Flags.Has(flag) {
			n++
		}
	}
	return n
}

// Runner runs jobs against a fixed set of upstreams.
type Runner struct {
	svc      Services
	workers  int
	gateOpts []dispatch.GateOption
	metrics  *Metrics
	pushURL  string
	now      func() time.Time
}

// Option configures a Runner.
type Option func(*Runner)

// WithWorkers sets the worker ceiling of batch runs.
func WithWorkers(n int) Option {
	return func(r *Runner) { r.workers = n }
}

// WithGateOptions configures the rate limit gate used by batch runs.
func WithGateOptions(opts ...dispatch.GateOption) Option {
	return func(r *Runner) { r.gateOpts = opts }
}

// WithMetrics records run metrics.
func WithMetrics(m *Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithPushgateway pushes the run metrics to a Prometheus Pushgateway at
// the end of every run.
func WithPushgateway(url string) Option {
	return func(r *Runner) { r.pushURL = url }
}

// WithClock replaces the clock used for scheduled-jobs timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// New creates a Runner.
func New(svc Services, opts ...Option) *Runner {
	r := &Runner{svc: svc, workers: constants.MaxWorkers, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	if r.workers <= 0 || r.workers > constants.MaxWorkers {
		r.workers = constants.MaxWorkers
	}
	return r
}

// run is the state of one job run.
type run struct {
	*Runner
	req      Request
	report   *Report
	recorder *logging.ErrorRecorder
	// alerts is nil when Alertmanager could not be read.
	alerts facts.AlertRouting
}

var runners = [...]func(*run, context.Context) error{
	Discovery: (*run).discovery,
	Component: (*run).component,
	Security:  (*run).security,
	Teams:     (*run).teams,
	Products:  (*run).productsJob,
	Workflows: (*run).workflows,
}

// Run executes a job. Only an unreachable required upstream is returned as
// an error; everything else is logged, counted against the run, and
// reflected in the scheduled-jobs result.
func (r *Runner) Run(ctx context.Context, req Request) (*Report, error) {
	if !req.Kind.valid() {
		return nil, errors.NewValidationError("job", req.Kind.String(), "unknown job kind")
	}
	report := &Report{
		Kind:    req.Kind,
		Job:     req.Kind.JobName(req.Force),
		RunID:   uuid.NewString(),
		Started: r.now(),
	}
	recorder := logging.NewErrorRecorder()
	logger := recorder.Attach(*logging.FromContext(ctx))
	ctx = logging.WithJob(logging.WithLogger(ctx, &logger), report.Job, report.RunID)
	log := logging.FromContext(ctx)

	x := &run{Runner: r, req: req, report: report, recorder: recorder}
	log.Info().Str("kind", req.Kind.String()).Bool("force", req.Force).Msg("job started")

	if err := x.preflight(ctx); err != nil {
		x.finish(ctx, catalogue.ResultFailed, !errors.Is(err, errCatalogueUnavailable))
		return report, err
	}
	if err := runners[req.Kind](x, ctx); err != nil {
		x.finish(ctx, catalogue.ResultFailed, true)
		return report, err
	}

	result := catalogue.ResultSucceeded
	if recorder.Len() > 0 {
		result = catalogue.ResultErrors
	}
	x.finish(ctx, result, true)
	if result == catalogue.ResultErrors {
		log.Info().Int("errors", recorder.Len()).Msg(req.Kind.Title() + " job completed with errors")
	} else {
		log.Info().Msg(req.Kind.Title() + " job completed successfully")
	}
	return report, nil
}

var errCatalogueUnavailable = errors.New("service catalogue unavailable")

// preflight checks the upstreams the kind needs. The catalogue and GitHub
// are always fatal, CircleCI is fatal where trivy results are collected,
// and an unreadable Alertmanager only raises an alert.
func (x *run) preflight(ctx context.Context) error {
	log := logging.FromContext(ctx)
	needs := kindRequirements[x.req.Kind]
	title := x.req.Kind.Title()

	if err := x.svc.Catalogue.TestConnection(ctx); err != nil {
		x.alert(ctx, fmt.Sprintf("*%s failed*: Unable to connect to the Service Catalogue", title))
		log.Error().Err(err).Msg("unable to connect to the service catalogue")
		return fmt.Errorf("%w: %w", errCatalogueUnavailable, err)
	}

	if needs.github {
		if err := x.connectGitHub(ctx); err != nil {
			msg := fmt.Sprintf("*%s failed*: Unable to connect to Github", title)
			x.alert(ctx, msg)
			log.Error().Err(err).Msg(msg)
			return err
		}
	}

	if needs.circleci {
		var err error = errors.NewConfigError("circleci", "no client configured", nil)
		if x.svc.CircleCI != nil {
			err = x.svc.CircleCI.TestConnection(ctx)
		}
		if err != nil {
			msg := fmt.Sprintf("*%s failed*: Unable to connect to CircleCI", title)
			x.alert(ctx, msg)
			log.Error().Err(err).Msg(msg)
			return err
		}
	}

	if needs.alerts {
		x.alerts = x.alertRouting(ctx)
	}
	return nil
}

func (x *run) connectGitHub(ctx context.Context) error {
	if x.svc.GitHub == nil {
		return errors.NewConfigError("github", "no client configured", nil)
	}
	if err := x.svc.GitHub.Authenticate(ctx); err != nil {
		return err
	}
	return x.svc.GitHub.TestConnection(ctx)
}

// alertRouting reads the Alertmanager configuration. The result is nil,
// never a typed nil, when it cannot be read.
func (x *run) alertRouting(ctx context.Context) facts.AlertRouting {
	msg := fmt.Sprintf("*%s*: Unable to connect to Alertmanager", x.req.Kind.Title())
	if x.svc.Alertmanager == nil {
		x.alert(ctx, msg)
		logging.FromContext(ctx).Error().Msg(msg)
		return nil
	}
	cfg, err := x.svc.Alertmanager.Fetch(ctx)
	if err != nil || cfg == nil {
		x.alert(ctx, msg)
		logging.FromContext(ctx).Error().Err(err).Msg(msg)
		return nil
	}
	return cfg
}

func (x *run) alert(ctx context.Context, text string) {
	if x.svc.Slack == nil {
		return
	}
	if err := x.svc.Slack.Alert(ctx, text); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("unable to send slack alert")
	}
}

func (x *run) notify(ctx context.Context, summary string) {
	logging.FromContext(ctx).Info().Msg(summary)
	if x.svc.Slack == nil {
		return
	}
	if err := x.svc.Slack.Notify(ctx, summary); err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("unable to send slack notification")
	}
}

// finish records the result on the scheduled-jobs record and in metrics.
func (x *run) finish(ctx context.Context, result string, record bool) {
	x.report.Finished = x.now()
	if x.req.Kind.records() {
		x.report.Result = result
		if record {
			x.scheduledJob(ctx, result)
		}
	}
	x.report.Errors = x.recorder.Messages()

	if x.metrics != nil {
		x.metrics.Observe(x.report)
		if x.pushURL != "" {
			if err := x.metrics.Push(ctx, x.pushURL, x.report.Job); err != nil {
				logging.FromContext(ctx).Warn().Err(err).Str("url", x.pushURL).Msg("unable to push metrics")
			}
		}
	}
}

func (x *run) scheduledJob(ctx context.Context, result string) {
	err := x.svc.Catalogue.UpdateScheduledJob(ctx, x.report.Job, result, x.recorder.Messages(), x.report.Finished)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Str("result", result).Msg("unable to update scheduled job")
	}
}

// batch runs work over every component with the dispatcher.
func (x *run) batch(ctx context.Context, comps []catalogue.Component, work dispatch.Work[catalogue.Component]) []dispatch.Result {
	logging.FromContext(ctx).Info().Int("components", len(comps)).Msg("processing batch of components")
	gate := dispatch.NewGate(x.svc.GitHub, x.gateOpts...)
	d := dispatch.New(x.workers, gate)
	return dispatch.Run(ctx, d, comps, components.Name, work).All()
}

// components lists the components to process, logging on failure.
func (x *run) components(ctx context.Context) ([]catalogue.Component, bool) {
	comps, err := x.svc.Catalogue.Components(ctx)
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).Msg("unable to list components from the service catalogue")
		return nil, false
	}
	return comps, true
}

// processor builds the component processor for this run.
func (x *run) processor(ctx context.Context, withBootstrap bool, opts ...components.Option) *components.Processor {
	svc := components.Services{
		Catalogue: x.svc.Catalogue,
		GitHub:    x.svc.GitHub,
		CircleCI:  x.svc.CircleCI,
		Alerts:    x.alerts,
		Prober:    x.svc.Prober,
	}
	if withBootstrap {
		svc.Bootstrap = x.bootstrap(ctx)
	}
	return components.NewProcessor(svc, opts...)
}

// bootstrap reads the legacy project list. Nil means unknown, which keeps
// environments from being removed during the run.
func (x *run) bootstrap(ctx context.Context) map[string]facts.BootstrapProject {
	log := logging.FromContext(ctx).With().Str("repo", constants.BootstrapRepo).Logger()
	repo, err := x.svc.GitHub.Repository(ctx, constants.BootstrapRepo)
	if err != nil {
		log.Error().Err(err).Msg("unable to access the bootstrap repository")
		return nil
	}
	content, err := repo.File(ctx, facts.BootstrapProjectsPath)
	if err != nil {
		log.Error().Err(err).Msg("unable to read " + facts.BootstrapProjectsPath)
		return nil
	}
	projects, err := facts.ParseBootstrapProjects(content)
	if err != nil {
		log.Error().Err(err).Msg("unable to parse " + facts.BootstrapProjectsPath)
		return nil
	}
	log.Info().Int("projects", len(projects)).Msg("read bootstrap projects")
	return projects
}
