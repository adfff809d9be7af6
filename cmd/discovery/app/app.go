// Package app provides the application context and dependency management
// for the discovery CLI: configuration, logging, and the lazily built
// upstream clients shared by every command.
package app

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/alertmanager"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/appcontext"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/circleci"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/github"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/server"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/slack"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/transport"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// App represents the discovery application with all its dependencies.
type App struct {
	// Version information
	version string
	commit  string
	date    string
	builtBy string

	config  *Config
	logger  *zerolog.Logger
	metrics *jobs.Metrics

	// Runner instance (lazy-initialized, singleton)
	mu     sync.RWMutex
	runner *jobs.Runner
}

// New creates a new App instance with the given version information.
// The app is initialized with configuration from the environment that can
// be customized using functional options.
func New(version, commit, date, builtBy string, opts ...Option) (*App, error) {
	app := &App{
		version: version,
		commit:  commit,
		date:    date,
		builtBy: builtBy,
		metrics: jobs.NewMetrics(),
	}

	config, err := LoadConfig("")
	if err != nil {
		return nil, errors.WrapResource("load", "config", "", err)
	}
	app.config = config

	logger := NewLogger(config)
	app.logger = &logger

	for _, opt := range opts {
		if err := opt(app); err != nil {
			return nil, err
		}
	}

	return app, nil
}

// Version returns the version information.
func (a *App) Version() string {
	return a.version
}

// Commit returns the git commit hash.
func (a *App) Commit() string {
	return a.commit
}

// Date returns the build date.
func (a *App) Date() string {
	return a.date
}

// BuiltBy returns the build system identifier.
func (a *App) BuiltBy() string {
	return a.builtBy
}

// Config returns the application configuration.
func (a *App) Config() *Config {
	return a.config
}

// Logger returns the application logger.
func (a *App) Logger() *zerolog.Logger {
	return a.logger
}

// OutputFormat returns the report format chosen with --format.
func (a *App) OutputFormat() string {
	return a.config.Format
}

// Metrics returns the run metrics of the process.
func (a *App) Metrics() *jobs.Metrics {
	return a.metrics
}

// ServerConfig configures the health server of teams --serve.
func (a *App) ServerConfig() server.Config {
	cfg := server.DefaultConfig()
	if a.config.HealthAddr != "" {
		cfg.Addr = a.config.HealthAddr
	}
	return cfg
}

// RefreshInterval is the pause between teams --serve runs.
func (a *App) RefreshInterval() time.Duration {
	return a.config.RefreshInterval
}

// Runner returns the job runner, creating it lazily if needed.
// This is thread-safe and ensures only one instance is created.
func (a *App) Runner() (*jobs.Runner, error) {
	a.mu.RLock()
	if a.runner != nil {
		r := a.runner
		a.mu.RUnlock()
		return r, nil
	}
	a.mu.RUnlock()

	a.mu.Lock()
	defer a.mu.Unlock()

	// Double-check after acquiring write lock
	if a.runner != nil {
		return a.runner, nil
	}

	if err := a.config.Validate(); err != nil {
		return nil, err
	}
	svc, err := a.services()
	if err != nil {
		return nil, errors.WrapResource("create", "upstream clients", "", err)
	}

	a.runner = jobs.New(svc,
		jobs.WithWorkers(a.config.MaxThreads),
		jobs.WithMetrics(a.metrics),
		jobs.WithPushgateway(a.config.PushgatewayURL),
	)
	return a.runner, nil
}

// services builds the upstream clients. GitHub and CircleCI are left nil
// when they are not configured, which fails only the jobs that need them.
func (a *App) services() (jobs.Services, error) {
	cfg := a.config
	topts := []transport.Option{transport.WithUserAgent("hmpps-github-discovery/" + a.version)}

	svc := jobs.Services{
		Catalogue:    catalogue.New(cfg.Catalogue, topts...),
		Alertmanager: alertmanager.New(cfg.AlertmanagerEndpoint, topts...),
		Slack:        slack.New(cfg.Slack),
		Prober:       facts.NewHTTPProber(),
	}

	if err := validate.Struct(cfg.GitHub); err != nil {
		a.logger.Debug().Err(err).Msg("github app not configured")
	} else {
		gh, err := github.New(cfg.GitHub, github.WithTransportOptions(topts...))
		if err != nil {
			return svc, err
		}
		svc.GitHub = gh
	}

	if err := validate.Struct(cfg.CircleCI); err != nil {
		a.logger.Debug().Err(err).Msg("circleci not configured")
	} else {
		svc.CircleCI = circleci.New(cfg.CircleCI, topts...)
	}

	return svc, nil
}

// Option is a functional option for configuring the App.
type Option func(*App) error

// WithConfig sets a custom configuration.
func WithConfig(config *Config) Option {
	return func(a *App) error {
		a.config = config
		return nil
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *zerolog.Logger) Option {
	return func(a *App) error {
		a.logger = logger
		return nil
	}
}

// WithRunner sets a custom runner (useful for testing).
func WithRunner(r *jobs.Runner) Option {
	return func(a *App) error {
		a.runner = r
		return nil
	}
}

var _ appcontext.Interface = (*App)(nil)
