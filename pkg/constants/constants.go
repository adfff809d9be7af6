// Package constants provides shared constants used throughout the discovery
// jobs: timeouts, limits, catalogue table names and upstream defaults.
package constants

import "time"

// Timeout constants.
const (
	// DefaultHTTPTimeout is the standard timeout for catalogue, GitHub and CircleCI calls.
	DefaultHTTPTimeout = 30 * time.Second

	// AlertmanagerTimeout bounds the single Alertmanager status fetch.
	AlertmanagerTimeout = 5 * time.Second

	// ProbeTimeout bounds each unauthenticated endpoint probe.
	ProbeTimeout = 10 * time.Second

	// RetryBackoff is the base backoff duration for retries.
	RetryBackoff = 1 * time.Second

	// MaxRetryBackoff is the maximum backoff duration for retries.
	MaxRetryBackoff = 30 * time.Second

	// RateLimitGrace is added to the GitHub reset time before resuming work.
	RateLimitGrace = 10 * time.Second

	// AppJWTExpiry is the lifetime of the GitHub App JWT.
	AppJWTExpiry = 10 * time.Minute

	// DefaultRefreshInterval is how often the long-running teams job repeats.
	DefaultRefreshInterval = 6 * time.Hour
)

// Limit constants.
const (

	// MaxWorkers is the concurrency ceiling for per-component workers.
	MaxWorkers = 10

	// RateLimitFloor is the remaining GitHub quota below which dispatch pauses.
	RateLimitFloor = 500

	// CataloguePageSize is the page size used when listing catalogue tables.
	CataloguePageSize = 10

	// GitHubPageSize is the page size used for GitHub list endpoints.
	GitHubPageSize = 100

	// SlackRequestsPerSecond paces Slack Web API lookups.
	SlackRequestsPerSecond = 1
)

// Cache constants.
const (
	// FileCacheTTL is how long fetched repository files are reused within a run.
	FileCacheTTL = 30 * time.Minute

	// FileCacheCleanupInterval is how often expired file cache entries are purged.
	FileCacheCleanupInterval = 10 * time.Minute
)

// Catalogue tables.
const (
	TableComponents    = "components"
	TableEnvironments  = "environments"
	TableProducts      = "products"
	TableGithubTeams   = "github-teams"
	TableScheduledJobs = "scheduled-jobs"
	TableNamespaces    = "namespaces"
)

// Upstream defaults.
const (
	DefaultGitHubOrg            = "ministryofjustice"
	DefaultGitHubAPIURL         = "https://api.github.com/"
	DefaultCircleCIEndpoint     = "https://circleci.com/api/v1.1/project/gh/ministryofjustice/"
	DefaultAlertmanagerEndpoint = "http://monitoring-alerts-service.cloud-platform-monitoring-alerts:8080/alertmanager/status"
	DefaultHealthAddr           = ":8080"

	// BootstrapRepo holds projects.json with the legacy namespace mapping.
	BootstrapRepo = "hmpps-project-bootstrap"

	// TeamsRepo holds the Terraform team definitions.
	TeamsRepo = "hmpps-github-teams"

	// TeamsTerraformPath is the team definition file inside TeamsRepo.
	TeamsTerraformPath = "terraform/teams.tf"

	// ProbeUserAgent identifies endpoint probes in service access logs.
	ProbeUserAgent = "hmpps-service-discovery"

	// RepositoryURL is linked from run summaries.
	RepositoryURL = "https://github.com/ministryofjustice/hmpps-github-discovery"
)
