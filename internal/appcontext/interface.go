// Package appcontext provides the shared application context interface
// used by all commands, so commands can be tested without building real
// upstream clients.
package appcontext

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/server"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// Interface defines the application context interface that commands need.
// The App struct from cmd/discovery/app implements it.
type Interface interface {
	// Runner returns the job runner, building the upstream clients lazily.
	Runner() (*jobs.Runner, error)

	// Metrics returns the run metrics shared by every job of the process.
	Metrics() *jobs.Metrics

	// ServerConfig configures the health server of long-running jobs.
	ServerConfig() server.Config

	// RefreshInterval is the pause between runs of a long-running job.
	RefreshInterval() time.Duration

	// Logger returns the configured logger instance.
	Logger() *zerolog.Logger

	// OutputFormat returns the configured output format (json, yaml, table, etc).
	OutputFormat() string

	// Version returns the application version string.
	Version() string

	// Commit returns the git commit hash.
	Commit() string

	// Date returns the build date.
	Date() string

	// BuiltBy returns the build system identifier.
	BuiltBy() string
}
