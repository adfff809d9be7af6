package appcontext

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/server"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// Mock provides a mock implementation of Interface for testing.
// Each method can be customized by setting the corresponding function field.
// If a function field is nil, the method returns a default/zero value.
type Mock struct {
	RunnerFunc          func() (*jobs.Runner, error)
	MetricsFunc         func() *jobs.Metrics
	ServerConfigFunc    func() server.Config
	RefreshIntervalFunc func() time.Duration
	LoggerFunc          func() *zerolog.Logger
	OutputFormatFunc    func() string
	VersionFunc         func() string
	CommitFunc          func() string
	DateFunc            func() string
	BuiltByFunc         func() string
}

// Runner returns a runner using the mock function or nil.
func (m *Mock) Runner() (*jobs.Runner, error) {
	if m.RunnerFunc != nil {
		return m.RunnerFunc()
	}
	return nil, nil
}

// Metrics returns metrics using the mock function or nil.
func (m *Mock) Metrics() *jobs.Metrics {
	if m.MetricsFunc != nil {
		return m.MetricsFunc()
	}
	return nil
}

// ServerConfig returns a server config using the mock function or the defaults.
func (m *Mock) ServerConfig() server.Config {
	if m.ServerConfigFunc != nil {
		return m.ServerConfigFunc()
	}
	return server.DefaultConfig()
}

// RefreshInterval returns an interval using the mock function or zero.
func (m *Mock) RefreshInterval() time.Duration {
	if m.RefreshIntervalFunc != nil {
		return m.RefreshIntervalFunc()
	}
	return 0
}

// Logger returns a logger using the mock function or a no-op logger.
func (m *Mock) Logger() *zerolog.Logger {
	if m.LoggerFunc != nil {
		return m.LoggerFunc()
	}
	logger := zerolog.Nop()
	return &logger
}

// OutputFormat returns a format using the mock function or "json".
func (m *Mock) OutputFormat() string {
	if m.OutputFormatFunc != nil {
		return m.OutputFormatFunc()
	}
	return "json"
}

// Version returns a version using the mock function or "dev".
func (m *Mock) Version() string {
	if m.VersionFunc != nil {
		return m.VersionFunc()
	}
	return "dev"
}

// Commit returns a commit using the mock function or "unknown".
func (m *Mock) Commit() string {
	if m.CommitFunc != nil {
		return m.CommitFunc()
	}
	return "unknown"
}

// Date returns a date using the mock function or "unknown".
func (m *Mock) Date() string {
	if m.DateFunc != nil {
		return m.DateFunc()
	}
	return "unknown"
}

// BuiltBy returns a builder using the mock function or "unknown".
func (m *Mock) BuiltBy() string {
	if m.BuiltByFunc != nil {
		return m.BuiltByFunc()
	}
	return "unknown"
}

var _ Interface = (*Mock)(nil)
