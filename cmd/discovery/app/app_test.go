package app

import (
	"context"
	"encoding/base64"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// TestApp_New verifies app initialization.
func TestApp_New(t *testing.T) {
	app, err := New("1.0.0", "abc123", "2024-01-01", "test")
	require.NoError(t, err)

	assert.Equal(t, "1.0.0", app.Version())
	assert.Equal(t, "abc123", app.Commit())
	assert.Equal(t, "2024-01-01", app.Date())
	assert.Equal(t, "test", app.BuiltBy())
	assert.NotNil(t, app.Logger())
	assert.NotNil(t, app.Config())
	assert.NotNil(t, app.Metrics())
	assert.Equal(t, ":8080", app.ServerConfig().Addr)
}

// TestApp_Runner_RequiresCatalogue verifies no runner is built without the
// service catalogue settings.
func TestApp_Runner_RequiresCatalogue(t *testing.T) {
	t.Setenv("SERVICE_CATALOGUE_API_ENDPOINT", "")
	t.Setenv("SERVICE_CATALOGUE_API_KEY", "")
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	require.NoError(t, err)

	_, err = app.Runner()
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// TestApp_Runner_Singleton verifies that Runner() returns the same instance,
// also under concurrent calls.
func TestApp_Runner_Singleton(t *testing.T) {
	setCatalogueEnv(t)
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	const goroutines = 50
	var wg sync.WaitGroup
	runners := make([]*jobs.Runner, goroutines)
	for i := range goroutines {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			r, err := app.Runner()
			assert.NoError(t, err)
			runners[idx] = r
		}(i)
	}
	wg.Wait()

	for i := 1; i < goroutines; i++ {
		assert.Same(t, runners[0], runners[i])
	}
}

// TestApp_Runner_InvalidGitHubKey verifies a configured but unusable App
// key is reported rather than ignored.
func TestApp_Runner_InvalidGitHubKey(t *testing.T) {
	setCatalogueEnv(t)
	t.Setenv("GITHUB_APP_ID", "1")
	t.Setenv("GITHUB_APP_INSTALLATION_ID", "2")
	t.Setenv("GITHUB_APP_PRIVATE_KEY", base64.StdEncoding.EncodeToString([]byte("not a pem key")))
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	require.NoError(t, err)

	_, err = app.Runner()
	var cfgErr *errors.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

// TestApp_Services_OptionalUpstreams verifies unconfigured GitHub and
// CircleCI clients are left nil rather than typed nil.
func TestApp_Services_OptionalUpstreams(t *testing.T) {
	setCatalogueEnv(t)
	t.Setenv("CIRCLECI_TOKEN", "")
	t.Setenv("GITHUB_APP_ID", "")
	app, err := New("1.0.0", "test", "2024-01-01", "test", WithLogger(logging.NewNopLogger()))
	require.NoError(t, err)

	svc, err := app.services()
	require.NoError(t, err)
	assert.Nil(t, svc.GitHub)
	assert.Nil(t, svc.CircleCI)
	assert.NotNil(t, svc.Catalogue)
	assert.NotNil(t, svc.Alertmanager)
	assert.NotNil(t, svc.Slack)
	assert.NotNil(t, svc.Prober)
}

// TestApp_Execute verifies the root command wiring.
func TestApp_Execute(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	require.NoError(t, err)

	require.NoError(t, app.Execute(context.Background(), []string{"version", "--log-level", "error"}))
	assert.Equal(t, "error", app.Config().LogLevel)

	assert.Error(t, app.Execute(context.Background(), []string{"no-such-command"}))
}

// TestApp_RootCommandHasEveryJob verifies one command per job kind.
func TestApp_RootCommandHasEveryJob(t *testing.T) {
	app, err := New("1.0.0", "test", "2024-01-01", "test")
	require.NoError(t, err)
	root := app.createRootCommand()

	for _, kind := range jobs.Kinds() {
		cmd, _, err := root.Find([]string{kind.String()})
		require.NoError(t, err, kind.String())
		assert.Equal(t, "jobs", cmd.GroupID)
	}
}
