package job

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/appcontext"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/server"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// stubCatalogue answers only what a products run without Slack asks for.
type stubCatalogue struct {
	jobs.Catalogue
	connErr error
	results []string
}

func (s *stubCatalogue) TestConnection(context.Context) error { return s.connErr }

func (s *stubCatalogue) Products(context.Context) ([]catalogue.Product, error) {
	return nil, nil
}

func (s *stubCatalogue) UpdateScheduledJob(_ context.Context, _, result string, _ []string, _ time.Time) error {
	s.results = append(s.results, result)
	return nil
}

func mockApp(cat *stubCatalogue) *appcontext.Mock {
	metrics := jobs.NewMetrics()
	return &appcontext.Mock{
		RunnerFunc: func() (*jobs.Runner, error) {
			return jobs.New(jobs.Services{Catalogue: cat}, jobs.WithMetrics(metrics)), nil
		},
		MetricsFunc: func() *jobs.Metrics { return metrics },
	}
}

func execute(t *testing.T, app appcontext.Interface, kind jobs.Kind, args ...string) (string, error) {
	t.Helper()
	cmd := NewCommand(app, kind)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestProductsCommandWritesReport(t *testing.T) {
	cat := &stubCatalogue{}
	out, err := execute(t, mockApp(cat), jobs.Products)
	require.NoError(t, err)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.Equal(t, "hmpps-github-discovery-products", report["job"])
	assert.Equal(t, catalogue.ResultSucceeded, report["result"])
	assert.Equal(t, []string{catalogue.ResultSucceeded}, cat.results)
}

func TestCommandReturnsPreflightFailure(t *testing.T) {
	cat := &stubCatalogue{connErr: errors.NewAPIError("service-catalogue", 503, "unavailable")}
	out, err := execute(t, mockApp(cat), jobs.Products)
	require.Error(t, err)
	assert.Contains(t, out, `"result": "Failed"`, "the report is written before the error is returned")
	assert.Empty(t, cat.results, "an unreachable catalogue cannot record the failure")
}

func TestCommandArgs(t *testing.T) {
	app := mockApp(&stubCatalogue{})

	_, err := execute(t, app, jobs.Component)
	assert.Error(t, err, "component needs a name")

	_, err = execute(t, app, jobs.Security, "extra")
	assert.Error(t, err)

	assert.NotNil(t, NewCommand(app, jobs.Discovery).Flags().ShorthandLookup("f"))
	assert.NotNil(t, NewCommand(app, jobs.Teams).Flags().Lookup("serve"))
	assert.Nil(t, NewCommand(app, jobs.Products).Flags().Lookup("serve"))
}

func TestCommandRejectsUnknownFormat(t *testing.T) {
	app := mockApp(&stubCatalogue{})
	app.OutputFormatFunc = func() string { return "xml" }
	_, err := execute(t, app, jobs.Products)
	assert.Error(t, err)
}

func TestServeRepeatsUntilCancelled(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	cat := &stubCatalogue{}
	app := mockApp(cat)
	app.ServerConfigFunc = func() server.Config {
		cfg := server.DefaultConfig()
		cfg.Addr = addr
		return cfg
	}
	app.RefreshIntervalFunc = func() time.Duration { return 10 * time.Millisecond }

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- Serve(ctx, app, &bytes.Buffer{}, jobs.Request{Kind: jobs.Products})
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.GreaterOrEqual(t, len(cat.results), 1)
}
