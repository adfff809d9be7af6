// Package circleci reads trivy scan results from the CircleCI v1.1 API.
package circleci

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/transport"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Trivy scan builds are identified by their workflow and job names.
const (
	SecurityWorkflow = "security"
	TrivyScanJob     = "hmpps/trivy_latest_scan"
)

// Config configures a Client.
type Config struct {
	// Endpoint is the project base URL, ending in the organisation path.
	Endpoint string `validate:"required,url"`
	Token    string `validate:"required"`
}

// Client is a CircleCI API client.
type Client struct {
	http     *transport.Client
	endpoint string
}

// New creates a CircleCI client.
func New(cfg Config, opts ...transport.Option) *Client {
	endpoint := cfg.Endpoint
	if !strings.HasSuffix(endpoint, "/") {
		endpoint += "/"
	}
	return &Client{
		http:     transport.New("circleci", &transport.HeaderAuth{Header: "Circle-Token"}, cfg.Token, opts...),
		endpoint: endpoint,
	}
}

// TestConnection reads the bootstrap project's build list.
func (c *Client) TestConnection(ctx context.Context) error {
	var builds []build
	if err := c.http.GetJSON(ctx, c.endpoint+constants.BootstrapRepo, &builds); err != nil {
		return err
	}
	logging.FromContext(ctx).Info().Str("endpoint", c.endpoint).Msg("connected to the CircleCI API")
	return nil
}

type build struct {
	BuildNum  int `json:"build_num"`
	Workflows struct {
		WorkflowName string `json:"workflow_name"`
		JobName      string `json:"job_name"`
	} `json:"workflows"`
}

type artifact struct {
	Path string `json:"path"`
	URL  string `json:"url"`
}

// TrivyScan returns the results.json document of the project's most recent
// trivy scan. errors.ErrNotFound is returned when there is no such scan.
func (c *Client) TrivyScan(ctx context.Context, project string) (map[string]any, error) {
	log := logging.FromContext(ctx)
	projectURL := c.endpoint + url.PathEscape(project)

	var builds []build
	if err := c.http.GetJSON(ctx, projectURL, &builds); err != nil {
		return nil, err
	}
	buildNum := -1
	for _, b := range builds {
		if b.Workflows.WorkflowName == SecurityWorkflow && b.Workflows.JobName == TrivyScanJob {
			buildNum = b.BuildNum
			break
		}
	}
	if buildNum < 0 {
		return nil, errors.NewNotFoundError("trivy scan build", project)
	}

	var artifacts []artifact
	if err := c.http.GetJSON(ctx, projectURL+"/"+strconv.Itoa(buildNum)+"/artifacts", &artifacts); err != nil {
		return nil, err
	}
	for _, a := range artifacts {
		if !strings.Contains(a.URL, "results.json") {
			continue
		}
		log.Debug().Str("project", project).Int("build", buildNum).Msg("fetching trivy scan results")
		var results map[string]any
		if err := c.http.GetJSON(ctx, a.URL, &results); err != nil {
			return nil, err
		}
		return results, nil
	}
	return nil, errors.NewNotFoundError("trivy scan results", project)
}
