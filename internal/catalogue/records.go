package catalogue

import (
	"context"
	"net/url"
	"time"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
)

// ScheduledJob results.
const (
	ResultSucceeded = "Succeeded"
	ResultErrors    = "Errors"
	ResultFailed    = "Failed"
)

var componentPopulate = url.Values{
	"populate[0]": {"latest_commit"},
	"populate[1]": {"product"},
	"populate[2]": {"envs"},
}

// Components lists every component, narrowed by the configured filter.
func (c *Client) Components(ctx context.Context) ([]Component, error) {
	return list[Component](ctx, c, constants.TableComponents, componentPopulate, c.filter)
}

// Component finds a component by name.
func (c *Client) Component(ctx context.Context, name string) (Component, error) {
	return findOne[Component](ctx, c, constants.TableComponents, "name", name, componentPopulate)
}

// UpdateComponent writes a component update.
func (c *Client) UpdateComponent(ctx context.Context, documentID string, u ComponentUpdate) error {
	return c.Update(ctx, constants.TableComponents, documentID, u)
}

// AddEnvironment creates an environment and returns its document id.
func (c *Client) AddEnvironment(ctx context.Context, d EnvironmentData) (string, error) {
	return c.Add(ctx, constants.TableEnvironments, d)
}

// UpdateEnvironment writes an environment.
func (c *Client) UpdateEnvironment(ctx context.Context, documentID string, d EnvironmentData) error {
	return c.Update(ctx, constants.TableEnvironments, documentID, d)
}

// DeleteEnvironment removes an environment.
func (c *Client) DeleteEnvironment(ctx context.Context, documentID string) error {
	return c.Delete(ctx, constants.TableEnvironments, documentID)
}

// Teams lists every github-teams record.
func (c *Client) Teams(ctx context.Context) ([]GithubTeam, error) {
	return list[GithubTeam](ctx, c, constants.TableGithubTeams, nil, "")
}

// AddTeam creates a github-teams record.
func (c *Client) AddTeam(ctx context.Context, t GithubTeamData) (string, error) {
	return c.Add(ctx, constants.TableGithubTeams, t)
}

// UpdateTeam writes a github-teams record.
func (c *Client) UpdateTeam(ctx context.Context, documentID string, t GithubTeamData) error {
	return c.Update(ctx, constants.TableGithubTeams, documentID, t)
}

// DeleteTeam removes a github-teams record.
func (c *Client) DeleteTeam(ctx context.Context, documentID string) error {
	return c.Delete(ctx, constants.TableGithubTeams, documentID)
}

var productFields = url.Values{
	"fields[0]": {"slack_channel_id"},
	"fields[1]": {"slack_channel_name"},
	"fields[2]": {"p_id"},
	"fields[3]": {"name"},
}

// Products lists every product.
func (c *Client) Products(ctx context.Context) ([]Product, error) {
	return list[Product](ctx, c, constants.TableProducts, productFields, "")
}

// UpdateProduct writes the given product fields.
func (c *Client) UpdateProduct(ctx context.Context, documentID string, fields map[string]any) error {
	return c.Update(ctx, constants.TableProducts, documentID, fields)
}

// ProductDocumentID resolves a product id (p_id) to its document id.
func (c *Client) ProductDocumentID(ctx context.Context, pid string) (string, error) {
	p, err := findOne[Product](ctx, c, constants.TableProducts, "p_id", pid, nil)
	if err != nil {
		return "", err
	}
	return p.DocumentID, nil
}

// NamespaceDocumentID resolves a namespace name to its document id.
func (c *Client) NamespaceDocumentID(ctx context.Context, name string) (string, error) {
	ns, err := findOne[Namespace](ctx, c, constants.TableNamespaces, "name", name, nil)
	if err != nil {
		return "", err
	}
	return ns.DocumentID, nil
}

// UpdateScheduledJob records the outcome of a job run. A successful run also
// moves last_successful_run.
func (c *Client) UpdateScheduledJob(ctx context.Context, name, result string, errorDetails []string, at time.Time) error {
	job, err := findOne[ScheduledJob](ctx, c, constants.TableScheduledJobs, "name", name, nil)
	if err != nil {
		return err
	}
	if errorDetails == nil {
		errorDetails = []string{}
	}
	stamp := at.UTC().Format(time.RFC3339)
	data := map[string]any{
		"last_scheduled_run": stamp,
		"result":             result,
		"error_details":      errorDetails,
	}
	if result == ResultSucceeded {
		data["last_successful_run"] = stamp
	}
	if err := c.Update(ctx, constants.TableScheduledJobs, job.DocumentID, data); err != nil {
		return errors.WrapResource("update", "scheduled job", name, err)
	}
	return nil
}
