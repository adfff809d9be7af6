package github

import (
	"context"
	"encoding/json"
	"io"
	"net/http"

	gh "github.com/google/go-github/v66/github"
	"github.com/patrickmn/go-cache"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// KubeNamespaceVariable is the GitHub environment variable naming the
// Kubernetes namespace an environment deploys to.
const KubeNamespaceVariable = "KUBE_NAMESPACE"

// Repository fetches a repository of the organisation. A missing repository
// is reported as errors.ErrNotFound.
func (c *Client) Repository(ctx context.Context, name string) (repository.Handle, error) {
	api, err := c.client()
	if err != nil {
		return nil, err
	}
	r, resp, err := api.Repositories.Get(ctx, c.cfg.Org, name)
	c.observe(resp)
	if err != nil {
		return nil, wrap(err, "repos/"+c.cfg.Org+"/"+name)
	}
	meta, err := metadata(r)
	if err != nil {
		return nil, err
	}
	return &repo{client: c, api: api, org: c.cfg.Org, meta: meta}, nil
}

func metadata(r *gh.Repository) (repository.Metadata, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return repository.Metadata{}, errors.WrapParse("json", r.GetFullName(), err)
	}
	var snapshot any
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return repository.Metadata{}, errors.WrapParse("json", r.GetFullName(), err)
	}
	return repository.Metadata{
		Name:          r.GetName(),
		Language:      r.GetLanguage(),
		Description:   r.GetDescription(),
		Visibility:    r.GetVisibility(),
		DefaultBranch: r.GetDefaultBranch(),
		Archived:      r.GetArchived(),
		Topics:        r.Topics,
		Snapshot:      value.From(snapshot),
	}, nil
}

// repo implements repository.Handle over the GitHub REST API.
type repo struct {
	client *Client
	api    *gh.Client
	org    string
	meta   repository.Metadata
}

var _ repository.Handle = (*repo)(nil)

func (r *repo) Metadata() repository.Metadata { return r.meta }

func (r *repo) endpoint(suffix string) string {
	return "repos/" + r.org + "/" + r.meta.Name + "/" + suffix
}

func (r *repo) cacheKey(kind, path string) string {
	return kind + ":" + r.org + "/" + r.meta.Name + "@" + r.meta.DefaultBranch + ":" + path
}

type cachedFile struct {
	content []byte
	entries []repository.Entry
	err     error
}

// contents reads a path on the default branch, caching the result. Not found
// results are cached as well.
func (r *repo) contents(ctx context.Context, path string) (cachedFile, error) {
	key := r.cacheKey("contents", path)
	if hit, ok := r.client.files.Get(key); ok {
		f := hit.(cachedFile)
		return f, f.err
	}

	opts := &gh.RepositoryContentGetOptions{Ref: r.meta.DefaultBranch}
	file, dir, resp, err := r.api.Repositories.GetContents(ctx, r.org, r.meta.Name, path, opts)
	r.client.observe(resp)

	var f cachedFile
	switch {
	case err != nil:
		f.err = wrap(err, r.endpoint("contents/"+path))
		if !errors.IsNotFound(f.err) {
			return f, f.err
		}
	case file != nil:
		f.content, f.err = r.decode(ctx, file, opts)
		if f.err != nil {
			return f, f.err
		}
	default:
		for _, e := range dir {
			entry := repository.Entry{Name: e.GetName(), Path: e.GetPath()}
			switch e.GetType() {
			case "file":
				entry.Type = repository.EntryFile
			case "dir":
				entry.Type = repository.EntryDir
			default:
				continue
			}
			f.entries = append(f.entries, entry)
		}
	}
	r.client.files.Set(key, f, cache.DefaultExpiration)
	return f, f.err
}

// decode returns the file content, downloading files too large to be inlined
// in the contents response.
func (r *repo) decode(ctx context.Context, file *gh.RepositoryContent, opts *gh.RepositoryContentGetOptions) ([]byte, error) {
	if file.GetEncoding() != "none" {
		content, err := file.GetContent()
		if err != nil {
			return nil, errors.WrapParse("base64", file.GetPath(), err)
		}
		return []byte(content), nil
	}
	rc, resp, err := r.api.Repositories.DownloadContents(ctx, r.org, r.meta.Name, file.GetPath(), opts)
	r.client.observe(resp)
	if err != nil {
		return nil, wrap(err, r.endpoint("contents/"+file.GetPath()))
	}
	defer rc.Close()
	b, err := io.ReadAll(rc)
	if err != nil {
		return nil, errors.WrapAPI(service, r.endpoint("contents/"+file.GetPath()), err)
	}
	return b, nil
}

// File implements repository.Files.
func (r *repo) File(ctx context.Context, path string) ([]byte, error) {
	f, err := r.contents(ctx, path)
	if err != nil {
		if errors.IsNotFound(err) {
			logging.FromContext(ctx).Debug().Str("repo", r.meta.Name).Str("path", path).Msg("404 file not found")
		}
		return nil, err
	}
	if f.content == nil && f.entries != nil {
		return nil, errors.NewValidationError("path", path, "is a directory")
	}
	return f.content, nil
}

// Dir implements repository.Files.
func (r *repo) Dir(ctx context.Context, path string) ([]repository.Entry, error) {
	f, err := r.contents(ctx, path)
	if err != nil {
		return nil, err
	}
	if f.content != nil {
		return nil, errors.NewValidationError("path", path, "is a file")
	}
	return f.entries, nil
}

// HeadCommit implements repository.Handle.
func (r *repo) HeadCommit(ctx context.Context) (repository.Commit, error) {
	branch, resp, err := r.api.Repositories.GetBranch(ctx, r.org, r.meta.Name, r.meta.DefaultBranch, 1)
	r.client.observe(resp)
	if err != nil {
		return repository.Commit{}, wrap(err, r.endpoint("branches/"+r.meta.DefaultBranch))
	}
	commit := branch.GetCommit()
	return repository.Commit{
		SHA:  commit.GetSHA(),
		Date: commit.GetCommit().GetCommitter().GetDate().Time,
	}, nil
}

// Teams implements repository.Handle. Each team is placed in the list for its
// highest permission.
func (r *repo) Teams(ctx context.Context) (repository.TeamAccess, error) {
	teams, err := paginate(r.client, func(opts gh.ListOptions) ([]*gh.Team, *gh.Response, error) {
		return r.api.Repositories.ListTeams(ctx, r.org, r.meta.Name, &opts)
	})
	if err != nil {
		return repository.TeamAccess{}, wrap(err, r.endpoint("teams"))
	}
	access := repository.TeamAccess{Admin: []string{}, Maintain: []string{}, Write: []string{}}
	for _, t := range teams {
		perms := t.GetPermissions()
		switch {
		case perms["admin"]:
			access.Admin = append(access.Admin, t.GetSlug())
		case perms["maintain"]:
			access.Maintain = append(access.Maintain, t.GetSlug())
		case perms["push"]:
			access.Write = append(access.Write, t.GetSlug())
		}
	}
	return access, nil
}

// BranchProtection implements repository.Handle.
func (r *repo) BranchProtection(ctx context.Context) (repository.Protection, error) {
	p, resp, err := r.api.Repositories.GetBranchProtection(ctx, r.org, r.meta.Name, r.meta.DefaultBranch)
	r.client.observe(resp)
	if err != nil {
		return repository.Protection{}, wrap(err, r.endpoint("branches/"+r.meta.DefaultBranch+"/protection"))
	}
	out := repository.Protection{RestrictedTeams: []string{}}
	if ea := p.GetEnforceAdmins(); ea != nil {
		out.EnforceAdmins = ea.Enabled
	}
	if p.Restrictions != nil {
		for _, t := range p.Restrictions.Teams {
			out.RestrictedTeams = append(out.RestrictedTeams, t.GetSlug())
		}
	}
	return out, nil
}

// Environments implements repository.Handle. The namespace of each
// environment comes from its KUBE_NAMESPACE variable when set.
func (r *repo) Environments(ctx context.Context) ([]repository.Environment, error) {
	var envs []*gh.Environment
	opts := &gh.EnvironmentListOptions{ListOptions: gh.ListOptions{PerPage: 100}}
	for {
		page, resp, err := r.api.Repositories.ListEnvironments(ctx, r.org, r.meta.Name, opts)
		r.client.observe(resp)
		if err != nil {
			if resp != nil && resp.StatusCode == http.StatusNotFound {
				return []repository.Environment{}, nil
			}
			return nil, wrap(err, r.endpoint("environments"))
		}
		envs = append(envs, page.Environments...)
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}

	out := make([]repository.Environment, 0, len(envs))
	for _, e := range envs {
		env := repository.Environment{Name: e.GetName()}
		v, resp, err := r.api.Actions.GetEnvVariable(ctx, r.org, r.meta.Name, env.Name, KubeNamespaceVariable)
		r.client.observe(resp)
		switch {
		case err == nil:
			env.Namespace = v.Value
		case !errors.IsNotFound(wrap(err, "")):
			return nil, wrap(err, r.endpoint("environments/"+env.Name+"/variables/"+KubeNamespaceVariable))
		}
		out = append(out, env)
	}
	return out, nil
}

// Variable implements repository.Handle.
func (r *repo) Variable(ctx context.Context, name string) (string, error) {
	v, resp, err := r.api.Actions.GetRepoVariable(ctx, r.org, r.meta.Name, name)
	r.client.observe(resp)
	if err != nil {
		return "", wrap(err, r.endpoint("actions/variables/"+name))
	}
	return v.Value, nil
}

// Workflows implements repository.Handle.
func (r *repo) Workflows(ctx context.Context) ([]repository.Workflow, error) {
	var out []repository.Workflow
	opts := &gh.ListOptions{PerPage: 100}
	for {
		page, resp, err := r.api.Actions.ListWorkflows(ctx, r.org, r.meta.Name, opts)
		r.client.observe(resp)
		if err != nil {
			return nil, wrap(err, r.endpoint("actions/workflows"))
		}
		for _, w := range page.Workflows {
			out = append(out, repository.Workflow{Name: w.GetName(), Path: w.GetPath(), State: w.GetState()})
		}
		if resp.NextPage == 0 {
			return out, nil
		}
		opts.Page = resp.NextPage
	}
}

// CodeScanningAlerts implements repository.Handle.
func (r *repo) CodeScanningAlerts(ctx context.Context) ([]repository.CodeScanningAlert, error) {
	alerts, err := paginate(r.client, func(opts gh.ListOptions) ([]*gh.Alert, *gh.Response, error) {
		return r.api.CodeScanning.ListAlertsForRepo(ctx, r.org, r.meta.Name, &gh.AlertListOptions{ListOptions: opts})
	})
	if err != nil {
		return nil, wrap(err, r.endpoint("code-scanning/alerts"))
	}
	out := make([]repository.CodeScanningAlert, 0, len(alerts))
	for _, a := range alerts {
		out = append(out, repository.CodeScanningAlert{
			Tool:     a.GetTool().GetName(),
			RuleID:   a.GetRule().GetID(),
			Severity: a.GetRule().GetSecuritySeverityLevel(),
			URL:      a.GetHTMLURL(),
			State:    a.GetState(),
		})
	}
	return out, nil
}
