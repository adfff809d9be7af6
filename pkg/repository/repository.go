// Package repository describes the read-only view of a GitHub repository that
// the fact extractors and reconcilers work against. internal/github provides
// the live implementation; repotest provides an in-memory one.
package repository

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/value"
)

// Metadata is the repository summary fetched once per component.
type Metadata struct {
	Name          string
	Language      string
	Description   string
	Visibility    string
	DefaultBranch string
	Archived      bool
	Topics        []string

	// Snapshot is the full repository document as returned by the API.
	// Compliance checks evaluate dotted paths against it.
	Snapshot value.Value
}

// Commit is the head of the default branch.
type Commit struct {
	SHA  string
	Date time.Time
}

// EntryType distinguishes files from directories in a listing.
type EntryType string

// Entry types.
const (
	EntryFile EntryType = "file"
	EntryDir  EntryType = "dir"
)

// Entry is one item of a directory listing.
type Entry struct {
	Name string
	Path string
	Type EntryType
}

// TeamAccess lists team slugs by the highest permission each team holds.
type TeamAccess struct {
	Admin    []string
	Maintain []string
	Write    []string
}

// Protection summarises the default branch protection rules.
type Protection struct {
	RestrictedTeams []string
	EnforceAdmins   bool
}

// Environment is a GitHub deployment environment and its KUBE_NAMESPACE variable.
type Environment struct {
	Name      string
	Namespace string
}

// Workflow is a GitHub Actions workflow definition.
type Workflow struct {
	Name  string
	Path  string
	State string
}

// Active reports whether the workflow is enabled.
func (w Workflow) Active() bool {
	return w.State == "active"
}

// CodeScanningAlert is one code scanning alert.
type CodeScanningAlert struct {
	Tool     string
	RuleID   string
	Severity string
	URL      string
	State    string
}

// RateLimit is a snapshot of the GitHub core rate limit.
type RateLimit struct {
	Limit     int
	Remaining int
	Reset     time.Time
}

// Files reads repository content on the default branch. A missing path is
// reported with an error matching errors.ErrNotFound.
type Files interface {
	File(ctx context.Context, path string) ([]byte, error)
	Dir(ctx context.Context, path string) ([]Entry, error)
}

// Handle is a live repository.
type Handle interface {
	Files

	Metadata() Metadata
	HeadCommit(ctx context.Context) (Commit, error)
	Teams(ctx context.Context) (TeamAccess, error)
	// BranchProtection returns errors.ErrBranchNotProtected for unprotected branches.
	BranchProtection(ctx context.Context) (Protection, error)
	Environments(ctx context.Context) ([]Environment, error)
	Variable(ctx context.Context, name string) (string, error)
	Workflows(ctx context.Context) ([]Workflow, error)
	CodeScanningAlerts(ctx context.Context) ([]CodeScanningAlert, error)
}

// Walk lists every file below root, depth first.
func Walk(ctx context.Context, files Files, root string) ([]Entry, error) {
	entries, err := files.Dir(ctx, root)
	if err != nil {
		return nil, err
	}
	var out []Entry
	for _, e := range entries {
		switch e.Type {
		case EntryDir:
			children, err := Walk(ctx, files, e.Path)
			if err != nil {
				return nil, err
			}
			out = append(out, children...)
		case EntryFile:
			out = append(out, e)
		}
	}
	return out, nil
}

// Join builds a repository path, dropping "." segments and leading slashes.
func Join(parts ...string) string {
	joined := path.Join(parts...)
	joined = strings.TrimPrefix(joined, "/")
	if joined == "." {
		return ""
	}
	return strings.TrimPrefix(joined, "./")
}
