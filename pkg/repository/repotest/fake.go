// Package repotest provides an in-memory repository.Handle for tests.
package repotest

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

// Fake is a repository backed by a map of path to content. Directories are
// derived from the file paths. Every field may be changed between calls.
type Fake struct {
	mu sync.Mutex

	Meta         repository.Metadata
	Files        map[string]string
	Commit       repository.Commit
	Access       repository.TeamAccess
	Protection   *repository.Protection
	Envs         []repository.Environment
	Variables    map[string]string
	WorkflowList []repository.Workflow
	Alerts       []repository.CodeScanningAlert

	// Errors injects a failure for a method name ("HeadCommit", "Teams", ...)
	// or for a file path passed to File or Dir.
	Errors map[string]error

	reads map[string]int
}

var _ repository.Handle = (*Fake)(nil)

// New returns a fake repository with the given name and files.
func New(name string, files map[string]string) *Fake {
	return &Fake{
		Meta:      repository.Metadata{Name: name, DefaultBranch: "main"},
		Files:     files,
		Variables: map[string]string{},
		Errors:    map[string]error{},
	}
}

func (f *Fake) fail(key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.reads == nil {
		f.reads = map[string]int{}
	}
	f.reads[key]++
	return f.Errors[key]
}

// Reads returns how many times a method or path was requested.
func (f *Fake) Reads(key string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reads[key]
}

// Metadata implements repository.Handle.
func (f *Fake) Metadata() repository.Metadata { return f.Meta }

// File implements repository.Files.
func (f *Fake) File(_ context.Context, path string) ([]byte, error) {
	if err := f.fail(path); err != nil {
		return nil, err
	}
	content, ok := f.Files[path]
	if !ok {
		return nil, errors.NewNotFoundError("file", path)
	}
	return []byte(content), nil
}

// Dir implements repository.Files.
func (f *Fake) Dir(_ context.Context, dir string) ([]repository.Entry, error) {
	if err := f.fail(dir); err != nil {
		return nil, err
	}
	prefix := strings.TrimSuffix(dir, "/")
	if prefix != "" {
		prefix += "/"
	}

	seen := map[string]repository.Entry{}
	for p := range f.Files {
		if !strings.HasPrefix(p, prefix) {
			continue
		}
		rest := strings.TrimPrefix(p, prefix)
		name, _, isDir := strings.Cut(rest, "/")
		entry := repository.Entry{Name: name, Path: prefix + name, Type: repository.EntryFile}
		if isDir {
			entry.Type = repository.EntryDir
		}
		seen[name] = entry
	}
	if len(seen) == 0 {
		return nil, errors.NewNotFoundError("directory", dir)
	}

	out := make([]repository.Entry, 0, len(seen))
	for _, e := range seen {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// HeadCommit implements repository.Handle.
func (f *Fake) HeadCommit(context.Context) (repository.Commit, error) {
	return f.Commit, f.fail("HeadCommit")
}

// Teams implements repository.Handle.
func (f *Fake) Teams(context.Context) (repository.TeamAccess, error) {
	return f.Access, f.fail("Teams")
}

// BranchProtection implements repository.Handle.
func (f *Fake) BranchProtection(context.Context) (repository.Protection, error) {
	if err := f.fail("BranchProtection"); err != nil {
		return repository.Protection{}, err
	}
	if f.Protection == nil {
		return repository.Protection{}, errors.ErrBranchNotProtected
	}
	return *f.Protection, nil
}

// Environments implements repository.Handle.
func (f *Fake) Environments(context.Context) ([]repository.Environment, error) {
	return f.Envs, f.fail("Environments")
}

// Variable implements repository.Handle.
func (f *Fake) Variable(_ context.Context, name string) (string, error) {
	if err := f.fail("Variable"); err != nil {
		return "", err
	}
	v, ok := f.Variables[name]
	if !ok {
		return "", errors.NewNotFoundError("variable", name)
	}
	return v, nil
}

// Workflows implements repository.Handle.
func (f *Fake) Workflows(context.Context) ([]repository.Workflow, error) {
	return f.WorkflowList, f.fail("Workflows")
}

// CodeScanningAlerts implements repository.Handle.
func (f *Fake) CodeScanningAlerts(context.Context) ([]repository.CodeScanningAlert, error) {
	return f.Alerts, f.fail("CodeScanningAlerts")
}
