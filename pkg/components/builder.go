package components

import (
	"sort"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/utils/ptr"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

// ArchivedPrefix marks the description of archived repositories.
const ArchivedPrefix = "[ARCHIVED] "

// Builder accumulates a component update. Every setter contributes a value
// or nothing; a fact that could not be determined is never written.
type Builder struct {
	update catalogue.ComponentUpdate

	storedVersions map[string]any
	versions       map[string]any
}

// NewBuilder starts an update from the stored versions map, which the
// version setters merge into.
func NewBuilder(storedVersions map[string]any) *Builder {
	versions := make(map[string]any, len(storedVersions))
	for k, v := range storedVersions {
		versions[k] = v
	}
	return &Builder{storedVersions: storedVersions, versions: versions}
}

// Metadata sets the repository summary fields.
func (b *Builder) Metadata(meta repository.Metadata) {
	description := meta.Description
	if meta.Archived {
		description = ArchivedPrefix + description
	}
	b.update.Language = ptr.NonEmpty(meta.Language)
	b.update.Description = ptr.To(description)
	b.update.GithubProjectVisibility = ptr.NonEmpty(meta.Visibility)
	b.update.Archived = ptr.To(meta.Archived)
}

// LatestCommit sets the default branch head.
func (b *Builder) LatestCommit(c repository.Commit) {
	b.update.LatestCommit = &catalogue.Commit{
		SHA:      c.SHA,
		DateTime: c.Date.UTC().Format(time.RFC3339),
	}
}

// Teams sets the team access lists.
func (b *Builder) Teams(access repository.TeamAccess) {
	b.update.TeamsAdmin = ptr.To(nonNil(access.Admin))
	b.update.TeamsMaintain = ptr.To(nonNil(access.Maintain))
	b.update.TeamsWrite = ptr.To(nonNil(access.Write))
}

// Protection sets the branch protection fields.
func (b *Builder) Protection(p repository.Protection) {
	b.update.BranchProtectionRestrictedTeams = ptr.To(nonNil(p.RestrictedTeams))
	b.update.EnforceAdminsEnabled = ptr.To(p.EnforceAdmins)
}

// Topics sets the repository topics.
func (b *Builder) Topics(topics []string) {
	b.update.Topics = ptr.To(nonNil(topics))
}

// DisabledWorkflows sets the names of the disabled workflows.
func (b *Builder) DisabledWorkflows(names []string) {
	b.update.DisabledWorkflows = ptr.To(nonNil(names))
}

// Frontend marks the component as a user interface.
func (b *Builder) Frontend() {
	b.update.Frontend = ptr.To(true)
}

// API marks the component as an API. APIs are never frontends.
func (b *Builder) API() {
	b.update.API = ptr.To(true)
	b.update.Frontend = ptr.To(false)
}

// ContainerImage sets the image repository.
func (b *Builder) ContainerImage(image string) {
	b.update.ContainerImage = ptr.NonEmpty(image)
}

// Product sets the product relation to a product document id.
func (b *Builder) Product(documentID string) {
	b.update.Product = ptr.NonEmpty(documentID)
}

// AppInsightsRoleName sets the Application Insights cloud role name.
func (b *Builder) AppInsightsRoleName(name string) {
	b.update.AppInsightsCloudRoleName = ptr.NonEmpty(name)
}

// Trivy sets the scan summary and its completion date.
func (b *Builder) Trivy(results map[string]any) {
	b.update.TrivyScanSummary = results
	if created, ok := results["CreatedAt"].(string); ok && created != "" {
		b.update.TrivyLastCompletedScanDate = &created
	}
}

// Versions merges one section into the versions map: a non-empty section
// replaces the stored one, an empty section removes it. Call it only when
// the section was actually determined.
func (b *Builder) Versions(section string, v facts.VersionSection) {
	if len(v) == 0 {
		delete(b.versions, section)
		return
	}
	packages := make(map[string]any, len(v))
	for name, version := range v {
		packages[name] = map[string]any{"ref": version.Ref, "path": version.Path}
	}
	b.versions[section] = packages
}

// Build returns the update. Versions are included only when they differ
// from the stored map.
func (b *Builder) Build() catalogue.ComponentUpdate {
	u := b.update
	if !cmp.Equal(b.versions, b.storedVersions, cmpopts.EquateEmpty()) {
		u.Versions = b.versions
	}
	return u
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	out := append([]string(nil), s...)
	sort.Strings(out)
	return out
}
