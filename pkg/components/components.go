// Package components reconciles catalogue components with their GitHub
// repositories. Discover refreshes the fields that change without a commit
// on every run and re-derives everything else from the repository contents
// only when the default branch or the environment set has moved.
package components

import (
	"context"
	"regexp"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/environments"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

// Component flags.
const (
	FlagNotFound                 = "not_found"
	FlagUpdateError              = "update_error"
	FlagMainChanged              = "main_changed"
	FlagEnvChanged               = "env_changed"
	FlagArchived                 = "archived"
	FlagAppDisabled              = "app_disabled"
	FlagBranchProtectionDisabled = "branch_protection_disabled"
	FlagWorkflowsDisabled        = "workflows_disabled"
	FlagEnvAdded                 = "env_added"
	FlagEnvUpdated               = "env_updated"
	FlagEnvRemoved               = "env_removed"
	FlagEnvError                 = "env_error"
	FlagReposWithVulnerabilities = "repos_with_vulnerabilities"
	FlagQtyRepos                 = "qty_repos"
)

var frontendName = regexp.MustCompile(`([fF]rontend)|(-ui)|(UI)|([uU]ser\s[iI]nterface)`)

// GitHub resolves repositories of the organisation.
type GitHub interface {
	Repository(ctx context.Context, name string) (repository.Handle, error)
}

// Catalogue is the part of the service catalogue the processors write to.
type Catalogue interface {
	environments.Catalogue
	UpdateComponent(ctx context.Context, documentID string, u catalogue.ComponentUpdate) error
	ProductDocumentID(ctx context.Context, pid string) (string, error)
}

// TrivyScanner fetches the latest trivy scan of a project.
type TrivyScanner interface {
	TrivyScan(ctx context.Context, project string) (map[string]any, error)
}

// Services are the upstreams used by the processors. CircleCI, Alerts and
// Prober may be nil; the facts they provide are then left unknown.
type Services struct {
	Catalogue Catalogue
	GitHub    GitHub
	CircleCI  TrivyScanner
	Alerts    facts.AlertRouting
	Prober    facts.Prober
	// Bootstrap is the legacy project list keyed by repository name, nil
	// when it could not be read.
	Bootstrap map[string]facts.BootstrapProject
}

// Processor runs the per-component work of the discovery jobs.
type Processor struct {
	svc   Services
	envs  *environments.Reconciler
	force bool
}

// Option configures a Processor.
type Option func(*Processor)

// WithForce runs the changed path for every component.
func WithForce(force bool) Option {
	return func(p *Processor) { p.force = force }
}

// NewProcessor creates a Processor.
func NewProcessor(svc Services, opts ...Option) *Processor {
	p := &Processor{svc: svc, envs: environments.New(svc.Catalogue)}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies a component in results.
func Name(c catalogue.Component) string {
	return c.Name
}

func paths(c catalogue.Component) facts.ComponentPaths {
	return facts.ComponentPaths{
		Name:           c.Name,
		PartOfMonorepo: c.PartOfMonorepo,
		PathToProject:  c.PathToProject,
		PathToHelmDir:  c.PathToHelmDir,
	}
}

// open resolves the component's repository, flagging not_found on failure.
func (p *Processor) open(ctx context.Context, c catalogue.Component, flags dispatch.Flags) (repository.Handle, bool) {
	repo, err := p.svc.GitHub.Repository(ctx, c.Repo())
	if err != nil {
		logging.FromContext(ctx).Error().Err(err).
			Str("repo", c.Repo()).
			Msg("unable to access repository, check the github app has permission to see it")
		flags.Set(FlagNotFound)
		return nil, false
	}
	return repo, true
}

// write sends the update unless it is empty, flagging update_error on failure.
func (p *Processor) write(ctx context.Context, c catalogue.Component, u catalogue.ComponentUpdate, flags dispatch.Flags) {
	log := logging.FromContext(ctx)
	if u.Empty() {
		log.Debug().Msg("nothing to update")
		return
	}
	if err := p.svc.Catalogue.UpdateComponent(ctx, c.DocumentID, u); err != nil {
		log.Error().Err(err).Msg("error updating component")
		flags.Set(FlagUpdateError)
		return
	}
	log.Info().Msg("component updated")
}

// Discover reconciles one component and its environments.
func (p *Processor) Discover(ctx context.Context, c catalogue.Component) dispatch.Flags {
	log := logging.FromContext(ctx)
	flags := dispatch.Flags{}
	log.Info().Msg("processing component")

	repo, ok := p.open(ctx, c, flags)
	if !ok {
		return flags
	}
	meta := repo.Metadata()
	b := NewBuilder(c.Versions)

	commit, commitKnown := p.independent(ctx, c, repo, b, flags)
	if meta.Archived {
		log.Info().Msg("repository is archived")
		flags.Set(FlagArchived)
		p.write(ctx, c, b.Build(), flags)
		return flags
	}

	if stored := c.LatestCommit; commitKnown && stored != nil && stored.SHA != "" && stored.SHA != commit.SHA {
		log.Info().Str("stored", stored.SHA).Str("live", commit.SHA).Msg("main commit has changed")
		flags.Set(FlagMainChanged)
	}

	candidates, envsKnown := p.candidates(ctx, repo)
	if p.envChanged(ctx, c, repo, candidates) {
		log.Info().Msg("environments have changed")
		flags.Set(FlagEnvChanged)
	}

	if !flags.Has(FlagMainChanged) && !flags.Has(FlagEnvChanged) && !p.force {
		log.Info().Msg("no main branch or environment changes")
		p.write(ctx, c, b.Build(), flags)
		return flags
	}

	log.Info().Msg("processing changed components")
	helm, helmKnown := p.changed(ctx, c, repo, b)

	res := p.envs.Reconcile(ctx, c, environments.Sources{
		Helm:       helm,
		Candidates: candidates,
		Complete:   helmKnown && envsKnown && p.svc.Bootstrap != nil,
	})
	for flag, names := range map[string][]string{
		FlagEnvAdded:   res.Added,
		FlagEnvUpdated: res.Updated,
		FlagEnvRemoved: res.Removed,
		FlagEnvError:   res.Errors,
	} {
		if len(names) > 0 {
			flags.Set(flag)
		}
	}

	p.write(ctx, c, b.Build(), flags)
	return flags
}

// independent sets the fields that can change without a commit to the
// default branch. It returns the head commit when it could be read.
func (p *Processor) independent(ctx context.Context, c catalogue.Component, repo repository.Handle, b *Builder, flags dispatch.Flags) (repository.Commit, bool) {
	log := logging.FromContext(ctx)
	meta := repo.Metadata()
	b.Metadata(meta)
	b.Topics(meta.Topics)

	commit, err := repo.HeadCommit(ctx)
	commitKnown := err == nil
	if err != nil {
		log.Error().Err(err).Msg("unable to read the default branch, check the github app has permission to see it")
		flags.Set(FlagAppDisabled)
	} else {
		b.LatestCommit(commit)
	}

	if !flags.Has(FlagAppDisabled) {
		protection, err := repo.BranchProtection(ctx)
		switch {
		case errors.Is(err, errors.ErrBranchNotProtected):
			flags.Set(FlagBranchProtectionDisabled)
			protection = repository.Protection{}
			err = nil
		case err != nil:
			log.Error().Err(err).Msg("unable to get branch protection")
			flags.Set(FlagAppDisabled)
		}

		if err == nil {
			access, terr := repo.Teams(ctx)
			if terr != nil {
				log.Error().Err(terr).Msg("unable to get teams information")
				flags.Set(FlagAppDisabled)
			} else {
				b.Teams(access)
				b.Protection(protection)
			}
		}
	}

	if workflows, err := repo.Workflows(ctx); err != nil {
		log.Warn().Err(err).Msg("unable to list workflows")
	} else {
		var disabled []string
		for _, w := range workflows {
			if !w.Active() {
				disabled = append(disabled, w.Name)
			}
		}
		if len(disabled) > 0 {
			flags.Set(FlagWorkflowsDisabled)
		}
		b.DisabledWorkflows(disabled)
	}

	if frontendName.MatchString(c.Name + " " + meta.Description) {
		log.Debug().Msg("detected frontend keyword, setting frontend flag")
		b.Frontend()
	}
	return commit, commitKnown
}

// candidates merges the bootstrap and GitHub environment sources. The bool
// is false when the GitHub environments could not be read.
func (p *Processor) candidates(ctx context.Context, repo repository.Handle) (map[string]environments.Candidate, bool) {
	var bootstrap *facts.BootstrapProject
	if project, ok := p.svc.Bootstrap[repo.Metadata().Name]; ok {
		bootstrap = &project
	}
	envs, err := repo.Environments(ctx)
	if err != nil {
		logging.FromContext(ctx).Warn().Err(err).Msg("unable to list github environments")
		return environments.Candidates(bootstrap, nil), false
	}
	return environments.Candidates(bootstrap, envs), true
}

// envChanged compares the live environment names against the catalogue
// without reading any values files.
func (p *Processor) envChanged(ctx context.Context, c catalogue.Component, repo repository.Handle, candidates map[string]environments.Candidate) bool {
	names, err := facts.HelmEnvironmentNames(ctx, repo, paths(c).HelmDir())
	switch {
	case errors.IsNotFound(err):
		names = nil
	case err != nil:
		logging.FromContext(ctx).Warn().Err(err).Msg("unable to list helm environments")
		return false
	}
	return environments.CheckEnvChange(environments.Live(names, candidates), c.EnvNames())
}

// changed derives every field that depends on the repository contents. It
// returns the Helm facts and whether the Helm directory could be read (a
// missing directory counts as read, with no environments).
func (p *Processor) changed(ctx context.Context, c catalogue.Component, repo repository.Handle, b *Builder) (facts.HelmFacts, bool) {
	log := logging.FromContext(ctx)
	meta := repo.Metadata()
	cp := paths(c)

	var helmFacts facts.HelmFacts
	helmKnown := true
	helm, err := facts.LoadHelm(ctx, repo, cp)
	switch {
	case errors.IsNotFound(err):
		log.Info().Str("helm_dir", cp.HelmDir()).Msg("no helm deploy directory")
	case err != nil:
		log.Warn().Err(err).Msg("unable to read helm deploy directory")
		helmKnown = false
	default:
		helmFacts = facts.DescribeHelm(ctx, helm, meta.Archived, p.svc.Alerts, p.svc.Prober)
		if helmFacts.API {
			b.API()
		}
		if image, ok := helm.ContainerImage(); ok {
			b.ContainerImage(image)
		}
		if pid, ok := helm.ProductID(); ok {
			p.product(ctx, pid, b)
		}
	}

	p.versions(ctx, c, repo, b)
	p.trivy(ctx, c, repo, b)

	if name, ok, err := facts.AppInsightsRoleName(ctx, repo, meta.Language, cp.ProjectDir()); err != nil {
		log.Warn().Err(err).Msg("unable to read app insights role name")
	} else if ok {
		b.AppInsightsRoleName(name)
	}
	return helmFacts, helmKnown
}

func (p *Processor) product(ctx context.Context, pid string, b *Builder) {
	id, err := p.svc.Catalogue.ProductDocumentID(ctx, pid)
	switch {
	case err == nil:
		b.Product(id)
	case errors.IsNotFound(err):
		logging.FromContext(ctx).Info().Str("product_id", pid).Msg("product not found in the catalogue")
	default:
		logging.FromContext(ctx).Warn().Err(err).Str("product_id", pid).Msg("unable to look up product")
	}
}

func (p *Processor) versions(ctx context.Context, c catalogue.Component, repo repository.Handle, b *Builder) {
	meta := repo.Metadata()
	cp := paths(c)
	extractors := []struct {
		section string
		read    func() (facts.VersionSection, error)
	}{
		{facts.VersionsHelm, func() (facts.VersionSection, error) { return facts.ChartDependencies(ctx, repo, cp) }},
		{facts.VersionsCircleCI, func() (facts.VersionSection, error) { return facts.OrbVersion(ctx, repo) }},
		{facts.VersionsGradle, func() (facts.VersionSection, error) { return facts.GradleVersion(ctx, repo, meta.Language) }},
		{facts.VersionsDockerfile, func() (facts.VersionSection, error) { return facts.DockerfileVersions(ctx, repo, cp.ProjectDir()) }},
		{facts.VersionsPython, func() (facts.VersionSection, error) { return facts.PythonVersions(ctx, repo) }},
	}
	for _, e := range extractors {
		section, err := e.read()
		if err != nil {
			logging.FromContext(ctx).Warn().Err(err).Str("section", e.section).Msg("unable to read versions")
			continue
		}
		b.Versions(e.section, section)
	}
}

// trivy reads the latest scan for repositories built on CircleCI.
func (p *Processor) trivy(ctx context.Context, c catalogue.Component, repo repository.Handle, b *Builder) {
	log := logging.FromContext(ctx)
	if p.svc.CircleCI == nil {
		return
	}
	if _, err := repo.File(ctx, facts.CircleCIConfigPath); err != nil {
		log.Debug().Msg("no circleci config found")
		return
	}
	results, err := p.svc.CircleCI.TrivyScan(ctx, c.Name)
	if err != nil {
		log.Warn().Err(err).Msg("unable to get circleci trivy scan results")
		return
	}
	b.Trivy(results)
}
