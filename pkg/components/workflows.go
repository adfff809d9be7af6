package components

import (
	"context"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Workflows records the third party actions referenced under .github.
func (p *Processor) Workflows(ctx context.Context, c catalogue.Component) dispatch.Flags {
	log := logging.FromContext(ctx)
	flags := dispatch.Flags{}

	repo, ok := p.open(ctx, c, flags)
	if !ok {
		return flags
	}

	actions, err := facts.RepositoryActions(ctx, repo)
	if err != nil {
		log.Warn().Err(err).Msg("unable to load the workflows folder")
		return flags
	}
	if actions == nil {
		actions = []facts.Action{}
	}
	if len(actions) > 0 {
		flags.Set(FlagQtyRepos)
	}
	log.Debug().Int("actions", len(actions)).Msg("non-core actions found")

	p.write(ctx, c, catalogue.ComponentUpdate{NonCoreActions: actions}, flags)
	return flags
}
