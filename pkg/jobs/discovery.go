package jobs

import (
	"context"
	"sort"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/components"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// discovery reconciles every component, then the products, then reports
// app insights cloud role names shared between components.
func (x *run) discovery(ctx context.Context) error {
	log := logging.FromContext(ctx)
	proc := x.processor(ctx, true, components.WithForce(x.req.Force))

	log.Info().Msg("batch processing components")
	if comps, ok := x.components(ctx); ok {
		x.report.Results = x.batch(ctx, comps, proc.Discover)
	}

	log.Info().Msg("batch processing products")
	x.report.Products = x.products(ctx)

	if comps, ok := x.components(ctx); ok {
		x.report.DuplicateRoles = duplicateRoles(comps)
	}

	x.report.Summary = discoverySummary(x.report, x.req.Force)
	x.notify(ctx, x.report.Summary)
	return nil
}

// component reconciles a single component on the full path. Archived
// components are skipped.
func (x *run) component(ctx context.Context) error {
	log := logging.FromContext(ctx).With().Str("component", x.req.Component).Logger()
	c, err := x.svc.Catalogue.Component(ctx, x.req.Component)
	switch {
	case errors.IsNotFound(err):
		log.Error().Msg("component not found in the service catalogue")
		return nil
	case err != nil:
		log.Error().Err(err).Msg("unable to read component from the service catalogue")
		return nil
	case c.Archived:
		log.Info().Msg("component is archived, skipping")
		return nil
	}

	proc := x.processor(ctx, true, components.WithForce(true))
	flags := proc.Discover(logging.WithComponent(ctx, c.Name), c)
	x.report.Results = []dispatch.Result{{Name: c.Name, Flags: flags}}
	log.Info().Strs("flags", flags.Names()).Msg("processed component")
	return nil
}

// duplicateRoles groups components by app insights cloud role name and
// keeps the names used more than once.
func duplicateRoles(comps []catalogue.Component) map[string][]string {
	byRole := map[string][]string{}
	for _, c := range comps {
		if role := c.AppInsightsCloudRoleName; role != "" {
			byRole[role] = append(byRole[role], c.Name)
		}
	}
	out := map[string][]string{}
	for role, names := range byRole {
		if len(names) > 1 {
			sort.Strings(names)
			out[role] = names
		}
	}
	return out
}

// security refreshes the security fields of every component.
func (x *run) security(ctx context.Context) error {
	proc := x.processor(ctx, false)
	if comps, ok := x.components(ctx); ok {
		x.report.Results = x.batch(ctx, comps, proc.Security)
	}
	x.report.Summary = batchSummary(x.report, "Github Security Discovery completed OK", securityCategories)
	x.notify(ctx, x.report.Summary)
	return nil
}

// workflows records the non-core actions used by every component.
func (x *run) workflows(ctx context.Context) error {
	proc := x.processor(ctx, false)
	if comps, ok := x.components(ctx); ok {
		x.report.Results = x.batch(ctx, comps, proc.Workflows)
	}
	x.report.Summary = batchSummary(x.report, "Github Workflows Discovery completed OK", workflowCategories)
	x.notify(ctx, x.report.Summary)
	return nil
}
