package components

import (
	"context"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/dispatch"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/errors"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/facts"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// Repository variables recorded on the component.
const (
	VariableProductID              = "HMPPS_PRODUCT_ID"
	VariableSecurityAlertsChannel  = "SECURITY_ALERTS_SLACK_CHANNEL_ID"
	VariableProdReleasesChannel    = "PROD_RELEASES_SLACK_CHANNEL"
	VariableNonprodReleasesChannel = "NONPROD_RELEASES_SLACK_CHANNEL"
)

// Security records code scanning alerts, standards compliance, security
// settings and repository variables. Nothing is written when none of them
// could be determined.
func (p *Processor) Security(ctx context.Context, c catalogue.Component) dispatch.Flags {
	log := logging.FromContext(ctx)
	flags := dispatch.Flags{}

	repo, ok := p.open(ctx, c, flags)
	if !ok {
		return flags
	}
	meta := repo.Metadata()
	var u catalogue.ComponentUpdate

	if alerts, err := repo.CodeScanningAlerts(ctx); err != nil {
		log.Warn().Err(err).Msg("unable to get code scanning alerts")
	} else if summary := facts.SummariseCodeScanning(alerts); summary != nil {
		u.CodescanningSummary = summary
		flags.Set(FlagReposWithVulnerabilities)
	}

	if meta.Snapshot != nil {
		compliance := facts.Compliance(meta.Snapshot, facts.Standards)
		u.StandardsCompliance = make(map[string]any, len(compliance))
		for k, v := range compliance {
			u.StandardsCompliance[k] = v
		}
	}

	if ignore, ok, err := facts.NpmIgnoreScripts(ctx, repo, meta.Language); err != nil {
		log.Warn().Err(err).Msg("unable to read .npmrc")
	} else if ok {
		u.SecuritySettings = map[string]any{"npm": map[string]any{"ignore_scripts": ignore}}
	}

	variables := map[string]**string{
		VariableSecurityAlertsChannel:  &u.SlackChannelSecurityScansNotify,
		VariableProdReleasesChannel:    &u.SlackChannelProdReleaseNotify,
		VariableNonprodReleasesChannel: &u.SlackChannelNonprodReleaseNotify,
	}
	for name, field := range variables {
		if v, ok := p.variable(ctx, repo, name); ok {
			*field = &v
		}
	}
	if pid, ok := p.variable(ctx, repo, VariableProductID); ok {
		id, err := p.svc.Catalogue.ProductDocumentID(ctx, pid)
		switch {
		case err == nil:
			u.Product = &id
		case errors.IsNotFound(err):
			log.Info().Str("product_id", pid).Msg("product not found in the catalogue")
		default:
			log.Warn().Err(err).Str("product_id", pid).Msg("unable to look up product")
		}
	}

	p.write(ctx, c, u, flags)
	return flags
}

type variableReader interface {
	Variable(ctx context.Context, name string) (string, error)
}

func (p *Processor) variable(ctx context.Context, repo variableReader, name string) (string, bool) {
	v, err := repo.Variable(ctx, name)
	switch {
	case err == nil:
		return v, v != ""
	case errors.IsNotFound(err):
		logging.FromContext(ctx).Debug().Str("variable", name).Msg("repository variable not found")
	default:
		logging.FromContext(ctx).Debug().Err(err).Str("variable", name).Msg("unable to read repository variable")
	}
	return "", false
}
