package jobs

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/catalogue"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// products refreshes the Slack channel name of every product and returns
// the number of products processed.
func (x *run) products(ctx context.Context) int {
	log := logging.FromContext(ctx)
	if x.svc.Slack == nil || !x.svc.Slack.Enabled() {
		log.Warn().Msg("slack is not configured, skipping products")
		return 0
	}
	products, err := x.svc.Catalogue.Products(ctx)
	if err != nil {
		log.Error().Err(err).Msg("unable to list products from the service catalogue")
		return 0
	}
	log.Info().Int("products", len(products)).Msg("processing batch of products")

	// Slack rate limits per method tier; the client paces calls as well.
	var g errgroup.Group
	g.SetLimit(x.workers)
	for _, p := range products {
		g.Go(func() error {
			x.product(ctx, p)
			return nil
		})
	}
	_ = g.Wait()
	return len(products)
}

// product updates slack_channel_name when it no longer matches the channel.
func (x *run) product(ctx context.Context, p catalogue.Product) {
	log := logging.FromContext(ctx).With().Str("product", p.PID).Str("name", p.Name).Logger()
	if p.SlackChannelID == "" {
		return
	}
	name, err := x.svc.Slack.ChannelName(ctx, p.SlackChannelID)
	if err != nil {
		log.Warn().Err(err).Str("channel", p.SlackChannelID).Msg("unable to look up slack channel")
		return
	}
	if name == "" || name == p.SlackChannelName {
		return
	}
	if err := x.svc.Catalogue.UpdateProduct(ctx, p.DocumentID, map[string]any{"slack_channel_name": name}); err != nil {
		log.Error().Err(err).Msg("unable to update product")
		return
	}
	log.Info().Str("slack_channel_name", name).Msg("product slack channel name updated")
}

func (x *run) productsJob(ctx context.Context) error {
	x.report.Products = x.products(ctx)
	x.report.Summary = productsSummary(x.report)
	x.notify(ctx, x.report.Summary)
	return nil
}
