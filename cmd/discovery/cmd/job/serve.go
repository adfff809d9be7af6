package job

import (
	"context"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/ministryofjustice/hmpps-github-discovery/internal/appcontext"
	"github.com/ministryofjustice/hmpps-github-discovery/internal/server"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/jobs"
)

// Serve runs req every refresh interval until ctx is cancelled, with the
// health server listening alongside. A failed run is logged and retried on
// the next interval.
func Serve(ctx context.Context, app appcontext.Interface, w io.Writer, req jobs.Request) error {
	logger := app.Logger()
	interval := app.RefreshInterval()
	if interval <= 0 {
		interval = constants.DefaultRefreshInterval
	}

	var gatherer prometheus.Gatherer
	if m := app.Metrics(); m != nil {
		gatherer = m.Gatherer()
	}
	srv := server.New(app.ServerConfig(), gatherer, logger)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(ctx)
	})
	g.Go(func() error {
		timer := time.NewTimer(0)
		defer timer.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}
			if err := Run(ctx, app, w, req); err != nil {
				logger.Error().Err(err).Str("job", req.Kind.JobName(req.Force)).Msg("job failed")
			}
			logger.Info().Dur("interval", interval).Msg("waiting for the next run")
			timer.Reset(interval)
		}
	})
	return g.Wait()
}
