package dispatch

import (
	"context"
	"time"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/repository"
)

// RateLimiter is the GitHub client as seen by the gate.
type RateLimiter interface {
	RateLimit(ctx context.Context) (repository.RateLimit, error)
	Reauthenticate(ctx context.Context) error
}

// Gate pauses work while the GitHub core quota is below a floor.
type Gate struct {
	limiter RateLimiter
	floor   int
	grace   time.Duration
	now     func() time.Time
	sleep   func(ctx context.Context, d time.Duration) error
}

// GateOption configures a Gate.
type GateOption func(*Gate)

// WithFloor sets the remaining quota below which the gate waits.
func WithFloor(n int) GateOption {
	return func(g *Gate) { g.floor = n }
}

// WithClock replaces the clock and sleep function, for tests.
func WithClock(now func() time.Time, sleep func(context.Context, time.Duration) error) GateOption {
	return func(g *Gate) {
		g.now = now
		g.sleep = sleep
	}
}

// NewGate creates a gate over limiter.
func NewGate(limiter RateLimiter, opts ...GateOption) *Gate {
	g := &Gate{
		limiter: limiter,
		floor:   constants.RateLimitFloor,
		grace:   constants.RateLimitGrace,
		now:     time.Now,
		sleep:   sleepContext,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Wait refreshes the rate limit and, while it is under the floor, sleeps
// until the reset time plus a grace period and then re-authenticates, since
// the installation token will have expired in the meantime. A failed refresh
// is logged and does not block.
func (g *Gate) Wait(ctx context.Context) error {
	log := logging.FromContext(ctx)
	for {
		rate, err := g.limiter.RateLimit(ctx)
		if err != nil {
			log.Warn().Err(err).Msg("unable to refresh github rate limit")
			return nil
		}
		log.Info().
			Int("remaining", rate.Remaining).
			Int("limit", rate.Limit).
			Time("reset", rate.Reset).
			Msg("github API rate limit")
		if rate.Remaining >= g.floor {
			return nil
		}

		wait := rate.Reset.Sub(g.now()) + g.grace
		if wait < g.grace {
			wait = g.grace
		}
		log.Info().Dur("wait", wait).Msg("backing off to avoid github API limits")
		if err := g.sleep(ctx, wait); err != nil {
			return err
		}
		if err := g.limiter.Reauthenticate(ctx); err != nil {
			return err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
