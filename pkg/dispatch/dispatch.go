// Package dispatch runs per-item work on a fixed pool of workers, pausing
// for the GitHub rate limit once a worker is free and before the item starts.
package dispatch

import (
	"context"
	"fmt"

	"github.com/sourcegraph/conc/panics"
	"github.com/sourcegraph/conc/pool"
	"golang.org/x/sync/semaphore"

	"github.com/ministryofjustice/hmpps-github-discovery/pkg/constants"
	"github.com/ministryofjustice/hmpps-github-discovery/pkg/logging"
)

// FlagPanic is set on an item whose worker panicked.
const FlagPanic = "panic"

// Dispatcher bounds concurrency and consults a Gate before each start.
type Dispatcher struct {
	workers int
	gate    *Gate
}

// New creates a dispatcher with at most workers concurrent items. gate may
// be nil for work that does not call GitHub.
func New(workers int, gate *Gate) *Dispatcher {
	if workers <= 0 {
		workers = constants.MaxWorkers
	}
	return &Dispatcher{workers: workers, gate: gate}
}

// Work processes one item and reports its flags.
type Work[T any] func(ctx context.Context, item T) Flags

// Run processes every item and returns the collected outcomes. Starting an
// item blocks while the pool is full; the gate is consulted only after a
// worker slot is held, so the rate limit it sees is current. Cancelling ctx
// stops new items from starting; items already running finish.
func Run[T any](ctx context.Context, d *Dispatcher, items []T, name func(T) string, work Work[T]) *Results {
	log := logging.FromContext(ctx)
	results := &Results{}
	slots := semaphore.NewWeighted(int64(d.workers))
	p := pool.New().WithMaxGoroutines(d.workers)

	log.Info().Int("count", len(items)).Int("workers", d.workers).Msg("processing batch")
	for i, item := range items {
		if ctx.Err() != nil {
			log.Warn().Int("remaining", len(items)-i).Msg("batch cancelled")
			break
		}
		itemName := name(item)
		log.Info().Msgf("%d/%d - preparing to process %s (%d%% complete)", i+1, len(items), itemName, i*100/len(items))
		if err := slots.Acquire(ctx, 1); err != nil {
			log.Warn().Int("remaining", len(items)-i).Msg("batch cancelled")
			break
		}
		if d.gate != nil {
			if err := d.gate.Wait(ctx); err != nil {
				slots.Release(1)
				log.Warn().Err(err).Msg("stopped waiting for github rate limit")
				break
			}
		}

		p.Go(func() {
			defer slots.Release(1)
			itemCtx := logging.WithComponent(ctx, itemName)
			var flags Flags
			var pc panics.Catcher
			pc.Try(func() { flags = work(itemCtx, item) })
			if r := pc.Recovered(); r != nil {
				logging.FromContext(itemCtx).Error().Str("panic", fmt.Sprint(r.Value)).Msg("worker panicked")
				flags = Flags{}
				flags.Set(FlagPanic)
			}
			results.Add(itemName, flags)
		})
	}
	p.Wait()
	log.Info().Int("processed", results.Len()).Msg("batch complete")
	return results
}
