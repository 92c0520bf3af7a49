// Package ingest runs pluggable background adapters that express external
// data as object mutations against the world model, through exactly the
// mutation interface session workers use. Grounded on the original
// implementation's loader-thread pattern: fetch, diff, sleep N seconds,
// repeat until killed.
package ingest

import (
	"context"
	"time"

	"cyberspace/logging"
	"cyberspace/world"
)

// Adapter fetches external data and upserts it into w. Implementations must
// be idempotent: repeated calls with unchanged source data must not create
// duplicate objects.
type Adapter interface {
	Name() string
	Sync(ctx context.Context, w *world.World) error
}

// Runner wakes an adapter on a fixed interval. A transient fetch failure is
// logged; the runner retries on the next tick rather than backing off or
// giving up, matching the loader thread's retry-next-wakeup behavior.
type Runner struct {
	adapter  Adapter
	interval time.Duration
	world    *world.World
}

func NewRunner(a Adapter, interval time.Duration, w *world.World) *Runner {
	return &Runner{adapter: a, interval: interval, world: w}
}

// Run performs an initial sync immediately, then resyncs every interval
// until ctx is cancelled.
func (r *Runner) Run(ctx context.Context) {
	r.syncOnce(ctx)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.syncOnce(ctx)
		}
	}
}

func (r *Runner) syncOnce(ctx context.Context) {
	if err := r.adapter.Sync(ctx, r.world); err != nil {
		logging.Warn("ingestion adapter sync failed", map[string]interface{}{
			"adapter": r.adapter.Name(),
			"error":   err.Error(),
		})
	}
}
