package main

import (
	"context"
	"time"

	"storefront/internal/kvstore"
)

const (
	kvSweepInterval       = 10 * time.Minute
	pushTokenPruneEvery   = 24 * time.Hour
	pushTokenMaxStaleness = 70 * 24 * time.Hour
)

func (app *application) startBackgroundJobs(ctx context.Context) {
	if sw, ok := app.store.KV.(kvstore.Sweeper); ok {
		app.every(ctx, kvSweepInterval, "sweep expired kv entries", func(ctx context.Context) (int64, error) {
			return sw.Sweep(ctx)
		})
	}
	app.every(ctx, pushTokenPruneEvery, "prune stale push tokens", func(ctx context.Context) (int64, error) {
		return app.store.PushTokens.PruneStaleTokens(ctx, pushTokenMaxStaleness)
	})
}

// every runs job once immediately and then on each tick until ctx is done.
func (app *application) every(ctx context.Context, interval time.Duration, name string, job func(context.Context) (int64, error)) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		run := func() {
			n, err := job(ctx)
			if err != nil {
				app.logger.Errorw("background job failed", "job", name, "error", err)
				return
			}
			app.logger.Infow("background job done", "job", name, "affected", n, "at", time.Now().Format(time.RFC1123))
		}

		// Run once immediately
		run()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run()
			}
		}
	}()
}
