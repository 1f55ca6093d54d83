package cache

import (
	"context"
	"time"

	"github.com/vsporte/fhm-matches/internal/logger"
)

// Warm keeps the snapshot fresh in the background until ctx is done.
// It checks once immediately, then every interval.
func (a *Accessor) Warm(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = a.opts.ErrorTTL
	}

	a.warmOnce(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			logger.Info("warmer stopped", nil)
			return
		case <-ticker.C:
			a.warmOnce(ctx)
		}
	}
}

func (a *Accessor) warmOnce(ctx context.Context) {
	if !a.Stale() {
		return
	}
	res, err := a.Get(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Error("background refresh failed", nil, err)
		}
		return
	}
	logger.Info("background refresh complete", logger.Fields{
		"matches": res.Snapshot.TotalMatches,
		"failed":  res.Snapshot.Failed(),
	})
}
