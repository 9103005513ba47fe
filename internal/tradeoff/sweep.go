package tradeoff

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"
)

// Sweeper removes expired entries from a KV store.
type Sweeper interface {
	SweepExpired(ctx context.Context) error
}

// StartSweep periodically sweeps expired KV entries. It blocks until the
// context is cancelled.
func StartSweep(ctx context.Context, store Sweeper, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := store.SweepExpired(ctx); err != nil {
				log.Debug().Err(err).Msg("kv sweep failed")
			}
		}
	}
}
