package server

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Cleaner removes expired codes and tokens.
type Cleaner interface {
	DeleteExpired(ctx context.Context) (int, error)
}

// RunCleanup calls DeleteExpired every interval until ctx is done. A failed
// sweep is logged and retried on the next tick.
func RunCleanup(ctx context.Context, cleaner Cleaner, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := cleaner.DeleteExpired(ctx)
			if err != nil {
				logger.Error().Err(err).Msg("expired token sweep failed")
				continue
			}
			logger.Info().Int("count", n).Msg("expired tokens deleted")
		}
	}
}
