package db

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// SessionPurger deletes sessions whose expiry lies before cutoff.
type SessionPurger interface {
	DeleteExpiredSessions(ctx context.Context, cutoff time.Time) (int64, error)
}

// StartSessionCleaner periodically removes sessions that expired more than
// retention ago. It returns immediately; the loop stops when ctx is done.
func StartSessionCleaner(
	ctx context.Context,
	purger SessionPurger,
	interval time.Duration,
	retention time.Duration,
	log *zap.Logger,
) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				cutoff := time.Now().Add(-retention)
				removed, err := purger.DeleteExpiredSessions(ctx, cutoff)
				if err != nil {
					log.Error("failed to clean expired sessions", zap.Error(err))
					continue
				}
				if removed > 0 {
					log.Info("cleaned expired sessions", zap.Int64("removed", removed))
				}
			}
		}
	}()
}
