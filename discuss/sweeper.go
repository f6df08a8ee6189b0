package discuss

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper periodically purges inert threads.
type Sweeper struct {
	svc      Sweepable
	interval time.Duration
}

func NewSweeper(svc Sweepable, interval time.Duration) *Sweeper {
	return &Sweeper{
		svc:      svc,
		interval: interval,
	}
}

// Run blocks until ctx is done. A non-positive interval disables sweeping.
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := s.svc.Sweep(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "failed to sweep comments", "error", err)

				continue
			}

			if len(purged) > 0 {
				slog.InfoContext(ctx, "swept inert comment threads", "deleted", len(purged))
			}
		}
	}
}
