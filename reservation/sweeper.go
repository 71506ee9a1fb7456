package reservation

import (
	"context"
	"log/slog"
	"time"
)

// Expirer sweeps lapsed holds and reports how many it expired.
type Expirer interface {
	ExpireReservations(ctx context.Context, now time.Time) int
}

// Sweeper expires lapsed holds on a fixed interval. Fleet operations also
// expire holds lazily on the stations they touch; the sweeper catches the
// stations nothing touches.
type Sweeper struct {
	expirer  Expirer
	interval time.Duration
	logger   *slog.Logger
}

func NewSweeper(expirer Expirer, interval time.Duration, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		expirer:  expirer,
		interval: interval,
		logger:   logger,
	}
}

// Run sweeps until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := s.expirer.ExpireReservations(ctx, now); n > 0 {
				s.logger.InfoContext(ctx, "swept expired reservations", slog.Int("count", n))
			}
		}
	}
}
