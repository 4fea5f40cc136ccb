package app

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// expiredSessionPurger removes refresh tokens that can no longer be used.
type expiredSessionPurger interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// sessionSweeper periodically purges expired refresh tokens.
type sessionSweeper struct {
	store    expiredSessionPurger
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

func newSessionSweeper(store expiredSessionPurger, interval time.Duration, logger *slog.Logger) *sessionSweeper {
	if interval <= 0 {
		interval = time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &sessionSweeper{
		store:    store,
		interval: interval,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Start launches the sweep loop. The first sweep runs immediately.
func (s *sessionSweeper) Start() {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			s.sweep()
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
			}
		}
	}()
}

// Stop cancels the loop and waits for an in-flight sweep to finish.
func (s *sessionSweeper) Stop(ctx context.Context) error {
	s.once.Do(s.cancel)

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return nil
	}
}

func (s *sessionSweeper) sweep() {
	ctx, cancel := context.WithTimeout(s.ctx, 30*time.Second)
	defer cancel()

	removed, err := s.store.DeleteExpired(ctx, s.now())
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("purge expired sessions", "error", err)
		}
		return
	}
	if removed > 0 {
		s.logger.Info("purged expired sessions", "count", removed)
	}
}
