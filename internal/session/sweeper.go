package session

import (
	"context"
	"sync"
	"time"

	"buffonomics/internal/middleware"
	"buffonomics/internal/observability"
)

// DefaultSweepInterval is how often expired sessions are purged.
const DefaultSweepInterval = 5 * time.Minute

// Sweeper periodically removes expired sessions from a Store.
type Sweeper struct {
	store    Store
	interval time.Duration

	mu      sync.Mutex
	started bool
	stopped bool
	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
}

// NewSweeper returns a sweeper for store. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(store Store, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{store: store, interval: interval, done: make(chan struct{})}
}

// Start runs the sweep loop in a goroutine until ctx is cancelled or Stop is called.
// A sweeper runs at most once; Start after Start or Stop is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started || s.stopped {
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	go s.run(ctx)
}

func (s *Sweeper) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := s.store.Sweep(ctx); removed > 0 {
				observability.SessionsSwept.Add(float64(removed))
				middleware.Logger.Info("expired sessions swept", "removed", removed, "remaining", s.store.Len())
			}
		}
	}
}

// Stop halts the loop and waits for it to exit. It is safe to call more than once.
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		s.mu.Lock()
		s.stopped = true
		cancel := s.cancel
		s.mu.Unlock()
		if cancel == nil {
			return
		}
		cancel()
		<-s.done
	})
}
