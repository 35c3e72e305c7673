package queue

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
)

// Scheduler fires the manager's try-drain on a fixed interval, independent
// of load. It is the only place that invokes Drain concurrently with itself;
// single-flight is enforced by Manager.TryDrain, so an overlapping tick is
// simply lost.
type Scheduler struct {
	mgr      *Manager
	interval time.Duration
	logger   *log.Logger

	once    sync.Once
	started atomic.Bool
	stop    chan struct{}
	done    chan struct{}
}

// NewScheduler builds a trigger for the given manager.
func NewScheduler(mgr *Manager, interval time.Duration, logger *log.Logger) *Scheduler {
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Scheduler{
		mgr:      mgr,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start launches the trigger loop. Safe to call once; the loop ends when the
// context is cancelled or Stop is called.
func (s *Scheduler) Start(ctx context.Context) {
	s.once.Do(func() {
		s.started.Store(true)
		go s.run(ctx)
	})
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)
	s.logger.Debug("scheduler started", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("scheduler stopped", "reason", ctx.Err())
			return
		case <-s.stop:
			s.logger.Debug("scheduler stopped")
			return
		case <-ticker.C:
			go s.mgr.TryDrain(ctx)
		}
	}
}

// Stop ends the trigger loop and waits for it to exit. A drain already in
// flight keeps running; only future ticks are cancelled.
func (s *Scheduler) Stop() {
	select {
	case <-s.stop:
	default:
		close(s.stop)
	}
	if s.started.Load() {
		<-s.done
	}
}
