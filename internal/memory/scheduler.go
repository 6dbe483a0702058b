package memory

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Scheduler drives the consolidation policy on a fixed period, independent
// of request handling. A cycle that fails (store momentarily unavailable)
// is logged and retried next cycle; the loop never terminates the process.
type Scheduler struct {
	lifecycle *Lifecycle
	interval  time.Duration
	grace     time.Duration
	log       *zap.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewScheduler creates a scheduler that runs consolidation every interval.
// grace bounds how long Stop waits for an in-flight cycle.
func NewScheduler(lifecycle *Lifecycle, interval, grace time.Duration, log *zap.Logger) *Scheduler {
	return &Scheduler{lifecycle: lifecycle, interval: interval, grace: grace, log: log}
}

// Start launches the background loop. Calling Start on a running scheduler
// is a no-op.
func (s *Scheduler) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

// Stop signals the loop to exit and waits for the current cycle to finish,
// up to the configured grace period.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	select {
	case <-done:
	case <-time.After(s.grace):
		s.log.Warn("scheduler did not stop within grace period",
			zap.Duration("grace", s.grace))
	}
}

func (s *Scheduler) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	s.log.Info("consolidation scheduler started", zap.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		s.cycle(stop)
		select {
		case <-stop:
			s.log.Info("consolidation scheduler stopped")
			return
		case <-ticker.C:
		}
	}
}

func (s *Scheduler) cycle(stop <-chan struct{}) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		select {
		case <-stop:
			cancel()
		case <-ctx.Done():
		}
	}()

	if err := s.lifecycle.RunConsolidation(ctx); err != nil {
		s.log.Error("consolidation cycle failed", zap.Error(err))
	}
}
