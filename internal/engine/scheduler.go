package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"pricewatch/internal/metrics"
)

// CycleRunner is what the scheduler drives each tick. *Evaluator is the
// production implementation.
type CycleRunner interface {
	EvaluateCycle(ctx context.Context)
}

// Scheduler triggers evaluation cycles at a fixed cadence. Ticks never
// overlap: if a cycle is still running when the next tick is due, that tick
// is dropped (and counted) rather than queued, bounding resource use under
// a slow upstream feed.
type Scheduler struct {
	interval time.Duration
	clock    Clock
	runner   CycleRunner
	met      *metrics.Metrics
	log      *slog.Logger

	running atomic.Bool // an evaluation cycle is in flight
	started atomic.Bool
	cancel  context.CancelFunc
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewScheduler creates a scheduler. clock is injectable for tests; pass
// RealClock{} in production.
func NewScheduler(interval time.Duration, clock Clock, runner CycleRunner,
	met *metrics.Metrics, log *slog.Logger) *Scheduler {
	return &Scheduler{
		interval: interval,
		clock:    clock,
		runner:   runner,
		met:      met,
		log:      log,
	}
}

// Start launches the tick loop. Calling Start on a started scheduler is a
// no-op.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.started.CompareAndSwap(false, true) {
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	go s.run(ctx)
	s.log.Info("scheduler started", "interval", s.interval)
}

// Stop halts the tick loop and waits for any in-flight cycle to finish.
func (s *Scheduler) Stop() {
	if !s.started.CompareAndSwap(true, false) {
		return
	}
	s.cancel()
	<-s.done
	s.wg.Wait()
	s.log.Info("scheduler stopped")
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := s.clock.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C():
			s.tick(ctx)
		}
	}
}

// tick starts one evaluation cycle unless the previous one is still
// running, in which case the tick is dropped.
func (s *Scheduler) tick(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.met.TicksDropped.Inc()
		s.log.Warn("tick dropped: previous cycle still running")
		return
	}
	s.met.TicksTotal.Inc()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runner.EvaluateCycle(ctx)
	}()
}
