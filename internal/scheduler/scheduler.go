// Package scheduler decides when unit runs fire. It owns the running set and
// the per-unit overlap queue; the actual run execution happens elsewhere,
// behind the trigger callback, and completion is reported back through
// MarkComplete.
package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/rota-dev/rota/internal/config"
	"github.com/rota-dev/rota/internal/cron"
	"github.com/rota-dev/rota/internal/logger"
	"github.com/rota-dev/rota/internal/unit"
)

// CatalogProvider supplies the current unit snapshots.
type CatalogProvider interface {
	Units() []unit.Unit
	Get(id string) (unit.Unit, bool)
}

// TriggerFunc launches a run for a unit. It must return quickly (the run
// itself happens asynchronously) and guarantee that MarkComplete is
// eventually called for the unit id, whatever the outcome.
type TriggerFunc func(u unit.Unit)

// Scheduler evaluates unit schedules once per minute and enforces the
// overlap policy for re-triggering. All running/queued bookkeeping is
// serialized through one mutex; trigger callbacks are invoked outside it.
type Scheduler struct {
	mu      sync.Mutex
	running map[string]bool
	queue   []string

	catalog   CatalogProvider
	defaults  func() config.Defaults
	isPaused  func() bool
	onTrigger TriggerFunc
	logger    *logger.Logger

	stop context.CancelFunc
}

// New creates a scheduler. The defaults func is consulted per trigger so
// config changes take effect without a restart; isPaused gates scheduled
// (not manual) firings.
func New(catalog CatalogProvider, defaults func() config.Defaults, isPaused func() bool, onTrigger TriggerFunc, log *logger.Logger) *Scheduler {
	return &Scheduler{
		running:   make(map[string]bool),
		catalog:   catalog,
		defaults:  defaults,
		isPaused:  isPaused,
		onTrigger: onTrigger,
		logger:    log,
	}
}

// Start runs the evaluation loop until the context is cancelled. The first
// evaluation is aligned to the next minute boundary, then one fires every
// 60 seconds. Blocks; run it in its own goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.stop = cancel
	s.mu.Unlock()

	delay := time.Duration(60-time.Now().Second()) * time.Second
	s.logger.Info("scheduler started",
		logger.Field{Key: "first_tick_in", Value: delay})

	first := time.NewTimer(delay)
	defer first.Stop()

	select {
	case <-ctx.Done():
		return
	case <-first.C:
		s.tick()
	}

	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// Stop tears down the evaluation loop started by Start. In-flight runs are
// unaffected; they still report through MarkComplete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.stop
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
}

// tick runs one scheduled evaluation against the live catalog and clock.
func (s *Scheduler) tick() {
	s.Evaluate(s.catalog.Units(), s.isPaused, time.Now())
}

// Evaluate applies the matching and trigger logic for one instant. It is the
// testable core of the periodic tick: no timers, the instant is explicit.
func (s *Scheduler) Evaluate(units []unit.Unit, isPaused func() bool, now time.Time) {
	if isPaused() {
		return
	}

	for _, u := range units {
		if !u.Config.Enabled {
			continue
		}
		if cron.Matches(u.Config.Schedule, now) {
			s.handleTrigger(u)
		}
	}
}

// TriggerManually fires a unit immediately, ignoring the cron schedule and
// the pause flag. The overlap policy still applies.
func (s *Scheduler) TriggerManually(u unit.Unit) {
	s.handleTrigger(u)
}

// MarkComplete releases a unit from the running set. A queued re-trigger for
// the same unit is dequeued and fired. Unknown ids are no-ops.
func (s *Scheduler) MarkComplete(unitID string) {
	s.mu.Lock()
	delete(s.running, unitID)

	queued := false
	for i, id := range s.queue {
		if id == unitID {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			queued = true
			break
		}
	}
	s.mu.Unlock()

	if !queued {
		return
	}

	if u, ok := s.catalog.Get(unitID); ok {
		s.logger.Info("starting queued run",
			logger.Field{Key: "unit", Value: unitID})
		s.handleTrigger(u)
	}
}

// handleTrigger applies the overlap policy and, when appropriate, invokes
// the trigger callback. The callback runs outside the mutex so a slow
// callback cannot stall other bookkeeping.
func (s *Scheduler) handleTrigger(u unit.Unit) {
	overlap := config.ResolveOverlap(u.Config, s.defaults())

	s.mu.Lock()
	if s.running[u.ID] {
		switch overlap {
		case config.OverlapQueue:
			if !s.queuedLocked(u.ID) {
				s.queue = append(s.queue, u.ID)
				s.logger.Info("unit queued behind active run",
					logger.Field{Key: "unit", Value: u.ID})
			}
			s.mu.Unlock()
			return
		case config.OverlapParallel:
			s.mu.Unlock()
			s.fire(u)
			return
		default: // skip
			s.mu.Unlock()
			s.logger.Debug("trigger skipped, unit already running",
				logger.Field{Key: "unit", Value: u.ID})
			return
		}
	}

	s.running[u.ID] = true
	s.mu.Unlock()
	s.fire(u)
}

func (s *Scheduler) fire(u unit.Unit) {
	if s.onTrigger == nil {
		return
	}
	s.onTrigger(u)
}

func (s *Scheduler) queuedLocked(id string) bool {
	for _, qid := range s.queue {
		if qid == id {
			return true
		}
	}
	return false
}

// Running returns the ids currently marked running.
func (s *Scheduler) Running() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.running))
	for id := range s.running {
		out = append(out, id)
	}
	return out
}

// IsRunning reports whether a unit id is currently running.
func (s *Scheduler) IsRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[id]
}

// Queued returns the queued ids in FIFO order.
func (s *Scheduler) Queued() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, len(s.queue))
	copy(out, s.queue)
	return out
}
