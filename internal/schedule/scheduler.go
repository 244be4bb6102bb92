package schedule

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/observability"
)

// Scheduler runs deferred actions strictly in enqueue order, sleeping each
// item's delay before firing it. An action never fires before its requested
// delay has elapsed; a later item with a shorter delay does not overtake an
// earlier one. A min-heap on absolute fire time would reorder mixed delays
// correctly, but FIFO matches how follow-ups are produced here.
type Scheduler struct {
	mu      sync.Mutex
	items   []item
	arrived *sync.Cond
	metrics *observability.Metrics
	log     *zap.SugaredLogger
	done    chan struct{}
}

type item struct {
	delay  time.Duration
	action func()
}

func New(metrics *observability.Metrics, log *zap.SugaredLogger) *Scheduler {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	s := &Scheduler{
		metrics: metrics,
		log:     log,
		done:    make(chan struct{}),
	}
	s.arrived = sync.NewCond(&s.mu)
	return s
}

// Schedule enqueues action to run once delay has elapsed.
func (s *Scheduler) Schedule(delay time.Duration, action func()) {
	if action == nil {
		return
	}
	s.mu.Lock()
	s.items = append(s.items, item{delay: delay, action: action})
	pending := len(s.items)
	s.mu.Unlock()
	if s.metrics != nil {
		s.metrics.ScheduledPending.Set(float64(pending))
	}
	s.arrived.Signal()
}

// Run consumes the queue until ctx is cancelled. Call it once, in its own
// goroutine. It returns after the in-flight action, if any, has finished;
// remaining pending actions are reported and dropped.
func (s *Scheduler) Run(ctx context.Context) {
	defer close(s.done)
	unwatch := context.AfterFunc(ctx, func() {
		s.mu.Lock()
		s.arrived.Broadcast()
		s.mu.Unlock()
	})
	defer unwatch()

	for {
		s.mu.Lock()
		for len(s.items) == 0 && ctx.Err() == nil {
			s.arrived.Wait()
		}
		if ctx.Err() != nil {
			pending := len(s.items)
			s.items = nil
			s.mu.Unlock()
			if pending > 0 {
				s.log.Warnw("scheduler stopping with pending actions", "pending", pending)
			}
			return
		}
		next := s.items[0]
		s.items = s.items[1:]
		pending := len(s.items)
		s.mu.Unlock()
		if s.metrics != nil {
			s.metrics.ScheduledPending.Set(float64(pending))
		}

		if !s.sleep(ctx, next.delay) {
			s.log.Warnw("scheduler cancelled before firing action", "delay", next.delay)
			return
		}
		s.fire(next.action)
	}
}

// Done is closed once the run loop has fully stopped.
func (s *Scheduler) Done() <-chan struct{} { return s.done }

func (s *Scheduler) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *Scheduler) fire(action func()) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorw("scheduled action panicked", "panic", r)
		}
	}()
	action()
}
