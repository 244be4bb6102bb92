package queue

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/observability"
	"github.com/avarra-systems/chronovoice/internal/reliability"
)

// Job is a unit of transcription or merge work tied to one call.
type Job interface {
	CallID() string
	Process(ctx context.Context) error
}

type entry struct {
	job      Job
	attempts int
}

// Options tune the queue worker.
type Options struct {
	// MaxRetries is the number of requeues allowed for a transient media
	// error before a job is dropped as fatal.
	MaxRetries int
	// BackoffBase and BackoffCap bound the idle pause before retrying a
	// job that came back around while the queue was otherwise empty.
	BackoffBase time.Duration
	BackoffCap  time.Duration
	// OnDone, if set, is invoked after every successfully processed job.
	OnDone func(job Job)
	// OnFatal, if set, is invoked for every job dropped as fatal.
	OnFatal func(job Job, err error)
}

// Queue is a FIFO work queue with a single consumer goroutine. Jobs that
// fail with a transient media error are requeued at the tail a bounded
// number of times; any other error drops the job immediately.
type Queue struct {
	mu      sync.Mutex
	items   []entry
	arrived *sync.Cond
	opts    Options
	metrics *observability.Metrics
	log     *zap.SugaredLogger
	done    chan struct{}
}

func New(opts Options, metrics *observability.Metrics, log *zap.SugaredLogger) *Queue {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 250 * time.Millisecond
	}
	if opts.BackoffCap <= 0 {
		opts.BackoffCap = 5 * time.Second
	}
	q := &Queue{
		opts:    opts,
		metrics: metrics,
		log:     log,
		done:    make(chan struct{}),
	}
	q.arrived = sync.NewCond(&q.mu)
	return q
}

// Enqueue appends a job at the tail.
func (q *Queue) Enqueue(job Job) {
	if job == nil {
		return
	}
	q.mu.Lock()
	q.items = append(q.items, entry{job: job})
	depth := len(q.items)
	q.mu.Unlock()
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(float64(depth))
	}
	q.arrived.Signal()
}

// Run consumes jobs until ctx is cancelled. The in-flight job finishes;
// everything still queued stays put for Drain.
func (q *Queue) Run(ctx context.Context) {
	defer close(q.done)
	unwatch := context.AfterFunc(ctx, func() {
		q.mu.Lock()
		q.arrived.Broadcast()
		q.mu.Unlock()
	})
	defer unwatch()

	for {
		q.mu.Lock()
		for len(q.items) == 0 && ctx.Err() == nil {
			q.arrived.Wait()
		}
		if ctx.Err() != nil {
			q.mu.Unlock()
			return
		}
		next := q.items[0]
		q.items = q.items[1:]
		depth := len(q.items)
		q.mu.Unlock()
		if q.metrics != nil {
			q.metrics.QueueDepth.Set(float64(depth))
		}

		q.process(ctx, next, depth == 0)
	}
}

// Done is closed once the worker has stopped.
func (q *Queue) Done() <-chan struct{} { return q.done }

// Drain removes and returns every job still queued. Call after the worker
// has stopped to persist unfinished work.
func (q *Queue) Drain() []Job {
	q.mu.Lock()
	defer q.mu.Unlock()
	jobs := make([]Job, 0, len(q.items))
	for _, e := range q.items {
		jobs = append(jobs, e.job)
	}
	q.items = nil
	if q.metrics != nil {
		q.metrics.QueueDepth.Set(0)
	}
	return jobs
}

// Depth reports the number of queued jobs, not counting one in flight.
func (q *Queue) Depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *Queue) process(ctx context.Context, e entry, wasLast bool) {
	err := e.job.Process(ctx)
	if err == nil {
		if q.metrics != nil {
			q.metrics.JobsProcessed.Inc()
		}
		if q.opts.OnDone != nil {
			q.opts.OnDone(e.job)
		}
		return
	}

	if reliability.IsRetryableMedia(err) && e.attempts < q.opts.MaxRetries {
		e.attempts++
		q.log.Warnw("requeueing job after transient media error",
			"call_id", e.job.CallID(), "attempt", e.attempts, "error", err)
		if q.metrics != nil {
			q.metrics.JobRetries.Inc()
		}
		// With nothing else queued the job would come straight back;
		// pause so the recorder has a chance to finish the file.
		if wasLast {
			q.pause(ctx, reliability.Backoff(e.attempts, q.opts.BackoffBase, q.opts.BackoffCap))
		}
		q.mu.Lock()
		q.items = append(q.items, e)
		depth := len(q.items)
		q.mu.Unlock()
		if q.metrics != nil {
			q.metrics.QueueDepth.Set(float64(depth))
		}
		q.arrived.Signal()
		return
	}

	reason := "error"
	if reliability.IsRetryableMedia(err) {
		reason = "retries_exhausted"
	}
	q.log.Errorw("dropping job", "call_id", e.job.CallID(), "reason", reason, "attempts", e.attempts, "error", err)
	if q.metrics != nil {
		q.metrics.JobFailures.WithLabelValues(reason).Inc()
	}
	if q.opts.OnFatal != nil {
		q.opts.OnFatal(e.job, err)
	}
}

func (q *Queue) pause(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
