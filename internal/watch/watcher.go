package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/queue"
)

type changeType int

const (
	changeCreated changeType = iota
	changeModified
)

// Sink receives jobs for completed artifact pairs.
type Sink interface {
	Enqueue(job queue.Job)
}

// JobFactory builds the processing job for one matched pair.
type JobFactory func(callID, inPath, outPath string) queue.Job

// Watcher observes one directory for artifacts of one kind and submits a
// job to the sink whenever both halves of a pair exist on disk. Creation
// and modification notifications are deduplicated independently, so a pair
// processed once at creation can be reprocessed when a file is modified
// later, but repeated notifications for the same unprocessed state queue
// nothing extra.
type Watcher struct {
	dir    string
	kind   Kind
	sink   Sink
	newJob JobFactory
	log    *zap.SugaredLogger

	mu           sync.Mutex
	handles      map[string]*handle
	seenCreated  map[string]struct{}
	seenModified map[string]struct{}
}

func New(dir string, kind Kind, sink Sink, newJob JobFactory, log *zap.SugaredLogger) *Watcher {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Watcher{
		dir:          dir,
		kind:         kind,
		sink:         sink,
		newJob:       newJob,
		log:          log,
		handles:      make(map[string]*handle),
		seenCreated:  make(map[string]struct{}),
		seenModified: make(map[string]struct{}),
	}
}

// Run watches the directory until ctx is cancelled. A missing directory is
// created and the watch retried once; a second failure is returned to the
// caller, who should treat it as fatal.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	if err := fw.Add(w.dir); err != nil {
		if mkErr := os.MkdirAll(w.dir, 0o755); mkErr != nil {
			return fmt.Errorf("create watch directory %s: %w", w.dir, mkErr)
		}
		if err := fw.Add(w.dir); err != nil {
			return fmt.Errorf("watch %s: %w", w.dir, err)
		}
	}
	w.log.Infow("watching for artifacts", "dir", w.dir, "kind", w.kind.String())

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			switch {
			case ev.Op.Has(fsnotify.Create):
				w.onFileEvent(ev.Name, changeCreated)
			case ev.Op.Has(fsnotify.Write):
				w.onFileEvent(ev.Name, changeModified)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warnw("watcher error", "dir", w.dir, "error", err)
		}
	}
}

func (w *Watcher) onFileEvent(path string, change changeType) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return
	}
	if !strings.EqualFold(filepath.Ext(path), w.kind.Ext()) {
		return
	}
	pair, ok := PairPath(path)
	if !ok {
		return
	}
	if _, err := os.Stat(pair); err != nil {
		return
	}
	callID := CallID(path)
	if callID == "" {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	seen := w.seenCreated
	if change == changeModified {
		seen = w.seenModified
	}
	if _, dup := seen[callID]; dup {
		return
	}
	seen[callID] = struct{}{}

	h := w.handles[callID]
	if h == nil {
		inPath, outPath := orient(path, pair)
		h = &handle{w: w, callID: callID, job: w.newJob(callID, inPath, outPath)}
		w.handles[callID] = h
	}
	if h.queued {
		return
	}
	h.queued = true
	w.log.Infow("artifact pair complete", "call_id", callID, "kind", w.kind.String())
	w.sink.Enqueue(h)
}

func orient(path, pair string) (inPath, outPath string) {
	stem := strings.TrimSuffix(path, filepath.Ext(path))
	if strings.HasSuffix(stem, "-in") {
		return path, pair
	}
	return pair, path
}

// handle is the per-call unit submitted to the queue. One handle exists
// per callID; the queued flag stops the same handle from sitting in the
// queue twice while it waits its turn.
type handle struct {
	w      *Watcher
	callID string
	job    queue.Job
	queued bool
}

func (h *handle) CallID() string { return h.callID }

// Kind forwards the wrapped job's journal tag, if it has one.
func (h *handle) Kind() string {
	if k, ok := h.job.(interface{ Kind() string }); ok {
		return k.Kind()
	}
	return ""
}

func (h *handle) Process(ctx context.Context) error {
	h.w.mu.Lock()
	h.queued = false
	// A modification that lands after this point is new material and may
	// queue the handle again.
	delete(h.w.seenModified, h.callID)
	h.w.mu.Unlock()
	return h.job.Process(ctx)
}
