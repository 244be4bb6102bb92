package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/avarra-systems/chronovoice/internal/queue"
)

type chanSink struct {
	jobs chan queue.Job
}

func (s *chanSink) Enqueue(job queue.Job) { s.jobs <- job }

type recordedJob struct {
	callID  string
	inPath  string
	outPath string
}

func (j *recordedJob) CallID() string { return j.callID }

func (j *recordedJob) Process(context.Context) error { return nil }

func startWatcher(t *testing.T, dir string, kind Kind) *chanSink {
	t.Helper()
	sink := &chanSink{jobs: make(chan queue.Job, 16)}
	w := New(dir, kind, sink, func(callID, inPath, outPath string) queue.Job {
		return &recordedJob{callID: callID, inPath: inPath, outPath: outPath}
	}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		if err := <-done; err != nil {
			t.Errorf("Run() error = %v", err)
		}
	})
	// Give the watch registration a moment before the test writes files.
	time.Sleep(50 * time.Millisecond)
	return sink
}

func expectJob(t *testing.T, sink *chanSink) queue.Job {
	t.Helper()
	select {
	case job := <-sink.jobs:
		return job
	case <-time.After(2 * time.Second):
		t.Fatalf("no job queued")
		return nil
	}
}

func expectNoJob(t *testing.T, sink *chanSink) {
	t.Helper()
	select {
	case job := <-sink.jobs:
		t.Fatalf("unexpected job for call %q", job.CallID())
	case <-time.After(150 * time.Millisecond):
	}
}

func TestWatcherQueuesCompletedPair(t *testing.T) {
	dir := t.TempDir()
	sink := startWatcher(t, dir, KindAudio)

	if err := os.WriteFile(filepath.Join(dir, "call1-in.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	expectNoJob(t, sink) // half a pair queues nothing

	if err := os.WriteFile(filepath.Join(dir, "call1-out.wav"), []byte("RIFF"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	job := expectJob(t, sink)
	if job.CallID() != "call1" {
		t.Fatalf("CallID() = %q, want call1", job.CallID())
	}
	h, ok := job.(*handle)
	if !ok {
		t.Fatalf("job type = %T", job)
	}
	inner := h.job.(*recordedJob)
	if filepath.Base(inner.inPath) != "call1-in.wav" || filepath.Base(inner.outPath) != "call1-out.wav" {
		t.Fatalf("pair orientation: in=%q out=%q", inner.inPath, inner.outPath)
	}

	// The completed pair must not queue a second handle while the first is
	// still waiting.
	expectNoJob(t, sink)
}

func TestWatcherIgnoresOtherExtensions(t *testing.T) {
	dir := t.TempDir()
	sink := startWatcher(t, dir, KindAudio)

	for _, name := range []string{"call2-in.csv", "call2-out.csv", "notes.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatalf("WriteFile() error = %v", err)
		}
	}
	expectNoJob(t, sink)
}

func TestWatcherModificationRetriggersAfterProcessing(t *testing.T) {
	dir := t.TempDir()
	sink := startWatcher(t, dir, KindTranscript)

	inPath := filepath.Join(dir, "call3-in.csv")
	outPath := filepath.Join(dir, "call3-out.csv")
	if err := os.WriteFile(inPath, []byte("0; 1; \"a\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(outPath, []byte("1; 2; \"b\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	job := expectJob(t, sink)
	expectNoJob(t, sink)

	// Processing releases the handle; a later modification queues it again.
	if err := job.Process(context.Background()); err != nil {
		t.Fatalf("Process() error = %v", err)
	}
	if err := os.WriteFile(inPath, []byte("0; 1; \"a\"\n3; 4; \"c\"\n"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	again := expectJob(t, sink)
	if again.CallID() != "call3" {
		t.Fatalf("CallID() = %q, want call3", again.CallID())
	}
	if again != job {
		t.Fatalf("retrigger should reuse the same per-call handle")
	}
}

func TestWatcherCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "not", "yet", "there")
	sink := startWatcher(t, dir, KindAudio)

	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("watch directory was not created: %v", err)
	}

	if err := os.WriteFile(filepath.Join(dir, "c-in.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "c-out.wav"), []byte("x"), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	job := expectJob(t, sink)
	if job.CallID() != "c" {
		t.Fatalf("CallID() = %q, want c", job.CallID())
	}
}
