package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/ami"
	"github.com/avarra-systems/chronovoice/internal/call"
	"github.com/avarra-systems/chronovoice/internal/config"
	"github.com/avarra-systems/chronovoice/internal/httpapi"
	"github.com/avarra-systems/chronovoice/internal/journal"
	"github.com/avarra-systems/chronovoice/internal/logging"
	"github.com/avarra-systems/chronovoice/internal/observability"
	"github.com/avarra-systems/chronovoice/internal/planner"
	"github.com/avarra-systems/chronovoice/internal/queue"
	"github.com/avarra-systems/chronovoice/internal/schedule"
	"github.com/avarra-systems/chronovoice/internal/stt"
	"github.com/avarra-systems/chronovoice/internal/transcript"
	"github.com/avarra-systems/chronovoice/internal/tts"
	"github.com/avarra-systems/chronovoice/internal/watch"
)

func main() {
	logger := logging.Init()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalw("config error", "error", err)
	}

	metrics := observability.NewMetrics(cfg.MetricsNamespace)

	ctx := context.Background()
	store, err := journal.NewStore(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Fatalw("journal store init failed", "error", err)
	}
	defer store.Close()

	sttEngine := buildSTT(cfg, logger)
	ttsEngine := buildTTS(ctx, cfg, logger)

	runCtx, runCancel := context.WithCancel(ctx)
	defer runCancel()

	feed := httpapi.NewFeed(logger)

	client, err := ami.Dial(runCtx, cfg.AMIAddr, logger)
	if err != nil {
		logger.Fatalw("telephony connect failed", "addr", cfg.AMIAddr, "error", err)
	}
	defer client.Close()
	if err := client.Login(runCtx, cfg.AMIUsername, cfg.AMISecret); err != nil {
		logger.Fatalw("telephony login failed", "error", err)
	}

	tracker := call.NewTracker(client, cfg.MonitorDir, metrics, logger)
	client.Subscribe(func(ev ami.Event) {
		tracker.OnEvent(runCtx, ev)
	})

	scheduler := schedule.New(metrics, logger)
	go scheduler.Run(runCtx)

	plannerClient := planner.NewClient(cfg.PlannerBaseURL, cfg.PlannerNamespace, metrics)

	work := queue.New(queue.Options{
		MaxRetries: cfg.MaxRetries,
		OnDone: func(job queue.Job) {
			if id := journalID(job); id != "" {
				if err := store.DeletePending(ctx, id); err != nil {
					logger.Warnw("journal delete failed", "id", id, "error", err)
				}
			}
		},
		OnFatal: func(job queue.Job, err error) {
			feed.Publish(httpapi.FeedEvent{Kind: "job_failed", CallID: job.CallID(), Detail: err.Error()})
			if id := journalID(job); id != "" {
				_ = store.DeletePending(ctx, id)
			}
		},
	}, metrics, logger)
	go work.Run(runCtx)

	newAudioJob := func(callID, inPath, outPath string) queue.Job {
		return transcript.NewAudioJob(callID, inPath, outPath, cfg.TranscriptWatchDir, sttEngine, logger)
	}
	newConversationJob := func(callID, inPath, outPath string) queue.Job {
		return transcript.NewConversationJob(callID, inPath, outPath, cfg.TranscriptDir, cfg.Keyword, cfg.FollowUpDelay, transcript.ConversationDeps{
			Scheduler:   scheduler,
			Uploader:    plannerClient,
			Synthesizer: ttsEngine,
			Player:      tracker,
			Metrics:     metrics,
			Log:         logger,
			OnLines: func(callID string, lines []string) {
				feed.Publish(httpapi.FeedEvent{Kind: "transcript", CallID: callID, Detail: strings.Join(lines, "\n")})
			},
		})
	}

	// Work interrupted by the previous shutdown goes first, ahead of
	// anything the watchers find.
	replayPending(ctx, store, work, newAudioJob, newConversationJob, logger)

	audioSink := &journalingSink{
		ctx: ctx, work: work, store: store, log: logger,
		kind: journal.KindAudio, dir: cfg.AudioWatchDir, ext: ".wav",
	}
	textSink := &journalingSink{
		ctx: ctx, work: work, store: store, log: logger,
		kind: journal.KindConversation, dir: cfg.TranscriptWatchDir, ext: ".csv",
	}

	audioWatcher := watch.New(cfg.AudioWatchDir, watch.KindAudio, audioSink, newAudioJob, logger)
	textWatcher := watch.New(cfg.TranscriptWatchDir, watch.KindTranscript, textSink, newConversationJob, logger)
	go func() {
		if err := audioWatcher.Run(runCtx); err != nil {
			logger.Fatalw("audio watcher failed", "error", err)
		}
	}()
	go func() {
		if err := textWatcher.Run(runCtx); err != nil {
			logger.Fatalw("transcript watcher failed", "error", err)
		}
	}()

	go answerLoop(runCtx, tracker, sttEngine, cfg, feed, logger)

	api := httpapi.New(cfg, tracker, feed, metrics, logger)
	httpServer := &http.Server{
		Addr:    cfg.BindAddr,
		Handler: api.Router(),
	}
	go func() {
		logger.Infow("server listening", "addr", cfg.BindAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalw("listen error", "error", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	logger.Infow("shutdown signal received")

	runCancel()
	<-work.Done()
	if remaining := work.Drain(); len(remaining) > 0 {
		// Already journaled at enqueue time; they replay on the next start.
		logger.Infow("leaving unfinished jobs for restart", "count", len(remaining))
	}
	<-scheduler.Done()

	if err := client.Logoff(context.Background()); err != nil {
		logger.Warnw("telephony logoff failed", "error", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnw("graceful shutdown failed", "error", err)
		_ = httpServer.Close()
	}

	logger.Infow("shutdown complete")
}

// answerLoop drives one conference at a time. Each talk turn is captured
// by the conference spy and transcribed; hearing "hello <keyword>" starts
// the paired call recording, "<keyword> stop" ends it. The artifact pair
// then flows through the watcher and the work queue.
func answerLoop(ctx context.Context, tracker *call.Tracker, engine stt.Engine, cfg config.Config, feed *httpapi.Feed, log *zap.SugaredLogger) {
	keyword := strings.ToLower(cfg.Keyword)
	wakePhrase := "hello " + keyword
	stopPhrase := keyword + " stop"

	for ctx.Err() == nil {
		confID, err := tracker.WaitForConference(ctx)
		if err != nil {
			return
		}
		log.Infow("conference active", "conference", confID)
		feed.Publish(httpapi.FeedEvent{Kind: "conference_start", Detail: confID})

		recording := false
		recChannel := ""
		recCallID := ""
		turn := 0
		for ctx.Err() == nil {
			sess, ok := tracker.Snapshot()
			if !ok || sess.ConferenceID != confID {
				break
			}

			turn++
			spyName := fmt.Sprintf("%s-%04d-bridge.wav", confID, turn)
			channel, err := tracker.WaitForTalkStart(ctx, spyName)
			if err != nil {
				return
			}
			feed.Publish(httpapi.FeedEvent{Kind: "talk_start", Detail: channel})

			if err := tracker.WaitForTalkStop(ctx); err != nil {
				return
			}
			tracker.StopConferenceSpy(ctx)
			feed.Publish(httpapi.FeedEvent{Kind: "talk_stop", Detail: channel})

			heard := listen(ctx, engine, filepath.Join(cfg.MonitorDir, spyName), log)
			switch {
			case !recording && strings.Contains(heard, wakePhrase):
				recCallID = fmt.Sprintf("%s-%04d", confID, turn)
				if res := tracker.StartRecording(ctx, channel, recCallID); res.OK {
					recording = true
					recChannel = channel
					feed.Publish(httpapi.FeedEvent{Kind: "recording_started", CallID: recCallID, Detail: channel})
				} else {
					log.Warnw("recording start failed", "call_id", recCallID, "error", res.Err, "message", res.Message)
				}
			case recording && strings.Contains(heard, stopPhrase):
				tracker.StopRecording(ctx, recChannel)
				recording = false
				feed.Publish(httpapi.FeedEvent{Kind: "recording_stopped", CallID: recCallID})
			}
		}

		if recording {
			tracker.StopRecording(ctx, recChannel)
		}
		log.Infow("conference over", "conference", confID, "turns", turn)
		feed.Publish(httpapi.FeedEvent{Kind: "conference_end", Detail: confID})
	}
}

// listen transcribes one spy clip and returns the lowercased text. A clip
// that is missing or still being flushed is treated as silence.
func listen(ctx context.Context, engine stt.Engine, path string, log *zap.SugaredLogger) string {
	res, err := engine.Transcribe(ctx, path)
	if err != nil {
		log.Debugw("spy clip not usable", "path", path, "error", err)
		return ""
	}
	return strings.ToLower(res.FullText)
}

// journalingSink records every enqueued pair in the journal so a crash or
// restart cannot lose accepted work.
type journalingSink struct {
	ctx   context.Context
	work  *queue.Queue
	store journal.Store
	kind  string
	dir   string
	ext   string
	log   *zap.SugaredLogger
}

func (s *journalingSink) Enqueue(job queue.Job) {
	entry := journal.Entry{
		ID:      job.CallID() + ":" + s.kind,
		CallID:  job.CallID(),
		Kind:    s.kind,
		InPath:  filepath.Join(s.dir, job.CallID()+"-in"+s.ext),
		OutPath: filepath.Join(s.dir, job.CallID()+"-out"+s.ext),
	}
	if err := s.store.SavePending(s.ctx, entry); err != nil {
		s.log.Warnw("journal save failed", "call_id", job.CallID(), "error", err)
	}
	s.work.Enqueue(job)
}

func journalID(job queue.Job) string {
	k, ok := job.(interface{ Kind() string })
	if !ok || k.Kind() == "" {
		return ""
	}
	return job.CallID() + ":" + k.Kind()
}

func replayPending(ctx context.Context, store journal.Store, work *queue.Queue, newAudio, newConversation watch.JobFactory, log *zap.SugaredLogger) {
	entries, err := store.ListPending(ctx)
	if err != nil {
		log.Warnw("journal replay failed", "error", err)
		return
	}
	for _, e := range entries {
		switch e.Kind {
		case journal.KindAudio:
			work.Enqueue(newAudio(e.CallID, e.InPath, e.OutPath))
		case journal.KindConversation:
			work.Enqueue(newConversation(e.CallID, e.InPath, e.OutPath))
		default:
			log.Warnw("unknown journal entry kind", "kind", e.Kind, "call_id", e.CallID)
		}
	}
	if len(entries) > 0 {
		log.Infow("replayed pending jobs", "count", len(entries))
	}
}

func buildSTT(cfg config.Config, log *zap.SugaredLogger) stt.Engine {
	whisper := func() (stt.Engine, error) {
		return stt.NewWhisperCLIEngine(stt.WhisperCLIConfig{
			CLI:       cfg.WhisperCLI,
			ModelPath: cfg.WhisperModel,
			Language:  cfg.WhisperLanguage,
		})
	}

	switch strings.ToLower(strings.TrimSpace(cfg.STTEngine)) {
	case "whispercli":
		e, err := whisper()
		if err != nil {
			log.Fatalw("stt init failed", "error", err)
		}
		log.Infow("stt engine: whisper cli", "model", cfg.WhisperModel)
		return e
	case "mock":
		log.Infow("stt engine: mock")
		return stt.NewMockEngine()
	case "", "auto":
		e, err := whisper()
		if err == nil {
			log.Infow("stt engine: whisper cli", "model", cfg.WhisperModel)
			return e
		}
		log.Warnw("whisper unavailable, falling back to mock stt", "error", err)
		return stt.NewMockEngine()
	default:
		log.Fatalw("invalid STT_ENGINE", "value", cfg.STTEngine)
		return nil
	}
}

func buildTTS(ctx context.Context, cfg config.Config, log *zap.SugaredLogger) tts.Engine {
	switch strings.ToLower(strings.TrimSpace(cfg.TTSEngine)) {
	case "", "exec":
		e, err := tts.NewExecEngine(ctx, tts.ExecConfig{
			Command:   cfg.TTSCommand,
			FFmpegBin: cfg.FFmpegBin,
			SoundsDir: cfg.SoundsDir,
		})
		if err != nil {
			log.Fatalw("tts init failed", "error", err)
		}
		log.Infow("tts engine: exec", "command", cfg.TTSCommand)
		return e
	case "mock":
		log.Infow("tts engine: mock")
		return tts.NewMockEngine(cfg.SoundsDir)
	default:
		log.Fatalw("invalid TTS_ENGINE", "value", cfg.TTSEngine)
		return nil
	}
}
