package transcript

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/call"
	"github.com/avarra-systems/chronovoice/internal/observability"
)

// Scheduler defers an action by a fixed delay.
type Scheduler interface {
	Schedule(delay time.Duration, action func())
}

// Uploader ships a finished transcript to the mission planner and returns
// its textual feedback.
type Uploader interface {
	Upload(ctx context.Context, path string) (string, error)
}

// Synthesizer renders reply text into a playable clip.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (string, error)
}

// Player delivers the prepared clip into the call.
type Player interface {
	PlayAudio(ctx context.Context) call.CommandResult
}

// ConversationDeps are the collaborators a ConversationJob drives when the
// trigger keyword is heard.
type ConversationDeps struct {
	Scheduler   Scheduler
	Uploader    Uploader
	Synthesizer Synthesizer
	Player      Player
	Metrics     *observability.Metrics
	Log         *zap.SugaredLogger
	// OnLines receives freshly rendered transcript lines, e.g. for the
	// live operator feed. Optional.
	OnLines func(callID string, lines []string)
}

// ConversationJob merges the two per-direction transcript files of one
// call, watches for the trigger keyword past the watermark, and schedules
// the deferred follow-up on a hit. One job exists per callID; the watcher
// resubmits the same instance as the CSVs grow.
type ConversationJob struct {
	callID         string
	inPath         string
	outPath        string
	transcriptPath string
	keyword        string
	delay          time.Duration
	deps           ConversationDeps

	mu        sync.Mutex
	watermark float64
}

func NewConversationJob(callID, inPath, outPath, transcriptDir, keyword string, delay time.Duration, deps ConversationDeps) *ConversationJob {
	if deps.Log == nil {
		deps.Log = zap.NewNop().Sugar()
	}
	return &ConversationJob{
		callID:         callID,
		inPath:         inPath,
		outPath:        outPath,
		transcriptPath: filepath.Join(transcriptDir, callID+"-transcript.txt"),
		keyword:        keyword,
		delay:          delay,
		deps:           deps,
		watermark:      -1,
	}
}

func (j *ConversationJob) CallID() string { return j.callID }

// Kind tags the job for the pending-work journal.
func (j *ConversationJob) Kind() string { return "conversation" }

// TranscriptPath is where the rendered merged transcript is written.
func (j *ConversationJob) TranscriptPath() string { return j.transcriptPath }

// Process merges both directions, persists the rendered transcript, and on
// a fresh keyword hit advances the watermark and schedules the follow-up.
// The watermark guarantees one follow-up per keyword occurrence no matter
// how often the watcher resubmits the job.
func (j *ConversationJob) Process(ctx context.Context) error {
	inbound, err := ReadSegmentsCSV(j.inPath)
	if err != nil {
		return fmt.Errorf("read inbound transcript: %w", err)
	}
	outbound, err := ReadSegmentsCSV(j.outPath)
	if err != nil {
		return fmt.Errorf("read outbound transcript: %w", err)
	}

	merged := Merge(inbound, outbound)
	lines := RenderLines(merged)
	if err := WriteLines(j.transcriptPath, lines); err != nil {
		return fmt.Errorf("write merged transcript: %w", err)
	}
	if j.deps.OnLines != nil {
		j.deps.OnLines(j.callID, lines)
	}

	j.mu.Lock()
	watermark := j.watermark
	j.mu.Unlock()

	hit, ok := FindKeywordAfter(merged, j.keyword, watermark)
	if !ok {
		return nil
	}

	j.mu.Lock()
	j.watermark = hit
	j.mu.Unlock()

	if j.deps.Metrics != nil {
		j.deps.Metrics.KeywordHits.Inc()
	}
	j.deps.Log.Infow("trigger keyword heard", "call_id", j.callID, "keyword", j.keyword, "at", hit)

	if j.deps.Scheduler != nil {
		j.deps.Scheduler.Schedule(j.delay, j.followUp)
	}
	return nil
}

// followUp uploads the transcript, synthesizes the planner's feedback and
// plays it into the call. Each step is best-effort: a failure is logged
// and the remaining call continues undisturbed.
func (j *ConversationJob) followUp() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	if j.deps.Uploader == nil {
		j.deps.Log.Warnw("no uploader configured; skipping follow-up", "call_id", j.callID)
		return
	}
	feedback, err := j.deps.Uploader.Upload(ctx, j.transcriptPath)
	if err != nil {
		j.deps.Log.Errorw("transcript upload failed", "call_id", j.callID, "error", err)
		return
	}

	if j.deps.Synthesizer == nil {
		return
	}
	if _, err := j.deps.Synthesizer.Synthesize(ctx, feedback); err != nil {
		j.deps.Log.Errorw("feedback synthesis failed", "call_id", j.callID, "error", err)
		return
	}

	if j.deps.Player == nil {
		return
	}
	if res := j.deps.Player.PlayAudio(ctx); !res.OK {
		j.deps.Log.Errorw("feedback playback failed", "call_id", j.callID, "error", res.Err, "message", res.Message)
	}
}
