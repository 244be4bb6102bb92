package call

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/avarra-systems/chronovoice/internal/ami"
	"github.com/avarra-systems/chronovoice/internal/observability"
)

type TalkState string

const (
	TalkIdle    TalkState = "idle"
	TalkTalking TalkState = "talking"
)

type RecordState string

const (
	NotRecording RecordState = "not_recording"
	Recording    RecordState = "recording"
)

// ErrNoSession is returned when a command needs a conference that is not
// known yet.
var ErrNoSession = errors.New("call: no active conference session")

// Session is the state of one tracked conference. ConferenceID is set once
// when the conference is first seen and never changes afterwards.
type Session struct {
	ConferenceID  string      `json:"conference_id"`
	ActiveChannel string      `json:"active_channel,omitempty"`
	TalkState     TalkState   `json:"talk_state"`
	RecordState   RecordState `json:"record_state"`
	TalkStartedAt time.Time   `json:"talk_started_at,omitzero"`
	StartedAt     time.Time   `json:"started_at"`
}

// Commander sends one manager action and returns its acknowledgement.
// Satisfied by *ami.Client.
type Commander interface {
	Send(ctx context.Context, action ami.Action) (ami.Response, error)
}

// Tracker converts the telephony event stream into session state and
// issues recording-control actions. All session mutation happens here;
// waiters only observe.
type Tracker struct {
	mu   sync.Mutex
	cond *sync.Cond

	sess      *Session
	startSeen bool
	stopSeen  bool

	commander  Commander
	monitorDir string
	metrics    *observability.Metrics
	log        *zap.SugaredLogger
}

func NewTracker(commander Commander, monitorDir string, metrics *observability.Metrics, log *zap.SugaredLogger) *Tracker {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	t := &Tracker{
		commander:  commander,
		monitorDir: monitorDir,
		metrics:    metrics,
		log:        log,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// OnEvent dispatches one telephony event. Unknown event names are ignored.
// A talk-start that arrives while the previous talk segment is still open
// is held until that segment's timestamp has been cleared; ctx bounds the
// wait so shutdown never leaks the dispatching goroutine.
func (t *Tracker) OnEvent(ctx context.Context, ev ami.Event) {
	switch ev.Name {
	case ami.EventConfbridgeStart, ami.EventConfbridgeJoin:
		t.onConferenceSeen(ev)
	case ami.EventChannelTalkStart:
		t.onTalkStart(ctx, ev)
	case ami.EventChannelTalkStop:
		t.onTalkStop(ev)
	case ami.EventConfbridgeEnd:
		t.onConferenceEnd(ev)
	}
}

func (t *Tracker) onConferenceSeen(ev ami.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil {
		return
	}
	conference := ev.Get(ami.AttrConference)
	if conference == "" {
		t.log.Warnw("conference event without a name", "event", ev.Name)
		return
	}
	t.sess = &Session{
		ConferenceID: conference,
		TalkState:    TalkIdle,
		RecordState:  NotRecording,
		StartedAt:    time.Now().UTC(),
	}
	if t.metrics != nil {
		t.metrics.ActiveCalls.Inc()
	}
	t.log.Infow("conference found", "conference", conference, "caller", ev.Get(ami.AttrCallerIDNum))
	t.cond.Broadcast()
}

func (t *Tracker) onTalkStart(ctx context.Context, ev ami.Event) {
	unwatch := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer unwatch()

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return
	}
	for !t.sess.TalkStartedAt.IsZero() {
		if ctx.Err() != nil {
			return
		}
		t.cond.Wait()
		if t.sess == nil {
			return
		}
	}
	t.sess.ActiveChannel = ev.Get(ami.AttrChannel)
	t.sess.TalkState = TalkTalking
	t.sess.TalkStartedAt = time.Now().UTC()
	t.startSeen = true
	t.stopSeen = false
	t.log.Infow("talk start", "channel", t.sess.ActiveChannel, "caller", ev.Get(ami.AttrCallerIDNum))
	t.cond.Broadcast()
}

func (t *Tracker) onTalkStop(ev ami.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return
	}
	t.sess.TalkState = TalkIdle
	t.sess.TalkStartedAt = time.Time{}
	t.stopSeen = true
	if t.metrics != nil {
		t.metrics.TalkTurns.Inc()
	}
	t.log.Infow("talk stop", "channel", t.sess.ActiveChannel, "duration", ev.Get(ami.AttrDuration))
	t.cond.Broadcast()
}

func (t *Tracker) onConferenceEnd(ev ami.Event) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return
	}
	t.log.Infow("conference ended", "conference", t.sess.ConferenceID)
	t.sess = nil
	t.startSeen = false
	t.stopSeen = false
	if t.metrics != nil {
		t.metrics.ActiveCalls.Dec()
	}
	t.cond.Broadcast()
}

// WaitForConference blocks until a conference id is known.
func (t *Tracker) WaitForConference(ctx context.Context) (string, error) {
	err := t.wait(ctx, func() bool { return t.sess != nil })
	if err != nil {
		return "", err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return "", ErrNoSession
	}
	return t.sess.ConferenceID, nil
}

// WaitForTalkStart blocks until a talk segment opens, starts the conference
// spy recording and returns the talking channel.
func (t *Tracker) WaitForTalkStart(ctx context.Context, spyFile string) (string, error) {
	if err := t.wait(ctx, func() bool { return t.startSeen }); err != nil {
		return "", err
	}

	t.mu.Lock()
	t.startSeen = false
	channel := ""
	if t.sess != nil {
		channel = t.sess.ActiveChannel
	}
	t.mu.Unlock()

	if res := t.StartConferenceSpy(ctx, spyFile); !res.OK {
		t.log.Warnw("conference spy start failed", "error", res.Err, "message", res.Message)
	}
	return channel, nil
}

// WaitForTalkStop blocks until the open talk segment closes.
func (t *Tracker) WaitForTalkStop(ctx context.Context) error {
	if err := t.wait(ctx, func() bool { return t.stopSeen }); err != nil {
		return err
	}
	t.mu.Lock()
	t.stopSeen = false
	t.mu.Unlock()
	return nil
}

// Snapshot returns a copy of the current session, if any.
func (t *Tracker) Snapshot() (Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess == nil {
		return Session{}, false
	}
	return *t.sess, true
}

// wait suspends until pred holds under the tracker lock, or ctx ends.
func (t *Tracker) wait(ctx context.Context, pred func() bool) error {
	unwatch := context.AfterFunc(ctx, func() {
		t.mu.Lock()
		t.cond.Broadcast()
		t.mu.Unlock()
	})
	defer unwatch()

	t.mu.Lock()
	defer t.mu.Unlock()
	for !pred() {
		if err := ctx.Err(); err != nil {
			return err
		}
		t.cond.Wait()
	}
	return nil
}
