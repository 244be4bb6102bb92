package call

import (
	"context"
	"path/filepath"

	"github.com/avarra-systems/chronovoice/internal/ami"
)

// CommandResult reports the outcome of one telephony command. Transport
// failures end up in Err instead of escaping the session loop.
type CommandResult struct {
	Action  string
	OK      bool
	Message string
	Err     error
}

// StartRecording starts a mixed recording of the given channel. The
// transmitted leg lands in <callID>-out.wav and the received leg in
// <callID>-in.wav, so the artifact watcher can pair them.
func (t *Tracker) StartRecording(ctx context.Context, channel, callID string) CommandResult {
	res := t.send(ctx, ami.Action{
		Name: "MixMonitor",
		Fields: map[string]string{
			"Channel": channel,
			"File":    filepath.Join(t.monitorDir, callID+"-out.wav"),
			"Options": "br(" + filepath.Join(t.monitorDir, callID+"-in.wav") + ")",
		},
	})
	if res.OK {
		t.setRecordState(Recording)
	}
	return res
}

// StopRecording stops the per-channel recording.
func (t *Tracker) StopRecording(ctx context.Context, channel string) CommandResult {
	res := t.send(ctx, ami.Action{
		Name:   "StopMonitor",
		Fields: map[string]string{"Channel": channel},
	})
	if res.OK {
		t.setRecordState(NotRecording)
	}
	return res
}

// StartConferenceSpy records the whole conference bridge into fileName
// under the monitor directory.
func (t *Tracker) StartConferenceSpy(ctx context.Context, fileName string) CommandResult {
	t.mu.Lock()
	conference := ""
	if t.sess != nil {
		conference = t.sess.ConferenceID
	}
	t.mu.Unlock()
	if conference == "" {
		return CommandResult{Action: "ConfbridgeStartRecord", Err: ErrNoSession}
	}
	return t.send(ctx, ami.Action{
		Name: "ConfbridgeStartRecord",
		Fields: map[string]string{
			"Conference": conference,
			"RecordFile": filepath.Join(t.monitorDir, fileName),
		},
	})
}

// StopConferenceSpy stops the conference bridge recording.
func (t *Tracker) StopConferenceSpy(ctx context.Context) CommandResult {
	t.mu.Lock()
	conference := ""
	if t.sess != nil {
		conference = t.sess.ConferenceID
	}
	t.mu.Unlock()
	if conference == "" {
		return CommandResult{Action: "ConfbridgeStopRecord", Err: ErrNoSession}
	}
	return t.send(ctx, ami.Action{
		Name:   "ConfbridgeStopRecord",
		Fields: map[string]string{"Conference": conference},
	})
}

// PlayAudio originates playback of the prepared reply clip into the call.
func (t *Tracker) PlayAudio(ctx context.Context) CommandResult {
	return t.send(ctx, ami.Action{
		Name: "Originate",
		Fields: map[string]string{
			"Channel":     "local/playaudio@playback",
			"Application": "Playback",
			"Data":        "output",
		},
	})
}

func (t *Tracker) send(ctx context.Context, action ami.Action) CommandResult {
	if t.commander == nil {
		return CommandResult{Action: action.Name, Err: ami.ErrNotConnected}
	}
	resp, err := t.commander.Send(ctx, action)
	outcome := "ok"
	res := CommandResult{Action: action.Name}
	switch {
	case err != nil:
		outcome = "error"
		res.Err = err
	case !resp.Success:
		outcome = "rejected"
		res.Message = resp.Message
	default:
		res.OK = true
		res.Message = resp.Message
	}
	if t.metrics != nil {
		t.metrics.AMICommands.WithLabelValues(action.Name, outcome).Inc()
	}
	if !res.OK {
		t.log.Warnw("telephony command failed", "action", action.Name, "outcome", outcome, "error", res.Err, "message", res.Message)
	}
	return res
}

func (t *Tracker) setRecordState(state RecordState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sess != nil {
		t.sess.RecordState = state
	}
}
