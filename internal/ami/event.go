package ami

// Event is one unsolicited message from the telephony server: a name plus
// a flat key/value attribute map (Conference, Channel, CallerIDNum,
// Duration, ...).
type Event struct {
	Name  string
	Attrs map[string]string
}

// Get returns the named attribute or "".
func (e Event) Get(key string) string {
	return e.Attrs[key]
}

// Action is one manager command to send. ActionID is assigned by the
// client when the action is sent.
type Action struct {
	Name   string
	Fields map[string]string
}

// Response is the server's acknowledgement for one action.
type Response struct {
	Success  bool
	Message  string
	ActionID string
	Attrs    map[string]string
}

// Well-known event names emitted by the conference bridge.
const (
	EventConfbridgeStart  = "ConfbridgeStart"
	EventConfbridgeJoin   = "ConfbridgeJoin"
	EventConfbridgeEnd    = "ConfbridgeEnd"
	EventChannelTalkStart = "ChannelTalkingStart"
	EventChannelTalkStop  = "ChannelTalkingStop"
)

// Attribute keys used by this agent.
const (
	AttrConference  = "Conference"
	AttrChannel     = "Channel"
	AttrCallerIDNum = "CallerIDNum"
	AttrDuration    = "Duration"
)
