package httpapi

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	feedBuffer    = 64
	feedWriteWait = 5 * time.Second
)

// FeedEvent is one item on the live dashboard feed.
type FeedEvent struct {
	Time   time.Time `json:"time"`
	Kind   string    `json:"kind"`
	CallID string    `json:"call_id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

// Feed fans call pipeline events out to websocket subscribers. Publishing
// never blocks: a subscriber that cannot keep up is dropped.
type Feed struct {
	mu   sync.Mutex
	subs map[chan FeedEvent]struct{}
	log  *zap.SugaredLogger
}

func NewFeed(log *zap.SugaredLogger) *Feed {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Feed{
		subs: make(map[chan FeedEvent]struct{}),
		log:  log,
	}
}

// Publish delivers ev to every subscriber with room in its buffer.
func (f *Feed) Publish(ev FeedEvent) {
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for ch := range f.subs {
		select {
		case ch <- ev:
		default:
			f.log.Warnw("dropping slow feed subscriber")
			delete(f.subs, ch)
			close(ch)
		}
	}
}

func (f *Feed) subscribe() chan FeedEvent {
	ch := make(chan FeedEvent, feedBuffer)
	f.mu.Lock()
	f.subs[ch] = struct{}{}
	f.mu.Unlock()
	return ch
}

func (f *Feed) unsubscribe(ch chan FeedEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.subs[ch]; ok {
		delete(f.subs, ch)
		close(ch)
	}
}

// serve pumps feed events to one websocket connection until it goes away.
func (f *Feed) serve(conn *websocket.Conn) {
	ch := f.subscribe()
	defer f.unsubscribe(ch)
	defer conn.Close()

	// Drain reads so close frames and pings are processed.
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				f.unsubscribe(ch)
				return
			}
		}
	}()

	for ev := range ch {
		_ = conn.SetWriteDeadline(time.Now().Add(feedWriteWait))
		if err := conn.WriteJSON(ev); err != nil {
			return
		}
	}
}
