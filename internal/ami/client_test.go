package ami

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeManager answers every action with a Success response and lets the
// test inject unsolicited events on the same connection.
type fakeManager struct {
	conn net.Conn
}

func startFakeManager(t *testing.T) (*Client, *fakeManager) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	fm := &fakeManager{conn: serverSide}
	go fm.serve()

	c := NewClient(clientSide, zap.NewNop().Sugar())
	t.Cleanup(c.Close)
	t.Cleanup(func() { serverSide.Close() })
	return c, fm
}

func (f *fakeManager) serve() {
	r := bufio.NewReader(f.conn)
	frame := make(map[string]string)
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		if line != "" {
			if k, v, ok := strings.Cut(line, ":"); ok {
				frame[strings.TrimSpace(k)] = strings.TrimSpace(v)
			}
			continue
		}
		if len(frame) == 0 {
			continue
		}
		resp := "Response: Success\r\nActionID: " + frame["ActionID"] + "\r\nMessage: ok\r\n\r\n"
		if frame["Action"] == "Login" && frame["Secret"] != "letmein" {
			resp = "Response: Error\r\nActionID: " + frame["ActionID"] + "\r\nMessage: Authentication failed\r\n\r\n"
		}
		if _, err := f.conn.Write([]byte(resp)); err != nil {
			return
		}
		frame = make(map[string]string)
	}
}

func (f *fakeManager) emit(name string, attrs map[string]string) error {
	var b strings.Builder
	b.WriteString("Event: " + name + "\r\n")
	for k, v := range attrs {
		b.WriteString(k + ": " + v + "\r\n")
	}
	b.WriteString("\r\n")
	_, err := f.conn.Write([]byte(b.String()))
	return err
}

func TestSendCorrelatesResponse(t *testing.T) {
	c, _ := startFakeManager(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	resp, err := c.Send(ctx, Action{Name: "Ping"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("response not successful: %+v", resp)
	}
}

func TestLoginRejected(t *testing.T) {
	c, _ := startFakeManager(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := c.Login(ctx, "admin", "wrong"); err == nil {
		t.Fatalf("Login() should fail with a bad secret")
	}
	if err := c.Login(ctx, "admin", "letmein"); err != nil {
		t.Fatalf("Login() error = %v", err)
	}
}

func TestSubscribeReceivesEventsInOrder(t *testing.T) {
	c, fm := startFakeManager(t)

	got := make(chan Event, 8)
	c.Subscribe(func(ev Event) { got <- ev })

	if err := fm.emit(EventConfbridgeStart, map[string]string{AttrConference: "ops"}); err != nil {
		t.Fatalf("emit() error = %v", err)
	}
	if err := fm.emit(EventChannelTalkStart, map[string]string{AttrChannel: "PJSIP/100"}); err != nil {
		t.Fatalf("emit() error = %v", err)
	}

	first := waitEvent(t, got)
	if first.Name != EventConfbridgeStart || first.Get(AttrConference) != "ops" {
		t.Fatalf("first event = %+v", first)
	}
	second := waitEvent(t, got)
	if second.Name != EventChannelTalkStart || second.Get(AttrChannel) != "PJSIP/100" {
		t.Fatalf("second event = %+v", second)
	}
}

func TestEventsInterleavedWithResponses(t *testing.T) {
	c, fm := startFakeManager(t)

	got := make(chan Event, 8)
	c.Subscribe(func(ev Event) { got <- ev })

	if err := fm.emit(EventChannelTalkStop, map[string]string{AttrDuration: "4"}); err != nil {
		t.Fatalf("emit() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	resp, err := c.Send(ctx, Action{Name: "Ping"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !resp.Success {
		t.Fatalf("response not successful: %+v", resp)
	}

	ev := waitEvent(t, got)
	if ev.Name != EventChannelTalkStop {
		t.Fatalf("event = %+v, want ChannelTalkingStop", ev)
	}
}

func TestSendAfterCloseFailsFast(t *testing.T) {
	c, _ := startFakeManager(t)
	c.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, err := c.Send(ctx, Action{Name: "Ping"}); !errors.Is(err, ErrNotConnected) {
		t.Fatalf("Send() error = %v, want ErrNotConnected", err)
	}
}

func waitEvent(t *testing.T, ch <-chan Event) Event {
	t.Helper()
	select {
	case ev := <-ch:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for event")
		return Event{}
	}
}
