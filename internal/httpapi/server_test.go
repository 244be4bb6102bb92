package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avarra-systems/chronovoice/internal/ami"
	"github.com/avarra-systems/chronovoice/internal/call"
	"github.com/avarra-systems/chronovoice/internal/config"
)

func newTestServer(t *testing.T) (*Server, *call.Tracker, *Feed) {
	t.Helper()
	tracker := call.NewTracker(nil, t.TempDir(), nil, nil)
	feed := NewFeed(nil)
	srv := New(config.Config{AllowAnyOrigin: true}, tracker, feed, nil, nil)
	return srv, tracker, feed
}

func TestHealthEndpoints(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	for _, path := range []string{"/healthz", "/readyz"} {
		res, err := http.Get(ts.URL + path)
		if err != nil {
			t.Fatalf("GET %s error = %v", path, err)
		}
		res.Body.Close()
		if res.StatusCode != http.StatusOK {
			t.Fatalf("GET %s status = %d", path, res.StatusCode)
		}
	}
}

func TestCallsSnapshotReflectsTracker(t *testing.T) {
	srv, tracker, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var before struct {
		Active bool `json:"active"`
	}
	getJSON(t, ts.URL+"/v1/calls", &before)
	if before.Active {
		t.Fatalf("no session yet, active should be false")
	}

	tracker.OnEvent(context.Background(), ami.Event{
		Name:  ami.EventConfbridgeStart,
		Attrs: map[string]string{ami.AttrConference: "ops"},
	})

	var after struct {
		Active  bool `json:"active"`
		Session struct {
			ConferenceID string `json:"conference_id"`
		} `json:"session"`
	}
	getJSON(t, ts.URL+"/v1/calls", &after)
	if !after.Active || after.Session.ConferenceID != "ops" {
		t.Fatalf("snapshot = %+v", after)
	}
}

func TestFeedDeliversPublishedEvents(t *testing.T) {
	srv, _, feed := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/feed/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.Close()

	// Subscription happens inside the handler goroutine; give it a moment.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		feed.Publish(FeedEvent{Kind: "keyword_hit", CallID: "call1"})
		conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		var ev FeedEvent
		if err := conn.ReadJSON(&ev); err == nil {
			if ev.Kind != "keyword_hit" || ev.CallID != "call1" {
				t.Fatalf("event = %+v", ev)
			}
			return
		}
	}
	t.Fatalf("no feed event received")
}

func getJSON(t *testing.T, url string, out any) {
	t.Helper()
	res, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s error = %v", url, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("GET %s status = %d", url, res.StatusCode)
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		t.Fatalf("decode %s: %v", url, err)
	}
}
