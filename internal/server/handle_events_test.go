package server

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/playperu/coopquest/internal/session"
)

// nextEvent reads one SSE frame and returns its data line.
func nextEvent(t *testing.T, r *bufio.Reader) string {
	t.Helper()
	var data string
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			t.Fatalf("reading stream: %v", err)
		}
		line = strings.TrimRight(line, "\n")
		switch {
		case line == "" && data != "":
			return data
		case strings.HasPrefix(line, "data: "):
			data = strings.TrimPrefix(line, "data: ")
		}
	}
}

func TestEventsStream(t *testing.T) {
	h, broker := newTestRouter(t, Deps{})
	code := openRoom(t, h)

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/api/rooms/"+code+"/events", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("connecting: %v", err)
	}
	defer resp.Body.Close()

	if got := resp.Header.Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("content-type = %q", got)
	}

	r := bufio.NewReader(resp.Body)
	var first session.RoomState
	if err := json.Unmarshal([]byte(nextEvent(t, r)), &first); err != nil {
		t.Fatalf("decoding snapshot: %v", err)
	}
	if first.Code != code || len(first.Participants) != 2 {
		t.Fatalf("snapshot = %+v", first)
	}

	// The subscription is registered before the first frame is written.
	if n := broker.Subscribers(code); n != 1 {
		t.Fatalf("subscribers = %d", n)
	}
	if rec := do(t, h, http.MethodPost, "/api/rooms/"+code+"/ready", 2, map[string]bool{"ready": true}); rec.Code != http.StatusOK {
		t.Fatalf("ready status = %d", rec.Code)
	}

	var next session.RoomState
	if err := json.Unmarshal([]byte(nextEvent(t, r)), &next); err != nil {
		t.Fatalf("decoding update: %v", err)
	}
	if !next.Participants[1].Ready {
		t.Errorf("update = %+v", next.Participants)
	}
}

func TestEventsUnknownRoom(t *testing.T) {
	h, _ := newTestRouter(t, Deps{})
	rec := do(t, h, http.MethodGet, "/api/rooms/NOPE00/events", 0, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
