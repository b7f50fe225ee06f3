package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/coopquest/internal/content"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/random"
	"github.com/playperu/coopquest/internal/session"
)

func newTestEngine(t *testing.T, store session.Store, notifier session.Notifier) *session.Engine {
	t.Helper()
	b, err := content.Load(content.FS(), "exp_wave")
	if err != nil {
		t.Fatalf("loading content: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	src := random.Seeded(7)
	return session.NewEngine(store, session.Content{
		Graph:     b.Graph,
		Scheduler: expedition.NewScheduler(b.Pools, src, "exp_wave", logger),
		Resolver:  expedition.NewResolver(src),
		Catalog:   b.Catalog,
	}, logger, session.WithNotifier(notifier), session.WithRandom(src))
}

func newTestRouter(t *testing.T, deps Deps) (chi.Router, *Broker) {
	t.Helper()
	if deps.Broker == nil {
		deps.Broker = NewBroker()
	}
	if deps.Engine == nil {
		deps.Engine = newTestEngine(t, session.NewMemoryStore(), deps.Broker)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewRouter(logger, deps, nil), deps.Broker
}

func do(t *testing.T, h http.Handler, method, path string, player int64, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encoding body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if player != 0 {
		req.Header.Set(playerHeader, strconv.FormatInt(player, 10))
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	return v
}

// openRoom creates a room hosted by player 1 and seats player 2.
func openRoom(t *testing.T, h http.Handler) string {
	t.Helper()
	rec := do(t, h, http.MethodPost, "/api/rooms", 1, map[string]string{"name": "Ana"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create status = %d: %s", rec.Code, rec.Body)
	}
	code := decode[session.RoomState](t, rec).Code

	rec = do(t, h, http.MethodPost, "/api/rooms/"+code+"/join", 2, map[string]string{"name": "Boris", "role": "ghost"})
	if rec.Code != http.StatusOK {
		t.Fatalf("join status = %d: %s", rec.Code, rec.Body)
	}
	return code
}

// startRoom opens a two-player room and starts it.
func startRoom(t *testing.T, h http.Handler) string {
	t.Helper()
	code := openRoom(t, h)
	base := "/api/rooms/" + code
	for _, id := range []int64{1, 2} {
		if rec := do(t, h, http.MethodPost, base+"/ready", id, map[string]bool{"ready": true}); rec.Code != http.StatusOK {
			t.Fatalf("ready %d status = %d: %s", id, rec.Code, rec.Body)
		}
	}
	if rec := do(t, h, http.MethodPost, base+"/start", 1, nil); rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	return code
}

func TestRoomLifecycle(t *testing.T) {
	h, _ := newTestRouter(t, Deps{})
	code := openRoom(t, h)
	base := "/api/rooms/" + code

	rec := do(t, h, http.MethodGet, base, 0, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("get status = %d", rec.Code)
	}
	st := decode[session.RoomState](t, rec)
	if len(st.Participants) != 2 || st.Participants[1].Role != "ghost" || st.HostID != 1 {
		t.Fatalf("room = %+v", st)
	}

	for _, id := range []int64{1, 2} {
		if rec := do(t, h, http.MethodPost, base+"/ready", id, map[string]bool{"ready": true}); rec.Code != http.StatusOK {
			t.Fatalf("ready %d status = %d: %s", id, rec.Code, rec.Body)
		}
	}
	rec = do(t, h, http.MethodPost, base+"/start", 1, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start status = %d: %s", rec.Code, rec.Body)
	}
	if st := decode[session.RoomState](t, rec); st.Status != session.StatusActive || st.SceneID != "start" {
		t.Fatalf("started room = %+v", st)
	}

	rec = do(t, h, http.MethodPost, base+"/vote", 1, map[string]string{"choiceId": "enter"})
	res := decode[session.VoteResult](t, rec)
	if !res.Recorded || res.Advanced {
		t.Fatalf("first vote = %+v", res)
	}
	rec = do(t, h, http.MethodPost, base+"/vote", 2, map[string]string{"choiceId": "enter"})
	res = decode[session.VoteResult](t, rec)
	if !res.Advanced || res.Winner != "enter" || res.SceneID != "camp_gate" {
		t.Fatalf("second vote = %+v", res)
	}

	rec = do(t, h, http.MethodPost, base+"/leave", 2, nil)
	if got := decode[LeaveResponse](t, rec); got.Deleted {
		t.Fatal("room deleted with a player left")
	}
	rec = do(t, h, http.MethodPost, base+"/leave", 1, nil)
	if got := decode[LeaveResponse](t, rec); !got.Deleted {
		t.Fatal("empty room kept")
	}
	if rec := do(t, h, http.MethodGet, base, 0, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get deleted room status = %d", rec.Code)
	}
}

func TestErrorMapping(t *testing.T) {
	h, _ := newTestRouter(t, Deps{})
	code := openRoom(t, h)
	base := "/api/rooms/" + code

	tests := []struct {
		name   string
		method string
		path   string
		player int64
		body   any
		want   int
	}{
		{"missing identity", http.MethodPost, base + "/ready", 0, map[string]bool{"ready": true}, http.StatusUnauthorized},
		{"unknown room", http.MethodPost, "/api/rooms/NOPE00/ready", 1, map[string]bool{"ready": true}, http.StatusNotFound},
		{"malformed body", http.MethodPost, base + "/ready", 1, "{", http.StatusBadRequest},
		{"empty name", http.MethodPost, base + "/join", 3, map[string]string{"name": " "}, http.StatusBadRequest},
		{"stranger", http.MethodPost, base + "/ready", 9, map[string]bool{"ready": true}, http.StatusForbidden},
		{"non-host start", http.MethodPost, base + "/start", 2, nil, http.StatusForbidden},
		{"not ready", http.MethodPost, base + "/start", 1, nil, http.StatusUnprocessableEntity},
		{"taken role", http.MethodPost, base + "/join", 3, map[string]string{"name": "C", "role": "ghost"}, http.StatusUnprocessableEntity},
		{"unknown role", http.MethodPost, base + "/join", 3, map[string]string{"name": "C", "role": "bard"}, http.StatusUnprocessableEntity},
		{"unknown role on create", http.MethodPost, "/api/rooms", 5, map[string]string{"name": "E", "role": "Ghost"}, http.StatusUnprocessableEntity},
		{"vote before start", http.MethodPost, base + "/vote", 1, map[string]string{"choiceId": "enter"}, http.StatusConflict},
		{"no choice", http.MethodPost, base + "/vote", 1, map[string]string{}, http.StatusBadRequest},
		{"unknown upgrade", http.MethodPost, base + "/camp/upgrades/moat", 1, nil, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, tt.method, tt.path, tt.player, tt.body)
			if rec.Code != tt.want {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.want, rec.Body)
			}
			if got := decode[ErrorResponse](t, rec); got.Error == "" {
				t.Error("empty error message")
			}
		})
	}
}
