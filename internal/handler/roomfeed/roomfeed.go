// Package roomfeed pushes room-state snapshots over a WebSocket.
package roomfeed

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/session"
)

const (
	maxFeedDuration = time.Hour
	pingInterval    = 30 * time.Second
	writeTimeout    = 5 * time.Second
)

// Feed delivers encoded snapshots per invite code.
type Feed interface {
	Subscribe(code string) chan []byte
	Unsubscribe(code string, ch chan []byte)
}

// Rooms supplies the snapshot sent on connect.
type Rooms interface {
	Room(ctx context.Context, code string) (session.RoomState, error)
}

type Handler struct {
	logger *slog.Logger
	feed   Feed
	rooms  Rooms
}

func NewHandler(logger *slog.Logger, feed Feed, rooms Rooms) *Handler {
	return &Handler{logger: logger, feed: feed, rooms: rooms}
}

// Routes expects to be mounted below a route carrying the {code} param.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/", h.stream)
	return r
}

func (h *Handler) stream(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")

	state, err := h.rooms.Room(r.Context(), code)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, coopquest.ErrNotFound) {
			status = http.StatusNotFound
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
		return
	}
	first, err := json.Marshal(state)
	if err != nil {
		h.logger.Error("encoding room state", "code", code, "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		h.logger.Error("websocket accept failed", "error", err)
		return
	}
	defer conn.CloseNow()

	ch := h.feed.Subscribe(code)
	defer h.feed.Unsubscribe(code, ch)

	ctx, cancel := context.WithTimeout(r.Context(), maxFeedDuration)
	defer cancel()
	// Clients only listen; CloseRead handles their control frames.
	ctx = conn.CloseRead(ctx)

	if err := h.write(ctx, conn, first); err != nil {
		h.logger.Debug("websocket write failed", "code", code, "error", err)
		return
	}

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case <-ctx.Done():
			conn.Close(websocket.StatusNormalClosure, "")
			return
		case data := <-ch:
			if err := h.write(ctx, conn, data); err != nil {
				h.logger.Debug("websocket write failed", "code", code, "error", err)
				return
			}
		case <-ping.C:
			if err := conn.Ping(ctx); err != nil {
				h.logger.Debug("websocket ping failed", "code", code, "error", err)
				return
			}
		}
	}
}

func (h *Handler) write(ctx context.Context, conn *websocket.Conn, data []byte) error {
	ctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(ctx, websocket.MessageText, data)
}
