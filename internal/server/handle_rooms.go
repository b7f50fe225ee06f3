package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/session"
)

// PlayerParams documents the identity header shared by mutating routes.
type PlayerParams struct {
	PlayerID int64 `header:"X-Player-ID" json:"-" required:"true"`
}

// RoomParams addresses a room by invite code.
type RoomParams struct {
	Code string `path:"code" json:"-"`
	PlayerParams
}

type CreateRoomRequest struct {
	PlayerParams
	Name string `json:"name"`
	Role string `json:"role,omitempty" enum:"valkyrie,vorschlag,ghost,shustrya"`
}

type JoinRequest struct {
	RoomParams
	Name string `json:"name"`
	Role string `json:"role,omitempty" enum:"valkyrie,vorschlag,ghost,shustrya"`
}

type ReadyRequest struct {
	RoomParams
	Ready bool `json:"ready"`
}

type LeaveResponse struct {
	Deleted bool `json:"deleted"`
}

func handleCreateRoom(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateRoomRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		role, err := coopquest.ParseRole(req.Role)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		state, err := engine.CreateRoom(r.Context(), playerFrom(r), req.Name, role)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, state)
	}
}

func handleRoomState(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := engine.Room(r.Context(), chi.URLParam(r, "code"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleJoin(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JoinRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.Name = strings.TrimSpace(req.Name)
		if req.Name == "" {
			writeError(w, http.StatusBadRequest, "name is required")
			return
		}

		role, err := coopquest.ParseRole(req.Role)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		state, err := engine.Join(r.Context(), chi.URLParam(r, "code"), playerFrom(r), req.Name, role)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleLeave(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		deleted, err := engine.Leave(r.Context(), chi.URLParam(r, "code"), playerFrom(r))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, LeaveResponse{Deleted: deleted})
	}
}

func handleReady(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ReadyRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		state, err := engine.SetReady(r.Context(), chi.URLParam(r, "code"), playerFrom(r), req.Ready)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleStart(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := engine.Start(r.Context(), chi.URLParam(r, "code"), playerFrom(r))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handlePurchaseUpgrade(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := engine.PurchaseUpgrade(r.Context(), chi.URLParam(r, "code"), playerFrom(r), chi.URLParam(r, "upgradeID"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
