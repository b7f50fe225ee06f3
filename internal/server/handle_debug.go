package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/coopquest/internal/coopquest"
	"github.com/playperu/coopquest/internal/session"
)

// AdminParams documents the operator key on debug routes.
type AdminParams struct {
	AdminKey string `header:"X-Admin-Key" json:"-"`
}

type ForceSceneRequest struct {
	RoomParams
	AdminParams
	NodeID string `json:"nodeId"`
}

type AddBotRequest struct {
	RoomParams
	AdminParams
	Role string `json:"role,omitempty" enum:"valkyrie,vorschlag,ghost,shustrya"`
}

func handleForceScene(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ForceSceneRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.NodeID == "" {
			writeError(w, http.StatusBadRequest, "nodeId is required")
			return
		}

		state, err := engine.ForceScene(r.Context(), chi.URLParam(r, "code"), req.NodeID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleAddBot(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddBotRequest
		if r.ContentLength != 0 {
			if err := readJSON(r, &req); err != nil {
				writeError(w, http.StatusBadRequest, "invalid request body")
				return
			}
		}

		role, err := coopquest.ParseRole(req.Role)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}

		state, err := engine.AddBot(r.Context(), chi.URLParam(r, "code"), playerFrom(r), role)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
