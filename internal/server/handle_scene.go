package server

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/playperu/coopquest/internal/session"
)

type VoteRequest struct {
	RoomParams
	session.VoteRequest
}

type ResolveEncounterRequest struct {
	RoomParams
	session.EncounterReport
}

type CheckpointRequest struct {
	RoomParams
	NodeID string `json:"nodeId"`
}

func handleVote(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VoteRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		req.ChoiceID = strings.TrimSpace(req.ChoiceID)
		if req.ChoiceID == "" {
			writeError(w, http.StatusBadRequest, "choiceId is required")
			return
		}

		res, err := engine.Vote(r.Context(), chi.URLParam(r, "code"), playerFrom(r), req.VoteRequest)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func handleResolveEncounter(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResolveEncounterRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		state, err := engine.ResolveEncounter(r.Context(), chi.URLParam(r, "code"), playerFrom(r), req.EncounterReport)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleCheckpoint(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CheckpointRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.NodeID == "" {
			writeError(w, http.StatusBadRequest, "nodeId is required")
			return
		}

		state, err := engine.ReachCheckpoint(r.Context(), chi.URLParam(r, "code"), playerFrom(r), req.NodeID)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}

func handleAdvanceBroadcast(logger *slog.Logger, engine *session.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		state, err := engine.AdvanceBroadcast(r.Context(), chi.URLParam(r, "code"), playerFrom(r))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, state)
	}
}
