package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/playperu/coopquest/internal/coopquest"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeEngineError maps the domain error taxonomy onto HTTP statuses.
// Anything unclassified is logged and hidden behind a 500.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, coopquest.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, coopquest.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, coopquest.ErrInvalidState), errors.Is(err, coopquest.ErrConflict):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, coopquest.ErrPreconditionFailed):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
