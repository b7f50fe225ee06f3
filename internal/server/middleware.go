package server

import (
	"context"
	"net/http"
	"strconv"
)

type ctxKey int

const ctxKeyPlayer ctxKey = iota

const playerHeader = "X-Player-ID"

// playerMiddleware resolves the caller identity supplied by the upstream
// identity service.
func playerMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(playerHeader)
		if raw == "" {
			writeError(w, http.StatusUnauthorized, playerHeader+" header required")
			return
		}
		id, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "invalid "+playerHeader+" header")
			return
		}

		ctx := context.WithValue(r.Context(), ctxKeyPlayer, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func playerFrom(r *http.Request) int64 {
	return r.Context().Value(ctxKeyPlayer).(int64)
}
