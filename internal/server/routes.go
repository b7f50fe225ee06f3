package server

import (
	"log/slog"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"
)

func addRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	engine := deps.Engine

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("CoopQuest API", "/openapi.json", "/docs"))

	r.Route("/api/rooms", func(r chi.Router) {
		r.With(playerMiddleware).Post("/", handleCreateRoom(logger, engine))

		r.Route("/{code}", func(r chi.Router) {
			// Read-only views are keyed by the invite code alone.
			r.Get("/", handleRoomState(logger, engine))
			r.Get("/events", handleEvents(logger, engine, deps.Broker))
			if deps.RoomFeed != nil {
				r.Mount("/ws", deps.RoomFeed)
			}

			r.Group(func(r chi.Router) {
				r.Use(playerMiddleware)
				r.Post("/join", handleJoin(logger, engine))
				r.Post("/leave", handleLeave(logger, engine))
				r.Post("/ready", handleReady(logger, engine))
				r.Post("/start", handleStart(logger, engine))
				r.Post("/vote", handleVote(logger, engine))
				r.Post("/encounter/resolve", handleResolveEncounter(logger, engine))
				r.Post("/checkpoint", handleCheckpoint(logger, engine))
				r.Post("/broadcast/advance", handleAdvanceBroadcast(logger, engine))
				r.Post("/camp/upgrades/{upgradeID}", handlePurchaseUpgrade(logger, engine))
			})

			if deps.Debug {
				r.Route("/debug", func(r chi.Router) {
					r.Use(adminKeyMiddleware(deps.AdminKeyHash))
					r.Use(playerMiddleware)
					r.Post("/scene", handleForceScene(logger, engine))
					r.Post("/bots", handleAddBot(logger, engine))
				})
			}
		})
	})
}
