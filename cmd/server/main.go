package main

import (
	"context"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/playperu/coopquest/internal/config"
	"github.com/playperu/coopquest/internal/content"
	"github.com/playperu/coopquest/internal/database"
	"github.com/playperu/coopquest/internal/expedition"
	"github.com/playperu/coopquest/internal/handler/health"
	"github.com/playperu/coopquest/internal/handler/roomfeed"
	"github.com/playperu/coopquest/internal/migrations"
	"github.com/playperu/coopquest/internal/random"
	"github.com/playperu/coopquest/internal/server"
	"github.com/playperu/coopquest/internal/session"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- Content ---
	var contentFS fs.FS = content.FS()
	if cfg.ContentDir != "" {
		contentFS = os.DirFS(cfg.ContentDir)
	}
	bundle, err := content.Load(contentFS, cfg.WaveNode)
	if err != nil {
		return fmt.Errorf("loading content: %w", err)
	}
	for _, w := range bundle.Warnings {
		logger.Warn("content warning", "detail", w)
	}
	logger.Info("content loaded", "dir", cfg.ContentDir, "pools", len(bundle.Pools.IDs()))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(ctx, db, logger); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	checks := map[string]health.Checker{
		"sqlite": health.CheckFunc(db.PingContext),
	}

	// --- Push ---
	broker := server.NewBroker()
	var notifier session.Notifier = broker
	var relay *server.RedisRelay

	if cfg.RedisURL != "" {
		rdb, err := openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		logger.Info("connected to redis")

		relay = server.NewRedisRelay(rdb, broker, logger)
		notifier = relay
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		})
	}

	// --- Engine ---
	src := random.Default()
	engine := session.NewEngine(server.NewDocStore(db), session.Content{
		Graph:      bundle.Graph,
		Scheduler:  expedition.NewScheduler(bundle.Pools, src, cfg.WaveNode, logger),
		Resolver:   expedition.NewResolver(src),
		Catalog:    bundle.Catalog,
		StartNode:  cfg.StartNode,
		MinPlayers: cfg.MinPlayers,
		MaxPlayers: cfg.MaxPlayers,
	}, logger, session.WithNotifier(notifier), session.WithRandom(src))

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Engine:       engine,
		Broker:       broker,
		RoomFeed:     roomfeed.NewHandler(logger, broker, engine).Routes(),
		Debug:        cfg.DebugEndpoints,
		AdminKeyHash: cfg.AdminKeyHash,
	}, func(r chi.Router) {
		r.Mount("/healthz", health.NewHandler(logger, checks).Routes())
	})
	if cfg.DebugEndpoints {
		logger.Warn("debug endpoints enabled", "admin_key", cfg.AdminKeyHash != "")
	}

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	if relay != nil {
		g.Go(func() error {
			return relay.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
