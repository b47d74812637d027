package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"tramboard/internal/board"
	"tramboard/internal/cache"
	"tramboard/internal/config"
	"tramboard/internal/handler"
	"tramboard/internal/hub"
	"tramboard/internal/ingestor"
	"tramboard/internal/logging"
	"tramboard/internal/middleware"
	"tramboard/internal/store"
	"tramboard/internal/views"
	"tramboard/pkg/transportrest"
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stdout, cfg, version)
	slog.SetDefault(logger)

	logger.Info("starting tramboard server",
		"log_level", cfg.LogLevel.String(),
		"http_addr", cfg.HTTPAddr,
		"stop_id", cfg.StopID,
		"line", cfg.LineFilter,
		"redis_enabled", cfg.RedisEnabled,
	)

	if err := views.LoadTemplates(); err != nil {
		logger.Error("failed to load templates", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	builder := board.NewBuilder(board.NewClassifier(cfg.DirectionMarkers), board.Options{
		Title:            cfg.Title(),
		PrimaryLabel:     cfg.PrimaryTabLabel,
		SecondaryLabel:   cfg.SecondaryTabLabel,
		LookaheadMinutes: cfg.LookaheadMinutes,
	})

	boardStore := store.New(time.Now())
	wsHub := hub.NewHub(handler.NewBoardEncoder(builder), logger)
	apiClient := transportrest.New(cfg.UpstreamBaseURL, cfg.UpstreamTimeout, logger)

	var (
		sink     ingestor.SnapshotSink
		loader   handler.SnapshotLoader
		counter  handler.MirrorCounter
		redisCli *cache.RedisCache
	)
	if cfg.RedisEnabled {
		redisCli, err = cache.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
		if err != nil {
			logger.Warn("redis unavailable, snapshot mirror disabled", "error", err)
		} else {
			mirror := cache.NewMirror(redisCli, cfg.SnapshotTTL, logger)
			sink, loader, counter = mirror, mirror, mirror
		}
	}

	ing := ingestor.New(apiClient, boardStore, wsHub, sink, ingestor.Options{
		Query: transportrest.Query{
			StopID:   cfg.StopID,
			Duration: cfg.Lookahead(),
			Line:     cfg.LineFilter,
		},
		FetchInterval: cfg.FetchInterval,
		ClockInterval: cfg.ClockInterval,
	}, logger)

	limiter := middleware.NewRateLimiter(cfg.RefreshLimitPerWindow, cfg.RefreshLimitWindow, cfg.RefreshLimitWhitelist, logger)

	boardHandler := handler.NewBoardHandler(boardStore, builder, ing, limiter, "/v1/ws", logger)
	snapshotHandler := handler.NewSnapshotHandler(loader, cfg.StopID, logger)
	wsHandler := handler.NewWSHandler(wsHub, boardStore, ing, limiter, logger)
	healthHandler := handler.NewHealthHandler(ing, boardStore)
	statsHandler := handler.NewStatsHandler(boardStore, ing, wsHub, counter, limiter, version)

	mux := http.NewServeMux()

	mux.HandleFunc("GET /{$}", boardHandler.Page)
	mux.HandleFunc("POST /refresh", boardHandler.RefreshForm)

	mux.HandleFunc("GET /v1/board", boardHandler.GetBoard)
	mux.Handle("POST /v1/refresh", limiter.Middleware(http.HandlerFunc(boardHandler.Refresh)))
	mux.HandleFunc("GET /v1/snapshot", snapshotHandler.GetSnapshot)
	mux.HandleFunc("GET /v1/stats", statsHandler.GetStats)

	mux.HandleFunc("GET /healthz", healthHandler.Healthz)
	mux.HandleFunc("GET /readyz", healthHandler.Readyz)

	// websocket upgrades stay outside the gzip wrapper
	root := http.NewServeMux()
	root.HandleFunc("/v1/ws", wsHandler.ServeWS)
	root.Handle("/", handler.Chain(mux, handler.CORSMiddleware, handler.GzipMiddleware))

	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      root,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	var wg sync.WaitGroup
	run := func(fn func(context.Context)) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fn(ctx)
		}()
	}

	run(wsHub.Run)
	run(ing.Run)
	run(limiter.Run)

	go func() {
		logger.Info("starting HTTP server", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sigChan:
		logger.Info("shutdown signal received")
	case <-ctx.Done():
	}

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", "error", err)
	}

	wg.Wait()

	if redisCli != nil {
		if err := redisCli.Close(); err != nil {
			logger.Warn("failed to close redis", "error", err)
		}
	}

	logger.Info("shutdown complete")
}
