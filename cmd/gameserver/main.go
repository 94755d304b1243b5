// Package main provides the arena server binary: the WebSocket game
// endpoint, the static client assets, and the game core behind them.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/arena/internal/config"
	"github.com/cory-johannsen/arena/internal/game/registry"
	"github.com/cory-johannsen/arena/internal/game/rng"
	"github.com/cory-johannsen/arena/internal/observability"
	"github.com/cory-johannsen/arena/internal/server"
	"github.com/cory-johannsen/arena/internal/transport/ws"
)

func main() {
	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	logger.Info("starting arena server",
		zap.String("addr", cfg.Server.Addr()),
		zap.Int("world_size", cfg.World.Size),
		zap.Duration("tick_interval", cfg.Game.TickInterval),
	)

	hub := ws.NewHub(logger)
	reg := registry.New(hub, cfg.World.Size, cfg.Game.TickInterval, rng.NewCryptoSource(), logger)
	handler := ws.NewHandler(hub, reg, logger)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", handler.ServeWS)
	mux.Handle("/", http.FileServer(http.Dir(cfg.Server.StaticDir)))

	httpServer := &http.Server{
		Addr:    cfg.Server.Addr(),
		Handler: mux,
	}

	lifecycle := server.NewLifecycle(logger)
	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("lifecycle failed", zap.Error(err))
	}
}
