package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rotaouro/courier-agent/internal/backend"
	"github.com/rotaouro/courier-agent/internal/config"
	"github.com/rotaouro/courier-agent/internal/db"
	"github.com/rotaouro/courier-agent/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	conn, err := db.Connect(cfg)
	if err != nil {
		log.Fatalf("drafts db error: %v", err)
	}

	client := backend.New(cfg.APIBase, cfg.APIToken, cfg.APITimeout, logger)
	srv := server.New(cfg, client, conn, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Startup sync: rebuild the accepted list, then look for an assignment
	// still inside its hold window.
	go func() {
		if err := srv.Deliveries().Rehydrate(ctx); err != nil {
			logger.Warn("rehydration failed", "err", err)
		}
		srv.Controller().PollPendingAssignment(ctx)
	}()

	go srv.Poller().Run(ctx)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		logger.Info("agent listening", "addr", addr)
		errCh <- srv.Start(addr)
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		log.Fatalf("server stopped: %v", err)
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		srv.Controller().Close()
		cancel()
	}
}
