package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duelgrid/duel-backend/internal/archive"
	"github.com/duelgrid/duel-backend/internal/config"
	"github.com/duelgrid/duel-backend/internal/engine"
	"github.com/duelgrid/duel-backend/internal/httpapi"
	"github.com/duelgrid/duel-backend/internal/hub"
	"github.com/duelgrid/duel-backend/internal/session"
)

func main() {
	cfg := config.Load()

	logCfg := zap.NewProductionConfig()
	if level, err := zap.ParseAtomicLevel(cfg.LogLevel); err == nil {
		logCfg.Level = level
	}
	logger, err := logCfg.Build()
	if err != nil {
		log.Fatalf("building logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	var store archive.Store = archive.Noop{}
	if cfg.DatabaseDSN != "" {
		db, err := archive.Open(cfg.DatabaseDSN)
		if err != nil {
			logger.Fatal("opening archive", zap.Error(err))
		}
		store = db
		logger.Info("game archive enabled")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	h := hub.NewHub(ctx, hub.Config{
		Rules:     engine.NewDuel(),
		Snapshots: session.NewSnapshotStore(),
		Archive:   store,
		Logger:    logger,
	})

	srv := &http.Server{
		Addr:    cfg.Addr,
		Handler: httpapi.SetupRoutes(h, logger),
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("listening", zap.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		h.Inbox() <- hub.ShutdownHub{}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}
