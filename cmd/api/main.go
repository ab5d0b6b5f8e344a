package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sb-works/collab-backend/config"
	"github.com/sb-works/collab-backend/internal/audit"
	"github.com/sb-works/collab-backend/internal/bootstrap"
	"github.com/sb-works/collab-backend/internal/logging"
	"github.com/sb-works/collab-backend/internal/projects/service"
	"github.com/sb-works/collab-backend/internal/realtime"
	"github.com/sb-works/collab-backend/internal/realtime/ws"
	"github.com/sb-works/collab-backend/internal/uploads"
)

const serviceName = "collab-backend"

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to load config")
	}
	logging.Init(cfg.App.LogLevel)
	bootstrap.SetGinMode(cfg.App.Environment)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	storage, err := bootstrap.OpenStorage(ctx, cfg.Database)
	if err != nil {
		logging.Fatal().Err(err).Str("driver", cfg.Database.Driver).Msg("failed to open store")
	}
	defer storage.Close()

	rdb, err := bootstrap.OpenRedis(ctx, cfg.Redis)
	if err != nil {
		logging.Fatal().Err(err).Msg("failed to connect to redis")
	}
	opts := realtime.Options{GapTimeout: cfg.Realtime.GapTimeout}
	if rdb != nil {
		defer rdb.Close()
		opts.Bus = realtime.NewRedisBus(rdb)
	}

	hub := realtime.NewHub(storage.Store, opts)
	if err := hub.Start(ctx); err != nil {
		logging.Fatal().Err(err).Msg("failed to start relay")
	}

	verifier, err := bootstrap.NewVerifier(ctx, cfg.Auth)
	if err != nil {
		logging.Fatal().Err(err).Str("provider", cfg.Auth.Provider).Msg("failed to build token verifier")
	}

	lifecycle := service.NewLifecycleService(storage.Store, hub)
	state := service.NewStateService(storage.Store, storage.Directory, cfg.Realtime.StrictRoomAccess)
	gateway := ws.NewGateway(verifier, hub, state, ws.Options{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		SendRate:       cfg.Realtime.SendRate,
		SendBurst:      cfg.Realtime.SendBurst,
		SendBuffer:     cfg.Realtime.SendBuffer,
		PingInterval:   cfg.Realtime.PingInterval,
	})

	var uploadSvc *uploads.Service
	if cfg.Uploads.Enabled() {
		presigner, err := uploads.NewS3Presigner(ctx, cfg.Uploads)
		if err != nil {
			logging.Fatal().Err(err).Msg("failed to configure uploads")
		}
		uploadSvc = uploads.NewService(presigner, state, cfg.Uploads)
	}

	auditor := audit.NewScheduler(storage.Store, cfg.Audit.Schedule)
	if err := auditor.Start(); err != nil {
		logging.Fatal().Err(err).Msg("failed to start audit scheduler")
	}
	defer auditor.Stop()

	router := bootstrap.BuildRouter(bootstrap.RouterDeps{
		ServiceName:    serviceName,
		Version:        cfg.App.Version,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		DB:             storage.Pool,
		Redis:          rdb,
		Hub:            hub,
		Verifier:       verifier,
		Lifecycle:      lifecycle,
		State:          state,
		Gateway:        gateway,
		Uploads:        uploadSvc,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Server.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logging.Info().Str("port", cfg.Server.Port).Str("store", cfg.Database.Driver).
			Bool("relay", rdb != nil).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logging.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	logging.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logging.Error().Err(err).Msg("graceful shutdown failed")
	}
}
