package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dispatchworks/gatepass/internal/artifact"
	"github.com/dispatchworks/gatepass/internal/config"
	"github.com/dispatchworks/gatepass/internal/database"
	"github.com/dispatchworks/gatepass/internal/render"
	"github.com/dispatchworks/gatepass/internal/store"
	filestore "github.com/dispatchworks/gatepass/internal/store/file"
	"github.com/dispatchworks/gatepass/internal/store/postgres"
	"github.com/dispatchworks/gatepass/internal/worker"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if cfg.RedisAddr == "" {
		log.Fatalf("GATEPASS_REDIS_ADDR is required for the worker")
	}
	if cfg.S3Endpoint == "" {
		log.Fatalf("GATEPASS_S3_ENDPOINT is required for the worker")
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreBackend, err)
	}
	defer cleanup()

	artifacts, err := artifact.New(cfg)
	if err != nil {
		log.Fatalf("init artifact storage: %v", err)
	}
	if err := artifacts.EnsureBucket(ctx); err != nil {
		log.Fatalf("ensure bucket: %v", err)
	}

	server := asynq.NewServer(asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}, asynq.Config{
		Concurrency: cfg.WorkerCount,
	})
	letterhead := render.Letterhead{
		OrgName: cfg.OrgName,
		Address: cfg.OrgAddress,
		Phone:   cfg.OrgPhone,
	}
	processor := worker.NewProcessor(st, artifacts, letterhead)
	mux := processor.Handler()

	go func() {
		<-ctx.Done()
		server.Shutdown()
	}()

	if err := server.Run(mux); err != nil {
		log.Printf("worker stopped: %v", err)
		os.Exit(1)
	}
}

// openStore mirrors the server wiring: the worker reads records through the
// same configured backend. The memory backend is rejected here because the
// worker would only ever see an empty store of its own.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.StoreBackend {
	case config.StorePostgres:
		pool, err := database.Connect(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		if err := database.EnsureSchema(ctx, pool); err != nil {
			pool.Close()
			return nil, nil, err
		}
		return postgres.New(pool), pool.Close, nil
	case config.StoreFile:
		return filestore.New(cfg.FilePath), func() {}, nil
	}
	log.Fatalf("store backend %q cannot back a worker", cfg.StoreBackend)
	return nil, nil, nil
}
