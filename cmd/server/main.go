package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"

	"github.com/dispatchworks/gatepass/internal/api"
	"github.com/dispatchworks/gatepass/internal/artifact"
	"github.com/dispatchworks/gatepass/internal/config"
	"github.com/dispatchworks/gatepass/internal/database"
	"github.com/dispatchworks/gatepass/internal/gatepass"
	"github.com/dispatchworks/gatepass/internal/queue"
	"github.com/dispatchworks/gatepass/internal/signing"
	"github.com/dispatchworks/gatepass/internal/store"
	filestore "github.com/dispatchworks/gatepass/internal/store/file"
	"github.com/dispatchworks/gatepass/internal/store/memory"
	"github.com/dispatchworks/gatepass/internal/store/postgres"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	st, cleanup, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatalf("open %s store: %v", cfg.StoreBackend, err)
	}
	defer cleanup()

	var renderer gatepass.RenderEnqueuer
	if cfg.RedisAddr != "" {
		client := asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		renderer = queue.NewClient(client)
	} else {
		log.Printf("GATEPASS_REDIS_ADDR not set, document rendering disabled")
	}

	var artifacts *artifact.Store
	if cfg.S3Endpoint != "" {
		artifacts, err = artifact.New(cfg)
		if err != nil {
			log.Fatalf("init artifact storage: %v", err)
		}
		if err := artifacts.EnsureBucket(ctx); err != nil {
			log.Fatalf("ensure bucket: %v", err)
		}
	} else {
		log.Printf("GATEPASS_S3_ENDPOINT not set, document downloads disabled")
	}

	svc := gatepass.New(st, renderer)
	signer := signing.NewSigner(cfg.SigningSecret)
	srv := api.New(cfg, svc, artifacts, signer)
	if err := srv.Run(ctx); err != nil {
		log.Printf("server stopped: %v", err)
		os.Exit(1)
	}
}

// openStore builds the configured record store. The choice is explicit: a
// backend that cannot be reached is a fatal startup error, never a silent
// swap to another backend.
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
	case config.StoreMemory:
		log.Printf("using in-memory store, records will not survive a restart")
		return memory.New(), func() {}, nil
	}
	panic("unreachable: config.Load validates the backend")
}
