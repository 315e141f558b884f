package main

import (
	"context"
	"net/http"
	"os"
	"time"

	"lexiflow/internal/api"
	"lexiflow/internal/blobstore"
	"lexiflow/internal/cache"
	"lexiflow/internal/config"
	"lexiflow/internal/logging"
	"lexiflow/internal/pipeline"
	"lexiflow/internal/queue"
	"lexiflow/internal/storage"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, "lexiflow-api")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	db, err := storage.NewDB(ctx, cfg.PostgresURL)
	if err != nil {
		log.Fatal().Err(err).Msg("postgres")
	}
	defer db.Close()
	if err := db.EnsureSchema(ctx); err != nil {
		log.Fatal().Err(err).Msg("schema")
	}
	c, err := cache.Open(ctx, cfg.RedisURL, cfg.CachePrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("cache")
	}
	defer c.Close()
	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("blob store")
	}
	tc, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Msg("temporal")
	}
	defer tc.Close()

	docs := storage.NewDocumentRepo(db)
	status := pipeline.New(pipeline.Deps{Documents: docs, Cache: c}, pipeline.OptionsFromConfig(cfg), log)
	srv := api.NewServer(cfg, api.Deps{
		Documents: docs,
		Blobs:     blobs,
		Jobs:      queue.NewEnqueuer(tc, cfg.TemporalTaskQueue),
		Status:    status,
		Cache:     c,
	}, log)

	log.Info().Str("addr", cfg.APIAddr).Str("llm_providers", cfg.LLMProviders).Str("blob_backend", cfg.BlobBackend).Msg("lexiflow api listening")
	if err := http.ListenAndServe(cfg.APIAddr, srv.Routes()); err != nil {
		log.Error().Err(err).Msg("api stopped")
		os.Exit(1)
	}
}
