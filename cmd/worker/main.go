package main

import (
	"context"
	"time"

	"lexiflow/internal/activities"
	"lexiflow/internal/cache"
	"lexiflow/internal/config"
	"lexiflow/internal/logging"
	"lexiflow/internal/pipeline"
	"lexiflow/internal/storage"
	"lexiflow/internal/workflows"

	"github.com/joho/godotenv"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
)

func main() {
	_ = godotenv.Load(".env")
	cfg := config.Load()
	log := logging.New(cfg.LogLevel, cfg.LogFormat, "lexiflow-worker")

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatal().Err(err).Msg("temporal")
	}
	defer c.Close()

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
	kv, err := cache.Open(ctx, cfg.RedisURL, cfg.CachePrefix)
	if err != nil {
		log.Fatal().Err(err).Msg("cache")
	}
	defer kv.Close()
	orch, err := pipeline.Build(ctx, cfg, db, kv, log)
	if err != nil {
		log.Fatal().Err(err).Msg("pipeline")
	}

	w := worker.New(c, cfg.TemporalTaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize: cfg.WorkerConcurrency,
	})
	workflows.Register(w)
	activities.Register(w, activities.New(orch, log))

	log.Info().Str("temporal", cfg.TemporalAddress).Str("queue", cfg.TemporalTaskQueue).
		Str("llm_providers", cfg.LLMProviders).Int("concurrency", cfg.WorkerConcurrency).Msg("lexiflow worker listening")
	if err := w.Run(worker.InterruptCh()); err != nil {
		log.Fatal().Err(err).Msg("worker stopped")
	}
}
