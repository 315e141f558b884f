package pipeline

import (
	"context"
	"fmt"
	"time"

	"lexiflow/internal/blobstore"
	"lexiflow/internal/cache"
	"lexiflow/internal/config"
	"lexiflow/internal/extraction"
	"lexiflow/internal/generation"
	"lexiflow/internal/llm"
	"lexiflow/internal/notify"
	"lexiflow/internal/providers"
	"lexiflow/internal/storage"

	"github.com/rs/zerolog"
)

// Build wires an Orchestrator against Postgres, the configured blob store,
// LLM providers and OCR backend.
func Build(ctx context.Context, cfg config.Config, db *storage.DB, c cache.Client, log zerolog.Logger) (*Orchestrator, error) {
	pm, err := providers.NewManager(cfg)
	if err != nil {
		return nil, fmt.Errorf("llm providers: %w", err)
	}
	blobs, err := blobstore.New(ctx, cfg)
	if err != nil {
		return nil, err
	}
	gen := llm.New(pm, time.Duration(cfg.ProviderCooldownSecs)*time.Second, log).
		WithAuditor(storage.NewLLMAuditRepo(db))
	return New(Deps{
		Documents:   storage.NewDocumentRepo(db),
		Vocabulary:  storage.NewVocabularyRepo(db),
		Users:       storage.NewUserRepo(db),
		Persister:   storage.NewGenerationRepo(db),
		Blobs:       blobs,
		OCR:         extraction.New(cfg, log),
		Terms:       generation.NewExtractor(gen, generation.PolicyFromConfig(cfg), log),
		Translator:  generation.NewTranslator(gen, c, cfg.TranslationTTL, cfg.TextBudget),
		Categorizer: generation.NewCategorizer(gen, c, cfg.CategoryTTL, cfg.CategoryTextBudget),
		Cache:       c,
		Notifier:    notify.FromCache(c, log),
	}, OptionsFromConfig(cfg), log), nil
}
