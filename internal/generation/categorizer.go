package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"lexiflow/internal/cache"
	"lexiflow/internal/models"
	"lexiflow/internal/util"
)

type Categorizer struct {
	llm        LLM
	cache      cache.Client
	ttl        time.Duration
	textBudget int
	categories []models.Category
	fallback   models.Category
}

func NewCategorizer(llm LLM, c cache.Client, ttl time.Duration, textBudget int) *Categorizer {
	if textBudget <= 0 {
		textBudget = 4000
	}
	return &Categorizer{
		llm:        llm,
		cache:      c,
		ttl:        ttl,
		textBudget: textBudget,
		categories: models.DefaultCategories,
		fallback:   models.DefaultCategory(),
	}
}

// Categorize asks the model for one category name and maps the answer onto
// the taxonomy. Results are memoized by text hash.
func (c *Categorizer) Categorize(ctx context.Context, text string) (models.Category, error) {
	text = util.TruncateRunes(strings.TrimSpace(text), c.textBudget)
	if text == "" {
		return c.fallback, nil
	}
	names := make([]string, len(c.categories))
	for i, cat := range c.categories {
		names[i] = cat.Name
	}
	key := cache.CategorizeKey(util.SHA256Hex([]byte(text)))
	id, err := cache.GetOrCompute(ctx, c.cache, key, c.ttl, func(ctx context.Context) (string, error) {
		raw, err := c.llm.GenerateText(ctx, OpCategorize, categorizePrompt(text, names))
		if err != nil {
			return "", err
		}
		return c.Match(raw).CategoryID, nil
	})
	if err != nil {
		return models.Category{}, fmt.Errorf("categorize: %w", err)
	}
	return c.byID(id), nil
}

// Match resolves a free-form answer: exact name, then case-insensitive,
// then substring, then the default category.
func (c *Categorizer) Match(answer string) models.Category {
	answer = strings.TrimSpace(answer)
	for _, cat := range c.categories {
		if answer == cat.Name {
			return cat
		}
	}
	for _, cat := range c.categories {
		if strings.EqualFold(answer, cat.Name) {
			return cat
		}
	}
	lower := strings.ToLower(answer)
	if lower != "" {
		for _, cat := range c.categories {
			name := strings.ToLower(cat.Name)
			if strings.Contains(lower, name) {
				return cat
			}
		}
	}
	return c.fallback
}

func (c *Categorizer) byID(id string) models.Category {
	for _, cat := range c.categories {
		if cat.CategoryID == id {
			return cat
		}
	}
	return c.fallback
}
