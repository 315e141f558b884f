package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"lexiflow/internal/cache"
	"lexiflow/internal/lang"
	"lexiflow/internal/llm"
	"lexiflow/internal/util"

	"golang.org/x/sync/errgroup"
)

// Item is one translated term with its definition and question.
type Item struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Question   string `json:"question"`
}

// Translations holds per-language items in batch position order. Entries
// may be blank; Localize fills them from the canonical value.
type Translations map[lang.Language][]Item

// LocalizedItem is a batch position with every language populated.
type LocalizedItem struct {
	Position   int       `json:"position"`
	Term       lang.Text `json:"term"`
	Definition lang.Text `json:"definition"`
	Question   lang.Text `json:"question"`
}

type Translator struct {
	llm        LLM
	cache      cache.Client
	ttl        time.Duration
	textBudget int
}

func NewTranslator(llm LLM, c cache.Client, ttl time.Duration, textBudget int) *Translator {
	if textBudget <= 0 {
		textBudget = 12000
	}
	return &Translator{llm: llm, cache: c, ttl: ttl, textBudget: textBudget}
}

// TranslateOne translates the batch into a single language. The canonical
// language is a no-op that yields blank items.
func (t *Translator) TranslateOne(ctx context.Context, draft Draft, target lang.Language) (Translations, error) {
	if target.IsCanonical() {
		return Translations{target: make([]Item, len(draft.Terms))}, nil
	}
	items, err := t.translateBatch(ctx, draft, target)
	if err != nil {
		return nil, err
	}
	return Translations{target: items}, nil
}

// TranslateAll translates the batch into every non-canonical language,
// one concurrent request per language.
func (t *Translator) TranslateAll(ctx context.Context, draft Draft) (Translations, error) {
	targets := lang.Targets()
	out := make(Translations, len(targets))
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range targets {
		g.Go(func() error {
			items, err := t.translateBatch(gctx, draft, l)
			if err != nil {
				return fmt.Errorf("translate to %s: %w", l.Code(), err)
			}
			mu.Lock()
			out[l] = items
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// translateBatch matches answers to terms by position. Entries with an
// unknown or repeated position are ignored and unmatched terms stay blank.
func (t *Translator) translateBatch(ctx context.Context, draft Draft, target lang.Language) ([]Item, error) {
	payload := batchPayload{Items: make([]batchItem, len(draft.Terms))}
	slot := make(map[int]int, len(draft.Terms))
	for i, term := range draft.Terms {
		payload.Items[i] = batchItem{Position: term.Position, Term: term.Term, Definition: term.Definition}
		if i < len(draft.Questions) {
			payload.Items[i].Question = draft.Questions[i].Prompt
		}
		slot[term.Position] = i
	}
	raw, _ := json.Marshal(payload)
	key := cache.TranslationKey(target, util.SHA256Hex(raw))
	items, err := cache.GetOrCompute(ctx, t.cache, key, t.ttl, func(ctx context.Context) ([]Item, error) {
		var resp batchPayload
		if err := t.llm.GenerateJSON(ctx, OpTranslateBatch, translateBatchPrompt(target, payload), &resp); err != nil {
			return nil, err
		}
		items := make([]Item, len(draft.Terms))
		seen := make(map[int]bool, len(resp.Items))
		for _, it := range resp.Items {
			i, ok := slot[it.Position]
			if !ok || seen[it.Position] {
				continue
			}
			seen[it.Position] = true
			items[i] = Item{Term: it.Term, Definition: it.Definition, Question: it.Question}
		}
		return items, nil
	})
	if errors.Is(err, llm.ErrInvalidJSON) {
		// not memoized, so a retry asks again
		return make([]Item, len(draft.Terms)), nil
	}
	return items, err
}

// TranslateText translates document text. The canonical language returns
// text unchanged; an empty or unusable answer falls back to it too.
func (t *Translator) TranslateText(ctx context.Context, text string, target lang.Language) (string, error) {
	if target.IsCanonical() || strings.TrimSpace(text) == "" {
		return text, nil
	}
	text = util.TruncateRunes(text, t.textBudget)
	key := cache.TranslationKey(target, util.SHA256Hex([]byte(text)))
	out, err := cache.GetOrCompute(ctx, t.cache, key, t.ttl, func(ctx context.Context) (string, error) {
		var resp textPayload
		err := t.llm.GenerateJSON(ctx, OpTranslateText, translateTextPrompt(target, text), &resp)
		return strings.TrimSpace(resp.Text), err
	})
	if errors.Is(err, llm.ErrInvalidJSON) {
		return text, nil
	}
	if err != nil {
		return "", fmt.Errorf("translate text to %s: %w", target.Code(), err)
	}
	if out == "" {
		return text, nil
	}
	return out, nil
}

// TranslateDocument returns the document text in every supported language.
func (t *Translator) TranslateDocument(ctx context.Context, text string) (lang.Text, error) {
	out := lang.NewText(text)
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, l := range lang.Targets() {
		g.Go(func() error {
			v, err := t.TranslateText(gctx, text, l)
			if err != nil {
				return err
			}
			mu.Lock()
			out.Set(l, v)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return lang.Text{}, err
	}
	out.FillMissing()
	return out, nil
}

// Localize merges the draft with its translations. Every language field of
// the result is non-empty.
func Localize(draft Draft, tr Translations) []LocalizedItem {
	out := make([]LocalizedItem, len(draft.Terms))
	for i, term := range draft.Terms {
		item := LocalizedItem{
			Position:   term.Position,
			Term:       lang.NewText(term.Term),
			Definition: lang.NewText(term.Definition),
		}
		if i < len(draft.Questions) {
			item.Question = lang.NewText(draft.Questions[i].Prompt)
		}
		for l, items := range tr {
			if l.IsCanonical() || i >= len(items) {
				continue
			}
			item.Term.Set(l, strings.TrimSpace(items[i].Term))
			item.Definition.Set(l, strings.TrimSpace(items[i].Definition))
			item.Question.Set(l, strings.TrimSpace(items[i].Question))
		}
		item.Term.FillMissing()
		item.Definition.FillMissing()
		item.Question.FillMissing()
		out[i] = item
	}
	return out
}
