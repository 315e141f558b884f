package cache

import (
	"context"

	"lexiflow/internal/lang"

	"github.com/rs/zerolog"
)

// Handoff entries written by the quick phase and consumed by the full phase.
func QuickFlashcardsKey(documentID string) string  { return "quick-flashcards:" + documentID }
func QuickTranslationKey(documentID string) string { return "quick-translation:" + documentID }

// Memoization entries. Content-addressed keys take a SHA-256 hex digest.
func OCRKey(contentHash string) string     { return "ocr:" + contentHash }
func CategorizeKey(textHash string) string { return "categorize:" + textHash }
func PlatformTermsKey() string             { return "terms:platform" }
func TranslationKey(l lang.Language, textHash string) string {
	return "translation:" + l.Code() + ":" + textHash
}

// Derived list/detail caches are grouped under per-owner prefixes so a
// single prefix delete invalidates everything built from an owner's data.
func UserPrefix(userID string) string         { return "u:" + userID + ":" }
func DocumentPrefix(documentID string) string { return "d:" + documentID + ":" }
func CategoryPrefix(categoryID string) string { return "c:" + categoryID + ":" }

func UserTermsKey(userID, excludeDocumentID string) string {
	return UserPrefix(userID) + "terms:excl:" + excludeDocumentID
}

// InvalidateDerived drops every derived cache for the user, document and
// category. Failures are logged and otherwise ignored.
func InvalidateDerived(ctx context.Context, c Client, userID, documentID, categoryID string) {
	if c == nil {
		return
	}
	prefixes := []string{UserPrefix(userID), DocumentPrefix(documentID)}
	if categoryID != "" {
		prefixes = append(prefixes, CategoryPrefix(categoryID))
	}
	for _, p := range prefixes {
		if err := c.DeleteByPrefix(ctx, p); err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("cache_prefix", p).Msg("cache invalidation failed")
		}
	}
}
