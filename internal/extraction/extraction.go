// Package extraction turns uploaded document bytes into plain text.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lexiflow/internal/config"
	"lexiflow/internal/util"

	"github.com/rs/zerolog"
)

const (
	MimePDF  = "application/pdf"
	MimePNG  = "image/png"
	MimeJPEG = "image/jpeg"
	MimeWebP = "image/webp"
)

var supported = map[string]struct{}{
	MimePDF:  {},
	MimePNG:  {},
	MimeJPEG: {},
	MimeWebP: {},
}

type Extractor interface {
	Extract(ctx context.Context, data []byte, mime string) (string, error)
}

// ValidateUpload sniffs the content type and rejects empty, oversized or
// unsupported files. The sniffed type wins over the declared one.
func ValidateUpload(data []byte, declared string, maxBytes int64) (string, error) {
	if len(data) == 0 {
		return "", util.ErrEmptyFile
	}
	if maxBytes > 0 && int64(len(data)) > maxBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", util.ErrFileTooLarge, len(data), maxBytes)
	}
	sniffed := normalizeMime(http.DetectContentType(data))
	if _, ok := supported[sniffed]; ok {
		return sniffed, nil
	}
	if d := normalizeMime(declared); d != "" && sniffed == "application/octet-stream" {
		if _, ok := supported[d]; ok {
			return d, nil
		}
	}
	return "", fmt.Errorf("%w: %s", util.ErrUnsupportedMime, sniffed)
}

func normalizeMime(m string) string {
	m = strings.ToLower(strings.TrimSpace(m))
	if i := strings.IndexByte(m, ';'); i >= 0 {
		m = strings.TrimSpace(m[:i])
	}
	if m == "image/jpg" {
		return MimeJPEG
	}
	return m
}

// Chain tries each extractor in order; the first non-empty text wins.
type Chain struct {
	extractors []Extractor
	log        zerolog.Logger
}

func NewChain(log zerolog.Logger, extractors ...Extractor) *Chain {
	return &Chain{extractors: extractors, log: log.With().Str("component", "extraction").Logger()}
}

func (c *Chain) Extract(ctx context.Context, data []byte, mime string) (string, error) {
	var errs []error
	for _, e := range c.extractors {
		text, err := e.Extract(ctx, data, mime)
		if err == nil {
			text = util.SanitizeText(text)
			if text != "" {
				return text, nil
			}
			continue
		}
		if errors.Is(err, errSkip) {
			continue
		}
		c.log.Warn().Err(err).Str("extractor", fmt.Sprintf("%T", e)).Str("mime", mime).Msg("extractor failed")
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return "", fmt.Errorf("%w: %w", util.ErrNoExtractableText, errors.Join(errs...))
	}
	return "", util.ErrNoExtractableText
}

// errSkip marks an extractor that does not handle the given mime type.
var errSkip = errors.New("mime not handled")

// New builds the extractor chain for the configured OCR backend.
func New(cfg config.Config, log zerolog.Logger) *Chain {
	extractors := []Extractor{PDFText{}}
	if strings.EqualFold(cfg.OCRBackend, "gemini") {
		extractors = append(extractors, NewGeminiOCR(cfg.GeminiAPIKey, cfg.GeminiOCRModel))
	}
	return NewChain(log, extractors...)
}
