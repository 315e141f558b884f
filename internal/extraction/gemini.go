package extraction

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"lexiflow/internal/providers"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

const ocrInstruction = "Extract all readable text from this document. Return only the text, preserving paragraph breaks. Do not summarize or translate."

// GeminiOCR sends the raw bytes to Gemini as an inline blob.
type GeminiOCR struct {
	apiKey string
	model  string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGeminiOCR(apiKey, model string) *GeminiOCR {
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &GeminiOCR{apiKey: apiKey, model: model}
}

func (g *GeminiOCR) Extract(ctx context.Context, data []byte, mime string) (string, error) {
	if _, ok := supported[mime]; !ok {
		return "", errSkip
	}
	if g.apiKey == "" {
		return "", fmt.Errorf("gemini ocr: api key missing")
	}
	g.once.Do(func() {
		g.client, g.clientErr = genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	})
	if g.clientErr != nil {
		return "", fmt.Errorf("gemini ocr client: %w", g.clientErr)
	}
	model := g.client.GenerativeModel(g.model)
	resp, err := model.GenerateContent(ctx, genai.Blob{MIMEType: mime, Data: data}, genai.Text(ocrInstruction))
	if err != nil {
		return "", fmt.Errorf("gemini ocr request failed: %w", err)
	}
	return strings.TrimSpace(providers.GeminiText(resp)), nil
}

func (g *GeminiOCR) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}
