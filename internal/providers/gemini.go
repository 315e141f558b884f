package providers

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiProvider lazily opens one genai client and reuses it.
type GeminiProvider struct {
	keyName string
	apiKey  string
	model   string

	once      sync.Once
	client    *genai.Client
	clientErr error
}

func NewGeminiProvider(keyName, defaultKey string) *GeminiProvider {
	apiKey := resolveKey("gemini", keyName, "GEMINI_API_KEY")
	if apiKey == "" {
		apiKey = defaultKey
	}
	return &GeminiProvider{
		keyName: keyName,
		apiKey:  apiKey,
		model:   envOr("LEXIFLOW_GEMINI_MODEL", "gemini-2.0-flash"),
	}
}

func (g *GeminiProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "gemini", Model: g.model, Key: g.keyName}
	if g.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini key missing for alias %q", g.keyName)
	}
	g.once.Do(func() {
		g.client, g.clientErr = genai.NewClient(ctx, option.WithAPIKey(g.apiKey))
	})
	if g.clientErr != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini client: %w", g.clientErr)
	}
	model := g.client.GenerativeModel(g.model)
	if req.System != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(req.System))
	}
	if req.JSON {
		model.ResponseMIMEType = "application/json"
	}
	resp, err := model.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("gemini generate request failed: %w", err)
	}
	text := GeminiText(resp)
	if strings.TrimSpace(text) == "" {
		return GenerateResponse{}, info, fmt.Errorf("gemini returned no text")
	}
	return GenerateResponse{Text: text}, info, nil
}

func (g *GeminiProvider) Close() error {
	if g.client == nil {
		return nil
	}
	return g.client.Close()
}

// GeminiText concatenates the text parts of the first candidate.
func GeminiText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var out strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if t, ok := part.(genai.Text); ok {
			out.WriteString(string(t))
		}
	}
	return out.String()
}
