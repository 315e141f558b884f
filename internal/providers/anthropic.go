package providers

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

type AnthropicProvider struct {
	keyName   string
	apiKey    string
	model     string
	maxTokens int64
	client    anthropic.Client
}

func NewAnthropicProvider(keyName string) *AnthropicProvider {
	apiKey := resolveKey("anthropic", keyName, "ANTHROPIC_API_KEY")
	opts := []option.RequestOption{
		option.WithAPIKey(apiKey),
		option.WithMaxRetries(0),
	}
	if base := lookupEnv("LEXIFLOW_ANTHROPIC_BASE_URL"); base != "" {
		opts = append(opts, option.WithBaseURL(strings.TrimRight(base, "/")))
	}
	return &AnthropicProvider{
		keyName:   keyName,
		apiKey:    apiKey,
		model:     envOr("LEXIFLOW_ANTHROPIC_MODEL", "claude-haiku-4-5-20251001"),
		maxTokens: 4096,
		client:    anthropic.NewClient(opts...),
	}
}

func (a *AnthropicProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	info := ProviderInfo{Name: "anthropic", Model: a.model, Key: a.keyName}
	if a.apiKey == "" {
		return GenerateResponse{}, info, fmt.Errorf("anthropic key missing for alias %q", a.keyName)
	}
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: a.maxTokens,
		Messages:  []anthropic.MessageParam{anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt))},
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}
	msg, err := a.client.Messages.New(ctx, params)
	if err != nil {
		return GenerateResponse{}, info, fmt.Errorf("anthropic generate request failed: %w", err)
	}
	var out strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	if strings.TrimSpace(out.String()) == "" {
		return GenerateResponse{}, info, fmt.Errorf("anthropic returned no text")
	}
	return GenerateResponse{Text: out.String()}, info, nil
}
