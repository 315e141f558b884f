package providers

import (
	"context"
	"encoding/json"
	"strings"
	"unicode"
)

// MockProvider returns deterministic output so the pipeline runs without keys.
// Term extraction picks long words from the input; translation echoes its input.
type MockProvider struct {
	maxTerms int
}

func NewMockProvider() *MockProvider {
	return &MockProvider{maxTerms: 15}
}

func (m *MockProvider) Generate(ctx context.Context, req GenerateRequest) (GenerateResponse, ProviderInfo, error) {
	_ = ctx
	info := ProviderInfo{Name: "mock", Model: "mock-llm-v1", Key: "mock"}
	input := req.Prompt
	if i := strings.LastIndex(input, InputMarker); i >= 0 {
		input = input[i+len(InputMarker):]
	}
	op := strings.ToLower(req.Operation)
	switch {
	case strings.Contains(op, "extract"):
		return GenerateResponse{Text: m.terms(input)}, info, nil
	case strings.Contains(op, "translate"):
		return GenerateResponse{Text: strings.TrimSpace(input)}, info, nil
	case strings.Contains(op, "categor"):
		return GenerateResponse{Text: `{"category":"General"}`}, info, nil
	default:
		return GenerateResponse{Text: "Mock response."}, info, nil
	}
}

type mockTerm struct {
	Term       string `json:"term"`
	Definition string `json:"definition"`
}

type mockQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

func (m *MockProvider) terms(text string) string {
	seen := map[string]struct{}{}
	var terms []mockTerm
	var questions []mockQuestion
	words := strings.FieldsFunc(text, func(r rune) bool { return !unicode.IsLetter(r) })
	for _, w := range words {
		if len([]rune(w)) < 6 {
			continue
		}
		key := strings.ToLower(w)
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		term := strings.ToUpper(key[:1]) + key[1:]
		terms = append(terms, mockTerm{Term: term, Definition: "A key concept named " + term + " in the source document."})
		questions = append(questions, mockQuestion{Question: "Which term is described as a key concept named " + term + "?", Answer: term})
		if len(terms) >= m.maxTerms {
			break
		}
	}
	out, _ := json.Marshal(map[string]any{"terms": terms, "questions": questions})
	return string(out)
}
