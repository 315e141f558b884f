package providers

import (
	"context"
	"encoding/json"
	"testing"
)

func TestMockExtractIsDeterministic(t *testing.T) {
	m := NewMockProvider()
	req := GenerateRequest{Operation: "extract_terms", Prompt: "Extract terms." + InputMarker + "Photosynthesis converts sunlight. Chlorophyll absorbs light. photosynthesis again."}
	a, info, err := m.Generate(context.Background(), req)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	b, _, _ := m.Generate(context.Background(), req)
	if a.Text != b.Text {
		t.Fatalf("mock output is not deterministic")
	}
	if info.Name != "mock" {
		t.Fatalf("unexpected provider info %+v", info)
	}
	var parsed struct {
		Terms []mockTerm `json:"terms"`
	}
	if err := json.Unmarshal([]byte(a.Text), &parsed); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(parsed.Terms) != 5 || parsed.Terms[0].Term != "Photosynthesis" {
		t.Fatalf("unexpected terms: %+v", parsed.Terms)
	}
}

func TestMockTranslateEchoesInput(t *testing.T) {
	m := NewMockProvider()
	resp, _, err := m.Generate(context.Background(), GenerateRequest{Operation: "translate_text", Prompt: "Translate." + InputMarker + `{"text":"hello"}`})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if resp.Text != `{"text":"hello"}` {
		t.Fatalf("unexpected echo %q", resp.Text)
	}
}
