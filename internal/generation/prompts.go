package generation

import (
	"encoding/json"
	"fmt"
	"strings"

	"lexiflow/internal/lang"
	"lexiflow/internal/providers"
)

// maxPromptExclusions caps how many known terms are listed in a prompt.
// Cleaning still filters against the full set.
const maxPromptExclusions = 300

func extractPrompt(text string, exclude []string, count int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "From the document below, pick %d important terms a learner should study.\n", count)
	b.WriteString("For each term give a one-sentence definition based on the document.\n")
	b.WriteString("Also write one multiple-choice style question per term whose correct answer is exactly that term.\n")
	b.WriteString(`Respond with JSON only: {"terms":[{"term":"...","definition":"..."}],"questions":[{"question":"...","answer":"..."}]}`)
	b.WriteString("\n")
	if len(exclude) > 0 {
		if len(exclude) > maxPromptExclusions {
			exclude = exclude[:maxPromptExclusions]
		}
		b.WriteString("Do not use any of these terms, the learner already knows them: ")
		b.WriteString(strings.Join(exclude, ", "))
		b.WriteString("\n")
	}
	b.WriteString(providers.InputMarker)
	b.WriteString(text)
	return b.String()
}

type batchItem struct {
	Position   int    `json:"position"`
	Term       string `json:"term"`
	Definition string `json:"definition"`
	Question   string `json:"question"`
}

type batchPayload struct {
	Items []batchItem `json:"items"`
}

func translateBatchPrompt(target lang.Language, payload batchPayload) string {
	raw, _ := json.Marshal(payload)
	var b strings.Builder
	fmt.Fprintf(&b, "Translate every term, definition and question below from %s into %s.\n", lang.Canonical.Name(), target.Name())
	b.WriteString("Keep every item's position unchanged and use the same JSON shape. Respond with JSON only.\n")
	b.WriteString(providers.InputMarker)
	b.Write(raw)
	return b.String()
}

type textPayload struct {
	Text string `json:"text"`
}

func translateTextPrompt(target lang.Language, text string) string {
	raw, _ := json.Marshal(textPayload{Text: text})
	var b strings.Builder
	fmt.Fprintf(&b, "Translate the text below from %s into %s. Respond with JSON only, in the same shape.\n", lang.Canonical.Name(), target.Name())
	b.WriteString(providers.InputMarker)
	b.Write(raw)
	return b.String()
}

func categorizePrompt(text string, names []string) string {
	var b strings.Builder
	b.WriteString("Classify the document below into exactly one of these categories: ")
	b.WriteString(strings.Join(names, ", "))
	b.WriteString(".\nRespond with the category name only.\n")
	b.WriteString(providers.InputMarker)
	b.WriteString(text)
	return b.String()
}
