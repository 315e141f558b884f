package generation

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"lexiflow/internal/llm"
	"lexiflow/internal/providers"
)

// fakeLLM answers each operation from a queue of canned replies; the last
// reply repeats once the queue is drained.
type fakeLLM struct {
	mu      sync.Mutex
	replies map[string][]string
	errs    map[string]error
	calls   map[string]int
	prompts map[string][]string
	funcs   map[string]func(prompt string) (string, error)
}

func newFakeLLM() *fakeLLM {
	return &fakeLLM{
		replies: map[string][]string{},
		errs:    map[string]error{},
		calls:   map[string]int{},
		prompts: map[string][]string{},
		funcs:   map[string]func(string) (string, error){},
	}
}

func (f *fakeLLM) on(op string, replies ...string) *fakeLLM {
	f.replies[op] = append(f.replies[op], replies...)
	return f
}

func (f *fakeLLM) handle(op string, fn func(prompt string) (string, error)) *fakeLLM {
	f.funcs[op] = fn
	return f
}

func (f *fakeLLM) reply(op, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls[op]
	f.calls[op]++
	f.prompts[op] = append(f.prompts[op], prompt)
	if err := f.errs[op]; err != nil {
		return "", err
	}
	if fn := f.funcs[op]; fn != nil {
		return fn(prompt)
	}
	rs := f.replies[op]
	if len(rs) == 0 {
		return "", errors.New("no reply scripted for " + op)
	}
	if i >= len(rs) {
		i = len(rs) - 1
	}
	return rs[i], nil
}

func (f *fakeLLM) GenerateText(ctx context.Context, op, prompt string) (string, error) {
	return f.reply(op, prompt)
}

func (f *fakeLLM) GenerateJSON(ctx context.Context, op, prompt string, out any) error {
	raw, err := f.reply(op, prompt)
	if err != nil {
		return err
	}
	if err := llm.DecodeJSON(raw, out); err != nil {
		return errors.Join(errors.New(op), err)
	}
	return nil
}

func (f *fakeLLM) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// echoTranslation makes translate replies echo their input with a language tag.
func echoTranslation(prompt, tag string) string {
	i := strings.LastIndex(prompt, providers.InputMarker)
	payload := prompt[i+len(providers.InputMarker):]
	var p batchPayload
	_ = json.Unmarshal([]byte(payload), &p)
	for k := range p.Items {
		p.Items[k].Term = tag + p.Items[k].Term
		p.Items[k].Definition = tag + p.Items[k].Definition
		p.Items[k].Question = tag + p.Items[k].Question
	}
	out, _ := json.Marshal(p)
	return string(out)
}

func termsJSON(terms []Candidate, questions []CandidateQuestion) string {
	raw, _ := json.Marshal(extractResponse{Terms: terms, Questions: questions})
	return string(raw)
}
