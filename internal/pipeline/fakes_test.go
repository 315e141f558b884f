package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"lexiflow/internal/generation"
	"lexiflow/internal/lang"
	"lexiflow/internal/llm"
	"lexiflow/internal/models"
	"lexiflow/internal/notify"
	"lexiflow/internal/providers"
	"lexiflow/internal/storage"
	"lexiflow/internal/util"
)

// memStore keeps documents and generated content in memory. Persist is
// all-or-nothing like the real transaction.
type memStore struct {
	mu           sync.Mutex
	docs         map[string]*models.Document
	translations map[string]lang.Text
	terms        map[string][]storage.TermRow
	owners       map[string]string
	categories   map[string]string
	quizzes      map[string]string
	questions    map[string][]storage.QuestionRow
	platform     []string
	ownedTerms   map[string][]string
	preferred    map[string]lang.Language
	failPersist  error
	persistCalls int
}

func newMemStore() *memStore {
	return &memStore{
		docs:         map[string]*models.Document{},
		translations: map[string]lang.Text{},
		terms:        map[string][]storage.TermRow{},
		owners:       map[string]string{},
		categories:   map[string]string{},
		quizzes:      map[string]string{},
		questions:    map[string][]storage.QuestionRow{},
		ownedTerms:   map[string][]string{},
		preferred:    map[string]lang.Language{},
	}
}

func (s *memStore) addDocument(id, userID, mime string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[id] = &models.Document{DocumentID: id, UserID: userID, Filename: id + ".pdf", StorageKey: "blob/" + id, MimeType: mime}
}

func (s *memStore) Get(_ context.Context, id string) (models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return models.Document{}, fmt.Errorf("%w: %s", util.ErrDocumentNotFound, id)
	}
	return *d, nil
}

func (s *memStore) SetExtractedText(_ context.Context, id, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return util.ErrDocumentNotFound
	}
	d.ExtractedText = &text
	return nil
}

func (s *memStore) MarkProcessed(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return util.ErrDocumentNotFound
	}
	d.OCRProcessed = true
	return nil
}

func (s *memStore) CountFlashcards(_ context.Context, id string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.terms[id]), nil
}

func (s *memStore) Progress(_ context.Context, id string) (models.DocumentProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.docs[id]
	if !ok {
		return models.DocumentProgress{}, util.ErrDocumentNotFound
	}
	_, hasTr := s.translations[id]
	_, hasQuiz := s.quizzes[id]
	return models.DocumentProgress{
		DocumentID:     id,
		UserID:         d.UserID,
		OCRProcessed:   d.OCRProcessed,
		HasTranslation: hasTr,
		FlashcardCount: len(s.terms[id]),
		QuestionCount:  len(s.questions[id]),
		HasQuiz:        hasQuiz,
	}, nil
}

func (s *memStore) PlatformTerms(context.Context) ([]string, error) {
	return s.platform, nil
}

func (s *memStore) UserTerms(_ context.Context, userID, excludeDocumentID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := append([]string(nil), s.ownedTerms[userID]...)
	for docID, rows := range s.terms {
		if docID == excludeDocumentID || s.owners[docID] != userID {
			continue
		}
		for _, r := range rows {
			out = append(out, strings.ToLower(r.Term.Get(lang.Canonical)))
		}
	}
	return out, nil
}

func (s *memStore) PreferredLanguage(_ context.Context, userID string) (lang.Language, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l, ok := s.preferred[userID]; ok {
		return l, nil
	}
	return lang.Canonical, nil
}

func (s *memStore) Persist(_ context.Context, b storage.Batch) (storage.PersistResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.persistCalls++
	d, ok := s.docs[b.DocumentID]
	if !ok {
		return storage.PersistResult{}, util.ErrDocumentNotFound
	}
	if len(s.terms[b.DocumentID]) > 0 {
		return storage.PersistResult{}, util.ErrAlreadyGenerated
	}
	res := storage.PersistResult{QuizID: "quiz-" + b.DocumentID, FlashcardIDs: map[int]string{}}
	for _, t := range b.Terms {
		res.FlashcardIDs[t.Position] = fmt.Sprintf("fc-%s-%d", b.DocumentID, t.Position)
	}
	for _, q := range b.Questions {
		if _, ok := res.FlashcardIDs[q.TermPosition]; !ok {
			return storage.PersistResult{}, fmt.Errorf("unknown term position %d", q.TermPosition)
		}
		res.QuestionIDs = append(res.QuestionIDs, fmt.Sprintf("q-%s-%d", b.DocumentID, q.Position))
	}
	if s.failPersist != nil {
		return storage.PersistResult{}, s.failPersist
	}
	text := b.ExtractedText
	d.ExtractedText = &text
	d.CategoryID = &b.CategoryID
	d.OCRProcessed = true
	s.translations[b.DocumentID] = b.Translation
	s.quizzes[b.DocumentID] = res.QuizID
	s.terms[b.DocumentID] = b.Terms
	s.questions[b.DocumentID] = b.Questions
	s.owners[b.DocumentID] = b.UserID
	s.categories[b.DocumentID] = b.CategoryID
	return res, nil
}

type memBlobs map[string][]byte

func (m memBlobs) Get(_ context.Context, key string) ([]byte, error) {
	b, ok := m[key]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return b, nil
}

type fakeOCR struct {
	mu    sync.Mutex
	text  string
	err   error
	calls int
}

func (f *fakeOCR) Extract(context.Context, []byte, string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.text, f.err
}

type recordingSink struct {
	mu     sync.Mutex
	events []notify.Event
}

func (r *recordingSink) Notify(_ context.Context, ev notify.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

// scriptLLM plays the generative service. Extraction replies come from
// extractReplies in order (the last repeats); translation echoes the payload
// with a language tag unless the language is listed in blank.
type scriptLLM struct {
	mu             sync.Mutex
	extractReplies []string
	category       string
	blank          map[lang.Language]bool
	calls          map[string]int
}

func newScriptLLM(extractReplies ...string) *scriptLLM {
	return &scriptLLM{
		extractReplies: extractReplies,
		category:       "SAFETY PROCEDURES",
		blank:          map[lang.Language]bool{},
		calls:          map[string]int{},
	}
}

func (f *scriptLLM) count(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *scriptLLM) GenerateText(_ context.Context, op, prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls[op]
	f.calls[op]++
	switch op {
	case generation.OpExtractTerms:
		if i >= len(f.extractReplies) {
			i = len(f.extractReplies) - 1
		}
		return f.extractReplies[i], nil
	case generation.OpCategorize:
		return f.category, nil
	case generation.OpTranslateBatch, generation.OpTranslateText:
		return f.translate(op, prompt), nil
	}
	return "", errors.New("unexpected op " + op)
}

func (f *scriptLLM) GenerateJSON(ctx context.Context, op, prompt string, out any) error {
	raw, err := f.GenerateText(ctx, op, prompt)
	if err != nil {
		return err
	}
	return llm.DecodeJSON(raw, out)
}

func (f *scriptLLM) translate(op, prompt string) string {
	target := lang.Canonical
	for _, l := range lang.Targets() {
		if strings.Contains(prompt, "into "+l.Name()+".") {
			target = l
		}
	}
	payload := prompt[strings.LastIndex(prompt, providers.InputMarker)+len(providers.InputMarker):]
	tag := "[" + target.Code() + "] "
	if op == generation.OpTranslateText {
		var p struct {
			Text string `json:"text"`
		}
		_ = json.Unmarshal([]byte(payload), &p)
		if f.blank[target] {
			p.Text = ""
		} else {
			p.Text = tag + p.Text
		}
		out, _ := json.Marshal(p)
		return string(out)
	}
	var p struct {
		Items []map[string]any `json:"items"`
	}
	_ = json.Unmarshal([]byte(payload), &p)
	if f.blank[target] {
		return `{"items":[]}`
	}
	for _, item := range p.Items {
		for k, v := range item {
			if str, ok := v.(string); ok {
				item[k] = tag + str
			}
		}
	}
	out, _ := json.Marshal(p)
	return string(out)
}

type termSpec struct{ term, def string }

// extractReply builds an extraction answer with one matching question per term.
func extractReply(terms ...termSpec) string {
	type cand struct {
		Term       string `json:"term"`
		Definition string `json:"definition"`
	}
	type question struct {
		Question string `json:"question"`
		Answer   string `json:"answer"`
	}
	var resp struct {
		Terms     []cand     `json:"terms"`
		Questions []question `json:"questions"`
	}
	for _, t := range terms {
		resp.Terms = append(resp.Terms, cand{Term: t.term, Definition: t.def})
		resp.Questions = append(resp.Questions, question{Question: "Which word means " + t.def + "?", Answer: t.term})
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func numberedTerms(prefix string, n int) []termSpec {
	out := make([]termSpec, n)
	for i := range out {
		out[i] = termSpec{term: fmt.Sprintf("%s%d", prefix, i+1), def: fmt.Sprintf("meaning of %s %d", prefix, i+1)}
	}
	return out
}
