package generation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"lexiflow/internal/util"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func candidates(prefix string, n int) ([]Candidate, []CandidateQuestion) {
	terms := make([]Candidate, n)
	questions := make([]CandidateQuestion, n)
	for i := range terms {
		term := fmt.Sprintf("%s %d", prefix, i+1)
		terms[i] = Candidate{Term: term, Definition: "Meaning of " + term}
		questions[i] = CandidateQuestion{Question: "What is meant by " + term + "?", Answer: term}
	}
	return terms, questions
}

func testPolicy() Policy {
	return Policy{BatchSize: 10, CandidateCount: 15, MinUsableTerms: 1, BackfillRounds: 2, TextBudget: 12000}
}

func TestExtractReturnsExactBatchWithoutExcludedTerms(t *testing.T) {
	terms, questions := candidates("Term", 12)
	terms = append([]Candidate{
		{Term: "  Fire   Exit ", Definition: "A door used in emergencies."},
		{Term: "HAZARD", Definition: "A source of danger."},
		{Term: "", Definition: "blank"},
		{Term: "fire exit", Definition: "duplicate"},
	}, terms...)
	f := newFakeLLM().on(OpExtractTerms, termsJSON(terms, questions))
	e := NewExtractor(f, testPolicy(), zerolog.Nop())

	draft, err := e.Extract(context.Background(), "Some safety manual text.", []string{"hazard", "Term 3"})
	require.NoError(t, err)
	require.Len(t, draft.Terms, 10)
	require.Len(t, draft.Questions, 10)
	require.Equal(t, "Fire Exit", draft.Terms[0].Term)

	excluded := NewTermSet([]string{"hazard", "term 3"})
	seen := NewTermSet(nil)
	for i, term := range draft.Terms {
		require.Equal(t, i+1, term.Position)
		require.False(t, excluded.Has(term.Term), term.Term)
		require.False(t, seen.Has(term.Term), "duplicate %s", term.Term)
		seen.Add(term.Term)
		require.Equal(t, term.Position, draft.Questions[i].TermPosition)
	}
	require.Equal(t, 1, f.count(OpExtractTerms))
	require.Contains(t, f.prompts[OpExtractTerms][0], "hazard, term 3")
}

func TestExtractPairsQuestionsByAnswerAndSynthesizesTheRest(t *testing.T) {
	terms, _ := candidates("Term", 10)
	questions := []CandidateQuestion{
		{Question: "Which one is dropped?", Answer: "Not A Term"},
		{Question: "Pick term two", Answer: "term 2"},
		{Question: "   ", Answer: "Term 3"},
		{Question: "Pick term one", Answer: "Term 1"},
	}
	f := newFakeLLM().on(OpExtractTerms, termsJSON(terms, questions))
	e := NewExtractor(f, testPolicy(), zerolog.Nop())

	draft, err := e.Extract(context.Background(), "text", nil)
	require.NoError(t, err)
	require.Equal(t, "Pick term one", draft.Questions[0].Prompt)
	require.Equal(t, "Pick term two", draft.Questions[1].Prompt)
	require.True(t, draft.Questions[2].Synthesized)
	require.Equal(t, "Which term matches this definition: Meaning of Term 3?", draft.Questions[2].Prompt)
	for _, q := range draft.Questions {
		require.NotContains(t, q.Prompt, "dropped")
	}
}

func TestExtractFailsWhenNothingUsable(t *testing.T) {
	f := newFakeLLM().on(OpExtractTerms, termsJSON([]Candidate{{Term: "Hazard", Definition: "Danger."}}, nil))
	e := NewExtractor(f, testPolicy(), zerolog.Nop())

	_, err := e.Extract(context.Background(), "text", []string{"hazard"})
	require.ErrorIs(t, err, util.ErrNoUsableTerms)
	require.Equal(t, 1, f.count(OpExtractTerms), "no backfill after a fatal clean")
}

func TestExtractRespectsMinUsableTerms(t *testing.T) {
	terms, _ := candidates("Term", 2)
	f := newFakeLLM().on(OpExtractTerms, termsJSON(terms, nil))
	p := testPolicy()
	p.MinUsableTerms = 3
	e := NewExtractor(f, p, zerolog.Nop())

	_, err := e.Extract(context.Background(), "text", nil)
	require.ErrorIs(t, err, util.ErrNoUsableTerms)
}

func TestExtractBackfillsShortBatch(t *testing.T) {
	first := []Candidate{
		{Term: "Fire exit", Definition: "A door used in emergencies."},
		{Term: "Hazard", Definition: "A source of danger."},
		{Term: "Extinguisher", Definition: "Puts out fires."},
	}
	more, moreQ := candidates("Invented", 9)
	more = append([]Candidate{{Term: "FIRE EXIT", Definition: "again"}}, more...)
	f := newFakeLLM().on(OpExtractTerms, termsJSON(first, nil), termsJSON(more, moreQ))
	e := NewExtractor(f, testPolicy(), zerolog.Nop())

	draft, err := e.Extract(context.Background(), "Fire exit, hazard and extinguisher.", []string{"Hazard"})
	require.NoError(t, err)
	require.Len(t, draft.Terms, 10)
	require.Equal(t, "Fire exit", draft.Terms[0].Term)
	require.Equal(t, "Extinguisher", draft.Terms[1].Term)
	require.Equal(t, "Invented 1", draft.Terms[2].Term)
	require.Equal(t, "Invented 8", draft.Terms[9].Term)
	require.Equal(t, 2, f.count(OpExtractTerms))

	backfillPrompt := f.prompts[OpExtractTerms][1]
	require.Contains(t, backfillPrompt, "extinguisher")
	require.Contains(t, backfillPrompt, "hazard")
	for _, term := range draft.Terms {
		require.NotEqual(t, "hazard", strings.ToLower(term.Term))
	}
}

func TestExtractShortAfterBackfillFails(t *testing.T) {
	terms, _ := candidates("Term", 4)
	f := newFakeLLM().on(OpExtractTerms, termsJSON(terms, nil))
	e := NewExtractor(f, testPolicy(), zerolog.Nop())

	_, err := e.Extract(context.Background(), "text", nil)
	require.ErrorIs(t, err, util.ErrShortBatch)
	require.Equal(t, 3, f.count(OpExtractTerms))
}

func TestExtractTruncatesText(t *testing.T) {
	terms, _ := candidates("Term", 10)
	f := newFakeLLM().on(OpExtractTerms, termsJSON(terms, nil))
	p := testPolicy()
	p.TextBudget = 20
	e := NewExtractor(f, p, zerolog.Nop())

	_, err := e.Extract(context.Background(), strings.Repeat("x", 100)+"TAIL", nil)
	require.NoError(t, err)
	require.NotContains(t, f.prompts[OpExtractTerms][0], "TAIL")
}

func TestExtractRejectsBlankText(t *testing.T) {
	e := NewExtractor(newFakeLLM(), testPolicy(), zerolog.Nop())
	_, err := e.Extract(context.Background(), "   ", nil)
	require.ErrorIs(t, err, util.ErrNoExtractableText)
}
