package generation

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"lexiflow/internal/util"

	"github.com/rs/zerolog"
)

// Extractor asks the model for more candidates than needed, cleans them
// against the learner's vocabulary and returns exactly Policy.BatchSize terms
// with one question each.
type Extractor struct {
	llm    LLM
	policy Policy
	log    zerolog.Logger
}

func NewExtractor(llm LLM, policy Policy, log zerolog.Logger) *Extractor {
	return &Extractor{llm: llm, policy: policy.normalized(), log: log.With().Str("component", "extractor").Logger()}
}

func (e *Extractor) Policy() Policy { return e.policy }

type extractResponse struct {
	Terms     []Candidate         `json:"terms"`
	Questions []CandidateQuestion `json:"questions"`
}

// Extract builds a Draft from canonical-language text. exclude holds terms
// the learner already owns; matching is case-insensitive.
func (e *Extractor) Extract(ctx context.Context, text string, exclude []string) (Draft, error) {
	text = util.TruncateRunes(strings.TrimSpace(text), e.policy.TextBudget)
	if text == "" {
		return Draft{}, util.ErrNoExtractableText
	}
	excluded := NewTermSet(exclude)

	var resp extractResponse
	if err := e.llm.GenerateJSON(ctx, OpExtractTerms, extractPrompt(text, excluded.Sorted(), e.policy.CandidateCount), &resp); err != nil {
		return Draft{}, fmt.Errorf("extract terms: %w", err)
	}
	draft := Draft{RawTerms: resp.Terms, RawQuestions: resp.Questions}
	chosen := cleanCandidates(resp.Terms, excluded, NewTermSet(nil), e.policy.BatchSize)
	if len(chosen) < e.policy.MinUsableTerms {
		return Draft{}, fmt.Errorf("%w: %d usable of %d proposed", util.ErrNoUsableTerms, len(chosen), len(resp.Terms))
	}

	for round := 1; len(chosen) < e.policy.BatchSize && round <= e.policy.BackfillRounds; round++ {
		need := e.policy.BatchSize - len(chosen)
		avoid := excluded.Union(termsOf(chosen))
		var more extractResponse
		if err := e.llm.GenerateJSON(ctx, OpExtractTerms, extractPrompt(text, avoid.Sorted(), need+need/2+1), &more); err != nil {
			return Draft{}, fmt.Errorf("backfill terms (round %d): %w", round, err)
		}
		draft.RawTerms = append(draft.RawTerms, more.Terms...)
		draft.RawQuestions = append(draft.RawQuestions, more.Questions...)
		added := cleanCandidates(more.Terms, excluded, termsOf(chosen), need)
		chosen = append(chosen, added...)
		e.log.Debug().Int("round", round).Int("added", len(added)).Int("have", len(chosen)).Msg("backfill")
	}
	if len(chosen) < e.policy.BatchSize {
		return Draft{}, fmt.Errorf("%w: %d of %d", util.ErrShortBatch, len(chosen), e.policy.BatchSize)
	}

	draft.Terms = make([]DraftTerm, len(chosen))
	for i, c := range chosen {
		draft.Terms[i] = DraftTerm{Position: i + 1, Term: c.Term, Definition: c.Definition}
	}
	draft.Questions = buildQuestions(draft.Terms, draft.RawQuestions)
	return draft, nil
}

// cleanCandidates trims, drops blanks, excluded terms and duplicates, and
// keeps at most limit entries in proposal order.
func cleanCandidates(in []Candidate, excluded, already TermSet, limit int) []Candidate {
	seen := already.Union(nil)
	out := make([]Candidate, 0, limit)
	for _, c := range in {
		if len(out) >= limit {
			break
		}
		term := collapseSpace(c.Term)
		def := collapseSpace(c.Definition)
		if term == "" || def == "" {
			continue
		}
		if excluded.Has(term) || seen.Has(term) {
			continue
		}
		seen.Add(term)
		out = append(out, Candidate{Term: term, Definition: def})
	}
	return out
}

// buildQuestions pairs each term with the first unused proposed question
// answering it, and synthesizes one from the definition otherwise.
func buildQuestions(terms []DraftTerm, proposed []CandidateQuestion) []DraftQuestion {
	used := make([]bool, len(proposed))
	out := make([]DraftQuestion, 0, len(terms))
	for _, t := range terms {
		q := DraftQuestion{Position: t.Position, TermPosition: t.Position}
		for i, p := range proposed {
			if used[i] {
				continue
			}
			prompt := collapseSpace(p.Question)
			if prompt == "" || !strings.EqualFold(collapseSpace(p.Answer), t.Term) {
				continue
			}
			used[i] = true
			q.Prompt = prompt
			break
		}
		if q.Prompt == "" {
			q.Prompt = fmt.Sprintf("Which term matches this definition: %s?", strings.TrimRight(t.Definition, ".?! "))
			q.Synthesized = true
		}
		out = append(out, q)
	}
	return out
}

func termsOf(cs []Candidate) TermSet {
	s := NewTermSet(nil)
	for _, c := range cs {
		s.Add(c.Term)
	}
	return s
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// TermSet is a case-insensitive set of term strings.
type TermSet map[string]struct{}

func NewTermSet(terms []string) TermSet {
	s := make(TermSet, len(terms))
	for _, t := range terms {
		s.Add(t)
	}
	return s
}

func normalizeTerm(t string) string {
	return strings.ToLower(collapseSpace(t))
}

func (s TermSet) Add(t string) {
	if n := normalizeTerm(t); n != "" {
		s[n] = struct{}{}
	}
}

func (s TermSet) Has(t string) bool {
	_, ok := s[normalizeTerm(t)]
	return ok
}

// Union returns a new set holding both s and other.
func (s TermSet) Union(other TermSet) TermSet {
	out := make(TermSet, len(s)+len(other))
	for k := range s {
		out[k] = struct{}{}
	}
	for k := range other {
		out[k] = struct{}{}
	}
	return out
}

// Sorted returns the normalized terms in lexical order, for stable prompts.
func (s TermSet) Sorted() []string {
	out := make([]string, 0, len(s))
	for k := range s {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
