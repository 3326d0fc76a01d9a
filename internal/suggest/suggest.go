// Package suggest proposes vocabulary terms for query terms the index does not know.
package suggest

import (
	"slices"
	"strings"
	"unicode/utf8"
)

// Vocabulary is the part of an index the suggester reads.
type Vocabulary interface {
	TermCountUnique() int
	TermDocCount(termID int) int
	// Spelling returns the spelling of termID.
	Spelling(termID int) string
}

// Suggestion is a vocabulary term close to a query term.
type Suggestion struct {
	Term      string `json:"term"`
	Distance  int    `json:"distance"`
	Frequency int    `json:"frequency"`
}

// Suggester looks up close vocabulary terms.
type Suggester struct {
	vocab       Vocabulary
	maxDistance int
}

// Option configures a Suggester.
type Option func(*Suggester)

// WithMaxDistance sets the largest edit distance considered. Default 2.
func WithMaxDistance(d int) Option {
	return func(s *Suggester) {
		if d > 0 {
			s.maxDistance = d
		}
	}
}

// New creates a suggester over vocab.
func New(vocab Vocabulary, opts ...Option) *Suggester {
	s := &Suggester{vocab: vocab, maxDistance: 2}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Suggest returns vocabulary terms within the maximum distance of term, closest
// first, then by descending document frequency, then alphabetically. Distance
// ignores case, so a term differing from a vocabulary term only in case gets it
// at distance 0. term itself is never returned.
func (s *Suggester) Suggest(term string) []Suggestion {
	lower := strings.ToLower(term)
	n := utf8.RuneCountInString(lower)
	var out []Suggestion
	for id := 1; id <= s.vocab.TermCountUnique(); id++ {
		cand := s.vocab.Spelling(id)
		if cand == term {
			continue
		}
		diff := utf8.RuneCountInString(cand) - n
		if diff < -s.maxDistance || diff > s.maxDistance {
			continue
		}
		d := Distance(lower, strings.ToLower(cand))
		if d > s.maxDistance {
			continue
		}
		out = append(out, Suggestion{Term: cand, Distance: d, Frequency: s.vocab.TermDocCount(id)})
	}
	slices.SortFunc(out, func(a, b Suggestion) int {
		if a.Distance != b.Distance {
			return a.Distance - b.Distance
		}
		if a.Frequency != b.Frequency {
			return b.Frequency - a.Frequency
		}
		return strings.Compare(a.Term, b.Term)
	})
	return out
}

// Best maps each term with at least one suggestion to its best suggestion.
// Returns nil when nothing was found.
func (s *Suggester) Best(terms []string) map[string]string {
	var best map[string]string
	for _, t := range terms {
		if sug := s.Suggest(t); len(sug) > 0 {
			if best == nil {
				best = make(map[string]string, len(terms))
			}
			best[t] = sug[0].Term
		}
	}
	return best
}
