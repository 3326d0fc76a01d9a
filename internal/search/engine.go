// Package search provides the ranked retrieval engine and the batch runner that drives it.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"slices"

	"github.com/hyperjump/reteval/internal/accumulator"
	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/ranking"
)

// DefaultResultCount is K when none is configured.
const DefaultResultCount = 100

// ErrDegenerateInput is returned when index statistics would make a weight undefined,
// such as a term with postings but no document frequency.
var ErrDegenerateInput = errors.New("degenerate numeric input")

// Options configures an Engine.
type Options struct {
	Scheme      ranking.Scheme
	ResultCount int
	TruncateIDF bool
	Accumulator accumulator.Kind
}

// Engine scores every document of an index against one query at a time.
// It owns its query vector and accumulator and reuses them across queries,
// so an Engine must not be used concurrently.
type Engine struct {
	idx         index.Index
	opts        Options
	weighting   ranking.Weighting
	resultCount int

	queryVec   []float64
	queryTerms []int
	acc        accumulator.Accumulator
	scores     []models.ScoredDocument
	dropped    []string
}

// NewEngine creates an engine over idx. It fails with ranking.ErrUnknownScheme when
// opts.Scheme is not supported.
func NewEngine(idx index.Index, opts Options) (*Engine, error) {
	w, err := opts.Scheme.Weighting(ranking.Options{TruncateIDF: opts.TruncateIDF})
	if err != nil {
		return nil, err
	}
	k := opts.ResultCount
	if k <= 0 {
		k = DefaultResultCount
	}
	n := idx.DocCount()
	return &Engine{
		idx:         idx,
		opts:        opts,
		weighting:   w,
		resultCount: k,
		queryVec:    make([]float64, idx.TermCountUnique()+1),
		acc:         accumulator.New(opts.Accumulator, n),
		scores:      make([]models.ScoredDocument, 0, n),
	}, nil
}

// Scheme returns the weighting scheme of the engine.
func (e *Engine) Scheme() ranking.Scheme {
	return e.weighting.Scheme
}

// Search evaluates q and returns its top ResultCount documents.
func (e *Engine) Search(ctx context.Context, q models.QueryDocument) (models.RankedResult, error) {
	return e.SearchTop(ctx, q, e.resultCount)
}

// SearchTop evaluates q and returns its top k documents.
func (e *Engine) SearchTop(ctx context.Context, q models.QueryDocument, k int) (models.RankedResult, error) {
	scores, err := e.Retrieve(ctx, q.Terms)
	if err != nil {
		return models.RankedResult{}, fmt.Errorf("query %s: %w", q.ID, err)
	}
	return ranking.Rank(q.ID, scores, k, e.idx.DocName), nil
}

// Retrieve returns the adjusted score of every document, in document id order.
// The returned slice is reused by the next call.
func (e *Engine) Retrieve(ctx context.Context, terms []string) ([]models.ScoredDocument, error) {
	e.buildQueryVector(terms)
	e.acc.Reset()

	for _, termID := range e.queryTerms {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if err := e.accumulate(termID, e.queryVec[termID]); err != nil {
			return nil, err
		}
	}

	n := e.idx.DocCount()
	e.scores = e.scores[:0]
	for docID := 1; docID <= n; docID++ {
		raw, _ := e.acc.FindScore(docID)
		score := e.weighting.Adjust(raw, docID, e.idx)
		if !finite(score) {
			return nil, fmt.Errorf("%w: adjusted score %v for document %d", ErrDegenerateInput, score, docID)
		}
		e.scores = append(e.scores, models.ScoredDocument{DocID: docID, Score: score})
	}
	return e.scores, nil
}

// Dropped returns the query terms of the last evaluation that are not in the vocabulary.
func (e *Engine) Dropped() []string {
	return slices.Clone(e.dropped)
}

// Matched returns how many documents received evidence in the last evaluation.
func (e *Engine) Matched() int {
	return e.acc.Len()
}

// buildQueryVector overwrites the query vector with the term frequencies of terms.
// Term ids with a non-zero count are kept in ascending order.
func (e *Engine) buildQueryVector(terms []string) {
	for _, termID := range e.queryTerms {
		e.queryVec[termID] = 0
	}
	e.queryTerms = e.queryTerms[:0]
	e.dropped = e.dropped[:0]

	for _, term := range terms {
		termID := e.idx.Term(term)
		if termID == 0 {
			e.dropped = append(e.dropped, term)
			continue
		}
		if e.queryVec[termID] == 0 {
			e.queryTerms = append(e.queryTerms, termID)
		}
		e.queryVec[termID]++
	}
	slices.Sort(e.queryTerms)
}

func (e *Engine) accumulate(termID int, qtf float64) error {
	postings := e.idx.Postings(termID)
	if len(postings) == 0 {
		return nil
	}
	if e.idx.TermDocCount(termID) == 0 {
		return fmt.Errorf("%w: term %d has postings but document frequency 0", ErrDegenerateInput, termID)
	}
	for _, p := range postings {
		if p.TermFreq <= 0 {
			return fmt.Errorf("%w: term %d has frequency %d in document %d", ErrDegenerateInput, termID, p.TermFreq, p.DocID)
		}
		w := e.weighting.Weight(p.DocID, termID, p.TermFreq, qtf, e.idx)
		if !finite(w) {
			return fmt.Errorf("%w: weight %v for term %d in document %d", ErrDegenerateInput, w, termID, p.DocID)
		}
		e.acc.IncScore(p.DocID, w)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
