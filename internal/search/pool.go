package search

import (
	"context"
	"sync"

	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/ranking"
)

// Outcome is the result of a pooled search.
type Outcome struct {
	Result  models.RankedResult
	Dropped []string
	Matched int
}

// Pool shares a bounded set of engines between concurrent callers. Engines are
// created lazily per scheme and reused.
type Pool struct {
	idx  index.Index
	base Options
	sem  chan struct{}

	mu   sync.Mutex
	idle map[ranking.Scheme][]*Engine
}

// NewPool creates a pool that runs at most size searches at once. base supplies
// everything except the scheme, which is chosen per search.
func NewPool(idx index.Index, base Options, size int) (*Pool, error) {
	if size < 1 {
		size = 1
	}
	// fail early on a bad default scheme
	if _, err := NewEngine(idx, base); err != nil {
		return nil, err
	}
	return &Pool{
		idx:  idx,
		base: base,
		sem:  make(chan struct{}, size),
		idle: make(map[ranking.Scheme][]*Engine),
	}, nil
}

// DefaultScheme returns the scheme used when a caller does not choose one.
func (p *Pool) DefaultScheme() ranking.Scheme {
	return p.base.Scheme
}

// Index returns the index the pool searches.
func (p *Pool) Index() index.Index {
	return p.idx
}

// Search evaluates q with scheme and returns its top k documents. It blocks while
// every engine is busy, until ctx is done.
func (p *Pool) Search(ctx context.Context, scheme ranking.Scheme, q models.QueryDocument, k int) (Outcome, error) {
	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
	defer func() { <-p.sem }()

	eng, err := p.acquire(scheme)
	if err != nil {
		return Outcome{}, err
	}
	defer p.release(eng)

	if k <= 0 {
		k = eng.resultCount
	}
	res, err := eng.SearchTop(ctx, q, k)
	if err != nil {
		return Outcome{}, err
	}
	return Outcome{Result: res, Dropped: eng.Dropped(), Matched: eng.Matched()}, nil
}

func (p *Pool) acquire(scheme ranking.Scheme) (*Engine, error) {
	p.mu.Lock()
	if list := p.idle[scheme]; len(list) > 0 {
		eng := list[len(list)-1]
		p.idle[scheme] = list[:len(list)-1]
		p.mu.Unlock()
		return eng, nil
	}
	p.mu.Unlock()

	opts := p.base
	opts.Scheme = scheme
	return NewEngine(p.idx, opts)
}

func (p *Pool) release(eng *Engine) {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := eng.Scheme()
	if len(p.idle[s]) < cap(p.sem) {
		p.idle[s] = append(p.idle[s], eng)
	}
}
