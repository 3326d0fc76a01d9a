package search

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
)

// QuerySource yields query documents until it returns io.EOF.
type QuerySource interface {
	Next() (models.QueryDocument, error)
}

// ResultWriter receives one ranked result per query, in query order.
type ResultWriter interface {
	Write(res models.RankedResult) error
}

// Summary describes a completed run.
type Summary struct {
	RunID        string        `json:"run_id"`
	Scheme       string        `json:"scheme"`
	Queries      int           `json:"queries"`
	DroppedTerms int           `json:"dropped_terms"`
	Duration     time.Duration `json:"duration"`
}

// Runner evaluates every query of a source and hands the results to a writer.
type Runner struct {
	idx     index.Index
	opts    Options
	workers int
	logger  *zap.Logger
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithWorkers evaluates queries on n goroutines, one engine each. Values below 2 run sequentially.
func WithWorkers(n int) RunnerOption {
	return func(r *Runner) { r.workers = n }
}

// WithLogger sets the logger used for run progress.
func WithLogger(l *zap.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner validates opts by building an engine, so a bad configuration fails
// before any query is read.
func NewRunner(idx index.Index, opts Options, options ...RunnerOption) (*Runner, error) {
	if _, err := NewEngine(idx, opts); err != nil {
		return nil, err
	}
	r := &Runner{idx: idx, opts: opts, workers: 1, logger: zap.NewNop()}
	for _, opt := range options {
		opt(r)
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r, nil
}

type evaluated struct {
	seq     int
	result  models.RankedResult
	dropped int
}

// Run reads src to the end. Results are written in the order queries were read
// regardless of the number of workers.
func (r *Runner) Run(ctx context.Context, src QuerySource, w ResultWriter) (Summary, error) {
	start := time.Now()
	sum := Summary{RunID: uuid.New().String(), Scheme: r.opts.Scheme.String()}
	logger := r.logger.With(zap.String("run_id", sum.RunID), zap.String("scheme", sum.Scheme))
	logger.Info("run started", zap.Int("workers", r.workers))

	var err error
	if r.workers == 1 {
		err = r.runSequential(ctx, src, w, &sum)
	} else {
		err = r.runParallel(ctx, src, w, &sum)
	}
	sum.Duration = time.Since(start)
	if err != nil {
		logger.Error("run failed", zap.Int("queries", sum.Queries), zap.Error(err))
		return sum, err
	}
	logger.Info("run finished",
		zap.Int("queries", sum.Queries),
		zap.Int("dropped_terms", sum.DroppedTerms),
		zap.Duration("duration", sum.Duration),
	)
	return sum, nil
}

func (r *Runner) runSequential(ctx context.Context, src QuerySource, w ResultWriter, sum *Summary) error {
	eng, err := NewEngine(r.idx, r.opts)
	if err != nil {
		return err
	}
	for {
		q, err := src.Next()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read query: %w", err)
		}
		res, err := eng.Search(ctx, q)
		if err != nil {
			return err
		}
		if dropped := eng.Dropped(); len(dropped) > 0 {
			sum.DroppedTerms += len(dropped)
			r.logger.Debug("query terms not in vocabulary", zap.String("query", q.ID), zap.Strings("terms", dropped))
		}
		if err := w.Write(res); err != nil {
			return fmt.Errorf("failed to write result of query %s: %w", q.ID, err)
		}
		sum.Queries++
	}
}

func (r *Runner) runParallel(ctx context.Context, src QuerySource, w ResultWriter, sum *Summary) error {
	engines := make([]*Engine, r.workers)
	for i := range engines {
		eng, err := NewEngine(r.idx, r.opts)
		if err != nil {
			return err
		}
		engines[i] = eng
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gctx := errgroup.WithContext(ctx)

	type job struct {
		seq int
		q   models.QueryDocument
	}
	jobs := make(chan job)
	results := make(chan evaluated)

	g.Go(func() error {
		defer close(jobs)
		for seq := 0; ; seq++ {
			q, err := src.Next()
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to read query: %w", err)
			}
			select {
			case jobs <- job{seq: seq, q: q}:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
	})

	var wg sync.WaitGroup
	for _, eng := range engines {
		eng := eng
		wg.Add(1)
		g.Go(func() error {
			defer wg.Done()
			for j := range jobs {
				res, err := eng.Search(gctx, j.q)
				if err != nil {
					return err
				}
				select {
				case results <- evaluated{seq: j.seq, result: res, dropped: len(eng.Dropped())}:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	pending := make(map[int]evaluated)
	next := 0
	var writeErr error
	for ev := range results {
		if writeErr != nil {
			continue
		}
		pending[ev.seq] = ev
		for {
			ready, ok := pending[next]
			if !ok {
				break
			}
			delete(pending, next)
			if err := w.Write(ready.result); err != nil {
				writeErr = fmt.Errorf("failed to write result of query %s: %w", ready.result.QueryID, err)
				cancel()
				break
			}
			sum.Queries++
			sum.DroppedTerms += ready.dropped
			next++
		}
	}

	err := g.Wait()
	if writeErr != nil {
		return writeErr
	}
	return err
}
