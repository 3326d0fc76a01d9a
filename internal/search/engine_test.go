package search

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"testing"

	"github.com/hyperjump/reteval/internal/accumulator"
	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/ranking"
)

func newIndex(t testing.TB, c *models.Collection) *index.Memory {
	t.Helper()
	m, err := index.NewMemory(c)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func newEngine(t testing.TB, idx index.Index, opts Options) *Engine {
	t.Helper()
	e, err := NewEngine(idx, opts)
	if err != nil {
		t.Fatal(err)
	}
	return e
}

// fruitCollection has three terms over five documents; document 5 matches nothing.
func fruitCollection() *models.Collection {
	return &models.Collection{
		Terms: []string{"apple", "banana", "cherry"},
		Documents: []models.DocumentInfo{
			{Name: "d1", Length: 6},
			{Name: "d2", Length: 4},
			{Name: "d3", Length: 8},
			{Name: "d4", Length: 2},
			{Name: "d5", Length: 5},
		},
		Postings: [][]models.Posting{
			{{DocID: 1, TermFreq: 2}, {DocID: 2, TermFreq: 1}, {DocID: 3, TermFreq: 4}},
			{{DocID: 2, TermFreq: 3}, {DocID: 4, TermFreq: 1}},
			{{DocID: 3, TermFreq: 1}},
		},
	}
}

func TestEngine_RawTFSingleDocument(t *testing.T) {
	idx := newIndex(t, &models.Collection{
		Terms:     []string{"A"},
		Documents: []models.DocumentInfo{{Name: "doc1", Length: 3}},
		Postings:  [][]models.Posting{{{DocID: 1, TermFreq: 3}}},
	})
	e := newEngine(t, idx, Options{Scheme: ranking.RawTF})

	got, err := e.Search(context.Background(), models.QueryDocument{ID: "q1", Terms: []string{"A", "A"}})
	if err != nil {
		t.Fatal(err)
	}
	want := models.RankedResult{
		QueryID:   "q1",
		Documents: []models.RankedDocument{{DocID: 1, Name: "doc1", Rank: 1, Score: 6}},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Search() = %+v, want %+v", got, want)
	}
}

func TestEngine_CustomAdjustsByLength(t *testing.T) {
	idx := newIndex(t, &models.Collection{
		Terms:     []string{"x"},
		Documents: []models.DocumentInfo{{Name: "d", Length: 10}},
		Postings:  [][]models.Posting{{{DocID: 1, TermFreq: 2}}},
	})
	e := newEngine(t, idx, Options{Scheme: ranking.Custom})

	// qtf=5, tf=2, df=1: raw = 25*2/1 = 50, adjusted = 50/10
	scores, err := e.Retrieve(context.Background(), []string{"x", "x", "x", "x", "x"})
	if err != nil {
		t.Fatal(err)
	}
	if len(scores) != 1 || scores[0].Score != 5 {
		t.Errorf("Retrieve() = %v, want [{1 5}]", scores)
	}
}

func TestEngine_FullScan(t *testing.T) {
	idx := newIndex(t, fruitCollection())
	for _, s := range ranking.Schemes() {
		t.Run(s.String(), func(t *testing.T) {
			e := newEngine(t, idx, Options{Scheme: s})
			for _, terms := range [][]string{nil, {"cherry"}, {"apple", "banana", "cherry"}, {"unknown"}} {
				scores, err := e.Retrieve(context.Background(), terms)
				if err != nil {
					t.Fatal(err)
				}
				if len(scores) != idx.DocCount() {
					t.Fatalf("terms %v: got %d scores, want %d", terms, len(scores), idx.DocCount())
				}
				for i, sd := range scores {
					if sd.DocID != i+1 {
						t.Errorf("position %d holds document %d", i, sd.DocID)
					}
				}
				if scores[4].Score != 0 {
					t.Errorf("unmatched document scored %v, want 0", scores[4].Score)
				}
			}
		})
	}
}

func TestEngine_OkapiSkipsAbsentTerms(t *testing.T) {
	idx := newIndex(t, fruitCollection())
	e := newEngine(t, idx, Options{Scheme: ranking.Okapi, Accumulator: accumulator.KindMap})

	scores, err := e.Retrieve(context.Background(), []string{"apple", "cherry"})
	if err != nil {
		t.Fatal(err)
	}
	w, _ := ranking.Okapi.Weighting(ranking.Options{})

	// document 1 contains apple only; cherry contributes nothing at all
	wantDoc1 := w.Weight(1, 1, 2, 1, idx)
	if scores[0].Score != wantDoc1 {
		t.Errorf("doc 1 score = %v, want %v", scores[0].Score, wantDoc1)
	}
	wantDoc3 := w.Weight(3, 1, 4, 1, idx) + w.Weight(3, 3, 1, 1, idx)
	if scores[2].Score != wantDoc3 {
		t.Errorf("doc 3 score = %v, want %v", scores[2].Score, wantDoc3)
	}
	// documents 2, 4 and 5 never receive evidence from cherry; 4 and 5 none at all
	if e.Matched() != 3 {
		t.Errorf("Matched() = %d, want 3", e.Matched())
	}
}

func TestEngine_DroppedTerms(t *testing.T) {
	e := newEngine(t, newIndex(t, fruitCollection()), Options{})
	res, err := e.Search(context.Background(), models.QueryDocument{ID: "q", Terms: []string{"durian", "apple", "fig"}})
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(e.Dropped(), []string{"durian", "fig"}) {
		t.Errorf("Dropped() = %v", e.Dropped())
	}
	if res.Documents[0].DocID != 3 {
		t.Errorf("top document = %d, want 3", res.Documents[0].DocID)
	}
}

func TestEngine_ResultCount(t *testing.T) {
	idx := newIndex(t, fruitCollection())
	tests := []struct {
		k    int
		want int
	}{
		{1, 1},
		{3, 3},
		{5, 5},
		{100, 5},
		{0, 5},
	}
	for _, tt := range tests {
		e := newEngine(t, idx, Options{ResultCount: tt.k})
		res, err := e.Search(context.Background(), models.QueryDocument{ID: "q", Terms: []string{"banana"}})
		if err != nil {
			t.Fatal(err)
		}
		if len(res.Documents) != tt.want {
			t.Errorf("K=%d: got %d documents, want %d", tt.k, len(res.Documents), tt.want)
		}
	}
}

func TestEngine_ReusesBuffersAcrossQueries(t *testing.T) {
	idx := newIndex(t, fruitCollection())
	queries := []models.QueryDocument{
		{ID: "1", Terms: []string{"apple", "apple", "banana"}},
		{ID: "2", Terms: []string{"cherry"}},
		{ID: "3", Terms: []string{"banana", "apple"}},
	}
	for _, s := range ranking.Schemes() {
		reused := newEngine(t, idx, Options{Scheme: s})
		for _, q := range queries {
			fresh := newEngine(t, idx, Options{Scheme: s})
			want, err := fresh.Search(context.Background(), q)
			if err != nil {
				t.Fatal(err)
			}
			got, err := reused.Search(context.Background(), q)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, want) {
				t.Errorf("%s query %s: reused engine = %+v, fresh engine = %+v", s, q.ID, got, want)
			}
		}
	}
}

func TestEngine_TieBreakByDocID(t *testing.T) {
	idx := newIndex(t, &models.Collection{
		Terms: []string{"t"},
		Documents: []models.DocumentInfo{
			{Name: "a", Length: 1}, {Name: "b", Length: 1}, {Name: "c", Length: 1},
		},
		Postings: [][]models.Posting{{{DocID: 3, TermFreq: 1}, {DocID: 1, TermFreq: 1}}},
	})
	e := newEngine(t, idx, Options{})
	res, err := e.Search(context.Background(), models.QueryDocument{ID: "q", Terms: []string{"t"}})
	if err != nil {
		t.Fatal(err)
	}
	var order []int
	for _, d := range res.Documents {
		order = append(order, d.DocID)
	}
	if !reflect.DeepEqual(order, []int{1, 3, 2}) {
		t.Errorf("order = %v, want [1 3 2]", order)
	}
}

func TestNewEngine_UnknownScheme(t *testing.T) {
	_, err := NewEngine(newIndex(t, fruitCollection()), Options{Scheme: ranking.Scheme(99)})
	if !errors.Is(err, ranking.ErrUnknownScheme) {
		t.Errorf("NewEngine() error = %v, want ErrUnknownScheme", err)
	}
}

type zeroDFIndex struct {
	*index.Memory
}

func (zeroDFIndex) TermDocCount(int) int { return 0 }

func TestEngine_DegenerateInput(t *testing.T) {
	for _, scheme := range []ranking.Scheme{ranking.RawTFIDF, ranking.LogTFIDF, ranking.Okapi, ranking.Custom} {
		for _, truncate := range []bool{false, true} {
			name := fmt.Sprintf("%s truncate=%v without document frequency", scheme, truncate)
			t.Run(name, func(t *testing.T) {
				e := newEngine(t, zeroDFIndex{newIndex(t, fruitCollection())}, Options{Scheme: scheme, TruncateIDF: truncate})
				_, err := e.Retrieve(context.Background(), []string{"apple"})
				if !errors.Is(err, ErrDegenerateInput) {
					t.Errorf("Retrieve() error = %v, want ErrDegenerateInput", err)
				}
			})
		}
	}

	t.Run("okapi with zero average length", func(t *testing.T) {
		idx := newIndex(t, &models.Collection{
			Terms:     []string{"t"},
			Documents: []models.DocumentInfo{{Name: "a"}},
			Postings:  [][]models.Posting{{{DocID: 1, TermFreq: 1}}},
		})
		e := newEngine(t, idx, Options{Scheme: ranking.Okapi})
		_, err := e.Retrieve(context.Background(), []string{"t"})
		if !errors.Is(err, ErrDegenerateInput) {
			t.Errorf("Retrieve() error = %v, want ErrDegenerateInput", err)
		}
	})
}

func TestEngine_ContextCanceled(t *testing.T) {
	e := newEngine(t, newIndex(t, fruitCollection()), Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := e.Retrieve(ctx, []string{"apple"}); !errors.Is(err, context.Canceled) {
		t.Errorf("Retrieve() error = %v, want context.Canceled", err)
	}
}

func BenchmarkEngine_Search(b *testing.B) {
	c := randomCollection(20000, 2000, 42)
	idx := newIndex(b, c)
	e := newEngine(b, idx, Options{Scheme: ranking.Okapi})
	q := models.QueryDocument{ID: "bench", Terms: c.Terms[:8]}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := e.Search(context.Background(), q); err != nil {
			b.Fatal(err)
		}
	}
}
