package ranking

import (
	"fmt"
	"math/rand"
	"reflect"
	"testing"

	"github.com/hyperjump/reteval/internal/models"
)

func TestSort_TieBreak(t *testing.T) {
	scores := []models.ScoredDocument{
		{DocID: 4, Score: 1},
		{DocID: 2, Score: 3},
		{DocID: 3, Score: 1},
		{DocID: 1, Score: 0},
		{DocID: 5, Score: 3},
	}
	Sort(scores)
	want := []int{2, 5, 3, 4, 1}
	for i, s := range scores {
		if s.DocID != want[i] {
			t.Fatalf("position %d = doc %d, want doc %d (got %v)", i, s.DocID, want[i], scores)
		}
	}
}

func TestTopK_MatchesFullSort(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	scores := make([]models.ScoredDocument, 500)
	for i := range scores {
		scores[i] = models.ScoredDocument{DocID: i + 1, Score: float64(rng.Intn(20))}
	}
	full := TopK(scores, 0)

	for _, k := range []int{1, 3, 10, 100, 499, 500, 1000} {
		t.Run(fmt.Sprintf("k=%d", k), func(t *testing.T) {
			got := TopK(scores, k)
			wantLen := min(k, len(scores))
			if len(got) != wantLen {
				t.Fatalf("len = %d, want %d", len(got), wantLen)
			}
			if !reflect.DeepEqual(got, full[:wantLen]) {
				t.Errorf("TopK(%d) differs from the sorted prefix", k)
			}
		})
	}
	if scores[0].DocID != 1 {
		t.Error("TopK modified its input")
	}
}

func TestRank(t *testing.T) {
	scores := []models.ScoredDocument{
		{DocID: 1, Score: 0},
		{DocID: 2, Score: 2.5},
		{DocID: 3, Score: 7},
	}
	names := map[int]string{1: "a", 2: "b", 3: "c"}
	got := Rank("q9", scores, 2, func(id int) string { return names[id] })

	want := models.RankedResult{
		QueryID: "q9",
		Documents: []models.RankedDocument{
			{DocID: 3, Name: "c", Rank: 1, Score: 7},
			{DocID: 2, Name: "b", Rank: 2, Score: 2.5},
		},
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rank() = %+v, want %+v", got, want)
	}

	all := Rank("q9", scores, 100, nil)
	if len(all.Documents) != 3 {
		t.Errorf("K larger than N should return all %d documents, got %d", 3, len(all.Documents))
	}
	seen := map[int]bool{}
	for i, d := range all.Documents {
		if seen[d.DocID] {
			t.Errorf("duplicate document %d", d.DocID)
		}
		seen[d.DocID] = true
		if d.Rank != i+1 {
			t.Errorf("rank at %d = %d", i, d.Rank)
		}
		if i > 0 && Compare(models.ScoredDocument{DocID: all.Documents[i-1].DocID, Score: all.Documents[i-1].Score},
			models.ScoredDocument{DocID: d.DocID, Score: d.Score}) >= 0 {
			t.Errorf("results not strictly ordered at %d", i)
		}
	}
}

func TestCollector(t *testing.T) {
	c := NewCollector(2)
	for _, d := range []models.ScoredDocument{{DocID: 1, Score: 1}, {DocID: 2, Score: 5}, {DocID: 3, Score: 5}, {DocID: 4, Score: 2}} {
		c.Collect(d)
	}
	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	got := c.Results()
	want := []models.ScoredDocument{{DocID: 2, Score: 5}, {DocID: 3, Score: 5}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Results() = %v, want %v", got, want)
	}
}

func BenchmarkTopK(b *testing.B) {
	rng := rand.New(rand.NewSource(1))
	scores := make([]models.ScoredDocument, 100000)
	for i := range scores {
		scores[i] = models.ScoredDocument{DocID: i + 1, Score: rng.Float64()}
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		TopK(scores, 100)
	}
}
