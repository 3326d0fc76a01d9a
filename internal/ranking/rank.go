package ranking

import (
	"container/heap"
	"slices"

	"github.com/hyperjump/reteval/internal/models"
)

// Compare orders documents by descending score, breaking ties by ascending document id.
// It returns a negative number when a ranks before b.
func Compare(a, b models.ScoredDocument) int {
	switch {
	case a.Score > b.Score:
		return -1
	case a.Score < b.Score:
		return 1
	}
	return a.DocID - b.DocID
}

// Sort orders scores in place by Compare.
func Sort(scores []models.ScoredDocument) {
	slices.SortFunc(scores, Compare)
}

// TopK returns the k best documents ordered by Compare without modifying scores.
// k <= 0 or k >= len(scores) returns every document.
func TopK(scores []models.ScoredDocument, k int) []models.ScoredDocument {
	if k <= 0 || k >= len(scores) {
		out := slices.Clone(scores)
		Sort(out)
		return out
	}
	c := NewCollector(k)
	for _, s := range scores {
		c.Collect(s)
	}
	return c.Results()
}

// Rank truncates scores to the top k and numbers them from 1. name resolves external
// document identifiers and may be nil.
func Rank(queryID string, scores []models.ScoredDocument, k int, name func(docID int) string) models.RankedResult {
	top := TopK(scores, k)
	res := models.RankedResult{
		QueryID:   queryID,
		Documents: make([]models.RankedDocument, len(top)),
	}
	for i, s := range top {
		doc := models.RankedDocument{DocID: s.DocID, Rank: i + 1, Score: s.Score}
		if name != nil {
			doc.Name = name(s.DocID)
		}
		res.Documents[i] = doc
	}
	return res
}

// Collector keeps the k best documents seen so far in a heap whose root is the
// current worst of them.
type Collector struct {
	k int
	h worstFirst
}

// NewCollector creates a collector for the top k documents. k must be positive.
func NewCollector(k int) *Collector {
	if k <= 0 {
		k = 1
	}
	return &Collector{k: k, h: make(worstFirst, 0, k)}
}

// Collect offers a document to the collector.
func (c *Collector) Collect(doc models.ScoredDocument) {
	if c.h.Len() < c.k {
		heap.Push(&c.h, doc)
		return
	}
	if Compare(doc, c.h[0]) < 0 {
		c.h[0] = doc
		heap.Fix(&c.h, 0)
	}
}

// Len returns the number of documents held.
func (c *Collector) Len() int {
	return c.h.Len()
}

// Results drains the collector and returns its documents ordered by Compare.
func (c *Collector) Results() []models.ScoredDocument {
	out := make([]models.ScoredDocument, c.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&c.h).(models.ScoredDocument)
	}
	return out
}

type worstFirst []models.ScoredDocument

func (h worstFirst) Len() int           { return len(h) }
func (h worstFirst) Less(i, j int) bool { return Compare(h[i], h[j]) > 0 }
func (h worstFirst) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *worstFirst) Push(x any)        { *h = append(*h, x.(models.ScoredDocument)) }
func (h *worstFirst) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
