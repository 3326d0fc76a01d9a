package index

import (
	"fmt"
	"slices"
	"time"

	"github.com/hyperjump/reteval/internal/models"
)

// Memory is a resident Index built from a collection snapshot.
type Memory struct {
	terms    []string
	termIDs  map[string]int
	docs     []models.DocumentInfo
	postings [][]models.Posting
	avgLen   float64
	backend  string
	savedAt  time.Time
}

// NewMemory validates c and builds a resident index from it. Postings are copied
// and sorted by document id so accumulation order is the same on every run.
func NewMemory(c *models.Collection) (*Memory, error) {
	if c == nil {
		return nil, fmt.Errorf("collection is nil")
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("invalid collection: %w", err)
	}

	m := &Memory{
		terms:    slices.Clone(c.Terms),
		termIDs:  make(map[string]int, len(c.Terms)),
		docs:     slices.Clone(c.Documents),
		postings: make([][]models.Posting, len(c.Postings)),
		backend:  "memory",
	}
	for i, spelling := range m.terms {
		m.termIDs[spelling] = i + 1
	}
	for i, list := range c.Postings {
		sorted := slices.Clone(list)
		slices.SortFunc(sorted, func(a, b models.Posting) int { return a.DocID - b.DocID })
		m.postings[i] = sorted
	}

	if len(m.docs) > 0 {
		var total int64
		for _, d := range m.docs {
			total += int64(d.Length)
		}
		m.avgLen = float64(total) / float64(len(m.docs))
	}
	return m, nil
}

// DocCount returns the number of documents.
func (m *Memory) DocCount() int { return len(m.docs) }

// TermDocCount returns the document frequency of termID.
func (m *Memory) TermDocCount(termID int) int {
	if termID < 1 || termID > len(m.postings) {
		return 0
	}
	return len(m.postings[termID-1])
}

// DocLength returns the token count of docID, or 0 when out of range.
func (m *Memory) DocLength(docID int) int {
	if docID < 1 || docID > len(m.docs) {
		return 0
	}
	return m.docs[docID-1].Length
}

// DocLengthAvg returns the mean document length.
func (m *Memory) DocLengthAvg() float64 { return m.avgLen }

// TermCountUnique returns the vocabulary size.
func (m *Memory) TermCountUnique() int { return len(m.terms) }

// Term returns the id of spelling, or 0 when unknown.
func (m *Memory) Term(spelling string) int { return m.termIDs[spelling] }

// Postings returns the postings of termID ordered by document id.
func (m *Memory) Postings(termID int) []models.Posting {
	if termID < 1 || termID > len(m.postings) {
		return nil
	}
	return m.postings[termID-1]
}

// Spelling returns the spelling of termID, or "" when termID is out of range.
func (m *Memory) Spelling(termID int) string {
	if termID < 1 || termID > len(m.terms) {
		return ""
	}
	return m.terms[termID-1]
}

// DocName returns the external identifier of docID.
func (m *Memory) DocName(docID int) string {
	if docID < 1 || docID > len(m.docs) {
		return ""
	}
	return m.docs[docID-1].Name
}

// Stats summarizes the index.
func (m *Memory) Stats() Stats {
	c := m.Collection()
	return Stats{
		Documents:    c.DocCount(),
		Terms:        c.TermCount(),
		Postings:     c.PostingCount(),
		AvgDocLength: m.avgLen,
		Backend:      m.backend,
		SavedAt:      m.savedAt,
	}
}

// Collection returns a snapshot suitable for persisting. Slices are shared with the index.
func (m *Memory) Collection() *models.Collection {
	return &models.Collection{
		Terms:     m.terms,
		Documents: m.docs,
		Postings:  m.postings,
	}
}
