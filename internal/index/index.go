// Package index provides read-only access to a pre-built inverted index.
package index

import (
	"time"

	"github.com/hyperjump/reteval/internal/models"
)

// Index is the statistics and postings view the retrieval engine scores against.
// Term ids are in [1, TermCountUnique()] and document ids in [1, DocCount()].
// Implementations must be safe for concurrent readers.
type Index interface {
	// DocCount returns N.
	DocCount() int
	// TermDocCount returns the number of documents containing termID.
	TermDocCount(termID int) int
	DocLength(docID int) int
	DocLengthAvg() float64
	// TermCountUnique returns V.
	TermCountUnique() int
	// Term maps a spelling to its id, or 0 when the spelling is not in the vocabulary.
	Term(spelling string) int
	// Postings returns the postings of termID ordered by ascending document id.
	// Callers must not modify the returned slice.
	Postings(termID int) []models.Posting
	// DocName returns the external identifier of docID.
	DocName(docID int) string
}

// Stats summarizes a loaded collection.
type Stats struct {
	Documents    int     `json:"documents"`
	Terms        int     `json:"terms"`
	Postings     int     `json:"postings"`
	AvgDocLength float64 `json:"avg_doc_length"`
	Backend      string  `json:"backend"`

	// SavedAt is when a SQLite store was written. Zero for other backends.
	SavedAt time.Time `json:"saved_at,omitzero"`
}
