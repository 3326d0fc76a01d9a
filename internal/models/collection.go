// Package models defines core data structures for collections, queries, and ranked results.
package models

import "fmt"

// Posting records how often a term occurs in one document.
type Posting struct {
	DocID    int `json:"doc_id"`
	TermFreq int `json:"term_freq"`
}

// DocumentInfo describes a single document of the collection.
type DocumentInfo struct {
	// Name is the external identifier written to result files.
	Name   string `json:"name"`
	Length int    `json:"length"`
}

// Collection is a complete snapshot of a pre-built inverted index.
// Term id i+1 is Terms[i] and owns Postings[i]; document id i+1 is Documents[i].
type Collection struct {
	Terms     []string       `json:"terms"`
	Documents []DocumentInfo `json:"documents"`
	Postings  [][]Posting    `json:"postings"`
}

// DocCount returns N, the number of documents.
func (c *Collection) DocCount() int {
	return len(c.Documents)
}

// TermCount returns V, the vocabulary size.
func (c *Collection) TermCount() int {
	return len(c.Terms)
}

// PostingCount returns the total number of postings over all terms.
func (c *Collection) PostingCount() int {
	total := 0
	for _, list := range c.Postings {
		total += len(list)
	}
	return total
}

// Validate checks that every id is within its range and every postings list is well formed.
func (c *Collection) Validate() error {
	if len(c.Postings) != len(c.Terms) {
		return fmt.Errorf("postings table has %d lists for %d terms", len(c.Postings), len(c.Terms))
	}
	ids := make(map[string]int, len(c.Terms))
	for i, spelling := range c.Terms {
		if spelling == "" {
			return fmt.Errorf("term %d has an empty spelling", i+1)
		}
		if prev, ok := ids[spelling]; ok {
			return fmt.Errorf("term %q appears as id %d and %d", spelling, prev, i+1)
		}
		ids[spelling] = i + 1
	}
	for i, doc := range c.Documents {
		if doc.Length < 0 {
			return fmt.Errorf("document %d has negative length %d", i+1, doc.Length)
		}
	}

	n := len(c.Documents)
	seen := make(map[int]struct{})
	for i, list := range c.Postings {
		clear(seen)
		for _, p := range list {
			if p.DocID < 1 || p.DocID > n {
				return fmt.Errorf("term %d: document id %d outside [1, %d]", i+1, p.DocID, n)
			}
			if p.TermFreq <= 0 {
				return fmt.Errorf("term %d: document %d has term frequency %d", i+1, p.DocID, p.TermFreq)
			}
			if _, dup := seen[p.DocID]; dup {
				return fmt.Errorf("term %d: document %d listed twice", i+1, p.DocID)
			}
			seen[p.DocID] = struct{}{}
		}
	}
	return nil
}
