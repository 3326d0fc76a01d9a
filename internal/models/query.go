package models

import (
	"fmt"
	"strings"
)

// QueryDocument is one query read from a query stream.
type QueryDocument struct {
	// ID is the external query identifier written to result files.
	ID    string   `json:"id"`
	Terms []string `json:"terms"`
}

// SearchRequest is an ad-hoc query sent to the HTTP service.
type SearchRequest struct {
	Query        string `json:"query"`
	WeightScheme string `json:"weight_scheme,omitempty"`
	Limit        int    `json:"limit,omitempty"`
}

// Validate ensures the request has a query and normalizes the limit.
// A zero limit becomes defaultLimit; limits above maxLimit are capped.
func (q *SearchRequest) Validate(defaultLimit, maxLimit int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.Limit < 0 {
		return fmt.Errorf("limit must not be negative, got %d", q.Limit)
	}
	if q.Limit == 0 {
		q.Limit = defaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return nil
}

// Document converts the request into a query document with whitespace separated terms.
func (q *SearchRequest) Document(id string) QueryDocument {
	return QueryDocument{ID: id, Terms: strings.Fields(q.Query)}
}
