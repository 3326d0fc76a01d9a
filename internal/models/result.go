package models

// ScoredDocument is the adjusted score of one document for one query.
type ScoredDocument struct {
	DocID int     `json:"doc_id"`
	Score float64 `json:"score"`
}

// RankedDocument is a single entry of a ranked result list.
type RankedDocument struct {
	DocID int     `json:"doc_id"`
	Name  string  `json:"name"`
	Rank  int     `json:"rank"`
	Score float64 `json:"score"`
}

// RankedResult is the top-K list produced for one query.
// Documents are ordered by descending score, ties by ascending document id.
type RankedResult struct {
	QueryID   string           `json:"query_id"`
	Documents []RankedDocument `json:"documents"`
}

// SearchResponse is the response for an HTTP search request.
type SearchResponse struct {
	Query        string           `json:"query"`
	WeightScheme string           `json:"weight_scheme"`
	Results      []RankedDocument `json:"results"`

	// DroppedTerms are query terms missing from the vocabulary.
	DroppedTerms []string `json:"dropped_terms,omitempty"`

	// Suggestions maps dropped terms to the closest vocabulary term.
	Suggestions map[string]string `json:"suggestions,omitempty"`

	QueryTime int64 `json:"query_time_ms"`
	Cached    bool  `json:"cached,omitempty"`
}
