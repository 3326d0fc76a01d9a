// Package cli provides result serialization and terminal output for reteval.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
)

// SearchOutputFormat is the format for search result output.
type SearchOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText SearchOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON SearchOutputFormat = "json"
)

// WriteSearchResults writes an ad-hoc search response to w in the given format.
func WriteSearchResults(w io.Writer, response *models.SearchResponse, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, response)
	}
	fmt.Fprintf(w, "\nFound %d results for %q with %s in %dms\n",
		len(response.Results), response.Query, response.WeightScheme, response.QueryTime)
	if len(response.DroppedTerms) > 0 {
		fmt.Fprintf(w, "Ignored terms not in the vocabulary: %s\n", strings.Join(response.DroppedTerms, ", "))
	}
	for _, term := range response.DroppedTerms {
		if s, ok := response.Suggestions[term]; ok {
			fmt.Fprintf(w, "  %s: did you mean %q?\n", term, s)
		}
	}
	fmt.Fprintln(w)
	for _, r := range response.Results {
		fmt.Fprintf(w, "%4d  %12.6f  %s\n", r.Rank, r.Score, docLabel(r))
	}
	return nil
}

// WriteStats writes collection statistics to w in the given format.
func WriteStats(w io.Writer, st index.Stats, diskBytes int64, format SearchOutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, struct {
			index.Stats
			DiskBytes int64 `json:"disk_bytes"`
		}{st, diskBytes})
	}
	fmt.Fprintf(w, "%-20s %s\n", "Backend:", st.Backend)
	fmt.Fprintf(w, "%-20s %d\n", "Documents:", st.Documents)
	fmt.Fprintf(w, "%-20s %d\n", "Terms:", st.Terms)
	fmt.Fprintf(w, "%-20s %d\n", "Postings:", st.Postings)
	fmt.Fprintf(w, "%-20s %.2f\n", "Avg doc length:", st.AvgDocLength)
	fmt.Fprintf(w, "%-20s %s\n", "Disk usage:", FormatBytes(diskBytes))
	if !st.SavedAt.IsZero() {
		fmt.Fprintf(w, "%-20s %s\n", "Saved at:", st.SavedAt.Format(time.RFC3339))
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// FormatBytes renders n with a binary unit suffix.
func FormatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
