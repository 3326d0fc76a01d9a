package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/hyperjump/reteval/internal/models"
)

// ResultFormat is the layout of a result file.
type ResultFormat string

const (
	// ResultTREC writes "qid Q0 docName rank score runTag" lines.
	ResultTREC ResultFormat = "trec"
	// ResultSimple writes "qid docName score" lines.
	ResultSimple ResultFormat = "simple"
	// ResultJSON writes one JSON object per query.
	ResultJSON ResultFormat = "json"
)

// DefaultRunTag is the run tag written in TREC result lines when none is configured.
const DefaultRunTag = "reteval"

// ParseResultFormat validates a format name. The empty string means ResultTREC.
func ParseResultFormat(s string) (ResultFormat, error) {
	switch ResultFormat(s) {
	case "", ResultTREC:
		return ResultTREC, nil
	case ResultSimple, ResultJSON:
		return ResultFormat(s), nil
	}
	return "", fmt.Errorf("unknown result format %q (want trec, simple or json)", s)
}

// ResultWriter serializes ranked results. Call Flush (or Close on a ResultFile) when done.
type ResultWriter struct {
	w      *bufio.Writer
	enc    *json.Encoder
	format ResultFormat
	runTag string
}

// NewResultWriter writes results to w in format. An empty runTag uses DefaultRunTag.
func NewResultWriter(w io.Writer, format ResultFormat, runTag string) *ResultWriter {
	if runTag == "" {
		runTag = DefaultRunTag
	}
	bw := bufio.NewWriter(w)
	rw := &ResultWriter{w: bw, format: format, runTag: runTag}
	if format == ResultJSON {
		rw.enc = json.NewEncoder(bw)
	}
	return rw
}

// Write serializes the result of one query.
func (rw *ResultWriter) Write(res models.RankedResult) error {
	switch rw.format {
	case ResultJSON:
		return rw.enc.Encode(res)
	case ResultSimple:
		for _, d := range res.Documents {
			if _, err := fmt.Fprintf(rw.w, "%s %s %.6f\n", res.QueryID, docLabel(d), d.Score); err != nil {
				return err
			}
		}
	default:
		for _, d := range res.Documents {
			if _, err := fmt.Fprintf(rw.w, "%s Q0 %s %d %.6f %s\n", res.QueryID, docLabel(d), d.Rank, d.Score, rw.runTag); err != nil {
				return err
			}
		}
	}
	return nil
}

// Flush writes any buffered output.
func (rw *ResultWriter) Flush() error {
	return rw.w.Flush()
}

// docLabel falls back to the numeric id when a document has no external name.
func docLabel(d models.RankedDocument) string {
	if d.Name != "" {
		return d.Name
	}
	return fmt.Sprintf("%d", d.DocID)
}

// ResultFile is a ResultWriter backed by a file.
type ResultFile struct {
	*ResultWriter
	f *os.File
}

// CreateResultFile truncates or creates the file at path. Parent directories are created.
func CreateResultFile(path string, format ResultFormat, runTag string) (*ResultFile, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("can't create result file %s: %w", path, err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("can't create result file %s: %w", path, err)
	}
	return &ResultFile{ResultWriter: NewResultWriter(f, format, runTag), f: f}, nil
}

// Close flushes buffered results and closes the file.
func (rf *ResultFile) Close() error {
	if err := rf.Flush(); err != nil {
		_ = rf.f.Close()
		return err
	}
	return rf.f.Close()
}
