// Package querystream reads query documents lazily from a query file.
package querystream

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/blevesearch/bleve/v2"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/simple"
	_ "github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	_ "github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/mapping"

	"github.com/hyperjump/reteval/internal/models"
)

// Format is the layout of a query file.
type Format string

const (
	// FormatBasic holds queries as "<DOC id>" blocks closed by "</DOC>" with
	// whitespace separated terms in between.
	FormatBasic Format = "basic"
	// FormatLine holds one query per line; the first token is the query id.
	FormatLine Format = "line"
)

const maxLineSize = 1 << 20

// ParseFormat validates a format name. The empty string means FormatBasic.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatBasic:
		return FormatBasic, nil
	case FormatLine:
		return FormatLine, nil
	}
	return "", fmt.Errorf("unknown query format %q (want basic or line)", s)
}

// Options configures a Reader.
type Options struct {
	Format Format
	// Analyzer names a bleve analyzer (such as "standard" or "en") applied to the
	// terms of every query. Empty keeps terms as written.
	Analyzer string
}

// Reader yields query documents one at a time. It can be restarted with Reset.
type Reader struct {
	src      io.ReadSeeker
	closer   io.Closer
	format   Format
	scanner  *bufio.Scanner
	analyzer *Analyzer
}

// Open opens the query file at path.
func Open(path string, opts Options) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("can't open query file %s: %w", path, err)
	}
	r, err := NewReader(f, opts)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	r.closer = f
	return r, nil
}

// NewReader reads queries from src.
func NewReader(src io.ReadSeeker, opts Options) (*Reader, error) {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	r := &Reader{src: src, format: format}
	if opts.Analyzer != "" {
		if r.analyzer, err = NewAnalyzer(opts.Analyzer); err != nil {
			return nil, err
		}
	}
	r.reset()
	return r, nil
}

func (r *Reader) reset() {
	r.scanner = bufio.NewScanner(r.src)
	r.scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	if r.format == FormatBasic {
		r.scanner.Split(bufio.ScanWords)
	}
}

// Reset restarts the stream from the first query.
func (r *Reader) Reset() error {
	if _, err := r.src.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to rewind query stream: %w", err)
	}
	r.reset()
	return nil
}

// Next returns the next query, or io.EOF when the stream is exhausted.
func (r *Reader) Next() (models.QueryDocument, error) {
	var q models.QueryDocument
	var err error
	if r.format == FormatLine {
		q, err = r.nextLine()
	} else {
		q, err = r.nextBasic()
	}
	if err != nil {
		return models.QueryDocument{}, err
	}
	if r.analyzer != nil {
		q.Terms, err = r.analyzer.Analyze(q.Terms)
		if err != nil {
			return models.QueryDocument{}, fmt.Errorf("query %s: %w", q.ID, err)
		}
	}
	return q, nil
}

// Close closes the underlying file when the reader was created by Open.
func (r *Reader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

func (r *Reader) scan() (string, bool, error) {
	if r.scanner.Scan() {
		return r.scanner.Text(), true, nil
	}
	return "", false, r.scanner.Err()
}

func (r *Reader) nextBasic() (models.QueryDocument, error) {
	tok, ok, err := r.scan()
	if err != nil {
		return models.QueryDocument{}, err
	}
	if !ok {
		return models.QueryDocument{}, io.EOF
	}
	if tok != "<DOC" {
		return models.QueryDocument{}, fmt.Errorf("expected <DOC, got %q", tok)
	}

	id, ok, err := r.scan()
	if err != nil {
		return models.QueryDocument{}, err
	}
	if !ok {
		return models.QueryDocument{}, io.ErrUnexpectedEOF
	}
	switch {
	case id == ">":
		return models.QueryDocument{}, errors.New("query without id")
	case strings.HasSuffix(id, ">"):
		id = strings.TrimSuffix(id, ">")
	default:
		closing, ok, err := r.scan()
		if err != nil {
			return models.QueryDocument{}, err
		}
		if !ok {
			return models.QueryDocument{}, io.ErrUnexpectedEOF
		}
		if closing != ">" {
			return models.QueryDocument{}, fmt.Errorf("query %s: expected >, got %q", id, closing)
		}
	}

	q := models.QueryDocument{ID: id}
	for {
		tok, ok, err := r.scan()
		if err != nil {
			return models.QueryDocument{}, err
		}
		if !ok {
			return models.QueryDocument{}, fmt.Errorf("query %s: %w before </DOC>", id, io.ErrUnexpectedEOF)
		}
		if tok == "</DOC>" {
			return q, nil
		}
		q.Terms = append(q.Terms, tok)
	}
}

func (r *Reader) nextLine() (models.QueryDocument, error) {
	for {
		line, ok, err := r.scan()
		if err != nil {
			return models.QueryDocument{}, err
		}
		if !ok {
			return models.QueryDocument{}, io.EOF
		}
		fields := strings.Fields(line)
		if len(fields) == 0 || strings.HasPrefix(fields[0], "#") {
			continue
		}
		return models.QueryDocument{ID: fields[0], Terms: fields[1:]}, nil
	}
}

// Analyzer normalizes query terms with a named bleve analyzer.
type Analyzer struct {
	name string
	im   *mapping.IndexMappingImpl
}

// NewAnalyzer looks up a registered bleve analyzer such as "standard" or "en".
func NewAnalyzer(name string) (*Analyzer, error) {
	im := bleve.NewIndexMapping()
	if im.AnalyzerNamed(name) == nil {
		return nil, fmt.Errorf("unknown query analyzer %q", name)
	}
	return &Analyzer{name: name, im: im}, nil
}

// Analyze runs the analyzer over the joined terms and returns the resulting tokens.
// Stop words disappear and the remaining terms are normalized.
func (a *Analyzer) Analyze(terms []string) ([]string, error) {
	if len(terms) == 0 {
		return terms, nil
	}
	tokens, err := a.im.AnalyzeText(a.name, []byte(strings.Join(terms, " ")))
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		out = append(out, string(tok.Term))
	}
	return out, nil
}
