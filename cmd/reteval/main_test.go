package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/blevesearch/bleve/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/reteval/internal/config"
	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/ranking"
	"github.com/hyperjump/reteval/internal/storage"
)

func fixtureCollection() *models.Collection {
	return &models.Collection{
		Terms: []string{"apple", "banana", "cherry"},
		Documents: []models.DocumentInfo{
			{Name: "d1", Length: 6},
			{Name: "d2", Length: 4},
			{Name: "d3", Length: 8},
			{Name: "d4", Length: 2},
		},
		Postings: [][]models.Posting{
			{{DocID: 1, TermFreq: 2}, {DocID: 2, TermFreq: 1}, {DocID: 3, TermFreq: 4}},
			{{DocID: 2, TermFreq: 3}, {DocID: 4, TermFreq: 1}},
			{{DocID: 3, TermFreq: 1}},
		},
	}
}

const fixtureQueries = `<DOC 1>
apple banana kiwi
</DOC>
<DOC 2>
cherry
</DOC>
`

// writeFixture stores the fixture collection in a SQLite index and writes a query file.
func writeFixture(t *testing.T, dir string) (dbPath, queryPath string) {
	t.Helper()
	dbPath = filepath.Join(dir, "fruit.db")
	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	if err := store.SaveCollection(context.Background(), fixtureCollection()); err != nil {
		t.Fatal(err)
	}
	if err := store.Close(); err != nil {
		t.Fatal(err)
	}
	queryPath = filepath.Join(dir, "queries.txt")
	if err := os.WriteFile(queryPath, []byte(fixtureQueries), 0644); err != nil {
		t.Fatal(err)
	}
	return dbPath, queryPath
}

func readLines(t *testing.T, path string) []string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return strings.Split(strings.TrimRight(string(data), "\n"), "\n")
}

func TestRun_EndToEnd(t *testing.T) {
	dir := t.TempDir()
	db, queries := writeFixture(t, dir)
	res := filepath.Join(dir, "out", "res")

	err := runRun(context.Background(), []string{"-index", db, "-query", queries, "-result", res})
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"1 Q0 d2 1 4.000000 reteval",
		"1 Q0 d3 2 4.000000 reteval",
		"1 Q0 d1 3 2.000000 reteval",
		"1 Q0 d4 4 1.000000 reteval",
		"2 Q0 d3 1 1.000000 reteval",
		"2 Q0 d1 2 0.000000 reteval",
		"2 Q0 d2 3 0.000000 reteval",
		"2 Q0 d4 4 0.000000 reteval",
	}
	if got := readLines(t, res); !reflect.DeepEqual(got, want) {
		t.Errorf("result file:\n%s\nwant:\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
}

func TestRun_ConfigFileWithOverrides(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfgPath := filepath.Join(dir, "eval.yaml")
	body := "index: ./fruit.db\nquery: ./queries.txt\nresult: ./custom.res\nweightScheme: Custom\nrunTag: fromfile\n"
	if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}

	err := runRun(context.Background(), []string{"-config", cfgPath, "-resultCount", "1", "-resultFormat", "simple"})
	if err != nil {
		t.Fatal(err)
	}
	// Custom: d2 has apple 1/3 plus banana 3/2, divided by length 4
	got := readLines(t, filepath.Join(dir, "custom.res"))
	want := []string{"1 d2 0.458333", "2 d3 0.125000"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("result file = %q, want %q", got, want)
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	dir := t.TempDir()
	db, queries := writeFixture(t, dir)
	seq := filepath.Join(dir, "seq.res")
	par := filepath.Join(dir, "par.res")
	base := []string{"-index", db, "-query", queries, "-weightScheme", "Okapi"}

	if err := runRun(context.Background(), append(base, "-result", seq)); err != nil {
		t.Fatal(err)
	}
	if err := runRun(context.Background(), append(base, "-result", par, "-workers", "4", "-accumulator", "map")); err != nil {
		t.Fatal(err)
	}
	if a, b := readLines(t, seq), readLines(t, par); !reflect.DeepEqual(a, b) {
		t.Errorf("parallel output differs:\n%v\n%v", a, b)
	}
}

func TestRun_FailsBeforeWritingResults(t *testing.T) {
	dir := t.TempDir()
	db, queries := writeFixture(t, dir)
	res := filepath.Join(dir, "res")
	foreign := filepath.Join(dir, "other.db")
	other, err := sql.Open("sqlite3", foreign)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Exec(`CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT)`); err != nil {
		t.Fatal(err)
	}
	_ = other.Close()

	tests := []struct {
		name    string
		args    []string
		wantIs  error
		wantMsg string
	}{
		{"unknown scheme", []string{"-index", db, "-query", queries, "-weightScheme", "BM25"}, ranking.ErrUnknownScheme, ""},
		{"missing index option", []string{"-query", queries}, config.ErrMissingOption, ""},
		{"zero result count", []string{"-index", db, "-query", queries, "-resultCount", "0"}, config.ErrInvalidOption, ""},
		{"index not found", []string{"-index", filepath.Join(dir, "nope.db"), "-query", queries}, nil, "can't open index"},
		{"not an index", []string{"-index", foreign, "-query", queries}, storage.ErrNotIndex, "can't open index"},
		{"query file not found", []string{"-index", db, "-query", filepath.Join(dir, "nope.txt")}, nil, "can't open query file"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runRun(context.Background(), append(tt.args, "-result", res))
			if err == nil {
				t.Fatal("expected an error")
			}
			if tt.wantIs != nil && !errors.Is(err, tt.wantIs) {
				t.Errorf("error = %v, want %v", err, tt.wantIs)
			}
			if tt.wantMsg != "" && !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error = %v, want it to mention %q", err, tt.wantMsg)
			}
			if _, statErr := os.Stat(res); !errors.Is(statErr, os.ErrNotExist) {
				t.Error("result file was created despite the error")
			}
		})
	}
}

func TestSearch_JSONOutput(t *testing.T) {
	dir := t.TempDir()
	db, _ := writeFixture(t, dir)
	var out bytes.Buffer
	err := runSearch(context.Background(), []string{"banana", "kiwi", "-index", db, "-output", "json", "-resultCount", "2"}, &out)
	if err != nil {
		t.Fatal(err)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatalf("output is not JSON: %v\n%s", err, out.String())
	}
	if resp.Query != "banana kiwi" || resp.WeightScheme != "RawTF" {
		t.Errorf("response = %+v", resp)
	}
	if len(resp.Results) != 2 || resp.Results[0].Name != "d2" || resp.Results[1].Name != "d4" {
		t.Errorf("results = %+v", resp.Results)
	}
	if !reflect.DeepEqual(resp.DroppedTerms, []string{"kiwi"}) {
		t.Errorf("dropped = %v", resp.DroppedTerms)
	}

	if err := runSearch(context.Background(), []string{"-index", db}, &out); err == nil {
		t.Error("expected usage error without a query")
	}
	if err := runSearch(context.Background(), []string{"-index", db, "-output", "xml", "apple"}, &out); err == nil {
		t.Error("expected error for unknown output format")
	}
}

func TestStatsAndConvertFromBleve(t *testing.T) {
	dir := t.TempDir()
	bleveDir := filepath.Join(dir, "bleve")
	bi, err := bleve.New(bleveDir, bleve.NewIndexMapping())
	if err != nil {
		t.Fatal(err)
	}
	docs := map[string]string{
		"a-doc": "space station orbit",
		"b-doc": "station station wagon",
		"c-doc": "orbit",
	}
	for id, text := range docs {
		if err := bi.Index(id, map[string]interface{}{"content": text}); err != nil {
			t.Fatal(err)
		}
	}
	if err := bi.Close(); err != nil {
		t.Fatal(err)
	}

	db := filepath.Join(dir, "converted.db")
	if err := runConvert(context.Background(), []string{"-index", bleveDir, "-out", db}); err != nil {
		t.Fatal(err)
	}

	var out bytes.Buffer
	if err := runStats(context.Background(), []string{"-index", db, "-output", "json"}, &out); err != nil {
		t.Fatal(err)
	}
	var st map[string]interface{}
	if err := json.Unmarshal(out.Bytes(), &st); err != nil {
		t.Fatal(err)
	}
	if st["documents"] != float64(3) || st["terms"] != float64(4) || st["backend"] != "sqlite" {
		t.Errorf("stats = %v", st)
	}
	if st["disk_bytes"].(float64) <= 0 {
		t.Errorf("disk_bytes = %v", st["disk_bytes"])
	}

	out.Reset()
	if err := runSearch(context.Background(), []string{"-index", db, "-output", "json", "station"}, &out); err != nil {
		t.Fatal(err)
	}
	var resp models.SearchResponse
	if err := json.Unmarshal(out.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Results) == 0 || resp.Results[0].Name != "b-doc" || resp.Results[0].Score != 2 {
		t.Errorf("results = %+v", resp.Results)
	}

	if err := runConvert(context.Background(), []string{"-index", bleveDir}); !errors.Is(err, config.ErrMissingOption) {
		t.Errorf("convert without -out: %v", err)
	}
}

func TestInit(t *testing.T) {
	path := filepath.Join(t.TempDir(), "reteval.yaml")
	var out bytes.Buffer
	if err := runInit([]string{path}, &out); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(out.String(), path) {
		t.Errorf("output = %q", out.String())
	}
	if err := runInit([]string{path}, &out); err == nil {
		t.Error("expected error when the file exists")
	}
	if err := runInit([]string{"-force", path}, &out); err != nil {
		t.Errorf("-force: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Index != filepath.Join(filepath.Dir(path), "index.db") || cfg.WeightScheme != "RawTF" {
		t.Errorf("loaded = %+v", cfg)
	}
}

func TestLoadConfig_FallsBackToWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	cfg, path, err := loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if path != "" || cfg.ResultCount != 100 {
		t.Errorf("without a config file: path=%q cfg=%+v", path, cfg)
	}

	if err := os.WriteFile(defaultConfigName, []byte("weightScheme: LogTFIDF\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, path, err = loadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if path != defaultConfigName || cfg.WeightScheme != "LogTFIDF" {
		t.Errorf("with %s: path=%q cfg=%+v", defaultConfigName, path, cfg)
	}
}

func TestWatchSession_ReloadsConfig(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir)
	cfgPath := filepath.Join(dir, "eval.yaml")
	write := func(body string) {
		t.Helper()
		if err := os.WriteFile(cfgPath, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
	}
	write("index: ./fruit.db\nquery: ./queries.txt\nresult: ./watch.res\nresultCount: 1\n")

	cfg, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	logger := zap.NewNop()
	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		t.Fatal(err)
	}
	cmd := newCommand("watch", runOptions...)
	if err := cmd.fs.Parse(nil); err != nil {
		t.Fatal(err)
	}
	s := &watchSession{overrides: cmd.overrides, cfgPath: cfgPath, cfg: cfg, idx: idx, logger: logger}
	res := filepath.Join(dir, "watch.res")

	s.handle(ctx, filepath.Join(dir, "queries.txt"))
	if got := readLines(t, res); got[0] != "1 Q0 d2 1 4.000000 reteval" {
		t.Errorf("first run = %v", got)
	}

	write("index: ./fruit.db\nquery: ./queries.txt\nresult: ./watch.res\nresultCount: 1\nweightScheme: Custom\n")
	s.handle(ctx, cfgPath)
	if got := readLines(t, res); got[0] != "1 Q0 d2 1 0.458333 reteval" {
		t.Errorf("after reload = %v", got)
	}

	write("weightScheme: Nope\n")
	s.handle(ctx, cfgPath)
	if s.cfg.WeightScheme != "Custom" {
		t.Errorf("invalid config replaced the previous one: %+v", s.cfg)
	}
}

func TestSearchArgsReorder(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected []string
	}{
		{
			name:     "flags after query are moved first",
			args:     []string{"airbus subsidies", "-weightScheme", "Okapi"},
			expected: []string{"-weightScheme", "Okapi", "airbus subsidies"},
		},
		{
			name:     "flags first returns unchanged",
			args:     []string{"-weightScheme", "Okapi", "airbus subsidies"},
			expected: []string{"-weightScheme", "Okapi", "airbus subsidies"},
		},
		{
			name:     "query only returns unchanged",
			args:     []string{"airbus subsidies"},
			expected: []string{"airbus subsidies"},
		},
		{
			name:     "empty args returns unchanged",
			args:     []string{},
			expected: []string{},
		},
		{
			name:     "multiple positionals then flags",
			args:     []string{"space", "station", "-resultCount", "5"},
			expected: []string{"-resultCount", "5", "space", "station"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := searchArgsReorder(tt.args)
			if !reflect.DeepEqual(got, tt.expected) {
				t.Errorf("searchArgsReorder() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestBuildSearchQuery(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		expected string
	}{
		{"single word", []string{"airbus"}, "airbus"},
		{"multiple words", []string{"airbus", "subsidies"}, "airbus subsidies"},
		{"single quoted phrase", []string{"airbus subsidies"}, "airbus subsidies"},
		{"empty args", []string{}, ""},
		{"blank args", []string{"  ", "  "}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := buildSearchQuery(tt.args)
			if got != tt.expected {
				t.Errorf("buildSearchQuery(%v) = %q, want %q", tt.args, got, tt.expected)
			}
		})
	}
}
