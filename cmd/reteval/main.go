// Package main is the reteval CLI entry point.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/hyperjump/reteval/internal/config"
	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/storage"
)

var version = "dev"

// defaultConfigName is picked up from the working directory when -config is not given.
const defaultConfigName = "reteval.yaml"

func main() {
	if len(os.Args) < 2 {
		printUsage(os.Stderr)
		os.Exit(1)
	}
	ctx := context.Background()
	command, args := os.Args[1], os.Args[2:]

	var err error
	switch command {
	case "run":
		err = runRun(ctx, args)
	case "watch":
		err = runWatch(ctx, args)
	case "serve":
		err = runServe(ctx, args)
	case "search":
		err = runSearch(ctx, args, os.Stdout)
	case "stats":
		err = runStats(ctx, args, os.Stdout)
	case "convert":
		err = runConvert(ctx, args)
	case "init":
		err = runInit(args, os.Stdout)
	case "version", "--version", "-v":
		fmt.Printf("reteval version %s\n", version)
	case "help", "--help", "-h":
		printUsage(os.Stdout)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", command)
		printUsage(os.Stderr)
		os.Exit(1)
	}
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "reteval %s: %v\n", command, err)
		os.Exit(1)
	}
}

// command is a subcommand's flag set: -config plus the config options it accepts.
type command struct {
	fs         *flag.FlagSet
	configPath *string
	overrides  *config.Overrides
}

func newCommand(name string, options ...string) *command {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	c := &command{fs: fs}
	c.configPath = fs.String("config", "", "config file path (default ./"+defaultConfigName+" when present)")
	c.overrides = config.BindFlags(fs, options...)
	return c
}

// load parses args, loads the config file and applies flag overrides on top of it.
// Returns the config and the path that was actually loaded ("" when none).
func (c *command) load(args []string) (*config.Config, string, error) {
	if err := c.fs.Parse(args); err != nil {
		return nil, "", err
	}
	cfg, path, err := loadConfig(*c.configPath)
	if err != nil {
		return nil, "", err
	}
	if err := c.overrides.Apply(cfg); err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// loadConfig loads path. When path is empty it falls back to reteval.yaml in the
// working directory, and to built-in defaults when that does not exist either.
func loadConfig(path string) (*config.Config, string, error) {
	if path == "" {
		if _, err := os.Stat(defaultConfigName); err != nil {
			return config.Default(), "", nil
		}
		path = defaultConfigName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, "", err
	}
	return cfg, path, nil
}

// indexDiskPaths lists the files that make up the index at path.
func indexDiskPaths(path string) []string {
	if backend, err := index.DetectBackend(path); err == nil && backend == index.BackendSQLite {
		return storage.IndexFiles(path)
	}
	return []string{path}
}

// buildSearchQuery joins all positional args with spaces so multi-word queries
// work the same with or without shell quoting.
func buildSearchQuery(args []string) string {
	return strings.TrimSpace(strings.Join(args, " "))
}

// searchArgsReorder moves any flags (and their values) that appear after the query
// to the front of the slice so that flag.Parse() sees them. Go's flag package
// stops at the first non-flag argument.
func searchArgsReorder(args []string) []string {
	for i, a := range args {
		if len(a) > 0 && a[0] == '-' {
			if i == 0 {
				return args
			}
			reordered := make([]string, 0, len(args))
			reordered = append(reordered, args[i:]...)
			reordered = append(reordered, args[:i]...)
			return reordered
		}
	}
	return args
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `reteval - ranked retrieval evaluation over a pre-built inverted index

Usage:
  reteval run [flags]              Score every query of a query file and write a result file
  reteval watch [flags]            Run, then run again whenever the query or config file changes
  reteval serve [flags]            Start the HTTP search API
  reteval search [flags] <query>   Score one ad-hoc query and print the ranking
  reteval stats [flags]            Show collection statistics
  reteval convert -out <db> [flags] Copy any readable index into a SQLite index file
  reteval init [-force] [path]     Write a default config file (default ./reteval.yaml)
  reteval version                  Show version
  reteval help                     Show this help

Every command accepts -config and the options below as flags; flags override the config file.

Options:
  -index string          Index path: a .db/.sqlite/.sqlite3 file or a bleve index directory
  -bleveField string     Field read from a bleve index (default: content)
  -query string          Query file (run, watch)
  -queryFormat string    basic (<DOC id> terms </DOC>) or line (id terms...) (default: basic)
  -queryAnalyzer string  Bleve analyzer applied to query text, e.g. standard or en
  -result string         Result file (default: res)
  -resultFormat string   trec, simple or json (default: trec)
  -runTag string         Run tag written in TREC results (default: reteval)
  -weightScheme string   RawTF, RawTFIDF, LogTFIDF, Okapi or Custom (default: RawTF)
  -resultCount int       Documents retained per query (default: 100)
  -truncateIDF           Truncate N/df to an integer before the logarithm
  -accumulator string    auto, array or map (default: auto)
  -workers int           Queries evaluated in parallel (default: 1)
  -debug                 Development logging
  -host, -port           HTTP listen address (serve)
  -debounce duration     Quiet period before re-running (watch)

Examples:
  reteval run -index ap89.db -query topics.51-100 -weightScheme Okapi -result okapi.res
  reteval watch -config eval.yaml
  reteval search -index ap89.db -weightScheme LogTFIDF airbus subsidies
  reteval search -output json -index ./bleve-index space station
  reteval convert -index ./bleve-index -out ap89.db
  reteval stats -index ap89.db -output json`)
}
