package config

import (
	"flag"
	"fmt"
	"strconv"
	"time"
)

// Option names accepted by Set and BindFlags. They match the YAML keys.
const (
	OptIndex           = "index"
	OptBleveField      = "bleveField"
	OptQuery           = "query"
	OptQueryFormat     = "queryFormat"
	OptQueryAnalyzer   = "queryAnalyzer"
	OptResult          = "result"
	OptResultFormat    = "resultFormat"
	OptRunTag          = "runTag"
	OptWeightScheme    = "weightScheme"
	OptResultCount     = "resultCount"
	OptTruncateIDF     = "truncateIDF"
	OptAccumulator     = "accumulator"
	OptWorkers         = "workers"
	OptSuggestDistance = "suggestDistance"
	OptDebug           = "debug"
	OptHost            = "host"
	OptPort            = "port"
	OptDebounce        = "debounce"
)

var usage = map[string]string{
	OptIndex:           "index path (.db/.sqlite file or bleve directory)",
	OptBleveField:      "field read from a bleve index",
	OptQuery:           "query file",
	OptQueryFormat:     "query file format: basic or line",
	OptQueryAnalyzer:   "bleve analyzer applied to query text",
	OptResult:          "result file",
	OptResultFormat:    "result format: trec, simple or json",
	OptRunTag:          "run tag written in TREC results",
	OptWeightScheme:    "RawTF, RawTFIDF, LogTFIDF, Okapi or Custom",
	OptResultCount:     "documents retained per query",
	OptTruncateIDF:     "truncate the N/df ratio to an integer",
	OptAccumulator:     "score accumulator: auto, array or map",
	OptWorkers:         "queries evaluated in parallel",
	OptSuggestDistance: "edit distance for did-you-mean suggestions, negative disables",
	OptDebug:           "development logging",
	OptHost:            "HTTP listen host",
	OptPort:            "HTTP listen port",
	OptDebounce:        "delay before re-running after a change",
}

var boolOptions = map[string]bool{OptTruncateIDF: true, OptDebug: true}

// Set assigns a single option from its string form.
func (c *Config) Set(name, value string) error {
	var err error
	switch name {
	case OptIndex:
		c.Index = value
	case OptBleveField:
		c.BleveField = value
	case OptQuery:
		c.Query = value
	case OptQueryFormat:
		c.QueryFormat = value
	case OptQueryAnalyzer:
		c.QueryAnalyzer = value
	case OptResult:
		c.Result = value
	case OptResultFormat:
		c.ResultFormat = value
	case OptRunTag:
		c.RunTag = value
	case OptWeightScheme:
		c.WeightScheme = value
	case OptResultCount:
		c.ResultCount, err = strconv.Atoi(value)
	case OptTruncateIDF:
		c.TruncateIDF, err = strconv.ParseBool(value)
	case OptAccumulator:
		c.Accumulator = value
	case OptWorkers:
		c.Workers, err = strconv.Atoi(value)
	case OptSuggestDistance:
		c.SuggestDistance, err = strconv.Atoi(value)
	case OptDebug:
		c.Debug, err = strconv.ParseBool(value)
	case OptHost:
		c.Server.Host = value
	case OptPort:
		c.Server.Port, err = strconv.Atoi(value)
	case OptDebounce:
		c.Watch.Debounce, err = time.ParseDuration(value)
	default:
		return fmt.Errorf("%w: unknown option %q", ErrInvalidOption, name)
	}
	if err != nil {
		return fmt.Errorf("%w: %s=%q: %w", ErrInvalidOption, name, value, err)
	}
	return nil
}

// Overrides collects option flags registered on a FlagSet.
type Overrides struct {
	fs    *flag.FlagSet
	names map[string]bool
}

// BindFlags registers one flag per option name on fs. Flags carry no default so
// that only the ones given on the command line override the config file.
func BindFlags(fs *flag.FlagSet, names ...string) *Overrides {
	o := &Overrides{fs: fs, names: make(map[string]bool, len(names))}
	for _, name := range names {
		o.names[name] = true
		if boolOptions[name] {
			fs.Bool(name, false, usage[name])
			continue
		}
		fs.String(name, "", usage[name])
	}
	return o
}

// Apply copies every bound flag that was set after fs.Parse into cfg.
func (o *Overrides) Apply(cfg *Config) error {
	var firstErr error
	o.fs.Visit(func(f *flag.Flag) {
		if firstErr != nil || !o.names[f.Name] {
			return
		}
		firstErr = cfg.Set(f.Name, f.Value.String())
	})
	return firstErr
}
