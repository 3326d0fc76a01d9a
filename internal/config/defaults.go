package config

import (
	"runtime"
	"time"

	"github.com/hyperjump/reteval/internal/accumulator"
	"github.com/hyperjump/reteval/internal/cli"
	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/querystream"
	"github.com/hyperjump/reteval/internal/ranking"
	"github.com/hyperjump/reteval/internal/search"
)

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Result == "" {
		cfg.Result = "res"
	}
	if cfg.WeightScheme == "" {
		cfg.WeightScheme = ranking.RawTF.String()
	}
	if cfg.ResultCount == 0 {
		cfg.ResultCount = search.DefaultResultCount
	}
	if cfg.RunTag == "" {
		cfg.RunTag = cli.DefaultRunTag
	}
	if cfg.ResultFormat == "" {
		cfg.ResultFormat = string(cli.ResultTREC)
	}
	if cfg.QueryFormat == "" {
		cfg.QueryFormat = string(querystream.FormatBasic)
	}
	if cfg.Accumulator == "" {
		cfg.Accumulator = string(accumulator.KindAuto)
	}
	if cfg.Workers == 0 {
		cfg.Workers = 1
	}
	if cfg.SuggestDistance == 0 {
		cfg.SuggestDistance = 2
	}
	if cfg.BleveField == "" {
		cfg.BleveField = index.DefaultBleveField
	}
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.DefaultLimit == 0 {
		cfg.Server.DefaultLimit = 10
	}
	if cfg.Server.MaxLimit == 0 {
		cfg.Server.MaxLimit = 1000
	}
	if cfg.Server.PoolSize == 0 {
		cfg.Server.PoolSize = runtime.GOMAXPROCS(0)
	}
	if cfg.Server.CacheSize == 0 {
		cfg.Server.CacheSize = 1024
	}
	if cfg.Watch.Debounce == 0 {
		cfg.Watch.Debounce = 500 * time.Millisecond
	}
}
