package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"go.uber.org/zap"

	"github.com/hyperjump/reteval/internal/cli"
	"github.com/hyperjump/reteval/internal/config"
	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/querystream"
	"github.com/hyperjump/reteval/internal/search"
	"github.com/hyperjump/reteval/internal/watcher"
	"github.com/hyperjump/reteval/pkg/utils"
)

var runOptions = []string{
	config.OptIndex, config.OptBleveField,
	config.OptQuery, config.OptQueryFormat, config.OptQueryAnalyzer,
	config.OptResult, config.OptResultFormat, config.OptRunTag,
	config.OptWeightScheme, config.OptResultCount, config.OptTruncateIDF,
	config.OptAccumulator, config.OptWorkers, config.OptDebug,
}

func runRun(ctx context.Context, args []string) error {
	cmd := newCommand("run", runOptions...)
	cfg, cfgPath, err := cmd.load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger.Debug("config loaded", zap.String("config_path", cfgPath), zap.Any("config", cfg))

	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	_, err = evaluate(ctx, cfg, idx, logger)
	return err
}

func openIndex(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*index.Memory, error) {
	return index.Open(ctx, cfg.Index, index.Options{BleveField: cfg.BleveField, Logger: logger})
}

// evaluate scores every query of cfg.Query against idx and writes cfg.Result.
// Option and resource errors are reported before the result file is touched.
func evaluate(ctx context.Context, cfg *config.Config, idx index.Index, logger *zap.Logger) (search.Summary, error) {
	opts, err := cfg.SearchOptions()
	if err != nil {
		return search.Summary{}, err
	}
	runner, err := search.NewRunner(idx, opts, search.WithWorkers(cfg.Workers), search.WithLogger(logger))
	if err != nil {
		return search.Summary{}, err
	}
	format, err := cli.ParseResultFormat(cfg.ResultFormat)
	if err != nil {
		return search.Summary{}, err
	}
	src, err := querystream.Open(cfg.Query, cfg.QueryOptions())
	if err != nil {
		return search.Summary{}, err
	}
	defer src.Close()

	out, err := cli.CreateResultFile(cfg.Result, format, cfg.RunTag)
	if err != nil {
		return search.Summary{}, err
	}
	sum, runErr := runner.Run(ctx, src, out)
	if err := out.Close(); err != nil && runErr == nil {
		runErr = fmt.Errorf("failed to write results %s: %w", cfg.Result, err)
	}
	if runErr == nil {
		logger.Info("results written", zap.String("path", cfg.Result), zap.Int("queries", sum.Queries))
	}
	return sum, runErr
}

func runWatch(ctx context.Context, args []string) error {
	cmd := newCommand("watch", append(runOptions, config.OptDebounce)...)
	cfg, cfgPath, err := cmd.load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()

	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	session := &watchSession{overrides: cmd.overrides, cfg: cfg, idx: idx, logger: logger}
	if cfgPath != "" {
		if session.cfgPath, err = filepath.Abs(cfgPath); err != nil {
			return err
		}
	}
	if _, err := evaluate(ctx, cfg, idx, logger); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	session.watch = watcher.NewWatcher(session.files(), func(path string) { session.handle(ctx, path) },
		watcher.WithLogger(logger), watcher.WithDebounce(cfg.Watch.Debounce))
	if err := session.watch.Start(ctx); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}
	logger.Info("watching for changes", zap.Strings("files", session.watch.Files()))
	<-ctx.Done()
	session.watch.Stop()
	logger.Info("Shutting down...")
	return nil
}

// watchSession re-runs an evaluation when the query or config file changes.
type watchSession struct {
	overrides *config.Overrides
	cfgPath   string
	watch     *watcher.Watcher
	logger    *zap.Logger

	mu  sync.Mutex
	cfg *config.Config
	idx *index.Memory
}

func (s *watchSession) files() []string {
	files := []string{s.cfg.Query}
	if s.cfgPath != "" {
		files = append(files, s.cfgPath)
	}
	return files
}

// handle reloads the config when it changed, then runs again. Failures are
// logged and the previous config stays in effect.
func (s *watchSession) handle(ctx context.Context, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cfgPath != "" && path == s.cfgPath {
		if err := s.reload(ctx); err != nil {
			s.logger.Error("config reload failed; keeping previous config", zap.String("path", path), zap.Error(err))
			return
		}
	}
	s.logger.Info("change detected, running again", zap.String("path", path))
	if _, err := evaluate(ctx, s.cfg, s.idx, s.logger); err != nil {
		s.logger.Error("run failed", zap.Error(err))
	}
}

func (s *watchSession) reload(ctx context.Context) error {
	cfg, err := config.Load(s.cfgPath)
	if err != nil {
		return err
	}
	if err := s.overrides.Apply(cfg); err != nil {
		return err
	}
	if err := cfg.Validate(true); err != nil {
		return err
	}
	if cfg.Index != s.cfg.Index || cfg.BleveField != s.cfg.BleveField {
		idx, err := openIndex(ctx, cfg, s.logger)
		if err != nil {
			return err
		}
		s.idx = idx
	}
	if cfg.Query != s.cfg.Query && s.watch != nil {
		if err := s.watch.AddFile(cfg.Query); err != nil {
			return err
		}
		if err := s.watch.RemoveFile(s.cfg.Query); err != nil {
			s.logger.Warn("failed to stop watching old query file", zap.Error(err))
		}
	}
	s.cfg = cfg
	s.logger.Info("config reloaded", zap.String("path", s.cfgPath), zap.String("weight_scheme", cfg.WeightScheme))
	return nil
}
