package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reteval/internal/cli"
	"github.com/hyperjump/reteval/internal/config"
	"github.com/hyperjump/reteval/internal/index"
	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/querystream"
	"github.com/hyperjump/reteval/internal/search"
	"github.com/hyperjump/reteval/internal/server"
	"github.com/hyperjump/reteval/internal/suggest"
	"github.com/hyperjump/reteval/pkg/utils"
)

func runServe(ctx context.Context, args []string) error {
	cmd := newCommand("serve",
		config.OptIndex, config.OptBleveField, config.OptQueryAnalyzer,
		config.OptWeightScheme, config.OptResultCount, config.OptTruncateIDF,
		config.OptAccumulator, config.OptSuggestDistance, config.OptDebug, config.OptHost, config.OptPort)
	cfg, cfgPath, err := cmd.load(args)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	logger, err := utils.NewLogger(cfg.Debug)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	logger.Info("config loaded", zap.String("config_path", cfgPath), zap.Bool("debug", cfg.Debug))

	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	opts, err := cfg.SearchOptions()
	if err != nil {
		return err
	}
	pool, err := search.NewPool(idx, opts, cfg.Server.PoolSize)
	if err != nil {
		return err
	}
	srvOpts := []server.Option{
		server.WithLogger(logger),
		server.WithDiskPaths(indexDiskPaths(cfg.Index)...),
		server.WithSuggestDistance(cfg.SuggestDistance),
	}
	if cfg.QueryAnalyzer != "" {
		a, err := querystream.NewAnalyzer(cfg.QueryAnalyzer)
		if err != nil {
			return err
		}
		srvOpts = append(srvOpts, server.WithAnalyzer(a))
	}
	srv := server.NewServer(pool, &cfg.Server, srvOpts...)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-sigCtx.Done()

	logger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Stop(shutdownCtx)
}

func runSearch(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := newCommand("search",
		config.OptIndex, config.OptBleveField, config.OptQueryAnalyzer,
		config.OptWeightScheme, config.OptResultCount, config.OptTruncateIDF,
		config.OptAccumulator, config.OptSuggestDistance, config.OptDebug)
	output := cmd.fs.String("output", "text", "output format: text or json")
	cfg, _, err := cmd.load(searchArgsReorder(args))
	if err != nil {
		return err
	}
	query := buildSearchQuery(cmd.fs.Args())
	if query == "" {
		return errors.New("usage: reteval search [flags] <query>")
	}
	format, err := outputFormat(*output)
	if err != nil {
		return err
	}
	if err := cfg.Validate(false); err != nil {
		return err
	}
	logger, err := quietLogger(cfg.Debug)
	if err != nil {
		return err
	}
	defer logger.Sync()

	idx, err := openIndex(ctx, cfg, logger)
	if err != nil {
		return err
	}
	response, err := searchOnce(ctx, cfg, idx, query)
	if err != nil {
		return err
	}
	return cli.WriteSearchResults(stdout, response, format)
}

// searchOnce scores a single ad-hoc query.
func searchOnce(ctx context.Context, cfg *config.Config, idx index.Index, query string) (*models.SearchResponse, error) {
	opts, err := cfg.SearchOptions()
	if err != nil {
		return nil, err
	}
	engine, err := search.NewEngine(idx, opts)
	if err != nil {
		return nil, err
	}
	terms := strings.Fields(query)
	if cfg.QueryAnalyzer != "" {
		a, err := querystream.NewAnalyzer(cfg.QueryAnalyzer)
		if err != nil {
			return nil, err
		}
		if terms, err = a.Analyze(terms); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	res, err := engine.Search(ctx, models.QueryDocument{ID: "adhoc", Terms: terms})
	if err != nil {
		return nil, err
	}
	resp := &models.SearchResponse{
		Query:        query,
		WeightScheme: engine.Scheme().String(),
		Results:      res.Documents,
		DroppedTerms: engine.Dropped(),
		QueryTime:    time.Since(start).Milliseconds(),
	}
	if vocab, ok := idx.(suggest.Vocabulary); ok && cfg.SuggestDistance >= 0 && len(resp.DroppedTerms) > 0 {
		resp.Suggestions = suggest.New(vocab, suggest.WithMaxDistance(cfg.SuggestDistance)).Best(resp.DroppedTerms)
	}
	return resp, nil
}

func outputFormat(name string) (cli.SearchOutputFormat, error) {
	switch cli.SearchOutputFormat(name) {
	case cli.OutputText, cli.OutputJSON:
		return cli.SearchOutputFormat(name), nil
	}
	return "", fmt.Errorf("unknown output format %q; use text or json", name)
}

// quietLogger keeps stderr clean for commands whose output is meant for stdout.
func quietLogger(debug bool) (*zap.Logger, error) {
	if !debug {
		return zap.NewNop(), nil
	}
	logger, err := utils.NewLogger(true)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return logger, nil
}
