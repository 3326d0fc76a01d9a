package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"github.com/hyperjump/reteval/internal/cli"
	"github.com/hyperjump/reteval/internal/config"
	"github.com/hyperjump/reteval/internal/storage"
)

func runStats(ctx context.Context, args []string, stdout io.Writer) error {
	cmd := newCommand("stats", config.OptIndex, config.OptBleveField, config.OptDebug)
	output := cmd.fs.String("output", "text", "output format: text or json")
	cfg, _, err := cmd.load(args)
	if err != nil {
		return err
	}
	if cfg.Index == "" {
		return fmt.Errorf("%w: index", config.ErrMissingOption)
	}
	format, err := outputFormat(*output)
	if err != nil {
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
	diskBytes, err := storage.DiskUsageBytes(indexDiskPaths(cfg.Index)...)
	if err != nil {
		logger.Warn("disk usage failed", zap.Error(err))
	}
	return cli.WriteStats(stdout, idx.Stats(), diskBytes, format)
}

// runConvert copies the collection of any readable index into a SQLite index file.
func runConvert(ctx context.Context, args []string) error {
	cmd := newCommand("convert", config.OptIndex, config.OptBleveField, config.OptDebug)
	out := cmd.fs.String("out", "", "SQLite index file to write")
	cfg, _, err := cmd.load(args)
	if err != nil {
		return err
	}
	if cfg.Index == "" {
		return fmt.Errorf("%w: index", config.ErrMissingOption)
	}
	if *out == "" {
		return fmt.Errorf("%w: out", config.ErrMissingOption)
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
	store, err := storage.NewSQLiteStorage(*out)
	if err != nil {
		return err
	}
	if err := store.SaveCollection(ctx, idx.Collection()); err != nil {
		_ = store.Close()
		return err
	}
	if err := store.Close(); err != nil {
		return err
	}
	st := idx.Stats()
	logger.Info("index converted",
		zap.String("from", cfg.Index),
		zap.String("to", *out),
		zap.Int("documents", st.Documents),
		zap.Int("terms", st.Terms))
	return nil
}

// runInit writes a config file holding every default.
func runInit(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	force := fs.Bool("force", false, "overwrite an existing file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	path := defaultConfigName
	if fs.NArg() > 0 {
		path = fs.Arg(0)
	}
	if _, err := os.Stat(path); err == nil && !*force {
		return fmt.Errorf("%s already exists (use -force to overwrite)", path)
	} else if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	cfg := config.Default()
	cfg.Index = "./index.db"
	cfg.Query = "./queries.txt"
	cfg.Result = "./res"
	if err := config.Save(path, cfg); err != nil {
		return err
	}
	fmt.Fprintf(stdout, "Wrote %s\n", path)
	return nil
}
