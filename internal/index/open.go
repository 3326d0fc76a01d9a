package index

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/reteval/internal/models"
	"github.com/hyperjump/reteval/internal/storage"
)

// Backend names reported by Stats.
const (
	BackendSQLite = "sqlite"
	BackendBleve  = "bleve"
)

// Options configures Open.
type Options struct {
	// BleveField is the field read from bleve indexes. Defaults to DefaultBleveField.
	BleveField string
	Logger     *zap.Logger
}

// DetectBackend reports which backend serves path: SQLite for *.db, *.sqlite and *.sqlite3
// files, bleve for directories containing index_meta.json.
func DetectBackend(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", err
	}
	if info.IsDir() {
		if _, err := os.Stat(filepath.Join(path, "index_meta.json")); err != nil {
			return "", fmt.Errorf("%s is not a bleve index directory", path)
		}
		return BackendBleve, nil
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".db", ".sqlite", ".sqlite3":
		return BackendSQLite, nil
	}
	return "", fmt.Errorf("unsupported index file %s", path)
}

// Open loads the index at path fully into memory.
func Open(ctx context.Context, path string, opts Options) (*Memory, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	backend, err := DetectBackend(path)
	if err != nil {
		return nil, fmt.Errorf("can't open index %s: %w", path, err)
	}

	var (
		c       *models.Collection
		savedAt time.Time
	)
	switch backend {
	case BackendSQLite:
		c, savedAt, err = loadSQLite(ctx, path)
	case BackendBleve:
		c, err = OpenBleve(ctx, path, opts.BleveField)
	}
	if err != nil {
		return nil, fmt.Errorf("can't open index %s: %w", path, err)
	}

	m, err := NewMemory(c)
	if err != nil {
		return nil, fmt.Errorf("can't open index %s: %w", path, err)
	}
	m.backend = backend
	m.savedAt = savedAt

	st := m.Stats()
	if st.Terms == 0 {
		logger.Warn("index has an empty vocabulary", zap.String("path", path), zap.String("backend", backend))
	}
	logger.Info("index loaded",
		zap.String("path", path),
		zap.String("backend", backend),
		zap.Int("documents", st.Documents),
		zap.Int("terms", st.Terms),
		zap.Int("postings", st.Postings),
	)
	return m, nil
}

func loadSQLite(ctx context.Context, path string) (*models.Collection, time.Time, error) {
	store, err := storage.OpenSQLiteStorage(path)
	if err != nil {
		return nil, time.Time{}, err
	}
	defer store.Close()
	c, err := store.LoadCollection(ctx)
	if err != nil {
		return nil, time.Time{}, err
	}
	savedAt, err := store.SavedAt(ctx)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("failed to read metadata: %w", err)
	}
	return c, savedAt, nil
}
