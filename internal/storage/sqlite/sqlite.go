// Package sqlitestorage writes report payloads to a SQLite file. Rows are
// built in an in-memory database and written out with VACUUM INTO once the
// run is stored, so a failed run never leaves a partial file behind.
package sqlitestorage

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/auvmap/analyzer/internal/database"
	gormstorage "github.com/auvmap/analyzer/internal/storage/gorm"
	"github.com/auvmap/analyzer/internal/util"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/rs/zerolog"
)

// Config holds configuration for the SQLite storage backend.
type Config struct {
	// Path of the report file. Empty writes report_<timestamp>.db in OutputDir.
	Path      string
	OutputDir string
}

// Backend wraps the GORM backend for SQLite-specific behavior.
type Backend struct {
	*gormstorage.Backend
	manager  *database.Manager
	cfg      Config
	log      *slog.Logger
	dumpPath string
}

// New creates a new SQLite storage backend over an in-memory database.
func New(cfg Config, logger *slog.Logger, dbLog zerolog.Logger) (*Backend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	manager := database.NewManager(dbLog)
	if err := manager.ConnectSqlite(""); err != nil {
		return nil, fmt.Errorf("failed to create in-memory SQLite DB: %w", err)
	}

	return &Backend{
		Backend: gormstorage.New(gormstorage.Dependencies{DB: manager.DB, Logger: logger}),
		manager: manager,
		cfg:     cfg,
		log:     logger,
	}, nil
}

// StoreReport stores p in memory and then dumps the database to disk.
func (b *Backend) StoreReport(ctx context.Context, p *core.ReportPayload) error {
	if err := b.Backend.StoreReport(ctx, p); err != nil {
		return err
	}

	path := b.cfg.Path
	if path == "" {
		name := fmt.Sprintf("report_%s.db", p.GeneratedAt.Format("20060102_150405"))
		path = filepath.Join(b.cfg.OutputDir, util.SafeFileName(name))
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}
	if err := b.manager.DumpMemoryToDisk(path); err != nil {
		return err
	}
	b.dumpPath = path
	b.log.Info("SQLite report written", "path", path)
	return nil
}

// ExportedFilePath returns the path of the last written report file.
func (b *Backend) ExportedFilePath() string {
	return b.dumpPath
}

// Close closes the in-memory database.
func (b *Backend) Close() error {
	if err := b.Backend.Close(); err != nil {
		return err
	}
	return b.manager.Close()
}
