// Package postgres implements the storage.Backend interface using GORM/PostgreSQL.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/auvmap/analyzer/internal/database"
	gormstorage "github.com/auvmap/analyzer/internal/storage/gorm"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/rs/zerolog"
)

// Backend connects on Init and delegates writes to the GORM backend.
type Backend struct {
	dsn     string
	manager *database.Manager
	store   *gormstorage.Backend
	log     *slog.Logger
}

// New creates a Postgres backend. An empty dsn is built from the db.* config keys.
func New(dsn string, logger *slog.Logger, dbLog zerolog.Logger) *Backend {
	if dsn == "" {
		dsn = database.PostgresDSN()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{
		dsn:     dsn,
		manager: database.NewManager(dbLog),
		log:     logger,
	}
}

// Init connects to Postgres and migrates the report schema.
func (b *Backend) Init() error {
	if err := b.manager.ConnectPostgres(b.dsn); err != nil {
		return err
	}
	store := gormstorage.New(gormstorage.Dependencies{DB: b.manager.DB, Logger: b.log})
	if err := store.Init(); err != nil {
		return fmt.Errorf("failed to setup DB: %w", err)
	}
	b.store = store
	return nil
}

// StoreReport writes p. Init must have succeeded.
func (b *Backend) StoreReport(ctx context.Context, p *core.ReportPayload) error {
	if b.store == nil {
		return fmt.Errorf("postgres backend: %w", database.ErrNotConnected)
	}
	return b.store.StoreReport(ctx, p)
}

// Close closes the connection pool.
func (b *Backend) Close() error {
	return b.manager.Close()
}
