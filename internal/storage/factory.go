// internal/storage/factory.go
package storage

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/auvmap/analyzer/internal/config"
	filestorage "github.com/auvmap/analyzer/internal/storage/file"
	"github.com/auvmap/analyzer/internal/storage/postgres"
	sqlitestorage "github.com/auvmap/analyzer/internal/storage/sqlite"
	"github.com/rs/zerolog"
)

// NewBackend creates a storage backend of the given type.
func NewBackend(kind string, cfg config.StorageConfig, logger *slog.Logger, dbLog zerolog.Logger) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "file":
		return filestorage.New(filestorage.Config{
			OutputDir:      cfg.OutputDir,
			CompressOutput: cfg.File.CompressOutput,
			WriteCSV:       cfg.File.WriteCSV,
		}, logger), nil
	case "sqlite":
		return sqlitestorage.New(sqlitestorage.Config{
			Path:      cfg.SQLite.Path,
			OutputDir: cfg.OutputDir,
		}, logger, dbLog)
	case "postgres":
		return postgres.New("", logger, dbLog), nil
	default:
		return nil, fmt.Errorf("unknown storage type: %s", kind)
	}
}

// Kinds returns the configured storage types, normalized and without
// duplicates, in configuration order.
func Kinds(cfg config.StorageConfig) []string {
	seen := make(map[string]bool, len(cfg.Types))
	var kinds []string
	for _, kind := range cfg.Types {
		key := strings.ToLower(strings.TrimSpace(kind))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		kinds = append(kinds, key)
	}
	return kinds
}

// NewBackends creates one backend per entry of Kinds(cfg), in the same
// order.
func NewBackends(cfg config.StorageConfig, logger *slog.Logger, dbLog zerolog.Logger) ([]Backend, error) {
	var backends []Backend
	for _, kind := range Kinds(cfg) {
		b, err := NewBackend(kind, cfg, logger, dbLog)
		if err != nil {
			for _, created := range backends {
				created.Close()
			}
			return nil, err
		}
		backends = append(backends, b)
	}
	return backends, nil
}
