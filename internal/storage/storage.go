// internal/storage/storage.go
package storage

import (
	"context"

	"github.com/auvmap/analyzer/pkg/core"
)

// Backend is the interface all report sinks must satisfy
type Backend interface {
	// Lifecycle
	Init() error
	Close() error

	// StoreReport persists one run. It may be called once per Init.
	StoreReport(ctx context.Context, p *core.ReportPayload) error
}

// Exporter is an optional interface for backends that produce a file the
// caller may want to point users at.
type Exporter interface {
	ExportedFilePath() string
}
