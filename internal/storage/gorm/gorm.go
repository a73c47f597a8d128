// Package gormstorage stores report payloads through GORM. It is shared by
// the sqlite and postgres backends, which only differ in how the *gorm.DB
// is opened.
package gormstorage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/auvmap/analyzer/internal/model"
	"github.com/auvmap/analyzer/internal/model/convert"
	"github.com/auvmap/analyzer/pkg/core"

	"gorm.io/gorm"
)

// DefaultBatchSize bounds the rows per INSERT for samples and pair errors.
const DefaultBatchSize = 1000

// ErrDuplicateRun is returned when a payload's run id is already stored.
var ErrDuplicateRun = errors.New("run already stored")

// Dependencies holds all dependencies for the GORM storage backend.
type Dependencies struct {
	DB        *gorm.DB
	Logger    *slog.Logger
	BatchSize int
}

// Backend writes report payloads into the report schema.
type Backend struct {
	deps    Dependencies
	dbReady bool
}

// New creates a new GORM storage backend.
func New(deps Dependencies) *Backend {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.BatchSize <= 0 {
		deps.BatchSize = DefaultBatchSize
	}
	return &Backend{deps: deps}
}

// Init migrates the report schema.
func (b *Backend) Init() error {
	if b.deps.DB == nil {
		return fmt.Errorf("gorm backend: no database")
	}
	if err := b.deps.DB.AutoMigrate(model.DatabaseModels...); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	b.dbReady = true
	return nil
}

// Close is a no-op; the owner of the *gorm.DB closes it.
func (b *Backend) Close() error {
	return nil
}

// DB returns the underlying database.
func (b *Backend) DB() *gorm.DB {
	return b.deps.DB
}

// StoreReport writes p in a single transaction.
func (b *Backend) StoreReport(ctx context.Context, p *core.ReportPayload) error {
	if !b.dbReady {
		return fmt.Errorf("gorm backend: not initialized")
	}
	start := time.Now()

	var rows int
	err := b.deps.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&model.Run{}).Where("run_id = ?", p.RunID).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return fmt.Errorf("run %s: %w", p.RunID, ErrDuplicateRun)
		}

		run := convert.CoreToRun(p)
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("error inserting run: %w", err)
		}
		rows++

		for _, id := range p.SessionIDs {
			tr, ok := p.Sessions[id]
			if !ok {
				continue
			}
			n, err := b.storeSession(tx, run.ID, tr)
			if err != nil {
				return fmt.Errorf("session %s: %w", id, err)
			}
			rows += n
		}

		for _, key := range p.ComparisonKeys() {
			n, err := b.storeComparison(tx, run.ID, key, p.Comparisons[key])
			if err != nil {
				return fmt.Errorf("comparison %s: %w", key, err)
			}
			rows += n
		}

		if len(p.Failures) > 0 {
			failures := make([]model.Failure, len(p.Failures))
			for i, f := range p.Failures {
				failures[i] = convert.CoreToFailure(run.ID, f)
			}
			if err := tx.Create(&failures).Error; err != nil {
				return fmt.Errorf("error inserting failures: %w", err)
			}
			rows += len(failures)
		}
		return nil
	})
	if err != nil {
		return err
	}

	b.deps.Logger.Debug("Stored report",
		"run_id", p.RunID,
		"rows", rows,
		"duration", time.Since(start))
	return nil
}

func (b *Backend) storeSession(tx *gorm.DB, runID uint, tr core.TrajectoryReport) (int, error) {
	rec, err := convert.CoreToSessionRecord(runID, tr)
	if err != nil {
		return 0, err
	}
	if err := tx.Create(&rec).Error; err != nil {
		return 0, fmt.Errorf("error inserting session record: %w", err)
	}
	samples, err := convert.CoreToSamples(rec.ID, tr)
	if err != nil {
		return 0, err
	}
	if len(samples) > 0 {
		if err := tx.CreateInBatches(&samples, b.deps.BatchSize).Error; err != nil {
			return 0, fmt.Errorf("error inserting samples: %w", err)
		}
	}
	return 1 + len(samples), nil
}

func (b *Backend) storeComparison(tx *gorm.DB, runID uint, key string, c core.ComparisonResult) (int, error) {
	row := convert.CoreToComparison(runID, key, c)
	if err := tx.Create(&row).Error; err != nil {
		return 0, fmt.Errorf("error inserting comparison: %w", err)
	}
	pairs := convert.CoreToPairErrors(row.ID, c)
	if len(pairs) > 0 {
		if err := tx.CreateInBatches(&pairs, b.deps.BatchSize).Error; err != nil {
			return 0, fmt.Errorf("error inserting pair errors: %w", err)
		}
	}
	return 1 + len(pairs), nil
}

// LoadComparisons reads back the comparisons stored for runID, in key order.
func (b *Backend) LoadComparisons(ctx context.Context, runID string) (map[string]core.ComparisonResult, error) {
	db := b.deps.DB.WithContext(ctx)

	var run model.Run
	if err := db.Where("run_id = ?", runID).First(&run).Error; err != nil {
		return nil, fmt.Errorf("run %s: %w", runID, err)
	}

	var rows []model.Comparison
	if err := db.Where("run_id = ?", run.ID).Order("comparison_key").Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[string]core.ComparisonResult, len(rows))
	for _, row := range rows {
		var pairs []model.PairError
		if err := db.Where("comparison_id = ?", row.ID).Order("id").Find(&pairs).Error; err != nil {
			return nil, err
		}
		out[row.ComparisonKey] = convert.ComparisonToCore(row, pairs)
	}
	return out, nil
}
