package influx

import (
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/auvmap/analyzer/internal/queue"
	"github.com/auvmap/analyzer/pkg/core"
	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	influxdb2_api "github.com/influxdata/influxdb-client-go/v2/api"
	influxdb2_write "github.com/influxdata/influxdb-client-go/v2/api/write"
	"github.com/influxdata/influxdb-client-go/v2/domain"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
)

// ErrDisabled is returned by Connect when influx.enabled is false.
var ErrDisabled = errors.New("influx.enabled is false")

const (
	pingTimeout = 5 * time.Second
	batchSize   = 2500
)

// Manager handles InfluxDB connections and writes. Points are queued and
// written on Flush, to the server when it is reachable and to a gzipped
// line-protocol backup file otherwise.
type Manager struct {
	Client       influxdb2.Client
	Writer       influxdb2_api.WriteAPI
	BackupWriter *gzip.Writer
	IsValid      bool
	Bucket       string
	Logger       zerolog.Logger
	BackupPath   string

	backupFile *os.File
	pending    *queue.Queue[*influxdb2_write.Point]
}

// NewManager creates a new InfluxDB manager.
func NewManager(log zerolog.Logger, backupPath string) *Manager {
	return &Manager{
		IsValid:    false,
		Bucket:     viper.GetString("influx.bucket"),
		Logger:     log,
		BackupPath: backupPath,
		pending:    queue.New[*influxdb2_write.Point](),
	}
}

// Init connects using the influx.* config keys.
func (m *Manager) Init() error {
	return m.Connect()
}

// Connect establishes a connection to InfluxDB, falling back to the backup
// file when the server does not answer.
func (m *Manager) Connect() error {
	if !viper.GetBool("influx.enabled") {
		return ErrDisabled
	}

	m.Client = influxdb2.NewClientWithOptions(
		fmt.Sprintf(
			"%s://%s:%s",
			viper.GetString("influx.protocol"),
			viper.GetString("influx.host"),
			viper.GetString("influx.port"),
		),
		viper.GetString("influx.token"),
		influxdb2.DefaultOptions().
			SetBatchSize(batchSize).
			SetFlushInterval(1000),
	)

	// validate client connection health
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	running, err := m.Client.Ping(ctx)

	if err != nil || !running {
		m.IsValid = false
		if m.BackupWriter == nil {
			m.Logger.Info().Str("backupPath", m.BackupPath).
				Msg("Failed to initialize InfluxDB client, writing to backup file")

			file, err := os.OpenFile(m.BackupPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				return fmt.Errorf("error creating backup file: %w", err)
			}
			m.backupFile = file
			m.BackupWriter = gzip.NewWriter(file)
		}
		m.Logger.Warn().Msg("InfluxDB client failed to initialize, using backup writer")
		return nil
	}

	m.IsValid = true
	if err := m.setupOrganizationAndBucket(); err != nil {
		return err
	}
	m.createWriter()
	m.Logger.Info().Msg("InfluxDB client initialized")
	return nil
}

func (m *Manager) setupOrganizationAndBucket() error {
	ctx := context.Background()
	orgName := viper.GetString("influx.org")

	// ensure org exists
	influxOrg, err := m.Client.OrganizationsAPI().FindOrganizationByName(ctx, orgName)
	if err != nil {
		m.Logger.Info().Str("org", orgName).Msg("Organization not found, creating")
		influxOrg, err = m.Client.OrganizationsAPI().CreateOrganizationWithName(ctx, orgName)
		if err != nil {
			m.Logger.Error().Err(err).Str("org", orgName).Msg("Error creating organization")
			return err
		}
	}

	// ensure bucket exists with 90 day retention
	if _, err = m.Client.BucketsAPI().FindBucketByName(ctx, m.Bucket); err != nil {
		m.Logger.Info().Str("bucket", m.Bucket).Msg("Bucket not found, creating")

		rule := domain.RetentionRuleTypeExpire
		_, err = m.Client.BucketsAPI().CreateBucketWithName(ctx, influxOrg, m.Bucket, domain.RetentionRule{
			Type:         &rule,
			EverySeconds: 60 * 60 * 24 * 90, // 90 days
		})
		if err != nil {
			m.Logger.Error().Err(err).Str("bucket", m.Bucket).Msg("Error creating bucket")
			return err
		}
	}
	return nil
}

func (m *Manager) createWriter() {
	m.Writer = m.Client.WriteAPI(viper.GetString("influx.org"), m.Bucket)

	errorsCh := m.Writer.Errors()
	go func(bucketName string, errorsCh <-chan error) {
		for writeErr := range errorsCh {
			m.Logger.Error().Err(writeErr).Str("bucket", bucketName).
				Msg("Error sending data to InfluxDB")
		}
	}(m.Bucket, errorsCh)

	m.Logger.Debug().Str("bucket", m.Bucket).Msg("InfluxDB writer created")
}

// Enqueue queues points for the next Flush.
func (m *Manager) Enqueue(points ...*influxdb2_write.Point) {
	m.pending.Push(points...)
}

// Pending returns the number of queued points.
func (m *Manager) Pending() int {
	return m.pending.Len()
}

// Flush writes every queued point, one batch at a time. Points not yet
// taken stay queued when ctx is cancelled.
func (m *Manager) Flush(ctx context.Context) error {
	written := 0
	for !m.pending.Empty() {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch := m.pending.Next(batchSize)
		for _, point := range batch {
			if err := m.WritePoint(point); err != nil {
				return err
			}
		}
		written += len(batch)
		if m.IsValid && m.Writer != nil {
			m.Writer.Flush()
		}
	}
	m.Logger.Debug().Int("points", written).Int("total", m.pending.Pushed()).Bool("backup", !m.IsValid).Msg("Flushed InfluxDB points")
	return nil
}

// WritePoint writes a point to InfluxDB or backup file.
func (m *Manager) WritePoint(point *influxdb2_write.Point) error {
	if m.IsValid {
		if m.Writer == nil {
			return fmt.Errorf("influxDB bucket '%s' not registered", m.Bucket)
		}
		m.Writer.WritePoint(point)
		return nil
	}

	if m.BackupWriter == nil {
		return fmt.Errorf("influxDB client not initialized and backup writer not available")
	}
	// PointToLineProtocol terminates the line itself.
	lineProtocol := influxdb2_write.PointToLineProtocol(point, time.Nanosecond)
	if _, err := m.BackupWriter.Write([]byte(lineProtocol)); err != nil {
		return fmt.Errorf("error writing to InfluxDB backup file: %w", err)
	}
	return nil
}

// StoreReport queues the points of p and flushes them.
func (m *Manager) StoreReport(ctx context.Context, p *core.ReportPayload) error {
	m.Enqueue(ReportPoints(p)...)
	return m.Flush(ctx)
}

// Close writes points left queued by a cancelled Flush, then closes the
// client and finishes the backup file.
func (m *Manager) Close() error {
	var errs []error
	if left := m.pending.Drain(); len(left) > 0 {
		for _, point := range left {
			if err := m.WritePoint(point); err != nil {
				errs = append(errs, err)
				break
			}
		}
		m.Logger.Info().Int("points", len(left)).Msg("Wrote queued InfluxDB points on close")
	}
	if m.Writer != nil {
		m.Writer.Flush()
	}
	if m.Client != nil {
		m.Client.Close()
	}
	if m.BackupWriter != nil {
		errs = append(errs, m.BackupWriter.Close())
		m.BackupWriter = nil
	}
	if m.backupFile != nil {
		errs = append(errs, m.backupFile.Close())
		m.backupFile = nil
	}
	return errors.Join(errs...)
}

// ExportedFilePath returns the backup file path when points went to it.
func (m *Manager) ExportedFilePath() string {
	if m.IsValid || m.backupFile == nil {
		return ""
	}
	return m.BackupPath
}
