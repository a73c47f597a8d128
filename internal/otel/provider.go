// Package otel exports the run log through the OpenTelemetry log SDK.
package otel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/auvmap/analyzer/internal/config"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdoutlog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
)

// ErrNoExporter is returned by New when export is enabled but neither a
// writer nor an endpoint is set.
var ErrNoExporter = errors.New("otel enabled without a log writer or OTLP endpoint")

const defaultBatchTimeout = 5 * time.Second

// Config describes the log export of one analyzer run.
type Config struct {
	Enabled      bool
	ServiceName  string
	Version      string
	RunID        string
	BatchTimeout time.Duration
	// LogWriter receives the pretty-printed export, usually the run log file.
	LogWriter io.Writer
	Endpoint  string
	Insecure  bool
}

// FromConfig builds the export config of the run runID from the otel.*
// settings.
func FromConfig(cfg config.OTelConfig, runID, version string, w io.Writer) Config {
	timeout := cfg.BatchTimeout
	if timeout <= 0 {
		timeout = defaultBatchTimeout
	}
	return Config{
		Enabled:      cfg.Enabled,
		ServiceName:  cfg.ServiceName,
		Version:      version,
		RunID:        runID,
		BatchTimeout: timeout,
		LogWriter:    w,
		Endpoint:     cfg.Endpoint,
		Insecure:     cfg.Insecure,
	}
}

// Provider owns the log provider of a run. The zero Provider is disabled
// and all its methods are no-ops.
type Provider struct {
	logs *sdklog.LoggerProvider
}

// New sets up batch export to every configured destination.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled {
		return &Provider{}, nil
	}

	res, err := runResource(ctx, cfg)
	if err != nil {
		return nil, err
	}
	exporters, err := newExporters(ctx, cfg)
	if err != nil {
		return nil, err
	}

	opts := []sdklog.LoggerProviderOption{sdklog.WithResource(res)}
	for _, exp := range exporters {
		opts = append(opts, sdklog.WithProcessor(
			sdklog.NewBatchProcessor(exp, sdklog.WithExportTimeout(cfg.BatchTimeout)),
		))
	}
	return &Provider{logs: sdklog.NewLoggerProvider(opts...)}, nil
}

// runResource tags every exported record with the service and the run.
func runResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(cfg.ServiceName)}
	if cfg.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}
	if cfg.RunID != "" {
		attrs = append(attrs, semconv.ServiceInstanceID(cfg.RunID))
	}
	res, err := resource.New(ctx, resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	return res, nil
}

func newExporters(ctx context.Context, cfg Config) ([]sdklog.Exporter, error) {
	var out []sdklog.Exporter
	if cfg.LogWriter != nil {
		exp, err := stdoutlog.New(stdoutlog.WithWriter(cfg.LogWriter), stdoutlog.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("otel file exporter: %w", err)
		}
		out = append(out, exp)
	}
	if cfg.Endpoint != "" {
		opts := []otlploghttp.Option{otlploghttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlploghttp.WithInsecure())
		}
		exp, err := otlploghttp.New(ctx, opts...)
		if err != nil {
			return nil, fmt.Errorf("otel OTLP exporter %s: %w", cfg.Endpoint, err)
		}
		out = append(out, exp)
	}
	if len(out) == 0 {
		return nil, ErrNoExporter
	}
	return out, nil
}

// Enabled reports whether records are exported.
func (p *Provider) Enabled() bool { return p.logs != nil }

// LoggerProvider returns the provider for the otelslog bridge, nil when
// disabled.
func (p *Provider) LoggerProvider() *sdklog.LoggerProvider { return p.logs }

// Flush exports everything batched so far.
func (p *Provider) Flush(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	if err := p.logs.ForceFlush(ctx); err != nil {
		return fmt.Errorf("otel flush: %w", err)
	}
	return nil
}

// Shutdown flushes and stops the exporters. The provider is disabled
// afterwards.
func (p *Provider) Shutdown(ctx context.Context) error {
	if p.logs == nil {
		return nil
	}
	logs := p.logs
	p.logs = nil
	if err := logs.Shutdown(ctx); err != nil {
		return fmt.Errorf("otel shutdown: %w", err)
	}
	return nil
}
