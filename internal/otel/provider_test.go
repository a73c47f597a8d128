package otel

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/auvmap/analyzer/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	otellog "go.opentelemetry.io/otel/log"
)

func TestFromConfig(t *testing.T) {
	var buf bytes.Buffer
	cfg := FromConfig(config.OTelConfig{Enabled: true, ServiceName: "auv-analyzer", Endpoint: "collector:4318"}, "run-1", "0.0.1", &buf)
	assert.True(t, cfg.Enabled)
	assert.Equal(t, "run-1", cfg.RunID)
	assert.Equal(t, "0.0.1", cfg.Version)
	assert.Equal(t, "collector:4318", cfg.Endpoint)
	assert.Equal(t, defaultBatchTimeout, cfg.BatchTimeout)
	assert.Same(t, &buf, cfg.LogWriter)
}

func TestNew_Disabled(t *testing.T) {
	p, err := New(context.Background(), Config{LogWriter: &bytes.Buffer{}})
	require.NoError(t, err)
	assert.False(t, p.Enabled())
	assert.Nil(t, p.LoggerProvider())
	assert.NoError(t, p.Flush(context.Background()))
	assert.NoError(t, p.Shutdown(context.Background()))
}

func TestNew_NoExporter(t *testing.T) {
	_, err := New(context.Background(), Config{Enabled: true, ServiceName: "auv-analyzer", BatchTimeout: time.Second})
	assert.ErrorIs(t, err, ErrNoExporter)
}

func TestNew_RunLogExport(t *testing.T) {
	var runLog bytes.Buffer
	p, err := New(context.Background(), Config{
		Enabled:      true,
		ServiceName:  "auv-analyzer",
		Version:      "0.0.1",
		RunID:        "run-1",
		BatchTimeout: time.Second,
		LogWriter:    &runLog,
	})
	require.NoError(t, err)
	require.True(t, p.Enabled())

	var rec otellog.Record
	rec.SetBody(otellog.StringValue("report written"))
	p.LoggerProvider().Logger("analyzer").Emit(context.Background(), rec)

	require.NoError(t, p.Flush(context.Background()))
	out := runLog.String()
	assert.Contains(t, out, "report written")
	assert.Contains(t, out, "run-1")
	assert.Contains(t, out, "0.0.1")

	require.NoError(t, p.Shutdown(context.Background()))
	assert.False(t, p.Enabled())
	assert.NoError(t, p.Shutdown(context.Background()), "second shutdown is a no-op")
}
