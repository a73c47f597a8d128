package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// ServiceName identifies the analyzer in shipped logs.
const ServiceName = "auv-analyzer"

var osStdout io.Writer = os.Stdout

// SlogManager manages slog-based logging with optional OTel integration.
type SlogManager struct {
	logger *slog.Logger

	// OTel provider for flushing
	logProvider *sdklog.LoggerProvider
}

// NewSlogManager creates a new slog-based logging manager.
func NewSlogManager() *SlogManager {
	return &SlogManager{}
}

// parseLevel converts a string log level to slog.Level.
func parseLevel(level string) slog.Level {
	switch strings.ToUpper(level) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

type shipped struct {
	w     io.Writer
	level string
}

type setupOptions struct {
	shipped []shipped
	context ContextProvider
}

// Option customizes Setup.
type Option func(*setupOptions)

// WithJSONWriter adds a JSON output writing to w, e.g. a GELF writer. An
// empty level ships at the level given to Setup.
func WithJSONWriter(w io.Writer, level string) Option {
	return func(o *setupOptions) {
		if w != nil {
			o.shipped = append(o.shipped, shipped{w: w, level: level})
		}
	}
}

// WithContext injects the attributes returned by p into every record.
func WithContext(p ContextProvider) Option {
	return func(o *setupOptions) {
		o.context = p
	}
}

// Setup initializes the logging system. Text output goes to file, or to
// stdout when file is nil. If provider is nil, OTel logging is disabled.
func (m *SlogManager) Setup(file io.Writer, level string, provider *sdklog.LoggerProvider, opts ...Option) {
	lvl := parseLevel(level)
	m.logProvider = provider

	var so setupOptions
	for _, opt := range opts {
		opt(&so)
	}

	// outputs filter by level themselves; the handlers accept everything
	handlerOpts := &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	out := file
	if out == nil {
		out = osStdout
	}
	outputs := []output{{name: "text", handler: slog.NewTextHandler(out, handlerOpts), min: lvl}}

	for _, sh := range so.shipped {
		floor := lvl
		if sh.level != "" {
			floor = parseLevel(sh.level)
		}
		outputs = append(outputs, output{name: "json", handler: slog.NewJSONHandler(sh.w, handlerOpts), min: floor})
	}

	if provider != nil {
		outputs = append(outputs, output{
			name:    "otel",
			handler: otelslog.NewHandler(ServiceName, otelslog.WithLoggerProvider(provider)),
			min:     lvl,
		})
	}

	var handler slog.Handler = newFanout(outputs...)
	if so.context != nil {
		handler = NewContextHandler(handler, so.context)
	}

	m.logger = slog.New(handler)
	m.logger.Info("Logging initialized", "level", lvl.String())
}

// Logger returns the configured slog.Logger.
func (m *SlogManager) Logger() *slog.Logger {
	if m.logger == nil {
		// Return a default logger if Setup hasn't been called
		return slog.Default()
	}
	return m.logger
}

// Flush forces a flush of OTel logs if available.
func (m *SlogManager) Flush(ctx context.Context) error {
	if m.logProvider != nil {
		return m.logProvider.ForceFlush(ctx)
	}
	return nil
}
