package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/auvmap/analyzer/internal/config"
	"github.com/auvmap/analyzer/internal/logging"
	intOtel "github.com/auvmap/analyzer/internal/otel"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// module defs - BuildDate can be set at build time via ldflags
var (
	CurrentVersion string = "0.0.1"
	BuildDate      string = "unknown"

	AppName string = "auv_analyzer"
)

// Exit codes.
const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

// app holds the ambient services of one run.
type app struct {
	runID    string
	runStart time.Time

	slogManager  *logging.SlogManager
	logger       *slog.Logger
	dbLog        zerolog.Logger
	otelProvider *intOtel.Provider
	logFile      *os.File
	logFilePath  string
}

func main() {
	os.Exit(realMain(os.Args[1:], os.Stderr))
}

func realMain(args []string, stderr io.Writer) int {
	opts, err := parseArgs(args, stderr)
	if errors.Is(err, flag.ErrHelp) {
		return exitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "%s: %v\n", AppName, err)
		return exitUsage
	}

	cfgErr := config.Load(opts.ConfigDir)
	if cfgErr != nil && !errors.Is(cfgErr, config.ErrNoConfigFile) {
		fmt.Fprintf(stderr, "%s: configuration error: %v\n", AppName, cfgErr)
		return exitUsage
	}
	opts.apply()

	a := newApp(stderr)
	defer a.shutdown()

	if cfgErr != nil {
		a.logger.Warn("Failed to load config, using defaults!", "error", cfgErr)
	} else {
		a.logger.Info("Loaded config", "path", viper.ConfigFileUsed())
	}
	a.logger.Info("Starting analysis",
		"version", CurrentVersion,
		"build", BuildDate,
		"sessions", opts.Sessions,
		"mode", config.GetAnalysisConfig().AlignMode)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.run(ctx, opts)
}

// newApp sets up logging: a text log to stderr and the run log file, an
// optional Graylog JSON stream and an optional OTel export.
func newApp(stderr io.Writer) *app {
	a := &app{
		runID:       uuid.NewString(),
		runStart:    time.Now(),
		slogManager: logging.NewSlogManager(),
	}
	level := viper.GetString("logLevel")

	// bootstrap logger until the log file exists
	a.slogManager.Setup(stderr, level, nil)
	a.logger = a.slogManager.Logger()

	out := stderr
	logsDir := viper.GetString("logsDir")
	if err := os.MkdirAll(logsDir, 0755); err != nil {
		a.logger.Error("Failed to create logs directory", "error", err, "path", logsDir)
	} else {
		a.logFilePath = logging.LogFilePath(logsDir, AppName, a.runStart)
		f, err := os.OpenFile(a.logFilePath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0666)
		if err != nil {
			a.logger.Error("Failed to create/open log file!", "error", err, "path", a.logFilePath)
		} else {
			a.logFile = f
			out = io.MultiWriter(stderr, f)
		}
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled && a.logFile != nil {
		p, err := intOtel.New(context.Background(), intOtel.FromConfig(otelCfg, a.runID, CurrentVersion, a.logFile))
		if err != nil {
			a.logger.Error("Failed to initialize OTel provider", "error", err)
		} else {
			a.otelProvider = p
		}
	}

	setupOpts := []logging.Option{
		logging.WithContext(logging.StaticAttrs(slog.String("run_id", a.runID))),
	}
	if viper.GetBool("graylog.enabled") {
		w, err := logging.NewGraylogWriter(viper.GetString("graylog.address"))
		if err != nil {
			a.logger.Error("Failed to connect to Graylog", "error", err)
		} else {
			setupOpts = append(setupOpts, logging.WithJSONWriter(w, viper.GetString("graylog.level")))
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otelProvider != nil {
		otelLogProvider = a.otelProvider.LoggerProvider()
	}
	a.slogManager.Setup(out, level, otelLogProvider, setupOpts...)
	a.logger = a.slogManager.Logger()
	if a.logFile != nil {
		a.logger.Info("Logging to file", "path", a.logFilePath)
	}

	dbOut := io.Writer(stderr)
	if a.logFile != nil {
		dbOut = a.logFile
	}
	a.dbLog = logging.NewZerolog(dbOut, level).With().Str("run_id", a.runID).Logger()
	return a
}

func (a *app) shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.slogManager.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otelProvider != nil {
		if err := a.otelProvider.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if a.logFile != nil {
		a.logFile.Close()
	}
}
