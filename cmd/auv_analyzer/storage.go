package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/auvmap/analyzer/internal/config"
	"github.com/auvmap/analyzer/internal/dispatcher"
	"github.com/auvmap/analyzer/internal/influx"
	"github.com/auvmap/analyzer/internal/render"
	"github.com/auvmap/analyzer/internal/storage"
	"github.com/auvmap/analyzer/pkg/core"
	"github.com/spf13/viper"
)

type sink interface {
	StoreReport(ctx context.Context, p *core.ReportPayload) error
}

func handler(s sink) dispatcher.HandlerFunc {
	return func(ctx context.Context, e dispatcher.Event) error {
		return s.StoreReport(ctx, e.Payload)
	}
}

// deliver hands p to every configured sink: the storage backends, the
// optional InfluxDB export and the renderer.
func (a *app) deliver(ctx context.Context, p *core.ReportPayload, opts options) error {
	d, err := dispatcher.New(a.logger)
	if err != nil {
		return err
	}

	storageCfg := config.GetStorageConfig()
	backends, err := storage.NewBackends(storageCfg, a.logger, a.dbLog)
	if err != nil {
		return err
	}
	var errs []error
	defer func() {
		for _, b := range backends {
			if err := b.Close(); err != nil {
				a.logger.Warn("Failed to close storage backend", "error", err)
			}
		}
	}()

	for i, kind := range storage.Kinds(storageCfg) {
		b := backends[i]
		if err := b.Init(); err != nil {
			a.logger.Error("Failed to initialize storage backend", "type", kind, "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", kind, err))
			continue
		}
		d.Register(kind, handler(b), dispatcher.Logged())
	}

	if viper.GetBool("influx.enabled") {
		backup := filepath.Join(storageCfg.OutputDir,
			fmt.Sprintf("influx_backup_%s.lp.gz", p.GeneratedAt.Format("20060102_150405")))
		m := influx.NewManager(a.dbLog, backup)
		if err := m.Init(); err != nil {
			a.logger.Error("Failed to initialize InfluxDB export", "error", err)
			errs = append(errs, fmt.Errorf("influx: %w", err))
		} else {
			defer m.Close()
			d.Register("influx", handler(m), dispatcher.Buffered(1), dispatcher.Logged())
		}
	}

	if opts.HTML || opts.PNG {
		if len(p.Sessions) == 0 {
			a.logger.Warn("No session loaded, skipping render")
		} else {
			d.Register("render", handler(render.NewSink(storageCfg.OutputDir, opts.HTML, opts.PNG, a.logger)), dispatcher.Logged())
		}
	}

	if sinks := d.Sinks(); len(sinks) == 0 {
		a.logger.Warn("No sink available, report not delivered")
	} else {
		a.logger.Info("Delivering report", "sinks", sinks)
		errs = append(errs, d.Broadcast(ctx, p))
	}
	errs = append(errs, d.Close())

	for i, b := range backends {
		if e, ok := b.(storage.Exporter); ok && e.ExportedFilePath() != "" {
			a.logger.Info("Report stored", "type", storage.Kinds(storageCfg)[i], "path", e.ExportedFilePath())
		}
	}
	return errors.Join(errs...)
}
