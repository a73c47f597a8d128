package render

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/auvmap/analyzer/internal/util"
	"github.com/auvmap/analyzer/pkg/core"
)

// Sink writes the rendered report into a directory.
type Sink struct {
	Dir  string
	HTML bool
	PNG  bool

	log     *slog.Logger
	written []string
}

// NewSink returns a Sink writing into dir. A nil logger uses slog.Default().
func NewSink(dir string, html, png bool, logger *slog.Logger) *Sink {
	if logger == nil {
		logger = slog.Default()
	}
	return &Sink{Dir: dir, HTML: html, PNG: png, log: logger}
}

// StoreReport renders p. Comparisons with no error series get no plot.
func (s *Sink) StoreReport(ctx context.Context, p *core.ReportPayload) error {
	if err := os.MkdirAll(s.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	ts := p.GeneratedAt.Format("20060102_150405")

	if s.HTML {
		path := filepath.Join(s.Dir, fmt.Sprintf("report_%s.html", ts))
		if err := writeHTML(path, p); err != nil {
			return err
		}
		s.written = append(s.written, path)
		s.log.Info("HTML report written", "path", path)
	}

	if s.PNG {
		for _, key := range p.ComparisonKeys() {
			if err := ctx.Err(); err != nil {
				return err
			}
			path := filepath.Join(s.Dir, fmt.Sprintf("%s_errors_%s.png", util.SafeFileName(key), ts))
			err := ErrorPlotPNG(path, p.Comparisons[key])
			if errors.Is(err, ErrNoData) {
				s.log.Warn("No error series to plot", "comparison", key)
				continue
			}
			if err != nil {
				return err
			}
			s.written = append(s.written, path)
		}
	}
	return nil
}

// Written returns the files written so far.
func (s *Sink) Written() []string {
	return append([]string(nil), s.written...)
}

func writeHTML(path string, p *core.ReportPayload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()
	if err := HTML(f, p); err != nil {
		return err
	}
	return f.Close()
}
