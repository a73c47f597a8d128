// Package filestorage writes report payloads as JSON (optionally gzipped)
// with CSV statistics tables next to it.
package filestorage

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/auvmap/analyzer/internal/util"
	"github.com/auvmap/analyzer/pkg/core"
)

// DataDir is the subfolder of the output directory that holds CSV tables.
const DataDir = "data"

// Config holds configuration for the file backend.
type Config struct {
	OutputDir      string
	CompressOutput bool
	WriteCSV       bool
}

// Backend writes one JSON payload file per stored report.
type Backend struct {
	cfg            Config
	log            *slog.Logger
	lastExportPath string
	csvPaths       []string
}

// New creates a new file backend.
func New(cfg Config, logger *slog.Logger) *Backend {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "."
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Backend{cfg: cfg, log: logger}
}

// Init ensures the output directory exists.
func (b *Backend) Init() error {
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close is a no-op.
func (b *Backend) Close() error {
	return nil
}

// StoreReport writes p and, when configured, its CSV tables.
func (b *Backend) StoreReport(ctx context.Context, p *core.ReportPayload) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := b.exportJSON(p); err != nil {
		return err
	}
	b.log.Info("Report written", "path", b.lastExportPath)

	if !b.cfg.WriteCSV {
		return nil
	}
	paths, err := b.exportCSV(p)
	if err != nil {
		return err
	}
	b.csvPaths = paths
	b.log.Debug("CSV tables written", "count", len(paths), "dir", filepath.Join(b.cfg.OutputDir, DataDir))
	return nil
}

// ExportedFilePath returns the path of the last JSON file written.
func (b *Backend) ExportedFilePath() string {
	return b.lastExportPath
}

// CSVPaths returns the CSV tables written by the last StoreReport.
func (b *Backend) CSVPaths() []string {
	return append([]string(nil), b.csvPaths...)
}

// reportName is the file stem for p: the session id for a single-session
// run, otherwise the reference followed by "_comparison".
func reportName(p *core.ReportPayload) string {
	switch {
	case len(p.SessionIDs) == 1:
		return util.SafeFileName(p.SessionIDs[0])
	case p.Reference != "":
		return util.SafeFileName(p.Reference) + "_comparison"
	default:
		return "auv_report"
	}
}

func timestamp(p *core.ReportPayload) string {
	return p.GeneratedAt.Format("20060102_150405")
}

// exportJSON writes the payload to <name>_<timestamp>.json[.gz]
func (b *Backend) exportJSON(p *core.ReportPayload) error {
	filename := fmt.Sprintf("%s_%s.json", reportName(p), timestamp(p))
	if b.cfg.CompressOutput {
		filename += ".gz"
	}
	outputPath := filepath.Join(b.cfg.OutputDir, filename)

	// Ensure output directory exists
	if err := os.MkdirAll(b.cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	var err error
	if b.cfg.CompressOutput {
		err = writeGzipJSON(outputPath, p)
	} else {
		err = writeJSON(outputPath, p)
	}
	if err != nil {
		return err
	}

	b.lastExportPath = outputPath
	return nil
}

func writeJSON(path string, p *core.ReportPayload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	if err := json.NewEncoder(f).Encode(p); err != nil {
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	return f.Close()
}

func writeGzipJSON(path string, p *core.ReportPayload) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer f.Close()

	gw := gzip.NewWriter(f)
	if err := json.NewEncoder(gw).Encode(p); err != nil {
		gw.Close()
		return fmt.Errorf("failed to encode JSON: %w", err)
	}
	if err := gw.Close(); err != nil {
		return fmt.Errorf("failed to close gzip writer: %w", err)
	}
	return f.Close()
}

// ReadPayload reads a file written by StoreReport, gzipped or not.
func ReadPayload(path string) (*core.ReportPayload, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	if filepath.Ext(path) == ".gz" {
		gr, err := gzip.NewReader(f)
		if err != nil {
			return nil, fmt.Errorf("failed to open gzip reader: %w", err)
		}
		defer gr.Close()
		dec = json.NewDecoder(gr)
	}

	var p core.ReportPayload
	if err := dec.Decode(&p); err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return &p, nil
}
