package parser

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/auvmap/analyzer/internal/geo"
	"github.com/auvmap/analyzer/pkg/core"
)

var (
	// ErrMissingField is returned when a required field is absent.
	ErrMissingField = errors.New("missing field")
	// ErrMalformedValue is returned when a field cannot be parsed.
	ErrMalformedValue = errors.New("malformed value")
	// ErrOutOfRange is returned when a value is outside its domain.
	ErrOutOfRange = errors.New("value out of range")
)

// numberWithUnit matches a number optionally followed by a unit suffix
// ("12.5", "-3 m", "270°", "1.2e3m").
var numberWithUnit = regexp.MustCompile(`^([-+]?(?:\d+\.?\d*|\.\d+)(?:[eE][-+]?\d+)?)\s*([a-zA-Z°/]*)$`)

// Parser turns raw session files into navigation records.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a Parser. A nil logger uses slog.Default().
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// parseMeasurement parses a numeric field that may carry a trailing unit.
func parseMeasurement(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, ErrMissingField
	}
	m := numberWithUnit.FindStringSubmatch(s)
	if m == nil {
		return 0, fmt.Errorf("%q: %w", s, ErrMalformedValue)
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrMalformedValue)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%q: %w", s, ErrOutOfRange)
	}
	return v, nil
}

// parseOptional parses an optional measurement. Empty input is absent;
// unparseable input is absent and reported through the returned error.
func parseOptional(s string) (*float64, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	v, err := parseMeasurement(s)
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// validityOf maps a field error to the record validity it causes.
func validityOf(err error) core.Validity {
	switch {
	case err == nil:
		return core.Valid
	case errors.Is(err, ErrMissingField):
		return core.InvalidMissingField
	case errors.Is(err, ErrOutOfRange):
		return core.InvalidOutOfRange
	default:
		return core.InvalidMalformed
	}
}

// position parses and range-checks a latitude/longitude pair.
func position(latRaw, lonRaw string) (lat, lon float64, err error) {
	lat, err = parseMeasurement(latRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("latitude: %w", err)
	}
	lon, err = parseMeasurement(lonRaw)
	if err != nil {
		return 0, 0, fmt.Errorf("longitude: %w", err)
	}
	if !geo.ValidPosition(lat, lon) {
		return 0, 0, fmt.Errorf("position (%v, %v): %w", lat, lon, ErrOutOfRange)
	}
	return lat, lon, nil
}

// optionalFields fills depth, heading and altitude, dropping any that fail
// to parse.
func (p *Parser) optionalFields(rec *Record, depth, heading, altitude string) {
	fields := []struct {
		name string
		raw  string
		dst  **float64
	}{
		{"depth", depth, &rec.Sample.Depth},
		{"heading", heading, &rec.Sample.Heading},
		{"altitude", altitude, &rec.Sample.Altitude},
	}
	for _, f := range fields {
		v, err := parseOptional(f.raw)
		if err != nil {
			p.logger.Debug("Dropping unparseable optional field",
				"file", rec.File, "line", rec.Line, "field", f.name, "error", err)
			continue
		}
		*f.dst = v
	}
}
