package parser

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/auvmap/analyzer/internal/util"
	"github.com/auvmap/analyzer/pkg/core"
)

// epochThreshold separates relative seconds from Unix epoch seconds in a
// numeric timestamp column.
const epochThreshold = 1e9

// NavigationColumns holds the positions of known columns in a navigation
// CSV header. Missing columns are -1.
type NavigationColumns struct {
	Timestamp int
	Latitude  int
	Longitude int
	Depth     int
	Heading   int
	Altitude  int
	Source    int
}

// ParseNavigationHeader locates the navigation columns in a header row.
func ParseNavigationHeader(header []string) (NavigationColumns, error) {
	cols := NavigationColumns{-1, -1, -1, -1, -1, -1, -1}
	for i, name := range header {
		switch strings.ToLower(util.CleanHeader(name)) {
		case "timestamp", "time", "t", "time_s":
			cols.Timestamp = i
		case "latitude", "lat", "lat_deg":
			cols.Latitude = i
		case "longitude", "lon", "lng", "lon_deg":
			cols.Longitude = i
		case "depth", "depth_m":
			cols.Depth = i
		case "heading", "yaw", "heading_deg":
			cols.Heading = i
		case "altitude", "alt", "altitude_m":
			cols.Altitude = i
		case "source", "nav_source":
			cols.Source = i
		}
	}
	if cols.Timestamp < 0 || cols.Latitude < 0 || cols.Longitude < 0 {
		return cols, fmt.Errorf("navigation header %v: timestamp, latitude and longitude columns required: %w", header, ErrMissingField)
	}
	return cols, nil
}

func column(data []string, i int) string {
	if i < 0 || i >= len(data) {
		return ""
	}
	return data[i]
}

// ParseNavigationRecord parses one data row of a navigation CSV.
// Timestamps are seconds (relative, or Unix epoch when large) or RFC3339.
func (p *Parser) ParseNavigationRecord(cols NavigationColumns, data []string) (Record, error) {
	var rec Record

	raw := strings.TrimSpace(column(data, cols.Timestamp))
	switch {
	case raw == "":
		rec.Sample.Validity = validityOf(ErrMissingField)
		rec.Reason = "timestamp: " + ErrMissingField.Error()
		return rec, fmt.Errorf("timestamp: %w", ErrMissingField)
	default:
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			rec.Absolute = t.UTC()
			rec.HasTime = true
			break
		}
		secs, err := strconv.ParseFloat(raw, 64)
		if err != nil || math.IsNaN(secs) || math.IsInf(secs, 0) || secs < 0 {
			rec.Sample.Validity = validityOf(ErrMalformedValue)
			rec.Reason = fmt.Sprintf("timestamp %q: %v", raw, ErrMalformedValue)
			return rec, fmt.Errorf("error converting timestamp %q: %w", raw, ErrMalformedValue)
		}
		if secs >= epochThreshold {
			whole, frac := math.Modf(secs)
			rec.Absolute = time.Unix(int64(whole), int64(math.Round(frac*1e9))).UTC()
		} else {
			rec.Elapsed = time.Duration(math.Round(secs * float64(time.Second)))
		}
		rec.HasTime = true
	}

	lat, lon, err := position(column(data, cols.Latitude), column(data, cols.Longitude))
	if err != nil {
		rec.Sample.Validity = validityOf(err)
		rec.Reason = err.Error()
		return rec, err
	}
	rec.Sample.Latitude = lat
	rec.Sample.Longitude = lon
	rec.Sample.Source = core.ParseSource(column(data, cols.Source))
	p.optionalFields(&rec, column(data, cols.Depth), column(data, cols.Heading), column(data, cols.Altitude))
	rec.Sample.Validity = validityOf(nil)
	return rec, nil
}

// ParseNavigationCSV reads a navigation log with a header row. Rows that
// fail to parse are returned as invalid records.
func (p *Parser) ParseNavigationCSV(r io.Reader, file string) ([]Record, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("error reading header of %s: %w", file, err)
	}
	cols, err := ParseNavigationHeader(header)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", file, err)
	}

	var records []Record
	var first time.Time
	for {
		data, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			var perr *csv.ParseError
			if errors.As(err, &perr) {
				records = append(records, Record{
					File:   file,
					Line:   perr.Line,
					Reason: perr.Error(),
					Sample: invalidSample(ErrMalformedValue),
				})
				continue
			}
			return nil, fmt.Errorf("error reading %s: %w", file, err)
		}

		line, _ := reader.FieldPos(0)
		rec, err := p.ParseNavigationRecord(cols, data)
		rec.File = file
		rec.Line = line
		if err != nil {
			p.logger.Debug("Rejected navigation record", "file", file, "line", line, "error", err)
		}
		if rec.HasTime && !rec.Absolute.IsZero() {
			if first.IsZero() {
				first = rec.Absolute
			}
			rec.Elapsed = rec.Absolute.Sub(first)
		}
		records = append(records, rec)
	}

	p.logger.Debug("Parsed navigation CSV", "file", file, "records", len(records))
	return records, nil
}

func invalidSample(err error) core.NavigationSample {
	return core.NavigationSample{Validity: validityOf(err)}
}
