package parser

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/auvmap/analyzer/pkg/core"
)

const cueDateLayout = "Mon Jan 2 15:04:05 2006"

var (
	cueTiming  = regexp.MustCompile(`^(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})\s*-->`)
	cueDate    = regexp.MustCompile(`(\w{3}\s+\w{3}\s+\d{1,2}\s+\d{2}:\d{2}:\d{2}\s+\d{4})\s+UTC`)
	cueKeyLine = regexp.MustCompile(`^([A-Za-z][A-Za-z _]*?)\s*:\s*(.*)$`)
)

// cue is a raw subtitle block.
type cue struct {
	line  int
	lines []string
}

// ParseVTT reads telemetry cues from a WebVTT subtitle track.
//
// A cue is an optional id line, a timing line, the mission name, a date line
// ("Thu Sep 11 20:03:06 2025 UTC") and "Key: value" lines for Latitude,
// Longitude, Depth, Heading, Altitude and Source. Blocks without a timing
// line are not cues and are skipped. Every cue yields a Record; cues with an
// unusable position are returned with an invalid Validity.
func (p *Parser) ParseVTT(r io.Reader, file string) ([]Record, error) {
	cues, err := readCues(r)
	if err != nil {
		return nil, fmt.Errorf("error reading %s: %w", file, err)
	}

	records := make([]Record, 0, len(cues))
	var base time.Time
	for _, c := range cues {
		rec, ok := p.parseCue(c, file)
		if !ok {
			continue
		}
		if base.IsZero() && !rec.Absolute.IsZero() {
			base = rec.Absolute.Add(-rec.Elapsed)
		}
		records = append(records, rec)
	}

	// The date line has second resolution; cue offsets carry milliseconds.
	for i := range records {
		if base.IsZero() || !records[i].HasTime {
			records[i].Absolute = time.Time{}
			continue
		}
		records[i].Absolute = base.Add(records[i].Elapsed)
	}

	p.logger.Debug("Parsed VTT file", "file", file, "cues", len(records))
	return records, nil
}

func readCues(r io.Reader) ([]cue, error) {
	var (
		cues    []cue
		current cue
		lineNo  int
	)
	flush := func() {
		if len(current.lines) > 0 {
			cues = append(cues, current)
		}
		current = cue{}
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			flush()
			continue
		}
		if len(current.lines) == 0 {
			current.line = lineNo
		}
		current.lines = append(current.lines, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()
	return cues, nil
}

// parseCue returns false when the block is not a cue.
func (p *Parser) parseCue(c cue, file string) (Record, bool) {
	timingIdx := -1
	for i := 0; i < len(c.lines) && i < 2; i++ {
		if strings.Contains(c.lines[i], "-->") {
			timingIdx = i
			break
		}
	}
	if timingIdx < 0 {
		return Record{}, false
	}

	rec := Record{
		File: file,
		Line: c.line + timingIdx,
	}

	offset, err := parseCueOffset(c.lines[timingIdx])
	if err != nil {
		rec.Sample.Validity = core.InvalidMalformed
		rec.Reason = err.Error()
		return rec, true
	}
	rec.Elapsed = offset
	rec.HasTime = true

	fields := map[string]string{}
	for _, line := range c.lines[timingIdx+1:] {
		if m := cueDate.FindStringSubmatch(line); m != nil {
			if t, err := time.ParseInLocation(cueDateLayout, strings.Join(strings.Fields(m[1]), " "), time.UTC); err == nil {
				rec.Absolute = t
			}
			continue
		}
		if m := cueKeyLine.FindStringSubmatch(line); m != nil {
			if key := canonicalKey(m[1]); key != "" {
				fields[key] = m[2]
				continue
			}
		}
		if rec.Mission == "" {
			rec.Mission = line
		}
	}

	p.fillSample(&rec, fields)
	return rec, true
}

func parseCueOffset(line string) (time.Duration, error) {
	m := cueTiming.FindStringSubmatch(line)
	if m == nil {
		return 0, fmt.Errorf("timing %q: %w", line, ErrMalformedValue)
	}
	var h int
	if m[1] != "" {
		h, _ = strconv.Atoi(m[1])
	}
	mins, _ := strconv.Atoi(m[2])
	secs, _ := strconv.Atoi(m[3])
	millis, _ := strconv.Atoi(m[4])
	if mins > 59 || secs > 59 {
		return 0, fmt.Errorf("timing %q: %w", line, ErrOutOfRange)
	}
	return time.Duration(h)*time.Hour +
		time.Duration(mins)*time.Minute +
		time.Duration(secs)*time.Second +
		time.Duration(millis)*time.Millisecond, nil
}

// canonicalKey maps a label to a field name, or "" for unknown labels.
func canonicalKey(label string) string {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "latitude", "lat":
		return "latitude"
	case "longitude", "lon", "lng", "long":
		return "longitude"
	case "depth":
		return "depth"
	case "heading", "yaw":
		return "heading"
	case "altitude", "alt":
		return "altitude"
	case "source", "fix", "nav source":
		return "source"
	default:
		return ""
	}
}

// fillSample populates rec.Sample from named raw fields.
func (p *Parser) fillSample(rec *Record, fields map[string]string) {
	lat, lon, err := position(fields["latitude"], fields["longitude"])
	if err != nil {
		rec.Sample.Validity = validityOf(err)
		rec.Reason = err.Error()
		return
	}
	rec.Sample.Latitude = lat
	rec.Sample.Longitude = lon
	rec.Sample.Source = core.ParseSource(fields["source"])
	p.optionalFields(rec, fields["depth"], fields["heading"], fields["altitude"])
	rec.Sample.Validity = core.Valid
}
