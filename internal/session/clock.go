package session

import (
	"time"

	"github.com/auvmap/analyzer/internal/parser"
	"github.com/auvmap/analyzer/pkg/core"
)

type merged struct {
	samples  []core.NavigationSample
	rejected []core.RejectedRecord
	origin   time.Time
	relative bool
	mission  string
}

// mergeClocks puts the records of every telemetry file on one session
// clock. When every file carries a wall clock, timestamps are offsets from
// the earliest file start. Otherwise each file's own offsets are used.
func mergeClocks(sources [][]parser.Record) merged {
	var out merged

	bases := make([]time.Time, len(sources))
	for i, records := range sources {
		timed := false
		for _, rec := range records {
			if !rec.HasTime {
				continue
			}
			timed = true
			if !rec.Absolute.IsZero() {
				bases[i] = rec.Absolute.Add(-rec.Elapsed)
				break
			}
		}
		if !timed {
			continue
		}
		if bases[i].IsZero() {
			out.relative = true
			continue
		}
		if out.origin.IsZero() || bases[i].Before(out.origin) {
			out.origin = bases[i]
		}
	}
	if out.relative {
		out.origin = time.Time{}
	}

	for i, records := range sources {
		for _, rec := range records {
			if out.mission == "" && rec.Mission != "" {
				out.mission = rec.Mission
			}
			if !rec.Valid() {
				out.rejected = append(out.rejected, rejection(rec))
				continue
			}

			s := rec.Sample
			switch {
			case out.relative:
				s.Timestamp = rec.Elapsed
			case !rec.Absolute.IsZero():
				s.Timestamp = rec.Absolute.Sub(out.origin)
			default:
				s.Timestamp = bases[i].Add(rec.Elapsed).Sub(out.origin)
			}
			out.samples = append(out.samples, s)
		}
	}
	return out
}

func rejection(rec parser.Record) core.RejectedRecord {
	r := rec.Rejected()
	if rec.HasTime {
		return r
	}
	if r.Validity.IsValid() {
		r.Validity = core.InvalidMissingField
	}
	if r.Reason == "" {
		r.Reason = "missing timestamp"
	}
	return r
}
