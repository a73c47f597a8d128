package parser

import (
	"time"

	"github.com/auvmap/analyzer/pkg/core"
)

// Record is one navigation record as read from a session file, before the
// session clock is applied.
type Record struct {
	File string
	Line int

	// Elapsed is the record time relative to the start of its file.
	Elapsed time.Duration
	// Absolute is the wall-clock time, zero when the file carries no date.
	Absolute time.Time
	// HasTime is false when no timestamp could be read.
	HasTime bool

	Mission string
	Sample  core.NavigationSample
	Reason  string
}

// Valid reports whether the record carries a usable sample.
func (r Record) Valid() bool {
	return r.HasTime && r.Sample.Validity.IsValid()
}

// Rejected returns the record's rejection metadata.
func (r Record) Rejected() core.RejectedRecord {
	return core.RejectedRecord{
		File:     r.File,
		Line:     r.Line,
		Validity: r.Sample.Validity,
		Reason:   r.Reason,
	}
}
