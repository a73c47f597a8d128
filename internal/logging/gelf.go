package logging

import (
	"fmt"
	"io"

	"github.com/Graylog2/go-gelf/gelf"
)

// NewGraylogWriter returns a writer that ships each written line to a
// Graylog GELF UDP input at address.
func NewGraylogWriter(address string) (io.Writer, error) {
	w, err := gelf.NewWriter(address)
	if err != nil {
		return nil, fmt.Errorf("error connecting to graylog at %s: %w", address, err)
	}
	w.Facility = ServiceName
	return w, nil
}
