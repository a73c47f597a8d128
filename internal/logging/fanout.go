package logging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// output is one destination of the analyzer log: the text log, the shipped
// JSON stream or the OTel bridge. Records below min are not passed on.
type output struct {
	name    string
	handler slog.Handler
	min     slog.Leveler
}

func (o output) enabled(ctx context.Context, level slog.Level) bool {
	if o.min != nil && level < o.min.Level() {
		return false
	}
	return o.handler.Enabled(ctx, level)
}

// fanout hands each record to every output that accepts its level.
type fanout struct {
	outputs []output
}

func newFanout(outputs ...output) *fanout {
	f := &fanout{}
	for _, o := range outputs {
		if o.handler != nil {
			f.outputs = append(f.outputs, o)
		}
	}
	return f
}

func (f *fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, o := range f.outputs {
		if o.enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle keeps going past a failing output and reports every failure by
// output name.
func (f *fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, o := range f.outputs {
		if !o.enabled(ctx, r.Level) {
			continue
		}
		if err := o.handler.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, fmt.Errorf("%s log: %w", o.name, err))
		}
	}
	return errors.Join(errs...)
}

func (f *fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithAttrs(attrs) })
}

func (f *fanout) WithGroup(name string) slog.Handler {
	if name == "" {
		return f
	}
	return f.derive(func(h slog.Handler) slog.Handler { return h.WithGroup(name) })
}

func (f *fanout) derive(fn func(slog.Handler) slog.Handler) *fanout {
	outputs := make([]output, len(f.outputs))
	for i, o := range f.outputs {
		outputs[i] = output{name: o.name, handler: fn(o.handler), min: o.min}
	}
	return &fanout{outputs: outputs}
}
