// Package dispatcher fans a finished report out to the registered sinks.
package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/auvmap/analyzer/pkg/core"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Event is one payload addressed to a sink.
type Event struct {
	Sink      string
	Payload   *core.ReportPayload
	Timestamp time.Time
}

// HandlerFunc delivers an event to a sink.
type HandlerFunc func(context.Context, Event) error

// Logger interface for pluggable logging.
type Logger interface {
	Debug(msg string, keysAndValues ...any)
	Info(msg string, keysAndValues ...any)
	Error(msg string, keysAndValues ...any)
}

// Option configures handler registration.
type Option func(*config)

type config struct {
	bufferSize int
	logged     bool
}

// Buffered makes the handler async with a queue of the given size. Sends
// block when the queue is full; a report is never dropped.
func Buffered(size int) Option {
	return func(c *config) {
		c.bufferSize = size
	}
}

// Logged adds debug logging to the handler.
func Logged() Option {
	return func(c *config) {
		c.logged = true
	}
}

type queued struct {
	ctx context.Context
	e   Event
}

// Dispatcher routes payloads to registered sinks.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	order    []string
	logger   Logger

	delivered metric.Int64Counter
	failed    metric.Int64Counter
	queueSize metric.Int64ObservableGauge

	mu        sync.Mutex
	buffers   map[string]chan queued
	wg        sync.WaitGroup
	errs      []error
	closed    bool
	done      chan struct{}
	sends     sync.WaitGroup
	closeBufs sync.Once
}

// New creates a new Dispatcher with the given logger.
// Uses the global OTel meter for metrics (no-op if not configured).
func New(logger Logger) (*Dispatcher, error) {
	d := &Dispatcher{
		handlers: make(map[string]HandlerFunc),
		buffers:  make(map[string]chan queued),
		logger:   logger,
		done:     make(chan struct{}),
	}

	m := meter()
	var err error

	d.queueSize, err = m.Int64ObservableGauge(
		"dispatcher.queue.size",
		metric.WithDescription("Reports waiting for an async sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating queue size gauge: %w", err)
	}
	_, err = m.RegisterCallback(
		func(ctx context.Context, o metric.Observer) error {
			d.mu.Lock()
			defer d.mu.Unlock()
			for sink, buf := range d.buffers {
				o.ObserveInt64(d.queueSize, int64(len(buf)),
					metric.WithAttributes(attribute.String("sink", sink)))
			}
			return nil
		},
		d.queueSize,
	)
	if err != nil {
		return nil, fmt.Errorf("registering queue callback: %w", err)
	}

	d.delivered, err = m.Int64Counter(
		"dispatcher.reports.delivered",
		metric.WithDescription("Reports delivered to a sink"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating delivered counter: %w", err)
	}
	d.failed, err = m.Int64Counter(
		"dispatcher.reports.failed",
		metric.WithDescription("Reports a sink failed to store"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating failed counter: %w", err)
	}

	return d, nil
}

// Register adds a handler for the given sink with optional configuration.
// Registering a name twice replaces the earlier handler.
func (d *Dispatcher) Register(sink string, h HandlerFunc, opts ...Option) {
	cfg := &config{}
	for _, opt := range opts {
		opt(cfg)
	}

	handler := d.withMetrics(sink, h)
	if cfg.logged {
		handler = d.withLogging(sink, handler)
	}
	if cfg.bufferSize > 0 {
		handler = d.withBuffer(sink, cfg.bufferSize, handler)
	}

	if _, ok := d.handlers[sink]; !ok {
		d.order = append(d.order, sink)
	}
	d.handlers[sink] = handler
}

// Sinks returns the registered sink names in registration order.
func (d *Dispatcher) Sinks() []string {
	return append([]string(nil), d.order...)
}

// Dispatch routes an event to its registered handler.
func (d *Dispatcher) Dispatch(ctx context.Context, e Event) error {
	h, ok := d.handlers[e.Sink]
	if !ok {
		return fmt.Errorf("unknown sink: %s", e.Sink)
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}
	return h(ctx, e)
}

// Broadcast sends p to every sink in registration order. A failing sink
// does not stop the others; the returned error joins every failure of a
// synchronous sink.
func (d *Dispatcher) Broadcast(ctx context.Context, p *core.ReportPayload) error {
	now := time.Now()
	var errs []error
	for _, sink := range d.order {
		if err := d.Dispatch(ctx, Event{Sink: sink, Payload: p, Timestamp: now}); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", sink, err))
		}
	}
	return errors.Join(errs...)
}

// Close drains the async sinks and returns the errors they reported.
// Sends still blocked on a full buffer fail with a closed error.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.done)
	}
	d.mu.Unlock()

	// no send can start once closed is set; wait for the ones in flight
	// before closing the buffers they write to
	d.sends.Wait()
	d.closeBufs.Do(func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		for _, buf := range d.buffers {
			close(buf)
		}
	})

	d.wg.Wait()

	d.mu.Lock()
	defer d.mu.Unlock()
	return errors.Join(d.errs...)
}

func (d *Dispatcher) withMetrics(sink string, h HandlerFunc) HandlerFunc {
	sinkAttr := metric.WithAttributes(attribute.String("sink", sink))
	return func(ctx context.Context, e Event) error {
		if err := h(ctx, e); err != nil {
			d.failed.Add(context.Background(), 1, sinkAttr)
			return err
		}
		d.delivered.Add(context.Background(), 1, sinkAttr)
		return nil
	}
}

func (d *Dispatcher) withBuffer(sink string, size int, h HandlerFunc) HandlerFunc {
	buffer := make(chan queued, size)

	d.mu.Lock()
	d.buffers[sink] = buffer
	d.mu.Unlock()

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		for q := range buffer {
			if err := h(q.ctx, q.e); err != nil {
				d.mu.Lock()
				d.errs = append(d.errs, fmt.Errorf("%s: %w", sink, err))
				d.mu.Unlock()
			}
		}
	}()

	return func(ctx context.Context, e Event) error {
		d.mu.Lock()
		if d.closed {
			d.mu.Unlock()
			return fmt.Errorf("dispatcher closed: %s", sink)
		}
		d.sends.Add(1)
		d.mu.Unlock()
		defer d.sends.Done()

		select {
		case buffer <- queued{ctx: ctx, e: e}:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		case <-d.done:
			return fmt.Errorf("dispatcher closed: %s", sink)
		}
	}
}

func (d *Dispatcher) withLogging(sink string, h HandlerFunc) HandlerFunc {
	return func(ctx context.Context, e Event) error {
		start := time.Now()
		d.logger.Debug("storing report", "sink", sink, "run_id", runID(e))

		err := h(ctx, e)

		if err != nil {
			d.logger.Error("sink failed", "sink", sink, "duration", time.Since(start), "error", err)
		} else {
			d.logger.Debug("report stored", "sink", sink, "duration", time.Since(start))
		}
		return err
	}
}

func runID(e Event) string {
	if e.Payload == nil {
		return ""
	}
	return e.Payload.RunID
}
