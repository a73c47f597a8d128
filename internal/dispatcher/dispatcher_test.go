package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/auvmap/analyzer/pkg/core"
)

// testLogger implements Logger for testing
type testLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *testLogger) Debug(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("DEBUG: %s %v", msg, keysAndValues))
}

func (l *testLogger) Info(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("INFO: %s %v", msg, keysAndValues))
}

func (l *testLogger) Error(msg string, keysAndValues ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf("ERROR: %s %v", msg, keysAndValues))
}

func (l *testLogger) has(prefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, m := range l.messages {
		if strings.HasPrefix(m, prefix) {
			return true
		}
	}
	return false
}

func newTestDispatcher(t *testing.T) (*Dispatcher, *testLogger) {
	logger := &testLogger{}

	d, err := New(logger)
	if err != nil {
		t.Fatalf("failed to create dispatcher: %v", err)
	}

	return d, logger
}

var payload = &core.ReportPayload{RunID: "run-1"}

func TestDispatcher_SyncHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var got Event
	d.Register("file", func(_ context.Context, e Event) error {
		got = e
		return nil
	})

	if err := d.Dispatch(context.Background(), Event{Sink: "file", Payload: payload}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if got.Payload != payload {
		t.Error("handler did not receive the payload")
	}
	if got.Timestamp.IsZero() {
		t.Error("expected timestamp to be set")
	}
}

func TestDispatcher_UnknownSink(t *testing.T) {
	d, _ := newTestDispatcher(t)

	if err := d.Dispatch(context.Background(), Event{Sink: "ftp"}); err == nil {
		t.Error("expected error for unknown sink")
	}
}

func TestDispatcher_BroadcastOrderAndErrors(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var order []string
	boom := errors.New("boom")
	d.Register("file", func(context.Context, Event) error {
		order = append(order, "file")
		return nil
	})
	d.Register("sqlite", func(context.Context, Event) error {
		order = append(order, "sqlite")
		return boom
	})
	d.Register("render", func(context.Context, Event) error {
		order = append(order, "render")
		return nil
	})

	err := d.Broadcast(context.Background(), payload)
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if !strings.Contains(err.Error(), "sqlite") {
		t.Errorf("expected sink name in error, got %v", err)
	}
	if strings.Join(order, ",") != "file,sqlite,render" {
		t.Errorf("unexpected order %v", order)
	}
	if got := strings.Join(d.Sinks(), ","); got != "file,sqlite,render" {
		t.Errorf("unexpected sinks %s", got)
	}
}

func TestDispatcher_RegisterReplaces(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var calls int
	d.Register("file", func(context.Context, Event) error { return errors.New("old") })
	d.Register("file", func(context.Context, Event) error {
		calls++
		return nil
	})

	if err := d.Broadcast(context.Background(), payload); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if calls != 1 || len(d.Sinks()) != 1 {
		t.Errorf("expected one sink called once, got %d calls and %v", calls, d.Sinks())
	}
}

func TestDispatcher_BufferedHandler(t *testing.T) {
	d, _ := newTestDispatcher(t)

	var count atomic.Int32
	d.Register("influx", func(context.Context, Event) error {
		time.Sleep(5 * time.Millisecond)
		count.Add(1)
		return nil
	}, Buffered(2))

	for i := 0; i < 5; i++ {
		if err := d.Dispatch(context.Background(), Event{Sink: "influx", Payload: payload}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if err := d.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if count.Load() != 5 {
		t.Errorf("expected 5 deliveries, got %d", count.Load())
	}
}

func TestDispatcher_BufferedErrorsSurfaceOnClose(t *testing.T) {
	d, _ := newTestDispatcher(t)

	boom := errors.New("boom")
	d.Register("influx", func(context.Context, Event) error { return boom }, Buffered(1))

	if err := d.Broadcast(context.Background(), payload); err != nil {
		t.Errorf("async sink should not fail the broadcast: %v", err)
	}
	if err := d.Close(); !errors.Is(err, boom) {
		t.Errorf("expected boom from Close, got %v", err)
	}
	if err := d.Dispatch(context.Background(), Event{Sink: "influx"}); err == nil {
		t.Error("expected error after Close")
	}
}

func TestDispatcher_BufferedCancelled(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 2)
	release := make(chan struct{})
	d.Register("slow", func(context.Context, Event) error {
		started <- struct{}{}
		<-release
		return nil
	}, Buffered(1))

	ctx, cancel := context.WithCancel(context.Background())
	// first is picked up by the worker, second fills the buffer
	_ = d.Dispatch(ctx, Event{Sink: "slow"})
	<-started
	_ = d.Dispatch(ctx, Event{Sink: "slow"})
	cancel()

	if err := d.Dispatch(ctx, Event{Sink: "slow"}); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	close(release)
	if err := d.Close(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDispatcher_LoggedHandler(t *testing.T) {
	d, logger := newTestDispatcher(t)

	d.Register("file", func(context.Context, Event) error { return nil }, Logged())
	d.Register("bad", func(context.Context, Event) error { return errors.New("nope") }, Logged())

	_ = d.Broadcast(context.Background(), payload)

	if !logger.has("DEBUG: report stored") {
		t.Error("expected success debug log")
	}
	if !logger.has("ERROR: sink failed") {
		t.Error("expected error log")
	}
}

func TestDispatcher_CloseDuringDispatch(t *testing.T) {
	for round := 0; round < 50; round++ {
		d, _ := newTestDispatcher(t)
		d.Register("influx", func(context.Context, Event) error { return nil }, Buffered(1))

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for j := 0; j < 20; j++ {
					// errors are expected once Close has run; a panic is not
					_ = d.Dispatch(context.Background(), Event{Sink: "influx", Payload: payload})
				}
			}()
		}
		if err := d.Close(); err != nil {
			t.Errorf("round %d: unexpected error: %v", round, err)
		}
		wg.Wait()
	}
}

func TestDispatcher_CloseUnblocksFullBuffer(t *testing.T) {
	d, _ := newTestDispatcher(t)

	started := make(chan struct{}, 1)
	release := make(chan struct{})
	d.Register("slow", func(context.Context, Event) error {
		select {
		case started <- struct{}{}:
		default:
		}
		<-release
		return nil
	}, Buffered(1))

	_ = d.Dispatch(context.Background(), Event{Sink: "slow"})
	<-started
	_ = d.Dispatch(context.Background(), Event{Sink: "slow"})

	blocked := make(chan error, 1)
	go func() {
		blocked <- d.Dispatch(context.Background(), Event{Sink: "slow"})
	}()

	closed := make(chan error, 1)
	go func() { closed <- d.Close() }()

	select {
	case err := <-blocked:
		if err == nil || !strings.Contains(err.Error(), "dispatcher closed") {
			t.Errorf("expected closed error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("send stayed blocked after Close")
	}
	close(release)
	if err := <-closed; err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
