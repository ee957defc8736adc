package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
)

var _ ports.Logger = (*NoopLogger)(nil)

// NoopLogger discards all log output.
type NoopLogger struct{}

func (l *NoopLogger) Info(string, ...any)  {}
func (l *NoopLogger) Warn(string, ...any)  {}
func (l *NoopLogger) Error(string, ...any) {}
func (l *NoopLogger) Debug(string, ...any) {}

var _ ports.Logger = (*RecordingLogger)(nil)

// LogRecord is one captured log call.
type LogRecord struct {
	Level string
	Msg   string
	Args  []any
}

// RecordingLogger keeps every log call for assertions.
type RecordingLogger struct {
	mu      sync.Mutex
	Records []LogRecord
}

func (l *RecordingLogger) record(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Records = append(l.Records, LogRecord{Level: level, Msg: msg, Args: args})
}

func (l *RecordingLogger) Info(msg string, args ...any)  { l.record("INFO", msg, args) }
func (l *RecordingLogger) Warn(msg string, args ...any)  { l.record("WARN", msg, args) }
func (l *RecordingLogger) Error(msg string, args ...any) { l.record("ERROR", msg, args) }
func (l *RecordingLogger) Debug(msg string, args ...any) { l.record("DEBUG", msg, args) }

// Count returns how many records were logged at level.
func (l *RecordingLogger) Count(level string) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, r := range l.Records {
		if r.Level == level {
			n++
		}
	}
	return n
}

var _ ports.Clock = (*FixedClock)(nil)

// FixedClock returns a fixed time and never sleeps. Requested sleeps are recorded.
type FixedClock struct {
	T time.Time

	mu     sync.Mutex
	sleeps []time.Duration
}

func (c *FixedClock) Now() time.Time { return c.T }

func (c *FixedClock) SleepContext(ctx context.Context, d time.Duration) error {
	c.mu.Lock()
	c.sleeps = append(c.sleeps, d)
	c.mu.Unlock()
	return ctx.Err()
}

// Sleeps returns the durations passed to SleepContext, in order.
func (c *FixedClock) Sleeps() []time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]time.Duration(nil), c.sleeps...)
}

var _ flow.Driver = (*ScriptedDriver)(nil)

// ScriptedDriver is an in-memory flow.Driver. Hooks run without the driver
// lock held, so they may call SetURL and Emit.
type ScriptedDriver struct {
	Targets      []flow.Target
	EnumerateErr error
	NavigateErr  error

	// OnAct runs for every Act call; its error is returned to the caller.
	OnAct func(d *ScriptedDriver, t flow.Target) error
	// OnNavigate runs after a successful Navigate.
	OnNavigate func(d *ScriptedDriver, url string)

	mu          sync.Mutex
	history     []string
	calls       []string
	subscribers map[int]func(ledger.CapturedRequest)
	nextSub     int
}

func (d *ScriptedDriver) logCall(format string, args ...any) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, fmt.Sprintf(format, args...))
}

// Calls returns every driver call in order, e.g. "act:buy button".
func (d *ScriptedDriver) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// SetURL simulates the page moving to url.
func (d *ScriptedDriver) SetURL(url string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.history = append(d.history, url)
}

// Emit delivers a request to every subscriber.
func (d *ScriptedDriver) Emit(req ledger.CapturedRequest) {
	d.mu.Lock()
	subs := make([]func(ledger.CapturedRequest), 0, len(d.subscribers))
	for _, fn := range d.subscribers {
		subs = append(subs, fn)
	}
	d.mu.Unlock()
	for _, fn := range subs {
		fn(req)
	}
}

// Subscribers returns the number of active subscriptions.
func (d *ScriptedDriver) Subscribers() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.subscribers)
}

func (d *ScriptedDriver) Navigate(_ context.Context, url string, _ flow.NavigateOptions) error {
	d.logCall("navigate:%s", url)
	if d.NavigateErr != nil {
		return &flow.NavigationError{URL: url, Err: d.NavigateErr}
	}
	d.SetURL(url)
	if d.OnNavigate != nil {
		d.OnNavigate(d, url)
	}
	return nil
}

func (d *ScriptedDriver) EnumerateTargets(_ context.Context, q flow.Query) ([]flow.Target, error) {
	d.logCall("enumerate:%s%s", q.Selector, q.Text)
	if d.EnumerateErr != nil {
		return nil, d.EnumerateErr
	}
	return append([]flow.Target(nil), d.Targets...), nil
}

func (d *ScriptedDriver) Act(_ context.Context, t flow.Target) error {
	d.logCall("act:%s", t.Label())
	if d.OnAct != nil {
		if err := d.OnAct(d, t); err != nil {
			return &flow.ActionError{Target: t.Label(), Err: err}
		}
	}
	return nil
}

func (d *ScriptedDriver) CurrentURL(context.Context) (string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) == 0 {
		return "about:blank", nil
	}
	return d.history[len(d.history)-1], nil
}

func (d *ScriptedDriver) GoBack(context.Context) error {
	d.logCall("back")
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.history) > 1 {
		d.history = d.history[:len(d.history)-1]
	}
	return nil
}

func (d *ScriptedDriver) Subscribe(fn func(ledger.CapturedRequest)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.subscribers == nil {
		d.subscribers = make(map[int]func(ledger.CapturedRequest))
	}
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subscribers, id)
	}
}
