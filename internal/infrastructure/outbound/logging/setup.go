package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

// Log modes select where records are written.
const (
	ModeBoth    = "both"
	ModeFile    = "file"
	ModeConsole = "console"
)

// Options configures the process logger.
type Options struct {
	Mode    string // both, file or console
	Dir     string // directory for the log file
	Level   string // debug, info, warn, error
	Console io.Writer
	Now     func() time.Time
}

// ParseLevel maps a level name onto a slog.Level. Unknown names mean debug.
func ParseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelDebug
	}
}

// ValidMode reports whether mode is a known log mode.
func ValidMode(mode string) bool {
	switch mode {
	case ModeBoth, ModeFile, ModeConsole:
		return true
	}
	return false
}

// Setup builds the slog logger for the configured mode. The returned closer
// releases the log file, if one was opened.
func Setup(opts Options) (*slog.Logger, io.Closer, error) {
	if opts.Mode == "" {
		opts.Mode = ModeConsole
	}
	if !ValidMode(opts.Mode) {
		return nil, nil, fmt.Errorf("unknown log mode %q", opts.Mode)
	}
	if opts.Console == nil {
		opts.Console = os.Stdout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var (
		handlers []slog.Handler
		closer   io.Closer = nopCloser{}
	)
	if opts.Mode == ModeConsole || opts.Mode == ModeBoth {
		handlers = append(handlers, slog.NewTextHandler(opts.Console, handlerOpts))
	}
	if opts.Mode == ModeFile || opts.Mode == ModeBoth {
		f, err := openLogFile(opts.Dir, opts.Now())
		if err != nil {
			return nil, nil, err
		}
		handlers = append(handlers, slog.NewTextHandler(f, handlerOpts))
		closer = f
	}

	if len(handlers) == 1 {
		return slog.New(handlers[0]), closer, nil
	}
	return slog.New(NewFanout(handlers...)), closer, nil
}

func openLogFile(dir string, now time.Time) (*os.File, error) {
	if dir == "" {
		dir = "logs"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating log dir: %w", err)
	}
	name := filepath.Join(dir, "payprobe-"+now.Format("20060102-150405")+".log")
	f, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening log file: %w", err)
	}
	return f, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Fanout is a slog.Handler that forwards every record to several handlers.
type Fanout struct {
	handlers []slog.Handler
}

// NewFanout creates a handler writing to all of hs.
func NewFanout(hs ...slog.Handler) *Fanout {
	return &Fanout{handlers: hs}
}

func (f *Fanout) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range f.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (f *Fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f *Fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &Fanout{handlers: hs}
}

func (f *Fanout) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(f.handlers))
	for i, h := range f.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &Fanout{handlers: hs}
}
