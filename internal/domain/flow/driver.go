package flow

import (
	"context"
	"fmt"
	"time"

	"github.com/sophialabs/payprobe/internal/domain/ledger"
)

// WaitPolicy tells the driver when a navigation counts as finished.
type WaitPolicy string

const (
	WaitLoad             WaitPolicy = "load"
	WaitDOMContentLoaded WaitPolicy = "domcontentloaded"
	WaitNetworkIdle      WaitPolicy = "networkidle"
)

// NavigateOptions bounds a navigation.
type NavigateOptions struct {
	Timeout    time.Duration
	WaitPolicy WaitPolicy
}

// Query describes the elements to enumerate: a CSS selector, visible text, or both.
type Query struct {
	Selector string `yaml:"selector" json:"selector,omitempty"`
	Text     string `yaml:"text" json:"text,omitempty"`
}

// Target is an element the driver can act on. Ref is opaque and driver-specific.
type Target struct {
	Ref         string `json:"ref,omitempty"`
	Selector    string `json:"selector,omitempty"`
	Text        string `json:"text,omitempty"`
	Description string `json:"description,omitempty"`
}

// Label returns the most descriptive identifier available for logs.
func (t Target) Label() string {
	switch {
	case t.Description != "":
		return t.Description
	case t.Text != "":
		return t.Text
	case t.Selector != "":
		return t.Selector
	default:
		return t.Ref
	}
}

// Driver is the browser capability surface the controller and orchestrator use.
type Driver interface {
	Navigate(ctx context.Context, url string, opts NavigateOptions) error
	EnumerateTargets(ctx context.Context, q Query) ([]Target, error)
	Act(ctx context.Context, t Target) error
	CurrentURL(ctx context.Context) (string, error)
	GoBack(ctx context.Context) error
	// Subscribe registers fn for every network request the page issues.
	// fn may be called from another goroutine.
	Subscribe(fn func(ledger.CapturedRequest)) (unsubscribe func())
}

// CounterSource exposes the purchase counters of the current case.
type CounterSource interface {
	SnapshotCounts() ledger.Counts
}

// Clock is the subset of the process clock the controller waits on.
type Clock interface {
	SleepContext(ctx context.Context, d time.Duration) error
}

// Logger is the subset of the process logger the controller writes to.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Debug(msg string, args ...any)
}

// ActionError reports a failed action on a target.
type ActionError struct {
	Target string
	Err    error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("action on %q failed: %v", e.Target, e.Err)
}

func (e *ActionError) Unwrap() error { return e.Err }

// NavigationError reports a failed navigation or history move.
type NavigationError struct {
	URL string
	Err error
}

func (e *NavigationError) Error() string {
	return fmt.Sprintf("navigation to %q failed: %v", e.URL, e.Err)
}

func (e *NavigationError) Unwrap() error { return e.Err }
