package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
)

const (
	defaultActionTimeout = 10 * time.Second
	networkIdleQuiet     = 500 * time.Millisecond
	networkIdlePoll      = 100 * time.Millisecond
)

// Options configures the browser.
type Options struct {
	Headless      bool
	UserDataDir   string // empty uses a throwaway profile
	ExecPath      string // empty lets chromedp find Chrome
	RemoteURL     string // DevTools websocket of an already running browser
	Device        Device
	ActionTimeout time.Duration
}

var _ flow.Driver = (*ChromeDriver)(nil)

// ChromeDriver drives a single Chrome tab over the DevTools protocol and
// publishes every request the tab issues.
type ChromeDriver struct {
	ctx           context.Context
	cancel        context.CancelFunc
	allocCancel   context.CancelFunc
	actionTimeout time.Duration
	logger        ports.Logger

	mu           sync.Mutex
	subscribers  map[int]func(ledger.CapturedRequest)
	nextSub      int
	inflight     map[network.RequestID]struct{}
	lastActivity time.Time
}

// NewChromeDriver launches (or attaches to) Chrome and prepares one tab with
// network capture and device emulation enabled.
func NewChromeDriver(opts Options, logger ports.Logger) (*ChromeDriver, error) {
	if err := opts.Device.Validate(); err != nil {
		return nil, fmt.Errorf("invalid device: %w", err)
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteURL != "" {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	}
	tabCtx, cancel := chromedp.NewContext(allocCtx)

	d := &ChromeDriver{
		ctx:           tabCtx,
		cancel:        cancel,
		allocCancel:   allocCancel,
		actionTimeout: opts.ActionTimeout,
		logger:        logger,
		subscribers:   make(map[int]func(ledger.CapturedRequest)),
		inflight:      make(map[network.RequestID]struct{}),
	}
	if d.actionTimeout <= 0 {
		d.actionTimeout = defaultActionTimeout
	}

	chromedp.ListenTarget(tabCtx, d.onEvent)

	// The first Run starts the browser and must use the tab context itself.
	if err := chromedp.Run(tabCtx, setupActions(opts.Device)...); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to start browser: %w", err)
	}
	logger.Info("browser started",
		"headless", opts.Headless,
		"remote", opts.RemoteURL != "",
		"viewport", fmt.Sprintf("%dx%d@%v", opts.Device.Width, opts.Device.Height, opts.Device.Scale),
	)
	return d, nil
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	out = append(out,
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-popup-blocking", true),
		chromedp.WindowSize(opts.Device.Width, opts.Device.Height),
	)
	if !opts.Headless {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.UserDataDir != "" {
		out = append(out, chromedp.UserDataDir(opts.UserDataDir))
	}
	if opts.ExecPath != "" {
		out = append(out, chromedp.ExecPath(opts.ExecPath))
	}
	if opts.Device.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.Device.UserAgent))
	}
	return out
}

func setupActions(dev Device) []chromedp.Action {
	actions := []chromedp.Action{
		network.Enable(),
		emulation.SetDeviceMetricsOverride(int64(dev.Width), int64(dev.Height), dev.Scale, dev.Mobile),
	}
	if dev.Mobile {
		actions = append(actions, emulation.SetTouchEmulationEnabled(true))
	}
	if dev.UserAgent != "" {
		actions = append(actions, emulation.SetUserAgentOverride(dev.UserAgent))
	}
	return actions
}

// Close shuts the tab and the browser down.
func (d *ChromeDriver) Close() error {
	err := chromedp.Cancel(d.ctx)
	d.cancel()
	d.allocCancel()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// run executes actions on the tab, bounded by timeout and by the caller's ctx.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(d.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string, opts flow.NavigateOptions) error {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	d.resetInflight()

	var actions []chromedp.Action
	if opts.WaitPolicy == flow.WaitDOMContentLoaded {
		actions = append(actions, navigateNoWait(url), chromedp.WaitReady("body", chromedp.ByQuery))
	} else {
		actions = append(actions, chromedp.Navigate(url))
	}
	if opts.WaitPolicy == flow.WaitNetworkIdle {
		actions = append(actions, chromedp.ActionFunc(d.waitNetworkIdle))
	}

	if err := d.run(ctx, timeout, actions...); err != nil {
		return &flow.NavigationError{URL: url, Err: err}
	}
	return nil
}

func navigateNoWait(url string) chromedp.Action {
	return chromedp.ActionFunc(func(ctx context.Context) error {
		_, _, errText, err := page.Navigate(url).Do(ctx)
		if err != nil {
			return err
		}
		if errText != "" {
			return fmt.Errorf("page load error %s", errText)
		}
		return nil
	})
}

// EnumerateTargets returns the elements currently matching q without waiting
// for more to appear. Text takes precedence over Selector.
func (d *ChromeDriver) EnumerateTargets(ctx context.Context, q flow.Query) ([]flow.Target, error) {
	var nodes []*cdp.Node
	if err := d.run(ctx, d.actionTimeout, findNodes(q, &nodes, chromedp.AtLeast(0))); err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", queryLabel(q), err)
	}
	d.logger.Debug("targets enumerated", "query", queryLabel(q), "count", len(nodes))
	return targetsFor(q, len(nodes)), nil
}

// Act clicks the target. The element is looked up again so that targets stay
// valid across re-renders; the lookup waits up to the action timeout.
func (d *ChromeDriver) Act(ctx context.Context, t flow.Target) error {
	idx, err := refIndex(t.Ref)
	if err != nil {
		return &flow.ActionError{Target: t.Label(), Err: err}
	}
	q := flow.Query{Selector: t.Selector, Text: t.Text}
	if q.Selector == "" && q.Text == "" {
		return &flow.ActionError{Target: t.Label(), Err: errors.New("target has neither selector nor text")}
	}

	var nodes []*cdp.Node
	err = d.run(ctx, d.actionTimeout,
		findNodes(q, &nodes),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if idx >= len(nodes) {
				return fmt.Errorf("only %d elements match, want index %d", len(nodes), idx)
			}
			return chromedp.MouseClickNode(nodes[idx]).Do(ctx)
		}),
	)
	if err != nil {
		return &flow.ActionError{Target: t.Label(), Err: err}
	}
	d.logger.Debug("clicked", "target", t.Label())
	return nil
}

func findNodes(q flow.Query, nodes *[]*cdp.Node, opts ...chromedp.QueryOption) chromedp.Action {
	if q.Text != "" {
		return chromedp.Nodes(textXPath(q.Text), nodes, append(opts, chromedp.BySearch)...)
	}
	return chromedp.Nodes(q.Selector, nodes, append(opts, chromedp.ByQueryAll)...)
}

func (d *ChromeDriver) CurrentURL(ctx context.Context) (string, error) {
	var url string
	if err := d.run(ctx, d.actionTimeout, chromedp.Location(&url)); err != nil {
		return "", fmt.Errorf("failed to read location: %w", err)
	}
	return url, nil
}

func (d *ChromeDriver) GoBack(ctx context.Context) error {
	if err := d.run(ctx, d.actionTimeout, chromedp.NavigateBack()); err != nil {
		return &flow.NavigationError{URL: "history:back", Err: err}
	}
	return nil
}

func (d *ChromeDriver) Subscribe(fn func(ledger.CapturedRequest)) func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	id := d.nextSub
	d.nextSub++
	d.subscribers[id] = fn
	return func() {
		d.mu.Lock()
		defer d.mu.Unlock()
		delete(d.subscribers, id)
	}
}

// onEvent runs on the DevTools event goroutine and must not block.
func (d *ChromeDriver) onEvent(ev any) {
	switch e := ev.(type) {
	case *network.EventRequestWillBeSent:
		d.track(e.RequestID, true)
		if req, ok := capturedFrom(e, time.Now()); ok {
			d.publish(req)
		}
	case *network.EventLoadingFinished:
		d.track(e.RequestID, false)
	case *network.EventLoadingFailed:
		d.track(e.RequestID, false)
	}
}

func (d *ChromeDriver) publish(req ledger.CapturedRequest) {
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

func (d *ChromeDriver) track(id network.RequestID, started bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if started {
		d.inflight[id] = struct{}{}
	} else {
		delete(d.inflight, id)
	}
	d.lastActivity = time.Now()
}

func (d *ChromeDriver) resetInflight() {
	d.mu.Lock()
	defer d.mu.Unlock()
	clear(d.inflight)
	d.lastActivity = time.Now()
}

func (d *ChromeDriver) idleFor() time.Duration {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.inflight) > 0 {
		return 0
	}
	return time.Since(d.lastActivity)
}

// waitNetworkIdle returns once no request has been in flight for
// networkIdleQuiet.
func (d *ChromeDriver) waitNetworkIdle(ctx context.Context) error {
	ticker := time.NewTicker(networkIdlePoll)
	defer ticker.Stop()
	for {
		if d.idleFor() >= networkIdleQuiet {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
