package flow

import (
	"context"
	"errors"

	"github.com/sophialabs/payprobe/internal/domain/ledger"
)

// Iteration records what happened for one purchase package.
type Iteration struct {
	Index     int           `json:"index"`
	Target    string        `json:"target"`
	Before    ledger.Counts `json:"before"`
	After     ledger.Counts `json:"after"`
	Decision  Decision      `json:"decision"`
	Navigated bool          `json:"navigated,omitempty"`
	Err       string        `json:"error,omitempty"`
}

// Result summarizes a controller run.
type Result struct {
	Targets          int           `json:"targets"`
	Iterations       []Iteration   `json:"iterations"`
	Final            ledger.Counts `json:"final"`
	RenewalExercised bool          `json:"renewal_exercised"`
	NormalExercised  bool          `json:"normal_exercised"`
	Stopped          bool          `json:"stopped"`
	NoTargets        bool          `json:"no_targets"`
	Err              string        `json:"error,omitempty"`
}

// Controller walks the purchase packages of one page and decides, from the
// purchase counters alone, whether to keep going.
type Controller struct {
	driver   Driver
	counters CounterSource
	clock    Clock
	logger   Logger
	plan     Plan
	timings  Timings
}

// NewController creates a controller. It is used for a single case at a time.
func NewController(driver Driver, counters CounterSource, clock Clock, logger Logger, plan Plan, timings Timings) *Controller {
	return &Controller{
		driver:   driver,
		counters: counters,
		clock:    clock,
		logger:   logger,
		plan:     plan,
		timings:  timings,
	}
}

// Run enumerates the purchase packages and processes them in order until
// both purchase kinds have been seen or the packages run out. Driver errors
// abandon the current package only.
func (c *Controller) Run(ctx context.Context) Result {
	var res Result

	targets, err := c.driver.EnumerateTargets(ctx, c.plan.Packages)
	if err != nil {
		c.logger.Warn("enumerating purchase packages failed", "error", err)
		res.Err = err.Error()
		return c.finish(res)
	}
	res.Targets = len(targets)
	if len(targets) == 0 {
		c.logger.Info("no purchase packages found")
		res.NoTargets = true
		return c.finish(res)
	}
	c.logger.Info("purchase packages found", "count", len(targets))

	for i, t := range targets {
		if err := ctx.Err(); err != nil {
			res.Err = err.Error()
			break
		}
		it := c.iterate(ctx, i, t)
		res.Iterations = append(res.Iterations, it)
		c.logger.Info("package processed",
			"index", i,
			"target", it.Target,
			"decision", it.Decision,
			"renewal", it.After.Renewal,
			"normal", it.After.Normal,
		)
		if it.Decision == Stop {
			res.Stopped = true
			break
		}
	}
	return c.finish(res)
}

func (c *Controller) finish(res Result) Result {
	res.Final = c.counters.SnapshotCounts()
	res.RenewalExercised = res.Final.Renewal > 0
	res.NormalExercised = res.Final.Normal > 0
	return res
}

func (c *Controller) iterate(ctx context.Context, i int, t Target) Iteration {
	it := Iteration{Index: i, Target: t.Label(), Decision: Continue}
	fail := func(err error) Iteration {
		c.logger.Warn("package iteration failed", "index", i, "target", it.Target, "error", err)
		it.Err = err.Error()
		return it
	}

	if err := c.driver.Act(ctx, t); err != nil {
		return fail(err)
	}
	if err := c.clock.SleepContext(ctx, c.timings.Settle); err != nil {
		return fail(err)
	}
	it.Before = c.counters.SnapshotCounts()

	urlBefore, err := c.driver.CurrentURL(ctx)
	if err != nil {
		return fail(err)
	}
	if err := c.driver.Act(ctx, c.plan.Confirm); err != nil {
		return fail(err)
	}
	if err := c.clock.SleepContext(ctx, c.timings.Confirm); err != nil {
		return fail(err)
	}
	it.After = c.counters.SnapshotCounts()

	decision, checkNavigation := Decide(it.Before, it.After)
	it.Decision = decision
	if !checkNavigation {
		return it
	}

	navigated, err := c.navigatedAway(ctx, urlBefore)
	if err != nil {
		return fail(err)
	}
	if !navigated {
		return it
	}
	it.Navigated = true
	it.Decision = RecoverNavigation
	if err := c.recover(ctx); err != nil {
		return fail(err)
	}
	return it
}

func (c *Controller) navigatedAway(ctx context.Context, urlBefore string) (bool, error) {
	if err := c.clock.SleepContext(ctx, c.timings.NavigationCheck); err != nil {
		return false, err
	}
	urlAfter, err := c.driver.CurrentURL(ctx)
	if err != nil {
		return false, err
	}
	if urlAfter != urlBefore {
		c.logger.Info("page navigated after purchase", "from", urlBefore, "to", urlAfter)
		return true, nil
	}
	return false, nil
}

// recover returns to the package page and dismisses the payment dialog
// without confirming another purchase.
func (c *Controller) recover(ctx context.Context) error {
	if err := c.driver.GoBack(ctx); err != nil {
		var navErr *NavigationError
		if !errors.As(err, &navErr) {
			err = &NavigationError{URL: "history:back", Err: err}
		}
		return err
	}
	if err := c.clock.SleepContext(ctx, c.timings.BackSettle); err != nil {
		return err
	}
	if err := c.driver.Act(ctx, c.plan.Acknowledge); err != nil {
		return err
	}
	return c.clock.SleepContext(ctx, c.timings.AckSettle)
}
