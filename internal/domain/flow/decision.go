package flow

import (
	"time"

	"github.com/sophialabs/payprobe/internal/domain/ledger"
)

// Decision is the outcome of one purchase-package iteration.
type Decision string

const (
	Continue          Decision = "continue"
	SkipDuplicate     Decision = "skip_duplicate"
	RecoverNavigation Decision = "recover_navigation"
	Stop              Decision = "stop"
)

// Decide applies the stop/skip rules to the counters taken around one
// purchase confirmation. checkNavigation is true when the iteration produced
// the first normal purchase; the caller then resolves the outcome into
// SkipDuplicate or RecoverNavigation depending on whether the page moved.
func Decide(before, after ledger.Counts) (d Decision, checkNavigation bool) {
	switch {
	case after.Renewal >= 1 && after.Normal >= 1:
		return Stop, false
	case after.Renewal >= 1 && after.Normal == 0 && after.Renewal > before.Renewal:
		return SkipDuplicate, false
	case after.Normal >= 1 && after.Renewal == 0 && after.Normal > before.Normal:
		return SkipDuplicate, true
	default:
		return Continue, false
	}
}

// Timings are the fixed waits of one iteration.
type Timings struct {
	Settle          time.Duration `yaml:"settle"`           // after selecting a package
	Confirm         time.Duration `yaml:"confirm"`          // after confirming the purchase
	NavigationCheck time.Duration `yaml:"navigation_check"` // before comparing URLs
	BackSettle      time.Duration `yaml:"back_settle"`      // after going back
	AckSettle       time.Duration `yaml:"ack_settle"`       // after acknowledging the payment
}

// DefaultTimings returns the waits used against the production pages.
func DefaultTimings() Timings {
	return Timings{
		Settle:          time.Second,
		Confirm:         time.Second,
		NavigationCheck: 5 * time.Second,
		BackSettle:      2 * time.Second,
		AckSettle:       3 * time.Second,
	}
}

// Plan names the elements the controller works with.
type Plan struct {
	Packages    Query  // purchase packages, enumerated once per case
	Confirm     Target // purchase confirmation button
	Acknowledge Target // "payment completed" acknowledgement after a redirect
}

// DefaultPlan returns the selectors of the payment popup.
func DefaultPlan() Plan {
	return Plan{
		Packages:    Query{Selector: `[data-e2e^="payment-pop-item"]`},
		Confirm:     Target{Selector: `[data-e2e="payment-pop-buy"]`, Description: "buy button"},
		Acknowledge: Target{Text: "我已支付完成", Description: "payment acknowledgement"},
	}
}
