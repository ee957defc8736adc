package ratelimit

import (
	"context"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
)

// Action kinds passed to the pacer.
const (
	KindNavigate = "navigate"
	KindAct      = "act"
	KindBack     = "back"
)

var _ flow.Driver = (*PacedDriver)(nil)

// PacedDriver spaces out the page-changing calls of a driver. Reads and the
// event stream pass through unpaced.
type PacedDriver struct {
	flow.Driver
	pacer ports.Pacer
}

// NewPacedDriver wraps d.
func NewPacedDriver(d flow.Driver, pacer ports.Pacer) *PacedDriver {
	return &PacedDriver{Driver: d, pacer: pacer}
}

func (d *PacedDriver) Navigate(ctx context.Context, url string, opts flow.NavigateOptions) error {
	if err := d.pacer.Wait(ctx, KindNavigate); err != nil {
		return &flow.NavigationError{URL: url, Err: err}
	}
	return d.Driver.Navigate(ctx, url, opts)
}

func (d *PacedDriver) Act(ctx context.Context, t flow.Target) error {
	if err := d.pacer.Wait(ctx, KindAct); err != nil {
		return &flow.ActionError{Target: t.Label(), Err: err}
	}
	return d.Driver.Act(ctx, t)
}

func (d *PacedDriver) GoBack(ctx context.Context) error {
	if err := d.pacer.Wait(ctx, KindBack); err != nil {
		return &flow.NavigationError{URL: "history:back", Err: err}
	}
	return d.Driver.GoBack(ctx)
}
