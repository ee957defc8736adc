package ratelimit_test

import (
	"context"
	"errors"
	"slices"
	"sync"
	"testing"

	"github.com/sophialabs/payprobe/internal/domain/flow"
	"github.com/sophialabs/payprobe/internal/domain/ledger"
	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/ratelimit"
	"github.com/sophialabs/payprobe/internal/testutil"
)

type recordingPacer struct {
	mu    sync.Mutex
	kinds []string
	err   error
}

func (p *recordingPacer) Wait(_ context.Context, kind string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.kinds = append(p.kinds, kind)
	return p.err
}

func TestPacedDriver_PacesPageChanges(t *testing.T) {
	inner := &testutil.ScriptedDriver{Targets: []flow.Target{{Ref: "1", Description: "monthly"}}}
	pacer := &recordingPacer{}
	d := ratelimit.NewPacedDriver(inner, pacer)
	ctx := context.Background()

	if err := d.Navigate(ctx, "https://novel.example.com/p", flow.NavigateOptions{}); err != nil {
		t.Fatal(err)
	}
	targets, err := d.EnumerateTargets(ctx, flow.Query{Selector: ".pkg"})
	if err != nil || len(targets) != 1 {
		t.Fatalf("EnumerateTargets = %v, %v", targets, err)
	}
	if err := d.Act(ctx, targets[0]); err != nil {
		t.Fatal(err)
	}
	if _, err := d.CurrentURL(ctx); err != nil {
		t.Fatal(err)
	}
	if err := d.GoBack(ctx); err != nil {
		t.Fatal(err)
	}

	want := []string{ratelimit.KindNavigate, ratelimit.KindAct, ratelimit.KindBack}
	if !slices.Equal(pacer.kinds, want) {
		t.Errorf("paced kinds = %v, want %v", pacer.kinds, want)
	}
	wantCalls := []string{"navigate:https://novel.example.com/p", "enumerate:.pkg", "act:monthly", "back"}
	if !slices.Equal(inner.Calls(), wantCalls) {
		t.Errorf("inner calls = %v, want %v", inner.Calls(), wantCalls)
	}
}

func TestPacedDriver_PacerErrorSkipsCall(t *testing.T) {
	inner := &testutil.ScriptedDriver{}
	d := ratelimit.NewPacedDriver(inner, &recordingPacer{err: context.DeadlineExceeded})
	ctx := context.Background()

	err := d.Act(ctx, flow.Target{Description: "buy button"})
	var actErr *flow.ActionError
	if !errors.As(err, &actErr) || actErr.Target != "buy button" {
		t.Errorf("expected ActionError for buy button, got %v", err)
	}
	err = d.Navigate(ctx, "https://x", flow.NavigateOptions{})
	var navErr *flow.NavigationError
	if !errors.As(err, &navErr) || !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected wrapped NavigationError, got %v", err)
	}
	if len(inner.Calls()) != 0 {
		t.Errorf("inner driver should not be called, got %v", inner.Calls())
	}
}

func TestPacedDriver_SubscribePassesThrough(t *testing.T) {
	inner := &testutil.ScriptedDriver{}
	d := ratelimit.NewPacedDriver(inner, &recordingPacer{})

	var got []ledger.CapturedRequest
	unsubscribe := d.Subscribe(func(r ledger.CapturedRequest) { got = append(got, r) })
	inner.Emit(ledger.CapturedRequest{URL: "https://stat.example.com/lapp/page"})
	unsubscribe()
	inner.Emit(ledger.CapturedRequest{URL: "https://stat.example.com/lapp/event"})

	if len(got) != 1 {
		t.Errorf("expected one delivered request, got %d", len(got))
	}
}
