package ratelimit_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/sophialabs/payprobe/internal/infrastructure/outbound/ratelimit"
)

func TestPacer_BurstPassesImmediately(t *testing.T) {
	p := ratelimit.NewPacer(ratelimit.Limit{Rate: 0.001, Burst: 3}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	for i := range 3 {
		if err := p.Wait(ctx, ratelimit.KindAct); err != nil {
			t.Fatalf("action %d should pass within burst: %v", i+1, err)
		}
	}
}

func TestPacer_BlocksOverBurst(t *testing.T) {
	p := ratelimit.NewPacer(ratelimit.Limit{Rate: 0.001, Burst: 1}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx, ratelimit.KindAct); err != nil {
		t.Fatalf("first action should pass: %v", err)
	}
	if err := p.Wait(ctx, ratelimit.KindAct); err == nil {
		t.Error("second action should not fit before the deadline")
	}
}

func TestPacer_PerKindIsolation(t *testing.T) {
	p := ratelimit.NewPacer(ratelimit.Limit{}, map[string]ratelimit.Limit{
		ratelimit.KindNavigate: {Rate: 0.001, Burst: 1},
	})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	if err := p.Wait(ctx, ratelimit.KindNavigate); err != nil {
		t.Fatal(err)
	}
	for range 10 {
		if err := p.Wait(ctx, ratelimit.KindAct); err != nil {
			t.Fatalf("unlimited kind should never block: %v", err)
		}
	}
	if p.Len() != 1 {
		t.Errorf("expected one bucket, got %d", p.Len())
	}
}

func TestPacer_UnlimitedHonoursCancellation(t *testing.T) {
	p := ratelimit.NewPacer(ratelimit.Limit{}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := p.Wait(ctx, ratelimit.KindAct); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPacer_SetLimit(t *testing.T) {
	p := ratelimit.NewPacer(ratelimit.Limit{Rate: 0.001, Burst: 1}, nil)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_ = p.Wait(ctx, ratelimit.KindBack)
	p.SetLimit(ratelimit.KindBack, ratelimit.Limit{})
	if p.Len() != 0 {
		t.Errorf("unlimited kind should drop its bucket, got %d", p.Len())
	}
	if err := p.Wait(ctx, ratelimit.KindBack); err != nil {
		t.Errorf("kind should be unlimited after SetLimit: %v", err)
	}
}

func TestPacer_Concurrency(t *testing.T) {
	p := ratelimit.NewPacer(ratelimit.Limit{Rate: 1000, Burst: 100}, nil)
	var wg sync.WaitGroup
	for range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = p.Wait(context.Background(), ratelimit.KindAct)
		}()
	}
	wg.Wait()

	if p.Len() != 1 {
		t.Errorf("expected a single shared bucket, got %d", p.Len())
	}
}
