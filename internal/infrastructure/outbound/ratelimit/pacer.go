package ratelimit

import (
	"context"
	"sync"

	"golang.org/x/time/rate"

	"github.com/sophialabs/payprobe/internal/infrastructure/ports"
)

var _ ports.Pacer = (*Pacer)(nil)

// Limit is a token bucket setting. A non-positive Rate disables pacing.
type Limit struct {
	Rate  float64 `yaml:"rate"`
	Burst int     `yaml:"burst"`
}

func (l Limit) unlimited() bool { return l.Rate <= 0 }

// Pacer keeps one token bucket per action kind.
type Pacer struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limits   map[string]Limit
	fallback Limit
}

// NewPacer creates a pacer. Kinds without an entry in perKind use fallback.
func NewPacer(fallback Limit, perKind map[string]Limit) *Pacer {
	limits := make(map[string]Limit, len(perKind))
	for k, v := range perKind {
		limits[k] = v
	}
	return &Pacer{
		limiters: make(map[string]*rate.Limiter),
		limits:   limits,
		fallback: fallback,
	}
}

// Wait blocks until an action of kind may proceed or ctx is done.
func (p *Pacer) Wait(ctx context.Context, kind string) error {
	lim := p.limiter(kind)
	if lim == nil {
		return ctx.Err()
	}
	return lim.Wait(ctx)
}

// SetLimit replaces the setting for kind. Existing buckets keep their tokens.
func (p *Pacer) SetLimit(kind string, l Limit) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.limits[kind] = l
	lim, ok := p.limiters[kind]
	if !ok {
		return
	}
	if l.unlimited() {
		delete(p.limiters, kind)
		return
	}
	lim.SetLimit(rate.Limit(l.Rate))
	lim.SetBurst(burst(l))
}

// Len returns the number of active buckets.
func (p *Pacer) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.limiters)
}

func (p *Pacer) limiter(kind string) *rate.Limiter {
	p.mu.Lock()
	defer p.mu.Unlock()

	if lim, ok := p.limiters[kind]; ok {
		return lim
	}
	l, ok := p.limits[kind]
	if !ok {
		l = p.fallback
	}
	if l.unlimited() {
		return nil
	}
	lim := rate.NewLimiter(rate.Limit(l.Rate), burst(l))
	p.limiters[kind] = lim
	return lim
}

func burst(l Limit) int {
	if l.Burst < 1 {
		return 1
	}
	return l.Burst
}
