// Package poller refreshes a page view on a fixed interval until stopped.
package poller

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Outcomes reported to the Observer.
const (
	OutcomeApplied = "applied"
	OutcomeStale   = "stale"
	OutcomeError   = "error"
)

// Tick refreshes once. applied is false when a newer refresh already landed.
type Tick func(ctx context.Context) (applied bool, err error)

// Observer receives per-tick outcomes.
type Observer interface {
	ObservePoll(page, outcome string)
}

// Poller runs Tick every interval. Ticks never overlap and each one is
// bounded by the interval, so a hung request cannot outlive the next tick.
type Poller struct {
	name     string
	interval time.Duration
	tick     Tick
	logger   *zap.Logger
	observer Observer

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// Option customises a Poller.
type Option func(*Poller)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option { return func(p *Poller) { p.logger = l } }

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option { return func(p *Poller) { p.observer = o } }

// New constructs a stopped poller.
func New(name string, interval time.Duration, tick Tick, opts ...Option) *Poller {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	p := &Poller{name: name, interval: interval, tick: tick, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(p)
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p
}

// Interval returns the polling period.
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Start launches the loop. Calling it while running is a no-op.
func (p *Poller) Start(parent context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.loop(ctx, p.done)
	p.logger.Debug("poller started", zap.String("page", p.name), zap.Duration("interval", p.interval))
}

// Stop cancels any in-flight tick and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done = nil, nil
	p.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	p.logger.Debug("poller stopped", zap.String("page", p.name))
}

// Running reports whether the loop is active.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

func (p *Poller) loop(ctx context.Context, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *Poller) runOnce(ctx context.Context) {
	tickCtx, cancel := context.WithTimeout(ctx, p.interval)
	defer cancel()

	applied, err := p.tick(tickCtx)
	switch {
	case err != nil && ctx.Err() != nil:
		// stopped mid-tick
		return
	case err != nil:
		level := p.logger.Warn
		if errors.Is(err, context.DeadlineExceeded) {
			level = p.logger.Info
		}
		level("poll failed", zap.String("page", p.name), zap.Error(err))
		p.observe(OutcomeError)
	case !applied:
		p.observe(OutcomeStale)
	default:
		p.observe(OutcomeApplied)
	}
}

func (p *Poller) observe(outcome string) {
	if p.observer != nil {
		p.observer.ObservePoll(p.name, outcome)
	}
}
