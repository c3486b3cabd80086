// Package ratelimit paces outbound calls per provider. Each provider gets an
// independent gate, so a slow or saturated provider never delays calls to the
// others. This is backpressure only; retries belong to the orchestrator.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// Settings are the two admission knobs per provider.
type Settings struct {
	MaxConcurrency int64         // parallel in-flight calls
	MinInterval    time.Duration // minimum spacing between call starts
}

// DefaultSettings 默认一次一个请求、间隔 200ms，宁慢勿封。
func DefaultSettings() Settings {
	return Settings{MaxConcurrency: 1, MinInterval: 200 * time.Millisecond}
}

type gate struct {
	sem      *semaphore.Weighted
	interval time.Duration

	mu        sync.Mutex
	nextStart time.Time
}

// Limiter holds one gate per provider, created lazily.
type Limiter struct {
	mu        sync.Mutex
	gates     map[string]*gate
	defaults  Settings
	overrides map[string]Settings
}

func New(defaults Settings) *Limiter {
	if defaults.MaxConcurrency <= 0 {
		defaults.MaxConcurrency = 1
	}
	return &Limiter{
		gates:     make(map[string]*gate),
		defaults:  defaults,
		overrides: make(map[string]Settings),
	}
}

// Configure overrides the settings for one provider. Must be called before
// the first Schedule for that provider takes effect.
func (l *Limiter) Configure(provider string, s Settings) {
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = 1
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.overrides[provider] = s
	delete(l.gates, provider)
}

func (l *Limiter) gateFor(provider string) *gate {
	l.mu.Lock()
	defer l.mu.Unlock()
	if g, ok := l.gates[provider]; ok {
		return g
	}
	s := l.defaults
	if o, ok := l.overrides[provider]; ok {
		s = o
	}
	g := &gate{
		sem:      semaphore.NewWeighted(s.MaxConcurrency),
		interval: s.MinInterval,
	}
	l.gates[provider] = g
	return g
}

// Schedule admits fn through the provider's gate: a concurrency slot first,
// then the min-interval spacing. The slot is released on every path, so a
// canceled or timed-out task never leaks capacity. Cancellation while waiting
// returns ctx.Err().
func (l *Limiter) Schedule(ctx context.Context, provider string, fn func(ctx context.Context) error) error {
	g := l.gateFor(provider)

	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)

	if g.interval > 0 {
		// 预约式排队：每个任务把 nextStart 往后推一个间隔，起跑点之间的
		// 间距严格 >= interval，哪怕任务本身瞬间完成。
		g.mu.Lock()
		now := time.Now()
		start := g.nextStart
		if start.Before(now) {
			start = now
		}
		g.nextStart = start.Add(g.interval)
		g.mu.Unlock()

		if wait := time.Until(start); wait > 0 {
			t := time.NewTimer(wait)
			defer t.Stop()
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-t.C:
			}
		}
	}

	return fn(ctx)
}
