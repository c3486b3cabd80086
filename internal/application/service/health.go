package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"mdagg/internal/application/port"
)

// ProviderHealth is the memoized availability state of one provider.
type ProviderHealth struct {
	Provider            string `json:"provider"`
	Available           bool   `json:"available"`
	LastCheckedAt       int64  `json:"last_checked_at"`
	ConsecutiveFailures int    `json:"consecutive_failures"`
}

type healthEntry struct {
	available           bool
	checkedAt           time.Time
	consecutiveFailures int
}

// healthMemo caches Available() probes for a fixed window so the provider
// loop does not hammer health endpoints on every request.
type healthMemo struct {
	window  time.Duration
	mu      sync.Mutex
	entries map[string]*healthEntry
}

func newHealthMemo(window time.Duration) *healthMemo {
	if window <= 0 {
		window = 15 * time.Second
	}
	return &healthMemo{window: window, entries: make(map[string]*healthEntry)}
}

// available returns the memoized probe result, refreshing it when the window
// has elapsed. Concurrent refreshes of the same provider are tolerated; the
// window bounds probe traffic in the common case.
func (h *healthMemo) available(ctx context.Context, src port.Source) bool {
	name := src.Name()

	h.mu.Lock()
	if e, ok := h.entries[name]; ok && time.Since(e.checkedAt) < h.window {
		ok := e.available
		h.mu.Unlock()
		return ok
	}
	h.mu.Unlock()

	ok := src.Available(ctx)

	h.mu.Lock()
	e, exists := h.entries[name]
	if !exists {
		e = &healthEntry{}
		h.entries[name] = e
	}
	e.available = ok
	e.checkedAt = time.Now()
	if ok {
		e.consecutiveFailures = 0
	} else {
		e.consecutiveFailures++
		log.Debug().Str("provider", name).Int("consecutive", e.consecutiveFailures).Msg("provider unavailable")
	}
	h.mu.Unlock()
	return ok
}

// noteFailure records a fetch-level failure against the provider without
// flipping its memoized availability.
func (h *healthMemo) noteFailure(name string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	e, ok := h.entries[name]
	if !ok {
		e = &healthEntry{available: true, checkedAt: time.Now()}
		h.entries[name] = e
	}
	e.consecutiveFailures++
}

// Snapshot reports the current memoized state, sorted by provider name.
func (h *healthMemo) Snapshot() []ProviderHealth {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]ProviderHealth, 0, len(h.entries))
	for name, e := range h.entries {
		out = append(out, ProviderHealth{
			Provider:            name,
			Available:           e.available,
			LastCheckedAt:       e.checkedAt.UnixMilli(),
			ConsecutiveFailures: e.consecutiveFailures,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Provider < out[j].Provider })
	return out
}
