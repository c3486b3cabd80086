// Package service holds the orchestrator that turns a roster of unreliable
// providers into one quality-checked answer: cache-aside lookup, priority
// failover, per-provider admission control, validation gating and
// stale-if-error fallback.
package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
	"mdagg/internal/domain/validate"
	"mdagg/internal/infrastructure/cache"
	"mdagg/internal/infrastructure/ratelimit"
)

// Lists are the priority-ordered providers, one list per operation kind so
// each kind keeps its own configured failover order. Capability is
// established at composition time: a list only ever holds connectors that
// implement the matching interface.
type Lists struct {
	Quote       []port.QuoteSource
	Kline       []port.KlineSource
	FundFlow    []port.FlowSource
	SectorFlow  []port.FlowSource
	NorthFund   []port.FlowSource
	Margin      []port.MarketSource
	DragonTiger []port.MarketSource
	News        []port.NewsSource
}

// Options carry the shared collaborators and tuning for the aggregator.
type Options struct {
	Cache          *cache.Tiered
	Limiter        *ratelimit.Limiter
	Limits         validate.Limits
	TTLs           map[string]cache.TTL
	AttemptTimeout time.Duration
	HealthMemo     time.Duration
	Verbose        bool
}

// Aggregator is the per-process orchestrator. Safe for concurrent use; all
// shared state (cache, limiter gates, health memo) is internally synchronized.
type Aggregator struct {
	lists  Lists
	opts   Options
	health *healthMemo
	flight singleflight.Group
}

func New(lists Lists, opts Options) *Aggregator {
	if opts.AttemptTimeout <= 0 {
		opts.AttemptTimeout = 8 * time.Second
	}
	return &Aggregator{
		lists:  lists,
		opts:   opts,
		health: newHealthMemo(opts.HealthMemo),
	}
}

// Health exposes the memoized provider availability snapshot.
func (a *Aggregator) Health() []ProviderHealth {
	return a.health.Snapshot()
}

// cacheRecord is what actually sits in both cache tiers: the payload plus the
// provenance and quality needed to rebuild the envelope on a hit. A result
// accepted degraded stays degraded when replayed from cache. Never mutated
// after write.
type cacheRecord struct {
	Source        string          `json:"source"`
	CachedAt      int64           `json:"cached_at"`
	Degraded      bool            `json:"degraded,omitempty"`
	DegradeReason string          `json:"degrade_reason,omitempty"`
	Warnings      []string        `json:"warnings,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

// outcome is one provider's answer after validation.
type outcome struct {
	data any
	res  validate.Result
	note string // non-empty marks a partially accepted batch
}

// candidate pairs a provider with the closure that fetches and validates one
// operation against it.
type candidate struct {
	src   port.Source
	fetch func(ctx context.Context) (outcome, error)
}

func (a *Aggregator) ttlFor(kind string) cache.TTL {
	if t, ok := a.opts.TTLs[kind]; ok {
		return t
	}
	return cache.TTL{Fresh: time.Minute, Stale: 4 * time.Hour}
}

// run executes the request state machine:
//
//	fresh cache → provider loop (health → limiter → fetch → validate)
//	→ stale cache → aggregated failure
//
// Concurrent identical requests are collapsed onto one pass via singleflight.
func (a *Aggregator) run(ctx context.Context, kind, cacheKey string, cands []candidate, decode func([]byte) (any, error)) *model.Envelope {
	if len(cands) == 0 {
		// priority lists are checked at composition time; an empty list here
		// is a wiring bug, not an expected failure
		panic("mdagg: no providers composed for operation " + kind)
	}

	v, _, _ := a.flight.Do(cacheKey, func() (any, error) {
		return a.runOnce(ctx, kind, cacheKey, cands, decode), nil
	})
	return v.(*model.Envelope)
}

func (a *Aggregator) runOnce(ctx context.Context, kind, cacheKey string, cands []candidate, decode func([]byte) (any, error)) *model.Envelope {
	if b, ok := a.opts.Cache.GetFresh(ctx, cacheKey); ok {
		if env := envelopeFromRecord(b, decode); env != nil {
			return env
		}
		log.Warn().Str("kind", kind).Msg("undecodable fresh cache entry, refetching")
	}

	var (
		reasons []string // fetch/validation failures, in attempt order
		skipped []string // health-probe skips, reported only if nothing else failed
	)

	for _, c := range cands {
		name := c.src.Name()

		if !a.health.available(ctx, c.src) {
			skipped = append(skipped, name+": unavailable")
			continue
		}

		var fo outcome
		attemptCtx, cancel := context.WithTimeout(ctx, a.opts.AttemptTimeout)
		err := a.opts.Limiter.Schedule(attemptCtx, name, func(ctx context.Context) error {
			var ferr error
			fo, ferr = c.fetch(ctx)
			return ferr
		})
		cancel()

		if err != nil {
			a.health.noteFailure(name)
			reasons = append(reasons, fmt.Sprintf("%s: %v", name, err))
			log.Debug().Str("kind", kind).Str("provider", name).Err(err).Msg("provider fetch failed")
			continue
		}
		if !fo.res.Valid {
			reasons = append(reasons, fmt.Sprintf("%s: %s", name, strings.Join(fo.res.Errors, "; ")))
			log.Debug().Str("kind", kind).Str("provider", name).Strs("errors", fo.res.Errors).Msg("payload rejected by validator")
			continue
		}

		return a.accept(ctx, kind, cacheKey, name, fo, reasons)
	}

	if b, ok := a.opts.Cache.GetStale(ctx, cacheKey); ok {
		if env := envelopeFromRecord(b, decode); env != nil {
			env.Quality.Degraded = true
			if env.Quality.DegradeReason == "" {
				env.Quality.DegradeReason = "stale-if-error"
			} else {
				env.Quality.DegradeReason = "stale-if-error; " + env.Quality.DegradeReason
			}
			env.Quality.Warnings = append(env.Quality.Warnings, reasons...)
			log.Warn().Str("kind", kind).Strs("reasons", reasons).Msg("serving stale cache after provider exhaustion")
			return env
		}
	}

	all := reasons
	if len(all) == 0 {
		all = skipped
	}
	if len(all) == 0 {
		all = []string{"no providers attempted"}
	}
	return model.Fail(fmt.Sprintf("%s: all providers failed: %s", kind, strings.Join(all, " | ")))
}

// accept caches a validated payload on both tiers and builds the success
// envelope. A result is degraded when a higher-priority provider actually
// failed first (health skips alone do not degrade) or when a batch was only
// partially accepted.
func (a *Aggregator) accept(ctx context.Context, kind, cacheKey, provider string, fo outcome, priorReasons []string) *model.Envelope {
	now := time.Now().UnixMilli()

	q := &model.Quality{Valid: true, AsOf: now}
	// 之前 provider 的失败原因作为 warning 带出去，方便排查是谁坏了
	q.Warnings = append(q.Warnings, priorReasons...)
	q.Warnings = append(q.Warnings, fo.res.Warnings...)

	var degrade []string
	if len(priorReasons) > 0 {
		degrade = append(degrade, fmt.Sprintf("failover: served by %s after %d provider failure(s)", provider, len(priorReasons)))
	}
	if fo.note != "" {
		degrade = append(degrade, fo.note)
	}
	if len(degrade) > 0 {
		q.Degraded = true
		q.DegradeReason = strings.Join(degrade, "; ")
	}

	if raw, err := json.Marshal(fo.data); err == nil {
		rec := cacheRecord{
			Source:        provider,
			CachedAt:      now,
			Degraded:      q.Degraded,
			DegradeReason: q.DegradeReason,
			Warnings:      q.Warnings,
			Payload:       raw,
		}
		if b, err := json.Marshal(rec); err == nil {
			a.opts.Cache.Put(ctx, cacheKey, b, a.ttlFor(kind))
		}
	} else {
		log.Error().Str("kind", kind).Err(err).Msg("payload not cacheable")
	}

	return &model.Envelope{
		Success:      true,
		Data:         fo.data,
		ProviderUsed: provider,
		Quality:      q,
	}
}

func envelopeFromRecord(b []byte, decode func([]byte) (any, error)) *model.Envelope {
	var rec cacheRecord
	if err := json.Unmarshal(b, &rec); err != nil {
		return nil
	}
	data, err := decode(rec.Payload)
	if err != nil {
		return nil
	}
	return &model.Envelope{
		Success:      true,
		Data:         data,
		ProviderUsed: rec.Source,
		Cached:       true,
		Quality: &model.Quality{
			Valid:         true,
			AsOf:          rec.CachedAt,
			Degraded:      rec.Degraded,
			DegradeReason: rec.DegradeReason,
			Warnings:      rec.Warnings,
		},
	}
}
