package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"mdagg/internal/application/port"
	"mdagg/internal/application/service"
	"mdagg/internal/domain/validate"
	"mdagg/internal/infrastructure/cache"
	"mdagg/internal/infrastructure/cache/rediscache"
	"mdagg/internal/infrastructure/config"
	"mdagg/internal/infrastructure/ratelimit"
	"mdagg/internal/infrastructure/source/eastmoney"
	"mdagg/internal/infrastructure/source/localdb"
	"mdagg/internal/infrastructure/source/pushfeed"
	"mdagg/internal/infrastructure/source/sina"
	"mdagg/internal/infrastructure/source/tencent"
	"mdagg/internal/infrastructure/storage/postgres"
	"mdagg/internal/infrastructure/storage/sqlite"
)

// AggregationContext wires config, storage, cache, limiter and connectors
// into one Aggregator. 应用启动的唯一入口点，所有依赖初始化都在这里完成。
type AggregationContext struct {
	Ctx    context.Context
	Config *config.Config

	Aggregator *service.Aggregator
	Repo       port.SecurityRepo

	redisClient *redisclient.Client

	closerChain []func() error
}

// New builds the full dependency graph. Priority lists are capability
// checked here: referencing a provider that cannot serve the operation is
// a startup error, not a runtime failure.
func New(ctx context.Context, cfg *config.Config) (*AggregationContext, error) {
	ac := &AggregationContext{
		Ctx:         ctx,
		Config:      cfg,
		closerChain: make([]func() error, 0),
	}

	if err := ac.initStorage(); err != nil {
		_ = ac.Close()
		return nil, fmt.Errorf("storage initialization failed: %w", err)
	}

	tiered, err := ac.initCache()
	if err != nil {
		_ = ac.Close()
		return nil, fmt.Errorf("cache initialization failed: %w", err)
	}

	limiter := ratelimit.New(ratelimit.DefaultSettings())
	for name, p := range cfg.Providers {
		if !p.Enabled {
			continue
		}
		s := ratelimit.DefaultSettings()
		if p.MaxConcurrency > 0 {
			s.MaxConcurrency = p.MaxConcurrency
		}
		if p.MinIntervalMS > 0 {
			s.MinInterval = time.Duration(p.MinIntervalMS) * time.Millisecond
		}
		limiter.Configure(name, s)
	}

	sources, err := ac.initSources()
	if err != nil {
		_ = ac.Close()
		return nil, err
	}

	lists, err := buildLists(cfg.Priority, sources)
	if err != nil {
		_ = ac.Close()
		return nil, err
	}

	// 网络行情源套上 recorder，把拉到的报价落库，localdb 回退才有数据
	for i, qs := range lists.Quote {
		if qs.Name() == "localdb" {
			continue
		}
		lists.Quote[i] = localdb.NewRecorder(qs, ac.Repo)
	}

	ttls := make(map[string]cache.TTL, len(port.Kinds))
	for _, kind := range port.Kinds {
		fresh, stale := cfg.TTLFor(kind)
		ttls[kind] = cache.TTL{Fresh: fresh, Stale: stale}
	}

	ac.Aggregator = service.New(lists, service.Options{
		Cache:   tiered,
		Limiter: limiter,
		Limits: validate.Limits{
			MaxPrice:     cfg.Validate.MaxPrice,
			MaxDelay:     time.Duration(cfg.Validate.MaxDelaySec) * time.Second,
			SumTolerance: cfg.Validate.SumTolerance,
		},
		TTLs:           ttls,
		AttemptTimeout: time.Duration(cfg.Aggregator.AttemptTimeoutSec) * time.Second,
		HealthMemo:     time.Duration(cfg.Health.MemoSec) * time.Second,
		Verbose:        cfg.Validate.Verbose,
	})

	log.Info().
		Int("sources", len(sources)).
		Str("cache", cfg.Cache.Backend).
		Str("storage", cfg.Storage.Backend).
		Msg("✓ All components initialized")
	return ac, nil
}

func (ac *AggregationContext) initStorage() error {
	var (
		repo port.SecurityRepo
		err  error
	)
	switch ac.Config.Storage.Backend {
	case "postgres":
		repo, err = postgres.New(ac.Config.Storage.PostgresDSN)
	default:
		repo, err = sqlite.New(ac.Config.Storage.SQLitePath)
	}
	if err != nil {
		return err
	}
	ac.Repo = repo
	ac.closerChain = append(ac.closerChain, func() error {
		log.Info().Msg("closing security store")
		return repo.Close()
	})
	log.Info().Str("backend", ac.Config.Storage.Backend).Msg("✓ Storage initialized")
	return nil
}

func (ac *AggregationContext) initCache() (*cache.Tiered, error) {
	if ac.Config.Cache.Backend != "redis" {
		return cache.NewTiered(cache.NewMemory()), nil
	}

	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     ac.Config.Redis.Addr,
		Password: ac.Config.Redis.Password,
		DB:       ac.Config.Redis.DB,
	})
	pingCtx, cancel := context.WithTimeout(ac.Ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	ac.redisClient = rdb
	ac.closerChain = append(ac.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})
	log.Info().Str("addr", ac.Config.Redis.Addr).Int("db", ac.Config.Redis.DB).Msg("✓ Redis initialized")
	return cache.NewTiered(rediscache.New(rdb, ac.Config.Redis.Prefix)), nil
}

// initSources constructs the enabled connectors. Network quote sources are
// wrapped with the localdb recorder so the fallback store stays warm.
func (ac *AggregationContext) initSources() (map[string]port.Source, error) {
	sources := make(map[string]port.Source)
	timeout := time.Duration(ac.Config.Aggregator.AttemptTimeoutSec) * time.Second

	for name, p := range ac.Config.Providers {
		if !p.Enabled {
			continue
		}
		switch name {
		case "eastmoney":
			sources[name] = eastmoney.New(eastmoney.Config{BaseURL: p.BaseURL, Timeout: timeout})
		case "sina":
			sources[name] = sina.New(sina.Config{BaseURL: p.BaseURL, Timeout: timeout})
		case "tencent":
			sources[name] = tencent.New(tencent.Config{BaseURL: p.BaseURL, Timeout: timeout})
		case "pushfeed":
			feed := pushfeed.New(pushfeed.Config{WsURL: p.WsURL, Codes: p.Codes})
			go feed.Run(ac.Ctx)
			sources[name] = feed
		case "localdb":
			sources[name] = localdb.New(ac.Repo)
		default:
			return nil, fmt.Errorf("providers.%s: no connector", name)
		}
	}
	if len(sources) == 0 {
		return nil, ErrNoProvidersEnabled
	}
	return sources, nil
}

// buildLists resolves every kind's priority list against the constructed
// connectors, asserting capability per entry. A kind whose resolved list ends
// up empty (all entries disabled) is a startup error, never a request-time one.
func buildLists(priority map[string][]string, sources map[string]port.Source) (service.Lists, error) {
	var lists service.Lists
	for _, kind := range port.Kinds {
		names := priority[kind]
		count := 0
		for _, name := range names {
			src, ok := sources[name]
			if !ok {
				// 排了序但 provider 没启用，跳过；全空在循环后兜底报错
				log.Warn().Str("kind", kind).Str("provider", name).Msg("priority entry disabled, skipping")
				continue
			}
			switch kind {
			case port.KindQuote:
				qs, ok := src.(port.QuoteSource)
				if !ok {
					return lists, capabilityErr(kind, name)
				}
				lists.Quote = append(lists.Quote, qs)
			case port.KindKline:
				ks, ok := src.(port.KlineSource)
				if !ok {
					return lists, capabilityErr(kind, name)
				}
				lists.Kline = append(lists.Kline, ks)
			case port.KindFundFlow, port.KindSectorFlow, port.KindNorthFund:
				fs, ok := src.(port.FlowSource)
				if !ok {
					return lists, capabilityErr(kind, name)
				}
				switch kind {
				case port.KindFundFlow:
					lists.FundFlow = append(lists.FundFlow, fs)
				case port.KindSectorFlow:
					lists.SectorFlow = append(lists.SectorFlow, fs)
				case port.KindNorthFund:
					lists.NorthFund = append(lists.NorthFund, fs)
				}
			case port.KindMargin, port.KindDragonTiger:
				ms, ok := src.(port.MarketSource)
				if !ok {
					return lists, capabilityErr(kind, name)
				}
				if kind == port.KindMargin {
					lists.Margin = append(lists.Margin, ms)
				} else {
					lists.DragonTiger = append(lists.DragonTiger, ms)
				}
			case port.KindNews:
				ns, ok := src.(port.NewsSource)
				if !ok {
					return lists, capabilityErr(kind, name)
				}
				lists.News = append(lists.News, ns)
			}
			count++
		}
		if len(names) > 0 && count == 0 {
			return lists, fmt.Errorf("priority.%s: no enabled providers", kind)
		}
	}
	return lists, nil
}

func capabilityErr(kind, name string) error {
	return fmt.Errorf("priority.%s: provider %q does not serve this operation", kind, name)
}

// Close runs the closer chain in reverse order.
func (ac *AggregationContext) Close() error {
	var firstErr error
	for i := len(ac.closerChain) - 1; i >= 0; i-- {
		if err := ac.closerChain[i](); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
