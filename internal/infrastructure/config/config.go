package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"mdagg/internal/application/port"
)

// KnownProviders 目前实现的 connector；priority 列表只能引用这些名字。
var KnownProviders = []string{"eastmoney", "sina", "tencent", "pushfeed", "localdb"}

type TTLPair struct {
	FreshSec int `toml:"fresh_sec"`
	StaleSec int `toml:"stale_sec"`
}

type Provider struct {
	Enabled        bool     `toml:"enabled"`
	BaseURL        string   `toml:"base_url"`
	WsURL          string   `toml:"ws_url"`
	Codes          []string `toml:"codes"` // pushfeed 订阅的代码
	MaxConcurrency int64    `toml:"max_concurrency"`
	MinIntervalMS  int      `toml:"min_interval_ms"`
}

type Config struct {
	Server struct {
		Addr              string `toml:"addr"`
		RequestTimeoutSec int    `toml:"request_timeout_sec"`
	} `toml:"server"`

	Log struct {
		Level string `toml:"level"`
	} `toml:"log"`

	Cache struct {
		Backend string             `toml:"backend"` // "memory" | "redis"
		TTL     map[string]TTLPair `toml:"ttl"`     // keyed by operation kind
	} `toml:"cache"`

	Redis struct {
		Addr     string `toml:"addr"`
		Password string `toml:"password"`
		DB       int    `toml:"db"`
		Prefix   string `toml:"prefix"`
	} `toml:"redis"`

	Health struct {
		MemoSec int `toml:"memo_sec"`
	} `toml:"health"`

	Validate struct {
		MaxPrice     float64 `toml:"max_price"`
		MaxDelaySec  int     `toml:"max_delay_sec"`
		SumTolerance float64 `toml:"sum_tolerance"`
		Verbose      bool    `toml:"verbose"`
	} `toml:"validate"`

	Aggregator struct {
		AttemptTimeoutSec int `toml:"attempt_timeout_sec"`
	} `toml:"aggregator"`

	// Priority 每种操作的 provider 顺序，排在前面的先试
	Priority map[string][]string `toml:"priority"`

	Providers map[string]Provider `toml:"providers"`

	Storage struct {
		Backend     string `toml:"backend"` // "sqlite" | "postgres"
		SQLitePath  string `toml:"sqlite_path"`
		PostgresDSN string `toml:"postgres_dsn"`
	} `toml:"storage"`
}

// Load reads, defaults and validates a TOML config file.
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a fully-defaulted config without reading any file.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8640"
	}
	if cfg.Server.RequestTimeoutSec <= 0 {
		cfg.Server.RequestTimeoutSec = 30
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}

	if cfg.Cache.Backend == "" {
		cfg.Cache.Backend = "memory"
	}
	if cfg.Cache.TTL == nil {
		cfg.Cache.TTL = make(map[string]TTLPair)
	}
	defaultTTLs := map[string]TTLPair{
		port.KindQuote:       {FreshSec: 60, StaleSec: 4 * 3600},
		port.KindKline:       {FreshSec: 10 * 60, StaleSec: 24 * 3600},
		port.KindFundFlow:    {FreshSec: 5 * 60, StaleSec: 12 * 3600},
		port.KindSectorFlow:  {FreshSec: 5 * 60, StaleSec: 12 * 3600},
		port.KindNorthFund:   {FreshSec: 5 * 60, StaleSec: 12 * 3600},
		port.KindMargin:      {FreshSec: 30 * 60, StaleSec: 48 * 3600},
		port.KindDragonTiger: {FreshSec: 30 * 60, StaleSec: 48 * 3600},
		port.KindNews:        {FreshSec: 2 * 60, StaleSec: 6 * 3600},
	}
	for kind, pair := range defaultTTLs {
		got := cfg.Cache.TTL[kind]
		if got.FreshSec <= 0 {
			got.FreshSec = pair.FreshSec
		}
		if got.StaleSec <= 0 {
			got.StaleSec = pair.StaleSec
		}
		cfg.Cache.TTL[kind] = got
	}

	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "mdagg"
	}
	if cfg.Health.MemoSec <= 0 {
		cfg.Health.MemoSec = 15
	}
	if cfg.Validate.MaxPrice <= 0 {
		cfg.Validate.MaxPrice = 10000
	}
	if cfg.Validate.MaxDelaySec <= 0 {
		cfg.Validate.MaxDelaySec = 15 * 60
	}
	if cfg.Validate.SumTolerance <= 0 {
		cfg.Validate.SumTolerance = 1e6
	}
	if cfg.Aggregator.AttemptTimeoutSec <= 0 {
		cfg.Aggregator.AttemptTimeoutSec = 8
	}

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]Provider)
	}
	defaultProviders := map[string]Provider{
		"eastmoney": {Enabled: true, BaseURL: "https://push2.eastmoney.com", MaxConcurrency: 2, MinIntervalMS: 200},
		"sina":      {Enabled: true, BaseURL: "https://hq.sinajs.cn", MaxConcurrency: 2, MinIntervalMS: 200},
		"tencent":   {Enabled: true, BaseURL: "https://qt.gtimg.cn", MaxConcurrency: 2, MinIntervalMS: 200},
		"pushfeed":  {Enabled: false, MaxConcurrency: 4},
		"localdb":   {Enabled: true, MaxConcurrency: 4},
	}
	for name, def := range defaultProviders {
		got, ok := cfg.Providers[name]
		if !ok {
			cfg.Providers[name] = def
			continue
		}
		if got.BaseURL == "" {
			got.BaseURL = def.BaseURL
		}
		if got.MaxConcurrency <= 0 {
			got.MaxConcurrency = def.MaxConcurrency
		}
		cfg.Providers[name] = got
	}

	if cfg.Priority == nil {
		cfg.Priority = make(map[string][]string)
	}
	defaultPriority := map[string][]string{
		port.KindQuote:       {"eastmoney", "sina", "tencent", "localdb"},
		port.KindKline:       {"eastmoney", "sina"},
		port.KindFundFlow:    {"eastmoney"},
		port.KindSectorFlow:  {"eastmoney"},
		port.KindNorthFund:   {"eastmoney"},
		port.KindMargin:      {"eastmoney"},
		port.KindDragonTiger: {"eastmoney"},
		port.KindNews:        {"tencent"},
	}
	for kind, list := range defaultPriority {
		if len(cfg.Priority[kind]) == 0 {
			cfg.Priority[kind] = list
		}
	}

	if cfg.Storage.Backend == "" {
		cfg.Storage.Backend = "sqlite"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/mdagg.db"
	}
}

func validate(cfg *Config) error {
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend %q: want memory or redis", cfg.Cache.Backend)
	}
	if cfg.Cache.Backend == "redis" && strings.TrimSpace(cfg.Redis.Addr) == "" {
		return fmt.Errorf("cache.backend=redis but redis.addr empty")
	}

	switch cfg.Storage.Backend {
	case "sqlite", "postgres":
	default:
		return fmt.Errorf("storage.backend %q: want sqlite or postgres", cfg.Storage.Backend)
	}
	if cfg.Storage.Backend == "postgres" && strings.TrimSpace(cfg.Storage.PostgresDSN) == "" {
		return fmt.Errorf("storage.backend=postgres but storage.postgres_dsn empty")
	}

	known := make(map[string]struct{}, len(KnownProviders))
	for _, name := range KnownProviders {
		known[name] = struct{}{}
	}
	validKind := make(map[string]struct{}, len(port.Kinds))
	for _, k := range port.Kinds {
		validKind[k] = struct{}{}
	}

	for kind, list := range cfg.Priority {
		if _, ok := validKind[kind]; !ok {
			return fmt.Errorf("priority.%s: unknown operation kind", kind)
		}
		if len(list) == 0 {
			return fmt.Errorf("priority.%s: empty provider list", kind)
		}
		for _, name := range list {
			if _, ok := known[name]; !ok {
				return fmt.Errorf("priority.%s: unknown provider %q", kind, name)
			}
		}
	}

	if p, ok := cfg.Providers["pushfeed"]; ok && p.Enabled && strings.TrimSpace(p.WsURL) == "" {
		return fmt.Errorf("providers.pushfeed enabled but ws_url empty")
	}
	return nil
}

// TTLFor returns the fresh/stale pair for an operation kind as durations.
func (c *Config) TTLFor(kind string) (fresh, stale time.Duration) {
	p := c.Cache.TTL[kind]
	return time.Duration(p.FreshSec) * time.Second, time.Duration(p.StaleSec) * time.Second
}
