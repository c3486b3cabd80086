package port

import (
	"context"

	"mdagg/internal/domain/model"
)

// Source is the base contract every provider connector implements.
// Available is a health probe; it must not touch business data.
type Source interface {
	Name() string
	Available(ctx context.Context) bool
}

// QuoteSource 实时行情能力
type QuoteSource interface {
	Source
	FetchQuote(ctx context.Context, code string) (*model.Quote, error)
	FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error)
}

// KlineSource K 线能力
type KlineSource interface {
	Source
	FetchKline(ctx context.Context, code, period string, limit int) ([]model.Bar, error)
}

// FlowSource 资金流能力（个股、板块、北向）
type FlowSource interface {
	Source
	FetchFundFlow(ctx context.Context, code string) (*model.FundFlow, error)
	FetchSectorFlows(ctx context.Context) ([]model.SectorFlow, error)
	FetchNorthFund(ctx context.Context) (*model.NorthFund, error)
}

// MarketSource 市场数据能力（两融、龙虎榜）
type MarketSource interface {
	Source
	FetchMargin(ctx context.Context) (*model.MarginSummary, error)
	FetchDragonTiger(ctx context.Context, date string) ([]model.DragonTiger, error)
}

// NewsSource 快讯能力
type NewsSource interface {
	Source
	FetchNews(ctx context.Context, limit int) ([]model.NewsItem, error)
}
