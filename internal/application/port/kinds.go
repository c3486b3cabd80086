package port

// Operation kinds. Each kind has its own priority list and cache TTL pair.
const (
	KindQuote       = "quote"
	KindKline       = "kline"
	KindFundFlow    = "fund_flow"
	KindSectorFlow  = "sector_flow"
	KindNorthFund   = "north_fund"
	KindMargin      = "margin"
	KindDragonTiger = "dragon_tiger"
	KindNews        = "news"
)

// Kinds lists every operation kind in a stable order.
var Kinds = []string{
	KindQuote, KindKline, KindFundFlow, KindSectorFlow,
	KindNorthFund, KindMargin, KindDragonTiger, KindNews,
}
