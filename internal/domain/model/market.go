package model

// ========== Normalized market data models ==========
//
// 所有 provider 的原始报文都会被 connector 映射成这里的统一类型，
// orchestrator 和 validator 只认这些结构，不关心上游的字段名。

// Quote 实时行情快照
type Quote struct {
	Code          string  `json:"code"`
	Name          string  `json:"name"`
	Price         float64 `json:"price"`
	Open          float64 `json:"open"`
	High          float64 `json:"high"`
	Low           float64 `json:"low"`
	PrevClose     float64 `json:"prev_close"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"change_percent"` // 涨跌幅 %
	Volume        int64   `json:"volume"`         // 成交量（手）
	Amount        float64 `json:"amount"`         // 成交额（元）
	Timestamp     int64   `json:"ts_ms"`
}

// Bar 单根 K 线
type Bar struct {
	Date   string  `json:"date"` // "2006-01-02"
	Open   float64 `json:"open"`
	High   float64 `json:"high"`
	Low    float64 `json:"low"`
	Close  float64 `json:"close"`
	Volume int64   `json:"volume"`
	Amount float64 `json:"amount"`
}

// FundFlow 个股资金流向（净流入，单位元）
type FundFlow struct {
	Code      string  `json:"code"`
	MainNet   float64 `json:"main_net"`   // 主力净流入 = 超大单 + 大单
	SuperNet  float64 `json:"super_net"`  // 超大单
	LargeNet  float64 `json:"large_net"`  // 大单
	MediumNet float64 `json:"medium_net"` // 中单
	SmallNet  float64 `json:"small_net"`  // 小单
	Timestamp int64   `json:"ts_ms"`
}

// SectorFlow 板块资金流向
type SectorFlow struct {
	Name          string  `json:"name"`
	Code          string  `json:"code"`
	MainNet       float64 `json:"main_net"`
	ChangePercent float64 `json:"change_percent"`
	Timestamp     int64   `json:"ts_ms"`
}

// NorthFund 北向资金当日净流入（单位元）
type NorthFund struct {
	Date     string  `json:"date"`
	SHNet    float64 `json:"sh_net"` // 沪股通
	SZNet    float64 `json:"sz_net"` // 深股通
	TotalNet float64 `json:"total_net"`
}

// MarginSummary 两融余额汇总（单位元）
type MarginSummary struct {
	Date              string  `json:"date"`
	FinancingBalance  float64 `json:"financing_balance"` // 融资余额
	SecuritiesBalance float64 `json:"securities_balance"` // 融券余额
	TotalBalance      float64 `json:"total_balance"`
	FinancingBuy      float64 `json:"financing_buy"` // 当日融资买入额
}

// DragonTiger 龙虎榜单条记录（单位元）
type DragonTiger struct {
	Date       string  `json:"date"`
	Code       string  `json:"code"`
	Name       string  `json:"name"`
	Reason     string  `json:"reason"` // 上榜原因
	BuyAmount  float64 `json:"buy_amount"`
	SellAmount float64 `json:"sell_amount"`
	NetAmount  float64 `json:"net_amount"`
}

// NewsItem 财经快讯
type NewsItem struct {
	Title       string `json:"title"`
	Source      string `json:"source"`
	URL         string `json:"url"`
	PublishedAt int64  `json:"published_at"`
}

// Security 本地证券档案（搜索回退用）
type Security struct {
	Code  string `json:"code"`
	Name  string `json:"name"`
	Board string `json:"board"`
}
