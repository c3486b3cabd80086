package validate

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdagg/internal/domain/model"
)

func goodQuote() *model.Quote {
	return &model.Quote{
		Code:          "600519",
		Name:          "贵州茅台",
		Price:         1700.5,
		Open:          1690,
		High:          1710,
		Low:           1688,
		PrevClose:     1695,
		Change:        5.5,
		ChangePercent: 0.32,
		Volume:        25000,
		Amount:        4.2e9,
		Timestamp:     time.Now().UnixMilli(),
	}
}

func TestCheckQuote_Good(t *testing.T) {
	res := CheckQuote(goodQuote(), DefaultLimits())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Errors)
	assert.Empty(t, res.Warnings)
}

func TestCheckQuote_PriceNotPositive(t *testing.T) {
	q := goodQuote()
	q.Price = -1
	res := CheckQuote(q, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckQuote_HighBelowLow(t *testing.T) {
	q := goodQuote()
	q.High, q.Low = 10, 20
	res := CheckQuote(q, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckQuote_NonFinite(t *testing.T) {
	q := goodQuote()
	q.ChangePercent = math.NaN()
	res := CheckQuote(q, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckQuote_EmptyCode(t *testing.T) {
	q := goodQuote()
	q.Code = ""
	res := CheckQuote(q, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckQuote_AllZero(t *testing.T) {
	res := CheckQuote(&model.Quote{Code: "600519"}, DefaultLimits())
	assert.False(t, res.Valid)
}

// 主板非 ST 涨 15%：超出 10% 涨停区间，是可疑值但不能拦截
func TestCheckQuote_BandViolationIsWarningOnly(t *testing.T) {
	q := goodQuote()
	q.Price, q.High = 100, 101
	q.Low, q.Open = 86, 87
	q.ChangePercent = 15
	res := CheckQuote(q, DefaultLimits())
	assert.True(t, res.Valid)
	require.NotEmpty(t, res.Warnings)

	// 创业板 20% 的区间也兜不住 25%
	q.Code = "300750"
	q.ChangePercent = 25
	res = CheckQuote(q, DefaultLimits())
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)
}

func TestCheckQuote_STUsesTighterBand(t *testing.T) {
	q := goodQuote()
	q.Code, q.Name = "600080", "ST金花"
	q.Price, q.Open, q.High, q.Low = 5.3, 5.1, 5.35, 5.05
	q.ChangePercent = 7 // 超过 ST 5% 档
	res := CheckQuote(q, DefaultLimits())
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)
}

func TestCheckBars(t *testing.T) {
	bars := []model.Bar{
		{Date: "2025-08-01", Open: 10, High: 11, Low: 9.8, Close: 10.5, Volume: 1000},
		{Date: "2025-08-04", Open: 10.5, High: 10.9, Low: 10.2, Close: 10.8, Volume: 1200},
	}
	res := CheckBars("600519", bars, DefaultLimits())
	assert.True(t, res.Valid)

	// 负成交量是硬错误
	bad := append([]model.Bar(nil), bars...)
	bad[1].Volume = -5
	res = CheckBars("600519", bad, DefaultLimits())
	assert.False(t, res.Valid)

	// 日期乱序只是 warning
	swapped := []model.Bar{bars[1], bars[0]}
	res = CheckBars("600519", swapped, DefaultLimits())
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)

	res = CheckBars("600519", nil, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckBars_AllZeroSeries(t *testing.T) {
	bars := []model.Bar{
		{Date: "2025-08-01"},
		{Date: "2025-08-04"},
	}
	res := CheckBars("600519", bars, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckFundFlow(t *testing.T) {
	f := &model.FundFlow{
		Code: "600519", MainNet: 3e8, SuperNet: 2e8, LargeNet: 1e8,
		MediumNet: -1.5e8, SmallNet: -1.5e8, Timestamp: time.Now().UnixMilli(),
	}
	res := CheckFundFlow(f, DefaultLimits())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)

	// 主力 != 超大单+大单，软性不一致
	f.MainNet = 3.5e8
	res = CheckFundFlow(f, DefaultLimits())
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)

	// 全零按坏响应处理
	res = CheckFundFlow(&model.FundFlow{Code: "600519"}, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckSectorFlows_AllZero(t *testing.T) {
	flows := []model.SectorFlow{
		{Name: "白酒", Code: "BK0477"},
		{Name: "银行", Code: "BK0475"},
	}
	res := CheckSectorFlows(flows, DefaultLimits())
	assert.False(t, res.Valid)

	flows[0].MainNet = 1e8
	res = CheckSectorFlows(flows, DefaultLimits())
	assert.True(t, res.Valid)
}

func TestCheckNorthFund(t *testing.T) {
	n := &model.NorthFund{Date: "2025-08-29", SHNet: 12e8, SZNet: 8e8, TotalNet: 20e8}
	res := CheckNorthFund(n, DefaultLimits())
	assert.True(t, res.Valid)
	assert.Empty(t, res.Warnings)

	n.TotalNet = 25e8
	res = CheckNorthFund(n, DefaultLimits())
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)

	res = CheckNorthFund(&model.NorthFund{Date: "2025-08-29"}, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckMargin(t *testing.T) {
	m := &model.MarginSummary{
		Date: "2025-08-29", FinancingBalance: 1.5e12, SecuritiesBalance: 8e10,
		TotalBalance: 1.58e12, FinancingBuy: 9e10,
	}
	res := CheckMargin(m, DefaultLimits())
	assert.True(t, res.Valid)

	m.FinancingBalance = -1
	res = CheckMargin(m, DefaultLimits())
	assert.False(t, res.Valid)
}

func TestCheckDragonTiger(t *testing.T) {
	rows := []model.DragonTiger{
		{Date: "2025-08-29", Code: "002594", Name: "比亚迪", Reason: "日涨幅偏离值达7%", BuyAmount: 5e8, SellAmount: 3e8, NetAmount: 2e8},
	}
	res := CheckDragonTiger(rows, DefaultLimits())
	assert.True(t, res.Valid)

	res = CheckDragonTiger(nil, DefaultLimits())
	assert.False(t, res.Valid)

	rows[0].NetAmount = 9e8
	res = CheckDragonTiger(rows, DefaultLimits())
	assert.True(t, res.Valid)
	assert.NotEmpty(t, res.Warnings)
}

func TestCheckNews(t *testing.T) {
	res := CheckNews([]model.NewsItem{{Title: "央行开展逆回购操作", Source: "tencent"}}, DefaultLimits())
	assert.True(t, res.Valid)

	res = CheckNews(nil, DefaultLimits())
	assert.False(t, res.Valid)
}
