// Package validate is the stateless rule engine that decides whether a
// provider payload can be trusted. Each dataset kind gets one check function
// running the same six stages: presence, numeric sanity, range plausibility,
// cross-field consistency, temporal checks, degenerate-data detection.
package validate

import (
	"math"
	"time"

	"mdagg/internal/domain/model"
)

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func allFinite(vs ...float64) bool {
	for _, v := range vs {
		if !finite(v) {
			return false
		}
	}
	return true
}

func stale(tsMS int64, now time.Time, max time.Duration) bool {
	if tsMS <= 0 || max <= 0 {
		return false
	}
	return now.Sub(time.UnixMilli(tsMS)) > max
}

// CheckQuote validates a single realtime quote.
func CheckQuote(q *model.Quote, lim Limits) Result {
	var r Result
	if q == nil {
		r.errf("quote: nil payload")
		return r.finish()
	}
	if q.Code == "" {
		r.errf("quote: empty code")
		return r.finish()
	}
	if !allFinite(q.Price, q.Open, q.High, q.Low, q.PrevClose, q.Change, q.ChangePercent, q.Amount) {
		r.errf("quote %s: non-finite numeric field", q.Code)
		return r.finish()
	}

	// 全零行情：上游“成功”返回了空壳数据
	if q.Price == 0 && q.Open == 0 && q.High == 0 && q.Low == 0 && q.Volume == 0 {
		r.errf("quote %s: all-zero payload", q.Code)
		return r.finish()
	}

	if q.Price <= 0 {
		r.errf("quote %s: price %.4f not positive", q.Code, q.Price)
	}
	if lim.MaxPrice > 0 && q.Price > lim.MaxPrice {
		r.errf("quote %s: price %.2f above ceiling %.0f", q.Code, q.Price, lim.MaxPrice)
	}
	if q.Volume < 0 {
		r.errf("quote %s: negative volume %d", q.Code, q.Volume)
	}

	// 涨跌幅超出所属板块的涨跌停区间：可疑但不一定错（新股、除权），降级为 warning
	band := model.LimitBand(model.BoardOf(q.Code), model.IsST(q.Name))
	if math.Abs(q.ChangePercent) > band+0.5 {
		r.warnf("quote %s: change %.2f%% beyond %s %.0f%% band", q.Code, q.ChangePercent, model.BoardOf(q.Code), band)
	}

	if q.High > 0 && q.Low > 0 {
		if q.High < q.Low {
			r.errf("quote %s: high %.4f below low %.4f", q.Code, q.High, q.Low)
		} else {
			const eps = 1e-6
			if q.Open > 0 && (q.Open < q.Low-eps || q.Open > q.High+eps) {
				r.errf("quote %s: open %.4f outside [%.4f, %.4f]", q.Code, q.Open, q.Low, q.High)
			}
			if q.Price > 0 && (q.Price < q.Low-eps || q.Price > q.High+eps) {
				r.errf("quote %s: price %.4f outside [%.4f, %.4f]", q.Code, q.Price, q.Low, q.High)
			}
		}
	}

	if stale(q.Timestamp, time.Now(), lim.MaxDelay) {
		r.warnf("quote %s: payload older than %s", q.Code, lim.MaxDelay)
	}
	return r.finish()
}

// CheckBars validates a kline series.
func CheckBars(code string, bars []model.Bar, lim Limits) Result {
	var r Result
	if len(bars) == 0 {
		r.errf("kline %s: empty series", code)
		return r.finish()
	}

	allZero := true
	prevDate := ""
	ordered := true
	for i := range bars {
		b := &bars[i]
		if b.Date == "" {
			r.errf("kline %s: bar %d missing date", code, i)
			continue
		}
		if !allFinite(b.Open, b.High, b.Low, b.Close, b.Amount) {
			r.errf("kline %s: bar %s non-finite field", code, b.Date)
			continue
		}
		if b.Volume < 0 {
			r.errf("kline %s: bar %s negative volume %d", code, b.Date, b.Volume)
		}
		if lim.MaxPrice > 0 && b.High > lim.MaxPrice {
			r.errf("kline %s: bar %s high %.2f above ceiling %.0f", code, b.Date, b.High, lim.MaxPrice)
		}
		if b.High < b.Low {
			r.errf("kline %s: bar %s high %.4f below low %.4f", code, b.Date, b.High, b.Low)
		} else if b.High > 0 {
			const eps = 1e-6
			if b.Open < b.Low-eps || b.Open > b.High+eps {
				r.errf("kline %s: bar %s open %.4f outside range", code, b.Date, b.Open)
			}
			if b.Close < b.Low-eps || b.Close > b.High+eps {
				r.errf("kline %s: bar %s close %.4f outside range", code, b.Date, b.Close)
			}
		}
		if b.Open != 0 || b.High != 0 || b.Low != 0 || b.Close != 0 || b.Volume != 0 {
			allZero = false
		}
		if prevDate != "" && b.Date <= prevDate {
			ordered = false
		}
		prevDate = b.Date
	}

	if allZero {
		r.errf("kline %s: all-zero series (%d bars)", code, len(bars))
	}
	if !ordered {
		r.warnf("kline %s: dates not in ascending order", code)
	}
	return r.finish()
}

// CheckFundFlow validates a per-stock money flow aggregate.
func CheckFundFlow(f *model.FundFlow, lim Limits) Result {
	var r Result
	if f == nil {
		r.errf("fundflow: nil payload")
		return r.finish()
	}
	if f.Code == "" {
		r.errf("fundflow: empty code")
		return r.finish()
	}
	if !allFinite(f.MainNet, f.SuperNet, f.LargeNet, f.MediumNet, f.SmallNet) {
		r.errf("fundflow %s: non-finite numeric field", f.Code)
		return r.finish()
	}
	if f.MainNet == 0 && f.SuperNet == 0 && f.LargeNet == 0 && f.MediumNet == 0 && f.SmallNet == 0 {
		// 资金流全零不是停牌的正常形态，按坏响应处理
		r.errf("fundflow %s: all-zero payload", f.Code)
		return r.finish()
	}
	if diff := math.Abs(f.MainNet - (f.SuperNet + f.LargeNet)); diff > lim.SumTolerance {
		r.warnf("fundflow %s: main %.0f != super+large %.0f (diff %.0f)", f.Code, f.MainNet, f.SuperNet+f.LargeNet, diff)
	}
	if stale(f.Timestamp, time.Now(), lim.MaxDelay) {
		r.warnf("fundflow %s: payload older than %s", f.Code, lim.MaxDelay)
	}
	return r.finish()
}

// CheckSectorFlows validates a sector money flow ranking.
func CheckSectorFlows(flows []model.SectorFlow, lim Limits) Result {
	var r Result
	if len(flows) == 0 {
		r.errf("sectorflow: empty list")
		return r.finish()
	}
	allZero := true
	for i := range flows {
		s := &flows[i]
		if s.Name == "" {
			r.errf("sectorflow: item %d missing name", i)
			continue
		}
		if !allFinite(s.MainNet, s.ChangePercent) {
			r.errf("sectorflow %s: non-finite numeric field", s.Name)
			continue
		}
		if math.Abs(s.ChangePercent) > 30 {
			r.warnf("sectorflow %s: change %.2f%% implausible", s.Name, s.ChangePercent)
		}
		if s.MainNet != 0 {
			allZero = false
		}
	}
	if allZero {
		r.errf("sectorflow: all %d sectors report zero flow", len(flows))
	}
	return r.finish()
}

// CheckNorthFund validates the northbound flow aggregate.
func CheckNorthFund(n *model.NorthFund, lim Limits) Result {
	var r Result
	if n == nil {
		r.errf("northfund: nil payload")
		return r.finish()
	}
	if n.Date == "" {
		r.errf("northfund: empty date")
		return r.finish()
	}
	if !allFinite(n.SHNet, n.SZNet, n.TotalNet) {
		r.errf("northfund %s: non-finite numeric field", n.Date)
		return r.finish()
	}
	if n.SHNet == 0 && n.SZNet == 0 && n.TotalNet == 0 {
		r.errf("northfund %s: all-zero payload", n.Date)
		return r.finish()
	}
	if diff := math.Abs(n.TotalNet - (n.SHNet + n.SZNet)); diff > lim.SumTolerance {
		r.warnf("northfund %s: total %.0f != sh+sz %.0f (diff %.0f)", n.Date, n.TotalNet, n.SHNet+n.SZNet, diff)
	}
	return r.finish()
}

// CheckMargin validates the margin trading balance summary.
func CheckMargin(m *model.MarginSummary, lim Limits) Result {
	var r Result
	if m == nil {
		r.errf("margin: nil payload")
		return r.finish()
	}
	if m.Date == "" {
		r.errf("margin: empty date")
		return r.finish()
	}
	if !allFinite(m.FinancingBalance, m.SecuritiesBalance, m.TotalBalance, m.FinancingBuy) {
		r.errf("margin %s: non-finite numeric field", m.Date)
		return r.finish()
	}
	if m.FinancingBalance < 0 || m.SecuritiesBalance < 0 || m.TotalBalance < 0 {
		r.errf("margin %s: negative balance", m.Date)
	}
	if m.FinancingBalance == 0 && m.SecuritiesBalance == 0 && m.TotalBalance == 0 {
		r.errf("margin %s: all-zero payload", m.Date)
		return r.finish()
	}
	if diff := math.Abs(m.TotalBalance - (m.FinancingBalance + m.SecuritiesBalance)); diff > lim.SumTolerance {
		r.warnf("margin %s: total %.0f != financing+securities %.0f (diff %.0f)", m.Date, m.TotalBalance, m.FinancingBalance+m.SecuritiesBalance, diff)
	}
	return r.finish()
}

// CheckDragonTiger validates a dragon-tiger board listing.
func CheckDragonTiger(rows []model.DragonTiger, lim Limits) Result {
	var r Result
	if len(rows) == 0 {
		r.errf("dragontiger: empty list")
		return r.finish()
	}
	for i := range rows {
		d := &rows[i]
		if d.Code == "" || d.Date == "" {
			r.errf("dragontiger: item %d missing code/date", i)
			continue
		}
		if !allFinite(d.BuyAmount, d.SellAmount, d.NetAmount) {
			r.errf("dragontiger %s: non-finite numeric field", d.Code)
			continue
		}
		if d.BuyAmount < 0 || d.SellAmount < 0 {
			r.errf("dragontiger %s: negative amount", d.Code)
		}
		if diff := math.Abs(d.NetAmount - (d.BuyAmount - d.SellAmount)); diff > lim.SumTolerance {
			r.warnf("dragontiger %s: net %.0f != buy-sell %.0f (diff %.0f)", d.Code, d.NetAmount, d.BuyAmount-d.SellAmount, diff)
		}
	}
	return r.finish()
}

// CheckNews validates a news feed page.
func CheckNews(items []model.NewsItem, lim Limits) Result {
	var r Result
	if len(items) == 0 {
		r.errf("news: empty list")
		return r.finish()
	}
	for i := range items {
		if items[i].Title == "" {
			r.errf("news: item %d missing title", i)
		}
	}
	return r.finish()
}
