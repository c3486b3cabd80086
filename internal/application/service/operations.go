package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/rs/zerolog/log"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
	"mdagg/internal/domain/validate"
	"mdagg/internal/infrastructure/cache"
)

func decodeInto[T any](b []byte) (any, error) {
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

func decodeSlice[T any](b []byte) (any, error) {
	var v []T
	if err := json.Unmarshal(b, &v); err != nil {
		return nil, err
	}
	return v, nil
}

// GetQuote fetches the realtime quote for one stock code.
func (a *Aggregator) GetQuote(ctx context.Context, code string) *model.Envelope {
	key := cache.Key(port.KindQuote, code)
	cands := make([]candidate, 0, len(a.lists.Quote))
	for _, src := range a.lists.Quote {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			q, err := src.FetchQuote(ctx, code)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: q, res: validate.CheckQuote(q, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindQuote, key, cands, decodeInto[model.Quote])
}

// GetQuotes fetches quotes for several codes at once. The batch is accepted
// as soon as one item validates; rejected items are dropped and counted.
func (a *Aggregator) GetQuotes(ctx context.Context, codes []string) *model.Envelope {
	parts := append([]string{port.KindQuote, "batch"}, codes...)
	key := cache.Key(parts...)

	cands := make([]candidate, 0, len(a.lists.Quote))
	for _, src := range a.lists.Quote {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			batch, err := src.FetchQuotes(ctx, codes)
			if err != nil {
				return outcome{}, err
			}
			return a.screenBatch(src.Name(), batch), nil
		}})
	}
	return a.run(ctx, port.KindQuote, key, cands, decodeSlice[model.Quote])
}

// screenBatch validates each item, keeping the valid subset. A fully invalid
// batch is an error that sends the loop to the next provider.
func (a *Aggregator) screenBatch(provider string, batch []model.Quote) outcome {
	if len(batch) == 0 {
		return outcome{res: validate.Result{Errors: []string{"empty batch"}}}
	}

	valid := make([]model.Quote, 0, len(batch))
	var warns []string
	rejected := 0
	for i := range batch {
		res := validate.CheckQuote(&batch[i], a.opts.Limits)
		if !res.Valid {
			rejected++
			if a.opts.Verbose {
				// 逐条诊断：默认只报聚合比例，verbose 时把单条原因也带出去
				warns = append(warns, res.Errors...)
				log.Debug().Str("provider", provider).Str("code", batch[i].Code).Strs("errors", res.Errors).Msg("batch item rejected")
			}
			continue
		}
		warns = append(warns, res.Warnings...)
		valid = append(valid, batch[i])
	}

	if len(valid) == 0 {
		return outcome{res: validate.Result{Errors: []string{fmt.Sprintf("batch: %d/%d items rejected", rejected, len(batch))}}}
	}

	out := outcome{data: valid, res: validate.Result{Valid: true, Warnings: warns}}
	if rejected > 0 {
		out.note = fmt.Sprintf("%d/%d items failed validation", rejected, len(batch))
	}
	return out
}

// GetKline fetches a daily/weekly/monthly bar series.
func (a *Aggregator) GetKline(ctx context.Context, code, period string, limit int) *model.Envelope {
	key := cache.Key(port.KindKline, code, period, strconv.Itoa(limit))
	cands := make([]candidate, 0, len(a.lists.Kline))
	for _, src := range a.lists.Kline {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			bars, err := src.FetchKline(ctx, code, period, limit)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: bars, res: validate.CheckBars(code, bars, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindKline, key, cands, decodeSlice[model.Bar])
}

// GetFundFlow fetches the per-stock money flow aggregate.
func (a *Aggregator) GetFundFlow(ctx context.Context, code string) *model.Envelope {
	key := cache.Key(port.KindFundFlow, code)
	cands := make([]candidate, 0, len(a.lists.FundFlow))
	for _, src := range a.lists.FundFlow {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			f, err := src.FetchFundFlow(ctx, code)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: f, res: validate.CheckFundFlow(f, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindFundFlow, key, cands, decodeInto[model.FundFlow])
}

// GetSectorFlows fetches the sector money flow ranking.
func (a *Aggregator) GetSectorFlows(ctx context.Context) *model.Envelope {
	key := cache.Key(port.KindSectorFlow)
	cands := make([]candidate, 0, len(a.lists.SectorFlow))
	for _, src := range a.lists.SectorFlow {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			flows, err := src.FetchSectorFlows(ctx)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: flows, res: validate.CheckSectorFlows(flows, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindSectorFlow, key, cands, decodeSlice[model.SectorFlow])
}

// GetNorthFund fetches the northbound flow aggregate.
func (a *Aggregator) GetNorthFund(ctx context.Context) *model.Envelope {
	key := cache.Key(port.KindNorthFund)
	cands := make([]candidate, 0, len(a.lists.NorthFund))
	for _, src := range a.lists.NorthFund {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			n, err := src.FetchNorthFund(ctx)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: n, res: validate.CheckNorthFund(n, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindNorthFund, key, cands, decodeInto[model.NorthFund])
}

// GetMargin fetches the market-wide margin balance summary.
func (a *Aggregator) GetMargin(ctx context.Context) *model.Envelope {
	key := cache.Key(port.KindMargin)
	cands := make([]candidate, 0, len(a.lists.Margin))
	for _, src := range a.lists.Margin {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			m, err := src.FetchMargin(ctx)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: m, res: validate.CheckMargin(m, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindMargin, key, cands, decodeInto[model.MarginSummary])
}

// GetDragonTiger fetches the dragon-tiger board for a trading date.
func (a *Aggregator) GetDragonTiger(ctx context.Context, date string) *model.Envelope {
	key := cache.Key(port.KindDragonTiger, date)
	cands := make([]candidate, 0, len(a.lists.DragonTiger))
	for _, src := range a.lists.DragonTiger {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			rows, err := src.FetchDragonTiger(ctx, date)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: rows, res: validate.CheckDragonTiger(rows, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindDragonTiger, key, cands, decodeSlice[model.DragonTiger])
}

// GetNews fetches the latest market news.
func (a *Aggregator) GetNews(ctx context.Context, limit int) *model.Envelope {
	key := cache.Key(port.KindNews, strconv.Itoa(limit))
	cands := make([]candidate, 0, len(a.lists.News))
	for _, src := range a.lists.News {
		cands = append(cands, candidate{src: src, fetch: func(ctx context.Context) (outcome, error) {
			items, err := src.FetchNews(ctx, limit)
			if err != nil {
				return outcome{}, err
			}
			return outcome{data: items, res: validate.CheckNews(items, a.opts.Limits)}, nil
		}})
	}
	return a.run(ctx, port.KindNews, key, cands, decodeSlice[model.NewsItem])
}
