// Package eastmoney maps 东方财富 push2/datacenter endpoints onto the
// normalized domain types. It is the only connector implementing every
// capability interface.
package eastmoney

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
	"mdagg/internal/infrastructure/source"
)

const (
	defaultBaseURL = "https://push2.eastmoney.com"
	defaultHisURL  = "https://push2his.eastmoney.com"
	defaultDataURL = "https://datacenter-web.eastmoney.com"
)

type Config struct {
	BaseURL string // push2 realtime host
	HisURL  string // push2his kline host
	DataURL string // datacenter host (margin, dragon-tiger)
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.HisURL == "" {
		cfg.HisURL = defaultHisURL
	}
	if cfg.DataURL == "" {
		cfg.DataURL = defaultDataURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: source.NewHTTPClient(cfg.Timeout)}
}

func (c *Client) Name() string { return "eastmoney" }

// Available probes the realtime endpoint with the SSE composite index.
func (c *Client) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := source.GetBytes(probeCtx, c.http, c.cfg.BaseURL+"/api/qt/stock/get?secid=1.000001&fields=f43", nil)
	return err == nil
}

// secID renders the push2 secid: market prefix 1 = Shanghai, 0 = Shenzhen/BSE.
func secID(code string) string {
	if strings.HasPrefix(code, "6") {
		return "1." + code
	}
	return "0." + code
}

func (c *Client) get(ctx context.Context, rawURL string, out any) error {
	b, err := source.GetBytes(ctx, c.http, rawURL, nil)
	if err != nil {
		return port.NewProviderError(c.Name(), "get", err)
	}
	if err := json.Unmarshal(b, out); err != nil {
		return port.NewProviderError(c.Name(), "decode", err)
	}
	return nil
}

// ---- realtime quote ----

type quoteFields struct {
	Price     float64 `json:"f43"`
	High      float64 `json:"f44"`
	Low       float64 `json:"f45"`
	Open      float64 `json:"f46"`
	Volume    int64   `json:"f47"`
	Amount    float64 `json:"f48"`
	Code      string  `json:"f57"`
	Name      string  `json:"f58"`
	PrevClose float64 `json:"f60"`
	Change    float64 `json:"f169"`
	ChangePct float64 `json:"f170"`
}

const quoteFieldList = "f43,f44,f45,f46,f47,f48,f57,f58,f60,f169,f170"

func (f *quoteFields) toQuote() model.Quote {
	return model.Quote{
		Code:          f.Code,
		Name:          f.Name,
		Price:         f.Price,
		Open:          f.Open,
		High:          f.High,
		Low:           f.Low,
		PrevClose:     f.PrevClose,
		Change:        f.Change,
		ChangePercent: f.ChangePct,
		Volume:        f.Volume,
		Amount:        f.Amount,
		Timestamp:     time.Now().UnixMilli(),
	}
}

func (c *Client) FetchQuote(ctx context.Context, code string) (*model.Quote, error) {
	var resp struct {
		Data *quoteFields `json:"data"`
	}
	u := fmt.Sprintf("%s/api/qt/stock/get?invt=2&fltt=2&secid=%s&fields=%s", c.cfg.BaseURL, secID(code), quoteFieldList)
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	if resp.Data == nil {
		// 上游对未知代码返回 data:null，留给 validator 判
		return &model.Quote{Code: code}, nil
	}
	q := resp.Data.toQuote()
	if q.Code == "" {
		q.Code = code
	}
	return &q, nil
}

type listFields struct {
	ChangePct float64 `json:"f3"`
	Price     float64 `json:"f2"`
	Code      string  `json:"f12"`
	Name      string  `json:"f14"`
	Open      float64 `json:"f17"`
	High      float64 `json:"f15"`
	Low       float64 `json:"f16"`
	PrevClose float64 `json:"f18"`
	Volume    int64   `json:"f5"`
	Amount    float64 `json:"f6"`
	MainNet   float64 `json:"f62"`
}

func (c *Client) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	ids := make([]string, 0, len(codes))
	for _, code := range codes {
		ids = append(ids, secID(code))
	}
	var resp struct {
		Data struct {
			Diff []listFields `json:"diff"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/api/qt/ulist.np/get?fltt=2&secids=%s&fields=f2,f3,f5,f6,f12,f14,f15,f16,f17,f18",
		c.cfg.BaseURL, strings.Join(ids, ","))
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	out := make([]model.Quote, 0, len(resp.Data.Diff))
	for _, d := range resp.Data.Diff {
		out = append(out, model.Quote{
			Code:          d.Code,
			Name:          d.Name,
			Price:         d.Price,
			Open:          d.Open,
			High:          d.High,
			Low:           d.Low,
			PrevClose:     d.PrevClose,
			Change:        d.Price - d.PrevClose,
			ChangePercent: d.ChangePct,
			Volume:        d.Volume,
			Amount:        d.Amount,
			Timestamp:     now,
		})
	}
	return out, nil
}

// ---- kline ----

var kltByPeriod = map[string]string{
	"daily":   "101",
	"weekly":  "102",
	"monthly": "103",
}

func (c *Client) FetchKline(ctx context.Context, code, period string, limit int) ([]model.Bar, error) {
	klt, ok := kltByPeriod[period]
	if !ok {
		klt = kltByPeriod["daily"]
	}
	if limit <= 0 {
		limit = 120
	}
	var resp struct {
		Data struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/api/qt/stock/kline/get?secid=%s&klt=%s&fqt=1&lmt=%d&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56,f57",
		c.cfg.HisURL, secID(code), klt, limit)
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}

	bars := make([]model.Bar, 0, len(resp.Data.Klines))
	for _, line := range resp.Data.Klines {
		// "2025-08-01,open,close,high,low,volume,amount"
		parts := strings.Split(line, ",")
		if len(parts) < 7 {
			continue
		}
		open, _ := strconv.ParseFloat(parts[1], 64)
		cls, _ := strconv.ParseFloat(parts[2], 64)
		high, _ := strconv.ParseFloat(parts[3], 64)
		low, _ := strconv.ParseFloat(parts[4], 64)
		vol, _ := strconv.ParseInt(parts[5], 10, 64)
		amt, _ := strconv.ParseFloat(parts[6], 64)
		bars = append(bars, model.Bar{
			Date: parts[0], Open: open, High: high, Low: low, Close: cls,
			Volume: vol, Amount: amt,
		})
	}
	return bars, nil
}

// ---- money flow ----

func (c *Client) FetchFundFlow(ctx context.Context, code string) (*model.FundFlow, error) {
	var resp struct {
		Data struct {
			Klines []string `json:"klines"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/api/qt/stock/fflow/kline/get?secid=%s&klt=1&lmt=1&fields1=f1,f2,f3&fields2=f51,f52,f53,f54,f55,f56",
		c.cfg.BaseURL, secID(code))
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	if len(resp.Data.Klines) == 0 {
		return &model.FundFlow{Code: code}, nil
	}
	// "time,main,small,medium,large,super"
	parts := strings.Split(resp.Data.Klines[len(resp.Data.Klines)-1], ",")
	if len(parts) < 6 {
		return &model.FundFlow{Code: code}, nil
	}
	main, _ := strconv.ParseFloat(parts[1], 64)
	small, _ := strconv.ParseFloat(parts[2], 64)
	medium, _ := strconv.ParseFloat(parts[3], 64)
	large, _ := strconv.ParseFloat(parts[4], 64)
	super, _ := strconv.ParseFloat(parts[5], 64)
	return &model.FundFlow{
		Code:      code,
		MainNet:   main,
		SuperNet:  super,
		LargeNet:  large,
		MediumNet: medium,
		SmallNet:  small,
		Timestamp: time.Now().UnixMilli(),
	}, nil
}

func (c *Client) FetchSectorFlows(ctx context.Context) ([]model.SectorFlow, error) {
	var resp struct {
		Data struct {
			Diff []listFields `json:"diff"`
		} `json:"data"`
	}
	u := fmt.Sprintf("%s/api/qt/clist/get?fid=f62&po=1&pn=1&pz=50&fltt=2&fs=%s&fields=f3,f12,f14,f62",
		c.cfg.BaseURL, url.QueryEscape("m:90+t:2"))
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	now := time.Now().UnixMilli()
	out := make([]model.SectorFlow, 0, len(resp.Data.Diff))
	for _, d := range resp.Data.Diff {
		out = append(out, model.SectorFlow{
			Name:          d.Name,
			Code:          d.Code,
			MainNet:       d.MainNet,
			ChangePercent: d.ChangePct,
			Timestamp:     now,
		})
	}
	return out, nil
}

func (c *Client) FetchNorthFund(ctx context.Context) (*model.NorthFund, error) {
	var resp struct {
		Data struct {
			HK2SH struct {
				DayNetAmtIn float64 `json:"dayNetAmtIn"` // 万元
			} `json:"hk2sh"`
			HK2SZ struct {
				DayNetAmtIn float64 `json:"dayNetAmtIn"`
			} `json:"hk2sz"`
		} `json:"data"`
	}
	if err := c.get(ctx, c.cfg.BaseURL+"/api/qt/kamt/get?fields1=f1,f2,f3,f4&fields2=f51,f52", &resp); err != nil {
		return nil, err
	}
	sh := resp.Data.HK2SH.DayNetAmtIn * 1e4
	sz := resp.Data.HK2SZ.DayNetAmtIn * 1e4
	return &model.NorthFund{
		Date:     time.Now().Format("2006-01-02"),
		SHNet:    sh,
		SZNet:    sz,
		TotalNet: sh + sz,
	}, nil
}

// ---- datacenter reports ----

type reportResp struct {
	Result struct {
		Data []json.RawMessage `json:"data"`
	} `json:"result"`
}

func (c *Client) report(ctx context.Context, reportName, extra string) ([]json.RawMessage, error) {
	u := fmt.Sprintf("%s/api/data/v1/get?reportName=%s&columns=ALL&pageSize=100%s", c.cfg.DataURL, reportName, extra)
	var resp reportResp
	if err := c.get(ctx, u, &resp); err != nil {
		return nil, err
	}
	return resp.Result.Data, nil
}

func (c *Client) FetchMargin(ctx context.Context) (*model.MarginSummary, error) {
	rows, err := c.report(ctx, "RPTA_RZRQ_LSHJ", "&sortColumns=DIM_DATE&sortTypes=-1&pageSize=1")
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return &model.MarginSummary{}, nil
	}
	var row struct {
		Date          string  `json:"DIM_DATE"`
		FinancingBal  float64 `json:"RZYE"`
		SecuritiesBal float64 `json:"RQYE"`
		TotalBal      float64 `json:"RZRQYE"`
		FinancingBuy  float64 `json:"RZMRE"`
	}
	if err := json.Unmarshal(rows[0], &row); err != nil {
		return nil, port.NewProviderError(c.Name(), "decode margin", err)
	}
	date := row.Date
	if len(date) >= 10 {
		date = date[:10]
	}
	return &model.MarginSummary{
		Date:              date,
		FinancingBalance:  row.FinancingBal,
		SecuritiesBalance: row.SecuritiesBal,
		TotalBalance:      row.TotalBal,
		FinancingBuy:      row.FinancingBuy,
	}, nil
}

func (c *Client) FetchDragonTiger(ctx context.Context, date string) ([]model.DragonTiger, error) {
	filter := url.QueryEscape(fmt.Sprintf("(TRADE_DATE='%s')", date))
	rows, err := c.report(ctx, "RPT_DAILYBILLBOARD_DETAILSNEW", "&sortColumns=SECURITY_CODE&sortTypes=1&filter="+filter)
	if err != nil {
		return nil, err
	}
	out := make([]model.DragonTiger, 0, len(rows))
	for _, raw := range rows {
		var row struct {
			Code   string  `json:"SECURITY_CODE"`
			Name   string  `json:"SECURITY_NAME_ABBR"`
			Reason string  `json:"EXPLANATION"`
			Buy    float64 `json:"BILLBOARD_BUY_AMT"`
			Sell   float64 `json:"BILLBOARD_SELL_AMT"`
			Net    float64 `json:"BILLBOARD_NET_AMT"`
		}
		if err := json.Unmarshal(raw, &row); err != nil {
			continue
		}
		out = append(out, model.DragonTiger{
			Date:       date,
			Code:       row.Code,
			Name:       row.Name,
			Reason:     row.Reason,
			BuyAmount:  row.Buy,
			SellAmount: row.Sell,
			NetAmount:  row.Net,
		})
	}
	return out, nil
}

var (
	_ port.QuoteSource  = (*Client)(nil)
	_ port.KlineSource  = (*Client)(nil)
	_ port.FlowSource   = (*Client)(nil)
	_ port.MarketSource = (*Client)(nil)
)
