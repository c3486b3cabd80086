// Package sina parses the hq.sinajs.cn quote feed (GBK, comma-separated)
// and the 新浪财经 kline JSON endpoint.
package sina

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/encoding/simplifiedchinese"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
	"mdagg/internal/infrastructure/source"
)

const (
	defaultQuoteURL = "https://hq.sinajs.cn"
	defaultKlineURL = "https://quotes.sina.cn/cn/api/jsonp_v2.php"
)

type Config struct {
	BaseURL string
	Timeout time.Duration
}

type Client struct {
	cfg  Config
	http *http.Client
}

func New(cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultQuoteURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: source.NewHTTPClient(cfg.Timeout)}
}

func (c *Client) Name() string { return "sina" }

func (c *Client) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := c.fetchRaw(probeCtx, []string{"sh000001"})
	return err == nil
}

// symbol maps a 6-digit code to sina's exchange-prefixed symbol.
func symbol(code string) string {
	switch model.BoardOf(code) {
	case model.BoardBSE:
		return "bj" + code
	}
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

func (c *Client) fetchRaw(ctx context.Context, symbols []string) (string, error) {
	u := c.cfg.BaseURL + "/list=" + strings.Join(symbols, ",")
	// 无 Referer 会被 456 拒绝
	b, err := source.GetBytes(ctx, c.http, u, map[string]string{
		"Referer": "https://finance.sina.com.cn",
	})
	if err != nil {
		return "", port.NewProviderError(c.Name(), "get", err)
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err != nil {
		return "", port.NewProviderError(c.Name(), "gbk decode", err)
	}
	return string(decoded), nil
}

// parseLine parses one `var hq_str_sh600519="贵州茅台,open,prev,price,high,low,...";` line.
func parseLine(line string) (*model.Quote, bool) {
	eq := strings.Index(line, "=\"")
	if eq < 0 {
		return nil, false
	}
	name := line[:eq]
	code := name[strings.LastIndex(name, "_")+1:]
	if len(code) > 2 {
		code = code[2:] // strip sh/sz/bj
	}
	body := strings.TrimSuffix(strings.TrimSuffix(line[eq+2:], ";"), "\"")
	parts := strings.Split(body, ",")
	if len(parts) < 32 {
		return nil, false
	}
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(parts[i], 64)
		return v
	}
	vol, _ := strconv.ParseInt(parts[8], 10, 64)
	q := &model.Quote{
		Code:      code,
		Name:      parts[0],
		Open:      f(1),
		PrevClose: f(2),
		Price:     f(3),
		High:      f(4),
		Low:       f(5),
		Volume:    vol / 100, // 股 -> 手
		Amount:    f(9),
	}
	q.Change = q.Price - q.PrevClose
	if q.PrevClose > 0 {
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	// 字段 30/31 是 "2025-08-29","15:00:03"
	if t, err := time.ParseInLocation("2006-01-02 15:04:05", parts[30]+" "+parts[31], cst); err == nil {
		q.Timestamp = t.UnixMilli()
	} else {
		q.Timestamp = time.Now().UnixMilli()
	}
	return q, true
}

var cst = time.FixedZone("CST", 8*3600)

func (c *Client) FetchQuote(ctx context.Context, code string) (*model.Quote, error) {
	raw, err := c.fetchRaw(ctx, []string{symbol(code)})
	if err != nil {
		return nil, err
	}
	for _, line := range strings.Split(raw, "\n") {
		if q, ok := parseLine(strings.TrimSpace(line)); ok {
			return q, nil
		}
	}
	return &model.Quote{Code: code}, nil
}

func (c *Client) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	symbols := make([]string, 0, len(codes))
	for _, code := range codes {
		symbols = append(symbols, symbol(code))
	}
	raw, err := c.fetchRaw(ctx, symbols)
	if err != nil {
		return nil, err
	}
	out := make([]model.Quote, 0, len(codes))
	for _, line := range strings.Split(raw, "\n") {
		if q, ok := parseLine(strings.TrimSpace(line)); ok {
			out = append(out, *q)
		}
	}
	return out, nil
}

// scale: 日线 240 分钟，周线 1200，月线 7200
var scaleByPeriod = map[string]string{
	"daily":   "240",
	"weekly":  "1200",
	"monthly": "7200",
}

func (c *Client) FetchKline(ctx context.Context, code, period string, limit int) ([]model.Bar, error) {
	scale, ok := scaleByPeriod[period]
	if !ok {
		scale = scaleByPeriod["daily"]
	}
	if limit <= 0 {
		limit = 120
	}
	u := fmt.Sprintf("%s/var%%20_=/CN_MarketDataService.getKLineData?symbol=%s&scale=%s&ma=no&datalen=%d",
		defaultKlineURL, symbol(code), scale, limit)
	b, err := source.GetBytes(ctx, c.http, u, map[string]string{
		"Referer": "https://finance.sina.com.cn",
	})
	if err != nil {
		return nil, port.NewProviderError(c.Name(), "get kline", err)
	}
	// jsonp 包装: `var _=([...]);` 取第一个 '[' 到最后一个 ']'
	s := string(b)
	start, end := strings.Index(s, "["), strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil, port.NewProviderError(c.Name(), "decode kline", fmt.Errorf("no json array in response"))
	}
	var rows []struct {
		Day    string `json:"day"`
		Open   string `json:"open"`
		High   string `json:"high"`
		Low    string `json:"low"`
		Close  string `json:"close"`
		Volume string `json:"volume"`
	}
	if err := json.Unmarshal([]byte(s[start:end+1]), &rows); err != nil {
		return nil, port.NewProviderError(c.Name(), "decode kline", err)
	}
	bars := make([]model.Bar, 0, len(rows))
	for _, r := range rows {
		open, _ := strconv.ParseFloat(r.Open, 64)
		high, _ := strconv.ParseFloat(r.High, 64)
		low, _ := strconv.ParseFloat(r.Low, 64)
		cls, _ := strconv.ParseFloat(r.Close, 64)
		vol, _ := strconv.ParseInt(r.Volume, 10, 64)
		date := r.Day
		if len(date) > 10 {
			date = date[:10]
		}
		bars = append(bars, model.Bar{
			Date: date, Open: open, High: high, Low: low, Close: cls, Volume: vol / 100,
		})
	}
	return bars, nil
}

var (
	_ port.QuoteSource = (*Client)(nil)
	_ port.KlineSource = (*Client)(nil)
)
