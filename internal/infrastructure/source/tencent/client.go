// Package tencent parses the qt.gtimg.cn quote feed ("~" separated, GBK)
// and the 腾讯财经 news roll.
package tencent

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
	defaultQuoteURL = "https://qt.gtimg.cn"
	defaultNewsURL  = "https://pacaio.match.qq.com/irs/rcd?cid=52&token=8f6b50e1667f130c10f981309e1d8200&ext=stock&num=%d"
)

type Config struct {
	BaseURL string
	NewsURL string // optional override for the news roll
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
	if cfg.NewsURL == "" {
		cfg.NewsURL = defaultNewsURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{cfg: cfg, http: source.NewHTTPClient(cfg.Timeout)}
}

func (c *Client) Name() string { return "tencent" }

func (c *Client) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	_, err := c.fetchRaw(probeCtx, []string{"sh000001"})
	return err == nil
}

func symbol(code string) string {
	if model.BoardOf(code) == model.BoardBSE {
		return "bj" + code
	}
	if strings.HasPrefix(code, "6") {
		return "sh" + code
	}
	return "sz" + code
}

func (c *Client) fetchRaw(ctx context.Context, symbols []string) (string, error) {
	u := c.cfg.BaseURL + "/q=" + strings.Join(symbols, ",")
	b, err := source.GetBytes(ctx, c.http, u, nil)
	if err != nil {
		return "", port.NewProviderError(c.Name(), "get", err)
	}
	decoded, err := simplifiedchinese.GBK.NewDecoder().Bytes(b)
	if err != nil {
		return "", port.NewProviderError(c.Name(), "gbk decode", err)
	}
	return string(decoded), nil
}

// parseLine parses one `v_sh600519="1~贵州茅台~600519~1460.50~..."` line.
// Field layout: 1=name 2=code 3=price 4=prev_close 5=open 6=volume(手)
// 30=time 31=change 32=change% 33=high 34=low 37=amount(万元)
func parseLine(line string) (*model.Quote, bool) {
	eq := strings.Index(line, "=\"")
	if eq < 0 {
		return nil, false
	}
	body := strings.TrimSuffix(strings.TrimSuffix(line[eq+2:], ";"), "\"")
	parts := strings.Split(body, "~")
	if len(parts) < 38 {
		return nil, false
	}
	f := func(i int) float64 {
		v, _ := strconv.ParseFloat(parts[i], 64)
		return v
	}
	vol, _ := strconv.ParseInt(parts[6], 10, 64)
	q := &model.Quote{
		Code:          parts[2],
		Name:          parts[1],
		Price:         f(3),
		PrevClose:     f(4),
		Open:          f(5),
		Volume:        vol,
		Change:        f(31),
		ChangePercent: f(32),
		High:          f(33),
		Low:           f(34),
		Amount:        f(37) * 1e4,
	}
	// parts[30] like "20250829150003"
	if t, err := time.ParseInLocation("20060102150405", parts[30], cst); err == nil {
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

func (c *Client) FetchNews(ctx context.Context, limit int) ([]model.NewsItem, error) {
	if limit <= 0 {
		limit = 20
	}
	b, err := source.GetBytes(ctx, c.http, fmt.Sprintf(c.cfg.NewsURL, limit), nil)
	if err != nil {
		return nil, port.NewProviderError(c.Name(), "get news", err)
	}
	var resp struct {
		Data []struct {
			Title   string `json:"title"`
			URL     string `json:"url"`
			Source  string `json:"source"`
			PubTime string `json:"publish_time"` // "2025-08-29 15:00:03"
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &resp); err != nil {
		return nil, port.NewProviderError(c.Name(), "decode news", err)
	}
	out := make([]model.NewsItem, 0, len(resp.Data))
	for _, d := range resp.Data {
		item := model.NewsItem{Title: d.Title, URL: d.URL, Source: d.Source}
		if item.Source == "" {
			item.Source = "腾讯财经"
		}
		if t, err := time.ParseInLocation("2006-01-02 15:04:05", d.PubTime, cst); err == nil {
			item.PublishedAt = t.UnixMilli()
		}
		out = append(out, item)
	}
	return out, nil
}

var (
	_ port.QuoteSource = (*Client)(nil)
	_ port.NewsSource  = (*Client)(nil)
)
