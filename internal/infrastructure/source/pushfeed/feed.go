// Package pushfeed keeps a websocket subscription to an internal tick
// stream and answers quote lookups from the last tick seen per code.
package pushfeed

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

type Config struct {
	WsURL   string
	Codes   []string // 订阅的证券代码
	TickTTL time.Duration
}

// Feed is a QuoteSource backed by the push stream. Run must be started
// for it to report Available.
type Feed struct {
	cfg       Config
	connected atomic.Bool

	mu    sync.RWMutex
	ticks map[string]model.Quote
}

func New(cfg Config) *Feed {
	if cfg.TickTTL <= 0 {
		cfg.TickTTL = 30 * time.Second
	}
	return &Feed{cfg: cfg, ticks: make(map[string]model.Quote)}
}

func (f *Feed) Name() string { return "pushfeed" }

// Available 只在 ws 已连上时为真，断线期间由别的 provider 顶上。
func (f *Feed) Available(ctx context.Context) bool {
	return f.connected.Load()
}

type subReq struct {
	Op    string   `json:"op"`
	Codes []string `json:"codes"`
}

type tickMsg struct {
	Code      string  `json:"code"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	PrevClose float64 `json:"prev_close"`
	Volume    int64   `json:"volume"`
	Amount    float64 `json:"amount"`
	Ts        int64   `json:"ts_ms"`
}

// Run dials the push endpoint and keeps the tick map fresh until ctx
// is cancelled, reconnecting with capped backoff.
func (f *Feed) Run(ctx context.Context) {
	backoff := 500 * time.Millisecond
	const maxBackoff = 10 * time.Second

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		log.Warn().Str("feed", f.Name()).Str("url", f.cfg.WsURL).Msg("ws connecting")
		cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
		conn, _, err := websocket.DefaultDialer.DialContext(cctx, f.cfg.WsURL, nil)
		cancel()
		if err != nil {
			log.Error().Str("feed", f.Name()).Err(err).Msg("ws dial failed")
			time.Sleep(backoff)
			backoff = minDur(backoff*2, maxBackoff)
			continue
		}

		backoff = 500 * time.Millisecond
		log.Info().Str("feed", f.Name()).Msg("ws connected")

		codes := make([]string, 0, len(f.cfg.Codes))
		for _, c := range f.cfg.Codes {
			if c = strings.TrimSpace(c); c != "" {
				codes = append(codes, c)
			}
		}
		if len(codes) > 0 {
			if b, err := json.Marshal(subReq{Op: "subscribe", Codes: codes}); err == nil {
				_ = conn.WriteMessage(websocket.TextMessage, b)
			}
		}

		f.connected.Store(true)
		err = readLoop(ctx, conn, f.onMessage)
		f.connected.Store(false)
		_ = conn.Close()

		if ctx.Err() != nil {
			return
		}
		log.Warn().Str("feed", f.Name()).Err(err).Msg("ws disconnected, reconnecting")
		time.Sleep(backoff)
		backoff = minDur(backoff*2, maxBackoff)
	}
}

func (f *Feed) onMessage(b []byte) {
	var msg tickMsg
	if err := json.Unmarshal(b, &msg); err != nil {
		log.Error().Str("feed", f.Name()).Err(err).Msg("json unmarshal failed")
		return
	}
	if msg.Code == "" {
		return
	}
	if msg.Ts == 0 {
		msg.Ts = time.Now().UnixMilli()
	}
	q := model.Quote{
		Code:      msg.Code,
		Name:      msg.Name,
		Price:     msg.Price,
		Open:      msg.Open,
		High:      msg.High,
		Low:       msg.Low,
		PrevClose: msg.PrevClose,
		Volume:    msg.Volume,
		Amount:    msg.Amount,
		Timestamp: msg.Ts,
	}
	q.Change = q.Price - q.PrevClose
	if q.PrevClose > 0 {
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	f.mu.Lock()
	f.ticks[msg.Code] = q
	f.mu.Unlock()
}

// lookup returns the last tick for code, zero quote when absent or
// older than TickTTL. 零值报价会被 validator 拒掉，触发 failover。
func (f *Feed) lookup(code string) model.Quote {
	f.mu.RLock()
	q, ok := f.ticks[code]
	f.mu.RUnlock()
	if !ok || time.Now().UnixMilli()-q.Timestamp > f.cfg.TickTTL.Milliseconds() {
		return model.Quote{Code: code}
	}
	return q
}

func (f *Feed) FetchQuote(ctx context.Context, code string) (*model.Quote, error) {
	q := f.lookup(code)
	return &q, nil
}

func (f *Feed) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	out := make([]model.Quote, 0, len(codes))
	for _, code := range codes {
		out = append(out, f.lookup(code))
	}
	return out, nil
}

func readLoop(ctx context.Context, conn *websocket.Conn, onMsg func([]byte)) error {
	_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	pingTicker := time.NewTicker(25 * time.Second)
	defer pingTicker.Stop()

	errCh := make(chan error, 1)
	go func() {
		defer close(errCh)
		for {
			_, b, err := conn.ReadMessage()
			if err == nil {
				_ = conn.SetReadDeadline(time.Now().Add(60 * time.Second))
			}
			if err != nil {
				errCh <- err
				return
			}
			onMsg(b)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-errCh:
			return err
		case <-pingTicker.C:
			_ = conn.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
		}
	}
}

func minDur(a, b time.Duration) time.Duration {
	if a < b {
		return a
	}
	return b
}

var _ port.QuoteSource = (*Feed)(nil)
