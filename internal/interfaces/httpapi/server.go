// Package httpapi exposes the aggregated operations over a small JSON API.
package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"mdagg/internal/application/port"
	"mdagg/internal/application/service"
	"mdagg/internal/domain/model"
)

const maxBatchCodes = 200

// Aggregator 是 handler 依赖的操作面，测试时用假实现替换
type Aggregator interface {
	GetQuote(ctx context.Context, code string) *model.Envelope
	GetQuotes(ctx context.Context, codes []string) *model.Envelope
	GetKline(ctx context.Context, code, period string, limit int) *model.Envelope
	GetFundFlow(ctx context.Context, code string) *model.Envelope
	GetSectorFlows(ctx context.Context) *model.Envelope
	GetNorthFund(ctx context.Context) *model.Envelope
	GetMargin(ctx context.Context) *model.Envelope
	GetDragonTiger(ctx context.Context, date string) *model.Envelope
	GetNews(ctx context.Context, limit int) *model.Envelope
	Health() []service.ProviderHealth
}

type API struct {
	agg     Aggregator
	repo    port.SecurityRepo
	timeout time.Duration
}

func New(agg Aggregator, repo port.SecurityRepo, timeout time.Duration) *API {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &API{agg: agg, repo: repo, timeout: timeout}
}

// Handler builds the routed handler with the middleware chain applied.
func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /api/v1/quote", a.handleQuote)
	mux.HandleFunc("GET /api/v1/quotes", a.handleQuotes)
	mux.HandleFunc("GET /api/v1/kline", a.handleKline)
	mux.HandleFunc("GET /api/v1/fundflow", a.handleFundFlow)
	mux.HandleFunc("GET /api/v1/sectorflow", a.handleSectorFlow)
	mux.HandleFunc("GET /api/v1/northfund", a.handleNorthFund)
	mux.HandleFunc("GET /api/v1/margin", a.handleMargin)
	mux.HandleFunc("GET /api/v1/dragon-tiger", a.handleDragonTiger)
	mux.HandleFunc("GET /api/v1/news", a.handleNews)
	mux.HandleFunc("GET /api/v1/search", a.handleSearch)
	mux.HandleFunc("GET /api/v1/providers", a.handleProviders)
	return withRequestID(accessLog(recoverPanic(mux)))
}

func (a *API) opCtx(r *http.Request) (context.Context, context.CancelFunc) {
	return context.WithTimeout(r.Context(), a.timeout)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, model.Fail(msg))
}

// writeEnvelope 统一出口：失败且无数据给 502，其余 200
func writeEnvelope(w http.ResponseWriter, env *model.Envelope) {
	status := http.StatusOK
	if !env.Success && env.Data == nil {
		status = http.StatusBadGateway
	}
	writeJSON(w, status, env)
}

func codeParam(r *http.Request) (string, bool) {
	code := strings.TrimSpace(r.URL.Query().Get("code"))
	if code == "" {
		return "", false
	}
	return code, true
}

func (a *API) handleQuote(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(r)
	if !ok {
		badRequest(w, "missing code query param")
		return
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetQuote(ctx, code))
}

func (a *API) handleQuotes(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("codes"))
	if raw == "" {
		badRequest(w, "missing codes query param")
		return
	}
	var codes []string
	for _, c := range strings.Split(raw, ",") {
		if c = strings.TrimSpace(c); c != "" {
			codes = append(codes, c)
		}
	}
	if len(codes) == 0 {
		badRequest(w, "codes cannot be empty")
		return
	}
	if len(codes) > maxBatchCodes {
		badRequest(w, "too many codes (max "+strconv.Itoa(maxBatchCodes)+")")
		return
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetQuotes(ctx, codes))
}

func (a *API) handleKline(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(r)
	if !ok {
		badRequest(w, "missing code query param")
		return
	}
	period := r.URL.Query().Get("period")
	switch period {
	case "":
		period = "daily"
	case "daily", "weekly", "monthly":
	default:
		badRequest(w, "period must be daily, weekly or monthly")
		return
	}
	limit := 120
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 1000 {
			badRequest(w, "limit must be 1..1000")
			return
		}
		limit = n
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetKline(ctx, code, period, limit))
}

func (a *API) handleFundFlow(w http.ResponseWriter, r *http.Request) {
	code, ok := codeParam(r)
	if !ok {
		badRequest(w, "missing code query param")
		return
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetFundFlow(ctx, code))
}

func (a *API) handleSectorFlow(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetSectorFlows(ctx))
}

func (a *API) handleNorthFund(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetNorthFund(ctx))
}

func (a *API) handleMargin(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetMargin(ctx))
}

func (a *API) handleDragonTiger(w http.ResponseWriter, r *http.Request) {
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", date); err != nil {
		badRequest(w, "date must be YYYY-MM-DD")
		return
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetDragonTiger(ctx, date))
}

func (a *API) handleNews(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			badRequest(w, "limit must be 1..100")
			return
		}
		limit = n
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	writeEnvelope(w, a.agg.GetNews(ctx, limit))
}

func (a *API) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		badRequest(w, "missing q query param")
		return
	}
	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 || n > 100 {
			badRequest(w, "limit must be 1..100")
			return
		}
		limit = n
	}
	ctx, cancel := a.opCtx(r)
	defer cancel()
	secs, err := a.repo.SearchSecurities(ctx, q, limit)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, model.Fail("search failed: "+err.Error()))
		return
	}
	if secs == nil {
		secs = []model.Security{}
	}
	writeJSON(w, http.StatusOK, &model.Envelope{Success: true, Data: secs})
}

func (a *API) handleProviders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, &model.Envelope{Success: true, Data: a.agg.Health()})
}
