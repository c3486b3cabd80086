package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdagg/internal/application/service"
	"mdagg/internal/domain/model"
)

type fakeAgg struct {
	lastCode   string
	lastCodes  []string
	lastPeriod string
	lastLimit  int
	lastDate   string
	env        *model.Envelope
}

func okEnvelope(data any) *model.Envelope {
	return &model.Envelope{Success: true, Data: data, ProviderUsed: "eastmoney", Quality: &model.Quality{Valid: true}}
}

func (f *fakeAgg) GetQuote(_ context.Context, code string) *model.Envelope {
	f.lastCode = code
	return f.env
}
func (f *fakeAgg) GetQuotes(_ context.Context, codes []string) *model.Envelope {
	f.lastCodes = codes
	return f.env
}
func (f *fakeAgg) GetKline(_ context.Context, code, period string, limit int) *model.Envelope {
	f.lastCode, f.lastPeriod, f.lastLimit = code, period, limit
	return f.env
}
func (f *fakeAgg) GetFundFlow(_ context.Context, code string) *model.Envelope {
	f.lastCode = code
	return f.env
}
func (f *fakeAgg) GetSectorFlows(context.Context) *model.Envelope { return f.env }
func (f *fakeAgg) GetNorthFund(context.Context) *model.Envelope   { return f.env }
func (f *fakeAgg) GetMargin(context.Context) *model.Envelope      { return f.env }
func (f *fakeAgg) GetDragonTiger(_ context.Context, date string) *model.Envelope {
	f.lastDate = date
	return f.env
}
func (f *fakeAgg) GetNews(_ context.Context, limit int) *model.Envelope {
	f.lastLimit = limit
	return f.env
}
func (f *fakeAgg) Health() []service.ProviderHealth {
	return []service.ProviderHealth{{Provider: "eastmoney", Available: true}}
}

type fakeSearchRepo struct {
	lastKeyword string
	out         []model.Security
}

func (r *fakeSearchRepo) UpsertSecurity(context.Context, model.Security) error { return nil }
func (r *fakeSearchRepo) SearchSecurities(_ context.Context, keyword string, limit int) ([]model.Security, error) {
	r.lastKeyword = keyword
	return r.out, nil
}
func (r *fakeSearchRepo) SaveQuote(context.Context, *model.Quote) error { return nil }
func (r *fakeSearchRepo) LastQuote(context.Context, string) (*model.Quote, error) {
	return nil, nil
}
func (r *fakeSearchRepo) Ping(context.Context) error { return nil }
func (r *fakeSearchRepo) Close() error               { return nil }

func newTestAPI(env *model.Envelope) (*fakeAgg, *fakeSearchRepo, http.Handler) {
	agg := &fakeAgg{env: env}
	repo := &fakeSearchRepo{}
	return agg, repo, New(agg, repo, time.Second).Handler()
}

func do(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) model.Envelope {
	t.Helper()
	var env model.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestQuoteEndpoint(t *testing.T) {
	agg, _, h := newTestAPI(okEnvelope(model.Quote{Code: "600519", Price: 1460.5}))

	rec := do(t, h, "/api/v1/quote?code=600519")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "600519", agg.lastCode)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, "eastmoney", env.ProviderUsed)
}

func TestQuoteMissingCode(t *testing.T) {
	_, _, h := newTestAPI(okEnvelope(nil))
	rec := do(t, h, "/api/v1/quote")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	env := decodeEnvelope(t, rec)
	assert.False(t, env.Success)
}

func TestQuotesSplitsAndTrims(t *testing.T) {
	agg, _, h := newTestAPI(okEnvelope(nil))
	rec := do(t, h, "/api/v1/quotes?codes=600519,%20000858,,300750")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"600519", "000858", "300750"}, agg.lastCodes)
}

func TestKlineDefaultsAndValidation(t *testing.T) {
	agg, _, h := newTestAPI(okEnvelope(nil))

	rec := do(t, h, "/api/v1/kline?code=600519")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "daily", agg.lastPeriod)
	assert.Equal(t, 120, agg.lastLimit)

	rec = do(t, h, "/api/v1/kline?code=600519&period=hourly")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "/api/v1/kline?code=600519&limit=0")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDragonTigerDateValidation(t *testing.T) {
	agg, _, h := newTestAPI(okEnvelope(nil))

	rec := do(t, h, "/api/v1/dragon-tiger?date=2025-08-29")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2025-08-29", agg.lastDate)

	rec = do(t, h, "/api/v1/dragon-tiger?date=29/08/2025")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = do(t, h, "/api/v1/dragon-tiger")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, time.Now().Format("2006-01-02"), agg.lastDate)
}

func TestFailureWithoutDataIs502(t *testing.T) {
	_, _, h := newTestAPI(model.Fail("all providers failed"))
	rec := do(t, h, "/api/v1/quote?code=600519")
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	_, repo, h := newTestAPI(okEnvelope(nil))
	repo.out = []model.Security{{Code: "600519", Name: "贵州茅台", Board: "main"}}

	rec := do(t, h, "/api/v1/search?q=%E8%8C%85%E5%8F%B0")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "茅台", repo.lastKeyword)

	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
}

func TestProvidersEndpoint(t *testing.T) {
	_, _, h := newTestAPI(okEnvelope(nil))
	rec := do(t, h, "/api/v1/providers")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "eastmoney")
}

func TestRequestIDHeader(t *testing.T) {
	_, _, h := newTestAPI(okEnvelope(nil))
	rec := do(t, h, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))
}

func TestRequestIDPassthrough(t *testing.T) {
	_, _, h := newTestAPI(okEnvelope(nil))
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	h.ServeHTTP(rec, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}
