package localdb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

type fakeRepo struct {
	quotes     map[string]model.Quote
	securities map[string]model.Security
	pingErr    error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{quotes: map[string]model.Quote{}, securities: map[string]model.Security{}}
}

func (r *fakeRepo) UpsertSecurity(_ context.Context, sec model.Security) error {
	r.securities[sec.Code] = sec
	return nil
}

func (r *fakeRepo) SearchSecurities(_ context.Context, keyword string, limit int) ([]model.Security, error) {
	return nil, nil
}

func (r *fakeRepo) SaveQuote(_ context.Context, q *model.Quote) error {
	r.quotes[q.Code] = *q
	return nil
}

func (r *fakeRepo) LastQuote(_ context.Context, code string) (*model.Quote, error) {
	q, ok := r.quotes[code]
	if !ok {
		return nil, port.ErrNoData
	}
	return &q, nil
}

func (r *fakeRepo) Ping(context.Context) error { return r.pingErr }
func (r *fakeRepo) Close() error               { return nil }

func TestFetchQuoteFromStore(t *testing.T) {
	repo := newFakeRepo()
	repo.quotes["600519"] = model.Quote{Code: "600519", Price: 1460.5}
	s := New(repo)

	q, err := s.FetchQuote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 1460.5, q.Price)
}

func TestFetchQuoteMissingIsZeroValue(t *testing.T) {
	s := New(newFakeRepo())
	q, err := s.FetchQuote(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, "000001", q.Code)
	assert.Zero(t, q.Price)
}

func TestAvailableFollowsPing(t *testing.T) {
	repo := newFakeRepo()
	s := New(repo)
	assert.True(t, s.Available(context.Background()))

	repo.pingErr = errors.New("closed")
	assert.False(t, s.Available(context.Background()))
}

type staticSource struct {
	quote model.Quote
}

func (s *staticSource) Name() string                   { return "static" }
func (s *staticSource) Available(context.Context) bool { return true }
func (s *staticSource) FetchQuote(_ context.Context, code string) (*model.Quote, error) {
	q := s.quote
	q.Code = code
	return &q, nil
}
func (s *staticSource) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	out := make([]model.Quote, 0, len(codes))
	for _, c := range codes {
		q, _ := s.FetchQuote(ctx, c)
		out = append(out, *q)
	}
	return out, nil
}

func TestRecorderPersistsValidQuotes(t *testing.T) {
	repo := newFakeRepo()
	rec := NewRecorder(&staticSource{quote: model.Quote{Name: "贵州茅台", Price: 1460.5}}, repo)

	_, err := rec.FetchQuote(context.Background(), "600519")
	require.NoError(t, err)

	saved, ok := repo.quotes["600519"]
	require.True(t, ok)
	assert.Equal(t, 1460.5, saved.Price)
	assert.Equal(t, "贵州茅台", repo.securities["600519"].Name)
}

func TestRecorderSkipsZeroQuotes(t *testing.T) {
	repo := newFakeRepo()
	rec := NewRecorder(&staticSource{}, repo)

	_, err := rec.FetchQuote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Empty(t, repo.quotes)
}
