package pushfeed

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tick(t *testing.T, f *Feed, msg tickMsg) {
	t.Helper()
	b, err := json.Marshal(msg)
	require.NoError(t, err)
	f.onMessage(b)
}

func TestLookupReturnsLastTick(t *testing.T) {
	f := New(Config{TickTTL: time.Minute})
	tick(t, f, tickMsg{Code: "600519", Name: "贵州茅台", Price: 1460.5, PrevClose: 1448, Ts: time.Now().UnixMilli()})

	q, err := f.FetchQuote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Equal(t, 1460.5, q.Price)
	assert.InDelta(t, 12.5, q.Change, 1e-9)
}

func TestLookupZeroWhenAbsent(t *testing.T) {
	f := New(Config{})
	q, err := f.FetchQuote(context.Background(), "000001")
	require.NoError(t, err)
	assert.Equal(t, "000001", q.Code)
	assert.Zero(t, q.Price)
}

func TestLookupZeroWhenStale(t *testing.T) {
	f := New(Config{TickTTL: 10 * time.Millisecond})
	tick(t, f, tickMsg{Code: "600519", Price: 1460.5, Ts: time.Now().Add(-time.Second).UnixMilli()})

	q, err := f.FetchQuote(context.Background(), "600519")
	require.NoError(t, err)
	assert.Zero(t, q.Price)
}

func TestNotAvailableBeforeRun(t *testing.T) {
	f := New(Config{})
	assert.False(t, f.Available(context.Background()))
}

func TestBatchLookup(t *testing.T) {
	f := New(Config{TickTTL: time.Minute})
	tick(t, f, tickMsg{Code: "600519", Price: 1460.5, Ts: time.Now().UnixMilli()})

	qs, err := f.FetchQuotes(context.Background(), []string{"600519", "000001"})
	require.NoError(t, err)
	require.Len(t, qs, 2)
	assert.Equal(t, 1460.5, qs[0].Price)
	assert.Zero(t, qs[1].Price)
}
