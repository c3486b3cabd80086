package svc

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

type quoteOnly struct{ name string }

func (s *quoteOnly) Name() string                   { return s.name }
func (s *quoteOnly) Available(context.Context) bool { return true }
func (s *quoteOnly) FetchQuote(_ context.Context, code string) (*model.Quote, error) {
	return &model.Quote{Code: code}, nil
}
func (s *quoteOnly) FetchQuotes(context.Context, []string) ([]model.Quote, error) {
	return nil, nil
}

type flowOnly struct{ name string }

func (s *flowOnly) Name() string                   { return s.name }
func (s *flowOnly) Available(context.Context) bool { return true }
func (s *flowOnly) FetchFundFlow(context.Context, string) (*model.FundFlow, error) {
	return &model.FundFlow{}, nil
}
func (s *flowOnly) FetchSectorFlows(context.Context) ([]model.SectorFlow, error) { return nil, nil }
func (s *flowOnly) FetchNorthFund(context.Context) (*model.NorthFund, error) {
	return &model.NorthFund{}, nil
}

func TestBuildListsCapabilityMismatch(t *testing.T) {
	sources := map[string]port.Source{"sina": &quoteOnly{name: "sina"}}
	priority := map[string][]string{port.KindNews: {"sina"}}

	_, err := buildLists(priority, sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not serve")
}

func TestBuildListsSkipsDisabledProviders(t *testing.T) {
	sources := map[string]port.Source{"sina": &quoteOnly{name: "sina"}}
	priority := map[string][]string{port.KindQuote: {"eastmoney", "sina"}}

	lists, err := buildLists(priority, sources)
	require.NoError(t, err)
	require.Len(t, lists.Quote, 1)
	assert.Equal(t, "sina", lists.Quote[0].Name())
}

func TestBuildListsKeepsPriorityOrder(t *testing.T) {
	sources := map[string]port.Source{
		"a": &quoteOnly{name: "a"},
		"b": &quoteOnly{name: "b"},
	}
	priority := map[string][]string{port.KindQuote: {"b", "a"}}

	lists, err := buildLists(priority, sources)
	require.NoError(t, err)
	require.Len(t, lists.Quote, 2)
	assert.Equal(t, "b", lists.Quote[0].Name())
	assert.Equal(t, "a", lists.Quote[1].Name())
}

// 整条 priority 列表都没启用时必须在启动期报错，而不是留一个空列表到请求期
func TestBuildListsAllDisabledIsStartupError(t *testing.T) {
	sources := map[string]port.Source{"sina": &quoteOnly{name: "sina"}}
	priority := map[string][]string{port.KindQuote: {"eastmoney", "tencent"}}

	_, err := buildLists(priority, sources)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priority.quote")
	assert.Contains(t, err.Error(), "no enabled providers")
}

// 每种操作用自己的 priority 列表，sector_flow 不跟着 fund_flow 的顺序走
func TestBuildListsPerKindOrdering(t *testing.T) {
	sources := map[string]port.Source{
		"a": &flowOnly{name: "a"},
		"b": &flowOnly{name: "b"},
	}
	priority := map[string][]string{
		port.KindFundFlow:   {"a", "b"},
		port.KindSectorFlow: {"b", "a"},
		port.KindNorthFund:  {"b"},
	}

	lists, err := buildLists(priority, sources)
	require.NoError(t, err)

	require.Len(t, lists.FundFlow, 2)
	assert.Equal(t, "a", lists.FundFlow[0].Name())
	require.Len(t, lists.SectorFlow, 2)
	assert.Equal(t, "b", lists.SectorFlow[0].Name())
	require.Len(t, lists.NorthFund, 1)
	assert.Equal(t, "b", lists.NorthFund[0].Name())
}
