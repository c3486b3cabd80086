package sina

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleLine = `var hq_str_sh600519="贵州茅台,1450.000,1448.000,1460.500,1465.000,1445.000,1460.400,1460.500,2861200,4172850000.000,100,1460.400,200,1460.300,300,1460.200,400,1460.100,500,1460.000,100,1460.500,200,1460.600,300,1460.700,400,1460.800,500,1460.900,2025-08-29,15:00:03,00,";`

func TestParseLine(t *testing.T) {
	q, ok := parseLine(sampleLine)
	require.True(t, ok)
	assert.Equal(t, "600519", q.Code)
	assert.Equal(t, "贵州茅台", q.Name)
	assert.Equal(t, 1450.0, q.Open)
	assert.Equal(t, 1448.0, q.PrevClose)
	assert.Equal(t, 1460.5, q.Price)
	assert.Equal(t, 1465.0, q.High)
	assert.Equal(t, 1445.0, q.Low)
	assert.Equal(t, int64(28612), q.Volume) // 股转手
	assert.InDelta(t, 12.5, q.Change, 1e-9)
	assert.InDelta(t, 0.8632, q.ChangePercent, 1e-3)
	assert.NotZero(t, q.Timestamp)
}

func TestParseLineRejectsGarbage(t *testing.T) {
	_, ok := parseLine(`var hq_str_sh600519="";`)
	assert.False(t, ok)
	_, ok = parseLine("not a quote line")
	assert.False(t, ok)
}

func TestSymbolPrefixes(t *testing.T) {
	assert.Equal(t, "sh600519", symbol("600519"))
	assert.Equal(t, "sh688111", symbol("688111"))
	assert.Equal(t, "sz000001", symbol("000001"))
	assert.Equal(t, "sz300750", symbol("300750"))
	assert.Equal(t, "bj832000", symbol("832000"))
}
