package tencent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleLine() string {
	// 38 个字段的最小可解析样本，关键位置按真实报文布局填值
	parts := make([]string, 50)
	parts[1] = "贵州茅台"
	parts[2] = "600519"
	parts[3] = "1460.50"
	parts[4] = "1448.00"
	parts[5] = "1450.00"
	parts[6] = "28612"
	parts[30] = "20250829150003"
	parts[31] = "12.50"
	parts[32] = "0.86"
	parts[33] = "1465.00"
	parts[34] = "1445.00"
	parts[37] = "417285.00"
	return `v_sh600519="` + strings.Join(parts, "~") + `";`
}

func TestParseLine(t *testing.T) {
	q, ok := parseLine(sampleLine())
	require.True(t, ok)
	assert.Equal(t, "600519", q.Code)
	assert.Equal(t, "贵州茅台", q.Name)
	assert.Equal(t, 1460.5, q.Price)
	assert.Equal(t, 1448.0, q.PrevClose)
	assert.Equal(t, 1450.0, q.Open)
	assert.Equal(t, 1465.0, q.High)
	assert.Equal(t, 1445.0, q.Low)
	assert.Equal(t, int64(28612), q.Volume)
	assert.Equal(t, 12.5, q.Change)
	assert.Equal(t, 0.86, q.ChangePercent)
	assert.InDelta(t, 4.17285e9, q.Amount, 1)
	assert.NotZero(t, q.Timestamp)
}

func TestParseLineRejectsShort(t *testing.T) {
	_, ok := parseLine(`v_sh600519="1~only~three";`)
	assert.False(t, ok)
}
