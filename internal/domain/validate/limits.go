package validate

import "time"

// Limits are the tunable plausibility bands shared by all checks.
type Limits struct {
	MaxPrice     float64       // absolute price ceiling; above this a quote is rejected
	MaxDelay     time.Duration // payload age before a staleness warning
	SumTolerance float64       // absolute tolerance for component-sum checks (yuan)
}

// DefaultLimits 默认口径：A 股没有四位数以上的股价，盘中数据超过 15 分钟算旧。
func DefaultLimits() Limits {
	return Limits{
		MaxPrice:     10000,
		MaxDelay:     15 * time.Minute,
		SumTolerance: 1e6,
	}
}
