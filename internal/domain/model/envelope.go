package model

// Quality 数据质量元信息，随每个成功结果返回
type Quality struct {
	Valid         bool     `json:"valid"`
	Warnings      []string `json:"warnings,omitempty"`
	AsOf          int64    `json:"as_of"` // unix ms the payload was produced/cached
	Degraded      bool     `json:"degraded"`
	DegradeReason string   `json:"degrade_reason,omitempty"`
}

// Envelope is the only shape handed back to callers. Expected failures are
// reported in-band (Success=false + Error), never as a Go error.
type Envelope struct {
	Success      bool     `json:"success"`
	Data         any      `json:"data,omitempty"`
	Error        string   `json:"error,omitempty"`
	ProviderUsed string   `json:"provider_used,omitempty"`
	Cached       bool     `json:"cached,omitempty"`
	Quality      *Quality `json:"quality,omitempty"`
}

// Fail builds a failed envelope from an aggregated reason string.
func Fail(reason string) *Envelope {
	return &Envelope{Success: false, Error: reason}
}
