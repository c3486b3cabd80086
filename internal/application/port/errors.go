package port

import (
	"errors"
	"fmt"
)

// ErrNoData 上游正常响应但没有对应数据（停牌、非交易日等）。
// Connectors return it instead of inventing zero payloads for lookups that
// legitimately have no answer.
var ErrNoData = errors.New("no data")

// ProviderError wraps a transport-level failure (network, timeout, malformed
// response) with the provider that produced it.
type ProviderError struct {
	Provider string
	Op       string
	Err      error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Provider, e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a ProviderError; nil cause returns nil.
func NewProviderError(provider, op string, err error) error {
	if err == nil {
		return nil
	}
	return &ProviderError{Provider: provider, Op: op, Err: err}
}
