package svc

import "errors"

// ErrNoProvidersEnabled 错误：没有启用任何 provider
var ErrNoProvidersEnabled = errors.New("no providers enabled")
