package port

import (
	"context"

	"mdagg/internal/domain/model"
)

// SecurityRepo backs the local database fallback source: a security master
// for keyword search plus the last quote seen per code.
type SecurityRepo interface {
	UpsertSecurity(ctx context.Context, sec model.Security) error
	SearchSecurities(ctx context.Context, keyword string, limit int) ([]model.Security, error)
	SaveQuote(ctx context.Context, q *model.Quote) error
	LastQuote(ctx context.Context, code string) (*model.Quote, error)
	Ping(ctx context.Context) error
	Close() error
}
