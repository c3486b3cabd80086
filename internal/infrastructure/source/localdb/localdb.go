// Package localdb serves quotes from the local security store. It is the
// last-resort provider: answers are whatever SaveQuote last persisted.
package localdb

import (
	"context"
	"errors"
	"time"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

type Source struct {
	repo port.SecurityRepo
}

func New(repo port.SecurityRepo) *Source {
	return &Source{repo: repo}
}

func (s *Source) Name() string { return "localdb" }

func (s *Source) Available(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	return s.repo.Ping(probeCtx) == nil
}

func (s *Source) FetchQuote(ctx context.Context, code string) (*model.Quote, error) {
	q, err := s.repo.LastQuote(ctx, code)
	if errors.Is(err, port.ErrNoData) {
		// 无记录交零值报价，validator 会拒掉
		return &model.Quote{Code: code}, nil
	}
	if err != nil {
		return nil, port.NewProviderError(s.Name(), "last quote", err)
	}
	return q, nil
}

func (s *Source) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	out := make([]model.Quote, 0, len(codes))
	for _, code := range codes {
		q, err := s.FetchQuote(ctx, code)
		if err != nil {
			return nil, err
		}
		out = append(out, *q)
	}
	return out, nil
}

var _ port.QuoteSource = (*Source)(nil)
