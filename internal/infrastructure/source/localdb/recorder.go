package localdb

import (
	"context"

	"github.com/rs/zerolog/log"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

// Recorder wraps a live QuoteSource and persists every quote it returns,
// so the localdb fallback has something to serve when the network is out.
type Recorder struct {
	port.QuoteSource
	repo port.SecurityRepo
}

func NewRecorder(inner port.QuoteSource, repo port.SecurityRepo) *Recorder {
	return &Recorder{QuoteSource: inner, repo: repo}
}

func (r *Recorder) record(ctx context.Context, q *model.Quote) {
	if q == nil || q.Price <= 0 {
		return
	}
	if err := r.repo.SaveQuote(ctx, q); err != nil {
		log.Warn().Str("source", r.Name()).Str("code", q.Code).Err(err).Msg("quote persist failed")
		return
	}
	if q.Name != "" {
		sec := model.Security{Code: q.Code, Name: q.Name, Board: string(model.BoardOf(q.Code))}
		if err := r.repo.UpsertSecurity(ctx, sec); err != nil {
			log.Warn().Str("code", q.Code).Err(err).Msg("security upsert failed")
		}
	}
}

func (r *Recorder) FetchQuote(ctx context.Context, code string) (*model.Quote, error) {
	q, err := r.QuoteSource.FetchQuote(ctx, code)
	if err != nil {
		return nil, err
	}
	r.record(ctx, q)
	return q, nil
}

func (r *Recorder) FetchQuotes(ctx context.Context, codes []string) ([]model.Quote, error) {
	qs, err := r.QuoteSource.FetchQuotes(ctx, codes)
	if err != nil {
		return nil, err
	}
	for i := range qs {
		r.record(ctx, &qs[i])
	}
	return qs, nil
}

var _ port.QuoteSource = (*Recorder)(nil)
