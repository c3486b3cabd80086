// Package postgres is the shared-deployment variant of the security store.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"mdagg/internal/application/port"
	"mdagg/internal/domain/model"
)

type Repo struct {
	db *sql.DB
}

func New(dsn string) (*Repo, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS securities (
  code TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  board TEXT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_securities_name ON securities(name);

CREATE TABLE IF NOT EXISTS last_quotes (
  code TEXT PRIMARY KEY,
  name TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  open DOUBLE PRECISION NOT NULL,
  high DOUBLE PRECISION NOT NULL,
  low DOUBLE PRECISION NOT NULL,
  prev_close DOUBLE PRECISION NOT NULL,
  volume BIGINT NOT NULL,
  amount DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL,
  updated_at BIGINT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_last_quotes_ts ON last_quotes(ts_ms);
`)
	return err
}

func (r *Repo) UpsertSecurity(ctx context.Context, sec model.Security) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO securities(code, name, board, updated_at)
		VALUES($1, $2, $3, $4)
		ON CONFLICT(code) DO UPDATE SET
		name=excluded.name, board=excluded.board, updated_at=excluded.updated_at
	`, sec.Code, sec.Name, sec.Board, time.Now().UnixMilli())
	return err
}

func (r *Repo) SearchSecurities(ctx context.Context, keyword string, limit int) ([]model.Security, error) {
	if limit <= 0 {
		limit = 20
	}
	like := "%" + keyword + "%"
	rows, err := r.db.QueryContext(ctx, `
		SELECT code, name, board FROM securities
		WHERE code LIKE $1 OR name LIKE $1
		ORDER BY code
		LIMIT $2
	`, like, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.Security
	for rows.Next() {
		var sec model.Security
		if err := rows.Scan(&sec.Code, &sec.Name, &sec.Board); err != nil {
			return nil, err
		}
		out = append(out, sec)
	}
	return out, rows.Err()
}

func (r *Repo) SaveQuote(ctx context.Context, q *model.Quote) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO last_quotes(code, name, price, open, high, low, prev_close, volume, amount, ts_ms, updated_at)
		VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT(code) DO UPDATE SET
		name=excluded.name, price=excluded.price, open=excluded.open, high=excluded.high,
		low=excluded.low, prev_close=excluded.prev_close, volume=excluded.volume,
		amount=excluded.amount, ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, q.Code, q.Name, q.Price, q.Open, q.High, q.Low, q.PrevClose, q.Volume, q.Amount,
		q.Timestamp, time.Now().UnixMilli())
	return err
}

func (r *Repo) LastQuote(ctx context.Context, code string) (*model.Quote, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT code, name, price, open, high, low, prev_close, volume, amount, ts_ms
		FROM last_quotes WHERE code = $1
	`, code)

	var q model.Quote
	err := row.Scan(&q.Code, &q.Name, &q.Price, &q.Open, &q.High, &q.Low, &q.PrevClose,
		&q.Volume, &q.Amount, &q.Timestamp)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, port.ErrNoData
	}
	if err != nil {
		return nil, err
	}
	q.Change = q.Price - q.PrevClose
	if q.PrevClose > 0 {
		q.ChangePercent = q.Change / q.PrevClose * 100
	}
	return &q, nil
}

var _ port.SecurityRepo = (*Repo)(nil)
