package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"tickfeed/internal/application/port"
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

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	r := &Repo{db: db}
	if err := r.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_prices (
  provider TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price DOUBLE PRECISION NOT NULL,
  change DOUBLE PRECISION NOT NULL,
  change_percent DOUBLE PRECISION NOT NULL,
  ts_ms BIGINT NOT NULL,
  updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
  PRIMARY KEY (provider, symbol)
);

CREATE TABLE IF NOT EXISTS connection_events (
  id BIGSERIAL PRIMARY KEY,
  ts_ms BIGINT NOT NULL,
  provider TEXT NOT NULL,
  status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON connection_events(ts_ms);
`)
	return err
}

func (r *Repo) UpsertLatestPrice(ctx context.Context, provider, symbol string, price, change, changePercent float64, ts int64) error {
	if price <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(provider, symbol, price, change, change_percent, ts_ms)
		VALUES($1, $2, $3, $4, $5, $6)
		ON CONFLICT(provider, symbol) DO UPDATE SET
		price=excluded.price, change=excluded.change, change_percent=excluded.change_percent,
		ts_ms=excluded.ts_ms, updated_at=now()
	`, provider, symbol, price, change, changePercent, ts)
	return err
}

func (r *Repo) InsertStatusEvent(ctx context.Context, ts int64, provider string, status port.Status) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO connection_events(ts_ms, provider, status) VALUES($1, $2, $3)`, ts, provider, string(status))
	return err
}

var _ port.Repository = (*Repo)(nil)
