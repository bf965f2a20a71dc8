package sqlite

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tickfeed/internal/application/port"
)

type Repo struct {
	db *sql.DB
}

func New(path string) (*Repo, error) {
	// ensure directory exists
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	r := &Repo{db: db}
	if err := r.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return r, nil
}

func (r *Repo) Close() error { return r.db.Close() }

func (r *Repo) GetDB() *sql.DB {
	return r.db
}

func (r *Repo) migrate(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS latest_prices (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  provider TEXT NOT NULL,
  symbol TEXT NOT NULL,
  price REAL NOT NULL,
  change REAL NOT NULL,
  change_percent REAL NOT NULL,
  ts_ms INTEGER NOT NULL,
  updated_at INTEGER NOT NULL,
  UNIQUE(provider, symbol)
);
CREATE INDEX IF NOT EXISTS idx_latest_symbol ON latest_prices(symbol);

CREATE TABLE IF NOT EXISTS connection_events (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  ts_ms INTEGER NOT NULL,
  provider TEXT NOT NULL,
  status TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_events_ts ON connection_events(ts_ms);
CREATE INDEX IF NOT EXISTS idx_events_status ON connection_events(status);
`)
	return err
}

func (r *Repo) UpsertLatestPrice(ctx context.Context, provider, symbol string, price, change, changePercent float64, ts int64) error {
	if price <= 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO latest_prices(provider, symbol, price, change, change_percent, ts_ms, updated_at)
		VALUES(?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(provider, symbol) DO UPDATE SET
		price=excluded.price, change=excluded.change, change_percent=excluded.change_percent,
		ts_ms=excluded.ts_ms, updated_at=excluded.updated_at
	`, provider, symbol, price, change, changePercent, ts, time.Now().UnixMilli())
	return err
}

func (r *Repo) GetLatestPrice(ctx context.Context, provider, symbol string) (lp port.LatestPrice, err error) {
	err = r.db.QueryRowContext(ctx, `
		SELECT provider, symbol, price, change, change_percent, ts_ms
		FROM latest_prices WHERE provider=? AND symbol=?
	`, provider, symbol).Scan(&lp.Provider, &lp.Symbol, &lp.Price, &lp.Change, &lp.ChangePercent, &lp.Ts)
	return
}

// ListLatestPrices 所有 provider 的最新价格，按 symbol 排序
func (r *Repo) ListLatestPrices(ctx context.Context) ([]port.LatestPrice, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT provider, symbol, price, change, change_percent, ts_ms
		FROM latest_prices ORDER BY symbol, provider
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []port.LatestPrice
	for rows.Next() {
		var lp port.LatestPrice
		if err := rows.Scan(&lp.Provider, &lp.Symbol, &lp.Price, &lp.Change, &lp.ChangePercent, &lp.Ts); err != nil {
			return nil, err
		}
		out = append(out, lp)
	}
	return out, rows.Err()
}

func (r *Repo) InsertStatusEvent(ctx context.Context, ts int64, provider string, status port.Status) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO connection_events(ts_ms, provider, status) VALUES(?, ?, ?)`, ts, provider, string(status))
	return err
}

var _ port.Repository = (*Repo)(nil)
