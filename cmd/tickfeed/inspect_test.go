package main

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	redisclient "github.com/redis/go-redis/v9"

	"tickfeed/internal/infrastructure/config"
	redisrepo "tickfeed/internal/infrastructure/storage/redis"
	sqliterepo "tickfeed/internal/infrastructure/storage/sqlite"
)

func TestSQLitePrices(t *testing.T) {
	cfg := config.Default()
	cfg.SQLite.Path = filepath.Join(t.TempDir(), "prices.db")

	repo, err := sqliterepo.New(cfg.SQLite.Path)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	ctx := context.Background()
	_ = repo.UpsertLatestPrice(ctx, "massive", "AAPL", 181, 1, 0.5, 1700000000000)
	_ = repo.UpsertLatestPrice(ctx, "finnhub", "AAPL", 181.2, 0, 0, 1700000000000)
	_ = repo.UpsertLatestPrice(ctx, "massive", "MSFT", 405, 0, 0, 1700000000000)
	_ = repo.Close()

	all, err := sqlitePrices(ctx, cfg, "", "")
	if err != nil || len(all) != 3 {
		t.Fatalf("expected 3 rows, got %d (%v)", len(all), err)
	}

	bySymbol, _ := sqlitePrices(ctx, cfg, "", "AAPL")
	if len(bySymbol) != 2 {
		t.Errorf("expected 2 AAPL rows, got %d", len(bySymbol))
	}

	one, err := sqlitePrices(ctx, cfg, "massive", "MSFT")
	if err != nil || len(one) != 1 || one[0].Price != 405 {
		t.Errorf("unexpected single lookup %+v (%v)", one, err)
	}

	missing, err := sqlitePrices(ctx, cfg, "finnhub", "MSFT")
	if err != nil || len(missing) != 0 {
		t.Errorf("missing row should be empty without error, got %+v (%v)", missing, err)
	}
}

func TestRedisPrices(t *testing.T) {
	mr := miniredis.RunT(t)
	cfg := config.Default()
	cfg.Redis.Addr = mr.Addr()

	rdb := redisclient.NewClient(&redisclient.Options{Addr: mr.Addr()})
	defer rdb.Close()
	seed := redisrepo.New(rdb, cfg.Redis.Prefix, time.Minute, cfg.Redis.Channel)

	ctx := context.Background()
	if err := seed.UpsertLatestPrice(ctx, "finnhub", "NVDA", 880, 4, 0.46, 1700000000000); err != nil {
		t.Fatalf("UpsertLatestPrice failed: %v", err)
	}

	got, err := redisPrices(ctx, cfg, "finnhub", "NVDA")
	if err != nil || len(got) != 1 || got[0].Price != 880 {
		t.Errorf("unexpected lookup %+v (%v)", got, err)
	}

	if _, err := redisPrices(ctx, cfg, "", "NVDA"); err == nil {
		t.Error("expected error without provider")
	}
}
