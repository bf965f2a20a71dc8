package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"tickfeed/internal/application/port"
)

// 需要真实数据库：TICKFEED_TEST_PG_DSN=postgres://... go test ./...
func newTestRepo(t *testing.T) *Repo {
	t.Helper()
	dsn := os.Getenv("TICKFEED_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("TICKFEED_TEST_PG_DSN not set")
	}
	repo, err := New(dsn)
	if err != nil {
		t.Fatalf("failed to create repo: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })
	return repo
}

func TestPostgresRepoUpsertAndEvents(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()
	symbol := "T" + time.Now().Format("150405")

	if err := repo.UpsertLatestPrice(ctx, "massive", symbol, 10, 0, 0, 1); err != nil {
		t.Fatalf("UpsertLatestPrice failed: %v", err)
	}
	if err := repo.UpsertLatestPrice(ctx, "massive", symbol, 11, 1, 10, 2); err != nil {
		t.Fatalf("UpsertLatestPrice failed: %v", err)
	}

	var price float64
	var ts int64
	err := repo.db.QueryRowContext(ctx, `SELECT price, ts_ms FROM latest_prices WHERE provider=$1 AND symbol=$2`, "massive", symbol).Scan(&price, &ts)
	if err != nil {
		t.Fatalf("query failed: %v", err)
	}
	if price != 11 || ts != 2 {
		t.Errorf("expected upserted row, got price=%v ts=%v", price, ts)
	}

	if err := repo.InsertStatusEvent(ctx, time.Now().UnixMilli(), "massive", port.StatusConnected); err != nil {
		t.Fatalf("InsertStatusEvent failed: %v", err)
	}
}

func TestPostgresRepoSkipsNonPositivePrice(t *testing.T) {
	repo := newTestRepo(t)
	if err := repo.UpsertLatestPrice(context.Background(), "massive", "ZERO", 0, 0, 0, 1); err != nil {
		t.Errorf("zero price must be ignored without error, got %v", err)
	}
}
