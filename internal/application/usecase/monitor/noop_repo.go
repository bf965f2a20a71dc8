package monitor

import (
	"context"

	"tickfeed/internal/application/port"
)

type noopRepo struct{}

// NewNoopRepo 未启用任何存储时使用
func NewNoopRepo() port.Repository { return &noopRepo{} }

func (n *noopRepo) UpsertLatestPrice(ctx context.Context, provider, symbol string, price, change, changePercent float64, ts int64) error {
	return nil
}
func (n *noopRepo) InsertStatusEvent(ctx context.Context, ts int64, provider string, status port.Status) error {
	return nil
}
func (n *noopRepo) Close() error { return nil }
