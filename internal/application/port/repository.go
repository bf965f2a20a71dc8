package port

import "context"

// Repository 最新价格镜像：每个 (provider, symbol) 只保留一行，另记录连接状态变化
type Repository interface {
	UpsertLatestPrice(ctx context.Context, provider, symbol string, price, change, changePercent float64, ts int64) error
	InsertStatusEvent(ctx context.Context, ts int64, provider string, status Status) error
	Close() error
}

// StatusEvent 一次连接状态变化
type StatusEvent struct {
	Ts       int64  `json:"ts"`
	Provider string `json:"provider"`
	Status   Status `json:"status"`
}

// LatestPrice 镜像中一个 (provider, symbol) 的最新价格
type LatestPrice struct {
	Provider      string  `json:"provider"`
	Symbol        string  `json:"symbol"`
	Price         float64 `json:"price"`
	Change        float64 `json:"change"`
	ChangePercent float64 `json:"changePercent"`
	Ts            int64   `json:"ts"`
}
