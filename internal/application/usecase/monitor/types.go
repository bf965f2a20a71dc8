package monitor

import (
	"tickfeed/internal/application/port"
	"tickfeed/internal/application/stream"
)

type Repository = port.Repository

// Stream 监控服务所需的行情流接口，由 *stream.Manager 实现
type Stream interface {
	Subscribe(h port.UpdateHandler) *stream.Subscription
	Unsubscribe(sub *stream.Subscription)
	OnStatusChange(h port.StatusHandler)
	GetCachedPrice(symbol string) (port.PriceEntry, bool)
	GetAllCachedPrices() map[string]port.PriceEntry
	CurrentProvider() string
}

var _ Stream = (*stream.Manager)(nil)
