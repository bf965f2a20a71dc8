package relay

import (
	"tickfeed/internal/application"
	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/pricefeed"
	"tickfeed/internal/infrastructure/provider"
)

// Dialect 中继默认转发归一化后的消息 {"type":"trade","symbol":..,"price":..,"change":..,"changePercent":..}
var Dialect = provider.Dialect{
	TypeKeys:          []string{"type", "event"},
	TradeTypes:        []string{"trade", "price"},
	QuoteTypes:        []string{"quote"},
	BatchKeys:         []string{"trades", "data"},
	SymbolKeys:        []string{"symbol", "s"},
	PriceKeys:         []string{"price", "p", "last"},
	ChangeKeys:        []string{"change", "d"},
	ChangePercentKeys: []string{"changePercent", "dp"},
	TimestampKeys:     []string{"timestamp", "ts", "t"},
	BidKeys:           []string{"bid"},
	AskKeys:           []string{"ask"},
}

// Descriptor 托管中继：没有默认地址，凭证可选，连接成功后状态为 cloud_active
func Descriptor() provider.Config {
	return provider.Config{
		Name:          application.ProviderRelay,
		Managed:       true,
		AuthMode:      provider.AuthMessage,
		SubscribeType: "subscribe",
		Dialect:       Dialect,
	}
}

func New(s provider.Settings) *provider.WSProvider {
	return provider.NewWSProvider(Descriptor().Apply(s))
}

func init() {
	pricefeed.Register(application.ProviderRelay, func(s provider.Settings) port.Provider {
		return New(s)
	})
}
