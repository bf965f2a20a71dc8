package finnhub

import (
	"tickfeed/internal/application"
	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/pricefeed"
	"tickfeed/internal/infrastructure/provider"
)

const DefaultURL = "wss://ws.finnhub.io"

// Dialect {"type":"trade","data":[{"s":"AAPL","p":181.2,"t":1700000000000,"v":100}]}
// 心跳 {"type":"ping"} 被视为控制消息。不带 change 字段，由缓存推导
var Dialect = provider.Dialect{
	TypeKeys:      []string{"type"},
	TradeTypes:    []string{"trade"},
	BatchKeys:     []string{"data"},
	SymbolKeys:    []string{"s"},
	PriceKeys:     []string{"p"},
	TimestampKeys: []string{"t"},
}

func Descriptor() provider.Config {
	return provider.Config{
		Name:              application.ProviderFinnhub,
		URL:               DefaultURL,
		RequireCredential: true,
		AuthMode:          provider.AuthQuery,
		TokenParam:        "token",
		SubscribeType:     "subscribe",
		Dialect:           Dialect,
	}
}

func New(s provider.Settings) *provider.WSProvider {
	return provider.NewWSProvider(Descriptor().Apply(s))
}

func init() {
	pricefeed.Register(application.ProviderFinnhub, func(s provider.Settings) port.Provider {
		return New(s)
	})
}
