package massive

import (
	"tickfeed/internal/application"
	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/pricefeed"
	"tickfeed/internal/infrastructure/provider"
)

// DefaultURL Massive 股票实时流
const DefaultURL = "wss://socket.massive.com/stocks"

// Dialect 成交消息带 type/event 判别，或以 trades 数组批量推送；change 字段可选
var Dialect = provider.Dialect{
	TypeKeys:          []string{"type", "event", "ev"},
	TradeTypes:        []string{"trade", "T"},
	QuoteTypes:        []string{"quote", "Q"},
	BatchKeys:         []string{"trades"},
	SymbolKeys:        []string{"symbol", "s", "sym"},
	PriceKeys:         []string{"price", "p", "last"},
	ChangeKeys:        []string{"change", "d"},
	ChangePercentKeys: []string{"changePercent", "dp"},
	TimestampKeys:     []string{"timestamp", "t"},
	BidKeys:           []string{"bid", "bp"},
	AskKeys:           []string{"ask", "ap"},
}

// Descriptor Massive 的静态描述：需要凭证，连接后以 auth 消息鉴权
func Descriptor() provider.Config {
	return provider.Config{
		Name:              application.ProviderMassive,
		URL:               DefaultURL,
		RequireCredential: true,
		AuthMode:          provider.AuthMessage,
		AuthType:          "auth",
		AuthKeyField:      "apiKey",
		SubscribeType:     "subscribe",
		Dialect:           Dialect,
	}
}

func New(s provider.Settings) *provider.WSProvider {
	return provider.NewWSProvider(Descriptor().Apply(s))
}

func init() {
	pricefeed.Register(application.ProviderMassive, func(s provider.Settings) port.Provider {
		return New(s)
	})
}
