package application

// Provider name constants
const (
	ProviderMassive    = "massive"
	ProviderFinnhub    = "finnhub"
	ProviderRelay      = "relay"
	ProviderSimulation = "simulation"
)

// DefaultSymbols 默认跟踪的品种：个股、指数 ETF、贵金属、微型期货
var DefaultSymbols = []string{
	"AAPL", "MSFT", "GOOGL", "AMZN", "META", "TSLA", "NVDA", "AMD", "SMCI", "PLTR",
	"SPY", "QQQ", "DIA", "IWM", "VIX", "GLD", "SLV", "GDX",
	"MNQ", "MES", "MGC", "SIL", "M2K",
}

// DefaultReferencePrices 控制台展示用的参考（开盘）价，模拟模式下也作为初始价格
var DefaultReferencePrices = map[string]float64{
	"AAPL": 181, "MSFT": 405, "GOOGL": 153, "AMZN": 174, "META": 485,
	"TSLA": 175, "NVDA": 880, "AMD": 182, "SMCI": 1050, "PLTR": 24,
	"SPY": 512, "QQQ": 435, "DIA": 389, "IWM": 207, "VIX": 15,
	"GLD": 198, "SLV": 23, "GDX": 29.8,
	"MNQ": 18150, "MES": 5100, "MGC": 2170, "SIL": 24.2, "M2K": 2060,
}
