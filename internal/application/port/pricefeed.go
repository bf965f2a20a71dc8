package port

import (
	"context"
	"time"
)

// Quote 归一化后的行情观测，所有 provider 的消息最终都转换成这个形状
type Quote struct {
	Symbol        string  // "AAPL"
	Price         float64 // 绝对价格，> 0 才有效
	Change        float64 // 相对参考价的绝对变化
	ChangePercent float64
	HasChange     bool  // provider 自带 change 字段；否则由缓存推导
	Ts            int64 // unix ms，0 表示由接收时间补齐

	// Synthetic 为 true 时 Price 恒为 0，Tick 是相对上一价格的比例扰动
	Synthetic bool
	Tick      float64
}

// PriceEntry 价格缓存中的一条记录
type PriceEntry struct {
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Timestamp     time.Time `json:"timestamp"`
}

// Conn 一个已经建立的上游传输连接
type Conn interface {
	// ReadMessage 阻塞直到收到一条消息、连接关闭或 ctx 结束
	ReadMessage(ctx context.Context) ([]byte, error)
	WriteJSON(v any) error
	Close() error
}

// Provider 上游行情源适配器：connect / send-subscribe / parse / credential
type Provider interface {
	Name() string
	// RequiresCredential 为 true 且 HasCredential 为 false 时，该 provider 永远不会被尝试
	RequiresCredential() bool
	HasCredential() bool
	// Managed 表示经由托管中继而不是直连上游（连接成功后状态为 cloud_active）
	Managed() bool

	Connect(ctx context.Context) (Conn, error)
	// Subscribe 在连接建立后发送鉴权与订阅消息
	Subscribe(ctx context.Context, conn Conn, symbols []string) error
	// Parse 将一条原始消息归一化；无法解析时返回 error，消息被丢弃
	Parse(raw []byte) ([]Quote, error)
}

// UpdateHandler 订阅者回调。price == 0 时 tick 为模拟扰动，消费者应自行计算 last*(1+tick)
type UpdateHandler func(symbol string, price, tick float64)
