package simulation

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"tickfeed/internal/application"
	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/provider"
)

// Rand 随机源，测试中可替换为确定性实现
type Rand interface {
	Float64() float64
	IntN(n int) int
}

type globalRand struct{}

func (globalRand) Float64() float64 { return rand.Float64() }
func (globalRand) IntN(n int) int   { return rand.IntN(n) }

// Config 模拟行情参数
type Config struct {
	Interval time.Duration // 每个 tick 的间隔
	MaxTick  float64       // tick 取值范围 [-MaxTick, MaxTick]
	Rand     Rand
}

var DefaultConfig = Config{
	Interval: time.Second,
	MaxTick:  0.0005,
}

// Simulator 合成行情源。每个间隔随机挑一个品种，推送一个相对扰动 tick，
// 不携带绝对价格，消费者用 last*(1+tick) 计算新价格
type Simulator struct {
	cfg Config

	mu sync.Mutex // guards cfg.Rand
}

func New(cfg Config) *Simulator {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultConfig.Interval
	}
	if cfg.MaxTick <= 0 {
		cfg.MaxTick = DefaultConfig.MaxTick
	}
	if cfg.Rand == nil {
		cfg.Rand = globalRand{}
	}
	return &Simulator{cfg: cfg}
}

func (s *Simulator) Name() string             { return application.ProviderSimulation }
func (s *Simulator) RequiresCredential() bool { return false }
func (s *Simulator) HasCredential() bool      { return true }
func (s *Simulator) Managed() bool            { return false }

func (s *Simulator) Connect(ctx context.Context) (port.Conn, error) {
	return &tickConn{
		out:  make(chan []byte, 16),
		done: make(chan struct{}),
	}, nil
}

// Subscribe 启动 tick 生成，直到连接关闭
func (s *Simulator) Subscribe(ctx context.Context, conn port.Conn, symbols []string) error {
	c, ok := conn.(*tickConn)
	if !ok {
		return fmt.Errorf("simulation: unexpected conn %T", conn)
	}
	if len(symbols) == 0 {
		return errors.New("simulation: symbols empty")
	}
	syms := append([]string(nil), symbols...)
	go s.generate(c, syms)
	return nil
}

func (s *Simulator) generate(c *tickConn, symbols []string) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			symbol, tick := s.next(symbols)
			b, err := json.Marshal(tickMsg{Type: msgType, Symbol: symbol, Tick: tick})
			if err != nil {
				continue
			}
			select {
			case c.out <- b:
			case <-c.done:
				return
			}
		}
	}
}

// next 随机挑选一个品种和一个 [-MaxTick, MaxTick] 内均匀分布的 tick
func (s *Simulator) next(symbols []string) (string, float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	symbol := symbols[s.cfg.Rand.IntN(len(symbols))]
	tick := (s.cfg.Rand.Float64()*2 - 1) * s.cfg.MaxTick
	return symbol, tick
}

const msgType = "sim"

type tickMsg struct {
	Type   string  `json:"type"`
	Symbol string  `json:"symbol"`
	Tick   float64 `json:"tick"`
}

func (s *Simulator) Parse(raw []byte) ([]port.Quote, error) {
	var m tickMsg
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrMalformed, err)
	}
	if m.Type != msgType || m.Symbol == "" {
		return nil, provider.ErrMalformed
	}
	return []port.Quote{{Symbol: m.Symbol, Synthetic: true, Tick: m.Tick}}, nil
}

// tickConn 进程内的 port.Conn，消息来自 generate
type tickConn struct {
	out       chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func (c *tickConn) ReadMessage(ctx context.Context) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, errClosed
	case b := <-c.out:
		return b, nil
	}
}

func (c *tickConn) WriteJSON(any) error {
	select {
	case <-c.done:
		return errClosed
	default:
		return nil
	}
}

func (c *tickConn) Close() error {
	c.closeOnce.Do(func() { close(c.done) })
	return nil
}

var errClosed = errors.New("simulation closed")

var (
	_ port.Provider = (*Simulator)(nil)
	_ port.Conn     = (*tickConn)(nil)
)
