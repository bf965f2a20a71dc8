package stream

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"tickfeed/internal/application/port"
)

var errMalformed = errors.New("malformed")

type fakeConn struct {
	msgs      chan []byte
	done      chan struct{}
	closeOnce sync.Once
	closed    atomic.Bool
	// leaky 为 true 时 Close 不会中断读取，用于模拟旧连接的迟到消息
	leaky bool
}

func newFakeConn(leaky bool) *fakeConn {
	return &fakeConn{msgs: make(chan []byte, 64), done: make(chan struct{}), leaky: leaky}
}

func (c *fakeConn) ReadMessage(ctx context.Context) ([]byte, error) {
	done := c.done
	if c.leaky {
		done = nil
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
		return nil, errors.New("closed")
	case b := <-c.msgs:
		return b, nil
	}
}

func (c *fakeConn) WriteJSON(any) error { return nil }

func (c *fakeConn) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		close(c.done)
	})
	return nil
}

// fail 模拟服务端断开
func (c *fakeConn) fail() { _ = c.Close() }

func (c *fakeConn) push(v any) {
	b, _ := json.Marshal(v)
	c.msgs <- b
}

type wireQuote struct {
	Symbol string  `json:"symbol"`
	Price  float64 `json:"price"`
	Tick   float64 `json:"tick,omitempty"`
}

type fakeProvider struct {
	name      string
	needsKey  bool
	hasKey    bool
	managed   bool
	synthetic bool
	leaky     bool

	mu       sync.Mutex
	failN    int // 前 failN 次连接失败，-1 表示永远失败
	attempts int
	conns    chan *fakeConn
	log      *attemptLog
}

type attemptLog struct {
	mu    sync.Mutex
	names []string
}

func (l *attemptLog) add(name string) {
	l.mu.Lock()
	l.names = append(l.names, name)
	l.mu.Unlock()
}

func (l *attemptLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.names...)
}

func newFakeProvider(name string, hasKey bool) *fakeProvider {
	return &fakeProvider{name: name, needsKey: true, hasKey: hasKey, conns: make(chan *fakeConn, 64)}
}

func newFakeSimulator() *fakeProvider {
	return &fakeProvider{name: "simulation", hasKey: true, synthetic: true, conns: make(chan *fakeConn, 64)}
}

func (p *fakeProvider) Name() string             { return p.name }
func (p *fakeProvider) RequiresCredential() bool { return p.needsKey }
func (p *fakeProvider) HasCredential() bool      { return p.hasKey }
func (p *fakeProvider) Managed() bool            { return p.managed }

func (p *fakeProvider) Connect(ctx context.Context) (port.Conn, error) {
	p.mu.Lock()
	p.attempts++
	n := p.attempts
	fail := p.failN < 0 || n <= p.failN
	log := p.log
	p.mu.Unlock()

	if log != nil {
		log.add(p.name)
	}
	if fail {
		return nil, errors.New("dial refused")
	}
	c := newFakeConn(p.leaky)
	p.conns <- c
	return c, nil
}

func (p *fakeProvider) Subscribe(ctx context.Context, conn port.Conn, symbols []string) error {
	return nil
}

func (p *fakeProvider) Parse(raw []byte) ([]port.Quote, error) {
	var w wireQuote
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, errMalformed
	}
	if p.synthetic {
		return []port.Quote{{Symbol: w.Symbol, Synthetic: true, Tick: w.Tick}}, nil
	}
	return []port.Quote{{Symbol: w.Symbol, Price: w.Price}}, nil
}

func (p *fakeProvider) attemptCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.attempts
}

func (p *fakeProvider) nextConn(t *testing.T) *fakeConn {
	t.Helper()
	select {
	case c := <-p.conns:
		return c
	case <-time.After(2 * time.Second):
		t.Fatalf("%s: no connection opened", p.name)
		return nil
	}
}

type statusRecorder struct {
	mu   sync.Mutex
	seen []port.Status
}

func (r *statusRecorder) handle(s port.Status) {
	r.mu.Lock()
	r.seen = append(r.seen, s)
	r.mu.Unlock()
}

func (r *statusRecorder) snapshot() []port.Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]port.Status(nil), r.seen...)
}

func (r *statusRecorder) has(s port.Status) bool {
	for _, v := range r.snapshot() {
		if v == s {
			return true
		}
	}
	return false
}

func (r *statusRecorder) last() port.Status {
	seen := r.snapshot()
	if len(seen) == 0 {
		return ""
	}
	return seen[len(seen)-1]
}

type update struct {
	symbol string
	price  float64
	tick   float64
}

type updateRecorder struct {
	mu  sync.Mutex
	got []update
}

func (r *updateRecorder) handle(symbol string, price, tick float64) {
	r.mu.Lock()
	r.got = append(r.got, update{symbol, price, tick})
	r.mu.Unlock()
}

func (r *updateRecorder) snapshot() []update {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]update(nil), r.got...)
}

func (r *updateRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

var testOptions = Options{
	Symbols:              []string{"AAPL", "MSFT"},
	MaxReconnectAttempts: 10,
	ReconnectDelay:       2 * time.Millisecond,
	StallThreshold:       time.Hour,
	StallCheckInterval:   time.Hour,
	DialTimeout:          time.Second,
}

func startManager(t *testing.T, opts Options, sim port.Provider, providers ...port.Provider) (*Manager, *statusRecorder) {
	t.Helper()
	m := NewManager(Deps{Providers: providers, Simulator: sim, Options: opts})
	rec := &statusRecorder{}
	m.OnStatusChange(rec.handle)
	m.Start(context.Background())
	t.Cleanup(m.Stop)
	return m, rec
}
