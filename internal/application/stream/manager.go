package stream

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"tickfeed/internal/application/port"
)

// Deps 构造 Manager 所需的依赖
type Deps struct {
	// Providers 实时行情源，按优先级排列
	Providers []port.Provider
	// Simulator 没有可用实时连接时的合成行情源
	Simulator port.Provider
	Metrics   port.Metrics
	Options   Options
}

type session struct {
	id       string
	gen      uint64
	provider port.Provider
	conn     port.Conn
}

// Manager 行情流管理器
//
// 同一时刻最多持有一个上游连接；连接失败时按固定退避在已配置凭证的 provider
// 之间轮换重连，超过上限后退回模拟行情，直到再次调用 ConnectToLiveProvider。
// 所有状态变更都在单个事件循环 goroutine 中串行执行，拨号与读消息的 goroutine
// 只投递事件；每个连接和定时器都带有创建时的 generation，过期事件直接丢弃。
type Manager struct {
	opts      Options
	providers []port.Provider
	sim       port.Provider
	metrics   port.Metrics
	backoff   backoff.BackOff // 固定间隔，次数上限由 failures 控制
	now       func() time.Time

	cache    *PriceCache
	subs     *subscriberSet
	statuses statusHandlers

	events chan func()
	wake   chan struct{}
	done   chan struct{}

	lifeMu  sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	stopped bool

	cmdMu      sync.Mutex
	connectReq *string
	feedReq    bool

	stateMu  sync.RWMutex
	status   port.Status
	provider string

	// 以下字段只在事件循环中访问
	gen        uint64
	current    port.Provider
	active     *session
	connecting bool
	failures   int
	lastMsg    time.Time
	retry      *time.Timer
	simGen     uint64
	simConn    port.Conn
}

func NewManager(deps Deps) *Manager {
	opts := deps.Options.withDefaults()
	metrics := deps.Metrics
	if metrics == nil {
		metrics = port.NoopMetrics{}
	}
	providers := make([]port.Provider, 0, len(deps.Providers))
	for _, p := range deps.Providers {
		if p != nil {
			providers = append(providers, p)
		}
	}
	return &Manager{
		opts:      opts,
		providers: providers,
		sim:       deps.Simulator,
		metrics:   metrics,
		backoff:   backoff.NewConstantBackOff(opts.ReconnectDelay),
		now:       time.Now,
		cache:     NewPriceCache(),
		subs:      newSubscriberSet(),
		events:    make(chan func(), 1024),
		wake:      make(chan struct{}, 1),
		done:      make(chan struct{}),
		status:    port.StatusDisconnected,
	}
}

// Start 启动事件循环。Stop 之后再次调用无效
func (m *Manager) Start(ctx context.Context) {
	m.lifeMu.Lock()
	defer m.lifeMu.Unlock()
	if m.cancel != nil || m.stopped {
		return
	}
	m.ctx, m.cancel = context.WithCancel(ctx)
	go m.run(m.ctx)
}

// Stop 关闭当前连接、模拟行情和所有定时器，并等待事件循环退出
func (m *Manager) Stop() {
	m.lifeMu.Lock()
	cancel := m.cancel
	m.stopped = true
	m.lifeMu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-m.done
}

// OnStatusChange 注册状态回调，回调在事件循环中同步执行
func (m *Manager) OnStatusChange(h port.StatusHandler) {
	m.statuses.add(h)
}

// ConnectToLiveProvider 重置重连计数并重新选择 provider。异步执行，结果通过状态回调通知
func (m *Manager) ConnectToLiveProvider(preferred string) {
	m.cmdMu.Lock()
	m.connectReq = &preferred
	m.cmdMu.Unlock()
	m.signal()
}

// Subscribe 注册行情回调。当前既没有连接也没有在拨号中时启动模拟行情。
// 每次调用返回独立的句柄：同一个函数注册两次会在每次观测时被调用两次，
// 需要分别 Unsubscribe
func (m *Manager) Subscribe(h port.UpdateHandler) *Subscription {
	if h == nil {
		return nil
	}
	sub := m.subs.add(h)
	m.cmdMu.Lock()
	m.feedReq = true
	m.cmdMu.Unlock()
	m.signal()
	return sub
}

// Unsubscribe 移除回调，不存在时无操作
func (m *Manager) Unsubscribe(sub *Subscription) {
	if sub == nil || sub.owner != m.subs {
		return
	}
	sub.Cancel()
}

func (m *Manager) GetCachedPrice(symbol string) (port.PriceEntry, bool) {
	return m.cache.Get(symbol)
}

func (m *Manager) GetAllCachedPrices() map[string]port.PriceEntry {
	return m.cache.All()
}

func (m *Manager) Status() port.Status {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.status
}

// CurrentProvider 当前选用的 provider 名称，模拟时为 simulator 的名称
func (m *Manager) CurrentProvider() string {
	m.stateMu.RLock()
	defer m.stateMu.RUnlock()
	return m.provider
}

func (m *Manager) signal() {
	select {
	case m.wake <- struct{}{}:
	default:
	}
}

// post 投递事件到循环；循环已退出时返回 false
func (m *Manager) post(fn func()) bool {
	select {
	case m.events <- fn:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)

	stall := time.NewTicker(m.opts.StallCheckInterval)
	defer stall.Stop()

	for {
		select {
		case <-ctx.Done():
			m.teardown()
			m.stopSimulation()
			log.Info().Msg("stream manager stopped")
			return
		case fn := <-m.events:
			fn()
		case <-m.wake:
			m.drainCommands()
		case <-stall.C:
			m.checkStall()
		}
	}
}

func (m *Manager) drainCommands() {
	m.cmdMu.Lock()
	req := m.connectReq
	feed := m.feedReq
	m.connectReq = nil
	m.feedReq = false
	m.cmdMu.Unlock()

	if req != nil {
		m.connect(*req)
	}
	if feed {
		m.ensureFeed()
	}
}

func (m *Manager) connect(preferred string) {
	m.failures = 0

	p := m.selectProvider(preferred)
	if p == nil {
		log.Warn().Str("preferred", preferred).Msg("no credentialed provider, starting simulation")
		m.teardown()
		m.current = nil
		m.setStatus(port.StatusDisconnected)
		m.startSimulation()
		return
	}
	m.open(p)
}

func usable(p port.Provider) bool {
	return !p.RequiresCredential() || p.HasCredential()
}

func (m *Manager) usableProviders() []port.Provider {
	out := make([]port.Provider, 0, len(m.providers))
	for _, p := range m.providers {
		if usable(p) {
			out = append(out, p)
		}
	}
	return out
}

func (m *Manager) selectProvider(preferred string) port.Provider {
	candidates := m.usableProviders()
	for _, p := range candidates {
		if p.Name() == preferred {
			return p
		}
	}
	if len(candidates) == 0 {
		return nil
	}
	return candidates[0]
}

// nextProvider 轮换到下一个可用 provider，避免反复冲击同一个故障端点
func (m *Manager) nextProvider() port.Provider {
	candidates := m.usableProviders()
	if len(candidates) == 0 {
		return nil
	}
	for i, p := range candidates {
		if p == m.current {
			return candidates[(i+1)%len(candidates)]
		}
	}
	return candidates[0]
}

// teardown 取消待执行的重连定时器并关闭当前连接，使之前的所有事件失效
func (m *Manager) teardown() {
	m.gen++
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
	if m.active != nil {
		_ = m.active.conn.Close()
		m.active = nil
	}
	m.connecting = false
}

func (m *Manager) open(p port.Provider) {
	m.teardown()
	gen := m.gen
	m.current = p
	m.connecting = true
	m.setProvider(p.Name())
	m.setStatus(port.StatusConnecting)

	id := uuid.NewString()
	log.Info().Str("provider", p.Name()).Str("session", id).Int("attempt", m.failures+1).Msg("ws connecting")

	ctx := m.ctx
	timeout := m.opts.DialTimeout
	symbols := append([]string(nil), m.opts.Symbols...)
	go func() {
		cctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		conn, err := p.Connect(cctx)
		if err == nil {
			if err = p.Subscribe(cctx, conn, symbols); err != nil {
				_ = conn.Close()
			}
		}
		if err != nil {
			m.post(func() { m.onFailure(gen, p, err) })
			return
		}
		if !m.post(func() { m.onOpen(gen, id, p, conn) }) {
			_ = conn.Close()
		}
	}()
}

func (m *Manager) onOpen(gen uint64, id string, p port.Provider, conn port.Conn) {
	if gen != m.gen {
		_ = conn.Close()
		m.metrics.IncOrphaned(p.Name())
		return
	}

	s := &session{id: id, gen: gen, provider: p, conn: conn}
	m.active = s
	m.connecting = false
	m.failures = 0
	m.lastMsg = m.now()
	m.stopSimulation()
	m.setProvider(p.Name())

	log.Info().Str("provider", p.Name()).Str("session", id).Msg("ws connected & subscribed")
	if p.Managed() {
		m.setStatus(port.StatusCloudActive)
	} else {
		m.setStatus(port.StatusConnected)
	}

	go m.readLoop(s)
}

func (m *Manager) readLoop(s *session) {
	for {
		raw, err := s.conn.ReadMessage(m.ctx)
		if err != nil {
			m.post(func() { m.onFailure(s.gen, s.provider, err) })
			return
		}
		if !m.post(func() { m.onMessage(s, raw) }) {
			return
		}
	}
}

func (m *Manager) onMessage(s *session, raw []byte) {
	name := s.provider.Name()
	if s.gen != m.gen || m.active != s {
		m.metrics.IncOrphaned(name)
		return
	}
	m.lastMsg = m.now()
	m.metrics.IncMessages(name)

	quotes, err := s.provider.Parse(raw)
	if err != nil {
		m.metrics.IncDropped(name, "malformed")
		log.Debug().Str("provider", name).Err(err).Msg("message dropped")
		return
	}
	for _, q := range quotes {
		m.observe(name, q)
	}
}

func (m *Manager) observe(provider string, q port.Quote) {
	if q.Synthetic || q.Symbol == "" || !(q.Price > 0) || math.IsInf(q.Price, 1) {
		m.metrics.IncDropped(provider, "invalid_quote")
		return
	}
	m.cache.Apply(q, m.now())
	m.fanout(q.Symbol, q.Price, 0)
}

func (m *Manager) onFailure(gen uint64, p port.Provider, err error) {
	if gen != m.gen {
		return
	}
	log.Error().Str("provider", p.Name()).Err(err).Msg("ws failed")
	m.teardown()
	m.setStatus(port.StatusError)
	m.scheduleReconnect()
}

func (m *Manager) checkStall() {
	s := m.active
	if s == nil || !m.Status().Live() {
		return
	}
	silence := m.now().Sub(m.lastMsg)
	if silence <= m.opts.StallThreshold {
		return
	}
	log.Warn().Str("provider", s.provider.Name()).Str("session", s.id).Dur("silence", silence).Msg("ws silent, reconnecting")
	m.metrics.IncStalls(s.provider.Name())
	m.teardown()
	m.setStatus(port.StatusSilent)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.failures++
	next := m.nextProvider()
	if m.failures >= m.opts.MaxReconnectAttempts || next == nil {
		log.Warn().Int("failures", m.failures).Msg("reconnect attempts exhausted, falling back to simulation")
		m.current = nil
		m.setStatus(port.StatusDisconnected)
		m.startSimulation()
		return
	}

	delay := m.backoff.NextBackOff()
	m.metrics.IncReconnects(next.Name())
	m.setStatus(port.StatusReconnecting)
	log.Info().Str("provider", next.Name()).Int("failures", m.failures).Dur("delay", delay).Msg("reconnect scheduled")

	gen := m.gen
	m.retry = time.AfterFunc(delay, func() {
		m.post(func() {
			if gen != m.gen {
				return
			}
			m.retry = nil
			m.open(next)
		})
	})
}

// ensureFeed 有订阅者但既无连接、也不在拨号中时启动模拟行情。
// 退避等待期间同样启动，状态保持 reconnecting，连接成功后由 onOpen 停止
func (m *Manager) ensureFeed() {
	if m.active != nil || m.connecting || m.simConn != nil {
		return
	}
	if m.subs.len() == 0 {
		return
	}
	m.startSimulation()
	if m.simConn != nil && m.retry == nil {
		m.setStatus(port.StatusDisconnected)
	}
}

func (m *Manager) startSimulation() {
	if m.sim == nil || m.simConn != nil || m.active != nil {
		return
	}
	conn, err := m.sim.Connect(m.ctx)
	if err == nil {
		if err = m.sim.Subscribe(m.ctx, conn, m.opts.Symbols); err != nil {
			_ = conn.Close()
		}
	}
	if err != nil {
		log.Error().Str("provider", m.sim.Name()).Err(err).Msg("simulation start failed")
		return
	}

	m.simGen++
	gen := m.simGen
	m.simConn = conn
	m.setProvider(m.sim.Name())
	log.Info().Int("symbols", len(m.opts.Symbols)).Msg("simulation started")

	go func() {
		for {
			raw, err := conn.ReadMessage(m.ctx)
			if err != nil {
				return
			}
			if !m.post(func() { m.onSimMessage(gen, raw) }) {
				return
			}
		}
	}()
}

func (m *Manager) stopSimulation() {
	if m.simConn == nil {
		return
	}
	m.simGen++
	_ = m.simConn.Close()
	m.simConn = nil
	log.Info().Msg("simulation stopped")
}

func (m *Manager) onSimMessage(gen uint64, raw []byte) {
	if gen != m.simGen {
		return
	}
	quotes, err := m.sim.Parse(raw)
	if err != nil {
		m.metrics.IncDropped(m.sim.Name(), "malformed")
		return
	}
	for _, q := range quotes {
		if !q.Synthetic || q.Symbol == "" {
			continue
		}
		m.metrics.IncSimulatedTicks()
		m.fanout(q.Symbol, 0, q.Tick)
	}
}

func (m *Manager) fanout(symbol string, price, tick float64) {
	for _, sub := range m.subs.snapshot() {
		if !m.subs.contains(sub) {
			continue
		}
		m.invoke(sub.handler, symbol, price, tick)
	}
}

func (m *Manager) invoke(h port.UpdateHandler, symbol string, price, tick float64) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("symbol", symbol).Msg("update handler panicked")
		}
	}()
	h(symbol, price, tick)
}

func (m *Manager) setProvider(name string) {
	m.stateMu.Lock()
	m.provider = name
	m.stateMu.Unlock()
}

func (m *Manager) setStatus(s port.Status) {
	m.stateMu.Lock()
	prev := m.status
	m.status = s
	m.stateMu.Unlock()

	m.metrics.SetStatus(s)
	log.Info().Str("from", string(prev)).Str("to", string(s)).Msg("stream status")

	for _, h := range m.statuses.snapshot() {
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Error().Interface("panic", r).Msg("status handler panicked")
				}
			}()
			h(s)
		}()
	}
}
