package monitor

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"tickfeed/internal/application/port"
	"tickfeed/internal/domain"

	"github.com/rs/zerolog/log"
)

type ServiceDeps struct {
	Stream          Stream
	Symbols         []string
	ReferencePrices map[string]float64
	Refresh         time.Duration // live 行最短重绘间隔
	PrintEveryMin   int
	WarmupDelay     time.Duration // 启动后延迟一次，从价格缓存同步
	Sink            port.Sink
	Repo            port.Repository
}

type update struct {
	symbol string
	price  float64
	tick   float64
}

type statusChange struct {
	status   port.Status
	provider string
	at       time.Time
}

type Service struct {
	deps  ServiceDeps
	board *domain.Board
	fmt   *Formatter

	updates  chan update
	statuses chan statusChange
	dropped  atomic.Int64

	status   port.Status
	provider string
}

func NewService(deps ServiceDeps) *Service {
	if deps.Refresh <= 0 {
		deps.Refresh = 500 * time.Millisecond
	}
	if deps.PrintEveryMin <= 0 {
		deps.PrintEveryMin = 5
	}
	if deps.Repo == nil {
		deps.Repo = NewNoopRepo()
	}
	return &Service{
		deps:     deps,
		board:    domain.NewBoard(deps.Symbols, deps.ReferencePrices),
		fmt:      NewFormatter(2),
		updates:  make(chan update, 4096),
		statuses: make(chan statusChange, 64),
		status:   port.StatusDisconnected,
	}
}

// Board 消费侧价格板
func (s *Service) Board() *domain.Board { return s.board }

// Dropped 因缓冲区满而丢弃的更新数
func (s *Service) Dropped() int64 { return s.dropped.Load() }

// onUpdate 在行情流的事件循环中执行，不能阻塞
func (s *Service) onUpdate(symbol string, price, tick float64) {
	select {
	case s.updates <- update{symbol: symbol, price: price, tick: tick}:
	default:
		if s.dropped.Add(1)%1000 == 1 {
			log.Warn().Int64("dropped", s.dropped.Load()).Msg("monitor update buffer full")
		}
	}
}

func (s *Service) onStatus(st port.Status) {
	select {
	case s.statuses <- statusChange{status: st, provider: s.deps.Stream.CurrentProvider(), at: time.Now()}:
	default:
	}
}

func (s *Service) Run(ctx context.Context) error {
	if s.deps.Stream == nil {
		return errors.New("no stream")
	}
	if s.deps.Sink == nil {
		return errors.New("no sink")
	}

	s.deps.Stream.OnStatusChange(s.onStatus)
	sub := s.deps.Stream.Subscribe(s.onUpdate)
	defer s.deps.Stream.Unsubscribe(sub)
	log.Info().Int("symbols", len(s.board.GetSymbols())).Msg("monitor started")

	// snapshot ticker
	snapTicker := time.NewTicker(time.Duration(s.deps.PrintEveryMin) * time.Minute)
	defer snapTicker.Stop()

	refresh := time.NewTicker(s.deps.Refresh)
	defer refresh.Stop()

	var warmup <-chan time.Time
	if s.deps.WarmupDelay > 0 {
		t := time.NewTimer(s.deps.WarmupDelay)
		defer t.Stop()
		warmup = t.C
	}

	// initial live line
	_ = s.deps.Sink.WriteLive(s.render(RenderLive))
	dirty := false

	for {
		select {
		case <-ctx.Done():
			_ = s.deps.Sink.NewLine()
			return ctx.Err()

		case now := <-snapTicker.C:
			_ = s.deps.Sink.WriteSnapshot(now, s.render(RenderSnapshot))

		case <-refresh.C:
			if dirty {
				_ = s.deps.Sink.WriteLive(s.render(RenderLive))
				dirty = false
			}

		case <-warmup:
			if n := s.syncFromCache(); n > 0 {
				dirty = true
				log.Info().Int("symbols", n).Msg("board synced from price cache")
			}

		case u := <-s.updates:
			if s.board.Apply(u.symbol, u.price, u.tick) {
				dirty = true
			}
			if u.price > 0 {
				s.mirror(ctx, u.symbol)
			}

		case sc := <-s.statuses:
			s.status, s.provider = sc.status, sc.provider
			dirty = true
			if err := s.deps.Repo.InsertStatusEvent(ctx, sc.at.UnixMilli(), sc.provider, sc.status); err != nil {
				log.Warn().Err(err).Str("status", string(sc.status)).Msg("status event not persisted")
			}
		}
	}
}

// syncFromCache 用缓存中的真实价格覆盖价格板，返回同步的品种数
func (s *Service) syncFromCache() int {
	n := 0
	for sym, e := range s.deps.Stream.GetAllCachedPrices() {
		if s.board.Apply(sym, e.Price, 0) {
			n++
		}
	}
	return n
}

// mirror 将缓存中的最新价格写入存储
func (s *Service) mirror(ctx context.Context, symbol string) {
	e, ok := s.deps.Stream.GetCachedPrice(symbol)
	if !ok {
		return
	}
	provider := s.provider
	if provider == "" {
		provider = s.deps.Stream.CurrentProvider()
	}
	if err := s.deps.Repo.UpsertLatestPrice(ctx, provider, symbol, e.Price, e.Change, e.ChangePercent, e.Timestamp.UnixMilli()); err != nil {
		log.Warn().Err(err).Str("symbol", symbol).Msg("latest price not persisted")
	}
}

func (s *Service) render(mode RenderMode) string {
	return s.fmt.Render(s.board, s.status, s.provider, mode)
}
