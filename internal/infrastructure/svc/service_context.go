package svc

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"tickfeed/internal/application/port"
	"tickfeed/internal/application/stream"
	"tickfeed/internal/application/usecase/monitor"
	"tickfeed/internal/infrastructure/config"
	"tickfeed/internal/infrastructure/metrics"
	"tickfeed/internal/infrastructure/pricefeed"
	"tickfeed/internal/infrastructure/provider/simulation"
	"tickfeed/internal/infrastructure/storage/composite"
	pgrepo "tickfeed/internal/infrastructure/storage/postgres"
	redisrepo "tickfeed/internal/infrastructure/storage/redis"
	sqliterepo "tickfeed/internal/infrastructure/storage/sqlite"
	"tickfeed/internal/interfaces/console"

	// 内置 provider 通过 init() 注册到 pricefeed
	_ "tickfeed/internal/infrastructure/provider/finnhub"
	_ "tickfeed/internal/infrastructure/provider/massive"
	_ "tickfeed/internal/infrastructure/provider/relay"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// 基础设施层（第一层初始化）
	redisClient    *redisclient.Client
	redisRepo      *redisrepo.Repo
	sqliteRepo     *sqliterepo.Repo
	sqliteEventRep *sqliterepo.EventRepo
	postgresRepo   *pgrepo.Repo
	repo           *composite.Repo
	metrics        *metrics.Prometheus

	// 输出端口
	Sink port.Sink

	// 行情流
	providers []port.Provider
	simulator *simulation.Simulator
	manager   *stream.Manager

	// 资源管理
	closerChain []func() error
}

// New 创建并初始化 ServiceContext
// 这是应用启动的唯一入口点，所有依赖初始化都在这里完成
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	if len(cfg.Symbols.List) == 0 {
		return nil, ErrNoSymbols
	}

	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		Sink:        console.NewSink(),
		closerChain: make([]func() error, 0),
	}

	// 初始化所有组件，按依赖顺序
	if err := sc.initializeComponents(); err != nil {
		// 清理已初始化的资源
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents 初始化所有应用组件
// 存储 -> 指标 -> provider -> 行情流管理器
func (sc *ServiceContext) initializeComponents() error {
	if err := sc.initializeStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	if sc.Config.Metrics.Enabled {
		sc.metrics = metrics.New(prometheus.NewRegistry())
	}

	providers, err := BuildProviders(sc.Config)
	if err != nil {
		return err
	}
	sc.providers = providers
	sc.simulator = simulation.New(simulation.Config{
		Interval: sc.Config.SimulationInterval(),
		MaxTick:  sc.Config.Simulation.MaxTick,
	})

	deps := stream.Deps{
		Providers: sc.providers,
		Simulator: sc.simulator,
		Options: stream.Options{
			Symbols:              sc.Config.Symbols.List,
			MaxReconnectAttempts: sc.Config.Stream.MaxReconnectAttempts,
			ReconnectDelay:       sc.Config.ReconnectDelay(),
			StallThreshold:       sc.Config.StallThreshold(),
			StallCheckInterval:   sc.Config.StallCheckInterval(),
			DialTimeout:          sc.Config.DialTimeout(),
		},
	}
	if sc.metrics != nil {
		deps.Metrics = sc.metrics
	}
	sc.manager = stream.NewManager(deps)
	sc.closerChain = append(sc.closerChain, func() error {
		sc.manager.Stop()
		return nil
	})

	log.Info().
		Int("providers", len(sc.providers)).
		Int("storages", sc.repo.Len()).
		Int("symbols", len(sc.Config.Symbols.List)).
		Msg("✓ All components initialized")
	return nil
}

// BuildProviders 按 priority 顺序创建已启用的 provider
func BuildProviders(cfg *config.Config) ([]port.Provider, error) {
	names := cfg.EnabledProviders()
	out := make([]port.Provider, 0, len(names))
	for _, name := range names {
		factory, ok := pricefeed.Get(name)
		if !ok {
			return nil, fmt.Errorf("%w: %s (registered: %v)", ErrUnknownProvider, name, pricefeed.Names())
		}
		p := factory(cfg.Providers[name].Settings())
		if p.RequiresCredential() && !p.HasCredential() {
			log.Warn().Str("provider", name).Msg("no credential, provider will be skipped")
		}
		out = append(out, p)
	}
	return out, nil
}

// initializeStorage 初始化存储层 (Redis、SQLite、Postgres)，全部关闭时使用 noop
func (sc *ServiceContext) initializeStorage() error {
	var repos []port.Repository

	if sc.Config.Redis.Enabled {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("redis initialization failed: %w", err)
		}
		repos = append(repos, sc.redisRepo)
	}

	if sc.Config.SQLite.Enabled {
		if err := sc.initSQLite(); err != nil {
			return fmt.Errorf("sqlite initialization failed: %w", err)
		}
		repos = append(repos, sc.sqliteRepo)
	}

	if sc.Config.Postgres.Enabled {
		if err := sc.initPostgres(); err != nil {
			return fmt.Errorf("postgres initialization failed: %w", err)
		}
		repos = append(repos, sc.postgresRepo)
	}

	sc.repo = composite.New(repos...)
	return nil
}

// initRedis 初始化 Redis 连接
func (sc *ServiceContext) initRedis() error {
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     sc.Config.Redis.Addr,
		Password: sc.Config.Redis.Password,
		DB:       sc.Config.Redis.DB,
	})

	// 测试连接
	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}

	sc.redisClient = rdb
	ttl := time.Duration(sc.Config.Redis.TTLSeconds) * time.Second
	sc.redisRepo = redisrepo.New(rdb, sc.Config.Redis.Prefix, ttl, sc.Config.Redis.Channel)

	// 注册关闭回调
	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", sc.Config.Redis.Addr).
		Int("db", sc.Config.Redis.DB).
		Msg("✓ Redis initialized")

	return nil
}

// initSQLite 初始化 SQLite 数据库
func (sc *ServiceContext) initSQLite() error {
	repo, err := sqliterepo.New(sc.Config.SQLite.Path)
	if err != nil {
		return fmt.Errorf("sqlite repo creation failed: %w", err)
	}

	sc.sqliteRepo = repo
	sc.sqliteEventRep = sqliterepo.NewEventRepo(repo.GetDB())

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing sqlite connection")
		return repo.Close()
	})

	log.Info().
		Str("path", sc.Config.SQLite.Path).
		Msg("✓ SQLite initialized")

	return nil
}

// initPostgres 初始化 Postgres
func (sc *ServiceContext) initPostgres() error {
	repo, err := pgrepo.New(sc.Config.Postgres.DSN)
	if err != nil {
		return fmt.Errorf("postgres repo creation failed: %w", err)
	}
	sc.postgresRepo = repo

	sc.closerChain = append(sc.closerChain, func() error {
		log.Info().Msg("closing postgres connection")
		return repo.Close()
	})

	log.Info().Msg("✓ Postgres initialized")
	return nil
}

// Manager 行情流管理器
func (sc *ServiceContext) Manager() *stream.Manager {
	return sc.manager
}

// Providers 已创建的实时 provider，按优先级排列
func (sc *ServiceContext) Providers() []port.Provider {
	return sc.providers
}

// Metrics 未启用时返回 nil
func (sc *ServiceContext) Metrics() *metrics.Prometheus {
	return sc.metrics
}

// GetSQLiteEventRepo 获取连接事件查询仓储，未启用 SQLite 时为 nil
func (sc *ServiceContext) GetSQLiteEventRepo() *sqliterepo.EventRepo {
	return sc.sqliteEventRep
}

// BuildMonitorServiceDeps 构建 Monitor Service 所需的所有依赖
func (sc *ServiceContext) BuildMonitorServiceDeps() monitor.ServiceDeps {
	return monitor.ServiceDeps{
		Stream:          sc.manager,
		Symbols:         sc.Config.Symbols.List,
		ReferencePrices: sc.Config.App.ReferencePrices,
		Refresh:         sc.Config.RefreshInterval(),
		PrintEveryMin:   sc.Config.App.SnapshotEveryMin,
		WarmupDelay:     2 * time.Second,
		Sink:            sc.Sink,
		Repo:            sc.repo,
	}
}

// Close 关闭 ServiceContext 中的所有资源
// 按照相反的顺序关闭，行情流先于存储停止
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
