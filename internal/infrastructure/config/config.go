package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"tickfeed/internal/application"
	"tickfeed/internal/infrastructure/provider"
)

type Config struct {
	App struct {
		LogLevel          string             `toml:"log_level"`
		EnvFile           string             `toml:"env_file"`
		PreferredProvider string             `toml:"preferred_provider"`
		RefreshMs         int                `toml:"refresh_ms"`         // 控制台刷新间隔
		SnapshotEveryMin  int                `toml:"snapshot_every_min"` // 控制台快照间隔
		ReferencePrices   map[string]float64 `toml:"reference_prices"`
	} `toml:"app"`

	Symbols struct {
		List []string `toml:"list"`
	} `toml:"symbols"`

	Stream struct {
		MaxReconnectAttempts int `toml:"max_reconnect_attempts"`
		ReconnectDelayMs     int `toml:"reconnect_delay_ms"`
		StallThresholdMs     int `toml:"stall_threshold_ms"`
		StallCheckMs         int `toml:"stall_check_ms"`
		DialTimeoutMs        int `toml:"dial_timeout_ms"`
	} `toml:"stream"`

	Simulation struct {
		IntervalMs int     `toml:"interval_ms"`
		MaxTick    float64 `toml:"max_tick"`
	} `toml:"simulation"`

	Providers map[string]ProviderConfig `toml:"providers"`

	Redis struct {
		Enabled    bool   `toml:"enabled"`
		Addr       string `toml:"addr"`
		Password   string `toml:"password"`
		DB         int    `toml:"db"`
		Prefix     string `toml:"prefix"`
		TTLSeconds int    `toml:"ttl_seconds"`
		Channel    string `toml:"channel"` // 价格更新的 pub/sub channel
	} `toml:"redis"`

	SQLite struct {
		Enabled bool   `toml:"enabled"`
		Path    string `toml:"path"`
	} `toml:"sqlite"`

	Postgres struct {
		Enabled bool   `toml:"enabled"`
		DSN     string `toml:"dsn"`
	} `toml:"postgres"`

	Metrics struct {
		Enabled bool   `toml:"enabled"`
		Addr    string `toml:"addr"`
	} `toml:"metrics"`
}

type ProviderConfig struct {
	Enabled   bool             `toml:"enabled"`
	WsURL     string           `toml:"ws_url"`
	APIKey    string           `toml:"api_key"`
	APIKeyEnv string           `toml:"api_key_env"` // 默认 <NAME>_API_KEY
	Priority  int              `toml:"priority"`    // 越小越优先
	Dialect   provider.Dialect `toml:"dialect"`
}

// Settings 转换为 provider 的覆盖项
func (p ProviderConfig) Settings() provider.Settings {
	return provider.Settings{
		URL:     p.WsURL,
		APIKey:  p.APIKey,
		Dialect: p.Dialect,
	}
}

// defaultPriority 未配置 priority 时的默认顺序
var defaultPriority = map[string]int{
	application.ProviderMassive: 1,
	application.ProviderFinnhub: 2,
	application.ProviderRelay:   3,
}

// Load 读取 TOML 配置，并从环境变量（可选 .env 文件）补齐凭证
func Load(path string) (*Config, error) {
	var cfg Config
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}
	if err := loadEnvFile(cfg.App.EnvFile); err != nil {
		return nil, err
	}
	applyDefaults(&cfg)
	applyEnv(&cfg)
	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default 不读取文件的默认配置：默认品种、所有内置 provider 启用
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	applyEnv(&cfg)
	return &cfg
}

func loadEnvFile(path string) error {
	if path == "" {
		path = ".env"
		if _, err := os.Stat(path); err != nil {
			return nil
		}
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

func applyDefaults(cfg *Config) {
	if cfg.App.LogLevel == "" {
		cfg.App.LogLevel = "info"
	}
	if cfg.App.RefreshMs <= 0 {
		cfg.App.RefreshMs = 500
	}
	if cfg.App.SnapshotEveryMin <= 0 {
		cfg.App.SnapshotEveryMin = 5
	}
	if len(cfg.App.ReferencePrices) == 0 {
		cfg.App.ReferencePrices = make(map[string]float64, len(application.DefaultReferencePrices))
		for k, v := range application.DefaultReferencePrices {
			cfg.App.ReferencePrices[k] = v
		}
	}
	if len(cfg.Symbols.List) == 0 {
		cfg.Symbols.List = append([]string(nil), application.DefaultSymbols...)
	}

	if cfg.Stream.MaxReconnectAttempts <= 0 {
		cfg.Stream.MaxReconnectAttempts = 10
	}
	if cfg.Stream.ReconnectDelayMs <= 0 {
		cfg.Stream.ReconnectDelayMs = 2000
	}
	if cfg.Stream.StallThresholdMs <= 0 {
		cfg.Stream.StallThresholdMs = 20000
	}
	if cfg.Stream.StallCheckMs <= 0 {
		cfg.Stream.StallCheckMs = 10000
	}
	if cfg.Stream.DialTimeoutMs <= 0 {
		cfg.Stream.DialTimeoutMs = 10000
	}

	if cfg.Simulation.IntervalMs <= 0 {
		cfg.Simulation.IntervalMs = 1000
	}
	if cfg.Simulation.MaxTick <= 0 {
		cfg.Simulation.MaxTick = 0.0005
	}

	if cfg.Providers == nil {
		// 未配置 providers 时启用 massive 和 finnhub，是否尝试取决于凭证
		cfg.Providers = map[string]ProviderConfig{
			application.ProviderMassive: {Enabled: true},
			application.ProviderFinnhub: {Enabled: true},
		}
	}
	for name, p := range cfg.Providers {
		if p.Priority <= 0 {
			if d, ok := defaultPriority[name]; ok {
				p.Priority = d
			} else {
				p.Priority = 100
			}
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = strings.ToUpper(name) + "_API_KEY"
		}
		cfg.Providers[name] = p
	}

	if cfg.Redis.Addr == "" {
		cfg.Redis.Addr = "127.0.0.1:6379"
	}
	if cfg.Redis.Prefix == "" {
		cfg.Redis.Prefix = "tickfeed"
	}
	if cfg.Redis.TTLSeconds <= 0 {
		cfg.Redis.TTLSeconds = 3600
	}
	if cfg.Redis.Channel == "" {
		cfg.Redis.Channel = "tickfeed:prices"
	}
	if cfg.SQLite.Path == "" {
		cfg.SQLite.Path = "data/tickfeed.db"
	}
	if cfg.Metrics.Addr == "" {
		cfg.Metrics.Addr = ":9100"
	}
}

// applyEnv 配置文件中没有 api_key 时从环境变量读取
func applyEnv(cfg *Config) {
	for name, p := range cfg.Providers {
		if strings.TrimSpace(p.APIKey) == "" {
			p.APIKey = strings.TrimSpace(os.Getenv(p.APIKeyEnv))
		}
		cfg.Providers[name] = p
	}
}

func validate(cfg *Config) error {
	cfg.Symbols.List = normalizeSymbols(cfg.Symbols.List)
	if len(cfg.Symbols.List) == 0 {
		return errors.New("symbols.list is empty")
	}
	if cfg.Simulation.MaxTick >= 1 {
		return errors.New("simulation.max_tick must be < 1")
	}
	if cfg.App.PreferredProvider != "" {
		if p, ok := cfg.Providers[cfg.App.PreferredProvider]; !ok || !p.Enabled {
			return fmt.Errorf("app.preferred_provider %q is not an enabled provider", cfg.App.PreferredProvider)
		}
	}
	for name, p := range cfg.Providers {
		// relay 没有默认地址
		if p.Enabled && name == application.ProviderRelay && strings.TrimSpace(p.WsURL) == "" {
			return fmt.Errorf("providers.%s.ws_url empty but enabled", name)
		}
	}
	if cfg.Postgres.Enabled && strings.TrimSpace(cfg.Postgres.DSN) == "" {
		return errors.New("postgres.dsn empty but enabled")
	}
	if cfg.Metrics.Enabled && strings.TrimSpace(cfg.Metrics.Addr) == "" {
		return errors.New("metrics.addr empty but enabled")
	}
	return nil
}

// EnabledProviders 已启用的 provider 名称，按 priority 升序，同优先级按名称
func (c *Config) EnabledProviders() []string {
	out := make([]string, 0, len(c.Providers))
	for name, p := range c.Providers {
		if p.Enabled {
			out = append(out, name)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := c.Providers[out[i]].Priority, c.Providers[out[j]].Priority
		if pi != pj {
			return pi < pj
		}
		return out[i] < out[j]
	})
	return out
}

func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.Stream.ReconnectDelayMs) * time.Millisecond
}

func (c *Config) StallThreshold() time.Duration {
	return time.Duration(c.Stream.StallThresholdMs) * time.Millisecond
}

func (c *Config) StallCheckInterval() time.Duration {
	return time.Duration(c.Stream.StallCheckMs) * time.Millisecond
}

func (c *Config) DialTimeout() time.Duration {
	return time.Duration(c.Stream.DialTimeoutMs) * time.Millisecond
}

func (c *Config) SimulationInterval() time.Duration {
	return time.Duration(c.Simulation.IntervalMs) * time.Millisecond
}

func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.App.RefreshMs) * time.Millisecond
}

func normalizeSymbols(in []string) []string {
	out := make([]string, 0, len(in))
	seen := map[string]struct{}{}
	for _, s := range in {
		u := strings.ToUpper(strings.TrimSpace(s))
		if u == "" {
			continue
		}
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out
}
