package pricefeed

import (
	"sort"

	"tickfeed/internal/application/port"
	"tickfeed/internal/infrastructure/provider"

	"github.com/rs/zerolog/log"
)

// Factory 根据配置文件中的覆盖项创建 provider
type Factory func(s provider.Settings) port.Provider

// registry maps provider names to their factories
var registry = make(map[string]Factory)

// Register 注册一个 provider factory
// 这是由各个 provider 包的 init() 函数调用来自注册的
func Register(name string, factory Factory) {
	if factory == nil {
		log.Warn().Str("provider", name).Msg("invalid provider factory")
		return
	}
	if _, exists := registry[name]; exists {
		log.Warn().Str("provider", name).Msg("provider factory already registered, overwriting")
	}
	registry[name] = factory
	log.Debug().Str("provider", name).Msg("provider factory registered")
}

// Get 获取已注册的 provider factory
func Get(name string) (Factory, bool) {
	factory, ok := registry[name]
	return factory, ok
}

// Names 所有已注册的 provider 名称，按字母排序
func Names() []string {
	out := make([]string, 0, len(registry))
	for name := range registry {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
