package stream

import (
	"strings"
	"time"
)

// Options 行情流的可调参数，零值字段使用默认值
type Options struct {
	Symbols []string

	MaxReconnectAttempts int           // 连续失败上限，达到后退回模拟
	ReconnectDelay       time.Duration // 固定退避间隔
	StallThreshold       time.Duration // 超过该时长无消息视为静默
	StallCheckInterval   time.Duration
	DialTimeout          time.Duration // connect + subscribe 的总超时
}

// DefaultOptions 默认参数
var DefaultOptions = Options{
	MaxReconnectAttempts: 10,
	ReconnectDelay:       2 * time.Second,
	StallThreshold:       20 * time.Second,
	StallCheckInterval:   10 * time.Second,
	DialTimeout:          10 * time.Second,
}

func (o Options) withDefaults() Options {
	if o.MaxReconnectAttempts <= 0 {
		o.MaxReconnectAttempts = DefaultOptions.MaxReconnectAttempts
	}
	if o.ReconnectDelay <= 0 {
		o.ReconnectDelay = DefaultOptions.ReconnectDelay
	}
	if o.StallThreshold <= 0 {
		o.StallThreshold = DefaultOptions.StallThreshold
	}
	if o.StallCheckInterval <= 0 {
		o.StallCheckInterval = DefaultOptions.StallCheckInterval
	}
	if o.DialTimeout <= 0 {
		o.DialTimeout = DefaultOptions.DialTimeout
	}
	o.Symbols = normalizeSymbols(o.Symbols)
	return o
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
