package stream

import (
	"sync"
	"time"

	"tickfeed/internal/application/port"
)

// PriceCache 每个品种最新一笔价格，只由 Manager 写入
type PriceCache struct {
	mu      sync.RWMutex
	entries map[string]port.PriceEntry
}

func NewPriceCache() *PriceCache {
	return &PriceCache{entries: make(map[string]port.PriceEntry)}
}

// Get returns the entry for symbol, or false if no valid observation was seen yet.
func (c *PriceCache) Get(symbol string) (port.PriceEntry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[symbol]
	return e, ok
}

// All returns a copy of every entry.
func (c *PriceCache) All() map[string]port.PriceEntry {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]port.PriceEntry, len(c.entries))
	for k, v := range c.entries {
		out[k] = v
	}
	return out
}

// Apply 写入一笔绝对价格。quote 未携带 change 时以上一笔缓存价格为参考推导；
// 时间戳优先取 provider 的成交时间，缺失时用接收时间 now
func (c *PriceCache) Apply(q port.Quote, now time.Time) port.PriceEntry {
	c.mu.Lock()
	defer c.mu.Unlock()

	ts := now
	if q.Ts > 0 {
		ts = time.UnixMilli(q.Ts)
	}
	e := port.PriceEntry{
		Price:         q.Price,
		Change:        q.Change,
		ChangePercent: q.ChangePercent,
		Timestamp:     ts,
	}
	if !q.HasChange {
		e.Change, e.ChangePercent = 0, 0
		if prev, ok := c.entries[q.Symbol]; ok && prev.Price > 0 {
			e.Change = q.Price - prev.Price
			e.ChangePercent = e.Change / prev.Price * 100
		}
	}
	c.entries[q.Symbol] = e
	return e
}

func (c *PriceCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
