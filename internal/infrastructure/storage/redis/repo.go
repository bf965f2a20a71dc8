package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/redis/go-redis/v9"

	"tickfeed/internal/application/port"
)

type Repo struct {
	rdb       *redis.Client
	prefix    string
	ttl       time.Duration
	keyLatest string // prefix + ":latest"
	keyStatus string // prefix + ":status"
	keyEvents string // prefix + ":events"
	channel   string
}

func New(rdb *redis.Client, prefix string, ttl time.Duration, channel string) *Repo {
	if strings.TrimSpace(channel) == "" {
		channel = prefix + ":prices"
	}
	return &Repo{
		rdb:       rdb,
		prefix:    prefix,
		ttl:       ttl,
		keyLatest: prefix + ":latest",
		keyStatus: prefix + ":status",
		keyEvents: prefix + ":events",
		channel:   channel,
	}
}

// UpsertLatestPrice 写入最新价格并发布到 channel
func (r *Repo) UpsertLatestPrice(ctx context.Context, provider, symbol string, price, change, changePercent float64, ts int64) error {
	if price <= 0 {
		return nil
	}
	lp := port.LatestPrice{
		Provider:      provider,
		Symbol:        symbol,
		Price:         price,
		Change:        change,
		ChangePercent: changePercent,
		Ts:            ts,
	}
	b, err := json.Marshal(lp)
	if err != nil {
		return err
	}

	// Hash: field = "massive:AAPL" -> json
	field := fmt.Sprintf("%s:%s", provider, symbol)
	pipe := r.rdb.Pipeline()
	pipe.HSet(ctx, r.keyLatest, field, string(b))
	if r.ttl > 0 {
		pipe.Expire(ctx, r.keyLatest, r.ttl)
	}
	pipe.Publish(ctx, r.channel, string(b))
	_, err = pipe.Exec(ctx)
	return err
}

// InsertStatusEvent 记录当前状态，并追加到事件 stream
func (r *Repo) InsertStatusEvent(ctx context.Context, ts int64, provider string, status port.Status) error {
	ev := port.StatusEvent{Ts: ts, Provider: provider, Status: status}
	b, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	pipe := r.rdb.Pipeline()
	pipe.Set(ctx, r.keyStatus, string(b), r.ttl)
	pipe.XAdd(ctx, &redis.XAddArgs{
		Stream: r.keyEvents,
		MaxLen: 10000,
		Approx: true,
		Values: map[string]any{
			"ts_ms":    ts,
			"provider": provider,
			"status":   string(status),
		},
	})
	_, err = pipe.Exec(ctx)
	return err
}

// GetLatestPrice 读取镜像中的最新价格
func (r *Repo) GetLatestPrice(ctx context.Context, provider, symbol string) (port.LatestPrice, bool, error) {
	var lp port.LatestPrice
	s, err := r.rdb.HGet(ctx, r.keyLatest, provider+":"+symbol).Result()
	if err == redis.Nil {
		return lp, false, nil
	}
	if err != nil {
		return lp, false, err
	}
	if err := json.Unmarshal([]byte(s), &lp); err != nil {
		return lp, false, err
	}
	return lp, true, nil
}

// Close 客户端由 ServiceContext 负责关闭
func (r *Repo) Close() error { return nil }

var _ port.Repository = (*Repo)(nil)
