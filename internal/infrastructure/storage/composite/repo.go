package composite

import (
	"context"

	"tickfeed/internal/application/port"
)

// Repo 将写入分发给多个镜像，返回第一个错误
type Repo struct {
	repos []port.Repository
}

func New(repos ...port.Repository) *Repo {
	// nil 镜像被忽略
	out := make([]port.Repository, 0, len(repos))
	for _, r := range repos {
		if r != nil {
			out = append(out, r)
		}
	}
	return &Repo{repos: out}
}

func (r *Repo) Len() int { return len(r.repos) }

func (r *Repo) UpsertLatestPrice(ctx context.Context, provider, symbol string, price, change, changePercent float64, ts int64) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.UpsertLatestPrice(ctx, provider, symbol, price, change, changePercent, ts); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (r *Repo) InsertStatusEvent(ctx context.Context, ts int64, provider string, status port.Status) error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.InsertStatusEvent(ctx, ts, provider, status); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close 关闭所有镜像
func (r *Repo) Close() error {
	var firstErr error
	for _, repo := range r.repos {
		if err := repo.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ port.Repository = (*Repo)(nil)
