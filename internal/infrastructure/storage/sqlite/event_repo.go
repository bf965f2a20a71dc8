package sqlite

import (
	"context"
	"database/sql"

	"tickfeed/internal/application/port"
)

// EventRepo 连接状态事件查询
type EventRepo struct {
	db *sql.DB
}

func NewEventRepo(db *sql.DB) *EventRepo {
	return &EventRepo{db: db}
}

// ListRecent 最近 limit 条状态事件，按时间倒序
func (er *EventRepo) ListRecent(ctx context.Context, limit int) ([]port.StatusEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := er.db.QueryContext(ctx, `
		SELECT ts_ms, provider, status
		FROM connection_events
		ORDER BY ts_ms DESC, id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []port.StatusEvent
	for rows.Next() {
		var ev port.StatusEvent
		var status string
		if err := rows.Scan(&ev.Ts, &ev.Provider, &status); err != nil {
			return nil, err
		}
		ev.Status = port.Status(status)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// CountByStatus 自 sinceMs 起各状态出现的次数
func (er *EventRepo) CountByStatus(ctx context.Context, sinceMs int64) (map[port.Status]int, error) {
	rows, err := er.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM connection_events
		WHERE ts_ms >= ?
		GROUP BY status
	`, sinceMs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[port.Status]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[port.Status(status)] = n
	}
	return counts, rows.Err()
}
