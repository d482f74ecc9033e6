package hipaa

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jeev/jeev/internal/platform/middleware"
)

// writeTimeout bounds a single insert; RecordAccess runs after the response
// and has no request context.
const writeTimeout = 2 * time.Second

type accessLogPG struct {
	pool *pgxpool.Pool
}

func NewAccessLogPG(pool *pgxpool.Pool) AccessLog {
	return &accessLogPG{pool: pool}
}

func (l *accessLogPG) RecordAccess(entry middleware.AuditEntry) error {
	event := eventFromEntry(entry)

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	_, err := l.pool.Exec(ctx, `
		INSERT INTO phi_access_log (
			id, resource, action, health_id, record_id, method, path,
			status_code, ip_address, user_agent, request_id, accessed_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		event.ID, event.Resource, event.Action, nullable(event.HealthID), nullable(event.RecordID),
		event.Method, event.Path, event.StatusCode, event.IPAddress, event.UserAgent,
		event.RequestID, event.AccessedAt,
	)
	if err != nil {
		return fmt.Errorf("hipaa access log: insert: %w", err)
	}
	return nil
}

func (l *accessLogPG) ListByHealthID(ctx context.Context, healthID string, limit int) ([]*AccessEvent, error) {
	rows, err := l.pool.Query(ctx, `
		SELECT id, resource, action, COALESCE(health_id, ''), COALESCE(record_id, ''), method, path,
		       status_code, ip_address, user_agent, request_id, accessed_at
		FROM phi_access_log
		WHERE health_id = $1
		ORDER BY seq DESC
		LIMIT $2`, healthID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("hipaa access log: query: %w", err)
	}
	defer rows.Close()

	events := []*AccessEvent{}
	for rows.Next() {
		var e AccessEvent
		if err := rows.Scan(&e.ID, &e.Resource, &e.Action, &e.HealthID, &e.RecordID, &e.Method, &e.Path,
			&e.StatusCode, &e.IPAddress, &e.UserAgent, &e.RequestID, &e.AccessedAt); err != nil {
			return nil, fmt.Errorf("hipaa access log: scan: %w", err)
		}
		events = append(events, &e)
	}
	return events, rows.Err()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
