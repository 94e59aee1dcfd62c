package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type WebhookEventRepo struct {
	pool *pgxpool.Pool
}

// DeadLetterEvent is a verified webhook delivery that could not be matched to
// a purchase record. The gateway is told 200 so it stops redelivering; the
// row is kept for operator follow-up.
type DeadLetterEvent struct {
	ID        int64
	EventID   string
	EventType string
	OrderID   string
	PaymentID string
	RawBody   []byte
	CreatedAt time.Time
}

func NewWebhookEventRepo(pool *pgxpool.Pool) *WebhookEventRepo {
	return &WebhookEventRepo{pool: pool}
}

func (r *WebhookEventRepo) RecordDeadLetter(ctx context.Context, event DeadLetterEvent) error {
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(event.OrderID) == "" {
		return fmt.Errorf("dead letter order id is required")
	}

	_, err := r.pool.Exec(ctx, `
INSERT INTO webhook_dead_letters (
	event_id,
	event_type,
	order_id,
	payment_id,
	raw_body,
	created_at
) VALUES ($1, $2, $3, $4, $5, NOW())
`, event.EventID, event.EventType, event.OrderID, event.PaymentID, event.RawBody)
	if err != nil {
		return fmt.Errorf("record webhook dead letter: %w", err)
	}

	return nil
}

func (r *WebhookEventRepo) ListRecentDeadLetters(ctx context.Context, limit int) ([]DeadLetterEvent, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := r.pool.Query(ctx, `
SELECT id, event_id, event_type, order_id, payment_id, raw_body, created_at
FROM webhook_dead_letters
ORDER BY created_at DESC
LIMIT $1
`, limit)
	if err != nil {
		return nil, fmt.Errorf("list webhook dead letters: %w", err)
	}
	defer rows.Close()

	var events []DeadLetterEvent
	for rows.Next() {
		var e DeadLetterEvent
		if err := rows.Scan(&e.ID, &e.EventID, &e.EventType, &e.OrderID, &e.PaymentID, &e.RawBody, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan webhook dead letter: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate webhook dead letters: %w", err)
	}

	return events, nil
}
