package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrPurchaseNotFound = errors.New("purchase not found")
	ErrDuplicateOrder   = errors.New("order id already recorded")
	ErrPaymentMismatch  = errors.New("purchase completed with a different payment id")
)

const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

type PurchaseRepo struct {
	pool *pgxpool.Pool
}

// PurchaseRecord is the audit-trail row for one checkout attempt, keyed by
// the gateway-assigned order id. PaymentID is set only on completion.
type PurchaseRecord struct {
	OrderID     string
	CourseID    int64
	UserID      int64
	AmountMinor int64
	Currency    string
	Status      string
	PaymentID   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type CompletedPurchase struct {
	OrderID     string
	CourseID    int64
	UserID      int64
	AmountMinor int64
	Currency    string
	PaymentID   string
	CourseTitle string
	CompletedAt time.Time
}

func NewPurchaseRepo(pool *pgxpool.Pool) *PurchaseRepo {
	return &PurchaseRepo{pool: pool}
}

func (r *PurchaseRepo) Create(ctx context.Context, rec PurchaseRecord) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(rec.OrderID) == "" || rec.CourseID <= 0 || rec.UserID <= 0 || rec.AmountMinor <= 0 {
		return PurchaseRecord{}, fmt.Errorf("invalid purchase create payload")
	}

	row := r.pool.QueryRow(ctx, `
INSERT INTO purchases (
	order_id,
	course_id,
	user_id,
	amount_minor,
	currency,
	status,
	created_at,
	updated_at
) VALUES ($1, $2, $3, $4, $5, 'pending', NOW(), NOW())
RETURNING order_id, course_id, user_id, amount_minor, currency, status, payment_id, created_at, updated_at
`, rec.OrderID, rec.CourseID, rec.UserID, rec.AmountMinor, strings.ToUpper(rec.Currency))

	created, err := scanPurchase(row)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return PurchaseRecord{}, ErrDuplicateOrder
		}
		return PurchaseRecord{}, fmt.Errorf("create pending purchase: %w", err)
	}

	return created, nil
}

func (r *PurchaseRepo) FindByOrderID(ctx context.Context, orderID string) (PurchaseRecord, error) {
	if r.pool == nil {
		return PurchaseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if strings.TrimSpace(orderID) == "" {
		return PurchaseRecord{}, fmt.Errorf("order id is required")
	}

	rec, err := scanPurchase(r.pool.QueryRow(ctx, `
SELECT order_id, course_id, user_id, amount_minor, currency, status, payment_id, created_at, updated_at
FROM purchases
WHERE order_id = $1
LIMIT 1
`, orderID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PurchaseRecord{}, ErrPurchaseNotFound
		}
		return PurchaseRecord{}, fmt.Errorf("find purchase by order id: %w", err)
	}

	return rec, nil
}

// MarkCompleted performs the pending→completed transition as a single
// conditional UPDATE. It reports whether this call performed the transition;
// a purchase already completed with the same payment id is returned with
// changed=false so redundant triggers converge without error.
func (r *PurchaseRepo) MarkCompleted(ctx context.Context, orderID, paymentID string) (PurchaseRecord, bool, error) {
	if r.pool == nil {
		return PurchaseRecord{}, false, fmt.Errorf("postgres pool is nil")
	}
	orderID = strings.TrimSpace(orderID)
	paymentID = strings.TrimSpace(paymentID)
	if orderID == "" || paymentID == "" {
		return PurchaseRecord{}, false, fmt.Errorf("order id and payment id are required")
	}

	row := r.pool.QueryRow(ctx, `
UPDATE purchases
SET
	status = 'completed',
	payment_id = $2,
	updated_at = NOW()
WHERE order_id = $1
  AND status = 'pending'
RETURNING order_id, course_id, user_id, amount_minor, currency, status, payment_id, created_at, updated_at
`, orderID, paymentID)

	updated, err := scanPurchase(row)
	if err == nil {
		return updated, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return PurchaseRecord{}, false, fmt.Errorf("mark purchase completed: %w", err)
	}

	// No row transitioned: the order id is unknown, another trigger already
	// completed it, or the purchase sits in a non-pending state like 'failed'
	// that may not transition to completed.
	existing, err := r.FindByOrderID(ctx, orderID)
	if err != nil {
		return PurchaseRecord{}, false, err
	}
	if existing.PaymentID == nil || *existing.PaymentID != paymentID {
		return PurchaseRecord{}, false, ErrPaymentMismatch
	}
	return existing, false, nil
}

func (r *PurchaseRepo) HasCompleted(ctx context.Context, userID, courseID int64) (bool, error) {
	if userID <= 0 || courseID <= 0 {
		return false, fmt.Errorf("invalid purchase lookup payload")
	}
	if r.pool == nil {
		return false, nil
	}

	var exists bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM purchases
	WHERE user_id = $1
	  AND course_id = $2
	  AND status = 'completed'
)
`, userID, courseID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check completed purchase: %w", err)
	}

	return exists, nil
}

func (r *PurchaseRepo) ListCompleted(ctx context.Context, userID int64) ([]CompletedPurchase, error) {
	if r.pool == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("invalid user id")
	}

	rows, err := r.pool.Query(ctx, `
SELECT
	p.order_id,
	p.course_id,
	p.user_id,
	p.amount_minor,
	p.currency,
	p.payment_id,
	c.title,
	p.updated_at
FROM purchases p
JOIN courses c ON c.id = p.course_id
WHERE p.user_id = $1
  AND p.status = 'completed'
ORDER BY p.updated_at DESC
`, userID)
	if err != nil {
		return nil, fmt.Errorf("list completed purchases: %w", err)
	}
	defer rows.Close()

	var purchases []CompletedPurchase
	for rows.Next() {
		var p CompletedPurchase
		if err := rows.Scan(
			&p.OrderID,
			&p.CourseID,
			&p.UserID,
			&p.AmountMinor,
			&p.Currency,
			&p.PaymentID,
			&p.CourseTitle,
			&p.CompletedAt,
		); err != nil {
			return nil, fmt.Errorf("scan completed purchase: %w", err)
		}
		purchases = append(purchases, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate completed purchases: %w", err)
	}

	return purchases, nil
}

func scanPurchase(row pgx.Row) (PurchaseRecord, error) {
	var rec PurchaseRecord
	if err := row.Scan(
		&rec.OrderID,
		&rec.CourseID,
		&rec.UserID,
		&rec.AmountMinor,
		&rec.Currency,
		&rec.Status,
		&rec.PaymentID,
		&rec.CreatedAt,
		&rec.UpdatedAt,
	); err != nil {
		return PurchaseRecord{}, err
	}
	return rec, nil
}
