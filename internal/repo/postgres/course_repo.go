package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrCourseNotFound = errors.New("course not found")

type CourseRepo struct {
	pool *pgxpool.Pool
}

// CourseRecord is the directory view of a course needed by checkout and the
// detail endpoint. PriceINR is the list price in whole rupees.
type CourseRecord struct {
	ID           int64
	Title        string
	Subtitle     *string
	CreatorID    int64
	PriceINR     int64
	ThumbnailKey *string
	CreatedAt    time.Time
}

func NewCourseRepo(pool *pgxpool.Pool) *CourseRepo {
	return &CourseRepo{pool: pool}
}

func (r *CourseRepo) FindByID(ctx context.Context, courseID int64) (CourseRecord, error) {
	if r.pool == nil {
		return CourseRecord{}, fmt.Errorf("postgres pool is nil")
	}
	if courseID <= 0 {
		return CourseRecord{}, fmt.Errorf("invalid course id")
	}

	var rec CourseRecord
	err := r.pool.QueryRow(ctx, `
SELECT id, title, subtitle, creator_id, price_inr, thumbnail_key, created_at
FROM courses
WHERE id = $1
LIMIT 1
`, courseID).Scan(
		&rec.ID,
		&rec.Title,
		&rec.Subtitle,
		&rec.CreatorID,
		&rec.PriceINR,
		&rec.ThumbnailKey,
		&rec.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return CourseRecord{}, ErrCourseNotFound
		}
		return CourseRecord{}, fmt.Errorf("find course by id: %w", err)
	}

	return rec, nil
}
