package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type EnrollmentRepo struct {
	pool *pgxpool.Pool
}

func NewEnrollmentRepo(pool *pgxpool.Pool) *EnrollmentRepo {
	return &EnrollmentRepo{pool: pool}
}

// Enroll adds courseID to the user's enrolled set and userID to the course's
// student set. Both inserts are ON CONFLICT DO NOTHING, so re-enrolling is a
// no-op, and they run in one transaction so neither side is durably
// half-applied.
func (r *EnrollmentRepo) Enroll(ctx context.Context, userID, courseID int64) error {
	if userID <= 0 || courseID <= 0 {
		return fmt.Errorf("invalid enrollment payload")
	}
	if r.pool == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	return WithTx(ctx, r.pool, func(ctx context.Context, tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `
INSERT INTO enrolled_courses (user_id, course_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (user_id, course_id) DO NOTHING
`, userID, courseID); err != nil {
			return fmt.Errorf("add enrolled course: %w", err)
		}

		if _, err := tx.Exec(ctx, `
INSERT INTO enrolled_students (course_id, user_id, created_at)
VALUES ($1, $2, NOW())
ON CONFLICT (course_id, user_id) DO NOTHING
`, courseID, userID); err != nil {
			return fmt.Errorf("add enrolled student: %w", err)
		}

		return nil
	})
}

func (r *EnrollmentRepo) IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error) {
	if userID <= 0 || courseID <= 0 {
		return false, fmt.Errorf("invalid enrollment lookup payload")
	}
	if r.pool == nil {
		return false, nil
	}

	var enrolled bool
	err := r.pool.QueryRow(ctx, `
SELECT EXISTS (
	SELECT 1
	FROM enrolled_courses
	WHERE user_id = $1
	  AND course_id = $2
)
`, userID, courseID).Scan(&enrolled)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}

	return enrolled, nil
}

func (r *EnrollmentRepo) CountStudents(ctx context.Context, courseID int64) (int64, error) {
	if courseID <= 0 {
		return 0, fmt.Errorf("invalid course id")
	}
	if r.pool == nil {
		return 0, nil
	}

	var count int64
	err := r.pool.QueryRow(ctx, `
SELECT COUNT(*)
FROM enrolled_students
WHERE course_id = $1
`, courseID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count enrolled students: %w", err)
	}

	return count, nil
}
