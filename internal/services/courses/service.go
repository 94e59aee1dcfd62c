package courses

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	pgrepo "github.com/rsharma/courselane/internal/repo/postgres"
)

var (
	ErrValidation     = errors.New("validation failed")
	ErrCourseNotFound = errors.New("course not found")
)

type CourseStore interface {
	FindByID(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error)
}

type PurchaseStore interface {
	HasCompleted(ctx context.Context, userID, courseID int64) (bool, error)
	ListCompleted(ctx context.Context, userID int64) ([]pgrepo.CompletedPurchase, error)
}

type EnrollmentStore interface {
	CountStudents(ctx context.Context, courseID int64) (int64, error)
}

// Presigner turns a stored object key into a short-lived public URL.
type Presigner interface {
	PresignGet(ctx context.Context, key string) (string, error)
}

type Service struct {
	courses     CourseStore
	purchases   PurchaseStore
	enrollments EnrollmentStore
	presigner   Presigner
	logger      *zap.Logger
}

type Dependencies struct {
	Courses     CourseStore
	Purchases   PurchaseStore
	Enrollments EnrollmentStore
	Presigner   Presigner
	Logger      *zap.Logger
}

func NewService(deps Dependencies) *Service {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Service{
		courses:     deps.Courses,
		purchases:   deps.Purchases,
		enrollments: deps.Enrollments,
		presigner:   deps.Presigner,
		logger:      logger,
	}
}

type CourseDetail struct {
	ID           int64
	Title        string
	Subtitle     string
	CreatorID    int64
	PriceINR     int64
	ThumbnailURL string
	Students     int64
	CreatedAt    time.Time
	Purchased    bool
}

type PurchasedCourse struct {
	OrderID     string
	CourseID    int64
	CourseTitle string
	AmountMinor int64
	Currency    string
	PaymentID   string
	CompletedAt time.Time
}

// DetailWithStatus returns the course card plus whether the caller has a
// completed purchase for it. The thumbnail link and student count are
// decoration: failures there degrade the response instead of failing it.
func (s *Service) DetailWithStatus(ctx context.Context, userID, courseID int64) (CourseDetail, error) {
	if userID <= 0 || courseID <= 0 {
		return CourseDetail{}, ErrValidation
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return CourseDetail{}, ErrCourseNotFound
		}
		return CourseDetail{}, fmt.Errorf("load course: %w", err)
	}

	purchased, err := s.purchases.HasCompleted(ctx, userID, courseID)
	if err != nil {
		return CourseDetail{}, fmt.Errorf("check purchase status: %w", err)
	}

	detail := CourseDetail{
		ID:        course.ID,
		Title:     course.Title,
		CreatorID: course.CreatorID,
		PriceINR:  course.PriceINR,
		CreatedAt: course.CreatedAt,
		Purchased: purchased,
	}
	if course.Subtitle != nil {
		detail.Subtitle = *course.Subtitle
	}

	if students, err := s.enrollments.CountStudents(ctx, courseID); err != nil {
		s.logger.Warn("count students failed",
			zap.Int64("course_id", courseID),
			zap.Error(err))
	} else {
		detail.Students = students
	}

	if s.presigner != nil && course.ThumbnailKey != nil {
		url, err := s.presigner.PresignGet(ctx, *course.ThumbnailKey)
		if err != nil {
			s.logger.Warn("presign thumbnail failed",
				zap.Int64("course_id", courseID),
				zap.Error(err))
		} else {
			detail.ThumbnailURL = url
		}
	}

	return detail, nil
}

func (s *Service) ListPurchased(ctx context.Context, userID int64) ([]PurchasedCourse, error) {
	if userID <= 0 {
		return nil, ErrValidation
	}

	records, err := s.purchases.ListCompleted(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list purchased courses: %w", err)
	}

	purchased := make([]PurchasedCourse, 0, len(records))
	for _, rec := range records {
		purchased = append(purchased, PurchasedCourse{
			OrderID:     rec.OrderID,
			CourseID:    rec.CourseID,
			CourseTitle: rec.CourseTitle,
			AmountMinor: rec.AmountMinor,
			Currency:    rec.Currency,
			PaymentID:   rec.PaymentID,
			CompletedAt: rec.CompletedAt,
		})
	}

	return purchased, nil
}
