package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/rsharma/courselane/internal/services/auth"
	"github.com/rsharma/courselane/internal/services/courses"
	"github.com/rsharma/courselane/internal/transport/http/dto"
)

type CourseHandler struct {
	svc    *courses.Service
	logger *zap.Logger
}

func NewCourseHandler(svc *courses.Service, logger *zap.Logger) *CourseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CourseHandler{svc: svc, logger: logger}
}

func (h *CourseHandler) DetailWithStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	courseID, err := strconv.ParseInt(chi.URLParam(r, "courseId"), 10, 64)
	if err != nil || courseID <= 0 {
		writeBadRequest(w, "invalid course id")
		return
	}

	detail, err := h.svc.DetailWithStatus(r.Context(), identity.UserID, courseID)
	if err != nil {
		switch {
		case errors.Is(err, courses.ErrValidation):
			writeBadRequest(w, "invalid course id")
		case errors.Is(err, courses.ErrCourseNotFound):
			writeNotFound(w, "course not found")
		default:
			h.logger.Error("course detail failed", zap.Error(err))
			writeInternal(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.CourseDetailResponse{
		ID:           detail.ID,
		Title:        detail.Title,
		Subtitle:     detail.Subtitle,
		CreatorID:    detail.CreatorID,
		PriceINR:     detail.PriceINR,
		ThumbnailURL: detail.ThumbnailURL,
		Students:     detail.Students,
		CreatedAt:    detail.CreatedAt,
		Purchased:    detail.Purchased,
	})
}

func (h *CourseHandler) ListPurchased(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	purchased, err := h.svc.ListPurchased(r.Context(), identity.UserID)
	if err != nil {
		if errors.Is(err, courses.ErrValidation) {
			writeBadRequest(w, "invalid user")
			return
		}
		h.logger.Error("list purchased courses failed", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.PurchasedCoursesResponse{Purchases: make([]dto.PurchasedCourseResponse, 0, len(purchased))}
	for _, p := range purchased {
		resp.Purchases = append(resp.Purchases, dto.PurchasedCourseResponse{
			OrderID:     p.OrderID,
			CourseID:    p.CourseID,
			CourseTitle: p.CourseTitle,
			Amount:      p.AmountMinor,
			Currency:    p.Currency,
			PaymentID:   p.PaymentID,
			CompletedAt: p.CompletedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
