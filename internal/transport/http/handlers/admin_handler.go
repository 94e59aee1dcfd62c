package handlers

import (
	"context"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	pgrepo "github.com/rsharma/courselane/internal/repo/postgres"
	"github.com/rsharma/courselane/internal/transport/http/dto"
)

type DeadLetterLister interface {
	ListRecentDeadLetters(ctx context.Context, limit int) ([]pgrepo.DeadLetterEvent, error)
}

type AdminHandler struct {
	deadLetters DeadLetterLister
	logger      *zap.Logger
}

func NewAdminHandler(deadLetters DeadLetterLister, logger *zap.Logger) *AdminHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AdminHandler{deadLetters: deadLetters, logger: logger}
}

// ListWebhookDeadLetters surfaces verified webhook deliveries that matched no
// purchase record, for operator follow-up.
func (h *AdminHandler) ListWebhookDeadLetters(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

	events, err := h.deadLetters.ListRecentDeadLetters(r.Context(), limit)
	if err != nil {
		h.logger.Error("list webhook dead letters failed", zap.Error(err))
		writeInternal(w)
		return
	}

	resp := dto.DeadLetterEventsResponse{Events: make([]dto.DeadLetterEventResponse, 0, len(events))}
	for _, e := range events {
		resp.Events = append(resp.Events, dto.DeadLetterEventResponse{
			ID:        e.ID,
			EventID:   e.EventID,
			EventType: e.EventType,
			OrderID:   e.OrderID,
			PaymentID: e.PaymentID,
			CreatedAt: e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}
