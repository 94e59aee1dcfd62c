package handlers

import (
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"github.com/rsharma/courselane/internal/services/auth"
	"github.com/rsharma/courselane/internal/services/checkout"
	"github.com/rsharma/courselane/internal/transport/http/dto"
)

// maxWebhookBody bounds the raw webhook payload we are willing to buffer for
// signature verification.
const maxWebhookBody = 1 << 20

const (
	headerWebhookSignature = "X-Razorpay-Signature"
	headerWebhookEventID   = "X-Razorpay-Event-Id"
)

type CheckoutHandler struct {
	svc    *checkout.Service
	logger *zap.Logger
}

func NewCheckoutHandler(svc *checkout.Service, logger *zap.Logger) *CheckoutHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CheckoutHandler{svc: svc, logger: logger}
}

func (h *CheckoutHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.CreateCheckoutSessionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.CreateSession(r.Context(), identity.UserID, req.CourseID)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrValidation):
			writeBadRequest(w, "courseId is required")
		case errors.Is(err, checkout.ErrCourseNotFound):
			writeNotFound(w, "course not found")
		case errors.Is(err, checkout.ErrGatewayUnavailable):
			writeBadGateway(w, "payment gateway unavailable")
		default:
			h.logger.Error("create checkout session failed", zap.Error(err))
			writeInternal(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.CreateCheckoutSessionResponse{
		Success:  true,
		OrderID:  result.OrderID,
		Amount:   result.AmountMinor,
		Currency: result.Currency,
	})
}

func (h *CheckoutHandler) Verify(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.IdentityFromContext(r.Context()); !ok {
		writeUnauthorized(w)
		return
	}

	var req dto.VerifyPaymentRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}

	result, err := h.svc.VerifyPayment(r.Context(), checkout.VerifyInput{
		OrderID:   req.RazorpayOrderID,
		PaymentID: req.RazorpayPaymentID,
		Signature: req.RazorpaySignature,
		CourseID:  req.CourseID,
	})
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrValidation):
			writeBadRequest(w, "order id, payment id and signature are required")
		case errors.Is(err, checkout.ErrInvalidSignature):
			writeBadRequest(w, "payment signature verification failed")
		case errors.Is(err, checkout.ErrPurchaseNotFound):
			writeNotFound(w, "purchase not found")
		case errors.Is(err, checkout.ErrPaymentMismatch):
			writeConflict(w, "order already completed with a different payment")
		default:
			h.logger.Error("verify payment failed", zap.Error(err))
			writeInternal(w)
		}
		return
	}

	paymentID := ""
	if result.Purchase.PaymentID != nil {
		paymentID = *result.Purchase.PaymentID
	}
	writeJSON(w, http.StatusOK, dto.VerifyPaymentResponse{
		Success:          true,
		OrderID:          result.Purchase.OrderID,
		PaymentID:        paymentID,
		AlreadyCompleted: result.AlreadyCompleted,
	})
}

// Webhook receives gateway notifications. The body is read raw and passed to
// the service verbatim: the signature covers the exact bytes on the wire, so
// no decoding may happen before verification.
func (h *CheckoutHandler) Webhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBody))
	if err != nil {
		writeBadRequest(w, "unreadable webhook body")
		return
	}

	result, err := h.svc.HandleWebhook(
		r.Context(),
		body,
		r.Header.Get(headerWebhookSignature),
		r.Header.Get(headerWebhookEventID),
	)
	if err != nil {
		switch {
		case errors.Is(err, checkout.ErrInvalidSignature):
			writeBadRequest(w, "webhook signature verification failed")
		case errors.Is(err, checkout.ErrValidation):
			writeBadRequest(w, "malformed webhook payload")
		case errors.Is(err, checkout.ErrPaymentMismatch):
			writeConflict(w, "order already completed with a different payment")
		default:
			// 5xx tells the gateway to redeliver.
			h.logger.Error("webhook processing failed", zap.Error(err))
			writeInternal(w)
		}
		return
	}

	writeJSON(w, http.StatusOK, dto.WebhookResponse{Status: result.Outcome})
}
