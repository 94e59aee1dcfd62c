// Package checkout owns the purchase lifecycle: order initiation against the
// payment gateway and reconciliation of gateway outcomes into purchase and
// enrollment state.
//
// Reconciliation is reachable from two independent triggers, the client
// redirect verification call and the gateway webhook. They may fire in either
// order, twice, or concurrently; correctness rests on the store's conditional
// pending→completed update and on enrollment being a set union.
package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	gw "github.com/rsharma/courselane/internal/infra/razorpay"
	"github.com/rsharma/courselane/internal/pkg/signature"
	pgrepo "github.com/rsharma/courselane/internal/repo/postgres"
)

var (
	ErrValidation         = errors.New("validation error")
	ErrCourseNotFound     = errors.New("course not found")
	ErrPurchaseNotFound   = errors.New("purchase not found")
	ErrInvalidSignature   = errors.New("invalid signature")
	ErrGatewayUnavailable = errors.New("payment gateway unavailable")
	ErrPaymentMismatch    = errors.New("payment id mismatch")
)

const (
	eventPaymentCaptured = "payment.captured"

	triggerClient  = "client_redirect"
	triggerWebhook = "webhook"
)

// Webhook handling outcomes. All of them are acknowledged with 200 so the
// gateway stops redelivering; only hard failures surface as errors.
const (
	OutcomeProcessed = "processed"
	OutcomeIgnored   = "ignored"
	OutcomeDuplicate = "duplicate"
	OutcomeUnmatched = "unmatched"
)

type Gateway interface {
	CreateOrder(ctx context.Context, amount int64, currency, receipt string, notes map[string]interface{}) (gw.Order, error)
}

type PurchaseStore interface {
	Create(ctx context.Context, rec pgrepo.PurchaseRecord) (pgrepo.PurchaseRecord, error)
	FindByOrderID(ctx context.Context, orderID string) (pgrepo.PurchaseRecord, error)
	MarkCompleted(ctx context.Context, orderID, paymentID string) (pgrepo.PurchaseRecord, bool, error)
}

type CourseStore interface {
	FindByID(ctx context.Context, courseID int64) (pgrepo.CourseRecord, error)
}

type EnrollmentStore interface {
	Enroll(ctx context.Context, userID, courseID int64) error
	IsEnrolled(ctx context.Context, userID, courseID int64) (bool, error)
}

type EventDeduper interface {
	MarkEventSeen(ctx context.Context, eventID string, ttl time.Duration) (bool, error)
}

type DeadLetterStore interface {
	RecordDeadLetter(ctx context.Context, event pgrepo.DeadLetterEvent) error
}

type Service struct {
	gateway     Gateway
	purchases   PurchaseStore
	courses     CourseStore
	enrollments EnrollmentStore
	deduper     EventDeduper
	deadLetters DeadLetterStore
	log         *zap.Logger

	keySecret     string
	webhookSecret string
	currency      string
	receiptPrefix string
	dedupTTL      time.Duration

	newReceiptToken func() string
}

type Dependencies struct {
	Gateway     Gateway
	Purchases   PurchaseStore
	Courses     CourseStore
	Enrollments EnrollmentStore
	Deduper     EventDeduper
	DeadLetters DeadLetterStore
	Logger      *zap.Logger
}

type Config struct {
	KeySecret     string
	WebhookSecret string
	Currency      string
	ReceiptPrefix string
	EventDedupTTL time.Duration
}

type SessionResult struct {
	OrderID     string
	AmountMinor int64
	Currency    string
}

type VerifyInput struct {
	OrderID   string
	PaymentID string
	Signature string
	CourseID  int64
}

type ReconcileResult struct {
	Purchase         pgrepo.PurchaseRecord
	AlreadyCompleted bool
}

type WebhookResult struct {
	Outcome          string
	EventType        string
	OrderID          string
	PaymentID        string
	AlreadyCompleted bool
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

func NewService(deps Dependencies, cfg Config) *Service {
	log := deps.Logger
	if log == nil {
		log = zap.NewNop()
	}

	currency := strings.ToUpper(strings.TrimSpace(cfg.Currency))
	if currency == "" {
		currency = "INR"
	}
	receiptPrefix := strings.TrimSpace(cfg.ReceiptPrefix)
	if receiptPrefix == "" {
		receiptPrefix = "rcpt"
	}
	dedupTTL := cfg.EventDedupTTL
	if dedupTTL <= 0 {
		dedupTTL = 48 * time.Hour
	}

	return &Service{
		gateway:         deps.Gateway,
		purchases:       deps.Purchases,
		courses:         deps.Courses,
		enrollments:     deps.Enrollments,
		deduper:         deps.Deduper,
		deadLetters:     deps.DeadLetters,
		log:             log,
		keySecret:       cfg.KeySecret,
		webhookSecret:   cfg.WebhookSecret,
		currency:        currency,
		receiptPrefix:   receiptPrefix,
		dedupTTL:        dedupTTL,
		newReceiptToken: uuid.NewString,
	}
}

// CreateSession looks up the course, registers an order with the gateway and
// persists the pending purchase record. The durable write happens only after
// the gateway call succeeds, so a gateway failure leaves no orphaned record.
func (s *Service) CreateSession(ctx context.Context, userID, courseID int64) (SessionResult, error) {
	if userID <= 0 || courseID <= 0 {
		return SessionResult{}, ErrValidation
	}
	if s.gateway == nil || s.purchases == nil || s.courses == nil {
		return SessionResult{}, fmt.Errorf("checkout dependencies are not configured")
	}

	course, err := s.courses.FindByID(ctx, courseID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrCourseNotFound) {
			return SessionResult{}, ErrCourseNotFound
		}
		return SessionResult{}, err
	}
	if course.PriceINR <= 0 {
		return SessionResult{}, ErrValidation
	}

	amountMinor := course.PriceINR * 100
	receipt := s.receiptPrefix + "_" + s.newReceiptToken()
	notes := map[string]interface{}{
		"courseId":    strconv.FormatInt(course.ID, 10),
		"userId":      strconv.FormatInt(userID, 10),
		"courseTitle": course.Title,
	}
	if course.ThumbnailKey != nil {
		notes["courseThumbnail"] = *course.ThumbnailKey
	}

	order, err := s.gateway.CreateOrder(ctx, amountMinor, s.currency, receipt, notes)
	if err != nil {
		s.log.Error("gateway order creation failed",
			zap.Int64("course_id", courseID),
			zap.Int64("user_id", userID),
			zap.Error(err),
		)
		return SessionResult{}, fmt.Errorf("%w: %v", ErrGatewayUnavailable, err)
	}

	if _, err := s.purchases.Create(ctx, pgrepo.PurchaseRecord{
		OrderID:     order.ID,
		CourseID:    course.ID,
		UserID:      userID,
		AmountMinor: amountMinor,
		Currency:    s.currency,
		Status:      pgrepo.StatusPending,
	}); err != nil {
		// The gateway order exists but the local record does not. The webhook
		// for this order will dead-letter; surfacing the error lets the
		// client retry with a fresh order.
		s.log.Error("persist pending purchase failed",
			zap.String("order_id", order.ID),
			zap.Error(err),
		)
		return SessionResult{}, err
	}

	s.log.Info("checkout session created",
		zap.String("order_id", order.ID),
		zap.Int64("course_id", course.ID),
		zap.Int64("user_id", userID),
		zap.Int64("amount_minor", amountMinor),
	)

	return SessionResult{
		OrderID:     order.ID,
		AmountMinor: amountMinor,
		Currency:    s.currency,
	}, nil
}

// VerifyPayment is the client-redirect trigger. The signature covers
// "order_id|payment_id" under the API key secret; nothing is mutated unless
// it checks out.
func (s *Service) VerifyPayment(ctx context.Context, in VerifyInput) (ReconcileResult, error) {
	orderID := strings.TrimSpace(in.OrderID)
	paymentID := strings.TrimSpace(in.PaymentID)
	sig := strings.TrimSpace(in.Signature)
	if orderID == "" || paymentID == "" || sig == "" {
		return ReconcileResult{}, ErrValidation
	}

	if !signature.Verify(signature.PaymentMessage(orderID, paymentID), sig, s.keySecret) {
		s.log.Warn("client redirect signature rejected", zap.String("order_id", orderID))
		return ReconcileResult{}, ErrInvalidSignature
	}

	result, err := s.reconcile(ctx, triggerClient, orderID, paymentID)
	if err != nil {
		return ReconcileResult{}, err
	}

	if in.CourseID > 0 && result.Purchase.CourseID != in.CourseID {
		s.log.Warn("verify payment course mismatch",
			zap.String("order_id", orderID),
			zap.Int64("session_course_id", in.CourseID),
			zap.Int64("record_course_id", result.Purchase.CourseID),
		)
	}

	return result, nil
}

// HandleWebhook is the asynchronous trigger. body must be the raw request
// bytes; the signature is computed over them verbatim.
func (s *Service) HandleWebhook(ctx context.Context, body []byte, sig, eventID string) (WebhookResult, error) {
	if len(body) == 0 {
		return WebhookResult{}, ErrValidation
	}

	if !signature.Verify(body, strings.TrimSpace(sig), s.webhookSecret) {
		s.log.Warn("webhook signature rejected", zap.String("event_id", eventID))
		return WebhookResult{}, ErrInvalidSignature
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return WebhookResult{}, fmt.Errorf("%w: malformed webhook body", ErrValidation)
	}

	if event.Event != eventPaymentCaptured {
		s.log.Debug("webhook event ignored", zap.String("event", event.Event))
		return WebhookResult{Outcome: OutcomeIgnored, EventType: event.Event}, nil
	}

	paymentID := strings.TrimSpace(event.Payload.Payment.Entity.ID)
	orderID := strings.TrimSpace(event.Payload.Payment.Entity.OrderID)
	if paymentID == "" || orderID == "" {
		return WebhookResult{}, fmt.Errorf("%w: captured event missing payment identifiers", ErrValidation)
	}

	result := WebhookResult{
		Outcome:   OutcomeProcessed,
		EventType: event.Event,
		OrderID:   orderID,
		PaymentID: paymentID,
	}

	reconciled, err := s.reconcile(ctx, triggerWebhook, orderID, paymentID)
	if err != nil {
		if errors.Is(err, ErrPurchaseNotFound) {
			s.deadLetter(ctx, eventID, event.Event, orderID, paymentID, body)
			result.Outcome = OutcomeUnmatched
			s.markEventSeen(ctx, eventID)
			return result, nil
		}
		// Signature already verified; the failure is persistence-side. The
		// caller responds 5xx so the gateway redelivers. The event id is NOT
		// marked seen here: the redelivery must run reconciliation again.
		return WebhookResult{}, err
	}

	result.AlreadyCompleted = reconciled.AlreadyCompleted
	if !s.markEventSeen(ctx, eventID) {
		result.Outcome = OutcomeDuplicate
	}
	return result, nil
}

// markEventSeen records the event id once the delivery is fully handled and
// reports whether this was the first such delivery. Marking any earlier would
// let a redelivery of a failed delivery be acked as a duplicate with the work
// unfinished. Best effort: a dedupe outage degrades to reporting first-seen,
// which the idempotent reconciliation absorbs.
func (s *Service) markEventSeen(ctx context.Context, eventID string) bool {
	if s.deduper == nil || strings.TrimSpace(eventID) == "" {
		return true
	}
	firstSeen, err := s.deduper.MarkEventSeen(ctx, eventID, s.dedupTTL)
	if err != nil {
		s.log.Warn("webhook dedupe unavailable", zap.String("event_id", eventID), zap.Error(err))
		return true
	}
	return firstSeen
}

// reconcile is the single state machine behind both triggers: conditional
// pending→completed transition, then idempotent enrollment.
func (s *Service) reconcile(ctx context.Context, trigger, orderID, paymentID string) (ReconcileResult, error) {
	if s.purchases == nil || s.enrollments == nil {
		return ReconcileResult{}, fmt.Errorf("checkout dependencies are not configured")
	}

	rec, err := s.purchases.FindByOrderID(ctx, orderID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return ReconcileResult{}, ErrPurchaseNotFound
		}
		return ReconcileResult{}, err
	}

	if rec.Status == pgrepo.StatusCompleted {
		if rec.PaymentID == nil || *rec.PaymentID != paymentID {
			return ReconcileResult{}, ErrPaymentMismatch
		}
		// Completed earlier; only re-apply enrollment if the previous trigger
		// failed between the status write and the enrollment write.
		enrolled, err := s.enrollments.IsEnrolled(ctx, rec.UserID, rec.CourseID)
		if err != nil {
			return ReconcileResult{}, err
		}
		if !enrolled {
			if err := s.enrollments.Enroll(ctx, rec.UserID, rec.CourseID); err != nil {
				return ReconcileResult{}, err
			}
		}
		return ReconcileResult{Purchase: rec, AlreadyCompleted: true}, nil
	}

	updated, changed, err := s.purchases.MarkCompleted(ctx, orderID, paymentID)
	if err != nil {
		if errors.Is(err, pgrepo.ErrPurchaseNotFound) {
			return ReconcileResult{}, ErrPurchaseNotFound
		}
		if errors.Is(err, pgrepo.ErrPaymentMismatch) {
			return ReconcileResult{}, ErrPaymentMismatch
		}
		return ReconcileResult{}, err
	}

	if err := s.enrollments.Enroll(ctx, updated.UserID, updated.CourseID); err != nil {
		// Status is durably completed but enrollment is not; the error makes
		// the trigger retry, and the already-completed path above finishes
		// the enrollment on the next attempt.
		s.log.Error("enrollment failed after completion",
			zap.String("order_id", orderID),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
		return ReconcileResult{}, err
	}

	s.log.Info("purchase reconciled",
		zap.String("order_id", orderID),
		zap.String("payment_id", paymentID),
		zap.String("trigger", trigger),
		zap.Bool("already_completed", !changed),
	)

	return ReconcileResult{Purchase: updated, AlreadyCompleted: !changed}, nil
}

func (s *Service) deadLetter(ctx context.Context, eventID, eventType, orderID, paymentID string, body []byte) {
	s.log.Warn("webhook for unknown purchase",
		zap.String("event_id", eventID),
		zap.String("order_id", orderID),
	)
	if s.deadLetters == nil {
		return
	}
	if err := s.deadLetters.RecordDeadLetter(ctx, pgrepo.DeadLetterEvent{
		EventID:   eventID,
		EventType: eventType,
		OrderID:   orderID,
		PaymentID: paymentID,
		RawBody:   body,
	}); err != nil {
		s.log.Error("record webhook dead letter failed", zap.String("order_id", orderID), zap.Error(err))
	}
}
