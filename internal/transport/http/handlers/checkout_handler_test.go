package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"

	gw "github.com/rsharma/courselane/internal/infra/razorpay"
	"github.com/rsharma/courselane/internal/pkg/signature"
	pgrepo "github.com/rsharma/courselane/internal/repo/postgres"
	"github.com/rsharma/courselane/internal/services/auth"
	"github.com/rsharma/courselane/internal/services/checkout"
)

const (
	testKeySecret     = "handler-key-secret"
	testWebhookSecret = "handler-webhook-secret"
)

type gatewayStub struct{}

func (gatewayStub) CreateOrder(_ context.Context, amount int64, currency, _ string, _ map[string]interface{}) (gw.Order, error) {
	return gw.Order{ID: "order_A1", Amount: amount, Currency: currency}, nil
}

type purchaseStoreStub struct {
	purchases map[string]pgrepo.PurchaseRecord
}

func (s *purchaseStoreStub) Create(_ context.Context, rec pgrepo.PurchaseRecord) (pgrepo.PurchaseRecord, error) {
	s.purchases[rec.OrderID] = rec
	return rec, nil
}

func (s *purchaseStoreStub) FindByOrderID(_ context.Context, orderID string) (pgrepo.PurchaseRecord, error) {
	rec, ok := s.purchases[orderID]
	if !ok {
		return pgrepo.PurchaseRecord{}, pgrepo.ErrPurchaseNotFound
	}
	return rec, nil
}

func (s *purchaseStoreStub) MarkCompleted(_ context.Context, orderID, paymentID string) (pgrepo.PurchaseRecord, bool, error) {
	rec, ok := s.purchases[orderID]
	if !ok {
		return pgrepo.PurchaseRecord{}, false, pgrepo.ErrPurchaseNotFound
	}
	if rec.Status != pgrepo.StatusPending {
		if rec.Status == pgrepo.StatusCompleted && rec.PaymentID != nil && *rec.PaymentID == paymentID {
			return rec, false, nil
		}
		return pgrepo.PurchaseRecord{}, false, pgrepo.ErrPaymentMismatch
	}
	rec.Status = pgrepo.StatusCompleted
	rec.PaymentID = &paymentID
	s.purchases[orderID] = rec
	return rec, true, nil
}

type courseStoreStub struct{}

func (courseStoreStub) FindByID(_ context.Context, courseID int64) (pgrepo.CourseRecord, error) {
	if courseID != 101 {
		return pgrepo.CourseRecord{}, pgrepo.ErrCourseNotFound
	}
	return pgrepo.CourseRecord{ID: 101, Title: "Go from Scratch", CreatorID: 9, PriceINR: 4999}, nil
}

type enrollmentStoreStub struct {
	enrolled map[string]bool
}

func (s *enrollmentStoreStub) Enroll(_ context.Context, userID, courseID int64) error {
	s.enrolled[fmt.Sprintf("%d:%d", userID, courseID)] = true
	return nil
}

func (s *enrollmentStoreStub) IsEnrolled(_ context.Context, userID, courseID int64) (bool, error) {
	return s.enrolled[fmt.Sprintf("%d:%d", userID, courseID)], nil
}

type deduperStub struct{ seen map[string]bool }

func (s *deduperStub) MarkEventSeen(_ context.Context, eventID string, _ time.Duration) (bool, error) {
	if s.seen[eventID] {
		return false, nil
	}
	s.seen[eventID] = true
	return true, nil
}

type deadLetterStub struct{ count int }

func (s *deadLetterStub) RecordDeadLetter(_ context.Context, _ pgrepo.DeadLetterEvent) error {
	s.count++
	return nil
}

func newCheckoutHandler(t *testing.T) (*CheckoutHandler, *purchaseStoreStub) {
	t.Helper()

	purchases := &purchaseStoreStub{purchases: make(map[string]pgrepo.PurchaseRecord)}
	svc := checkout.NewService(checkout.Dependencies{
		Gateway:     gatewayStub{},
		Purchases:   purchases,
		Courses:     courseStoreStub{},
		Enrollments: &enrollmentStoreStub{enrolled: make(map[string]bool)},
		Deduper:     &deduperStub{seen: make(map[string]bool)},
		DeadLetters: &deadLetterStub{},
		Logger:      zap.NewNop(),
	}, checkout.Config{
		KeySecret:     testKeySecret,
		WebhookSecret: testWebhookSecret,
		Currency:      "INR",
	})

	return NewCheckoutHandler(svc, zap.NewNop()), purchases
}

func authed(r *http.Request) *http.Request {
	return r.WithContext(auth.WithIdentity(r.Context(), auth.Identity{UserID: 42, Role: "STUDENT"}))
}

func TestCreateSessionHandler(t *testing.T) {
	handler, purchases := newCheckoutHandler(t)

	req := authed(httptest.NewRequest(http.MethodPost, "/checkout/create-checkout-session",
		bytes.NewBufferString(`{"courseId":101}`)))
	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Success  bool   `json:"success"`
		OrderID  string `json:"orderId"`
		Amount   int64  `json:"amount"`
		Currency string `json:"currency"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.OrderID != "order_A1" || resp.Amount != 499900 || resp.Currency != "INR" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	if _, ok := purchases.purchases["order_A1"]; !ok {
		t.Fatalf("pending purchase was not persisted")
	}
}

func TestCreateSessionHandlerRequiresAuth(t *testing.T) {
	handler, _ := newCheckoutHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/checkout/create-checkout-session",
		bytes.NewBufferString(`{"courseId":101}`))
	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestCreateSessionHandlerUnknownCourse(t *testing.T) {
	handler, _ := newCheckoutHandler(t)

	req := authed(httptest.NewRequest(http.MethodPost, "/checkout/create-checkout-session",
		bytes.NewBufferString(`{"courseId":999}`)))
	rec := httptest.NewRecorder()
	handler.CreateSession(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestVerifyHandler(t *testing.T) {
	handler, purchases := newCheckoutHandler(t)
	purchases.purchases["order_A1"] = pgrepo.PurchaseRecord{
		OrderID: "order_A1", CourseID: 101, UserID: 42,
		AmountMinor: 499900, Currency: "INR", Status: pgrepo.StatusPending,
	}

	sig := signature.Sign(signature.PaymentMessage("order_A1", "pay_B2"), testKeySecret)
	body := fmt.Sprintf(
		`{"razorpay_order_id":"order_A1","razorpay_payment_id":"pay_B2","razorpay_signature":%q,"courseId":101}`,
		sig)

	req := authed(httptest.NewRequest(http.MethodPost, "/payment/verify", bytes.NewBufferString(body)))
	rec := httptest.NewRecorder()
	handler.Verify(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	if got := purchases.purchases["order_A1"].Status; got != pgrepo.StatusCompleted {
		t.Fatalf("purchase not completed, status=%s", got)
	}
}

func TestVerifyHandlerRejectsBadSignature(t *testing.T) {
	handler, purchases := newCheckoutHandler(t)
	purchases.purchases["order_A1"] = pgrepo.PurchaseRecord{
		OrderID: "order_A1", CourseID: 101, UserID: 42,
		AmountMinor: 499900, Currency: "INR", Status: pgrepo.StatusPending,
	}

	body := `{"razorpay_order_id":"order_A1","razorpay_payment_id":"pay_B2","razorpay_signature":"deadbeef","courseId":101}`
	req := authed(httptest.NewRequest(http.MethodPost, "/payment/verify", bytes.NewBufferString(body)))
	rec := httptest.NewRecorder()
	handler.Verify(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if got := purchases.purchases["order_A1"].Status; got != pgrepo.StatusPending {
		t.Fatalf("record mutated on bad signature, status=%s", got)
	}
}

func TestWebhookHandlerProcessesCapturedEvent(t *testing.T) {
	handler, purchases := newCheckoutHandler(t)
	purchases.purchases["order_A1"] = pgrepo.PurchaseRecord{
		OrderID: "order_A1", CourseID: 101, UserID: 42,
		AmountMinor: 499900, Currency: "INR", Status: pgrepo.StatusPending,
	}

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_B2","order_id":"order_A1"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBuffer(body))
	req.Header.Set("X-Razorpay-Signature", signature.Sign(body, testWebhookSecret))
	req.Header.Set("X-Razorpay-Event-Id", "evt_1")
	rec := httptest.NewRecorder()
	handler.Webhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unexpected status %d: %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "processed" {
		t.Fatalf("unexpected outcome: %s", resp.Status)
	}
	if got := purchases.purchases["order_A1"].Status; got != pgrepo.StatusCompleted {
		t.Fatalf("purchase not completed, status=%s", got)
	}
}

func TestWebhookHandlerRejectsBadSignature(t *testing.T) {
	handler, _ := newCheckoutHandler(t)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_B2","order_id":"order_A1"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBuffer(body))
	req.Header.Set("X-Razorpay-Signature", signature.Sign(body, "wrong-secret"))
	rec := httptest.NewRecorder()
	handler.Webhook(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestWebhookHandlerAcksUnknownOrder(t *testing.T) {
	handler, _ := newCheckoutHandler(t)

	body := []byte(`{"event":"payment.captured","payload":{"payment":{"entity":{"id":"pay_B2","order_id":"order_ghost"}}}}`)
	req := httptest.NewRequest(http.MethodPost, "/webhook", bytes.NewBuffer(body))
	req.Header.Set("X-Razorpay-Signature", signature.Sign(body, testWebhookSecret))
	req.Header.Set("X-Razorpay-Event-Id", "evt_2")
	rec := httptest.NewRecorder()
	handler.Webhook(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("unknown order must still ack with 200, got %d", rec.Code)
	}
	var resp struct {
		Status string `json:"status"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Status != "unmatched" {
		t.Fatalf("unexpected outcome: %s", resp.Status)
	}
}
