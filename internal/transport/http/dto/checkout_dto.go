package dto

type CreateCheckoutSessionRequest struct {
	CourseID int64 `json:"courseId"`
}

type CreateCheckoutSessionResponse struct {
	Success  bool   `json:"success"`
	OrderID  string `json:"orderId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// VerifyPaymentRequest carries the fields Razorpay hands to the client after
// checkout. The snake_case names are the gateway's, not ours.
type VerifyPaymentRequest struct {
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpaySignature string `json:"razorpay_signature"`
	CourseID          int64  `json:"courseId"`
}

type VerifyPaymentResponse struct {
	Success          bool   `json:"success"`
	OrderID          string `json:"orderId"`
	PaymentID        string `json:"paymentId"`
	AlreadyCompleted bool   `json:"alreadyCompleted"`
}

type WebhookResponse struct {
	Status string `json:"status"`
}
