package dto

import "time"

type DeadLetterEventResponse struct {
	ID        int64     `json:"id"`
	EventID   string    `json:"eventId"`
	EventType string    `json:"eventType"`
	OrderID   string    `json:"orderId"`
	PaymentID string    `json:"paymentId"`
	CreatedAt time.Time `json:"createdAt"`
}

type DeadLetterEventsResponse struct {
	Events []DeadLetterEventResponse `json:"events"`
}
