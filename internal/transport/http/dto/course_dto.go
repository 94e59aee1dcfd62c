package dto

import "time"

type CourseDetailResponse struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle,omitempty"`
	CreatorID    int64     `json:"creatorId"`
	PriceINR     int64     `json:"price"`
	ThumbnailURL string    `json:"thumbnailUrl,omitempty"`
	Students     int64     `json:"students"`
	CreatedAt    time.Time `json:"createdAt"`
	Purchased    bool      `json:"purchased"`
}

type PurchasedCourseResponse struct {
	OrderID     string    `json:"orderId"`
	CourseID    int64     `json:"courseId"`
	CourseTitle string    `json:"courseTitle"`
	Amount      int64     `json:"amount"`
	Currency    string    `json:"currency"`
	PaymentID   string    `json:"paymentId"`
	CompletedAt time.Time `json:"completedAt"`
}

type PurchasedCoursesResponse struct {
	Purchases []PurchasedCourseResponse `json:"purchases"`
}
