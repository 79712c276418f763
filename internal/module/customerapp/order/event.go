package order

import "time"

const (
	TopicOrderPaid     = "sp-ticketing.order.paid"
	TopicOrderRefunded = "sp-ticketing.order.refunded"
)

type OrderPaidEvent struct {
	OrderID       string    `json:"orderId"`
	EventID       string    `json:"eventId"`
	CustomerEmail string    `json:"customerEmail"`
	TotalAmount   int64     `json:"totalAmount"`
	PaidAt        time.Time `json:"paidAt"`
}

type OrderRefundedEvent struct {
	OrderID        string    `json:"orderId"`
	EventID        string    `json:"eventId"`
	RefundedAmount int64     `json:"refundedAmount"`
	Status         string    `json:"status"`
	RefundedAt     time.Time `json:"refundedAt"`
}
