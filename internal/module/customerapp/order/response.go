package order

import "time"

type ItemResponse struct {
	ID           int64  `json:"id"`
	TierID       string `json:"tierId"`
	TierName     string `json:"tierName"`
	UnitPrice    int64  `json:"unitPrice"`
	Quantity     int64  `json:"quantity"`
	AllocatedTax int64  `json:"allocatedTax"`
	AllocatedFee int64  `json:"allocatedFee"`
}

type OrderResponse struct {
	ID             string         `json:"id"`
	EventID        string         `json:"eventId"`
	Status         string         `json:"status"`
	DiscountCode   *string        `json:"discountCode,omitempty"`
	Subtotal       int64          `json:"subtotal"`
	DiscountAmount int64          `json:"discountAmount"`
	PlatformFee    int64          `json:"platformFee"`
	Tax            int64          `json:"tax"`
	TotalAmount    int64          `json:"totalAmount"`
	RefundedAmount int64          `json:"refundedAmount"`
	Items          []ItemResponse `json:"items,omitempty"`
	PlacedAt       time.Time      `json:"placedAt"`
	RefundedAt     *time.Time     `json:"refundedAt,omitempty"`
}

func (r *OrderResponse) PopulateFromEntity(o Order) {
	r.ID = o.ID
	r.EventID = o.EventID
	r.Status = o.Status
	r.DiscountCode = o.DiscountCode
	r.Subtotal = o.Subtotal
	r.DiscountAmount = o.DiscountAmount
	r.PlatformFee = o.PlatformFee
	r.Tax = o.Tax
	r.TotalAmount = o.TotalAmount
	r.RefundedAmount = o.RefundedAmount
	r.PlacedAt = o.PlacedAt
	r.RefundedAt = o.RefundedAt

	if len(o.Items) > 0 {
		r.Items = make([]ItemResponse, len(o.Items))
		for k, item := range o.Items {
			r.Items[k] = ItemResponse{
				ID:           item.ID,
				TierID:       item.TierID,
				TierName:     item.TierName,
				UnitPrice:    item.UnitPrice,
				Quantity:     item.Quantity,
				AllocatedTax: item.AllocatedTax,
				AllocatedFee: item.AllocatedFee,
			}
		}
	}
}

type PlaceOrderResponse struct {
	OrderResponse
	PaymentRedirectURL  string `json:"paymentRedirectUrl"`
	PaymentClientSecret string `json:"paymentClientSecret,omitempty"`
}

type GetManyOrderResponse struct {
	Orders []OrderResponse `json:"orders"`
	Total  int64           `json:"total"`
}
