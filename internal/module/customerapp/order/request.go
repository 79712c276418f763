package order

type PlaceOrderItemRequest struct {
	TierID   string `json:"tierId" validate:"required"`
	Quantity int64  `json:"quantity" validate:"required,gt=0"`
}

type PlaceOrderRequest struct {
	EventID      string                  `json:"eventId" validate:"required"`
	DiscountCode string                  `json:"discountCode" validate:"omitempty,max=64"`
	Items        []PlaceOrderItemRequest `json:"items" validate:"required,min=1,dive"`
}

type GetManyOrderRequest struct {
	Page int64 `validate:"gte=1"`
	Size int64 `validate:"gte=1,lte=100"`
}
