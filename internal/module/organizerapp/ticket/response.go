package ticket

import (
	"time"

	customerTicket "github.com/stagepass/sp-ticketing/internal/module/customerapp/ticket"
)

type TicketResponse struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"orderId"`
	TierID          string     `json:"tierId"`
	EventID         string     `json:"eventId"`
	HolderName      string     `json:"holderName"`
	HolderEmail     string     `json:"holderEmail"`
	Status          string     `json:"status"`
	CheckedInAt     *time.Time `json:"checkedInAt,omitempty"`
	TransferredFrom *string    `json:"transferredFrom,omitempty"`
	TransferredTo   *string    `json:"transferredTo,omitempty"`
}

func (r *TicketResponse) PopulateFromEntity(t customerTicket.Ticket) {
	r.ID = t.ID
	r.OrderID = t.OrderID
	r.TierID = t.TierID
	r.EventID = t.EventID
	r.HolderName = t.HolderName
	r.HolderEmail = t.HolderEmail
	r.Status = t.Status
	r.CheckedInAt = t.CheckedInAt
	r.TransferredFrom = t.TransferredFrom
	r.TransferredTo = t.TransferredTo
}

type RefundTicketResponse struct {
	TicketID             string `json:"ticketId"`
	OrderID              string `json:"orderId"`
	RefundedAmount       int64  `json:"refundedAmount"`
	OrderRefundedAmount  int64  `json:"orderRefundedAmount"`
	OrderStatus          string `json:"orderStatus"`
	ProviderRefundID     string `json:"providerRefundId"`
	ProviderRefundStatus string `json:"providerRefundStatus"`
}
