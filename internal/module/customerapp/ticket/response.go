package ticket

import "time"

type TicketResponse struct {
	ID             string     `json:"id"`
	OrderID        string     `json:"orderId"`
	TierID         string     `json:"tierId"`
	EventID        string     `json:"eventId"`
	HolderName     string     `json:"holderName"`
	HolderEmail    string     `json:"holderEmail"`
	ScanCredential string     `json:"scanCredential"`
	Status         string     `json:"status"`
	CheckedInAt    *time.Time `json:"checkedInAt,omitempty"`
}

func (r *TicketResponse) PopulateFromEntity(t Ticket) {
	r.ID = t.ID
	r.OrderID = t.OrderID
	r.TierID = t.TierID
	r.EventID = t.EventID
	r.HolderName = t.HolderName
	r.HolderEmail = t.HolderEmail
	r.ScanCredential = t.ScanCredential
	r.Status = t.Status
	r.CheckedInAt = t.CheckedInAt
}
