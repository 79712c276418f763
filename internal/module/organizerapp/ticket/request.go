package ticket

type RefundTicketRequest struct {
	TicketID string `json:"-"`
	Amount   int64  `json:"amount" validate:"gte=0"`
	Reason   string `json:"reason" validate:"required,max=255"`
}

type TransferTicketRequest struct {
	TicketID    string `json:"-"`
	HolderName  string `json:"holderName" validate:"required,max=255"`
	HolderEmail string `json:"holderEmail" validate:"required,email"`
}

type CheckInTicketRequest struct {
	ScanCredential string `json:"scanCredential" validate:"required"`
}
