package ticket

import "time"

const (
	StatusValid       = "VALID"
	StatusUsed        = "USED"
	StatusRefunded    = "REFUNDED"
	StatusTransferred = "TRANSFERRED"
	StatusCanceled    = "CANCELED"
)

// Ticket is one admitted unit. ID doubles as the human readable serial
// printed on the ticket; ScanCredential is the opaque value encoded into
// the QR code and must stay unguessable.
type Ticket struct {
	ID              string
	OrderItemID     int64
	OrderID         string
	TierID          string
	EventID         string
	HolderName      string
	HolderEmail     string
	ScanCredential  string
	Status          string
	CheckedInAt     *time.Time
	CheckedInBy     *int64
	TransferredFrom *string
	TransferredTo   *string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
