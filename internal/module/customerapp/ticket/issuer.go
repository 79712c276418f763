package ticket

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/pkg/util"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

// Issuer mints tickets for paid orders. IssueForOrder is idempotent: the
// per-item count guard means a redelivered webhook can invoke it again
// without minting duplicates.
type Issuer interface {
	IssueForOrder(ctx context.Context, o order.Order, tx *sql.Tx) ([]Ticket, error)
}

type issuer struct {
	logger           *logrus.Logger
	ticketRepository TicketRepository
}

type IssuerProperty struct {
	Logger           *logrus.Logger
	TicketRepository TicketRepository
}

func NewIssuer(props IssuerProperty) Issuer {
	return &issuer{
		logger:           props.Logger,
		ticketRepository: props.TicketRepository,
	}
}

// IssueForOrder implements Issuer. Must only be called once the order has
// reached PAID; a pending or failed order never gets tickets.
func (i *issuer) IssueForOrder(ctx context.Context, o order.Order, tx *sql.Tx) ([]Ticket, error) {
	if o.Status != order.StatusPaid {
		return nil, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("order '%s' is not paid", o.ID))
	}

	now := time.Now()
	var issued []Ticket

	for _, item := range o.Items {
		existing, err := i.ticketRepository.CountByOrderItemID(ctx, item.ID, tx)
		if err != nil {
			return nil, err
		}

		if existing >= item.Quantity {
			continue
		}

		for n := existing; n < item.Quantity; n++ {
			t := Ticket{
				ID:             util.GenerateTimestampWithPrefix("TKT"),
				OrderItemID:    item.ID,
				OrderID:        o.ID,
				TierID:         item.TierID,
				EventID:        o.EventID,
				HolderName:     o.CustomerName,
				HolderEmail:    o.CustomerEmail,
				ScanCredential: util.GenerateScanCredential(),
				Status:         StatusValid,
				CreatedAt:      now,
				UpdatedAt:      now,
			}

			if err := i.ticketRepository.Save(ctx, t, tx); err != nil {
				return nil, err
			}

			issued = append(issued, t)
		}
	}

	return issued, nil
}
