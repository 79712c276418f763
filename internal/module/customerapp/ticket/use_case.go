package ticket

import (
	"context"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type TicketUseCase interface {
	GetManyTicketByOrderID(ctx context.Context, orderID string) ([]TicketResponse, error)
}

type ticketUseCase struct {
	logger           *logrus.Logger
	timeout          time.Duration
	ticketRepository TicketRepository
	orderRepository  order.OrderRepository
}

type TicketUseCaseProperty struct {
	Logger           *logrus.Logger
	Timeout          time.Duration
	TicketRepository TicketRepository
	OrderRepository  order.OrderRepository
}

func NewTicketUseCase(props TicketUseCaseProperty) TicketUseCase {
	return &ticketUseCase{
		logger:           props.Logger,
		timeout:          props.Timeout,
		ticketRepository: props.TicketRepository,
		orderRepository:  props.OrderRepository,
	}
}

// GetManyTicketByOrderID implements TicketUseCase.
func (u *ticketUseCase) GetManyTicketByOrderID(ctx context.Context, orderID string) ([]TicketResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	o, err := u.orderRepository.FindByID(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}

	if o.CustomerID != acc.ID {
		return nil, errors.New(http.StatusForbidden, status.FORBIDDEN, "order belongs to another customer")
	}

	tickets, err := u.ticketRepository.FindManyByOrderID(ctx, orderID, nil)
	if err != nil {
		return nil, err
	}

	resp := make([]TicketResponse, len(tickets))
	for k, t := range tickets {
		resp[k].PopulateFromEntity(t)
	}

	return resp, nil
}
