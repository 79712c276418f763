package order

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cloud.google.com/go/cloudtasks/apiv2/cloudtaskspb"
	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/module/customerapp/inventory"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/payvault"
	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/discount"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/internal/pkg/util"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/gctasks"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type OrderUseCase interface {
	PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error)
	GetOrder(ctx context.Context, ID string) (OrderResponse, error)
	GetManyOrder(ctx context.Context, req GetManyOrderRequest) (GetManyOrderResponse, error)
	SweepReservations(ctx context.Context) error
}

type orderUseCase struct {
	logger                *logrus.Logger
	timeout               time.Duration
	baseURL               string
	successURL            string
	cancelURL             string
	currency              string
	reservationTTL        time.Duration
	platformFeePercentage float64
	taxPercentage         float64
	tierStockRepository   inventory.TierStockRepository
	capacityLedger        inventory.CapacityLedger
	discountRepository    discount.DiscountRepository
	orderRepository       OrderRepository
	itemRepository        ItemRepository
	payvaultRepository    payvault.PayvaultRepository
	cloudTask             gctasks.Client
}

type OrderUseCaseProperty struct {
	Logger                *logrus.Logger
	Timeout               time.Duration
	BaseURL               string
	SuccessURL            string
	CancelURL             string
	Currency              string
	ReservationTTL        time.Duration
	PlatformFeePercentage float64
	TaxPercentage         float64
	TierStockRepository   inventory.TierStockRepository
	CapacityLedger        inventory.CapacityLedger
	DiscountRepository    discount.DiscountRepository
	OrderRepository       OrderRepository
	ItemRepository        ItemRepository
	PayvaultRepository    payvault.PayvaultRepository
	CloudTask             gctasks.Client
}

func NewOrderUseCase(props OrderUseCaseProperty) OrderUseCase {
	return &orderUseCase{
		logger:                props.Logger,
		timeout:               props.Timeout,
		baseURL:               props.BaseURL,
		successURL:            props.SuccessURL,
		cancelURL:             props.CancelURL,
		currency:              props.Currency,
		reservationTTL:        props.ReservationTTL,
		platformFeePercentage: props.PlatformFeePercentage,
		taxPercentage:         props.TaxPercentage,
		tierStockRepository:   props.TierStockRepository,
		capacityLedger:        props.CapacityLedger,
		discountRepository:    props.DiscountRepository,
		orderRepository:       props.OrderRepository,
		itemRepository:        props.ItemRepository,
		payvaultRepository:    props.PayvaultRepository,
		cloudTask:             props.CloudTask,
	}
}

// PlaceOrder implements OrderUseCase. Capacity is reserved first in its
// own short transaction so tier row locks are never held across the
// provider call; any failure afterwards releases the holds and otherwise
// the TTL sweep cleans up.
func (u *orderUseCase) PlaceOrder(ctx context.Context, req PlaceOrderRequest) (PlaceOrderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return PlaceOrderResponse{}, err
	}

	now := time.Now()
	orderID := util.GenerateTimestampWithPrefix("ORD")

	tx, err := u.orderRepository.BeginTx(ctx)
	if err != nil {
		return PlaceOrderResponse{}, err
	}

	var subtotal int64
	items := make([]Item, 0, len(req.Items))

	for _, ir := range req.Items {
		ts, err := u.tierStockRepository.FindByID(ctx, ir.TierID, tx)
		if err != nil {
			u.orderRepository.Rollback(ctx, tx)
			return PlaceOrderResponse{}, err
		}

		if ts.EventID != req.EventID {
			u.orderRepository.Rollback(ctx, tx)
			return PlaceOrderResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, fmt.Sprintf("tier '%s' does not belong to the event", ir.TierID))
		}

		if ts.MaxPerOrder != nil && ir.Quantity > *ts.MaxPerOrder {
			u.orderRepository.Rollback(ctx, tx)
			return PlaceOrderResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, fmt.Sprintf("tier '%s' allows at most %d per order", ir.TierID, *ts.MaxPerOrder))
		}

		if _, err := u.capacityLedger.Reserve(ctx, ir.TierID, ir.Quantity, orderID, tx); err != nil {
			u.orderRepository.Rollback(ctx, tx)
			return PlaceOrderResponse{}, err
		}

		subtotal += ts.UnitPrice * ir.Quantity

		items = append(items, Item{
			OrderID:   orderID,
			TierID:    ts.ID,
			TierName:  ts.Name,
			EventID:   ts.EventID,
			UnitPrice: ts.UnitPrice,
			Quantity:  ir.Quantity,
		})
	}

	if err := u.orderRepository.CommitTx(ctx, tx); err != nil {
		return PlaceOrderResponse{}, err
	}

	o := Order{
		ID:            orderID,
		EventID:       req.EventID,
		CustomerID:    acc.ID,
		CustomerName:  acc.Name,
		CustomerEmail: acc.Email,
		Status:        StatusPending,
		Subtotal:      subtotal,
		PlacedAt:      now,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if req.DiscountCode != "" {
		code := strings.ToUpper(req.DiscountCode)

		d, err := u.discountRepository.FindByEventIDAndCode(ctx, req.EventID, code, nil)
		if err != nil {
			u.capacityLedger.Release(ctx, orderID, nil)
			return PlaceOrderResponse{}, err
		}

		if !d.Redeemable(now) {
			u.capacityLedger.Release(ctx, orderID, nil)
			return PlaceOrderResponse{}, errors.New(http.StatusBadRequest, status.INVALID_DISCOUNT, fmt.Sprintf("discount code '%s' can no longer be redeemed", code))
		}

		o.DiscountCode = &code
		o.DiscountAmount = d.AmountFor(subtotal)
	}

	taxable := subtotal - o.DiscountAmount
	o.Tax = int64(float64(taxable) * u.taxPercentage / 100)
	o.PlatformFee = int64(float64(taxable) * u.platformFeePercentage / 100)
	o.TotalAmount = taxable + o.Tax + o.PlatformFee

	allocateShares(items, subtotal, o.Tax, o.PlatformFee)
	o.Items = items

	lineItems := make([]payvault.LineItem, len(items))
	for k, item := range items {
		lineItems[k] = payvault.LineItem{
			Name:      item.TierName,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}

	cs, err := u.payvaultRepository.CreateCheckoutSession(ctx, payvault.CreateCheckoutSessionRequest{
		ReferenceID: orderID,
		Amount:      o.TotalAmount,
		Currency:    u.currency,
		Items:       lineItems,
		SuccessURL:  u.successURL,
		CancelURL:   u.cancelURL,
	})
	if err != nil {
		u.capacityLedger.Release(ctx, orderID, nil)
		return PlaceOrderResponse{}, err
	}

	o.CheckoutSessionID = &cs.ID
	if cs.PaymentIntentID != "" {
		o.PaymentIntentID = &cs.PaymentIntentID
	}

	tx, err = u.orderRepository.BeginTx(ctx)
	if err != nil {
		u.capacityLedger.Release(ctx, orderID, nil)
		return PlaceOrderResponse{}, err
	}

	if err := u.orderRepository.Save(ctx, o, tx); err != nil {
		u.orderRepository.Rollback(ctx, tx)
		u.capacityLedger.Release(ctx, orderID, nil)
		return PlaceOrderResponse{}, err
	}

	for _, item := range o.Items {
		if err := u.itemRepository.Save(ctx, item, tx); err != nil {
			u.orderRepository.Rollback(ctx, tx)
			u.capacityLedger.Release(ctx, orderID, nil)
			return PlaceOrderResponse{}, err
		}
	}

	if err := u.orderRepository.CommitTx(ctx, tx); err != nil {
		u.capacityLedger.Release(ctx, orderID, nil)
		return PlaceOrderResponse{}, err
	}

	if u.cloudTask != nil {
		sweepAt := now.Add(u.reservationTTL + time.Minute)
		taskRequest := gctasks.Request{
			URL:    fmt.Sprintf("%s/sp-ticketing/v1/customerapp/reservations/on-sweep", u.baseURL),
			Method: cloudtaskspb.HttpMethod_POST,
		}
		u.cloudTask.DeferCreateTaskInTime("sweep-reservations", taskRequest, sweepAt)
	}

	resp := PlaceOrderResponse{}
	resp.PopulateFromEntity(o)
	resp.PaymentRedirectURL = cs.RedirectURL
	resp.PaymentClientSecret = cs.ClientSecret

	return resp, nil
}

// allocateShares splits the order level tax and platform fee across items
// proportionally to their subtotal share. The last item absorbs rounding
// remainders so the line shares always sum exactly to the order totals.
func allocateShares(items []Item, subtotal, tax, fee int64) {
	if subtotal == 0 || len(items) == 0 {
		return
	}

	var taxAllocated, feeAllocated int64

	for k := range items {
		if k == len(items)-1 {
			items[k].AllocatedTax = tax - taxAllocated
			items[k].AllocatedFee = fee - feeAllocated
			break
		}

		lineAmount := items[k].UnitPrice * items[k].Quantity
		items[k].AllocatedTax = tax * lineAmount / subtotal
		items[k].AllocatedFee = fee * lineAmount / subtotal

		taxAllocated += items[k].AllocatedTax
		feeAllocated += items[k].AllocatedFee
	}
}

// GetOrder implements OrderUseCase.
func (u *orderUseCase) GetOrder(ctx context.Context, ID string) (OrderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return OrderResponse{}, err
	}

	o, err := u.orderRepository.FindByID(ctx, ID, nil)
	if err != nil {
		return OrderResponse{}, err
	}

	if o.CustomerID != acc.ID {
		return OrderResponse{}, errors.New(http.StatusForbidden, status.FORBIDDEN, "order belongs to another customer")
	}

	items, err := u.itemRepository.FindManyByOrderID(ctx, ID, nil)
	if err != nil {
		return OrderResponse{}, err
	}
	o.Items = items

	resp := OrderResponse{}
	resp.PopulateFromEntity(o)

	return resp, nil
}

// GetManyOrder implements OrderUseCase.
func (u *orderUseCase) GetManyOrder(ctx context.Context, req GetManyOrderRequest) (GetManyOrderResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return GetManyOrderResponse{}, err
	}

	offset := (req.Page - 1) * req.Size

	orders, err := u.orderRepository.FindMany(ctx, acc.ID, offset, req.Size, nil)
	if err != nil {
		return GetManyOrderResponse{}, err
	}

	total, err := u.orderRepository.Count(ctx, acc.ID, nil)
	if err != nil {
		return GetManyOrderResponse{}, err
	}

	resp := GetManyOrderResponse{
		Orders: make([]OrderResponse, len(orders)),
		Total:  total,
	}
	for k, o := range orders {
		resp.Orders[k].PopulateFromEntity(o)
	}

	return resp, nil
}

// SweepReservations implements OrderUseCase. Invoked by the deferred cloud
// task and safe to invoke from cron as well.
func (u *orderUseCase) SweepReservations(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	_, err := u.capacityLedger.SweepExpired(ctx)

	return err
}
