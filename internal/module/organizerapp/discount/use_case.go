package discount

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/module/organizerapp/event"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/internal/pkg/util"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type DiscountUseCase interface {
	CreateDiscount(ctx context.Context, req CreateDiscountRequest) (DiscountResponse, error)
	UpdateDiscount(ctx context.Context, req UpdateDiscountRequest) (DiscountResponse, error)
	ListDiscounts(ctx context.Context, eventID string) ([]DiscountResponse, error)
}

type discountUseCase struct {
	logger             *logrus.Logger
	timeout            time.Duration
	eventRepository    event.EventRepository
	discountRepository DiscountRepository
}

type DiscountUseCaseProperty struct {
	Logger             *logrus.Logger
	Timeout            time.Duration
	EventRepository    event.EventRepository
	DiscountRepository DiscountRepository
}

func NewDiscountUseCase(props DiscountUseCaseProperty) DiscountUseCase {
	return &discountUseCase{
		logger:             props.Logger,
		timeout:            props.Timeout,
		eventRepository:    props.EventRepository,
		discountRepository: props.DiscountRepository,
	}
}

// CreateDiscount implements DiscountUseCase.
func (u *discountUseCase) CreateDiscount(ctx context.Context, req CreateDiscountRequest) (DiscountResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return DiscountResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, req.EventID, acc.ID, nil); err != nil {
		return DiscountResponse{}, err
	}

	if req.EndsAt.Before(req.StartsAt) {
		return DiscountResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, "usage window ends before it starts")
	}

	now := time.Now()
	d := Discount{
		ID:        util.GenerateTimestampWithPrefix("DSC"),
		EventID:   req.EventID,
		Code:      strings.ToUpper(req.Code),
		Type:      req.Type,
		Value:     req.Value,
		StartsAt:  req.StartsAt,
		EndsAt:    req.EndsAt,
		MaxUses:   req.MaxUses,
		Active:    true,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := u.discountRepository.Save(ctx, d, nil); err != nil {
		return DiscountResponse{}, err
	}

	resp := DiscountResponse{}
	resp.PopulateFromEntity(d)

	return resp, nil
}

// UpdateDiscount implements DiscountUseCase.
func (u *discountUseCase) UpdateDiscount(ctx context.Context, req UpdateDiscountRequest) (DiscountResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return DiscountResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, req.EventID, acc.ID, nil); err != nil {
		return DiscountResponse{}, err
	}

	d, err := u.discountRepository.FindByEventIDAndCode(ctx, req.EventID, strings.ToUpper(req.Code), nil)
	if err != nil {
		return DiscountResponse{}, err
	}

	d.Type = req.Type
	d.Value = req.Value
	d.StartsAt = req.StartsAt
	d.EndsAt = req.EndsAt
	d.MaxUses = req.MaxUses
	d.Active = req.Active
	d.UpdatedAt = time.Now()

	if err := u.discountRepository.Update(ctx, d.ID, d, nil); err != nil {
		return DiscountResponse{}, err
	}

	resp := DiscountResponse{}
	resp.PopulateFromEntity(d)

	return resp, nil
}

// ListDiscounts implements DiscountUseCase.
func (u *discountUseCase) ListDiscounts(ctx context.Context, eventID string) ([]DiscountResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, eventID, acc.ID, nil); err != nil {
		return nil, err
	}

	discounts, err := u.discountRepository.FindManyByEventID(ctx, eventID, nil)
	if err != nil {
		return nil, err
	}

	resp := make([]DiscountResponse, len(discounts))
	for k, d := range discounts {
		resp[k].PopulateFromEntity(d)
	}

	return resp, nil
}
