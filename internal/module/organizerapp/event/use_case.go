package event

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/internal/pkg/util"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type EventUseCase interface {
	CreateEvent(ctx context.Context, req CreateEventRequest) (EventResponse, error)
	CreateTier(ctx context.Context, req CreateTierRequest) (TierResponse, error)
	UpdateTier(ctx context.Context, req UpdateTierRequest) (TierResponse, error)
	ArchiveTier(ctx context.Context, eventID, tierID string) error
	ListTiers(ctx context.Context, eventID string) ([]TierResponse, error)
}

type eventUseCase struct {
	logger          *logrus.Logger
	timeout         time.Duration
	eventRepository EventRepository
	tierRepository  TierRepository
}

type EventUseCaseProperty struct {
	Logger          *logrus.Logger
	Timeout         time.Duration
	EventRepository EventRepository
	TierRepository  TierRepository
}

func NewEventUseCase(props EventUseCaseProperty) EventUseCase {
	return &eventUseCase{
		logger:          props.Logger,
		timeout:         props.Timeout,
		eventRepository: props.EventRepository,
		tierRepository:  props.TierRepository,
	}
}

// CreateEvent implements EventUseCase.
func (u *eventUseCase) CreateEvent(ctx context.Context, req CreateEventRequest) (EventResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return EventResponse{}, err
	}

	now := time.Now()
	e := Event{
		ID:          util.GenerateTimestampWithPrefix("EVT"),
		OrganizerID: acc.ID,
		Name:        req.Name,
		Venue:       req.Venue,
		StartsAt:    req.StartsAt,
		Status:      EventStatusDraft,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := u.eventRepository.Save(ctx, e, nil); err != nil {
		return EventResponse{}, err
	}

	resp := EventResponse{}
	resp.PopulateFromEntity(e)

	return resp, nil
}

// CreateTier implements EventUseCase.
func (u *eventUseCase) CreateTier(ctx context.Context, req CreateTierRequest) (TierResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return TierResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, req.EventID, acc.ID, nil); err != nil {
		return TierResponse{}, err
	}

	now := time.Now()
	t := Tier{
		ID:          util.GenerateTimestampWithPrefix("TIER"),
		EventID:     req.EventID,
		Name:        req.Name,
		UnitPrice:   req.UnitPrice,
		Capacity:    req.Capacity,
		MaxPerOrder: req.MaxPerOrder,
		SortOrder:   req.SortOrder,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := u.tierRepository.Save(ctx, t, nil); err != nil {
		return TierResponse{}, err
	}

	resp := TierResponse{}
	resp.PopulateFromEntity(t)

	return resp, nil
}

// UpdateTier implements EventUseCase. Capacity can never be lowered below
// units already sold.
func (u *eventUseCase) UpdateTier(ctx context.Context, req UpdateTierRequest) (TierResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return TierResponse{}, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, req.EventID, acc.ID, nil); err != nil {
		return TierResponse{}, err
	}

	tx, err := u.tierRepository.BeginTx(ctx)
	if err != nil {
		return TierResponse{}, err
	}

	t, err := u.tierRepository.FindByIDForUpdate(ctx, req.TierID, tx)
	if err != nil {
		u.tierRepository.Rollback(ctx, tx)
		return TierResponse{}, err
	}

	if t.EventID != req.EventID {
		u.tierRepository.Rollback(ctx, tx)
		return TierResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, "invalid tier id")
	}

	if req.Capacity != nil && *req.Capacity < t.Sold {
		u.tierRepository.Rollback(ctx, tx)
		return TierResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST,
			fmt.Sprintf("capacity %d is below the %d units already sold", *req.Capacity, t.Sold))
	}

	t.Name = req.Name
	t.UnitPrice = req.UnitPrice
	t.Capacity = req.Capacity
	t.MaxPerOrder = req.MaxPerOrder
	t.SortOrder = req.SortOrder
	t.UpdatedAt = time.Now()

	if err := u.tierRepository.Update(ctx, t.ID, t, tx); err != nil {
		u.tierRepository.Rollback(ctx, tx)
		return TierResponse{}, err
	}

	if err := u.tierRepository.CommitTx(ctx, tx); err != nil {
		return TierResponse{}, err
	}

	resp := TierResponse{}
	resp.PopulateFromEntity(t)

	return resp, nil
}

// ArchiveTier implements EventUseCase.
func (u *eventUseCase) ArchiveTier(ctx context.Context, eventID, tierID string) error {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, eventID, acc.ID, nil); err != nil {
		return err
	}

	t, err := u.tierRepository.FindByID(ctx, tierID, nil)
	if err != nil {
		return err
	}

	if t.EventID != eventID {
		return errors.New(http.StatusBadRequest, status.BAD_REQUEST, "invalid tier id")
	}

	return u.tierRepository.Archive(ctx, tierID, nil)
}

// ListTiers implements EventUseCase.
func (u *eventUseCase) ListTiers(ctx context.Context, eventID string) ([]TierResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	if _, err := u.eventRepository.FindByIDAndOrganizerID(ctx, eventID, acc.ID, nil); err != nil {
		return nil, err
	}

	tiers, err := u.tierRepository.FindManyByEventID(ctx, eventID, nil)
	if err != nil {
		return nil, err
	}

	resp := make([]TierResponse, len(tiers))
	for k, t := range tiers {
		resp[k].PopulateFromEntity(t)
	}

	return resp, nil
}
