package payout

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

type PayoutUseCase interface {
	GetBalance(ctx context.Context) (BalanceResponse, error)
	FinalizePayout(ctx context.Context, req FinalizePayoutRequest) (PayoutResponse, error)
	MarkPayoutPaid(ctx context.Context, ID string) (PayoutResponse, error)
	GetManyPayout(ctx context.Context) ([]PayoutResponse, error)
}

type payoutUseCase struct {
	logger                *logrus.Logger
	timeout               time.Duration
	ledgerEntryRepository LedgerEntryRepository
	payoutRepository      PayoutRepository
}

type PayoutUseCaseProperty struct {
	Logger                *logrus.Logger
	Timeout               time.Duration
	LedgerEntryRepository LedgerEntryRepository
	PayoutRepository      PayoutRepository
}

func NewPayoutUseCase(props PayoutUseCaseProperty) PayoutUseCase {
	return &payoutUseCase{
		logger:                props.Logger,
		timeout:               props.Timeout,
		ledgerEntryRepository: props.LedgerEntryRepository,
		payoutRepository:      props.PayoutRepository,
	}
}

// GetBalance implements PayoutUseCase.
func (u *payoutUseCase) GetBalance(ctx context.Context) (BalanceResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return BalanceResponse{}, err
	}

	summary, err := u.ledgerEntryRepository.SummarizePending(ctx, acc.ID, nil, nil, nil)
	if err != nil {
		return BalanceResponse{}, err
	}

	return BalanceResponse{
		PendingAmount:  summary.Amount,
		EntryCount:     summary.EntryCount,
		EstimatedCount: summary.EstimatedCount,
		Finalizable:    summary.EntryCount > 0 && summary.EstimatedCount == 0,
	}, nil
}

// FinalizePayout implements PayoutUseCase. Only pending entries created
// inside the requested period are swept, and the payout amount is summed
// from the assigned entries inside the transaction; the caller never
// supplies it. Entries whose provider fee is still estimated block
// finalization until the charge webhook settles them.
func (u *payoutUseCase) FinalizePayout(ctx context.Context, req FinalizePayoutRequest) (PayoutResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return PayoutResponse{}, err
	}

	if !req.PeriodEnd.After(req.PeriodStart) {
		return PayoutResponse{}, errors.New(http.StatusBadRequest, status.BAD_REQUEST, "payout period end must be after its start")
	}

	tx, err := u.ledgerEntryRepository.BeginTx(ctx)
	if err != nil {
		return PayoutResponse{}, err
	}

	summary, err := u.ledgerEntryRepository.SummarizePending(ctx, acc.ID, &req.PeriodStart, &req.PeriodEnd, tx)
	if err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	if summary.EntryCount == 0 {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, errors.New(http.StatusConflict, status.CONFLICT, "there is no pending balance to finalize in the period")
	}

	if summary.EstimatedCount > 0 {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("%d ledger entries still carry an estimated provider fee", summary.EstimatedCount))
	}

	now := time.Now()
	p := Payout{
		ID:          util.GenerateTimestampWithPrefix("PO"),
		OrganizerID: acc.ID,
		Status:      PayoutStatusFinalized,
		Method:      req.Method,
		PeriodStart: req.PeriodStart,
		PeriodEnd:   req.PeriodEnd,
		CreatedAt:   now,
	}

	assigned, err := u.ledgerEntryRepository.AssignToPayout(ctx, acc.ID, p.ID, req.PeriodStart, req.PeriodEnd, tx)
	if err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	amount, err := u.ledgerEntryRepository.SumByPayoutID(ctx, p.ID, tx)
	if err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	p.Amount = amount
	p.EntryCount = assigned

	if err := u.payoutRepository.Save(ctx, p, tx); err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	if err := u.ledgerEntryRepository.CommitTx(ctx, tx); err != nil {
		return PayoutResponse{}, err
	}

	resp := PayoutResponse{}
	resp.PopulateFromEntity(p)

	return resp, nil
}

// MarkPayoutPaid implements PayoutUseCase.
func (u *payoutUseCase) MarkPayoutPaid(ctx context.Context, ID string) (PayoutResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return PayoutResponse{}, err
	}

	tx, err := u.ledgerEntryRepository.BeginTx(ctx)
	if err != nil {
		return PayoutResponse{}, err
	}

	p, err := u.payoutRepository.FindByIDAndOrganizerID(ctx, ID, acc.ID, tx)
	if err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	now := time.Now()

	swapped, err := u.payoutRepository.MarkPaidIfFinalized(ctx, p.ID, now, tx)
	if err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	if !swapped {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, errors.New(http.StatusConflict, status.CONFLICT, fmt.Sprintf("payout with id '%s' is already paid", p.ID))
	}

	if err := u.ledgerEntryRepository.MarkPaidByPayoutID(ctx, p.ID, tx); err != nil {
		u.ledgerEntryRepository.Rollback(ctx, tx)
		return PayoutResponse{}, err
	}

	if err := u.ledgerEntryRepository.CommitTx(ctx, tx); err != nil {
		return PayoutResponse{}, err
	}

	p.Status = PayoutStatusPaid
	p.PaidAt = &now

	resp := PayoutResponse{}
	resp.PopulateFromEntity(p)

	return resp, nil
}

// GetManyPayout implements PayoutUseCase.
func (u *payoutUseCase) GetManyPayout(ctx context.Context) ([]PayoutResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, u.timeout)
	defer cancel()

	acc, err := session.GetAccountFromCtx(ctx)
	if err != nil {
		return nil, err
	}

	payouts, err := u.payoutRepository.FindManyByOrganizerID(ctx, acc.ID, nil)
	if err != nil {
		return nil, err
	}

	resp := make([]PayoutResponse, len(payouts))
	for k, p := range payouts {
		resp[k].PopulateFromEntity(p)
	}

	return resp, nil
}
