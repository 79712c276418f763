package payvault

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/sirupsen/logrus"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

// PayvaultRepository is the outbound client for the payment provider. The
// provider reports lifecycle progress back asynchronously through webhooks;
// only the synchronous calls live here.
type PayvaultRepository interface {
	CreateCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (CheckoutSession, error)
	GetCharge(ctx context.Context, chargeID string) (Charge, error)
	Refund(ctx context.Context, req RefundRequest) (RefundResponse, error)
}

type payvaultRepository struct {
	baseURL string
	apiKey  string
	logger  *logrus.Logger
	hc      *http.Client
}

func NewPayvaultRepository(baseURL string, apiKey string, logger *logrus.Logger, hc *http.Client) PayvaultRepository {
	return &payvaultRepository{
		baseURL: baseURL,
		apiKey:  apiKey,
		logger:  logger,
		hc:      hc,
	}
}

func (r *payvaultRepository) do(ctx context.Context, method, path string, reqBody interface{}, out interface{}, failMsg string) error {
	var body io.Reader
	if reqBody != nil {
		buf, _ := json.Marshal(reqBody)
		body = bytes.NewBuffer(buf)
	}

	hr, err := http.NewRequestWithContext(ctx, method, fmt.Sprintf("%s%s", r.baseURL, path), body)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, failMsg)
	}

	hr.Header.Add("Content-Type", "application/json")
	hr.Header.Add("Accept", "application/json")
	hr.Header.Add("Authorization", fmt.Sprintf("Bearer %s", r.apiKey))

	hresp, err := r.hc.Do(hr)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, failMsg)
	}

	defer hresp.Body.Close()

	respBody, err := io.ReadAll(hresp.Body)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, failMsg)
	}

	if hresp.StatusCode < 200 || hresp.StatusCode > 299 {
		err := fmt.Errorf("payvault responded %d: %s", hresp.StatusCode, string(respBody))
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, failMsg)
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error()
		return errors.New(http.StatusInternalServerError, status.INTERNAL_SERVER_ERROR, failMsg)
	}

	return nil
}

// CreateCheckoutSession implements PayvaultRepository.
func (r *payvaultRepository) CreateCheckoutSession(ctx context.Context, req CreateCheckoutSessionRequest) (CheckoutSession, error) {
	var resp CheckoutSession

	err := r.do(ctx, http.MethodPost, "/v1/checkout/sessions", req, &resp,
		"an error occurred while creating a checkout session through payvault")
	if err != nil {
		return CheckoutSession{}, err
	}

	return resp, nil
}

// GetCharge implements PayvaultRepository.
func (r *payvaultRepository) GetCharge(ctx context.Context, chargeID string) (Charge, error) {
	var resp Charge

	err := r.do(ctx, http.MethodGet, fmt.Sprintf("/v1/charges/%s", chargeID), nil, &resp,
		"an error occurred while getting the charge through payvault")
	if err != nil {
		return Charge{}, err
	}

	return resp, nil
}

// Refund implements PayvaultRepository.
func (r *payvaultRepository) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	var resp RefundResponse

	err := r.do(ctx, http.MethodPost, "/v1/refunds", req, &resp,
		"an error occurred while refunding the charge through payvault")
	if err != nil {
		return RefundResponse{}, err
	}

	return resp, nil
}
