package payout

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"github.com/stagepass/sp-ticketing/internal/pkg/middleware"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	publicMiddleware "github.com/stagepass/sp-ticketing/pkg/middleware"
	"github.com/stagepass/sp-ticketing/pkg/response"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type HTTPHandler struct {
	Validate      *validator.Validate
	PayoutUseCase PayoutUseCase
}

func InitHTTPHandler(router *mux.Router, organizerSession *middleware.OrganizerSession, validate *validator.Validate, payoutUseCase PayoutUseCase) {
	handler := &HTTPHandler{
		Validate:      validate,
		PayoutUseCase: payoutUseCase,
	}

	router.HandleFunc("/sp-ticketing/v1/organizerapp/balance", publicMiddleware.SetRouteChain(handler.GetBalance, organizerSession.Verify)).Methods(http.MethodGet)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/payouts", publicMiddleware.SetRouteChain(handler.FinalizePayout, organizerSession.Verify)).Methods(http.MethodPost)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/payouts", publicMiddleware.SetRouteChain(handler.GetManyPayout, organizerSession.Verify)).Methods(http.MethodGet)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/payouts/{id}/paid", publicMiddleware.SetRouteChain(handler.MarkPayoutPaid, organizerSession.Verify)).Methods(http.MethodPut)
}

func (handler HTTPHandler) validate(ctx context.Context, payload interface{}) error {
	err := handler.Validate.StructCtx(ctx, payload)
	if err == nil {
		return nil
	}

	errorFields := err.(validator.ValidationErrors)

	errMessages := make([]string, len(errorFields))

	for k, errorField := range errorFields {
		errMessages[k] = fmt.Sprintf("invalid '%s' with value '%v'", errorField.Field(), errorField.Value())
	}

	return fmt.Errorf(strings.Join(errMessages, ", "))
}

func (handler HTTPHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := handler.PayoutUseCase.GetBalance(ctx)
	if err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "balance fetched",
		Data:    resp,
	})
}

func (handler HTTPHandler) FinalizePayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := FinalizePayoutRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.PayoutUseCase.FinalizePayout(ctx, req)
	if err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusCreated, response.RESTEnvelope{
		Status:  status.CREATED,
		Message: "payout finalized",
		Data:    resp,
	})
}

func (handler HTTPHandler) GetManyPayout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := handler.PayoutUseCase.GetManyPayout(ctx)
	if err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "payouts fetched",
		Data:    resp,
	})
}

func (handler HTTPHandler) MarkPayoutPaid(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ID := mux.Vars(r)["id"]

	resp, err := handler.PayoutUseCase.MarkPayoutPaid(ctx, ID)
	if err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "payout marked as paid",
		Data:    resp,
	})
}
