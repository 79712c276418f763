package order

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
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
	SessionMiddleware *middleware.CustomerSession
	Validate          *validator.Validate
	OrderUseCase      OrderUseCase
}

func InitHTTPHandler(router *mux.Router, customerSession *middleware.CustomerSession, validate *validator.Validate, orderUseCase OrderUseCase) {
	handler := &HTTPHandler{
		Validate:     validate,
		OrderUseCase: orderUseCase,
	}

	router.HandleFunc("/sp-ticketing/v1/customerapp/orders", publicMiddleware.SetRouteChain(handler.PlaceOrder, customerSession.Verify)).Methods(http.MethodPost)
	router.HandleFunc("/sp-ticketing/v1/customerapp/orders", publicMiddleware.SetRouteChain(handler.GetManyOrder, customerSession.Verify)).Methods(http.MethodGet)
	router.HandleFunc("/sp-ticketing/v1/customerapp/orders/{id}", publicMiddleware.SetRouteChain(handler.GetOrder, customerSession.Verify)).Methods(http.MethodGet)
	router.HandleFunc("/sp-ticketing/v1/customerapp/reservations/on-sweep", publicMiddleware.SetRouteChain(handler.SweepReservations)).Methods(http.MethodPost)
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

func (handler HTTPHandler) PlaceOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := PlaceOrderRequest{}
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

	resp, err := handler.OrderUseCase.PlaceOrder(ctx, req)
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
		Message: "order placed",
		Data:    resp,
	})
}

func (handler HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ID := mux.Vars(r)["id"]

	resp, err := handler.OrderUseCase.GetOrder(ctx, ID)
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
		Message: "order fetched",
		Data:    resp,
	})
}

func (handler HTTPHandler) GetManyOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := GetManyOrderRequest{Page: 1, Size: 20}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			req.Page = page
		}
	}

	if raw := r.URL.Query().Get("size"); raw != "" {
		size, err := strconv.ParseInt(raw, 10, 64)
		if err == nil {
			req.Size = size
		}
	}

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.OrderUseCase.GetManyOrder(ctx, req)
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
		Message: "orders fetched",
		Data:    resp.Orders,
		Meta: map[string]interface{}{
			"page":  req.Page,
			"size":  req.Size,
			"total": resp.Total,
		},
	})
}

func (handler HTTPHandler) SweepReservations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if err := handler.OrderUseCase.SweepReservations(ctx); err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "expired reservations swept",
	})
}
