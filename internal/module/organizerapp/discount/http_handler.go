package discount

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
	SessionMiddleware *middleware.OrganizerSession
	Validate          *validator.Validate
	DiscountUseCase   DiscountUseCase
}

func InitHTTPHandler(router *mux.Router, organizerSession *middleware.OrganizerSession, validate *validator.Validate, discountUseCase DiscountUseCase) {
	handler := &HTTPHandler{
		Validate:        validate,
		DiscountUseCase: discountUseCase,
	}

	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/discounts", publicMiddleware.SetRouteChain(handler.CreateDiscount, organizerSession.Verify)).Methods(http.MethodPost)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/discounts", publicMiddleware.SetRouteChain(handler.ListDiscounts, organizerSession.Verify)).Methods(http.MethodGet)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/discounts/{code}", publicMiddleware.SetRouteChain(handler.UpdateDiscount, organizerSession.Verify)).Methods(http.MethodPut)
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

func (handler HTTPHandler) CreateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := CreateDiscountRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	req.EventID = mux.Vars(r)["eventId"]

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.DiscountUseCase.CreateDiscount(ctx, req)
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
		Message: "discount has been successfully created",
		Data:    resp,
	})
}

func (handler HTTPHandler) UpdateDiscount(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := UpdateDiscountRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	vars := mux.Vars(r)
	req.EventID = vars["eventId"]
	req.Code = vars["code"]

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.DiscountUseCase.UpdateDiscount(ctx, req)
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
		Message: "discount has been successfully updated",
		Data:    resp,
	})
}

func (handler HTTPHandler) ListDiscounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := handler.DiscountUseCase.ListDiscounts(ctx, mux.Vars(r)["eventId"])
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
		Message: "list of discounts",
		Data:    resp,
	})
}
