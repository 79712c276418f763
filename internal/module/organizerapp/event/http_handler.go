package event

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
	EventUseCase      EventUseCase
}

func InitHTTPHandler(router *mux.Router, organizerSession *middleware.OrganizerSession, validate *validator.Validate, eventUseCase EventUseCase) {
	handler := &HTTPHandler{
		Validate:     validate,
		EventUseCase: eventUseCase,
	}

	router.HandleFunc("/sp-ticketing/v1/organizerapp/events", publicMiddleware.SetRouteChain(handler.CreateEvent, organizerSession.Verify)).Methods(http.MethodPost)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/tiers", publicMiddleware.SetRouteChain(handler.CreateTier, organizerSession.Verify)).Methods(http.MethodPost)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/tiers", publicMiddleware.SetRouteChain(handler.ListTiers, organizerSession.Verify)).Methods(http.MethodGet)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/tiers/{tierId}", publicMiddleware.SetRouteChain(handler.UpdateTier, organizerSession.Verify)).Methods(http.MethodPut)
	router.HandleFunc("/sp-ticketing/v1/organizerapp/events/{eventId}/tiers/{tierId}", publicMiddleware.SetRouteChain(handler.ArchiveTier, organizerSession.Verify)).Methods(http.MethodDelete)
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

func (handler HTTPHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := CreateEventRequest{}
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

	resp, err := handler.EventUseCase.CreateEvent(ctx, req)
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
		Message: "event has been successfully created",
		Data:    resp,
	})
}

func (handler HTTPHandler) CreateTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := CreateTierRequest{}
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

	resp, err := handler.EventUseCase.CreateTier(ctx, req)
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
		Message: "tier has been successfully created",
		Data:    resp,
	})
}

func (handler HTTPHandler) UpdateTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	req := UpdateTierRequest{}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	vars := mux.Vars(r)
	req.EventID = vars["eventId"]
	req.TierID = vars["tierId"]

	if err := handler.validate(ctx, req); err != nil {
		response.JSON(w, http.StatusBadRequest, response.RESTEnvelope{
			Status:  status.BAD_REQUEST,
			Message: err.Error(),
		})

		return
	}

	resp, err := handler.EventUseCase.UpdateTier(ctx, req)
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
		Message: "tier has been successfully updated",
		Data:    resp,
	})
}

func (handler HTTPHandler) ArchiveTier(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	vars := mux.Vars(r)

	if err := handler.EventUseCase.ArchiveTier(ctx, vars["eventId"], vars["tierId"]); err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "tier has been successfully archived",
	})
}

func (handler HTTPHandler) ListTiers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	resp, err := handler.EventUseCase.ListTiers(ctx, mux.Vars(r)["eventId"])
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
		Message: "list of tiers",
		Data:    resp,
	})
}
