package webhook

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stagepass/sp-ticketing/pkg/errors"
	publicMiddleware "github.com/stagepass/sp-ticketing/pkg/middleware"
	"github.com/stagepass/sp-ticketing/pkg/response"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type HTTPHandler struct {
	Secret     string
	Reconciler Reconciler
}

func InitHTTPHandler(router *mux.Router, secret string, reconciler Reconciler) {
	handler := &HTTPHandler{
		Secret:     secret,
		Reconciler: reconciler,
	}

	router.HandleFunc("/sp-ticketing/v1/webhooks/payvault", publicMiddleware.SetRouteChain(handler.HandleEvent)).Methods(http.MethodPost)
}

// HandleEvent verifies the provider signature over the raw body before
// anything is parsed. Idempotent no-ops answer 200 so the provider stops
// retrying; processing failures answer 500 so it retries.
func (handler HTTPHandler) HandleEvent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	if !VerifySignature(handler.Secret, body, r.Header.Get(SignatureHeader)) {
		response.JSON(w, http.StatusUnauthorized, response.RESTEnvelope{
			Status:  status.UNAUTHORIZED,
			Message: "webhook signature verification failed",
		})

		return
	}

	var payload EventPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		response.JSON(w, http.StatusUnprocessableEntity, response.RESTEnvelope{
			Status:  status.UNPROCESSABLE_ENTITY,
			Message: err.Error(),
		})

		return
	}

	if err := handler.Reconciler.ProcessEvent(ctx, payload, body); err != nil {
		ae := errors.Destruct(err)
		response.JSON(w, ae.HTTPStatusCode, response.RESTEnvelope{
			Status:  ae.Status,
			Message: ae.Message,
		})

		return
	}

	response.JSON(w, http.StatusOK, response.RESTEnvelope{
		Status:  status.OK,
		Message: "event processed",
	})
}
