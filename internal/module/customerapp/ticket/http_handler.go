package ticket

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/stagepass/sp-ticketing/internal/pkg/middleware"
	"github.com/stagepass/sp-ticketing/pkg/errors"
	publicMiddleware "github.com/stagepass/sp-ticketing/pkg/middleware"
	"github.com/stagepass/sp-ticketing/pkg/response"
	"github.com/stagepass/sp-ticketing/pkg/status"
)

type HTTPHandler struct {
	TicketUseCase TicketUseCase
}

func InitHTTPHandler(router *mux.Router, customerSession *middleware.CustomerSession, ticketUseCase TicketUseCase) {
	handler := &HTTPHandler{
		TicketUseCase: ticketUseCase,
	}

	router.HandleFunc("/sp-ticketing/v1/customerapp/orders/{orderId}/tickets", publicMiddleware.SetRouteChain(handler.GetManyTicketByOrder, customerSession.Verify)).Methods(http.MethodGet)
}

func (handler HTTPHandler) GetManyTicketByOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	orderID := mux.Vars(r)["orderId"]

	resp, err := handler.TicketUseCase.GetManyTicketByOrderID(ctx, orderID)
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
		Message: "tickets fetched",
		Data:    resp,
	})
}
