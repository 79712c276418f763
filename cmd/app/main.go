package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gorilla/mux/otelmux"

	"github.com/stagepass/sp-ticketing/config"
	customerapp_inventory "github.com/stagepass/sp-ticketing/internal/module/customerapp/inventory"
	customerapp_order "github.com/stagepass/sp-ticketing/internal/module/customerapp/order"
	"github.com/stagepass/sp-ticketing/internal/module/customerapp/payvault"
	customerapp_ticket "github.com/stagepass/sp-ticketing/internal/module/customerapp/ticket"
	organizerapp_discount "github.com/stagepass/sp-ticketing/internal/module/organizerapp/discount"
	organizerapp_event "github.com/stagepass/sp-ticketing/internal/module/organizerapp/event"
	organizerapp_payout "github.com/stagepass/sp-ticketing/internal/module/organizerapp/payout"
	organizerapp_ticket "github.com/stagepass/sp-ticketing/internal/module/organizerapp/ticket"
	"github.com/stagepass/sp-ticketing/internal/module/webhook"
	"github.com/stagepass/sp-ticketing/internal/pkg/jwt"
	internalMiddleware "github.com/stagepass/sp-ticketing/internal/pkg/middleware"
	"github.com/stagepass/sp-ticketing/internal/pkg/session"
	"github.com/stagepass/sp-ticketing/pkg/applogger"
	"github.com/stagepass/sp-ticketing/pkg/gctasks"
	"github.com/stagepass/sp-ticketing/pkg/kafka"
	"github.com/stagepass/sp-ticketing/pkg/middleware"
	"github.com/stagepass/sp-ticketing/pkg/monitoring"
	"github.com/stagepass/sp-ticketing/pkg/postgresql"
	"github.com/stagepass/sp-ticketing/pkg/pubsub"
	"github.com/stagepass/sp-ticketing/pkg/redis"
	"github.com/stagepass/sp-ticketing/pkg/server"
	"github.com/stagepass/sp-ticketing/pkg/validator"
)

var c *config.Config

func init() {
	c = config.Get()
}

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger := applogger.GetLogrus()

	mon := monitoring.NewOpenTelemetry(
		c.Application.Name,
		c.Application.Environment,
		c.GCP.ProjectID,
	)

	mon.Start(ctx)

	validate := validator.Get()

	hc := http.DefaultClient

	jsonWebToken := jwt.NewJSONWebToken(c.JWT.PrivateKey, c.JWT.PublicKey)

	psqldb := postgresql.GetDatabase()
	if err := psqldb.Ping(); err != nil {
		logger.WithContext(ctx).WithError(err).Error()
	}

	publisher := pubsub.PublisherFromConfluentKafkaProducer(logger, kafka.NewProducer())

	rc := redis.GetClient()
	if err := rc.Ping(context.Background()).Err(); err != nil {
		logger.WithContext(ctx).WithError(err).Error()
	}

	cloudTask := gctasks.NewGCTasks(logger, c.GCP.ProjectID, c.GCP.ServiceAccount)

	sessionStore := session.NewRedisSessionStore(logger, rc)

	customerSessionMiddleware := internalMiddleware.NewCustomerSessionMiddleware(jsonWebToken, sessionStore)
	organizerSessionMiddleware := internalMiddleware.NewOrganizerSessionMiddleware(jsonWebToken, sessionStore)

	router := mux.NewRouter()
	router.Use(
		otelmux.Middleware(c.Application.Name),
		middleware.HTTPResponseTraceInjection,
		middleware.NewHTTPRequestLogger(logger, c.Application.Debug, http.StatusInternalServerError).Middleware,
	)

	payvaultRepo := payvault.NewPayvaultRepository(c.Payvault.BaseURL, c.Payvault.APIKey, logger, hc)

	// organizer's app
	eventRepo := organizerapp_event.NewEventRepository(logger, psqldb)
	tierRepo := organizerapp_event.NewTierRepository(logger, psqldb)
	eventUseCase := organizerapp_event.NewEventUseCase(organizerapp_event.EventUseCaseProperty{
		Logger:          logger,
		Timeout:         c.Application.Timeout,
		EventRepository: eventRepo,
		TierRepository:  tierRepo,
	})
	organizerapp_event.InitHTTPHandler(router, organizerSessionMiddleware, validate, eventUseCase)

	discountRepo := organizerapp_discount.NewDiscountRepository(logger, psqldb)
	discountUseCase := organizerapp_discount.NewDiscountUseCase(organizerapp_discount.DiscountUseCaseProperty{
		Logger:             logger,
		Timeout:            c.Application.Timeout,
		EventRepository:    eventRepo,
		DiscountRepository: discountRepo,
	})
	organizerapp_discount.InitHTTPHandler(router, organizerSessionMiddleware, validate, discountUseCase)

	ledgerEntryRepo := organizerapp_payout.NewLedgerEntryRepository(logger, psqldb)
	payoutRepo := organizerapp_payout.NewPayoutRepository(logger, psqldb)
	payoutUseCase := organizerapp_payout.NewPayoutUseCase(organizerapp_payout.PayoutUseCaseProperty{
		Logger:                logger,
		Timeout:               c.Application.Timeout,
		LedgerEntryRepository: ledgerEntryRepo,
		PayoutRepository:      payoutRepo,
	})
	organizerapp_payout.InitHTTPHandler(router, organizerSessionMiddleware, validate, payoutUseCase)

	// customer's app
	tierStockRepo := customerapp_inventory.NewTierStockRepository(logger, psqldb)
	reservationRepo := customerapp_inventory.NewReservationRepository(logger, psqldb)
	capacityLedger := customerapp_inventory.NewCapacityLedger(customerapp_inventory.CapacityLedgerProperty{
		Logger:                logger,
		ReservationTTL:        c.Order.ReservationTTL,
		TierStockRepository:   tierStockRepo,
		ReservationRepository: reservationRepo,
	})

	orderRepo := customerapp_order.NewOrderRepository(logger, psqldb)
	orderItemRepo := customerapp_order.NewItemRepository(logger, psqldb)
	orderUseCase := customerapp_order.NewOrderUseCase(customerapp_order.OrderUseCaseProperty{
		Logger:                logger,
		Timeout:               c.Application.Timeout,
		BaseURL:               c.Application.BaseURL,
		SuccessURL:            c.Payvault.SuccessURL,
		CancelURL:             c.Payvault.CancelURL,
		Currency:              c.Order.Currency,
		ReservationTTL:        c.Order.ReservationTTL,
		PlatformFeePercentage: c.Order.PlatformFeePercentage,
		TaxPercentage:         c.Order.TaxPercentage,
		TierStockRepository:   tierStockRepo,
		CapacityLedger:        capacityLedger,
		DiscountRepository:    discountRepo,
		OrderRepository:       orderRepo,
		ItemRepository:        orderItemRepo,
		PayvaultRepository:    payvaultRepo,
		CloudTask:             cloudTask,
	})
	customerapp_order.InitHTTPHandler(router, customerSessionMiddleware, validate, orderUseCase)

	ticketRepo := customerapp_ticket.NewTicketRepository(logger, psqldb)
	ticketIssuer := customerapp_ticket.NewIssuer(customerapp_ticket.IssuerProperty{
		Logger:           logger,
		TicketRepository: ticketRepo,
	})
	ticketUseCase := customerapp_ticket.NewTicketUseCase(customerapp_ticket.TicketUseCaseProperty{
		Logger:           logger,
		Timeout:          c.Application.Timeout,
		TicketRepository: ticketRepo,
		OrderRepository:  orderRepo,
	})
	customerapp_ticket.InitHTTPHandler(router, customerSessionMiddleware, ticketUseCase)

	organizerTicketUseCase := organizerapp_ticket.NewTicketUseCase(organizerapp_ticket.TicketUseCaseProperty{
		Logger:                logger,
		Timeout:               c.Application.Timeout,
		TicketRepository:      ticketRepo,
		OrderRepository:       orderRepo,
		ItemRepository:        orderItemRepo,
		EventRepository:       eventRepo,
		LedgerEntryRepository: ledgerEntryRepo,
		PayvaultRepository:    payvaultRepo,
		Publisher:             publisher,
	})
	organizerapp_ticket.InitHTTPHandler(router, organizerSessionMiddleware, validate, organizerTicketUseCase)

	// provider webhooks
	eventLogRepo := webhook.NewEventLogRepository(logger, psqldb)
	reconciler := webhook.NewReconciler(webhook.ReconcilerProperty{
		Logger:                logger,
		Timeout:               c.Application.Timeout,
		EventLogRepository:    eventLogRepo,
		OrderRepository:       orderRepo,
		ItemRepository:        orderItemRepo,
		EventRepository:       eventRepo,
		DiscountRepository:    discountRepo,
		LedgerEntryRepository: ledgerEntryRepo,
		TicketRepository:      ticketRepo,
		Issuer:                ticketIssuer,
		CapacityLedger:        capacityLedger,
		PayvaultRepository:    payvaultRepo,
		Publisher:             publisher,
	})
	webhook.InitHTTPHandler(router, c.Payvault.WebhookSecret, reconciler)

	handler := middleware.SetChain(
		router,
		cors.New(cors.Options{
			AllowedOrigins:   c.CORS.AllowedOrigins,
			AllowedMethods:   c.CORS.AllowedMethods,
			AllowedHeaders:   c.CORS.AllowedHeaders,
			ExposedHeaders:   c.CORS.ExposedHeaders,
			MaxAge:           c.CORS.MaxAge,
			AllowCredentials: c.CORS.AllowCredentials,
		}).Handler,
	)

	srv := &server.Server{
		Server: http.Server{
			Addr:    fmt.Sprintf(":%d", c.Application.Port),
			Handler: handler,
		},
		Logger: logger,
	}

	go func() {
		srv.ListenAndServe()
	}()

	sigterm := make(chan os.Signal, 1)
	signal.Notify(sigterm, syscall.SIGINT, syscall.SIGTERM)
	<-sigterm

	srv.Shutdown(ctx)
	publisher.Close()
	psqldb.Close()
	rc.Close()
	if cloudTask != nil {
		cloudTask.Close()
	}
	mon.Stop(ctx)
}
