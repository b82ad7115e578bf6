// Package server wires the agent's local HTTP surface: the endpoints a thin
// device shell polls and drives. There is no auth layer because the surface
// never leaves the device.
package server

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"gorm.io/gorm"

	"github.com/rotaouro/courier-agent/internal/backend"
	"github.com/rotaouro/courier-agent/internal/config"
	"github.com/rotaouro/courier-agent/internal/delivery"
	"github.com/rotaouro/courier-agent/internal/drafts"
	"github.com/rotaouro/courier-agent/internal/handler"
	"github.com/rotaouro/courier-agent/internal/offer"
	"github.com/rotaouro/courier-agent/internal/poller"
	"github.com/rotaouro/courier-agent/internal/store"
)

type Server struct {
	e    *echo.Echo
	ctrl *offer.Controller
	pol  *poller.Poller
	svc  delivery.Service
}

func New(cfg *config.Config, client backend.API, db *gorm.DB, log *slog.Logger) *Server {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.Logger())

	st := store.New(cfg.AbsenceConfirmations)
	draftRepo := drafts.NewDraftRepository(db)

	ctrl := offer.NewController(offer.Config{
		CourierID:     cfg.CourierID,
		CourierName:   cfg.CourierName,
		TTL:           cfg.OfferTTL,
		DedupeWindow:  cfg.DedupeWindow,
		CountdownTick: cfg.CountdownTick,
	}, client, st, nil, log)

	svc := delivery.NewService(delivery.Config{
		CourierID:     cfg.CourierID,
		HoldThreshold: cfg.HoldThreshold,
	}, client, st, draftRepo, log)

	pol := poller.New(poller.Config{
		CourierID:           cfg.CourierID,
		StatusInterval:      cfg.StatusPollInterval,
		AffiliationInterval: cfg.AffiliationPollInterval,
	}, client, st, svc.ClearDrafts, log)

	offerHandler := handler.NewOfferHandler(ctrl)
	deliveryHandler := handler.NewDeliveryHandler(svc, st)
	agentHandler := handler.NewAgentHandler(ctrl, st, pol, client, cfg.CourierID)

	e.GET("/healthz", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"ok": "true"})
	})

	api := e.Group("/api")
	api.POST("/push", offerHandler.Push)
	api.POST("/offer/accept", offerHandler.Accept)
	api.POST("/offer/reject", offerHandler.Reject)

	api.GET("/state", agentHandler.State)
	api.POST("/foreground", agentHandler.Foreground)
	api.PUT("/presence", agentHandler.SetPresence)
	api.PUT("/location", agentHandler.SendLocation)
	api.POST("/push-token", agentHandler.RegisterPushToken)

	api.GET("/deliveries", deliveryHandler.List)
	api.POST("/deliveries/:id/advance", deliveryHandler.Advance)
	api.PUT("/deliveries/:id/receiver", deliveryHandler.SetReceiver)
	api.PUT("/deliveries/:id/description", deliveryHandler.SetDescription)
	api.POST("/deliveries/:id/photos", deliveryHandler.UploadPhotos)
	api.POST("/deliveries/:id/signature", deliveryHandler.UploadSignature)
	api.GET("/deliveries/:id/draft", deliveryHandler.GetDraft)

	return &Server{e: e, ctrl: ctrl, pol: pol, svc: svc}
}

func (s *Server) Start(addr string) error {
	return s.e.Start(addr)
}

// Controller exposes the offer controller for startup tasks (pending
// assignment poll) and shutdown.
func (s *Server) Controller() *offer.Controller {
	return s.ctrl
}

// Poller exposes the reconciliation poller so main can run it.
func (s *Server) Poller() *poller.Poller {
	return s.pol
}

// Deliveries exposes the delivery service for startup rehydration.
func (s *Server) Deliveries() delivery.Service {
	return s.svc
}
