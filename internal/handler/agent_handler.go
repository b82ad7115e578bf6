package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rotaouro/courier-agent/internal/backend"
	"github.com/rotaouro/courier-agent/internal/offer"
	"github.com/rotaouro/courier-agent/internal/poller"
	"github.com/rotaouro/courier-agent/internal/store"
)

// AgentHandler serves the aggregate state view and the courier-level
// operations (presence, location, push token).
type AgentHandler struct {
	ctrl      *offer.Controller
	st        *store.AcceptedStore
	pol       *poller.Poller
	api       backend.API
	courierID int64
}

func NewAgentHandler(ctrl *offer.Controller, st *store.AcceptedStore, pol *poller.Poller, api backend.API, courierID int64) *AgentHandler {
	return &AgentHandler{ctrl: ctrl, st: st, pol: pol, api: api, courierID: courierID}
}

// State is the shell's single polling endpoint: offer snapshot, tracked
// deliveries with stages, and the affiliation label.
func (h *AgentHandler) State(c echo.Context) error {
	list := h.st.List()
	deliveries := make([]DeliveryResponse, 0, len(list))
	for _, d := range list {
		deliveries = append(deliveries, toDeliveryResponse(d, h.st.Stage(d.DeliveryID)))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"offer":       h.ctrl.Snapshot(),
		"deliveries":  deliveries,
		"affiliation": h.pol.Affiliation(),
	})
}

type presenceRequest struct {
	Online *bool `json:"online"`
}

func (h *AgentHandler) SetPresence(c echo.Context) error {
	var req presenceRequest
	if err := c.Bind(&req); err != nil || req.Online == nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "online flag is required")
	}
	if !h.api.SetPresence(c.Request().Context(), h.courierID, *req.Online) {
		return jsonError(c, http.StatusBadGateway, "upstream_error", "presence update refused")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type locationRequest struct {
	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`
}

func (h *AgentHandler) SendLocation(c echo.Context) error {
	var req locationRequest
	if err := c.Bind(&req); err != nil || req.Lat == nil || req.Lon == nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "lat and lon are required")
	}
	if !h.api.SendLocation(c.Request().Context(), h.courierID, *req.Lat, *req.Lon) {
		return jsonError(c, http.StatusBadGateway, "upstream_error", "location update refused")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type pushTokenRequest struct {
	Token string `json:"token"`
}

func (h *AgentHandler) RegisterPushToken(c echo.Context) error {
	var req pushTokenRequest
	if err := c.Bind(&req); err != nil || req.Token == "" {
		return jsonError(c, http.StatusBadRequest, "bad_request", "token is required")
	}
	if !h.api.RegisterPushToken(c.Request().Context(), h.courierID, req.Token) {
		return jsonError(c, http.StatusBadGateway, "upstream_error", "token registration refused")
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Foreground mirrors the shell returning to the foreground: look for a
// pending assignment still inside its hold window.
func (h *AgentHandler) Foreground(c echo.Context) error {
	h.ctrl.PollPendingAssignment(c.Request().Context())
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}
