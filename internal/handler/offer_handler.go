package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/rotaouro/courier-agent/internal/model"
	"github.com/rotaouro/courier-agent/internal/offer"
)

type OfferHandler struct {
	ctrl *offer.Controller
}

func NewOfferHandler(ctrl *offer.Controller) *OfferHandler {
	return &OfferHandler{ctrl: ctrl}
}

// Push ingests one push notification payload from the shell and runs it
// through the offer pipeline. Always 202: admission is asynchronous from the
// shell's point of view and duplicates are collapsed silently.
func (h *OfferHandler) Push(c echo.Context) error {
	var p model.PushPayload
	if err := c.Bind(&p); err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "malformed push payload")
	}
	h.ctrl.HandlePush(c.Request().Context(), &p)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

func (h *OfferHandler) Accept(c echo.Context) error {
	if err := h.ctrl.Accept(c.Request().Context()); err != nil {
		return offerError(c, err)
	}
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func (h *OfferHandler) Reject(c echo.Context) error {
	if err := h.ctrl.Reject(c.Request().Context()); err != nil {
		return offerError(c, err)
	}
	return c.JSON(http.StatusOK, h.ctrl.Snapshot())
}

func offerError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, offer.ErrNoOffer):
		return jsonError(c, http.StatusConflict, "no_offer", "no offer on screen")
	case errors.Is(err, offer.ErrActionRejected):
		return jsonError(c, http.StatusConflict, "action_rejected", "backend refused the action; retry while the countdown lasts")
	}
	return jsonError(c, http.StatusInternalServerError, "internal_error", "offer action failed")
}
