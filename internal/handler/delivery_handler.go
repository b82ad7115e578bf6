package handler

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rotaouro/courier-agent/internal/delivery"
	"github.com/rotaouro/courier-agent/internal/model"
	"github.com/rotaouro/courier-agent/internal/store"
)

type DeliveryHandler struct {
	svc delivery.Service
	st  *store.AcceptedStore
}

func NewDeliveryHandler(svc delivery.Service, st *store.AcceptedStore) *DeliveryHandler {
	return &DeliveryHandler{svc: svc, st: st}
}

type DeliveryResponse struct {
	DeliveryID     int64  `json:"entrega_id"`
	PublicCode     string `json:"numero"`
	ClientName     string `json:"cliente_nome"`
	PickupAddress  string `json:"coleta_endereco"`
	DropoffAddress string `json:"entrega_endereco"`
	Commission     string `json:"valor_total_motoboy"`
	HasReturn      bool   `json:"has_retorno"`
	Provisional    bool   `json:"provisional,omitempty"`
	Stage          string `json:"stage"`
	StageLabel     string `json:"stage_label"`
}

func toDeliveryResponse(d model.AcceptedDelivery, stage model.Stage) DeliveryResponse {
	return DeliveryResponse{
		DeliveryID:     d.DeliveryID,
		PublicCode:     d.PublicCode,
		ClientName:     d.ClientName,
		PickupAddress:  d.PickupAddress,
		DropoffAddress: d.DropoffAddress,
		Commission:     d.Commission,
		HasReturn:      d.HasReturn,
		Provisional:    d.Provisional,
		Stage:          string(stage),
		StageLabel:     model.Label(stage),
	}
}

func (h *DeliveryHandler) List(c echo.Context) error {
	list := h.st.List()
	resp := make([]DeliveryResponse, 0, len(list))
	for _, d := range list {
		resp = append(resp, toDeliveryResponse(d, h.st.Stage(d.DeliveryID)))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{"deliveries": resp})
}

type advanceRequest struct {
	HeldMS int64 `json:"held_ms"`
}

// Advance confirms the pending stage after a hold gesture. The shell reports
// how long the press lasted; the service enforces the threshold.
func (h *DeliveryHandler) Advance(c echo.Context) error {
	id, err := deliveryID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "invalid delivery id")
	}
	var req advanceRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "malformed body")
	}
	next, err := h.svc.Advance(c.Request().Context(), id, time.Duration(req.HeldMS)*time.Millisecond)
	if err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{
		"stage":       string(next),
		"stage_label": model.Label(next),
	})
}

type receiverRequest struct {
	Name string `json:"name"`
}

func (h *DeliveryHandler) SetReceiver(c echo.Context) error {
	id, err := deliveryID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "invalid delivery id")
	}
	var req receiverRequest
	if err := c.Bind(&req); err != nil || req.Name == "" {
		return jsonError(c, http.StatusBadRequest, "bad_request", "name is required")
	}
	if err := h.svc.SaveReceiver(c.Request().Context(), id, req.Name); err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type descriptionRequest struct {
	Text string `json:"text"`
}

func (h *DeliveryHandler) SetDescription(c echo.Context) error {
	id, err := deliveryID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "invalid delivery id")
	}
	var req descriptionRequest
	if err := c.Bind(&req); err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "malformed body")
	}
	if err := h.svc.SaveDescription(c.Request().Context(), id, req.Text); err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// UploadPhotos accepts a multipart form with one or more files under the
// "photos" field and relays them to the platform.
func (h *DeliveryHandler) UploadPhotos(c echo.Context) error {
	id, err := deliveryID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "invalid delivery id")
	}
	form, err := c.MultipartForm()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "multipart form expected")
	}
	files := form.File["photos"]
	if len(files) == 0 {
		return jsonError(c, http.StatusBadRequest, "bad_request", "no photos in form")
	}
	photos := make([]delivery.Photo, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return jsonError(c, http.StatusBadRequest, "bad_request", "unreadable photo")
		}
		defer f.Close()
		photos = append(photos, delivery.Photo{ContentType: fh.Header.Get("Content-Type"), Data: f})
	}
	if err := h.svc.UploadPhotos(c.Request().Context(), id, photos); err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "uploaded"})
}

func (h *DeliveryHandler) UploadSignature(c echo.Context) error {
	id, err := deliveryID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "invalid delivery id")
	}
	fh, err := c.FormFile("file")
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "signature file expected")
	}
	f, err := fh.Open()
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "unreadable signature")
	}
	defer f.Close()
	sig := delivery.Photo{ContentType: fh.Header.Get("Content-Type"), Data: f}
	if err := h.svc.SaveSignature(c.Request().Context(), id, sig); err != nil {
		return deliveryError(c, err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"status": "uploaded"})
}

func (h *DeliveryHandler) GetDraft(c echo.Context) error {
	id, err := deliveryID(c)
	if err != nil {
		return jsonError(c, http.StatusBadRequest, "bad_request", "invalid delivery id")
	}
	d, err := h.svc.Draft(c.Request().Context(), id)
	if err != nil {
		return jsonError(c, http.StatusInternalServerError, "internal_error", "draft lookup failed")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"draft":  d,
		"photos": d.Photos(),
	})
}

func deliveryID(c echo.Context) (int64, error) {
	return strconv.ParseInt(c.Param("id"), 10, 64)
}

func deliveryError(c echo.Context, err error) error {
	switch {
	case errors.Is(err, delivery.ErrHoldTooShort):
		return jsonError(c, http.StatusUnprocessableEntity, "hold_too_short", "hold the button to confirm")
	case errors.Is(err, delivery.ErrNotFound):
		return jsonError(c, http.StatusNotFound, "not_found", "delivery is not being tracked")
	case errors.Is(err, delivery.ErrSignatureRequired):
		return jsonError(c, http.StatusPreconditionFailed, "signature_required", "signed receipt missing")
	case errors.Is(err, delivery.ErrPhotosRequired):
		return jsonError(c, http.StatusPreconditionFailed, "photos_required", "delivery photos missing")
	case errors.Is(err, delivery.ErrActionRejected):
		return jsonError(c, http.StatusConflict, "action_rejected", "backend refused the action")
	}
	return jsonError(c, http.StatusInternalServerError, "internal_error", "delivery action failed")
}
