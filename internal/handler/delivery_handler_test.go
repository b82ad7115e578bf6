package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/rotaouro/courier-agent/internal/delivery"
	"github.com/rotaouro/courier-agent/internal/model"
	"github.com/rotaouro/courier-agent/internal/store"
)

type fakeDeliveryService struct {
	advanceErr error
	advanced   []time.Duration
	receiver   string
}

func (f *fakeDeliveryService) Advance(_ context.Context, _ int64, held time.Duration) (model.Stage, error) {
	f.advanced = append(f.advanced, held)
	if f.advanceErr != nil {
		return "", f.advanceErr
	}
	return model.StageDeliver, nil
}

func (f *fakeDeliveryService) SaveReceiver(_ context.Context, _ int64, name string) error {
	f.receiver = name
	return nil
}

func (f *fakeDeliveryService) SaveDescription(context.Context, int64, string) error { return nil }
func (f *fakeDeliveryService) UploadPhotos(context.Context, int64, []delivery.Photo) error {
	return nil
}
func (f *fakeDeliveryService) SaveSignature(context.Context, int64, delivery.Photo) error {
	return nil
}
func (f *fakeDeliveryService) Draft(_ context.Context, id int64) (*model.DeliveryDraft, error) {
	return &model.DeliveryDraft{DeliveryID: id}, nil
}
func (f *fakeDeliveryService) Rehydrate(context.Context) error         { return nil }
func (f *fakeDeliveryService) ClearDrafts(context.Context, []int64) {}

func doJSON(t *testing.T, h echo.HandlerFunc, method, path, body, paramID string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if paramID != "" {
		c.SetParamNames("id")
		c.SetParamValues(paramID)
	}
	if err := h(c); err != nil {
		t.Fatalf("handler error: %v", err)
	}
	return rec
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("bad error body %q: %v", rec.Body.String(), err)
	}
	return resp.Error.Code
}

func TestAdvanceErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"hold too short", delivery.ErrHoldTooShort, http.StatusUnprocessableEntity, "hold_too_short"},
		{"not tracked", delivery.ErrNotFound, http.StatusNotFound, "not_found"},
		{"signature missing", delivery.ErrSignatureRequired, http.StatusPreconditionFailed, "signature_required"},
		{"photos missing", delivery.ErrPhotosRequired, http.StatusPreconditionFailed, "photos_required"},
		{"backend refused", delivery.ErrActionRejected, http.StatusConflict, "action_rejected"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &fakeDeliveryService{advanceErr: tt.err}
			h := NewDeliveryHandler(svc, store.New(1))
			rec := doJSON(t, h.Advance, http.MethodPost, "/api/deliveries/1/advance", `{"held_ms":2000}`, "1")
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			if got := errorCode(t, rec); got != tt.wantCode {
				t.Fatalf("code = %q, want %q", got, tt.wantCode)
			}
		})
	}
}

func TestAdvancePassesHeldDuration(t *testing.T) {
	svc := &fakeDeliveryService{}
	h := NewDeliveryHandler(svc, store.New(1))
	rec := doJSON(t, h.Advance, http.MethodPost, "/api/deliveries/1/advance", `{"held_ms":1800}`, "1")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	if len(svc.advanced) != 1 || svc.advanced[0] != 1800*time.Millisecond {
		t.Fatalf("held = %v", svc.advanced)
	}
	var resp map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp["stage"] != "entregar" || resp["stage_label"] != "Entregar" {
		t.Fatalf("resp = %v", resp)
	}
}

func TestAdvanceBadID(t *testing.T) {
	h := NewDeliveryHandler(&fakeDeliveryService{}, store.New(1))
	rec := doJSON(t, h.Advance, http.MethodPost, "/api/deliveries/x/advance", `{"held_ms":2000}`, "x")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestListIncludesStage(t *testing.T) {
	st := store.New(1)
	st.Add(model.AcceptedDelivery{DeliveryID: 1, PublicCode: "A-17", HasReturn: true})
	st.SetStage(1, model.StageReturn)
	h := NewDeliveryHandler(&fakeDeliveryService{}, st)

	rec := doJSON(t, h.List, http.MethodGet, "/api/deliveries", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Deliveries []DeliveryResponse `json:"deliveries"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Deliveries) != 1 {
		t.Fatalf("deliveries = %v", resp.Deliveries)
	}
	d := resp.Deliveries[0]
	if d.Stage != "retornar" || d.StageLabel != "Retornar" || d.PublicCode != "A-17" {
		t.Fatalf("got %+v", d)
	}
}

func TestSetReceiverRequiresName(t *testing.T) {
	svc := &fakeDeliveryService{}
	h := NewDeliveryHandler(svc, store.New(1))
	rec := doJSON(t, h.SetReceiver, http.MethodPut, "/api/deliveries/1/receiver", `{}`, "1")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
	rec = doJSON(t, h.SetReceiver, http.MethodPut, "/api/deliveries/1/receiver", `{"name":"Ana"}`, "1")
	if rec.Code != http.StatusOK || svc.receiver != "Ana" {
		t.Fatalf("status = %d, receiver = %q", rec.Code, svc.receiver)
	}
}
