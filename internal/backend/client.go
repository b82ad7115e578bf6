// Package backend is the agent's boundary with the remote courier platform
// API. Every operation tries the current /api route first and falls back to
// the legacy route without the prefix; the first 2xx wins. Failures are
// converted to boolean/nil results plus a logged diagnostic. Callers never
// see transport errors; they see "not done" and may retry on a fresh user
// action.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"github.com/rotaouro/courier-agent/internal/model"
	"github.com/rotaouro/courier-agent/internal/offerkey"
)

// API is the set of platform operations the engine consumes. All writes are
// idempotent from the caller's perspective: a false result means "not done",
// with no side effect assumed.
type API interface {
	FetchByID(ctx context.Context, deliveryID int64) *model.DeliveryRecord
	CheckStillAssigned(ctx context.Context, deliveryID, courierID int64, courierName string) bool
	Accept(ctx context.Context, deliveryID, courierID int64) bool
	Reject(ctx context.Context, deliveryID, courierID int64) bool
	UpdateStatus(ctx context.Context, deliveryID int64, status string) bool
	Finalize(ctx context.Context, deliveryID, courierID int64) bool
	CheckMedia(ctx context.Context, deliveryID int64) model.MediaStatus
	BatchStatuses(ctx context.Context) []model.StatusEntry
	ActiveDeliveries(ctx context.Context, courierID int64) []model.DeliveryRecord
	PendingAssignments(ctx context.Context, courierID int64) []model.DeliveryRecord

	SetReceiver(ctx context.Context, deliveryID int64, name string) bool
	UploadPhoto(ctx context.Context, deliveryID int64, filename, contentType string, r io.Reader) bool
	UploadSignature(ctx context.Context, deliveryID int64, filename, contentType string, r io.Reader) bool

	SetPresence(ctx context.Context, courierID int64, online bool) bool
	SendLocation(ctx context.Context, courierID int64, lat, lon float64) bool
	FetchCourier(ctx context.Context, courierID int64) *model.Courier
	RegisterPushToken(ctx context.Context, courierID int64, token string) bool
}

type Client struct {
	base  string
	token string
	http  *http.Client
	log   *slog.Logger
	now   func() time.Time
}

func New(base, token string, timeout time.Duration, log *slog.Logger) *Client {
	if log == nil {
		log = slog.Default()
	}
	return &Client{
		base:  strings.TrimRight(base, "/"),
		token: token,
		http:  &http.Client{Timeout: timeout},
		log:   log.With("component", "backend"),
		now:   time.Now,
	}
}

func (c *Client) FetchByID(ctx context.Context, deliveryID int64) *model.DeliveryRecord {
	raw, ok := c.getRaw(ctx, fmt.Sprintf("/entregas-pendentes/%d", deliveryID))
	if !ok {
		return nil
	}
	rec := unmarshalRecord(raw)
	if rec == nil {
		c.log.Warn("fetch delivery: unparseable body", "entrega_id", deliveryID)
	}
	return rec
}

// CheckStillAssigned re-reads the delivery and reports whether the offer is
// still held for this courier: status in the "new/pending" family, the
// assignment pointing at us by id or (case-insensitive) name, and the
// assignment deadline, when present, not yet elapsed.
func (c *Client) CheckStillAssigned(ctx context.Context, deliveryID, courierID int64, courierName string) bool {
	rec := c.FetchByID(ctx, deliveryID)
	if rec == nil {
		return false
	}
	return StillAssigned(rec, courierID, courierName, c.now())
}

// StillAssigned is the pure derivation behind CheckStillAssigned.
func StillAssigned(rec *model.DeliveryRecord, courierID int64, courierName string, now time.Time) bool {
	if rec.NormStatus() != model.StatusNovo {
		return false
	}
	idOK := courierID != 0 && rec.AssignedCourierID() == courierID
	nameOK := false
	if !idOK {
		n := strings.TrimSpace(rec.AssignedCourierName())
		m := strings.TrimSpace(courierName)
		nameOK = n != "" && m != "" && strings.EqualFold(n, m)
	}
	if !idOK && !nameOK {
		return false
	}
	if dl := rec.AssignDeadline(); dl != nil {
		if secs, ok := offerkey.SecondsRemaining(dl, now); ok && secs <= 0 {
			return false
		}
	}
	return true
}

func (c *Client) Accept(ctx context.Context, deliveryID, courierID int64) bool {
	return c.try(ctx, http.MethodPost, fmt.Sprintf("/entregas-pendentes/%d/accept", deliveryID),
		map[string]any{"motoboy_id": courierID}, nil)
}

func (c *Client) Reject(ctx context.Context, deliveryID, courierID int64) bool {
	return c.try(ctx, http.MethodPost, fmt.Sprintf("/entregas-pendentes/%d/reject", deliveryID),
		map[string]any{"motoboy_id": courierID}, nil)
}

func (c *Client) UpdateStatus(ctx context.Context, deliveryID int64, status string) bool {
	return c.try(ctx, http.MethodPut, fmt.Sprintf("/entregas-pendentes/%d/status", deliveryID),
		map[string]any{"status": status}, nil)
}

func (c *Client) Finalize(ctx context.Context, deliveryID, courierID int64) bool {
	return c.try(ctx, http.MethodPost, fmt.Sprintf("/entregas-pendentes/%d/finalizar", deliveryID),
		map[string]any{"motoboy_id": courierID}, nil)
}

// CheckMedia reports which proof-of-delivery artifacts the backend already
// holds. On failure both flags are false: finalize must assume missing.
func (c *Client) CheckMedia(ctx context.Context, deliveryID int64) model.MediaStatus {
	var ms model.MediaStatus
	if !c.try(ctx, http.MethodGet, fmt.Sprintf("/entregas-pendentes/%d/check-media", deliveryID), nil, &ms) {
		c.log.Warn("check media failed, assuming missing", "entrega_id", deliveryID)
		return model.MediaStatus{}
	}
	return ms
}

// BatchStatuses lists {entrega_id, status} for the courier's active
// deliveries. An empty slice means "nothing usable this tick"; the
// reconciler skips rather than treating it as everything-concluded.
func (c *Client) BatchStatuses(ctx context.Context) []model.StatusEntry {
	raw, ok := c.getRaw(ctx, "/entregas-pendentes/statuses")
	if !ok {
		return nil
	}
	var list []model.StatusEntry
	if err := json.Unmarshal(raw, &list); err != nil {
		var wrapped struct {
			Data []model.StatusEntry `json:"data"`
		}
		if err2 := json.Unmarshal(raw, &wrapped); err2 != nil {
			c.log.Warn("batch statuses: unparseable body", "err", err)
			return nil
		}
		list = wrapped.Data
	}
	out := list[:0]
	for _, e := range list {
		if e.DeliveryID() != 0 {
			out = append(out, e)
		}
	}
	return out
}

func (c *Client) ActiveDeliveries(ctx context.Context, courierID int64) []model.DeliveryRecord {
	var list []model.DeliveryRecord
	if !c.try(ctx, http.MethodGet, fmt.Sprintf("/motoboys/%d/entregas-ativas", courierID), nil, &list) {
		return nil
	}
	return list
}

func (c *Client) PendingAssignments(ctx context.Context, courierID int64) []model.DeliveryRecord {
	var list []model.DeliveryRecord
	if !c.try(ctx, http.MethodGet, fmt.Sprintf("/motoboys/%d/novas-atribuicoes", courierID), nil, &list) {
		return nil
	}
	return list
}

func (c *Client) SetReceiver(ctx context.Context, deliveryID int64, name string) bool {
	return c.try(ctx, http.MethodPost, fmt.Sprintf("/entregas-pendentes/%d/recebedor", deliveryID),
		map[string]any{"recebedor_nome": name}, nil)
}

func (c *Client) UploadPhoto(ctx context.Context, deliveryID int64, filename, contentType string, r io.Reader) bool {
	return c.upload(ctx, fmt.Sprintf("/entregas-pendentes/%d/fotos", deliveryID), filename, contentType, r)
}

func (c *Client) UploadSignature(ctx context.Context, deliveryID int64, filename, contentType string, r io.Reader) bool {
	return c.upload(ctx, fmt.Sprintf("/entregas-pendentes/%d/assinatura", deliveryID), filename, contentType, r)
}

func (c *Client) SetPresence(ctx context.Context, courierID int64, online bool) bool {
	status := "Offline"
	if online {
		status = "Online"
	}
	return c.try(ctx, http.MethodPut, fmt.Sprintf("/motoboys/%d/status", courierID),
		map[string]any{"off_on": status}, nil)
}

func (c *Client) SendLocation(ctx context.Context, courierID int64, lat, lon float64) bool {
	return c.try(ctx, http.MethodPut, fmt.Sprintf("/motoboys/%d/loc", courierID),
		map[string]any{"lat": lat, "lon": lon}, nil)
}

func (c *Client) FetchCourier(ctx context.Context, courierID int64) *model.Courier {
	var co model.Courier
	if !c.try(ctx, http.MethodGet, fmt.Sprintf("/motoboys/%d", courierID), nil, &co) {
		return nil
	}
	return &co
}

func (c *Client) RegisterPushToken(ctx context.Context, courierID int64, token string) bool {
	return c.try(ctx, http.MethodPost, fmt.Sprintf("/motoboys/%d/push-token", courierID),
		map[string]any{"token": token}, nil)
}

// try walks the primary and legacy routes with a JSON body and optionally
// decodes the response.
func (c *Client) try(ctx context.Context, method, path string, body, out any) bool {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			c.log.Error("encode request body", "path", path, "err", err)
			return false
		}
	}
	for _, p := range []string{"/api" + path, path} {
		raw, ok := c.do(ctx, method, p, payload, "application/json")
		if !ok {
			continue
		}
		if out == nil {
			return true
		}
		if err := json.Unmarshal(raw, out); err != nil {
			c.log.Warn("decode response", "path", p, "err", err)
			continue
		}
		return true
	}
	return false
}

func (c *Client) getRaw(ctx context.Context, path string) (json.RawMessage, bool) {
	for _, p := range []string{"/api" + path, path} {
		raw, ok := c.do(ctx, http.MethodGet, p, nil, "")
		if ok && len(bytes.TrimSpace(raw)) > 0 {
			return raw, true
		}
	}
	return nil, false
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, contentType string) (json.RawMessage, bool) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rd)
	if err != nil {
		c.log.Error("build request", "path", path, "err", err)
		return nil, false
	}
	if contentType != "" && body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Warn("request failed", "method", method, "path", path, "err", err)
		return nil, false
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		c.log.Warn("read response", "path", path, "err", err)
		return nil, false
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("non-2xx", "method", method, "path", path, "status", resp.StatusCode)
		return nil, false
	}
	return raw, true
}

func (c *Client) upload(ctx context.Context, path, filename, contentType string, r io.Reader) bool {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	hdr := make(textproto.MIMEHeader)
	hdr.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename="%s"`, filename))
	if contentType != "" {
		hdr.Set("Content-Type", contentType)
	}
	part, err := mw.CreatePart(hdr)
	if err != nil {
		c.log.Error("multipart part", "path", path, "err", err)
		return false
	}
	if _, err := io.Copy(part, r); err != nil {
		c.log.Error("multipart copy", "path", path, "err", err)
		return false
	}
	if err := mw.Close(); err != nil {
		c.log.Error("multipart close", "path", path, "err", err)
		return false
	}
	for _, p := range []string{"/api" + path, path} {
		if _, ok := c.do(ctx, http.MethodPost, p, buf.Bytes(), mw.FormDataContentType()); ok {
			return true
		}
	}
	return false
}

// unmarshalRecord tolerates the shapes the platform has been seen to return
// for a single delivery: a plain object, an array with the record first, or
// a {"rows":[...]} envelope.
func unmarshalRecord(raw json.RawMessage) *model.DeliveryRecord {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil
	}
	if trimmed[0] == '[' {
		var list []model.DeliveryRecord
		if err := json.Unmarshal(trimmed, &list); err != nil || len(list) == 0 {
			return nil
		}
		return &list[0]
	}
	var rec model.DeliveryRecord
	if err := json.Unmarshal(trimmed, &rec); err != nil {
		return nil
	}
	if rec.DeliveryID() == 0 {
		var wrapped struct {
			Rows []model.DeliveryRecord `json:"rows"`
		}
		if err := json.Unmarshal(trimmed, &wrapped); err == nil && len(wrapped.Rows) > 0 {
			return &wrapped.Rows[0]
		}
	}
	return &rec
}
