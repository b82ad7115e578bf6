// Package delivery drives the per-delivery action flow: the hold-to-confirm
// stage progression (coletar, entregar, retornar, finalizar), proof-of-delivery
// capture and the startup rehydration of the accepted list.
package delivery

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rotaouro/courier-agent/internal/backend"
	"github.com/rotaouro/courier-agent/internal/drafts"
	"github.com/rotaouro/courier-agent/internal/model"
	"github.com/rotaouro/courier-agent/internal/store"
)

var (
	// ErrHoldTooShort means the confirmation gesture released before the
	// threshold; nothing was sent to the backend.
	ErrHoldTooShort = errors.New("hold released too early")
	ErrNotFound     = errors.New("delivery not tracked")
	// ErrActionRejected means the backend refused the write; local stage is
	// unchanged and the operator may retry.
	ErrActionRejected = errors.New("action rejected by backend")
	// ErrSignatureRequired and ErrPhotosRequired block finalize until the
	// missing artifact is uploaded. Both come from the backend's check-media
	// answer, which overrides any local lock state.
	ErrSignatureRequired = errors.New("signed receipt missing")
	ErrPhotosRequired    = errors.New("delivery photos missing")
)

// Photo is one captured proof-of-delivery image.
type Photo struct {
	ContentType string
	Data        io.Reader
}

type Service interface {
	// Advance confirms the current stage of the delivery after a hold
	// gesture of the given duration and returns the stage now pending.
	// Finalize is terminal: the delivery leaves the accepted list.
	Advance(ctx context.Context, deliveryID int64, held time.Duration) (model.Stage, error)

	SaveReceiver(ctx context.Context, deliveryID int64, name string) error
	SaveDescription(ctx context.Context, deliveryID int64, text string) error
	UploadPhotos(ctx context.Context, deliveryID int64, photos []Photo) error
	SaveSignature(ctx context.Context, deliveryID int64, sig Photo) error
	Draft(ctx context.Context, deliveryID int64) (*model.DeliveryDraft, error)

	// Rehydrate rebuilds the accepted list from the backend's active
	// deliveries listing (startup, or recovery after a long offline gap).
	Rehydrate(ctx context.Context) error

	// ClearDrafts discards drafts for deliveries dropped by reconciliation.
	ClearDrafts(ctx context.Context, deliveryIDs []int64)
}

type Config struct {
	CourierID int64
	// HoldThreshold is the minimum confirmation gesture duration.
	HoldThreshold time.Duration
}

type service struct {
	cfg    Config
	api    backend.API
	store  *store.AcceptedStore
	drafts drafts.DraftRepository
	log    *slog.Logger
}

func NewService(cfg Config, api backend.API, st *store.AcceptedStore, dr drafts.DraftRepository, log *slog.Logger) Service {
	if cfg.HoldThreshold <= 0 {
		cfg.HoldThreshold = 1500 * time.Millisecond
	}
	if log == nil {
		log = slog.Default()
	}
	return &service{cfg: cfg, api: api, store: st, drafts: dr, log: log.With("component", "delivery")}
}

func (s *service) Advance(ctx context.Context, deliveryID int64, held time.Duration) (model.Stage, error) {
	if held < s.cfg.HoldThreshold {
		return "", ErrHoldTooShort
	}
	d, ok := s.store.Get(deliveryID)
	if !ok {
		return "", ErrNotFound
	}
	stage := s.store.Stage(deliveryID)

	if stage == model.StageFinalize {
		if err := s.finalize(ctx, d); err != nil {
			return "", err
		}
		return model.StageFinalize, nil
	}

	status := model.StatusForStage(stage)
	if !s.api.UpdateStatus(ctx, deliveryID, status) {
		return "", ErrActionRejected
	}
	next := model.NextStage(stage, d.HasReturn)
	s.store.SetStage(deliveryID, next)
	s.log.Info("stage confirmed", "entrega_id", deliveryID, "status", status, "next", next)
	return next, nil
}

// finalize runs the proof-of-delivery gate and the finalize call. When the
// delivery demands a signed receipt, the backend's media answer decides:
// local lock flags are only a hint. A failed re-read falls back to the
// cached signature flag, never skips the gate.
func (s *service) finalize(ctx context.Context, d model.AcceptedDelivery) error {
	needsSignature := d.SignatureRequired
	if rec := s.api.FetchByID(ctx, d.DeliveryID); rec != nil {
		needsSignature = rec.SignatureRequired()
	}
	if needsSignature {
		ms := s.api.CheckMedia(ctx, d.DeliveryID)
		if !ms.HasSignature {
			return ErrSignatureRequired
		}
		if !ms.HasPhotos {
			return ErrPhotosRequired
		}
	}
	if !s.api.Finalize(ctx, d.DeliveryID, s.cfg.CourierID) {
		return ErrActionRejected
	}
	s.store.Remove(d.DeliveryID)
	if err := s.drafts.Delete(ctx, d.DeliveryID); err != nil {
		s.log.Warn("draft cleanup failed", "entrega_id", d.DeliveryID, "err", err)
	}
	s.log.Info("delivery finalized", "entrega_id", d.DeliveryID)
	return nil
}

func (s *service) SaveReceiver(ctx context.Context, deliveryID int64, name string) error {
	if _, ok := s.store.Get(deliveryID); !ok {
		return ErrNotFound
	}
	if !s.api.SetReceiver(ctx, deliveryID, name) {
		return ErrActionRejected
	}
	return s.mutateDraft(ctx, deliveryID, func(d *model.DeliveryDraft) {
		d.ReceiverName = name
		d.ReceiverLocked = true
	})
}

func (s *service) SaveDescription(ctx context.Context, deliveryID int64, text string) error {
	if _, ok := s.store.Get(deliveryID); !ok {
		return ErrNotFound
	}
	return s.mutateDraft(ctx, deliveryID, func(d *model.DeliveryDraft) {
		d.Description = text
	})
}

func (s *service) UploadPhotos(ctx context.Context, deliveryID int64, photos []Photo) error {
	if _, ok := s.store.Get(deliveryID); !ok {
		return ErrNotFound
	}
	var names []string
	for _, p := range photos {
		name := "foto_" + uuid.NewString() + extFor(p.ContentType)
		if !s.api.UploadPhoto(ctx, deliveryID, name, p.ContentType, p.Data) {
			return ErrActionRejected
		}
		names = append(names, name)
	}
	return s.mutateDraft(ctx, deliveryID, func(d *model.DeliveryDraft) {
		d.SetPhotos(append(d.Photos(), names...))
		d.PhotoLocked = true
	})
}

func (s *service) SaveSignature(ctx context.Context, deliveryID int64, sig Photo) error {
	if _, ok := s.store.Get(deliveryID); !ok {
		return ErrNotFound
	}
	name := "assinatura_" + uuid.NewString() + extFor(sig.ContentType)
	if !s.api.UploadSignature(ctx, deliveryID, name, sig.ContentType, sig.Data) {
		return ErrActionRejected
	}
	return s.mutateDraft(ctx, deliveryID, func(d *model.DeliveryDraft) {
		d.SignatureLocked = true
	})
}

func (s *service) Draft(ctx context.Context, deliveryID int64) (*model.DeliveryDraft, error) {
	return s.drafts.Get(ctx, deliveryID)
}

func (s *service) Rehydrate(ctx context.Context) error {
	records := s.api.ActiveDeliveries(ctx, s.cfg.CourierID)
	list := make([]model.AcceptedDelivery, 0, len(records))
	for i := range records {
		rec := &records[i]
		id := rec.DeliveryID()
		if id == 0 {
			continue
		}
		list = append(list, model.AcceptedDelivery{
			DeliveryID:        id,
			PublicCode:        rec.PublicCode(),
			ClientName:        rec.ClienteNome.String(),
			PickupAddress:     rec.ColetaEndereco.String(),
			DropoffAddress:    rec.EntregaEndereco.String(),
			Commission:        rec.ValorTotalMotoboy.String(),
			HasReturn:         rec.HasReturnLeg(),
			SignatureRequired: rec.SignatureRequired(),
		})
	}
	s.store.ReplaceAll(list)
	for i := range records {
		rec := &records[i]
		if id := rec.DeliveryID(); id != 0 {
			s.store.SetStage(id, model.StatusToStage(rec.NormStatus(), rec.HasReturnLeg()))
		}
	}
	s.log.Info("rehydrated accepted list", "count", len(list))
	return nil
}

func (s *service) ClearDrafts(ctx context.Context, deliveryIDs []int64) {
	if err := s.drafts.DeleteMany(ctx, deliveryIDs); err != nil {
		s.log.Warn("draft cleanup failed", "ids", deliveryIDs, "err", err)
	}
}

func (s *service) mutateDraft(ctx context.Context, deliveryID int64, fn func(*model.DeliveryDraft)) error {
	d, err := s.drafts.Get(ctx, deliveryID)
	if err != nil {
		return err
	}
	fn(d)
	return s.drafts.Save(ctx, d)
}

func extFor(contentType string) string {
	switch contentType {
	case "image/png":
		return ".png"
	case "image/jpeg", "image/jpg":
		return ".jpg"
	}
	return ".bin"
}
