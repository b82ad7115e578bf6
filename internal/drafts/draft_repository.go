// Package drafts persists proof-of-delivery work in progress (receiver name,
// photo list, lock flags) in the local sqlite database, keyed by delivery id.
package drafts

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/rotaouro/courier-agent/internal/model"
)

type DraftRepository interface {
	Get(ctx context.Context, deliveryID int64) (*model.DeliveryDraft, error)
	Save(ctx context.Context, d *model.DeliveryDraft) error
	Delete(ctx context.Context, deliveryID int64) error
	DeleteMany(ctx context.Context, deliveryIDs []int64) error
}

type draftRepository struct {
	db *gorm.DB
}

func NewDraftRepository(db *gorm.DB) DraftRepository {
	return &draftRepository{db: db}
}

// Get returns the draft for the delivery, or a fresh empty one when nothing
// has been captured yet.
func (r *draftRepository) Get(ctx context.Context, deliveryID int64) (*model.DeliveryDraft, error) {
	var d model.DeliveryDraft
	err := r.db.WithContext(ctx).First(&d, "delivery_id = ?", deliveryID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &model.DeliveryDraft{DeliveryID: deliveryID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func (r *draftRepository) Save(ctx context.Context, d *model.DeliveryDraft) error {
	return r.db.WithContext(ctx).Save(d).Error
}

func (r *draftRepository) Delete(ctx context.Context, deliveryID int64) error {
	return r.db.WithContext(ctx).Delete(&model.DeliveryDraft{}, "delivery_id = ?", deliveryID).Error
}

// DeleteMany clears drafts for deliveries dropped by a reconciliation pass.
func (r *draftRepository) DeleteMany(ctx context.Context, deliveryIDs []int64) error {
	if len(deliveryIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&model.DeliveryDraft{}, "delivery_id IN ?", deliveryIDs).Error
}
