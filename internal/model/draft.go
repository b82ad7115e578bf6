package model

import (
	"encoding/json"
	"time"
)

// DeliveryDraft holds proof-of-delivery work in progress for one delivery,
// persisted locally so a shell restart does not lose captured state. The
// lock flags flip once the corresponding artifact is confirmed uploaded;
// the backend's check-media answer still wins at finalize time.
type DeliveryDraft struct {
	DeliveryID      int64  `gorm:"primaryKey" json:"entrega_id"`
	PhotosJSON      string `json:"-"`
	Description     string `json:"description"`
	ReceiverName    string `json:"receiver_name"`
	ReceiverLocked  bool   `json:"receiver_locked"`
	PhotoLocked     bool   `json:"photo_locked"`
	SignatureLocked bool   `json:"signature_locked"`

	UpdatedAt time.Time `json:"updated_at"`
}

// Photos decodes the stored photo filename list.
func (d *DeliveryDraft) Photos() []string {
	if d.PhotosJSON == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(d.PhotosJSON), &list); err != nil {
		return nil
	}
	return list
}

// SetPhotos encodes the photo filename list for storage.
func (d *DeliveryDraft) SetPhotos(list []string) {
	if len(list) == 0 {
		d.PhotosJSON = ""
		return
	}
	b, _ := json.Marshal(list)
	d.PhotosJSON = string(b)
}
