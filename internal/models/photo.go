package models

import "time"

// Photo records one upload as a pair of assets. ObscuredKey is always derived
// from OriginalKey (see blobstore.ObscuredName); both are stored so a row can
// be cleaned up even if the naming rule ever changes.
type Photo struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	OwnerID     uint      `gorm:"not null;index" json:"owner_id"`
	OriginalKey string    `gorm:"size:255;not null;uniqueIndex" json:"original_key"`
	ObscuredKey string    `gorm:"size:255;not null" json:"-"`
	ObscuredURL string    `gorm:"size:512;not null" json:"obscured_url"`
	ContentType string    `gorm:"size:50" json:"content_type"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`

	Owner Member `gorm:"foreignKey:OwnerID;constraint:OnDelete:CASCADE" json:"-"`
}

func (Photo) TableName() string {
	return "photos"
}
