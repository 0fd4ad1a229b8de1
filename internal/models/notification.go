package models

import "time"

type Notification struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	RecipientID *uint      `gorm:"index:idx_notifications_recipient_read,priority:1" json:"-"`
	SenderID    *uint      `gorm:"index" json:"sender_id"`
	MatchID     *uint      `gorm:"index" json:"match_id"`
	Type        string     `gorm:"size:50;not null" json:"type"`
	Read        bool       `gorm:"not null;default:false;index:idx_notifications_recipient_read,priority:2" json:"read"`
	ReadAt      *time.Time `json:"read_at"`
	CreatedAt   time.Time  `json:"created_at"`

	Recipient *Member       `gorm:"foreignKey:RecipientID;constraint:OnDelete:SET NULL" json:"-"`
	Sender    *Member       `gorm:"foreignKey:SenderID;constraint:OnDelete:SET NULL" json:"-"`
	Match     *MatchRequest `gorm:"foreignKey:MatchID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Notification) TableName() string {
	return "notifications"
}
