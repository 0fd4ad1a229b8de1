package models

import "time"

// Payment is a ledger row. Its member and match references are nullable and
// set to NULL when the referent is deleted; the row itself is never removed.
type Payment struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PayerID       *uint     `gorm:"index" json:"payer_id"`
	CounterpartID *uint     `gorm:"index" json:"counterpart_id"`
	MatchID       *uint     `gorm:"index" json:"match_id"`
	Amount        int64     `gorm:"not null" json:"amount"`
	Currency      string    `gorm:"size:3;not null;default:'KRW'" json:"currency"`
	Status        string    `gorm:"size:20;not null;index" json:"status"` // completed, failed, refunded
	Method        string    `gorm:"size:20;not null" json:"method"`       // card, free_reveal
	TransactionID string    `gorm:"size:255;not null;uniqueIndex" json:"transaction_id"`
	CreatedAt     time.Time `json:"created_at"`

	Payer       *Member       `gorm:"foreignKey:PayerID;constraint:OnDelete:SET NULL" json:"-"`
	Counterpart *Member       `gorm:"foreignKey:CounterpartID;constraint:OnDelete:SET NULL" json:"-"`
	Match       *MatchRequest `gorm:"foreignKey:MatchID;constraint:OnDelete:SET NULL" json:"-"`
}

func (Payment) TableName() string {
	return "payments"
}
