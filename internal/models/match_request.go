package models

import (
	"time"

	"shelfmate/internal/domain"
)

type MatchRequest struct {
	ID         uint   `gorm:"primaryKey" json:"id"`
	SenderID   uint   `gorm:"not null;index;uniqueIndex:idx_match_requests_active,priority:1" json:"sender_id"`
	ReceiverID uint   `gorm:"not null;index;uniqueIndex:idx_match_requests_active,priority:2" json:"receiver_id"`
	Cycle      string `gorm:"size:10;not null;uniqueIndex:idx_match_requests_active,priority:3" json:"cycle"`
	// ActiveSlot is 1 until the request is cancelled, then NULL. NULLs never
	// collide in a unique index, so the index allows one live request per
	// ordered pair per cycle and any number of cancelled ones.
	ActiveSlot *int8 `gorm:"uniqueIndex:idx_match_requests_active,priority:4" json:"-"`

	Letter       string     `gorm:"type:text;not null" json:"letter"`
	Status       string     `gorm:"size:20;not null;index" json:"status"` // pending, accepted, rejected, cancelled
	Unlocked     bool       `gorm:"not null;default:false" json:"unlocked"`
	UnlockedAt   *time.Time `json:"unlocked_at,omitempty"`
	PaymentTxRef *string    `gorm:"size:255" json:"payment_tx_ref,omitempty"`
	RespondedAt  *time.Time `json:"responded_at,omitempty"`
	CancelledAt  *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	Sender   Member `gorm:"foreignKey:SenderID" json:"-"`
	Receiver Member `gorm:"foreignKey:ReceiverID" json:"-"`
}

func (MatchRequest) TableName() string {
	return "match_requests"
}

// ActiveSlotValue is the ActiveSlot of a live (non-cancelled) request.
func ActiveSlotValue() *int8 {
	v := int8(1)
	return &v
}

func (r *MatchRequest) IsAccepted() bool { return r.Status == domain.MatchStatusAccepted }
func (r *MatchRequest) IsPending() bool  { return r.Status == domain.MatchStatusPending }

// HasParty reports whether memberID is the sender or the receiver.
func (r *MatchRequest) HasParty(memberID uint) bool {
	return r.SenderID == memberID || r.ReceiverID == memberID
}

// Counterpart returns the other party, or 0 when memberID is not a party.
func (r *MatchRequest) Counterpart(memberID uint) uint {
	switch memberID {
	case r.SenderID:
		return r.ReceiverID
	case r.ReceiverID:
		return r.SenderID
	}
	return 0
}
