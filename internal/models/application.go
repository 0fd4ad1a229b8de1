package models

import "time"

// DatingApplication enrolls a member into one weekly cycle. Cycle is the
// cycle start key ("2006-01-02") the application counts toward.
type DatingApplication struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	MemberID    uint      `gorm:"not null;uniqueIndex:idx_applications_member_cycle,priority:1" json:"member_id"`
	Cycle       string    `gorm:"size:10;not null;uniqueIndex:idx_applications_member_cycle,priority:2;index" json:"cycle"`
	SubmittedAt time.Time `gorm:"not null" json:"submitted_at"`
	CreatedAt   time.Time `json:"created_at"`

	Member Member `gorm:"foreignKey:MemberID;constraint:OnDelete:CASCADE" json:"-"`
}

func (DatingApplication) TableName() string {
	return "dating_applications"
}
