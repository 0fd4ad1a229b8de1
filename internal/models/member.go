package models

import (
	"strings"
	"time"

	"shelfmate/internal/domain"
)

type Member struct {
	ID uint `gorm:"primaryKey" json:"id"`
	// AuthUserID links to the login identity. nil means the member withdrew;
	// the row itself stays so ledger history keeps its referent.
	AuthUserID       *string `gorm:"uniqueIndex;size:128" json:"-"`
	LegacyAuthUserID string  `gorm:"size:128;not null;index;<-:create" json:"-"`

	Nickname       string     `gorm:"size:64;not null" json:"nickname"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         string     `gorm:"size:10;not null;index" json:"gender"` // female | male
	RegionBroad    string     `gorm:"size:64;not null;index:idx_members_region" json:"region_broad"`
	RegionFine     string     `gorm:"size:64;not null;index:idx_members_region" json:"region_fine"`
	FavoriteBook   string     `gorm:"size:255" json:"favorite_book"`
	FavoriteAuthor string     `gorm:"size:255" json:"favorite_author"`
	Bio            string     `gorm:"type:text" json:"bio"`
	Contact        string     `gorm:"size:255" json:"-"` // revealed only through an unlocked match

	FreeRevealsCount int    `gorm:"not null;default:1;check:free_reveals_count >= 0" json:"free_reveals_count"`
	FCMToken         string `gorm:"size:512" json:"-"`

	WithdrawnAt *time.Time `json:"withdrawn_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (Member) TableName() string {
	return "members"
}

// Withdrawn reports whether the identity pointer has been detached.
func (m *Member) Withdrawn() bool { return m.AuthUserID == nil }

// Age returns age in whole years at t, or 0 when DOB is unknown.
func (m *Member) Age(t time.Time) int {
	if m.DateOfBirth == nil {
		return 0
	}
	dob := *m.DateOfBirth
	age := t.Year() - dob.Year()
	if t.Month() < dob.Month() || (t.Month() == dob.Month() && t.Day() < dob.Day()) {
		age--
	}
	return age
}

// Region returns the two-level region key of the member.
func (m *Member) Region() Region {
	return Region{Broad: m.RegionBroad, Fine: m.RegionFine}
}

// DisplayName is what other members see.
func (m *Member) DisplayName() string {
	if m.Withdrawn() {
		return domain.WithdrawnNickname
	}
	return m.Nickname
}

// Region is a broad administrative unit plus a fine unit inside it. An empty
// Fine addresses the broad level as a whole.
type Region struct {
	Broad string `json:"broad"`
	Fine  string `json:"fine"`
}

func (r Region) BroadOnly() Region { return Region{Broad: r.Broad} }

func (r Region) IsBroad() bool { return r.Fine == "" }

// Label is the human-readable location, e.g. "서울 마포구".
func (r Region) Label() string {
	return strings.TrimSpace(r.Broad + " " + r.Fine)
}
