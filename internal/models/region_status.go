package models

import "time"

// RegionMatchStatus caches applicant counts per region and cycle. It is
// derived data; a missing row means closed.
type RegionMatchStatus struct {
	ID          uint      `gorm:"primaryKey" json:"-"`
	Cycle       string    `gorm:"size:10;not null;uniqueIndex:idx_region_status_key,priority:1" json:"cycle"`
	RegionBroad string    `gorm:"size:64;not null;uniqueIndex:idx_region_status_key,priority:2" json:"region_broad"`
	RegionFine  string    `gorm:"size:64;not null;default:'';uniqueIndex:idx_region_status_key,priority:3" json:"region_fine"`
	FemaleCount int64     `gorm:"not null;default:0" json:"female_count"`
	MaleCount   int64     `gorm:"not null;default:0" json:"male_count"`
	IsOpen      bool      `gorm:"not null;default:false" json:"is_open"`
	ComputedAt  time.Time `gorm:"not null" json:"computed_at"`
}

func (RegionMatchStatus) TableName() string {
	return "region_match_statuses"
}
