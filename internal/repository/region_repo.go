package repository

import (
	"context"

	"shelfmate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RegionRepository struct {
	db *gorm.DB
}

func NewRegionRepository(db *gorm.DB) *RegionRepository {
	return &RegionRepository{db: db}
}

func (r *RegionRepository) WithTx(tx *gorm.DB) *RegionRepository {
	return &RegionRepository{db: tx}
}

// Upsert writes the status row keyed by (cycle, broad, fine).
func (r *RegionRepository) Upsert(ctx context.Context, s *models.RegionMatchStatus) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "cycle"}, {Name: "region_broad"}, {Name: "region_fine"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"female_count", "male_count", "is_open", "computed_at",
		}),
	}).Create(s).Error
}

// Get returns the stored status, or nil with no error when none exists.
func (r *RegionRepository) Get(ctx context.Context, cycle string, region models.Region) (*models.RegionMatchStatus, error) {
	var s models.RegionMatchStatus
	err := r.db.WithContext(ctx).
		Where("cycle = ? AND region_broad = ? AND region_fine = ?", cycle, region.Broad, region.Fine).
		First(&s).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *RegionRepository) ListByCycle(ctx context.Context, cycle string) ([]models.RegionMatchStatus, error) {
	var list []models.RegionMatchStatus
	err := r.db.WithContext(ctx).Where("cycle = ?", cycle).
		Order("region_broad ASC, region_fine ASC").Find(&list).Error
	return list, err
}
