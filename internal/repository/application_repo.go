package repository

import (
	"context"
	"errors"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ApplicationRepository struct {
	db *gorm.DB
}

func NewApplicationRepository(db *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

func (r *ApplicationRepository) WithTx(tx *gorm.DB) *ApplicationRepository {
	return &ApplicationRepository{db: tx}
}

// CreateOnce inserts app unless the member already applied for that cycle,
// and returns the stored row either way.
func (r *ApplicationRepository) CreateOnce(ctx context.Context, app *models.DatingApplication) (*models.DatingApplication, error) {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "member_id"}, {Name: "cycle"}},
		DoNothing: true,
	}).Create(app).Error
	if err != nil {
		return nil, err
	}
	return r.GetByMemberAndCycle(ctx, app.MemberID, app.Cycle)
}

func (r *ApplicationRepository) GetByMemberAndCycle(ctx context.Context, memberID uint, cycle string) (*models.DatingApplication, error) {
	var a models.DatingApplication
	err := r.db.WithContext(ctx).Where("member_id = ? AND cycle = ?", memberID, cycle).First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// HasAny reports whether at least one of memberIDs applied for cycle.
func (r *ApplicationRepository) HasAny(ctx context.Context, cycle string, memberIDs ...uint) (bool, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.DatingApplication{}).
		Where("cycle = ? AND member_id IN ?", cycle, memberIDs).
		Count(&c).Error
	return c > 0, err
}

// GenderCounts are live applicants for one region and cycle.
type GenderCounts struct {
	Female int64
	Male   int64
}

// CountByGender counts applications of non-withdrawn members in region for
// cycle. An empty region.Fine counts the whole broad unit.
func (r *ApplicationRepository) CountByGender(ctx context.Context, cycle string, region models.Region) (GenderCounts, error) {
	var rows []struct {
		Gender string
		N      int64
	}
	q := r.db.WithContext(ctx).Table("dating_applications a").
		Select("m.gender AS gender, COUNT(*) AS n").
		Joins("INNER JOIN members m ON m.id = a.member_id").
		Where("a.cycle = ? AND m.auth_user_id IS NOT NULL AND m.region_broad = ?", cycle, region.Broad)
	if !region.IsBroad() {
		q = q.Where("m.region_fine = ?", region.Fine)
	}
	if err := q.Group("m.gender").Scan(&rows).Error; err != nil {
		return GenderCounts{}, err
	}
	var gc GenderCounts
	for _, row := range rows {
		switch row.Gender {
		case domain.GenderFemale:
			gc.Female = row.N
		case domain.GenderMale:
			gc.Male = row.N
		}
	}
	return gc, nil
}

func (r *ApplicationRepository) DeleteByMember(ctx context.Context, memberID uint) error {
	return r.db.WithContext(ctx).Where("member_id = ?", memberID).Delete(&models.DatingApplication{}).Error
}

// IsNotFound reports a missing application row.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
