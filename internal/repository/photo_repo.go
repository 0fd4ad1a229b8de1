package repository

import (
	"context"
	"errors"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"

	"gorm.io/gorm"
)

type PhotoRepository struct {
	db *gorm.DB
}

func NewPhotoRepository(db *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: db}
}

func (r *PhotoRepository) WithTx(tx *gorm.DB) *PhotoRepository {
	return &PhotoRepository{db: tx}
}

func (r *PhotoRepository) Create(ctx context.Context, p *models.Photo) error {
	return r.db.WithContext(ctx).Omit("Owner").Create(p).Error
}

func (r *PhotoRepository) GetByID(ctx context.Context, id uint) (*models.Photo, error) {
	var p models.Photo
	err := r.db.WithContext(ctx).First(&p, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPhotoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhotoRepository) GetByOriginalKey(ctx context.Context, key string) (*models.Photo, error) {
	var p models.Photo
	err := r.db.WithContext(ctx).Where("original_key = ?", key).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrPhotoNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PhotoRepository) ListByOwner(ctx context.Context, ownerID uint) ([]models.Photo, error) {
	var list []models.Photo
	err := r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Order("id ASC").Find(&list).Error
	return list, err
}

// ListByOwners groups photos of several members by owner id.
func (r *PhotoRepository) ListByOwners(ctx context.Context, ownerIDs []uint) (map[uint][]models.Photo, error) {
	out := make(map[uint][]models.Photo, len(ownerIDs))
	if len(ownerIDs) == 0 {
		return out, nil
	}
	var list []models.Photo
	if err := r.db.WithContext(ctx).Where("owner_id IN ?", ownerIDs).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	for _, p := range list {
		out[p.OwnerID] = append(out[p.OwnerID], p)
	}
	return out, nil
}

func (r *PhotoRepository) CountByOwner(ctx context.Context, ownerID uint) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.Photo{}).Where("owner_id = ?", ownerID).Count(&c).Error
	return c, err
}

func (r *PhotoRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Photo{}, id).Error
}

func (r *PhotoRepository) DeleteByOwner(ctx context.Context, ownerID uint) error {
	return r.db.WithContext(ctx).Where("owner_id = ?", ownerID).Delete(&models.Photo{}).Error
}
