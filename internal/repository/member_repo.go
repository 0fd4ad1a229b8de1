package repository

import (
	"context"
	"errors"
	"time"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"

	"gorm.io/gorm"
)

type MemberRepository struct {
	db *gorm.DB
}

func NewMemberRepository(db *gorm.DB) *MemberRepository {
	return &MemberRepository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *MemberRepository) WithTx(tx *gorm.DB) *MemberRepository {
	return &MemberRepository{db: tx}
}

func (r *MemberRepository) Create(ctx context.Context, m *models.Member) error {
	if m.AuthUserID != nil && m.LegacyAuthUserID == "" {
		m.LegacyAuthUserID = *m.AuthUserID
	}
	return r.db.WithContext(ctx).Create(m).Error
}

func (r *MemberRepository) GetByID(ctx context.Context, id uint) (*models.Member, error) {
	var m models.Member
	err := r.db.WithContext(ctx).First(&m, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetByAuthUserID resolves a login identity. Withdrawn members have no
// identity pointer and are never found here.
func (r *MemberRepository) GetByAuthUserID(ctx context.Context, authUserID string) (*models.Member, error) {
	var m models.Member
	err := r.db.WithContext(ctx).Where("auth_user_id = ?", authUserID).First(&m).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// GetMany returns the members with the given ids keyed by id. Missing ids are
// simply absent from the map.
func (r *MemberRepository) GetMany(ctx context.Context, ids []uint) (map[uint]*models.Member, error) {
	out := make(map[uint]*models.Member, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []models.Member
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

// SetFCMToken writes only the device token of a live member. MySQL reports
// unchanged rows as unaffected, so callers must not read 0 as withdrawn.
func (r *MemberRepository) SetFCMToken(ctx context.Context, id uint, token string) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND auth_user_id IS NOT NULL", id).
		UpdateColumn("fcm_token", token)
	return res.RowsAffected, res.Error
}

// UpdateProfile writes the given profile columns of a live member. Identity,
// credit and withdrawal columns are never touched here.
func (r *MemberRepository) UpdateProfile(ctx context.Context, id uint, fields ProfileFields) (int64, error) {
	cols := map[string]interface{}{}
	if fields.Nickname != nil {
		cols["nickname"] = *fields.Nickname
	}
	if fields.Bio != nil {
		cols["bio"] = *fields.Bio
	}
	if fields.FavoriteBook != nil {
		cols["favorite_book"] = *fields.FavoriteBook
	}
	if fields.FavoriteAuthor != nil {
		cols["favorite_author"] = *fields.FavoriteAuthor
	}
	if fields.Contact != nil {
		cols["contact"] = *fields.Contact
	}
	if len(cols) == 0 {
		return 0, nil
	}
	res := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND auth_user_id IS NOT NULL", id).
		Updates(cols)
	return res.RowsAffected, res.Error
}

// ProfileFields are the member columns a member may edit. nil leaves a
// column as it is.
type ProfileFields struct {
	Nickname       *string
	Bio            *string
	FavoriteBook   *string
	FavoriteAuthor *string
	Contact        *string
}

// ConsumeFreeReveal decrements the credit only while it is positive. false
// means no credit was left.
func (r *MemberRepository) ConsumeFreeReveal(ctx context.Context, id uint) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND free_reveals_count > 0", id).
		UpdateColumn("free_reveals_count", gorm.Expr("free_reveals_count - 1"))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *MemberRepository) FreeRevealsCount(ctx context.Context, id uint) (int, error) {
	var n int
	err := r.db.WithContext(ctx).Model(&models.Member{}).Where("id = ?", id).
		Select("free_reveals_count").Scan(&n).Error
	return n, err
}

// Tombstone detaches the login identity and scrubs private fields. The
// legacy identity column and every ledger reference stay intact.
func (r *MemberRepository) Tombstone(ctx context.Context, id uint, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&models.Member{}).
		Where("id = ? AND auth_user_id IS NOT NULL", id).
		Updates(map[string]interface{}{
			"auth_user_id": nil,
			"fcm_token":    "",
			"contact":      "",
			"withdrawn_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return domain.ErrMemberWithdrawn
	}
	return nil
}

func (r *MemberRepository) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(&models.Member{}, id).Error
}
