package repository

import (
	"context"
	"errors"

	"shelfmate/internal/models"

	"gorm.io/gorm"
)

// ErrDuplicateTransaction is returned when a transaction id was already
// recorded.
var ErrDuplicateTransaction = errors.New("repository: duplicate payment transaction id")

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) WithTx(tx *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: tx}
}

func (r *PaymentRepository) Create(ctx context.Context, p *models.Payment) error {
	err := r.db.WithContext(ctx).Omit("Payer", "Counterpart", "Match").Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicateTransaction
	}
	return err
}

func (r *PaymentRepository) GetByTransactionID(ctx context.Context, txID string) (*models.Payment, error) {
	var p models.Payment
	err := r.db.WithContext(ctx).Where("transaction_id = ?", txID).First(&p).Error
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *PaymentRepository) ListByPayer(ctx context.Context, payerID uint, limit, offset int) ([]models.Payment, error) {
	var list []models.Payment
	err := r.db.WithContext(ctx).Where("payer_id = ?", payerID).Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// DetachMember clears every reference to memberID while keeping the rows.
func (r *PaymentRepository) DetachMember(ctx context.Context, memberID uint) error {
	db := r.db.WithContext(ctx).Model(&models.Payment{})
	if err := db.Where("payer_id = ?", memberID).Update("payer_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("counterpart_id = ?", memberID).Update("counterpart_id", nil).Error
}

// DetachMatches clears the match reference of payments for matchIDs.
func (r *PaymentRepository) DetachMatches(ctx context.Context, matchIDs []uint) error {
	if len(matchIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Payment{}).
		Where("match_id IN ?", matchIDs).Update("match_id", nil).Error
}
