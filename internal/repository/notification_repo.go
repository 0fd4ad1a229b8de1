package repository

import (
	"context"
	"time"

	"shelfmate/internal/models"

	"gorm.io/gorm"
)

type NotificationRepository struct {
	db *gorm.DB
}

func NewNotificationRepository(db *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

func (r *NotificationRepository) WithTx(tx *gorm.DB) *NotificationRepository {
	return &NotificationRepository{db: tx}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Omit("Recipient", "Sender", "Match").Create(n).Error
}

// ListByRecipient returns newest first with the sender preloaded so callers
// can render its current nickname.
func (r *NotificationRepository) ListByRecipient(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]models.Notification, error) {
	var list []models.Notification
	q := r.db.WithContext(ctx).Where("recipient_id = ?", recipientID)
	if unreadOnly {
		q = q.Where("`read` = ?", false)
	}
	err := q.Preload("Sender").Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// MarkRead marks one notification read if it belongs to recipientID. false
// means no such notification for that recipient.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipientID uint, at time.Time) (bool, error) {
	var n models.Notification
	err := r.db.WithContext(ctx).Select("id", "read").
		Where("id = ? AND recipient_id = ?", id, recipientID).First(&n).Error
	if IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if n.Read {
		return true, nil
	}
	err = r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("id = ? AND recipient_id = ?", id, recipientID).
		Updates(map[string]interface{}{"read": true, "read_at": at}).Error
	return err == nil, err
}

func (r *NotificationRepository) MarkAllRead(ctx context.Context, recipientID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND `read` = ?", recipientID, false).
		Updates(map[string]interface{}{"read": true, "read_at": at})
	return res.RowsAffected, res.Error
}

func (r *NotificationRepository) CountUnread(ctx context.Context, recipientID uint) (int64, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ? AND `read` = ?", recipientID, false).Count(&c).Error
	return c, err
}

func (r *NotificationRepository) DetachMember(ctx context.Context, memberID uint) error {
	if err := r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("recipient_id = ?", memberID).Update("recipient_id", nil).Error; err != nil {
		return err
	}
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("sender_id = ?", memberID).Update("sender_id", nil).Error
}

func (r *NotificationRepository) DetachMatches(ctx context.Context, matchIDs []uint) error {
	if len(matchIDs) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Model(&models.Notification{}).
		Where("match_id IN ?", matchIDs).Update("match_id", nil).Error
}
