package repository

import (
	"context"
	"errors"
	"time"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"

	"gorm.io/gorm"
)

// MatchRepository stores match requests. Every state transition is a
// conditional update on the expected prior state so concurrent callers
// cannot both win.
type MatchRepository struct {
	db *gorm.DB
}

func NewMatchRepository(db *gorm.DB) *MatchRepository {
	return &MatchRepository{db: db}
}

func (r *MatchRepository) WithTx(tx *gorm.DB) *MatchRepository {
	return &MatchRepository{db: tx}
}

// Create inserts a pending request. A live request for the same ordered pair
// and cycle yields domain.ErrDuplicateActiveRequest.
func (r *MatchRepository) Create(ctx context.Context, req *models.MatchRequest) error {
	req.ActiveSlot = models.ActiveSlotValue()
	err := r.db.WithContext(ctx).Omit("Sender", "Receiver").Create(req).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return domain.ErrDuplicateActiveRequest
	}
	return err
}

func (r *MatchRepository) GetByID(ctx context.Context, id uint) (*models.MatchRequest, error) {
	var req models.MatchRequest
	err := r.db.WithContext(ctx).First(&req, id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, domain.ErrMatchNotFound
	}
	if err != nil {
		return nil, err
	}
	return &req, nil
}

// HasActive reports a live (pending or decided, not cancelled) request from
// sender to receiver in cycle.
func (r *MatchRepository) HasActive(ctx context.Context, senderID, receiverID uint, cycle string) (bool, error) {
	var c int64
	err := r.db.WithContext(ctx).Model(&models.MatchRequest{}).
		Where("sender_id = ? AND receiver_id = ? AND cycle = ? AND active_slot IS NOT NULL", senderID, receiverID, cycle).
		Count(&c).Error
	return c > 0, err
}

// Respond moves a pending request addressed to receiverID into status.
func (r *MatchRepository) Respond(ctx context.Context, id, receiverID uint, status string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MatchRequest{}).
		Where("id = ? AND receiver_id = ? AND status = ?", id, receiverID, domain.MatchStatusPending).
		Updates(map[string]interface{}{"status": status, "responded_at": at})
	return res.RowsAffected == 1, res.Error
}

// Cancel withdraws a pending request sent by senderID and frees its active
// slot.
func (r *MatchRepository) Cancel(ctx context.Context, id, senderID uint, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MatchRequest{}).
		Where("id = ? AND sender_id = ? AND status = ?", id, senderID, domain.MatchStatusPending).
		Updates(map[string]interface{}{
			"status":       domain.MatchStatusCancelled,
			"active_slot":  nil,
			"cancelled_at": at,
		})
	return res.RowsAffected == 1, res.Error
}

// CancelPendingFor cancels every pending request the member sent or
// received and returns how many changed.
func (r *MatchRepository) CancelPendingFor(ctx context.Context, memberID uint, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&models.MatchRequest{}).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", memberID, memberID, domain.MatchStatusPending).
		Updates(map[string]interface{}{
			"status":       domain.MatchStatusCancelled,
			"active_slot":  nil,
			"cancelled_at": at,
		})
	return res.RowsAffected, res.Error
}

// MarkUnlocked flips unlocked on an accepted, still locked request. false
// means another caller got there first or the request is not accepted.
func (r *MatchRepository) MarkUnlocked(ctx context.Context, id uint, txRef string, at time.Time) (bool, error) {
	res := r.db.WithContext(ctx).Model(&models.MatchRequest{}).
		Where("id = ? AND status = ? AND unlocked = ?", id, domain.MatchStatusAccepted, false).
		Updates(map[string]interface{}{
			"unlocked":       true,
			"unlocked_at":    at,
			"payment_tx_ref": txRef,
		})
	return res.RowsAffected == 1, res.Error
}

func (r *MatchRepository) ListIncoming(ctx context.Context, receiverID uint, status string, limit, offset int) ([]models.MatchRequest, error) {
	var list []models.MatchRequest
	q := r.db.WithContext(ctx).Where("receiver_id = ?", receiverID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Preload("Sender").Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

func (r *MatchRepository) ListOutgoing(ctx context.Context, senderID uint, status string, limit, offset int) ([]models.MatchRequest, error) {
	var list []models.MatchRequest
	q := r.db.WithContext(ctx).Where("sender_id = ?", senderID)
	if status != "" {
		q = q.Where("status = ?", status)
	}
	err := q.Preload("Receiver").Order("created_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// ListAccepted returns accepted requests in which the member is either party.
func (r *MatchRepository) ListAccepted(ctx context.Context, memberID uint, limit, offset int) ([]models.MatchRequest, error) {
	var list []models.MatchRequest
	err := r.db.WithContext(ctx).
		Where("(sender_id = ? OR receiver_id = ?) AND status = ?", memberID, memberID, domain.MatchStatusAccepted).
		Preload("Sender").Preload("Receiver").
		Order("responded_at DESC, id DESC").Limit(limit).Offset(offset).Find(&list).Error
	return list, err
}

// IDsFor returns the ids of every request the member is a party to.
func (r *MatchRepository) IDsFor(ctx context.Context, memberID uint) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).Model(&models.MatchRequest{}).
		Where("sender_id = ? OR receiver_id = ?", memberID, memberID).
		Pluck("id", &ids).Error
	return ids, err
}

func (r *MatchRepository) DeleteByIDs(ctx context.Context, ids []uint) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Where("id IN ?", ids).Delete(&models.MatchRequest{}).Error
}
