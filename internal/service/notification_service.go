package service

import (
	"context"
	"errors"
	"time"

	"shelfmate/internal/domain"
	"shelfmate/internal/metrics"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const pushTimeout = 5 * time.Second

// PushMessage is one notification rendered for a delivery channel.
type PushMessage struct {
	NotificationID uint   `json:"notification_id"`
	Type           string `json:"type"`
	MatchID        uint   `json:"match_id,omitempty"`
	SenderID       uint   `json:"sender_id,omitempty"`
	Title          string `json:"title"`
	Body           string `json:"body"`
}

// Pusher is a delivery channel. Implementations must not retain recipient.
type Pusher interface {
	Name() string
	Push(ctx context.Context, recipient *models.Member, msg PushMessage) error
}

type NotificationService struct {
	repo    *repository.NotificationRepository
	members *repository.MemberRepository
	photos  *repository.PhotoRepository
	pushers []Pusher
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewNotificationService(
	repo *repository.NotificationRepository,
	members *repository.MemberRepository,
	photos *repository.PhotoRepository,
	m *metrics.Metrics,
	log *zap.Logger,
	pushers ...Pusher,
) *NotificationService {
	return &NotificationService{repo: repo, members: members, photos: photos, pushers: pushers, metrics: m, log: log}
}

// Record inserts an unread notification. With a non-nil tx the row commits or
// rolls back with the caller's transaction; push delivery is left to the
// caller through Deliver once that transaction has committed.
func (s *NotificationService) Record(ctx context.Context, tx *gorm.DB, recipientID uint, notifType string, matchID, senderID uint) (*models.Notification, error) {
	if !domain.ValidNotificationType(notifType) {
		return nil, domain.ErrInvalidNotifType
	}
	repo := s.repo
	if tx != nil {
		repo = repo.WithTx(tx)
	}
	n := &models.Notification{RecipientID: &recipientID, Type: notifType}
	if matchID != 0 {
		n.MatchID = &matchID
	}
	if senderID != 0 {
		n.SenderID = &senderID
	}
	if err := repo.Create(ctx, n); err != nil {
		return nil, domain.Persistence("create notification", err)
	}
	return n, nil
}

// Notify records and delivers in one step, outside any transaction.
func (s *NotificationService) Notify(ctx context.Context, recipientID uint, notifType string, matchID, senderID uint) (*models.Notification, error) {
	n, err := s.Record(ctx, nil, recipientID, notifType, matchID, senderID)
	if err != nil {
		return nil, err
	}
	s.Deliver(ctx, n)
	return n, nil
}

// Deliver pushes n to every channel. Failures are logged and counted only.
func (s *NotificationService) Deliver(ctx context.Context, n *models.Notification) {
	if n == nil || n.RecipientID == nil || len(s.pushers) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pushTimeout)
	defer cancel()

	recipient, err := s.members.GetByID(ctx, *n.RecipientID)
	if err != nil {
		s.log.Warn("push: resolve recipient", zap.Uint("notification_id", n.ID), zap.Error(err))
		return
	}
	if recipient.Withdrawn() {
		return
	}
	senderName := ""
	if n.SenderID != nil {
		if sender, err := s.members.GetByID(ctx, *n.SenderID); err == nil {
			senderName = sender.DisplayName()
		}
	}
	msg := renderPush(n, senderName)
	for _, p := range s.pushers {
		if err := p.Push(ctx, recipient, msg); err != nil {
			s.metrics.IncrementPushFailure(p.Name())
			s.log.Warn("push failed",
				zap.String("channel", p.Name()),
				zap.Uint("notification_id", n.ID),
				zap.Error(err))
		}
	}
}

func renderPush(n *models.Notification, senderName string) PushMessage {
	msg := PushMessage{NotificationID: n.ID, Type: n.Type}
	if n.MatchID != nil {
		msg.MatchID = *n.MatchID
	}
	if n.SenderID != nil {
		msg.SenderID = *n.SenderID
	}
	if senderName == "" {
		senderName = "누군가"
	}
	switch n.Type {
	case domain.NotificationMatchRequest:
		msg.Title = "새 편지가 도착했어요"
		msg.Body = senderName + "님이 매칭 신청 편지를 보냈어요."
	case domain.NotificationMatchAccepted:
		msg.Title = "매칭 성공"
		msg.Body = senderName + "님이 신청을 수락했어요."
	case domain.NotificationContactRevealed:
		msg.Title = "프로필 공개"
		msg.Body = senderName + "님과의 매칭이 공개되었어요."
	}
	return msg
}

// NotificationView is a stored notification joined to the sender's current
// public snapshot.
type NotificationView struct {
	ID        uint        `json:"id"`
	Type      string      `json:"type"`
	MatchID   *uint       `json:"match_id"`
	Read      bool        `json:"read"`
	ReadAt    *time.Time  `json:"read_at"`
	CreatedAt time.Time   `json:"created_at"`
	Sender    *SenderView `json:"sender"`
}

func (s *NotificationService) List(ctx context.Context, recipientID uint, unreadOnly bool, limit, offset int) ([]NotificationView, error) {
	list, err := s.repo.ListByRecipient(ctx, recipientID, unreadOnly, limit, offset)
	if err != nil {
		return nil, domain.Persistence("list notifications", err)
	}
	senderIDs := make([]uint, 0, len(list))
	for _, n := range list {
		if n.SenderID != nil {
			senderIDs = append(senderIDs, *n.SenderID)
		}
	}
	photos, err := s.photos.ListByOwners(ctx, senderIDs)
	if err != nil {
		return nil, domain.Persistence("list sender photos", err)
	}
	out := make([]NotificationView, 0, len(list))
	for _, n := range list {
		v := NotificationView{
			ID:        n.ID,
			Type:      n.Type,
			MatchID:   n.MatchID,
			Read:      n.Read,
			ReadAt:    n.ReadAt,
			CreatedAt: n.CreatedAt,
		}
		if n.Sender != nil {
			v.Sender = newSenderView(n.Sender, photos[n.Sender.ID])
		}
		out = append(out, v)
	}
	return out, nil
}

func (s *NotificationService) MarkRead(ctx context.Context, id, recipientID uint) error {
	ok, err := s.repo.MarkRead(ctx, id, recipientID, time.Now())
	if err != nil {
		return domain.Persistence("mark notification read", err)
	}
	if !ok {
		return domain.ErrNotificationNotFound
	}
	return nil
}

func (s *NotificationService) MarkAllRead(ctx context.Context, recipientID uint) (int64, error) {
	n, err := s.repo.MarkAllRead(ctx, recipientID, time.Now())
	if err != nil {
		return 0, domain.Persistence("mark all notifications read", err)
	}
	return n, nil
}

func (s *NotificationService) UnreadCount(ctx context.Context, recipientID uint) (int64, error) {
	n, err := s.repo.CountUnread(ctx, recipientID)
	if err != nil {
		return 0, domain.Persistence("count unread notifications", err)
	}
	return n, nil
}

// storeErr keeps domain errors as they are and marks anything else as a
// persistence failure.
func storeErr(op string, err error) error {
	if err == nil {
		return nil
	}
	var de *domain.Error
	if errors.As(err, &de) {
		return err
	}
	return domain.Persistence(op, err)
}
