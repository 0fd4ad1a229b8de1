package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"shelfmate/internal/domain"
	"shelfmate/internal/metrics"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/pkg/cycle"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RegionChecker gates match submission by region.
type RegionChecker interface {
	IsOpen(ctx context.Context, region models.Region) bool
}

// MatchService runs the match request state machine:
// pending -> accepted | rejected | cancelled, with no exits afterwards.
type MatchService struct {
	db      *gorm.DB
	members *repository.MemberRepository
	apps    *repository.ApplicationRepository
	matches *repository.MatchRepository
	photos  *repository.PhotoRepository
	gate    RegionChecker
	notify  *NotificationService
	clock   *cycle.Clock
	metrics *metrics.Metrics
	log     *zap.Logger
}

func NewMatchService(
	db *gorm.DB,
	members *repository.MemberRepository,
	apps *repository.ApplicationRepository,
	matches *repository.MatchRepository,
	photos *repository.PhotoRepository,
	gate RegionChecker,
	notify *NotificationService,
	clock *cycle.Clock,
	m *metrics.Metrics,
	log *zap.Logger,
) *MatchService {
	return &MatchService{
		db: db, members: members, apps: apps, matches: matches, photos: photos,
		gate: gate, notify: notify, clock: clock, metrics: m, log: log,
	}
}

// Submit sends a letter from senderID to receiverID for the current matching
// cycle.
func (s *MatchService) Submit(ctx context.Context, senderID, receiverID uint, letter string) (*models.MatchRequest, error) {
	if senderID == receiverID {
		return nil, domain.ErrSelfRequest
	}
	letter = strings.TrimSpace(letter)
	if n := utf8.RuneCountInString(letter); n < 1 || n > domain.MaxLetterRunes {
		return nil, domain.ErrLetterLength
	}

	parties, err := s.members.GetMany(ctx, []uint{senderID, receiverID})
	if err != nil {
		return nil, domain.Persistence("load parties", err)
	}
	sender, receiver := parties[senderID], parties[receiverID]
	if sender == nil || receiver == nil {
		return nil, domain.ErrMemberNotFound
	}
	if sender.Withdrawn() || receiver.Withdrawn() {
		return nil, domain.ErrMemberWithdrawn
	}

	cycleKey := cycle.Key(s.clock.CurrentCycleStart(s.clock.Now()))
	applied, err := s.apps.HasAny(ctx, cycleKey, senderID, receiverID)
	if err != nil {
		return nil, domain.Persistence("check applications", err)
	}
	if !applied {
		return nil, domain.ErrOutsideApplicationWindow
	}
	if !s.gate.IsOpen(ctx, sender.Region()) || !s.gate.IsOpen(ctx, receiver.Region()) {
		return nil, domain.ErrRegionClosed
	}
	dup, err := s.matches.HasActive(ctx, senderID, receiverID, cycleKey)
	if err != nil {
		return nil, domain.Persistence("check active request", err)
	}
	if dup {
		return nil, domain.ErrDuplicateActiveRequest
	}

	req := &models.MatchRequest{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Cycle:      cycleKey,
		Letter:     letter,
		Status:     domain.MatchStatusPending,
	}
	var note *models.Notification
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.matches.WithTx(tx).Create(ctx, req); err != nil {
			return err
		}
		note, err = s.notify.Record(ctx, tx, receiverID, domain.NotificationMatchRequest, req.ID, senderID)
		return err
	})
	if err != nil {
		return nil, storeErr("create match request", err)
	}
	s.notify.Deliver(ctx, note)
	s.metrics.IncrementMatchTransition(domain.MatchStatusPending)
	s.log.Info("match request submitted",
		zap.Uint("match_id", req.ID),
		zap.Uint("sender_id", senderID),
		zap.Uint("receiver_id", receiverID),
		zap.String("cycle", cycleKey))
	return req, nil
}

// Respond records the receiver's decision on a pending request.
func (s *MatchService) Respond(ctx context.Context, id, responderID uint, decision string) (*models.MatchRequest, error) {
	var status string
	switch decision {
	case domain.DecisionAccept:
		status = domain.MatchStatusAccepted
	case domain.DecisionReject:
		status = domain.MatchStatusRejected
	default:
		return nil, domain.ErrInvalidDecision
	}
	req, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get match request", err)
	}
	if req.ReceiverID != responderID {
		return nil, domain.ErrNotAuthorized
	}
	if !req.IsPending() {
		return nil, domain.ErrInvalidState
	}

	var note *models.Notification
	now := time.Now()
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := s.matches.WithTx(tx).Respond(ctx, id, responderID, status, now)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrInvalidState
		}
		if status == domain.MatchStatusAccepted {
			note, err = s.notify.Record(ctx, tx, req.SenderID, domain.NotificationMatchAccepted, id, responderID)
		}
		return err
	})
	if err != nil {
		return nil, storeErr("respond to match request", err)
	}
	s.notify.Deliver(ctx, note)
	s.metrics.IncrementMatchTransition(status)
	s.log.Info("match request answered", zap.Uint("match_id", id), zap.String("status", status))

	req.Status = status
	req.RespondedAt = &now
	return req, nil
}

// Cancel withdraws a pending request. Only its sender may cancel.
func (s *MatchService) Cancel(ctx context.Context, id, actorID uint) (*models.MatchRequest, error) {
	req, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get match request", err)
	}
	if req.SenderID != actorID {
		return nil, domain.ErrNotAuthorized
	}
	now := time.Now()
	ok, err := s.matches.Cancel(ctx, id, actorID, now)
	if err != nil {
		return nil, domain.Persistence("cancel match request", err)
	}
	if !ok {
		return nil, domain.ErrInvalidState
	}
	s.metrics.IncrementMatchTransition(domain.MatchStatusCancelled)
	req.Status = domain.MatchStatusCancelled
	req.ActiveSlot = nil
	req.CancelledAt = &now
	return req, nil
}

// Get returns a request only to one of its parties.
func (s *MatchService) Get(ctx context.Context, id, memberID uint) (*models.MatchRequest, error) {
	req, err := s.matches.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr("get match request", err)
	}
	if !req.HasParty(memberID) {
		return nil, domain.ErrNotAuthorized
	}
	return req, nil
}

// MatchView is an accepted match seen from one side.
type MatchView struct {
	ID          uint        `json:"id"`
	Cycle       string      `json:"cycle"`
	Role        string      `json:"role"` // sender | receiver
	Letter      string      `json:"letter"`
	Unlocked    bool        `json:"unlocked"`
	UnlockedAt  *time.Time  `json:"unlocked_at,omitempty"`
	RespondedAt *time.Time  `json:"responded_at,omitempty"`
	CreatedAt   time.Time   `json:"created_at"`
	Counterpart ProfileView `json:"counterpart"`
}

// ListMatches returns accepted matches where memberID is either party,
// newest first.
func (s *MatchService) ListMatches(ctx context.Context, memberID uint, limit, offset int) ([]MatchView, error) {
	list, err := s.matches.ListAccepted(ctx, memberID, limit, offset)
	if err != nil {
		return nil, domain.Persistence("list matches", err)
	}
	others := make([]uint, 0, len(list))
	for i := range list {
		others = append(others, list[i].Counterpart(memberID))
	}
	photos, err := s.photos.ListByOwners(ctx, others)
	if err != nil {
		return nil, domain.Persistence("list counterpart photos", err)
	}
	now := s.clock.Now()
	out := make([]MatchView, 0, len(list))
	for i := range list {
		req := &list[i]
		role, other := "sender", &req.Receiver
		if req.ReceiverID == memberID {
			role, other = "receiver", &req.Sender
		}
		out = append(out, MatchView{
			ID:          req.ID,
			Cycle:       req.Cycle,
			Role:        role,
			Letter:      req.Letter,
			Unlocked:    req.Unlocked,
			UnlockedAt:  req.UnlockedAt,
			RespondedAt: req.RespondedAt,
			CreatedAt:   req.CreatedAt,
			Counterpart: newProfileView(other, photos[other.ID], now, req.Unlocked),
		})
	}
	return out, nil
}

// RequestView is a request in an inbox or outbox.
type RequestView struct {
	ID          uint        `json:"id"`
	Cycle       string      `json:"cycle"`
	Letter      string      `json:"letter"`
	Status      string      `json:"status"`
	CreatedAt   time.Time   `json:"created_at"`
	Counterpart ProfileView `json:"counterpart"`
}

// ListIncoming returns pending requests addressed to memberID.
func (s *MatchService) ListIncoming(ctx context.Context, memberID uint, limit, offset int) ([]RequestView, error) {
	list, err := s.matches.ListIncoming(ctx, memberID, domain.MatchStatusPending, limit, offset)
	if err != nil {
		return nil, domain.Persistence("list incoming requests", err)
	}
	return s.requestViews(ctx, list, memberID)
}

// ListOutgoing returns pending requests sent by memberID.
func (s *MatchService) ListOutgoing(ctx context.Context, memberID uint, limit, offset int) ([]RequestView, error) {
	list, err := s.matches.ListOutgoing(ctx, memberID, domain.MatchStatusPending, limit, offset)
	if err != nil {
		return nil, domain.Persistence("list outgoing requests", err)
	}
	return s.requestViews(ctx, list, memberID)
}

func (s *MatchService) requestViews(ctx context.Context, list []models.MatchRequest, memberID uint) ([]RequestView, error) {
	others := make([]uint, 0, len(list))
	for i := range list {
		others = append(others, list[i].Counterpart(memberID))
	}
	photos, err := s.photos.ListByOwners(ctx, others)
	if err != nil {
		return nil, domain.Persistence("list counterpart photos", err)
	}
	now := s.clock.Now()
	out := make([]RequestView, 0, len(list))
	for i := range list {
		req := &list[i]
		other := &req.Receiver
		if req.ReceiverID == memberID {
			other = &req.Sender
		}
		out = append(out, RequestView{
			ID:          req.ID,
			Cycle:       req.Cycle,
			Letter:      req.Letter,
			Status:      req.Status,
			CreatedAt:   req.CreatedAt,
			Counterpart: newProfileView(other, photos[other.ID], now, false),
		})
	}
	return out, nil
}
