package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/pkg/cycle"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

const minAge = 18

// ProfileInput is what a member fills in when first joining.
type ProfileInput struct {
	Nickname       string     `json:"nickname"`
	DateOfBirth    *time.Time `json:"date_of_birth"`
	Gender         string     `json:"gender"`
	RegionBroad    string     `json:"region_broad"`
	RegionFine     string     `json:"region_fine"`
	FavoriteBook   string     `json:"favorite_book"`
	FavoriteAuthor string     `json:"favorite_author"`
	Bio            string     `json:"bio"`
	Contact        string     `json:"contact"`
}

// AccountService owns the member row: joining, device registration,
// withdrawal and the retention purge.
type AccountService struct {
	db       *gorm.DB
	members  *repository.MemberRepository
	apps     *repository.ApplicationRepository
	matches  *repository.MatchRepository
	photos   *repository.PhotoRepository
	payments *repository.PaymentRepository
	notifs   *repository.NotificationRepository
	disclose *DisclosureService
	gate     *RegionGate
	clock    *cycle.Clock
	log      *zap.Logger
}

func NewAccountService(
	db *gorm.DB,
	members *repository.MemberRepository,
	apps *repository.ApplicationRepository,
	matches *repository.MatchRepository,
	photos *repository.PhotoRepository,
	payments *repository.PaymentRepository,
	notifs *repository.NotificationRepository,
	disclose *DisclosureService,
	gate *RegionGate,
	clock *cycle.Clock,
	log *zap.Logger,
) *AccountService {
	return &AccountService{
		db: db, members: members, apps: apps, matches: matches, photos: photos,
		payments: payments, notifs: notifs, disclose: disclose, gate: gate, clock: clock, log: log,
	}
}

// Join creates the member for an identity that has none yet.
func (s *AccountService) Join(ctx context.Context, authUserID string, in ProfileInput) (*models.Member, error) {
	in.Nickname = strings.TrimSpace(in.Nickname)
	if authUserID == "" || in.Nickname == "" || in.RegionBroad == "" {
		return nil, domain.ErrInvalidInput
	}
	if in.Gender != domain.GenderFemale && in.Gender != domain.GenderMale {
		return nil, domain.ErrInvalidInput
	}
	m := &models.Member{
		AuthUserID:       &authUserID,
		LegacyAuthUserID: authUserID,
		Nickname:         in.Nickname,
		DateOfBirth:      in.DateOfBirth,
		Gender:           in.Gender,
		RegionBroad:      strings.TrimSpace(in.RegionBroad),
		RegionFine:       strings.TrimSpace(in.RegionFine),
		FavoriteBook:     in.FavoriteBook,
		FavoriteAuthor:   in.FavoriteAuthor,
		Bio:              in.Bio,
		Contact:          in.Contact,
		FreeRevealsCount: domain.DefaultFreeReveals,
	}
	if m.DateOfBirth == nil || m.Age(s.clock.Now()) < minAge {
		return nil, domain.ErrInvalidInput
	}
	if err := s.members.Create(ctx, m); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return nil, domain.ErrDuplicateMember
		}
		return nil, domain.Persistence("create member", err)
	}
	s.log.Info("member joined", zap.Uint("member_id", m.ID))
	return m, nil
}

// SetFCMToken registers the member's push device. An empty token clears it.
// Only the token column is written, so a stale member snapshot cannot undo a
// spent credit or a withdrawal.
func (s *AccountService) SetFCMToken(ctx context.Context, memberID uint, token string) error {
	n, err := s.members.SetFCMToken(ctx, memberID, strings.TrimSpace(token))
	if err != nil {
		return domain.Persistence("update fcm token", err)
	}
	if n == 0 {
		return s.requireLive(ctx, memberID)
	}
	return nil
}

// UpdateProfile edits the member's own profile text.
func (s *AccountService) UpdateProfile(ctx context.Context, memberID uint, fields repository.ProfileFields) error {
	if fields.Nickname != nil {
		nick := strings.TrimSpace(*fields.Nickname)
		if nick == "" {
			return domain.ErrInvalidInput
		}
		fields.Nickname = &nick
	}
	n, err := s.members.UpdateProfile(ctx, memberID, fields)
	if err != nil {
		return domain.Persistence("update profile", err)
	}
	if n == 0 {
		return s.requireLive(ctx, memberID)
	}
	return nil
}

// requireLive tells an unchanged row apart from a missing or withdrawn one.
func (s *AccountService) requireLive(ctx context.Context, memberID uint) error {
	m, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return storeErr("get member", err)
	}
	if m.Withdrawn() {
		return domain.ErrMemberWithdrawn
	}
	return nil
}

// Withdraw detaches the member's login identity and deletes their photos.
// Ledger rows that reference the member stay untouched.
func (s *AccountService) Withdraw(ctx context.Context, memberID uint) error {
	m, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return storeErr("get member", err)
	}
	if m.Withdrawn() {
		return domain.ErrMemberWithdrawn
	}

	if err := s.disclose.DeleteAllForMember(ctx, memberID); err != nil {
		s.log.Warn("withdrawal: photo cleanup incomplete", zap.Uint("member_id", memberID), zap.Error(err))
	}

	now := time.Now()
	var cancelled int64
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if cancelled, err = s.matches.WithTx(tx).CancelPendingFor(ctx, memberID, now); err != nil {
			return err
		}
		return s.members.WithTx(tx).Tombstone(ctx, memberID, now)
	})
	if err != nil {
		return storeErr("withdraw member", err)
	}
	s.log.Info("member withdrew", zap.Uint("member_id", memberID), zap.Int64("cancelled_requests", cancelled))
	s.recomputeRegion(ctx, m)
	return nil
}

// Purge hard-deletes the member. Payments and notifications survive with
// their references to the member and the member's matches nulled.
func (s *AccountService) Purge(ctx context.Context, memberID uint) error {
	m, err := s.members.GetByID(ctx, memberID)
	if err != nil {
		return storeErr("get member", err)
	}
	if err := s.disclose.DeleteAllForMember(ctx, memberID); err != nil {
		s.log.Warn("purge: photo cleanup incomplete", zap.Uint("member_id", memberID), zap.Error(err))
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		matches := s.matches.WithTx(tx)
		payments := s.payments.WithTx(tx)
		notifs := s.notifs.WithTx(tx)

		ids, err := matches.IDsFor(ctx, memberID)
		if err != nil {
			return err
		}
		if err := payments.DetachMatches(ctx, ids); err != nil {
			return err
		}
		if err := notifs.DetachMatches(ctx, ids); err != nil {
			return err
		}
		if err := payments.DetachMember(ctx, memberID); err != nil {
			return err
		}
		if err := notifs.DetachMember(ctx, memberID); err != nil {
			return err
		}
		if err := s.apps.WithTx(tx).DeleteByMember(ctx, memberID); err != nil {
			return err
		}
		if err := s.photos.WithTx(tx).DeleteByOwner(ctx, memberID); err != nil {
			return err
		}
		if err := matches.DeleteByIDs(ctx, ids); err != nil {
			return err
		}
		return s.members.WithTx(tx).Delete(ctx, memberID)
	})
	if err != nil {
		return storeErr("purge member", err)
	}
	s.log.Info("member purged", zap.Uint("member_id", memberID))
	if !m.Withdrawn() {
		s.recomputeRegion(ctx, m)
	}
	return nil
}

// recomputeRegion refreshes the member's region for every cycle their
// application could still count toward.
func (s *AccountService) recomputeRegion(ctx context.Context, m *models.Member) {
	now := s.clock.Now()
	starts := []time.Time{s.clock.CurrentCycleStart(now)}
	if target := s.clock.TargetCycleStart(now); !target.Equal(starts[0]) {
		starts = append(starts, target)
	}
	for _, start := range starts {
		if err := s.gate.Recompute(ctx, start, m.Region()); err != nil {
			s.log.Error("region recompute after withdrawal failed",
				zap.Uint("member_id", m.ID),
				zap.String("cycle", cycle.Key(start)),
				zap.Error(err))
		}
	}
}
