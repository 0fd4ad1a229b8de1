package service

import (
	"context"

	"shelfmate/internal/domain"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/pkg/cycle"

	"go.uber.org/zap"
)

type ApplicationService struct {
	apps  *repository.ApplicationRepository
	gate  *RegionGate
	clock *cycle.Clock
	log   *zap.Logger
}

func NewApplicationService(apps *repository.ApplicationRepository, gate *RegionGate, clock *cycle.Clock, log *zap.Logger) *ApplicationService {
	return &ApplicationService{apps: apps, gate: gate, clock: clock, log: log}
}

// Apply enrolls member into the cycle the current instant feeds. Applying
// twice for one cycle returns the first application. The region status is
// recomputed every time, so a retry after a failed recompute heals it.
func (s *ApplicationService) Apply(ctx context.Context, member *models.Member) (*models.DatingApplication, error) {
	if member.Withdrawn() {
		return nil, domain.ErrMemberWithdrawn
	}
	now := s.clock.Now()
	target := s.clock.TargetCycleStart(now)
	app, err := s.apps.CreateOnce(ctx, &models.DatingApplication{
		MemberID:    member.ID,
		Cycle:       cycle.Key(target),
		SubmittedAt: now,
	})
	if err != nil {
		return nil, domain.Persistence("create application", err)
	}
	if err := s.gate.Recompute(ctx, target, member.Region()); err != nil {
		s.log.Error("region recompute after application failed",
			zap.Uint("member_id", member.ID),
			zap.String("cycle", app.Cycle),
			zap.Error(err))
		return nil, err
	}
	s.log.Info("application submitted", zap.Uint("member_id", member.ID), zap.String("cycle", app.Cycle))
	return app, nil
}

// Current returns the member's application for the current matching cycle,
// or nil when there is none.
func (s *ApplicationService) Current(ctx context.Context, memberID uint) (*models.DatingApplication, error) {
	key := cycle.Key(s.clock.CurrentCycleStart(s.clock.Now()))
	app, err := s.apps.GetByMemberAndCycle(ctx, memberID, key)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Persistence("get application", err)
	}
	return app, nil
}

// Upcoming returns the application for the cycle a submission right now
// would target, or nil.
func (s *ApplicationService) Upcoming(ctx context.Context, memberID uint) (*models.DatingApplication, error) {
	key := cycle.Key(s.clock.TargetCycleStart(s.clock.Now()))
	app, err := s.apps.GetByMemberAndCycle(ctx, memberID, key)
	if repository.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.Persistence("get application", err)
	}
	return app, nil
}
