package service

import (
	"context"
	"time"

	"shelfmate/internal/cache"
	"shelfmate/internal/domain"
	"shelfmate/internal/metrics"
	"shelfmate/internal/models"
	"shelfmate/internal/repository"
	"shelfmate/pkg/cycle"

	"go.uber.org/zap"
)

// RegionCache holds region verdicts for one cycle. *cache.RedisCache
// satisfies it.
type RegionCache interface {
	GetRegionOpen(ctx context.Context, key string) (open bool, found bool, err error)
	SetRegionOpen(ctx context.Context, key string, open bool, expiresAt time.Time) error
}

// RegionGate answers whether a region has applicants of both genders in the
// current matching cycle. Every failure path answers closed.
type RegionGate struct {
	apps     *repository.ApplicationRepository
	regions  *repository.RegionRepository
	cache    RegionCache
	clock    *cycle.Clock
	fallback string
	metrics  *metrics.Metrics
	log      *zap.Logger
}

func NewRegionGate(
	apps *repository.ApplicationRepository,
	regions *repository.RegionRepository,
	c RegionCache,
	clock *cycle.Clock,
	fallback string,
	m *metrics.Metrics,
	log *zap.Logger,
) *RegionGate {
	if fallback != domain.RegionFallbackBroad {
		fallback = domain.RegionFallbackNone
	}
	return &RegionGate{apps: apps, regions: regions, cache: c, clock: clock, fallback: fallback, metrics: m, log: log}
}

func (g *RegionGate) Fallback() string { return g.fallback }

// RegionDecision explains an IsOpen answer.
type RegionDecision struct {
	Cycle       string        `json:"cycle"`
	Region      models.Region `json:"region"`
	Open        bool          `json:"open"`
	ViaFallback bool          `json:"via_fallback"`
}

// Check evaluates region against the current matching cycle.
func (g *RegionGate) Check(ctx context.Context, region models.Region) RegionDecision {
	start := g.clock.CurrentCycleStart(g.clock.Now())
	d := RegionDecision{Cycle: cycle.Key(start), Region: region}
	expires := weekendEnd(start)

	d.Open = g.statusOpen(ctx, d.Cycle, region, expires)
	if !d.Open && !region.IsBroad() && g.fallback == domain.RegionFallbackBroad {
		if g.statusOpen(ctx, d.Cycle, region.BroadOnly(), expires) {
			d.Open = true
			d.ViaFallback = true
		}
	}
	return d
}

func (g *RegionGate) IsOpen(ctx context.Context, region models.Region) bool {
	return g.Check(ctx, region).Open
}

func (g *RegionGate) statusOpen(ctx context.Context, cycleKey string, region models.Region, expires time.Time) bool {
	key := cache.KeyForRegion(cycleKey, region.Broad, region.Fine)
	if g.cache != nil {
		open, found, err := g.cache.GetRegionOpen(ctx, key)
		switch {
		case err != nil:
			g.log.Warn("region cache read failed, using store", zap.String("key", key), zap.Error(err))
		case found:
			g.metrics.IncrementRegionCheck("cache", open)
			return open
		}
	}

	row, err := g.regions.Get(ctx, cycleKey, region)
	if err != nil {
		g.log.Error("region status read failed, reporting closed", zap.String("key", key), zap.Error(err))
		g.metrics.IncrementRegionCheck("error", false)
		return false
	}
	open := row != nil && row.IsOpen
	g.metrics.IncrementRegionCheck("store", open)
	g.remember(ctx, key, open, expires)
	return open
}

func (g *RegionGate) remember(ctx context.Context, key string, open bool, expires time.Time) {
	if g.cache == nil {
		return
	}
	if err := g.cache.SetRegionOpen(ctx, key, open, expires); err != nil {
		g.log.Warn("region cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// Recompute recounts applicants of region for the cycle starting at
// cycleStart, at both the fine and the broad level, and refreshes the cache.
func (g *RegionGate) Recompute(ctx context.Context, cycleStart time.Time, region models.Region) error {
	cycleKey := cycle.Key(cycleStart)
	levels := []models.Region{region.BroadOnly()}
	if !region.IsBroad() {
		levels = append([]models.Region{region}, levels...)
	}
	now := time.Now()
	for _, r := range levels {
		counts, err := g.apps.CountByGender(ctx, cycleKey, r)
		if err != nil {
			return domain.Persistence("count region applicants", err)
		}
		status := &models.RegionMatchStatus{
			Cycle:       cycleKey,
			RegionBroad: r.Broad,
			RegionFine:  r.Fine,
			FemaleCount: counts.Female,
			MaleCount:   counts.Male,
			IsOpen:      counts.Female > 0 && counts.Male > 0,
			ComputedAt:  now,
		}
		if err := g.regions.Upsert(ctx, status); err != nil {
			return domain.Persistence("upsert region status", err)
		}
		g.remember(ctx, cache.KeyForRegion(cycleKey, r.Broad, r.Fine), status.IsOpen, weekendEnd(cycleStart))
		g.log.Debug("region recomputed",
			zap.String("cycle", cycleKey),
			zap.String("region", r.Label()),
			zap.Int64("female", counts.Female),
			zap.Int64("male", counts.Male),
			zap.Bool("open", status.IsOpen))
	}
	return nil
}

// Statuses lists stored verdicts for the current matching cycle.
func (g *RegionGate) Statuses(ctx context.Context) ([]models.RegionMatchStatus, error) {
	key := cycle.Key(g.clock.CurrentCycleStart(g.clock.Now()))
	list, err := g.regions.ListByCycle(ctx, key)
	if err != nil {
		return nil, domain.Persistence("list region statuses", err)
	}
	return list, nil
}

// weekendEnd is the Sunday 00:00 that closes the matching weekend of the
// cycle starting at start.
func weekendEnd(start time.Time) time.Time {
	y, m, d := start.Date()
	return time.Date(y, m, d+7, 0, 0, 0, 0, start.Location())
}
