package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

// LeaderboardEntry is one public row of a leaderboard page.
type LeaderboardEntry struct {
	Rank                 int    `json:"rank"`
	UserProfileID        string `json:"user_profile_id"`
	DisplayName          string `json:"display_name"`
	Points               int    `json:"points"`
	UniqueMasjidsVisited int    `json:"unique_masjids_visited"`
	CurrentStreak        int    `json:"current_streak"`
}

// RankInfo is a user's live rank. CachedRank is the value written by the
// last batch recompute and may lag behind Rank.
type RankInfo struct {
	Period     repository.Period `json:"period"`
	Rank       int               `json:"rank"`
	Points     int               `json:"points"`
	CachedRank *int              `json:"cached_rank,omitempty"`
}

// LeaderboardService reads leaderboards and runs the rank maintenance
// passes. Live ranks are computed as count(points strictly greater) + 1, so
// tied users share a rank.
type LeaderboardService struct {
	profiles  repository.ProfileStore
	snapshots repository.SnapshotStore
	cfg       config.LeaderboardConfig
	log       *logger.Logger
}

func NewLeaderboardService(profiles repository.ProfileStore, snapshots repository.SnapshotStore, cfg config.LeaderboardConfig, log *logger.Logger) *LeaderboardService {
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit <= 0 {
		cfg.MaxLimit = 100
	}
	return &LeaderboardService{
		profiles:  profiles,
		snapshots: snapshots,
		cfg:       cfg,
		log:       log.With("service", "LeaderboardService"),
	}
}

func (s *LeaderboardService) Global(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	return s.board(ctx, repository.PeriodGlobal, limit, offset)
}

func (s *LeaderboardService) Monthly(ctx context.Context, limit, offset int) ([]LeaderboardEntry, error) {
	return s.board(ctx, repository.PeriodMonthly, limit, offset)
}

func (s *LeaderboardService) board(ctx context.Context, period repository.Period, limit, offset int) ([]LeaderboardEntry, error) {
	limit, offset = s.clampPage(limit, offset)

	profiles, err := s.profiles.ListByPoints(ctx, period, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list %s leaderboard: %w", period, err)
	}

	out := make([]LeaderboardEntry, 0, len(profiles))
	for i, p := range profiles {
		points := pointsOf(p, period)
		var rank int
		switch {
		case i > 0 && points == out[i-1].Points:
			rank = out[i-1].Rank
		case i == 0:
			above, err := s.profiles.CountAbove(ctx, period, points)
			if err != nil {
				return nil, fmt.Errorf("count above: %w", err)
			}
			rank = int(above) + 1
		default:
			rank = offset + i + 1
		}
		out = append(out, LeaderboardEntry{
			Rank:                 rank,
			UserProfileID:        p.ID,
			DisplayName:          utils.DisplayName(p.FullName, p.Alias, p.ShowRealName),
			Points:               points,
			UniqueMasjidsVisited: p.UniqueMasjidsVisited,
			CurrentStreak:        p.CurrentStreak,
		})
	}
	return out, nil
}

// Rank computes the user's live rank for period.
func (s *LeaderboardService) Rank(ctx context.Context, userID string, period repository.Period) (*RankInfo, error) {
	if !period.Valid() {
		return nil, validationError("period must be %q or %q", repository.PeriodGlobal, repository.PeriodMonthly)
	}
	p, err := s.profiles.GetByUserID(ctx, userID)
	if errors.Is(err, repository.ErrProfileNotFound) {
		return nil, notFoundError(CodeProfileNotFound, "Profile not found. Check in first")
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	points := pointsOf(p, period)
	above, err := s.profiles.CountAbove(ctx, period, points)
	if err != nil {
		return nil, fmt.Errorf("count above: %w", err)
	}
	cached := p.GlobalRank
	if period == repository.PeriodMonthly {
		cached = p.MonthlyRank
	}
	return &RankInfo{Period: period, Rank: int(above) + 1, Points: points, CachedRank: cached}, nil
}

// RecomputeRanks writes 1..N into both rank fields in points-desc order,
// ties broken by profile creation time. It returns the number of profiles.
func (s *LeaderboardService) RecomputeRanks(ctx context.Context) (int, error) {
	start := time.Now()
	var n int
	for _, period := range []repository.Period{repository.PeriodGlobal, repository.PeriodMonthly} {
		profiles, err := s.profiles.ListByPoints(ctx, period, 0, 0)
		if err != nil {
			return 0, fmt.Errorf("list %s: %w", period, err)
		}
		ids := make([]string, len(profiles))
		for i, p := range profiles {
			ids[i] = p.ID
		}
		if err := s.profiles.AssignRanks(ctx, period, ids); err != nil {
			return 0, fmt.Errorf("assign %s ranks: %w", period, err)
		}
		n = len(ids)
	}
	s.log.Info("ranks recomputed", "profiles", n, "took", time.Since(start))
	return n, nil
}

// SnapshotAndResetMonthly freezes the monthly board under month and then
// zeroes the monthly counters. Profiles without monthly points are left out
// of the snapshot. Re-running for the same month replaces the snapshot.
func (s *LeaderboardService) SnapshotAndResetMonthly(ctx context.Context, month string) (int, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return 0, validationError("month must look like 2006-01")
	}

	profiles, err := s.profiles.ListByPoints(ctx, repository.PeriodMonthly, 0, 0)
	if err != nil {
		return 0, fmt.Errorf("list monthly: %w", err)
	}
	rows := make([]*entities.LeaderboardSnapshot, 0, len(profiles))
	for _, p := range profiles {
		if p.MonthlyPoints <= 0 {
			continue
		}
		rows = append(rows, &entities.LeaderboardSnapshot{
			Month:         month,
			Rank:          len(rows) + 1,
			UserProfileID: p.ID,
			DisplayName:   utils.DisplayName(p.FullName, p.Alias, p.ShowRealName),
			Points:        p.MonthlyPoints,
		})
	}

	if err := s.snapshots.SaveMonthlySnapshot(ctx, month, rows); err != nil {
		return 0, fmt.Errorf("save snapshot %s: %w", month, err)
	}
	if err := s.profiles.ResetMonthly(ctx); err != nil {
		return len(rows), fmt.Errorf("reset monthly: %w", err)
	}
	s.log.Info("monthly leaderboard snapshotted", "month", month, "rows", len(rows))
	return len(rows), nil
}

// Snapshot reads a stored monthly snapshot.
func (s *LeaderboardService) Snapshot(ctx context.Context, month string, limit, offset int) ([]*entities.LeaderboardSnapshot, error) {
	if _, err := time.Parse("2006-01", month); err != nil {
		return nil, validationError("month must look like 2006-01")
	}
	limit, offset = s.clampPage(limit, offset)
	rows, err := s.snapshots.ListMonthlySnapshot(ctx, month, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list snapshot %s: %w", month, err)
	}
	if len(rows) == 0 && offset == 0 {
		return nil, notFoundError(CodeSnapshotNotFound, fmt.Sprintf("No leaderboard snapshot for %s", month))
	}
	return rows, nil
}

func (s *LeaderboardService) clampPage(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = s.cfg.DefaultLimit
	case limit > s.cfg.MaxLimit:
		limit = s.cfg.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func pointsOf(p *entities.UserProfile, period repository.Period) int {
	if period == repository.PeriodMonthly {
		return p.MonthlyPoints
	}
	return p.TotalPoints
}
