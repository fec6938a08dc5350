package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/metrics"
	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

// ProgressSource reads the counter an achievement category is measured by.
type ProgressSource func(p *entities.UserProfile) int

// AchievementStatus is one catalog entry joined with a user's progress.
type AchievementStatus struct {
	Achievement        *entities.AchievementDefinition `json:"achievement"`
	CurrentProgress    int                             `json:"current_progress"`
	RequiredProgress   int                             `json:"required_progress"`
	ProgressPercentage float64                         `json:"progress_percentage"`
	IsUnlocked         bool                            `json:"is_unlocked"`
	UnlockedAt         *time.Time                      `json:"unlocked_at,omitempty"`
}

// AchievementService evaluates achievement progress after a checkout.
//
// Go Learning Note — Strategy Map:
// Categories are dispatched through map[Category]ProgressSource. Adding a
// category is one map entry; a category without an entry is defined in the
// catalog but never evaluated.
type AchievementService struct {
	store    repository.AchievementStore
	profiles repository.ProfileStore
	sources  map[entities.AchievementCategory]ProgressSource
	metrics  *metrics.Metrics
	log      *logger.Logger
	clock    func() time.Time
}

func NewAchievementService(store repository.AchievementStore, profiles repository.ProfileStore, m *metrics.Metrics, log *logger.Logger) *AchievementService {
	return &AchievementService{
		store:    store,
		profiles: profiles,
		sources: map[entities.AchievementCategory]ProgressSource{
			entities.CategoryExplorer: func(p *entities.UserProfile) int { return p.UniqueMasjidsVisited },
		},
		metrics: m,
		log:     log.With("service", "AchievementService"),
		clock:   time.Now,
	}
}

// Seed upserts the catalog by code.
func (s *AchievementService) Seed(ctx context.Context, defs []entities.AchievementDefinition) error {
	if err := s.store.UpsertDefinitions(ctx, defs); err != nil {
		return fmt.Errorf("seed achievements: %w", err)
	}
	s.log.Info("achievement catalog seeded", "definitions", len(defs))
	return nil
}

// Evaluate brings every evaluated achievement of profile up to date and
// returns the definitions unlocked by this call. Unlocks are conditional
// writes that credit the bonus in the same step, so concurrent evaluations
// award each bonus once. A failing definition does not stop the others; the
// failures are joined into the returned error.
func (s *AchievementService) Evaluate(ctx context.Context, profile *entities.UserProfile) ([]*entities.AchievementDefinition, error) {
	defs, err := s.store.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}

	var (
		unlocked []*entities.AchievementDefinition
		errs     []error
	)
	for _, def := range defs {
		source, ok := s.sources[def.Category]
		if !ok {
			continue
		}
		won, err := s.evaluateOne(ctx, profile, def, source(profile))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if won {
			unlocked = append(unlocked, def)
		}
	}
	s.metrics.AchievementUnlocked(len(unlocked))
	return unlocked, errors.Join(errs...)
}

func (s *AchievementService) evaluateOne(ctx context.Context, profile *entities.UserProfile, def *entities.AchievementDefinition, current int) (bool, error) {
	now := s.clock()

	progress, err := s.store.GetProgress(ctx, profile.ID, def.ID)
	if err != nil {
		return false, fmt.Errorf("get progress %s: %w", def.Code, err)
	}

	if progress == nil {
		// Rows start locked; unlocking always goes through UnlockProgress.
		fresh := &entities.AchievementProgress{
			ID:               utils.GenerateID(),
			UserProfileID:    profile.ID,
			AchievementID:    def.ID,
			RequiredProgress: def.RequiredCount,
			CreatedAt:        now,
			UpdatedAt:        now,
		}
		fresh.SetProgress(current)

		err := s.store.CreateProgress(ctx, fresh)
		switch {
		case err == nil:
			progress = fresh
		case errors.Is(err, repository.ErrDuplicate):
			// A concurrent evaluation created the row first.
			progress, err = s.store.GetProgress(ctx, profile.ID, def.ID)
			if err != nil {
				return false, fmt.Errorf("reread progress %s: %w", def.Code, err)
			}
			if progress == nil {
				return false, nil
			}
		default:
			return false, fmt.Errorf("create progress %s: %w", def.Code, err)
		}
	}

	if progress.IsUnlocked {
		return false, nil
	}

	if current >= progress.RequiredProgress {
		won, err := s.store.UnlockProgress(ctx, progress.ID, current, def.BonusPoints, now)
		if err != nil {
			return false, fmt.Errorf("unlock %s: %w", def.Code, err)
		}
		if won {
			s.log.Info("achievement unlocked", "user_id", profile.UserID, "code", def.Code, "bonus", def.BonusPoints)
		}
		return won, nil
	}

	if current != progress.CurrentProgress {
		progress.SetProgress(current)
		if err := s.store.UpdateProgress(ctx, progress); err != nil {
			return false, fmt.Errorf("update progress %s: %w", def.Code, err)
		}
	}
	return false, nil
}

// Catalog lists the active definitions in display order.
func (s *AchievementService) Catalog(ctx context.Context) ([]*entities.AchievementDefinition, error) {
	defs, err := s.store.ListActiveDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("list achievements: %w", err)
	}
	return defs, nil
}

// Progress joins the catalog with the user's progress rows. Definitions
// without a row report zero progress; a user without a profile gets the
// bare catalog.
func (s *AchievementService) Progress(ctx context.Context, userID string) ([]AchievementStatus, error) {
	defs, err := s.Catalog(ctx)
	if err != nil {
		return nil, err
	}

	byAchievement := map[string]*entities.AchievementProgress{}
	profile, err := s.profiles.GetByUserID(ctx, userID)
	switch {
	case errors.Is(err, repository.ErrProfileNotFound):
	case err != nil:
		return nil, fmt.Errorf("get profile: %w", err)
	default:
		rows, err := s.store.ListProgress(ctx, profile.ID)
		if err != nil {
			return nil, fmt.Errorf("list progress: %w", err)
		}
		for _, r := range rows {
			byAchievement[r.AchievementID] = r
		}
	}

	out := make([]AchievementStatus, 0, len(defs))
	for _, def := range defs {
		st := AchievementStatus{Achievement: def, RequiredProgress: def.RequiredCount}
		if p, ok := byAchievement[def.ID]; ok {
			st.CurrentProgress = p.CurrentProgress
			st.RequiredProgress = p.RequiredProgress
			st.ProgressPercentage = p.ProgressPercentage
			st.IsUnlocked = p.IsUnlocked
			st.UnlockedAt = p.UnlockedAt
		}
		out = append(out, st)
	}
	return out, nil
}
