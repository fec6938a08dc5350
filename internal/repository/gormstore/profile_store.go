package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

type profileStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileStore(db *gorm.DB, baseLog *logger.Logger) repository.ProfileStore {
	return &profileStore{
		db:  db,
		log: baseLog.With("store", "ProfileStore"),
	}
}

// GetOrCreate inserts with ON CONFLICT DO NOTHING and re-reads, so two
// first-time requests for the same user converge on one row.
func (s *profileStore) GetOrCreate(ctx context.Context, userID string) (*entities.UserProfile, error) {
	p, err := s.GetByUserID(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, repository.ErrProfileNotFound) {
		return nil, err
	}

	fresh := entities.NewUserProfile(utils.GenerateID(), userID, time.Now().UTC())
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(fresh).Error; err != nil {
		return nil, fmt.Errorf("create profile: %w", err)
	}
	return s.GetByUserID(ctx, userID)
}

func (s *profileStore) GetByUserID(ctx context.Context, userID string) (*entities.UserProfile, error) {
	var p entities.UserProfile
	err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, repository.ErrProfileNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateStats locks the row (SELECT ... FOR UPDATE where the dialect has it),
// applies fn and saves inside one transaction.
func (s *profileStore) UpdateStats(ctx context.Context, userID string, fn func(p *entities.UserProfile) error) (*entities.UserProfile, error) {
	var out entities.UserProfile
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", userID).
			First(&out).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrProfileNotFound
			}
			return err
		}
		if err := fn(&out); err != nil {
			return err
		}
		return tx.Save(&out).Error
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *profileStore) UpdatePreferences(ctx context.Context, userID string, prefs entities.Preferences) (*entities.UserProfile, error) {
	return s.UpdateStats(ctx, userID, func(p *entities.UserProfile) error {
		prefs.Apply(p)
		return nil
	})
}

func (s *profileStore) CreditAchievement(ctx context.Context, profileID string, bonus int) error {
	return creditAchievement(s.db.WithContext(ctx), profileID, bonus)
}

// creditAchievement increments the counters in place so it composes with an
// outer transaction.
func creditAchievement(tx *gorm.DB, profileID string, bonus int) error {
	res := tx.Model(&entities.UserProfile{}).
		Where("id = ?", profileID).
		UpdateColumns(map[string]interface{}{
			"total_points":      gorm.Expr("total_points + ?", bonus),
			"monthly_points":    gorm.Expr("monthly_points + ?", bonus),
			"achievement_count": gorm.Expr("achievement_count + 1"),
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrProfileNotFound
	}
	return nil
}

func (s *profileStore) ListByPoints(ctx context.Context, period repository.Period, limit, offset int) ([]*entities.UserProfile, error) {
	col := pointsColumn(period)
	q := s.db.WithContext(ctx).
		Order(col + " DESC").
		Order("created_at ASC").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*entities.UserProfile
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *profileStore) CountAbove(ctx context.Context, period repository.Period, points int) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&entities.UserProfile{}).
		Where(pointsColumn(period)+" > ?", points).
		Count(&n).Error
	return n, err
}

func (s *profileStore) AssignRanks(ctx context.Context, period repository.Period, orderedIDs []string) error {
	col := rankColumn(period)
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i, id := range orderedIDs {
			if err := tx.Model(&entities.UserProfile{}).
				Where("id = ?", id).
				UpdateColumn(col, i+1).Error; err != nil {
				return fmt.Errorf("assign rank to %s: %w", id, err)
			}
		}
		return nil
	})
}

func (s *profileStore) ResetMonthly(ctx context.Context) error {
	res := s.db.WithContext(ctx).
		Model(&entities.UserProfile{}).
		Where("monthly_points <> 0 OR monthly_rank IS NOT NULL").
		UpdateColumns(map[string]interface{}{
			"monthly_points": 0,
			"monthly_rank":   nil,
		})
	if res.Error != nil {
		return res.Error
	}
	s.log.Info("monthly counters reset", "profiles", res.RowsAffected)
	return nil
}

func pointsColumn(period repository.Period) string {
	if period == repository.PeriodMonthly {
		return "monthly_points"
	}
	return "total_points"
}

func rankColumn(period repository.Period) string {
	if period == repository.PeriodMonthly {
		return "monthly_rank"
	}
	return "global_rank"
}
