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
)

type achievementStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewAchievementStore(db *gorm.DB, baseLog *logger.Logger) repository.AchievementStore {
	return &achievementStore{
		db:  db,
		log: baseLog.With("store", "AchievementStore"),
	}
}

// UpsertDefinitions keys on code; an existing row keeps its ID so progress
// rows stay attached.
func (s *achievementStore) UpsertDefinitions(ctx context.Context, defs []entities.AchievementDefinition) error {
	if len(defs) == 0 {
		return nil
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "code"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"name", "description", "category", "badge_tier",
				"required_count", "bonus_points", "display_order", "is_active",
			}),
		}).
		Create(&defs).Error
}

func (s *achievementStore) ListActiveDefinitions(ctx context.Context) ([]*entities.AchievementDefinition, error) {
	var out []*entities.AchievementDefinition
	err := s.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("display_order ASC").
		Order("code ASC").
		Find(&out).Error
	return out, err
}

func (s *achievementStore) GetProgress(ctx context.Context, profileID, achievementID string) (*entities.AchievementProgress, error) {
	var p entities.AchievementProgress
	err := s.db.WithContext(ctx).
		Where("user_profile_id = ? AND achievement_id = ?", profileID, achievementID).
		First(&p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *achievementStore) CreateProgress(ctx context.Context, p *entities.AchievementProgress) error {
	err := s.db.WithContext(ctx).Create(p).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrDuplicate
	}
	return err
}

func (s *achievementStore) UpdateProgress(ctx context.Context, p *entities.AchievementProgress) error {
	return s.db.WithContext(ctx).
		Model(&entities.AchievementProgress{}).
		Where("id = ? AND is_unlocked = ?", p.ID, false).
		UpdateColumns(map[string]interface{}{
			"current_progress":    p.CurrentProgress,
			"progress_percentage": p.ProgressPercentage,
			"updated_at":          time.Now().UTC(),
		}).Error
}

// UnlockProgress is guarded by is_unlocked = false; only one caller can see
// a non-zero RowsAffected. The profile credit runs in the same transaction,
// so a failed credit rolls the unlock back.
func (s *achievementStore) UnlockProgress(ctx context.Context, progressID string, current, bonus int, at time.Time) (bool, error) {
	won := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&entities.AchievementProgress{}).
			Where("id = ? AND is_unlocked = ?", progressID, false).
			UpdateColumns(map[string]interface{}{
				"current_progress":    current,
				"progress_percentage": 100.0,
				"is_unlocked":         true,
				"unlocked_at":         at,
				"updated_at":          at,
			})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected != 1 {
			return nil
		}

		var row entities.AchievementProgress
		if err := tx.Select("user_profile_id").Where("id = ?", progressID).First(&row).Error; err != nil {
			return err
		}
		if err := creditAchievement(tx, row.UserProfileID, bonus); err != nil {
			return fmt.Errorf("credit profile %s: %w", row.UserProfileID, err)
		}
		won = true
		return nil
	})
	if err != nil {
		return false, err
	}
	return won, nil
}

func (s *achievementStore) ListProgress(ctx context.Context, profileID string) ([]*entities.AchievementProgress, error) {
	var out []*entities.AchievementProgress
	err := s.db.WithContext(ctx).
		Where("user_profile_id = ?", profileID).
		Order("achievement_id ASC").
		Find(&out).Error
	return out, err
}
