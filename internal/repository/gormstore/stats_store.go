package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

type statsStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewStatsStore(db *gorm.DB, baseLog *logger.Logger) repository.StatsStore {
	return &statsStore{
		db:  db,
		log: baseLog.With("store", "StatsStore"),
	}
}

// IncrementDaily is a single upsert on (masjid_id, day).
func (s *statsStore) IncrementDaily(ctx context.Context, masjidID, day string, points int) error {
	now := time.Now().UTC()
	row := &entities.DailyMasjidStats{
		MasjidID:      masjidID,
		Day:           day,
		VisitorCount:  1,
		PointsAwarded: points,
		UpdatedAt:     now,
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "masjid_id"}, {Name: "day"}},
			DoUpdates: clause.Assignments(map[string]interface{}{
				"visitor_count":  gorm.Expr("daily_masjid_stats.visitor_count + 1"),
				"points_awarded": gorm.Expr("daily_masjid_stats.points_awarded + ?", points),
				"updated_at":     now,
			}),
		}).
		Create(row).Error
}

func (s *statsStore) GetDaily(ctx context.Context, masjidID, day string) (*entities.DailyMasjidStats, error) {
	var row entities.DailyMasjidStats
	err := s.db.WithContext(ctx).
		Where("masjid_id = ? AND day = ?", masjidID, day).
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row, nil
}
