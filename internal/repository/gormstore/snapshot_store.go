package gormstore

import (
	"context"

	"gorm.io/gorm"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

type snapshotStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewSnapshotStore(db *gorm.DB, baseLog *logger.Logger) repository.SnapshotStore {
	return &snapshotStore{
		db:  db,
		log: baseLog.With("store", "SnapshotStore"),
	}
}

// SaveMonthlySnapshot deletes and rewrites the month in one transaction, so a
// re-run of the job replaces rather than duplicates.
func (s *snapshotStore) SaveMonthlySnapshot(ctx context.Context, month string, rows []*entities.LeaderboardSnapshot) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("month = ?", month).Delete(&entities.LeaderboardSnapshot{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		for _, r := range rows {
			r.ID = 0
			r.Month = month
		}
		return tx.CreateInBatches(rows, 500).Error
	})
}

func (s *snapshotStore) ListMonthlySnapshot(ctx context.Context, month string, limit, offset int) ([]*entities.LeaderboardSnapshot, error) {
	q := s.db.WithContext(ctx).
		Where("month = ?", month).
		Order("rank ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*entities.LeaderboardSnapshot
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
