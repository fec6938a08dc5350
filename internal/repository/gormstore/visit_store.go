package gormstore

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

type visitStore struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewVisitStore(db *gorm.DB, baseLog *logger.Logger) repository.VisitStore {
	return &visitStore{
		db:  db,
		log: baseLog.With("store", "VisitStore"),
	}
}

// CreateOpen relies on the partial unique index idx_visits_one_open.
func (s *visitStore) CreateOpen(ctx context.Context, v *entities.Visit) error {
	err := s.db.WithContext(ctx).Create(v).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return repository.ErrOpenVisitExists
	}
	return err
}

func (s *visitStore) GetOpenByProfile(ctx context.Context, profileID string) (*entities.Visit, error) {
	var v entities.Visit
	err := s.db.WithContext(ctx).
		Where("user_profile_id = ? AND status = ?", profileID, entities.VisitStatusOpen).
		First(&v).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &v, nil
}

// Close is a conditional UPDATE ... WHERE status = 'open'. Zero affected rows
// means another request closed the visit first.
func (s *visitStore) Close(ctx context.Context, v *entities.Visit) error {
	updatedAt := v.UpdatedAt
	if updatedAt.IsZero() {
		updatedAt = time.Now().UTC()
	}
	res := s.db.WithContext(ctx).
		Model(&entities.Visit{}).
		Where("id = ? AND status = ?", v.ID, entities.VisitStatusOpen).
		UpdateColumns(map[string]interface{}{
			"status":                v.Status,
			"checkout_at":           v.CheckoutAt,
			"checkout_lat":          v.CheckoutLat,
			"checkout_lng":          v.CheckoutLng,
			"checkout_in_proximity": v.CheckoutInProximity,
			"base_points":           v.BasePoints,
			"actual_points_earned":  v.ActualPointsEarned,
			"duration_minutes":      v.DurationMinutes,
			"updated_at":            updatedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrVisitNotOpen
	}
	return nil
}

func (s *visitStore) CountByProfileAndMasjid(ctx context.Context, profileID, masjidID string) (int64, error) {
	var n int64
	err := s.db.WithContext(ctx).
		Model(&entities.Visit{}).
		Where("user_profile_id = ? AND masjid_id = ?", profileID, masjidID).
		Count(&n).Error
	return n, err
}

func (s *visitStore) ListByProfile(ctx context.Context, profileID string, limit, offset int) ([]*entities.Visit, error) {
	q := s.db.WithContext(ctx).
		Where("user_profile_id = ?", profileID).
		Order("checkin_at DESC").
		Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if offset > 0 {
		q = q.Offset(offset)
	}
	var out []*entities.Visit
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}
