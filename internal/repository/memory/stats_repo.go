package memory

import (
	"context"
	"sync"
	"time"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

type statsKey struct {
	masjidID string
	day      string
}

// StatsRepository aggregates daily per-masjid counters.
type StatsRepository struct {
	mu    sync.Mutex
	daily map[statsKey]*entities.DailyMasjidStats
}

var _ repository.StatsStore = (*StatsRepository)(nil)

func NewStatsRepository() *StatsRepository {
	return &StatsRepository{
		daily: make(map[statsKey]*entities.DailyMasjidStats),
	}
}

func (r *StatsRepository) IncrementDaily(ctx context.Context, masjidID, day string, points int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := statsKey{masjidID, day}
	row, ok := r.daily[key]
	if !ok {
		row = &entities.DailyMasjidStats{MasjidID: masjidID, Day: day}
		r.daily[key] = row
	}
	row.VisitorCount++
	row.PointsAwarded += points
	row.UpdatedAt = time.Now()
	return nil
}

func (r *StatsRepository) GetDaily(ctx context.Context, masjidID, day string) (*entities.DailyMasjidStats, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	row, ok := r.daily[statsKey{masjidID, day}]
	if !ok {
		return nil, nil
	}
	c := *row
	return &c, nil
}
