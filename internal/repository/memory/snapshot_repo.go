package memory

import (
	"context"
	"sync"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

// SnapshotRepository keeps frozen monthly leaderboards, already in rank order.
type SnapshotRepository struct {
	mu     sync.RWMutex
	months map[string][]entities.LeaderboardSnapshot
}

var _ repository.SnapshotStore = (*SnapshotRepository)(nil)

func NewSnapshotRepository() *SnapshotRepository {
	return &SnapshotRepository{
		months: make(map[string][]entities.LeaderboardSnapshot),
	}
}

func (r *SnapshotRepository) SaveMonthlySnapshot(ctx context.Context, month string, rows []*entities.LeaderboardSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := make([]entities.LeaderboardSnapshot, len(rows))
	for i, row := range rows {
		stored[i] = *row
		stored[i].Month = month
	}
	r.months[month] = stored
	return nil
}

func (r *SnapshotRepository) ListMonthlySnapshot(ctx context.Context, month string, limit, offset int) ([]*entities.LeaderboardSnapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := r.months[month]
	out := make([]*entities.LeaderboardSnapshot, len(rows))
	for i := range rows {
		c := rows[i]
		out[i] = &c
	}
	return page(out, limit, offset), nil
}
