package memory

import (
	"context"
	"sort"
	"sync"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

// VisitRepository stores visits with an open-visit index per profile. The
// index is what enforces "at most one open visit": CreateOpen checks and
// inserts under the same write lock.
type VisitRepository struct {
	mu     sync.RWMutex
	visits map[string]*entities.Visit // visitID → visit
	open   map[string]string          // profileID → open visitID
}

var _ repository.VisitStore = (*VisitRepository)(nil)

func NewVisitRepository() *VisitRepository {
	return &VisitRepository{
		visits: make(map[string]*entities.Visit),
		open:   make(map[string]string),
	}
}

func (r *VisitRepository) CreateOpen(ctx context.Context, v *entities.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.open[v.UserProfileID]; exists {
		return repository.ErrOpenVisitExists
	}
	if _, exists := r.visits[v.ID]; exists {
		return repository.ErrDuplicate
	}
	r.visits[v.ID] = v.Clone()
	r.open[v.UserProfileID] = v.ID
	return nil
}

func (r *VisitRepository) GetOpenByProfile(ctx context.Context, profileID string) (*entities.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.open[profileID]
	if !ok {
		return nil, nil
	}
	return r.visits[id].Clone(), nil
}

// Close is a compare-and-swap on the open index: only the caller that still
// finds the visit open may write it.
func (r *VisitRepository) Close(ctx context.Context, v *entities.Visit) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.visits[v.ID]
	if !ok || !stored.IsOpen() || r.open[v.UserProfileID] != v.ID {
		return repository.ErrVisitNotOpen
	}
	r.visits[v.ID] = v.Clone()
	delete(r.open, v.UserProfileID)
	return nil
}

func (r *VisitRepository) CountByProfileAndMasjid(ctx context.Context, profileID, masjidID string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, v := range r.visits {
		if v.UserProfileID == profileID && v.MasjidID == masjidID {
			n++
		}
	}
	return n, nil
}

// ListByProfile returns the profile's visits, newest check-in first.
func (r *VisitRepository) ListByProfile(ctx context.Context, profileID string, limit, offset int) ([]*entities.Visit, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Visit
	for _, v := range r.visits {
		if v.UserProfileID == profileID {
			out = append(out, v.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CheckinAt.Equal(out[j].CheckinAt) {
			return out[i].CheckinAt.After(out[j].CheckinAt)
		}
		return out[i].ID > out[j].ID
	})
	return page(out, limit, offset), nil
}
