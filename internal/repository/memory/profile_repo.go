package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
	"masjidgo/pkg/utils"
)

// ProfileRepository stores user profiles keyed by user ID.
//
// Go Learning Note — Closures as Transactions:
// UpdateStats takes a func(*UserProfile) error and runs it while holding the
// write lock. The caller expresses "what to change" and the store decides how
// to make it atomic; the gorm store runs the same closure inside a database
// transaction with a row lock.
type ProfileRepository struct {
	mu       sync.RWMutex
	profiles map[string]*entities.UserProfile // userID → profile
}

var _ repository.ProfileStore = (*ProfileRepository)(nil)

func NewProfileRepository() *ProfileRepository {
	return &ProfileRepository{
		profiles: make(map[string]*entities.UserProfile),
	}
}

func (r *ProfileRepository) GetOrCreate(ctx context.Context, userID string) (*entities.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if p, ok := r.profiles[userID]; ok {
		return p.Clone(), nil
	}
	p := entities.NewUserProfile(utils.GenerateID(), userID, time.Now())
	r.profiles[userID] = p
	return p.Clone(), nil
}

func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*entities.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	return p.Clone(), nil
}

// UpdateStats applies fn to a working copy and swaps it in only on success,
// so a failing fn leaves the stored profile untouched.
func (r *ProfileRepository) UpdateStats(ctx context.Context, userID string, fn func(p *entities.UserProfile) error) (*entities.UserProfile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.profiles[userID]
	if !ok {
		return nil, repository.ErrProfileNotFound
	}
	working := p.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	working.UpdatedAt = time.Now()
	r.profiles[userID] = working
	return working.Clone(), nil
}

func (r *ProfileRepository) UpdatePreferences(ctx context.Context, userID string, prefs entities.Preferences) (*entities.UserProfile, error) {
	return r.UpdateStats(ctx, userID, func(p *entities.UserProfile) error {
		prefs.Apply(p)
		return nil
	})
}

func (r *ProfileRepository) CreditAchievement(ctx context.Context, profileID string, bonus int) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for userID, p := range r.profiles {
		if p.ID != profileID {
			continue
		}
		working := p.Clone()
		working.AddPoints(bonus)
		working.AchievementCount++
		working.UpdatedAt = time.Now()
		r.profiles[userID] = working
		return nil
	}
	return repository.ErrProfileNotFound
}

func (r *ProfileRepository) ListByPoints(ctx context.Context, period repository.Period, limit, offset int) ([]*entities.UserProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.sorted(period)
	return page(all, limit, offset), nil
}

func (r *ProfileRepository) CountAbove(ctx context.Context, period repository.Period, points int) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var n int64
	for _, p := range r.profiles {
		if pointsFor(p, period) > points {
			n++
		}
	}
	return n, nil
}

func (r *ProfileRepository) AssignRanks(ctx context.Context, period repository.Period, orderedIDs []string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rankByID := make(map[string]int, len(orderedIDs))
	for i, id := range orderedIDs {
		rankByID[id] = i + 1
	}
	for _, p := range r.profiles {
		rank, ok := rankByID[p.ID]
		if !ok {
			continue
		}
		if period == repository.PeriodMonthly {
			p.MonthlyRank = &rank
		} else {
			p.GlobalRank = &rank
		}
	}
	return nil
}

func (r *ProfileRepository) ResetMonthly(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, p := range r.profiles {
		p.MonthlyPoints = 0
		p.MonthlyRank = nil
	}
	return nil
}

func (r *ProfileRepository) sorted(period repository.Period) []*entities.UserProfile {
	out := make([]*entities.UserProfile, 0, len(r.profiles))
	for _, p := range r.profiles {
		out = append(out, p.Clone())
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := pointsFor(out[i], period), pointsFor(out[j], period)
		if pi != pj {
			return pi > pj
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func pointsFor(p *entities.UserProfile, period repository.Period) int {
	if period == repository.PeriodMonthly {
		return p.MonthlyPoints
	}
	return p.TotalPoints
}

// page applies limit/offset to an already ordered slice. A non-positive limit
// means no limit.
func page[T any](items []T, limit, offset int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	items = items[offset:]
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
