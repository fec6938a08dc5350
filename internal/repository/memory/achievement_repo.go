package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

// AchievementRepository holds the achievement catalog and per-profile
// progress rows. Unlock bonuses are credited through profiles while the
// repository lock is held.
type AchievementRepository struct {
	mu          sync.RWMutex
	profiles    repository.ProfileStore
	definitions map[string]*entities.AchievementDefinition // code → definition
	progress    map[string]*entities.AchievementProgress   // progressID → row
	byPair      map[progressKey]string                     // (profile, achievement) → progressID
}

type progressKey struct {
	profileID     string
	achievementID string
}

var _ repository.AchievementStore = (*AchievementRepository)(nil)

func NewAchievementRepository(profiles repository.ProfileStore) *AchievementRepository {
	return &AchievementRepository{
		profiles:    profiles,
		definitions: make(map[string]*entities.AchievementDefinition),
		progress:    make(map[string]*entities.AchievementProgress),
		byPair:      make(map[progressKey]string),
	}
}

// UpsertDefinitions matches definitions by Code.
func (r *AchievementRepository) UpsertDefinitions(ctx context.Context, defs []entities.AchievementDefinition) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i := range defs {
		d := defs[i]
		if existing, ok := r.definitions[d.Code]; ok {
			d.ID = existing.ID
		}
		r.definitions[d.Code] = &d
	}
	return nil
}

func (r *AchievementRepository) ListActiveDefinitions(ctx context.Context) ([]*entities.AchievementDefinition, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.AchievementDefinition
	for _, d := range r.definitions {
		if d.IsActive {
			c := *d
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Code < out[j].Code
	})
	return out, nil
}

func (r *AchievementRepository) GetProgress(ctx context.Context, profileID, achievementID string) (*entities.AchievementProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byPair[progressKey{profileID, achievementID}]
	if !ok {
		return nil, nil
	}
	return cloneProgress(r.progress[id]), nil
}

func (r *AchievementRepository) CreateProgress(ctx context.Context, p *entities.AchievementProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := progressKey{p.UserProfileID, p.AchievementID}
	if _, exists := r.byPair[key]; exists {
		return repository.ErrDuplicate
	}
	r.progress[p.ID] = cloneProgress(p)
	r.byPair[key] = p.ID
	return nil
}

func (r *AchievementRepository) UpdateProgress(ctx context.Context, p *entities.AchievementProgress) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.progress[p.ID]
	if !ok || stored.IsUnlocked {
		return nil
	}
	stored.SetProgress(p.CurrentProgress)
	stored.UpdatedAt = time.Now()
	return nil
}

// UnlockProgress credits the profile first and flips the row only when the
// credit succeeded. Both happen under the write lock, so no other unlock of
// the row can interleave.
func (r *AchievementRepository) UnlockProgress(ctx context.Context, progressID string, current, bonus int, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.progress[progressID]
	if !ok || stored.IsUnlocked {
		return false, nil
	}
	if err := r.profiles.CreditAchievement(ctx, stored.UserProfileID, bonus); err != nil {
		return false, err
	}
	stored.SetProgress(current)
	stored.IsUnlocked = true
	stored.UnlockedAt = &at
	stored.UpdatedAt = at
	return true, nil
}

func (r *AchievementRepository) ListProgress(ctx context.Context, profileID string) ([]*entities.AchievementProgress, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.AchievementProgress
	for _, p := range r.progress {
		if p.UserProfileID == profileID {
			out = append(out, cloneProgress(p))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].AchievementID < out[j].AchievementID })
	return out, nil
}

func cloneProgress(p *entities.AchievementProgress) *entities.AchievementProgress {
	c := *p
	if p.UnlockedAt != nil {
		t := *p.UnlockedAt
		c.UnlockedAt = &t
	}
	return &c
}
