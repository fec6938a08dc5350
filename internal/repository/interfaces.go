// Package repository declares the storage contracts the services depend on.
// Implementations live in the memory, gormstore and redisstore subpackages.
package repository

import (
	"context"
	"errors"
	"time"

	"masjidgo/internal/domain/entities"
)

var (
	ErrMasjidNotFound  = errors.New("masjid not found")
	ErrProfileNotFound = errors.New("profile not found")
	ErrOpenVisitExists = errors.New("profile already has an open visit")
	ErrVisitNotOpen    = errors.New("visit is not open")
	ErrDuplicate       = errors.New("duplicate record")
)

// Period selects which points counter a leaderboard query ranks by.
type Period string

const (
	PeriodGlobal  Period = "global"
	PeriodMonthly Period = "monthly"
)

// Valid reports whether p is a known period.
func (p Period) Valid() bool {
	return p == PeriodGlobal || p == PeriodMonthly
}

// DirectoryStore is the read-mostly masjid directory, bucketed by coarse
// geohash cell. Records passed to Put must already carry their Geohash.
type DirectoryStore interface {
	GetByID(ctx context.Context, id string) (*entities.Masjid, error)
	QueryBucket(ctx context.Context, cell string) ([]*entities.Masjid, error)
	// QueryRegion returns the records of a state. A non-empty district
	// narrows the result to district codes with that prefix.
	QueryRegion(ctx context.Context, state, district string) ([]*entities.Masjid, error)
	// SearchByNamePrefix matches a normalized prefix against the normalized
	// name, in name order.
	SearchByNamePrefix(ctx context.Context, prefix string, limit int) ([]*entities.Masjid, error)
	Put(ctx context.Context, m *entities.Masjid) error
}

// ProfileStore owns user profiles. UpdateStats is an atomic
// read-modify-write: fn sees the latest row and its changes are persisted
// only if it returns nil.
type ProfileStore interface {
	GetOrCreate(ctx context.Context, userID string) (*entities.UserProfile, error)
	GetByUserID(ctx context.Context, userID string) (*entities.UserProfile, error)
	UpdateStats(ctx context.Context, userID string, fn func(p *entities.UserProfile) error) (*entities.UserProfile, error)
	UpdatePreferences(ctx context.Context, userID string, prefs entities.Preferences) (*entities.UserProfile, error)
	// CreditAchievement adds bonus to the total and monthly points of the
	// profile with the given profile ID and counts one more achievement.
	CreditAchievement(ctx context.Context, profileID string, bonus int) error
	// ListByPoints orders by points desc, then creation time. A non-positive
	// limit returns every profile.
	ListByPoints(ctx context.Context, period Period, limit, offset int) ([]*entities.UserProfile, error)
	CountAbove(ctx context.Context, period Period, points int) (int64, error)
	// AssignRanks sets the period's rank field to the 1-based position of each
	// profile ID in orderedIDs.
	AssignRanks(ctx context.Context, period Period, orderedIDs []string) error
	ResetMonthly(ctx context.Context) error
}

// VisitStore owns visits. At most one open visit exists per profile;
// CreateOpen returns ErrOpenVisitExists when that would be violated.
type VisitStore interface {
	CreateOpen(ctx context.Context, v *entities.Visit) error
	// GetOpenByProfile returns (nil, nil) when the profile has no open visit.
	GetOpenByProfile(ctx context.Context, profileID string) (*entities.Visit, error)
	// Close persists a closed visit only if the stored row is still open,
	// otherwise it returns ErrVisitNotOpen.
	Close(ctx context.Context, v *entities.Visit) error
	CountByProfileAndMasjid(ctx context.Context, profileID, masjidID string) (int64, error)
	ListByProfile(ctx context.Context, profileID string, limit, offset int) ([]*entities.Visit, error)
}

// AchievementStore holds the catalog and per-profile progress.
type AchievementStore interface {
	UpsertDefinitions(ctx context.Context, defs []entities.AchievementDefinition) error
	ListActiveDefinitions(ctx context.Context) ([]*entities.AchievementDefinition, error)
	// GetProgress returns (nil, nil) when no row exists yet.
	GetProgress(ctx context.Context, profileID, achievementID string) (*entities.AchievementProgress, error)
	// CreateProgress returns ErrDuplicate when the (profile, achievement)
	// row already exists.
	CreateProgress(ctx context.Context, p *entities.AchievementProgress) error
	// UpdateProgress writes the counters of a still-locked row.
	UpdateProgress(ctx context.Context, p *entities.AchievementProgress) error
	// UnlockProgress flips a locked row to unlocked and credits bonus to the
	// owning profile as one atomic step, reporting whether this call did it.
	// A row that is already unlocked is left untouched. When the credit fails
	// the row stays locked, so a later evaluation can retry.
	UnlockProgress(ctx context.Context, progressID string, current, bonus int, at time.Time) (bool, error)
	ListProgress(ctx context.Context, profileID string) ([]*entities.AchievementProgress, error)
}

// StatsStore aggregates per-masjid daily counters.
type StatsStore interface {
	IncrementDaily(ctx context.Context, masjidID, day string, points int) error
	// GetDaily returns (nil, nil) when nothing was recorded that day.
	GetDaily(ctx context.Context, masjidID, day string) (*entities.DailyMasjidStats, error)
}

// SnapshotStore keeps frozen monthly leaderboards.
type SnapshotStore interface {
	// SaveMonthlySnapshot replaces any rows already stored for month.
	SaveMonthlySnapshot(ctx context.Context, month string, rows []*entities.LeaderboardSnapshot) error
	ListMonthlySnapshot(ctx context.Context, month string, limit, offset int) ([]*entities.LeaderboardSnapshot, error)
}

// LockManager hands out TTL-bounded exclusive locks. AcquireLock returns
// ok == false when the key is held by someone else; on success the token
// identifies the holder. ReleaseLock only frees a key still held under token,
// so a holder whose TTL ran out cannot free a lock that was re-acquired.
type LockManager interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
	IsLocked(ctx context.Context, key string) (bool, error)
}
