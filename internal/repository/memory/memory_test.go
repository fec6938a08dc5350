package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

func masjid(id, name, cell, state, district string) *entities.Masjid {
	m := &entities.Masjid{
		ID:           id,
		Name:         name,
		Location:     entities.NewLocation(3.139, 101.6869),
		StateCode:    state,
		DistrictCode: district,
		IsActive:     true,
		Geohash:      cell,
	}
	m.Normalize()
	return m
}

func TestDirectoryRepository_BucketsAndRegion(t *testing.T) {
	ctx := context.Background()
	repo := NewDirectoryRepository()

	require.NoError(t, repo.Put(ctx, masjid("m1", "Masjid Jamek", "w283c", "WPKL", "KL01")))
	require.NoError(t, repo.Put(ctx, masjid("m2", "Masjid Negara", "w283c", "WPKL", "KL02")))
	require.NoError(t, repo.Put(ctx, masjid("m3", "Masjid Putra", "w281b", "WPPJ", "PJ01")))

	bucket, err := repo.QueryBucket(ctx, "w283c")
	require.NoError(t, err)
	assert.Len(t, bucket, 2)

	empty, err := repo.QueryBucket(ctx, "zzzzz")
	require.NoError(t, err)
	assert.Empty(t, empty)

	region, err := repo.QueryRegion(ctx, "WPKL", "")
	require.NoError(t, err)
	assert.Len(t, region, 2)

	district, err := repo.QueryRegion(ctx, "WPKL", "KL02")
	require.NoError(t, err)
	require.Len(t, district, 1)
	assert.Equal(t, "m2", district[0].ID)

	// Moving a record updates its bucket.
	require.NoError(t, repo.Put(ctx, masjid("m2", "Masjid Negara", "w2838", "WPKL", "KL02")))
	bucket, _ = repo.QueryBucket(ctx, "w283c")
	assert.Len(t, bucket, 1)
	assert.Equal(t, 3, repo.Count())
}

func TestDirectoryRepository_GetByIDReturnsCopy(t *testing.T) {
	ctx := context.Background()
	repo := NewDirectoryRepository()
	require.NoError(t, repo.Put(ctx, masjid("m1", "Masjid Jamek", "w283c", "WPKL", "KL01")))

	got, err := repo.GetByID(ctx, "m1")
	require.NoError(t, err)
	got.Name = "changed"

	again, _ := repo.GetByID(ctx, "m1")
	assert.Equal(t, "Masjid Jamek", again.Name)

	_, err = repo.GetByID(ctx, "missing")
	assert.ErrorIs(t, err, repository.ErrMasjidNotFound)
}

func TestDirectoryRepository_SearchByNamePrefix(t *testing.T) {
	ctx := context.Background()
	repo := NewDirectoryRepository()
	require.NoError(t, repo.Put(ctx, masjid("m1", "Masjid Jamek", "w283c", "WPKL", "KL01")))
	require.NoError(t, repo.Put(ctx, masjid("m2", "Masjid Negara", "w283c", "WPKL", "KL02")))
	require.NoError(t, repo.Put(ctx, masjid("m3", "Surau Al-Ikhlas", "w283c", "WPKL", "KL02")))

	got, err := repo.SearchByNamePrefix(ctx, "masjid", 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "m1", got[0].ID)
	assert.Equal(t, "m2", got[1].ID)

	limited, _ := repo.SearchByNamePrefix(ctx, "masjid", 1)
	assert.Len(t, limited, 1)
}

func TestProfileRepository_GetOrCreateIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()

	a, err := repo.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	b, err := repo.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, err = repo.GetByUserID(ctx, "user-2")
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)
}

func TestProfileRepository_UpdateStatsIsAtomic(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()
	_, err := repo.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = repo.UpdateStats(ctx, "user-1", func(p *entities.UserProfile) error {
				p.AddPoints(10)
				return nil
			})
		}()
	}
	wg.Wait()

	p, err := repo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 500, p.TotalPoints)
	assert.Equal(t, 500, p.MonthlyPoints)
}

func TestProfileRepository_UpdateStatsRollsBackOnError(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()
	_, _ = repo.GetOrCreate(ctx, "user-1")

	boom := errors.New("boom")
	_, err := repo.UpdateStats(ctx, "user-1", func(p *entities.UserProfile) error {
		p.AddPoints(99)
		return boom
	})
	assert.ErrorIs(t, err, boom)

	p, _ := repo.GetByUserID(ctx, "user-1")
	assert.Zero(t, p.TotalPoints)
}

func TestProfileRepository_RanksAndReset(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()
	for user, pts := range map[string]int{"a": 30, "b": 10, "c": 20} {
		_, _ = repo.GetOrCreate(ctx, user)
		points := pts
		_, err := repo.UpdateStats(ctx, user, func(p *entities.UserProfile) error {
			p.AddPoints(points)
			return nil
		})
		require.NoError(t, err)
	}

	list, err := repo.ListByPoints(ctx, repository.PeriodGlobal, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, []string{"a", "c", "b"}, []string{list[0].UserID, list[1].UserID, list[2].UserID})

	above, _ := repo.CountAbove(ctx, repository.PeriodGlobal, 20)
	assert.EqualValues(t, 1, above)

	ids := []string{list[0].ID, list[1].ID, list[2].ID}
	require.NoError(t, repo.AssignRanks(ctx, repository.PeriodMonthly, ids))
	c, _ := repo.GetByUserID(ctx, "c")
	require.NotNil(t, c.MonthlyRank)
	assert.Equal(t, 2, *c.MonthlyRank)
	assert.Nil(t, c.GlobalRank)

	require.NoError(t, repo.ResetMonthly(ctx))
	c, _ = repo.GetByUserID(ctx, "c")
	assert.Zero(t, c.MonthlyPoints)
	assert.Nil(t, c.MonthlyRank)
	assert.Equal(t, 20, c.TotalPoints)

	second, _ := repo.ListByPoints(ctx, repository.PeriodGlobal, 1, 1)
	require.Len(t, second, 1)
	assert.Equal(t, "c", second[0].UserID)
}

func openVisit(id, profileID, masjidID string, at time.Time) *entities.Visit {
	m := &entities.Masjid{ID: masjidID, Name: "Masjid " + masjidID}
	return entities.NewVisit(id, profileID, m, at, entities.NewLocation(3.139, 101.6869), 10, 5, true)
}

func TestVisitRepository_OneOpenVisitPerProfile(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitRepository()
	now := time.Now()

	require.NoError(t, repo.CreateOpen(ctx, openVisit("v1", "p1", "m1", now)))
	err := repo.CreateOpen(ctx, openVisit("v2", "p1", "m2", now))
	assert.ErrorIs(t, err, repository.ErrOpenVisitExists)

	// Another profile is unaffected.
	require.NoError(t, repo.CreateOpen(ctx, openVisit("v3", "p2", "m1", now)))

	open, err := repo.GetOpenByProfile(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, "v1", open.ID)

	none, err := repo.GetOpenByProfile(ctx, "p3")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestVisitRepository_CloseOnlyOnce(t *testing.T) {
	ctx := context.Background()
	repo := NewVisitRepository()
	start := time.Now()
	require.NoError(t, repo.CreateOpen(ctx, openVisit("v1", "p1", "m1", start)))

	var closed int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, _ := repo.GetOpenByProfile(ctx, "p1")
			if v == nil {
				return
			}
			if err := v.Close(start.Add(30*time.Minute), v.CheckinLocation, true, 10); err != nil {
				return
			}
			if repo.Close(ctx, v) == nil {
				atomic.AddInt32(&closed, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, closed)

	open, _ := repo.GetOpenByProfile(ctx, "p1")
	assert.Nil(t, open)

	// A new visit may open once the previous one closed.
	require.NoError(t, repo.CreateOpen(ctx, openVisit("v2", "p1", "m1", start.Add(time.Hour))))
	n, _ := repo.CountByProfileAndMasjid(ctx, "p1", "m1")
	assert.EqualValues(t, 2, n)

	history, _ := repo.ListByProfile(ctx, "p1", 10, 0)
	require.Len(t, history, 2)
	assert.Equal(t, "v2", history[0].ID)
	assert.Equal(t, entities.VisitStatusCompleted, history[1].Status)
}

func TestAchievementRepository_UnlockExactlyOnce(t *testing.T) {
	ctx := context.Background()
	profiles := NewProfileRepository()
	owner, err := profiles.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	repo := NewAchievementRepository(profiles)
	require.NoError(t, repo.UpsertDefinitions(ctx, entities.DefaultAchievementCatalog()))

	defs, err := repo.ListActiveDefinitions(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, defs)
	assert.Equal(t, "EXPLORER_1", defs[0].Code)

	p := &entities.AchievementProgress{ID: "pr1", UserProfileID: owner.ID, AchievementID: defs[1].ID, RequiredProgress: 5}
	require.NoError(t, repo.CreateProgress(ctx, p))
	assert.ErrorIs(t, repo.CreateProgress(ctx, p), repository.ErrDuplicate)

	p.SetProgress(3)
	require.NoError(t, repo.UpdateProgress(ctx, p))
	got, _ := repo.GetProgress(ctx, owner.ID, defs[1].ID)
	assert.Equal(t, 3, got.CurrentProgress)
	assert.InDelta(t, 60.0, got.ProgressPercentage, 0.001)

	var wins int32
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.UnlockProgress(ctx, "pr1", 5, 25, time.Now())
			if err == nil && ok {
				atomic.AddInt32(&wins, 1)
			}
		}()
	}
	wg.Wait()
	assert.EqualValues(t, 1, wins)

	rows, _ := repo.ListProgress(ctx, owner.ID)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsUnlocked)
	assert.NotNil(t, rows[0].UnlockedAt)

	credited, err := profiles.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 25, credited.TotalPoints)
	assert.Equal(t, 25, credited.MonthlyPoints)
	assert.Equal(t, 1, credited.AchievementCount)
}

func TestAchievementRepository_UnlockStaysLockedWhenCreditFails(t *testing.T) {
	ctx := context.Background()
	profiles := NewProfileRepository()
	repo := NewAchievementRepository(profiles)
	require.NoError(t, repo.UpsertDefinitions(ctx, entities.DefaultAchievementCatalog()))
	defs, err := repo.ListActiveDefinitions(ctx)
	require.NoError(t, err)

	// The owning profile does not exist yet, so the credit fails.
	p := &entities.AchievementProgress{ID: "pr1", UserProfileID: "ghost", AchievementID: defs[0].ID, RequiredProgress: 1}
	require.NoError(t, repo.CreateProgress(ctx, p))

	ok, err := repo.UnlockProgress(ctx, "pr1", 1, 10, time.Now())
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)
	assert.False(t, ok)

	got, err := repo.GetProgress(ctx, "ghost", defs[0].ID)
	require.NoError(t, err)
	assert.False(t, got.IsUnlocked)
	assert.Nil(t, got.UnlockedAt)
}

func TestProfileRepository_CreditAchievement(t *testing.T) {
	ctx := context.Background()
	repo := NewProfileRepository()
	p, err := repo.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	require.NoError(t, repo.CreditAchievement(ctx, p.ID, 10))
	require.NoError(t, repo.CreditAchievement(ctx, p.ID, 25))
	got, err := repo.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 35, got.TotalPoints)
	assert.Equal(t, 35, got.MonthlyPoints)
	assert.Equal(t, 2, got.AchievementCount)

	assert.ErrorIs(t, repo.CreditAchievement(ctx, "missing", 10), repository.ErrProfileNotFound)
}

func TestStatsRepository_IncrementDaily(t *testing.T) {
	ctx := context.Background()
	repo := NewStatsRepository()

	none, err := repo.GetDaily(ctx, "m1", "2026-01-05")
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, repo.IncrementDaily(ctx, "m1", "2026-01-05", 15))
	require.NoError(t, repo.IncrementDaily(ctx, "m1", "2026-01-05", 10))

	row, err := repo.GetDaily(ctx, "m1", "2026-01-05")
	require.NoError(t, err)
	assert.Equal(t, 2, row.VisitorCount)
	assert.Equal(t, 25, row.PointsAwarded)
}

func TestSnapshotRepository_ReplacesMonth(t *testing.T) {
	ctx := context.Background()
	repo := NewSnapshotRepository()

	require.NoError(t, repo.SaveMonthlySnapshot(ctx, "2026-01", []*entities.LeaderboardSnapshot{
		{Rank: 1, UserProfileID: "p1", Points: 30},
		{Rank: 2, UserProfileID: "p2", Points: 20},
	}))
	require.NoError(t, repo.SaveMonthlySnapshot(ctx, "2026-01", []*entities.LeaderboardSnapshot{
		{Rank: 1, UserProfileID: "p2", Points: 40},
	}))

	rows, err := repo.ListMonthlySnapshot(ctx, "2026-01", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "p2", rows[0].UserProfileID)
	assert.Equal(t, "2026-01", rows[0].Month)
}

func TestLockManager_AcquireRelease(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager(time.Second)
	defer lm.Stop()

	token, ok, err := lm.AcquireLock(ctx, "checkin:user-1", time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotEmpty(t, token)

	_, ok, _ = lm.AcquireLock(ctx, "checkin:user-1", time.Minute)
	assert.False(t, ok, "second acquire must fail while held")

	_, ok, _ = lm.AcquireLock(ctx, "checkin:user-2", time.Minute)
	assert.True(t, ok, "locks are per key")

	locked, _ := lm.IsLocked(ctx, "checkin:user-1")
	assert.True(t, locked)

	require.NoError(t, lm.ReleaseLock(ctx, "checkin:user-1", "someone-else"))
	locked, _ = lm.IsLocked(ctx, "checkin:user-1")
	assert.True(t, locked, "a foreign token must not release the lock")

	require.NoError(t, lm.ReleaseLock(ctx, "checkin:user-1", token))
	_, ok, _ = lm.AcquireLock(ctx, "checkin:user-1", time.Minute)
	assert.True(t, ok)
}

func TestLockManager_StaleHolderCannotRelease(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager(time.Minute)
	defer lm.Stop()

	stale, ok, _ := lm.AcquireLock(ctx, "checkin:user-1", 10*time.Millisecond)
	require.True(t, ok)
	time.Sleep(30 * time.Millisecond)

	current, ok, _ := lm.AcquireLock(ctx, "checkin:user-1", time.Minute)
	require.True(t, ok, "an expired holder counts as free")

	require.NoError(t, lm.ReleaseLock(ctx, "checkin:user-1", stale))
	locked, _ := lm.IsLocked(ctx, "checkin:user-1")
	assert.True(t, locked, "the expired holder must not free the new lock")

	require.NoError(t, lm.ReleaseLock(ctx, "checkin:user-1", current))
	locked, _ = lm.IsLocked(ctx, "checkin:user-1")
	assert.False(t, locked)
}

func TestLockManager_Expiry(t *testing.T) {
	ctx := context.Background()
	lm := NewLockManager(10 * time.Millisecond)
	defer lm.Stop()

	_, ok, _ := lm.AcquireLock(ctx, "job:ranks", 20*time.Millisecond)
	require.True(t, ok)

	time.Sleep(50 * time.Millisecond)

	locked, _ := lm.IsLocked(ctx, "job:ranks")
	assert.False(t, locked)
	_, ok, _ = lm.AcquireLock(ctx, "job:ranks", time.Minute)
	assert.True(t, ok)

	lm.Stop()
	lm.Stop()
}
