package gormstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
	"masjidgo/internal/logger"
	"masjidgo/internal/repository"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := Open(config.StorageConfig{DBDriver: "sqlite", DatabaseURL: dsn}, logger.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	_, err := Open(config.StorageConfig{DBDriver: "oracle"}, logger.NewNop())
	assert.Error(t, err)

	_, err = Open(config.StorageConfig{DBDriver: "postgres"}, logger.NewNop())
	assert.Error(t, err, "postgres without DATABASE_URL must fail")
}

func TestProfileStore_GetOrCreate(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(testDB(t), logger.NewNop())

	a, err := store.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	b, err := store.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, a.ID, b.ID)

	_, err = store.GetByUserID(ctx, "nobody")
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)

	_, err = store.UpdateStats(ctx, "nobody", func(p *entities.UserProfile) error { return nil })
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)
}

func TestProfileStore_UpdateStatsSerializes(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(testDB(t), logger.NewNop())
	_, err := store.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.UpdateStats(ctx, "user-1", func(p *entities.UserProfile) error {
				p.AddPoints(10)
				p.TotalCheckIns++
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	p, err := store.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 200, p.TotalPoints)
	assert.Equal(t, 200, p.MonthlyPoints)
	assert.Equal(t, 20, p.TotalCheckIns)
}

func TestProfileStore_Preferences(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(testDB(t), logger.NewNop())
	_, _ = store.GetOrCreate(ctx, "user-1")

	alias := "Abu Bakr"
	show := true
	p, err := store.UpdatePreferences(ctx, "user-1", entities.Preferences{Alias: &alias, ShowRealName: &show})
	require.NoError(t, err)
	assert.Equal(t, alias, p.Alias)
	assert.True(t, p.ShowRealName)

	stored, _ := store.GetByUserID(ctx, "user-1")
	assert.Equal(t, alias, stored.Alias)
}

func TestProfileStore_RanksAndReset(t *testing.T) {
	ctx := context.Background()
	store := NewProfileStore(testDB(t), logger.NewNop())

	for user, pts := range map[string]int{"a": 30, "b": 10, "c": 20} {
		_, err := store.GetOrCreate(ctx, user)
		require.NoError(t, err)
		points := pts
		_, err = store.UpdateStats(ctx, user, func(p *entities.UserProfile) error {
			p.AddPoints(points)
			return nil
		})
		require.NoError(t, err)
	}

	list, err := store.ListByPoints(ctx, repository.PeriodMonthly, 0, 0)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "a", list[0].UserID)
	assert.Equal(t, "c", list[1].UserID)

	pageTwo, err := store.ListByPoints(ctx, repository.PeriodGlobal, 2, 2)
	require.NoError(t, err)
	require.Len(t, pageTwo, 1)
	assert.Equal(t, "b", pageTwo[0].UserID)

	n, err := store.CountAbove(ctx, repository.PeriodGlobal, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	require.NoError(t, store.AssignRanks(ctx, repository.PeriodGlobal, []string{list[0].ID, list[1].ID, list[2].ID}))
	b, _ := store.GetByUserID(ctx, "b")
	require.NotNil(t, b.GlobalRank)
	assert.Equal(t, 3, *b.GlobalRank)

	require.NoError(t, store.AssignRanks(ctx, repository.PeriodMonthly, []string{list[0].ID}))
	require.NoError(t, store.ResetMonthly(ctx))
	a, _ := store.GetByUserID(ctx, "a")
	assert.Zero(t, a.MonthlyPoints)
	assert.Nil(t, a.MonthlyRank)
	assert.Equal(t, 30, a.TotalPoints)
	require.NotNil(t, a.GlobalRank)
	assert.Equal(t, 1, *a.GlobalRank)
}

func newOpenVisit(profileID, masjidID string, at time.Time) *entities.Visit {
	m := &entities.Masjid{ID: masjidID, Name: "Masjid " + masjidID}
	return entities.NewVisit(uuid.NewString(), profileID, m, at, entities.NewLocation(3.139, 101.6869), 10, 5, true)
}

func TestVisitStore_PartialUniqueIndex(t *testing.T) {
	ctx := context.Background()
	store := NewVisitStore(testDB(t), logger.NewNop())
	start := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	first := newOpenVisit("p1", "m1", start)
	require.NoError(t, store.CreateOpen(ctx, first))
	err := store.CreateOpen(ctx, newOpenVisit("p1", "m2", start))
	assert.ErrorIs(t, err, repository.ErrOpenVisitExists)

	require.NoError(t, store.CreateOpen(ctx, newOpenVisit("p2", "m1", start)))

	open, err := store.GetOpenByProfile(ctx, "p1")
	require.NoError(t, err)
	require.NotNil(t, open)
	assert.Equal(t, first.ID, open.ID)
	assert.Equal(t, "Masjid m1", open.MasjidName)
	assert.InDelta(t, 3.139, open.CheckinLocation.Latitude, 1e-9)

	require.NoError(t, open.Close(start.Add(45*time.Minute+30*time.Second), entities.NewLocation(3.139, 101.6869), true, 10))
	require.NoError(t, store.Close(ctx, open))
	assert.ErrorIs(t, store.Close(ctx, open), repository.ErrVisitNotOpen)

	none, err := store.GetOpenByProfile(ctx, "p1")
	require.NoError(t, err)
	assert.Nil(t, none)

	// Closed visits do not block a new open one.
	require.NoError(t, store.CreateOpen(ctx, newOpenVisit("p1", "m1", start.Add(2*time.Hour))))

	n, err := store.CountByProfileAndMasjid(ctx, "p1", "m1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	history, err := store.ListByProfile(ctx, "p1", 10, 0)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entities.VisitStatusOpen, history[0].Status)
	assert.Equal(t, entities.VisitStatusCompleted, history[1].Status)
	assert.Equal(t, 45, history[1].DurationMinutes)
	assert.Equal(t, 15, history[1].ActualPointsEarned)
	require.NotNil(t, history[1].CheckoutLat)
}

func TestAchievementStore(t *testing.T) {
	ctx := context.Background()
	db := testDB(t)
	store := NewAchievementStore(db, logger.NewNop())
	profiles := NewProfileStore(db, logger.NewNop())
	owner, err := profiles.GetOrCreate(ctx, "user-1")
	require.NoError(t, err)

	catalog := entities.DefaultAchievementCatalog()
	require.NoError(t, store.UpsertDefinitions(ctx, catalog))
	// Idempotent re-seed.
	require.NoError(t, store.UpsertDefinitions(ctx, catalog))

	defs, err := store.ListActiveDefinitions(ctx)
	require.NoError(t, err)
	require.Len(t, defs, len(catalog))
	assert.Equal(t, "EXPLORER_1", defs[0].Code)

	p := &entities.AchievementProgress{ID: uuid.NewString(), UserProfileID: owner.ID, AchievementID: defs[1].ID, RequiredProgress: 5}
	p.SetProgress(2)
	require.NoError(t, store.CreateProgress(ctx, p))

	dup := &entities.AchievementProgress{ID: uuid.NewString(), UserProfileID: owner.ID, AchievementID: defs[1].ID, RequiredProgress: 5}
	assert.ErrorIs(t, store.CreateProgress(ctx, dup), repository.ErrDuplicate)

	p.SetProgress(4)
	require.NoError(t, store.UpdateProgress(ctx, p))
	got, err := store.GetProgress(ctx, owner.ID, defs[1].ID)
	require.NoError(t, err)
	assert.Equal(t, 4, got.CurrentProgress)
	assert.InDelta(t, 80.0, got.ProgressPercentage, 0.001)

	ok, err := store.UnlockProgress(ctx, p.ID, 5, 25, time.Now())
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = store.UnlockProgress(ctx, p.ID, 6, 25, time.Now())
	require.NoError(t, err)
	assert.False(t, ok, "second unlock must be a no-op")

	rows, err := store.ListProgress(ctx, owner.ID)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.True(t, rows[0].IsUnlocked)
	assert.Equal(t, 5, rows[0].CurrentProgress)

	credited, err := profiles.GetByUserID(ctx, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 25, credited.TotalPoints)
	assert.Equal(t, 25, credited.MonthlyPoints)
	assert.Equal(t, 1, credited.AchievementCount)

	missing, err := store.GetProgress(ctx, "p2", defs[1].ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAchievementStore_UnlockRollsBackWhenCreditFails(t *testing.T) {
	ctx := context.Background()
	store := NewAchievementStore(testDB(t), logger.NewNop())
	require.NoError(t, store.UpsertDefinitions(ctx, entities.DefaultAchievementCatalog()))
	defs, err := store.ListActiveDefinitions(ctx)
	require.NoError(t, err)

	// No profile row exists for the owner, so the credit affects nothing.
	p := &entities.AchievementProgress{ID: uuid.NewString(), UserProfileID: "ghost", AchievementID: defs[0].ID, RequiredProgress: 1}
	require.NoError(t, store.CreateProgress(ctx, p))

	ok, err := store.UnlockProgress(ctx, p.ID, 1, 10, time.Now())
	assert.ErrorIs(t, err, repository.ErrProfileNotFound)
	assert.False(t, ok)

	got, err := store.GetProgress(ctx, "ghost", defs[0].ID)
	require.NoError(t, err)
	assert.False(t, got.IsUnlocked, "the unlock must roll back with the failed credit")
	assert.Nil(t, got.UnlockedAt)
}

func TestStatsStore_Upsert(t *testing.T) {
	ctx := context.Background()
	store := NewStatsStore(testDB(t), logger.NewNop())

	require.NoError(t, store.IncrementDaily(ctx, "m1", "2026-03-01", 15))
	require.NoError(t, store.IncrementDaily(ctx, "m1", "2026-03-01", 5))
	require.NoError(t, store.IncrementDaily(ctx, "m1", "2026-03-02", 10))

	row, err := store.GetDaily(ctx, "m1", "2026-03-01")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, 2, row.VisitorCount)
	assert.Equal(t, 20, row.PointsAwarded)

	none, err := store.GetDaily(ctx, "m2", "2026-03-01")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestSnapshotStore_ReplacesMonth(t *testing.T) {
	ctx := context.Background()
	store := NewSnapshotStore(testDB(t), logger.NewNop())

	require.NoError(t, store.SaveMonthlySnapshot(ctx, "2026-02", []*entities.LeaderboardSnapshot{
		{Rank: 1, UserProfileID: "p1", DisplayName: "A*i", Points: 30},
		{Rank: 2, UserProfileID: "p2", DisplayName: "B*b", Points: 20},
	}))
	require.NoError(t, store.SaveMonthlySnapshot(ctx, "2026-02", []*entities.LeaderboardSnapshot{
		{Rank: 1, UserProfileID: "p2", DisplayName: "B*b", Points: 40},
		{Rank: 2, UserProfileID: "p1", DisplayName: "A*i", Points: 30},
	}))

	rows, err := store.ListMonthlySnapshot(ctx, "2026-02", 10, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "p2", rows[0].UserProfileID)
	assert.Equal(t, 40, rows[0].Points)

	other, err := store.ListMonthlySnapshot(ctx, "2026-01", 10, 0)
	require.NoError(t, err)
	assert.Empty(t, other)
}
