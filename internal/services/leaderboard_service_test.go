package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"masjidgo/internal/domain/entities"
	"masjidgo/internal/repository"
)

type member struct {
	userID   string
	fullName string
	alias    string
	showReal bool
	total    int
	monthly  int
}

func (h *harness) seedMembers(t *testing.T, members ...member) {
	t.Helper()
	ctx := context.Background()
	for _, m := range members {
		_, err := h.profiles.GetOrCreate(ctx, m.userID)
		require.NoError(t, err)
		_, err = h.profiles.UpdateStats(ctx, m.userID, func(p *entities.UserProfile) error {
			p.FullName = m.fullName
			p.Alias = m.alias
			p.ShowRealName = m.showReal
			p.TotalPoints = m.total
			p.MonthlyPoints = m.monthly
			return nil
		})
		require.NoError(t, err)
	}
}

func TestLeaderboardService_GlobalTiesAndNames(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedMembers(t,
		member{userID: "a", fullName: "Ahmad Faiz", total: 100},
		member{userID: "b", fullName: "Siti Nurhaliza", showReal: true, total: 80},
		member{userID: "c", fullName: "Ali", alias: "Pathfinder", total: 80},
		member{userID: "d", fullName: "", total: 10},
	)

	board, err := h.leaderboard.Global(ctx, 10, 0)
	require.NoError(t, err)
	require.Len(t, board, 4)

	assert.Equal(t, []int{1, 2, 2, 4}, []int{board[0].Rank, board[1].Rank, board[2].Rank, board[3].Rank})
	assert.Equal(t, "A********z", board[0].DisplayName)
	assert.ElementsMatch(t, []string{"Siti Nurhaliza", "Pathfinder"}, []string{board[1].DisplayName, board[2].DisplayName})
	assert.Equal(t, "Anonymous", board[3].DisplayName)

	// A page starting inside a tie keeps the shared rank.
	page, err := h.leaderboard.Global(ctx, 2, 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, 2, page[0].Rank)
	assert.Equal(t, 4, page[1].Rank)
}

func TestLeaderboardService_MonthlyAndRank(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedMembers(t,
		member{userID: "a", total: 500, monthly: 20},
		member{userID: "b", total: 100, monthly: 90},
		member{userID: "c", total: 300, monthly: 90},
	)

	board, err := h.leaderboard.Monthly(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, board, 3)
	assert.Equal(t, 90, board[0].Points)
	assert.Equal(t, 1, board[1].Rank)
	assert.Equal(t, 3, board[2].Rank)

	rank, err := h.leaderboard.Rank(ctx, "a", repository.PeriodGlobal)
	require.NoError(t, err)
	assert.Equal(t, 1, rank.Rank)
	assert.Equal(t, 500, rank.Points)
	assert.Nil(t, rank.CachedRank)

	rank, err = h.leaderboard.Rank(ctx, "a", repository.PeriodMonthly)
	require.NoError(t, err)
	assert.Equal(t, 3, rank.Rank)

	_, err = h.leaderboard.Rank(ctx, "a", repository.Period("weekly"))
	requireRefusal(t, err, KindValidation, CodeValidation)

	_, err = h.leaderboard.Rank(ctx, "ghost", repository.PeriodGlobal)
	requireRefusal(t, err, KindNotFound, CodeProfileNotFound)
}

func TestLeaderboardService_RecomputeRanks(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedMembers(t,
		member{userID: "a", total: 10, monthly: 30},
		member{userID: "b", total: 30, monthly: 10},
	)

	n, err := h.leaderboard.RecomputeRanks(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	a := h.profile(t, "a")
	require.NotNil(t, a.GlobalRank)
	require.NotNil(t, a.MonthlyRank)
	assert.Equal(t, 2, *a.GlobalRank)
	assert.Equal(t, 1, *a.MonthlyRank)

	rank, err := h.leaderboard.Rank(ctx, "a", repository.PeriodGlobal)
	require.NoError(t, err)
	require.NotNil(t, rank.CachedRank)
	assert.Equal(t, 2, *rank.CachedRank)
}

func TestLeaderboardService_SnapshotAndResetMonthly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.seedMembers(t,
		member{userID: "a", fullName: "Aminah", alias: "Amy", total: 50, monthly: 40},
		member{userID: "b", fullName: "Bakar", total: 70, monthly: 60},
		member{userID: "c", fullName: "Chong", total: 5, monthly: 0},
	)

	n, err := h.leaderboard.SnapshotAndResetMonthly(ctx, "2026-02")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	rows, err := h.leaderboard.Snapshot(ctx, "2026-02", 0, 0)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, 1, rows[0].Rank)
	assert.Equal(t, 60, rows[0].Points)
	assert.Equal(t, "B***r", rows[0].DisplayName)
	assert.Equal(t, "Amy", rows[1].DisplayName)

	for _, id := range []string{"a", "b", "c"} {
		p := h.profile(t, id)
		assert.Zero(t, p.MonthlyPoints, id)
		assert.Nil(t, p.MonthlyRank, id)
	}
	assert.Equal(t, 70, h.profile(t, "b").TotalPoints)

	// Re-running the month replaces the snapshot; nobody has monthly points now.
	n, err = h.leaderboard.SnapshotAndResetMonthly(ctx, "2026-02")
	require.NoError(t, err)
	assert.Zero(t, n)
	_, err = h.leaderboard.Snapshot(ctx, "2026-02", 0, 0)
	requireRefusal(t, err, KindNotFound, CodeSnapshotNotFound)
}

func TestLeaderboardService_SnapshotValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.leaderboard.SnapshotAndResetMonthly(ctx, "February")
	requireRefusal(t, err, KindValidation, CodeValidation)

	_, err = h.leaderboard.Snapshot(ctx, "2026-13", 0, 0)
	requireRefusal(t, err, KindValidation, CodeValidation)

	_, err = h.leaderboard.Snapshot(ctx, "2025-12", 0, 0)
	requireRefusal(t, err, KindNotFound, CodeSnapshotNotFound)
}
