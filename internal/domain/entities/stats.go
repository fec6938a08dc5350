package entities

import "time"

// DailyMasjidStats aggregates completed checkouts per masjid and calendar day.
type DailyMasjidStats struct {
	MasjidID      string    `json:"masjid_id" gorm:"primaryKey;size:64"`
	Day           string    `json:"day" gorm:"primaryKey;size:10"` // 2006-01-02
	VisitorCount  int       `json:"visitor_count" gorm:"not null;default:0"`
	PointsAwarded int       `json:"points_awarded" gorm:"not null;default:0"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName pins the relational table name.
func (DailyMasjidStats) TableName() string { return "daily_masjid_stats" }

// DayKey formats t as the calendar day key used by DailyMasjidStats.
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

// LeaderboardSnapshot is one row of a frozen monthly leaderboard.
type LeaderboardSnapshot struct {
	ID            uint      `json:"-" gorm:"primaryKey;autoIncrement"`
	Month         string    `json:"month" gorm:"size:7;not null;uniqueIndex:idx_snapshot_month_profile;index"` // 2006-01
	Rank          int       `json:"rank" gorm:"not null"`
	UserProfileID string    `json:"user_profile_id" gorm:"size:36;not null;uniqueIndex:idx_snapshot_month_profile"`
	DisplayName   string    `json:"display_name"`
	Points        int       `json:"points" gorm:"not null"`
	CreatedAt     time.Time `json:"created_at"`
}

// TableName pins the relational table name.
func (LeaderboardSnapshot) TableName() string { return "leaderboard_snapshots" }

// MonthKey formats t as the month key used by LeaderboardSnapshot.
func MonthKey(t time.Time) string {
	return t.Format("2006-01")
}
