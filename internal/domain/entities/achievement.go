package entities

import "time"

// AchievementCategory groups achievement definitions by what they count.
type AchievementCategory string

const (
	CategoryExplorer      AchievementCategory = "explorer"
	CategoryPrayerWarrior AchievementCategory = "prayer_warrior"
	CategoryStreak        AchievementCategory = "streak"
	CategoryGeographic    AchievementCategory = "geographic"
	CategorySpecial       AchievementCategory = "special"
)

// BadgeTier is the display tier of an achievement badge.
type BadgeTier string

const (
	TierBronze   BadgeTier = "bronze"
	TierSilver   BadgeTier = "silver"
	TierGold     BadgeTier = "gold"
	TierPlatinum BadgeTier = "platinum"
)

// AchievementDefinition is static catalog data.
type AchievementDefinition struct {
	ID            string              `json:"id" gorm:"primaryKey;size:36"`
	Code          string              `json:"code" gorm:"size:64;not null;uniqueIndex"`
	Name          string              `json:"name"`
	Description   string              `json:"description"`
	Category      AchievementCategory `json:"category" gorm:"size:32;not null;index"`
	BadgeTier     BadgeTier           `json:"badge_tier" gorm:"size:16"`
	RequiredCount int                 `json:"required_count" gorm:"not null"`
	BonusPoints   int                 `json:"bonus_points" gorm:"not null;default:0"`
	DisplayOrder  int                 `json:"display_order" gorm:"not null;default:0"`
	IsActive      bool                `json:"is_active" gorm:"not null"`
}

// TableName pins the relational table name.
func (AchievementDefinition) TableName() string { return "achievement_definitions" }

// AchievementProgress tracks one user's progress toward one definition.
// RequiredProgress is copied from the definition when the row is created.
type AchievementProgress struct {
	ID                 string     `json:"id" gorm:"primaryKey;size:36"`
	UserProfileID      string     `json:"user_profile_id" gorm:"size:36;not null;uniqueIndex:idx_progress_profile_achievement"`
	AchievementID      string     `json:"achievement_id" gorm:"size:36;not null;uniqueIndex:idx_progress_profile_achievement"`
	CurrentProgress    int        `json:"current_progress" gorm:"not null;default:0"`
	RequiredProgress   int        `json:"required_progress" gorm:"not null"`
	ProgressPercentage float64    `json:"progress_percentage" gorm:"not null;default:0"`
	IsUnlocked         bool       `json:"is_unlocked" gorm:"not null;default:false"`
	UnlockedAt         *time.Time `json:"unlocked_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// TableName pins the relational table name.
func (AchievementProgress) TableName() string { return "achievement_progress" }

// SetProgress updates the counter and the capped percentage.
func (p *AchievementProgress) SetProgress(current int) {
	p.CurrentProgress = current
	p.ProgressPercentage = ProgressPercentage(current, p.RequiredProgress)
}

// ProgressPercentage returns current/required as a percentage capped at 100.
func ProgressPercentage(current, required int) float64 {
	if required <= 0 {
		return 100
	}
	pct := float64(current) / float64(required) * 100
	if pct > 100 {
		return 100
	}
	return pct
}

// DefaultAchievementCatalog is seeded into the achievement store at boot.
// Only the explorer category is evaluated today.
func DefaultAchievementCatalog() []AchievementDefinition {
	return []AchievementDefinition{
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0001", Code: "EXPLORER_1", Name: "First Steps", Description: "Visit your first masjid", Category: CategoryExplorer, BadgeTier: TierBronze, RequiredCount: 1, BonusPoints: 10, DisplayOrder: 1, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0002", Code: "EXPLORER_5", Name: "Explorer", Description: "Visit 5 different masjids", Category: CategoryExplorer, BadgeTier: TierSilver, RequiredCount: 5, BonusPoints: 25, DisplayOrder: 2, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0003", Code: "EXPLORER_25", Name: "Wayfarer", Description: "Visit 25 different masjids", Category: CategoryExplorer, BadgeTier: TierGold, RequiredCount: 25, BonusPoints: 100, DisplayOrder: 3, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0004", Code: "EXPLORER_100", Name: "Musafir", Description: "Visit 100 different masjids", Category: CategoryExplorer, BadgeTier: TierPlatinum, RequiredCount: 100, BonusPoints: 500, DisplayOrder: 4, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0005", Code: "PRAYER_WARRIOR_5", Name: "Prayer Warrior", Description: "Check in during prayer time 5 times", Category: CategoryPrayerWarrior, BadgeTier: TierBronze, RequiredCount: 5, BonusPoints: 25, DisplayOrder: 5, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0006", Code: "STREAK_7", Name: "Steadfast", Description: "Visit on 7 consecutive days", Category: CategoryStreak, BadgeTier: TierSilver, RequiredCount: 7, BonusPoints: 50, DisplayOrder: 6, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0007", Code: "GEOGRAPHIC_3", Name: "State Hopper", Description: "Visit masjids in 3 states", Category: CategoryGeographic, BadgeTier: TierGold, RequiredCount: 3, BonusPoints: 75, DisplayOrder: 7, IsActive: true},
		{ID: "6a1f4e0e-0b8b-4f55-9d49-1f0c1b7a0008", Code: "SPECIAL_RAMADAN", Name: "Ramadan Visitor", Description: "Visit during Ramadan", Category: CategorySpecial, BadgeTier: TierGold, RequiredCount: 1, BonusPoints: 50, DisplayOrder: 8, IsActive: true},
	}
}
