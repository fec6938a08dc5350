package entities

import "time"

// UserProfile holds a user's cumulative counters. One profile exists per
// user ID; it is created lazily on the first check-in attempt.
//
// Counters only grow, except MonthlyPoints and MonthlyRank which are reset at
// calendar-month boundaries by the maintenance job.
type UserProfile struct {
	ID       string `json:"id" gorm:"primaryKey;size:36"`
	UserID   string `json:"user_id" gorm:"size:64;not null;uniqueIndex"`
	FullName string `json:"full_name,omitempty"`

	TotalPoints          int        `json:"total_points" gorm:"not null;default:0;index"`
	MonthlyPoints        int        `json:"monthly_points" gorm:"not null;default:0;index"`
	UniqueMasjidsVisited int        `json:"unique_masjids_visited" gorm:"not null;default:0"`
	TotalCheckIns        int        `json:"total_check_ins" gorm:"not null;default:0"`
	CurrentStreak        int        `json:"current_streak" gorm:"not null;default:0"`
	LongestStreak        int        `json:"longest_streak" gorm:"not null;default:0"`
	LastVisitDate        *time.Time `json:"last_visit_date,omitempty"`
	GlobalRank           *int       `json:"global_rank,omitempty"`
	MonthlyRank          *int       `json:"monthly_rank,omitempty"`
	AchievementCount     int        `json:"achievement_count" gorm:"not null;default:0"`

	ShowRealName bool   `json:"show_real_name" gorm:"not null;default:false"`
	Alias        string `json:"alias,omitempty" gorm:"size:64"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the relational table name.
func (UserProfile) TableName() string { return "user_profiles" }

// NewUserProfile creates an empty profile for userID.
func NewUserProfile(id, userID string, now time.Time) *UserProfile {
	return &UserProfile{
		ID:        id,
		UserID:    userID,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AddPoints credits points to both the lifetime and the monthly counter.
func (p *UserProfile) AddPoints(points int) {
	p.TotalPoints += points
	p.MonthlyPoints += points
}

// Clone returns a copy that does not share pointer fields with p.
func (p *UserProfile) Clone() *UserProfile {
	c := *p
	if p.LastVisitDate != nil {
		t := *p.LastVisitDate
		c.LastVisitDate = &t
	}
	if p.GlobalRank != nil {
		r := *p.GlobalRank
		c.GlobalRank = &r
	}
	if p.MonthlyRank != nil {
		r := *p.MonthlyRank
		c.MonthlyRank = &r
	}
	return &c
}

// Preferences is the user-editable part of a profile.
type Preferences struct {
	FullName     *string `json:"full_name,omitempty"`
	ShowRealName *bool   `json:"show_real_name,omitempty"`
	Alias        *string `json:"alias,omitempty"`
}

// Apply copies the fields that are set onto p.
func (pr Preferences) Apply(p *UserProfile) {
	if pr.FullName != nil {
		p.FullName = *pr.FullName
	}
	if pr.ShowRealName != nil {
		p.ShowRealName = *pr.ShowRealName
	}
	if pr.Alias != nil {
		p.Alias = *pr.Alias
	}
}
