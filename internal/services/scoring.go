package services

import (
	"time"

	"masjidgo/internal/config"
	"masjidgo/internal/domain/entities"
)

// Scoring holds the point values of a visit and applies a closed visit to
// the cumulative counters of a profile. It has no I/O; callers run
// ApplyVisit inside ProfileStore.UpdateStats.
type Scoring struct {
	cfg config.ScoringConfig
	loc *time.Location
}

func NewScoring(cfg config.ScoringConfig) *Scoring {
	return &Scoring{cfg: cfg, loc: cfg.Location()}
}

// Location is the zone in which calendar days are counted.
func (s *Scoring) Location() *time.Location {
	return s.loc
}

// Base returns the base points of a visit given whether the checkout was
// inside the admission radius.
func (s *Scoring) Base(inProximity bool) int {
	if inProximity {
		return s.cfg.BaseCompleted
	}
	return s.cfg.BaseIncomplete
}

// Bonus returns the bonus captured at check-in.
func (s *Scoring) Bonus(firstVisit, prayerTime bool) int {
	bonus := 0
	if firstVisit {
		bonus += s.cfg.FirstVisitBonus
	}
	if prayerTime {
		bonus += s.cfg.PrayerBonus
	}
	return bonus
}

// ApplyVisit credits award to p and advances its streak using the checkout
// instant at.
//
// Streak rules, by calendar-day gap from the last visit:
//
//	no last visit → 1
//	gap 0         → unchanged
//	gap 1         → +1
//	gap > 1       → 1
func (s *Scoring) ApplyVisit(p *entities.UserProfile, award int, firstVisit bool, at time.Time) {
	p.AddPoints(award)
	p.TotalCheckIns++
	if firstVisit {
		p.UniqueMasjidsVisited++
	}

	switch {
	case p.LastVisitDate == nil:
		p.CurrentStreak = 1
	default:
		gap := s.DayGap(*p.LastVisitDate, at)
		switch {
		case gap == 1:
			p.CurrentStreak++
		case gap > 1:
			p.CurrentStreak = 1
		case p.CurrentStreak == 0:
			p.CurrentStreak = 1
		}
	}
	if p.CurrentStreak > p.LongestStreak {
		p.LongestStreak = p.CurrentStreak
	}

	last := at
	p.LastVisitDate = &last
	p.UpdatedAt = at
}

// DayGap returns the number of calendar days from prev to at in the scoring
// zone. A negative result means at lies on an earlier day.
func (s *Scoring) DayGap(prev, at time.Time) int {
	return int(civilDay(at, s.loc).Sub(civilDay(prev, s.loc)).Hours() / 24)
}

// civilDay maps t to midnight UTC of its calendar day in loc, so that the
// difference of two civil days is a whole number of 24h periods even across
// DST changes.
func civilDay(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.In(loc).Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
