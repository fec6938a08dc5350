package entities

import (
	"errors"
	"math"
	"time"
)

// VisitStatus represents the lifecycle state of a visit.
//
// Go Learning Note — State Machines in Go:
// This file implements a finite state machine using a map of valid
// transitions. A visit's lifecycle is short:
//
//	Open → Completed    (checked out inside the admission radius)
//	     ↘ Incomplete   (checked out from too far away)
//
// Both end states are terminal; a visit is never re-opened.
type VisitStatus string

const (
	VisitStatusOpen       VisitStatus = "open"
	VisitStatusCompleted  VisitStatus = "completed"
	VisitStatusIncomplete VisitStatus = "incomplete"
)

// ErrInvalidVisitTransition is returned when a status change is not allowed
// by the visit state machine.
var ErrInvalidVisitTransition = errors.New("invalid visit status transition")

var visitTransitions = map[VisitStatus][]VisitStatus{
	VisitStatusOpen:       {VisitStatusCompleted, VisitStatusIncomplete},
	VisitStatusCompleted:  {},
	VisitStatusIncomplete: {},
}

// Visit is one check-in/check-out cycle of a user at a masjid. The masjid
// name is copied at check-in so history still renders after the directory
// record is renamed or removed.
type Visit struct {
	ID              string      `json:"id" gorm:"primaryKey;size:36"`
	UserProfileID   string      `json:"user_profile_id" gorm:"size:36;not null;index;uniqueIndex:idx_visits_one_open,where:status = 'open'"`
	MasjidID        string      `json:"masjid_id" gorm:"size:64;not null;index"`
	MasjidName      string      `json:"masjid_name"`
	Status          VisitStatus `json:"status" gorm:"size:16;not null;index"`
	CheckinAt       time.Time   `json:"checkin_at" gorm:"not null;index"`
	CheckinLocation Location    `json:"checkin_location" gorm:"embedded;embeddedPrefix:checkin_"`
	CheckoutAt      *time.Time  `json:"checkout_at,omitempty"`
	CheckoutLat     *float64    `json:"checkout_lat,omitempty"`
	CheckoutLng     *float64    `json:"checkout_lng,omitempty"`

	BasePoints          int  `json:"base_points"`
	BonusPoints         int  `json:"bonus_points"`
	ActualPointsEarned  int  `json:"actual_points_earned"`
	CheckoutInProximity bool `json:"checkout_in_proximity"`
	DurationMinutes     int  `json:"duration_minutes"`

	IsPrayerTime bool   `json:"is_prayer_time"`
	PrayerName   string `json:"prayer_name,omitempty"`
	IsFirstVisit bool   `json:"is_first_visit"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName pins the relational table name.
func (Visit) TableName() string { return "visits" }

// NewVisit creates an open visit. Points are captured from the check-in
// facts; ActualPointsEarned stays zero until checkout.
func NewVisit(id, profileID string, masjid *Masjid, at time.Time, loc Location, basePoints, bonusPoints int, firstVisit bool) *Visit {
	return &Visit{
		ID:              id,
		UserProfileID:   profileID,
		MasjidID:        masjid.ID,
		MasjidName:      masjid.Name,
		Status:          VisitStatusOpen,
		CheckinAt:       at,
		CheckinLocation: loc,
		BasePoints:      basePoints,
		BonusPoints:     bonusPoints,
		IsFirstVisit:    firstVisit,
		CreatedAt:       at,
		UpdatedAt:       at,
	}
}

// IsOpen reports whether the visit is still waiting for a checkout.
func (v *Visit) IsOpen() bool {
	return v.Status == VisitStatusOpen
}

// CanTransitionTo checks if moving to newStatus is a valid state change.
func (v *Visit) CanTransitionTo(newStatus VisitStatus) bool {
	allowed, exists := visitTransitions[v.Status]
	if !exists {
		return false
	}
	for _, s := range allowed {
		if s == newStatus {
			return true
		}
	}
	return false
}

// Close records the checkout on the visit and moves it to its terminal
// state. basePoints is the value recomputed at checkout; the bonus captured
// at check-in is kept as is, so the award is base + bonus either way.
func (v *Visit) Close(at time.Time, loc Location, inProximity bool, basePoints int) error {
	status := VisitStatusIncomplete
	if inProximity {
		status = VisitStatusCompleted
	}
	if !v.CanTransitionTo(status) {
		return ErrInvalidVisitTransition
	}

	lat, lng := loc.Latitude, loc.Longitude
	v.Status = status
	v.CheckoutAt = &at
	v.CheckoutLat = &lat
	v.CheckoutLng = &lng
	v.CheckoutInProximity = inProximity
	v.BasePoints = basePoints
	v.ActualPointsEarned = basePoints + v.BonusPoints
	v.DurationMinutes = wholeMinutes(at.Sub(v.CheckinAt))
	v.UpdatedAt = at
	return nil
}

// CheckoutLocation returns the exit coordinates, or false while open.
func (v *Visit) CheckoutLocation() (Location, bool) {
	if v.CheckoutLat == nil || v.CheckoutLng == nil {
		return Location{}, false
	}
	return NewLocation(*v.CheckoutLat, *v.CheckoutLng), true
}

func wholeMinutes(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	return int(math.Floor(d.Minutes()))
}

// Clone returns a copy that does not share pointer fields with v.
func (v *Visit) Clone() *Visit {
	c := *v
	if v.CheckoutAt != nil {
		t := *v.CheckoutAt
		c.CheckoutAt = &t
	}
	if v.CheckoutLat != nil {
		lat := *v.CheckoutLat
		c.CheckoutLat = &lat
	}
	if v.CheckoutLng != nil {
		lng := *v.CheckoutLng
		c.CheckoutLng = &lng
	}
	return &c
}
