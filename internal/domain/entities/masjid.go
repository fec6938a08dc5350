// Package entities defines the core domain models for the check-in system.
// These structs represent the business concepts (Masjid, UserProfile, Visit,
// achievements, stats) and live in the innermost layer of the architecture.
// They have no dependencies on HTTP or on a particular storage engine. The
// gorm struct tags are metadata only; nothing here imports gorm.
//
// Go Learning Note — "internal/" directory:
// Packages under internal/ cannot be imported by code outside this module. Go
// enforces this at the compiler level.
package entities

import "strings"

// DefaultCheckinRadiusMeters is used when a masjid record carries no radius of
// its own, and as the fallback radius at checkout when the record is gone.
const DefaultCheckinRadiusMeters = 100

// Masjid is a point of interest in the directory. Records are owned by the
// directory store and referenced from visits by ID only.
type Masjid struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name"`
	NameLower           string   `json:"-"`
	Location            Location `json:"location"`
	StateCode           string   `json:"state_code"`
	DistrictCode        string   `json:"district_code"`
	CheckinRadiusMeters float64  `json:"checkin_radius_meters"`
	IsActive            bool     `json:"is_active"`
	IsVerified          bool     `json:"is_verified"`

	// Geohash is the bucketing cell of the record. It is derived from
	// Location by the geo package when the record is written.
	Geohash string `json:"geohash"`
}

// Radius returns the admission radius in meters, falling back to the default
// for records without one.
func (m *Masjid) Radius() float64 {
	if m == nil || m.CheckinRadiusMeters <= 0 {
		return DefaultCheckinRadiusMeters
	}
	return m.CheckinRadiusMeters
}

// Normalize fills derived fields that are not part of the seed data.
func (m *Masjid) Normalize() {
	m.NameLower = NormalizeName(m.Name)
	if m.CheckinRadiusMeters <= 0 {
		m.CheckinRadiusMeters = DefaultCheckinRadiusMeters
	}
}

// NormalizeName lower-cases and trims a name or a search prefix so that both
// sides of a prefix comparison use the same form.
func NormalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
