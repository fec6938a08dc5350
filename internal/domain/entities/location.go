package entities

import "errors"

// ErrInvalidCoordinates is returned by Location.Validate for values outside
// the WGS84 range or non-finite values.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Location represents a geographic coordinate pair (latitude/longitude) in
// decimal degrees.
//
// Go Learning Note — Value Types vs Reference Types:
// Location is a small, immutable data holder (two float64s). It is passed and
// embedded by value. Larger or mutable structs (Visit, UserProfile) are passed
// as pointers so every holder sees the same instance.
type Location struct {
	Latitude  float64 `json:"lat" gorm:"not null"`
	Longitude float64 `json:"lng" gorm:"not null"`
}

// NewLocation creates a Location value from latitude and longitude.
func NewLocation(lat, lng float64) Location {
	return Location{
		Latitude:  lat,
		Longitude: lng,
	}
}

// Validate reports whether the coordinates are usable for distance math.
// NaN fails both range comparisons, so it is rejected here as well.
func (l Location) Validate() error {
	if !(l.Latitude >= -90 && l.Latitude <= 90) {
		return ErrInvalidCoordinates
	}
	if !(l.Longitude >= -180 && l.Longitude <= 180) {
		return ErrInvalidCoordinates
	}
	return nil
}
