// Package geo implements the geohash codec, the great-circle distance oracle
// and the proximity index over the masjid directory.
//
// Go Learning Note — What is a Geohash?
// A geohash encodes a latitude/longitude pair into a short string. Nearby
// locations usually share a common prefix, so a directory can be bucketed by
// cell code and a proximity query only has to read a handful of buckets
// instead of every record.
//
// Precision determines the cell size:
//
//	1 → ~5000 km    4 → ~39 km     7 → ~153 m    10 → ~1.2 m
//	2 → ~1250 km    5 → ~4.9 km    8 → ~19 m     11 → ~15 cm
//	3 → ~156 km     6 → ~1.2 km    9 → ~2.4 m    12 → ~1.9 cm
//
// The directory is bucketed at CoarsePrecision. CheckinEligible starts from a
// FinePrecision cell and widens to the coarse buckets that cover it.
package geo

import (
	"strings"
)

const (
	// CoarsePrecision is the bucketing precision of the directory (~4.9 km cells).
	CoarsePrecision = 5
	// FinePrecision is used for check-in eligibility (~1.2 x 0.6 km cells).
	FinePrecision = 6

	maxPrecision = 12
)

// base32 is the geohash alphabet. 'a', 'i', 'l' and 'o' are excluded.
const base32 = "0123456789bcdefghjkmnpqrstuvwxyz"

var base32Index [256]int8

func init() {
	for i := range base32Index {
		base32Index[i] = -1
	}
	for i := 0; i < len(base32); i++ {
		base32Index[base32[i]] = int8(i)
	}
}

// Direction names one of the four edge-adjacent cells.
type Direction int

const (
	North Direction = iota
	South
	East
	West
)

// Box is the bounding rectangle of a geohash cell.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// Center returns the midpoint of the box.
func (b Box) Center() (lat, lng float64) {
	return (b.MinLat + b.MaxLat) / 2, (b.MinLng + b.MaxLng) / 2
}

// Height returns the latitude span of the box in degrees.
func (b Box) Height() float64 { return b.MaxLat - b.MinLat }

// Width returns the longitude span of the box in degrees.
func (b Box) Width() float64 { return b.MaxLng - b.MinLng }

// Contains reports whether the point lies inside the box (min inclusive).
func (b Box) Contains(lat, lng float64) bool {
	return lat >= b.MinLat && lat < b.MaxLat && lng >= b.MinLng && lng < b.MaxLng
}

// Encode converts latitude and longitude to a geohash of the given precision.
// Precision is clamped to [1, 12]; non-positive values mean FinePrecision.
//
// Bits alternate between longitude (even) and latitude (odd); each step
// bisects the remaining range and every 5 bits become one base32 character.
//
// Go Learning Note — strings.Builder:
// strings.Builder grows one internal buffer instead of allocating a new string
// on every append, which is what repeated s += "x" would do.
func Encode(lat, lng float64, precision int) string {
	if precision <= 0 {
		precision = FinePrecision
	}
	if precision > maxPrecision {
		precision = maxPrecision
	}

	minLat, maxLat := -90.0, 90.0
	minLng, maxLng := -180.0, 180.0

	var hash strings.Builder
	hash.Grow(precision)
	even := true
	bit, ch := 0, 0

	for hash.Len() < precision {
		if even {
			mid := (minLng + maxLng) / 2
			if lng >= mid {
				ch |= 1 << (4 - bit)
				minLng = mid
			} else {
				maxLng = mid
			}
		} else {
			mid := (minLat + maxLat) / 2
			if lat >= mid {
				ch |= 1 << (4 - bit)
				minLat = mid
			} else {
				maxLat = mid
			}
		}
		even = !even
		if bit++; bit == 5 {
			hash.WriteByte(base32[ch])
			bit, ch = 0, 0
		}
	}
	return hash.String()
}

// Valid reports whether hash is a non-empty string over the geohash alphabet.
func Valid(hash string) bool {
	if hash == "" || len(hash) > maxPrecision {
		return false
	}
	for i := 0; i < len(hash); i++ {
		if base32Index[hash[i]] < 0 {
			return false
		}
	}
	return true
}

// Bounds replays the binary subdivision of hash and returns its cell box.
// Characters outside the alphabet are skipped.
func Bounds(hash string) Box {
	b := Box{MinLat: -90, MaxLat: 90, MinLng: -180, MaxLng: 180}
	even := true

	for i := 0; i < len(hash); i++ {
		cd := base32Index[hash[i]]
		if cd < 0 {
			continue
		}
		for j := 4; j >= 0; j-- {
			on := (cd>>j)&1 == 1
			if even {
				mid := (b.MinLng + b.MaxLng) / 2
				if on {
					b.MinLng = mid
				} else {
					b.MaxLng = mid
				}
			} else {
				mid := (b.MinLat + b.MaxLat) / 2
				if on {
					b.MinLat = mid
				} else {
					b.MaxLat = mid
				}
			}
			even = !even
		}
	}
	return b
}

// Decode returns the center of the cell encoded by hash.
//
// Go Learning Note — Named Return Values:
// `(lat, lng float64)` documents which float is which at the call site.
func Decode(hash string) (lat, lng float64) {
	return Bounds(hash).Center()
}

// Neighbor returns the edge-adjacent cell of the same precision. It steps one
// cell height or width from the cell center and re-encodes, so the result is
// correct across every parent-cell border. Longitude wraps at the antimeridian;
// at the poles there is no cell further north/south and hash itself is
// returned.
func Neighbor(hash string, dir Direction) string {
	if hash == "" {
		return ""
	}
	hash = strings.ToLower(hash)
	box := Bounds(hash)
	lat, lng := box.Center()

	switch dir {
	case North:
		lat += box.Height()
	case South:
		lat -= box.Height()
	case East:
		lng += box.Width()
	case West:
		lng -= box.Width()
	}

	if lat > 90 || lat < -90 {
		return hash
	}
	return Encode(lat, wrapLongitude(lng), len(hash))
}

// Neighbors returns the 3x3 grid around hash: the center first, then the
// eight surrounding cells. Duplicates that arise at the poles are removed.
func Neighbors(hash string) []string {
	n, s := Neighbor(hash, North), Neighbor(hash, South)
	cells := []string{
		hash,
		n,
		s,
		Neighbor(hash, East),
		Neighbor(hash, West),
		Neighbor(n, East),
		Neighbor(n, West),
		Neighbor(s, East),
		Neighbor(s, West),
	}
	return dedupe(cells)
}

// CoverCells returns the distinct precision-length prefixes of the 3x3 grid
// around hash. It maps a fine neighbourhood onto the coarse buckets that hold
// its records.
func CoverCells(hash string, precision int) []string {
	cells := Neighbors(hash)
	for i, c := range cells {
		if len(c) > precision {
			cells[i] = c[:precision]
		}
	}
	return dedupe(cells)
}

func dedupe(cells []string) []string {
	seen := make(map[string]struct{}, len(cells))
	out := cells[:0]
	for _, c := range cells {
		if _, ok := seen[c]; ok {
			continue
		}
		seen[c] = struct{}{}
		out = append(out, c)
	}
	return out
}

func wrapLongitude(lng float64) float64 {
	for lng >= 180 {
		lng -= 360
	}
	for lng < -180 {
		lng += 360
	}
	return lng
}
