package geo

import (
	"math"
	"sort"
	"testing"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name      string
		lat       float64
		lng       float64
		precision int
		want      string
	}{
		{name: "San Francisco", lat: 37.7749, lng: -122.4194, precision: 6, want: "9q8yyk"},
		{name: "San Francisco coarse", lat: 37.7749, lng: -122.4194, precision: CoarsePrecision, want: "9q8yy"},
		{name: "New York", lat: 40.7128, lng: -74.0060, precision: 6, want: "dr5reg"},
		{name: "London", lat: 51.5074, lng: -0.1278, precision: 6, want: "gcpvj0"},
		{name: "Kuala Lumpur", lat: 3.1390, lng: 101.6869, precision: FinePrecision, want: "w283cg"},
		{name: "Kuala Lumpur coarse", lat: 3.1390, lng: 101.6869, precision: CoarsePrecision, want: "w283c"},
		{name: "Default precision", lat: 37.7749, lng: -122.4194, precision: 0, want: "9q8yyk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.lat, tt.lng, tt.precision)
			if got != tt.want {
				t.Errorf("Encode() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestEncodeClampsPrecision(t *testing.T) {
	if got := Encode(37.7749, -122.4194, 40); len(got) != 12 {
		t.Errorf("expected 12 characters, got %d (%s)", len(got), got)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name      string
		hash      string
		wantLat   float64
		wantLng   float64
		tolerance float64
	}{
		{name: "San Francisco", hash: "9q8yyk", wantLat: 37.7749, wantLng: -122.4194, tolerance: 0.01},
		{name: "New York", hash: "dr5reg", wantLat: 40.7128, wantLng: -74.0060, tolerance: 0.01},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotLat, gotLng := Decode(tt.hash)
			if math.Abs(gotLat-tt.wantLat) > tt.tolerance {
				t.Errorf("Decode() lat = %v, want %v", gotLat, tt.wantLat)
			}
			if math.Abs(gotLng-tt.wantLng) > tt.tolerance {
				t.Errorf("Decode() lng = %v, want %v", gotLng, tt.wantLng)
			}
		})
	}
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	testCases := []struct {
		lat float64
		lng float64
	}{
		{37.7749, -122.4194},
		{40.7128, -74.0060},
		{51.5074, -0.1278},
		{-33.8688, 151.2093},
		{3.1390, 101.6869},
	}

	for _, tc := range testCases {
		hash := Encode(tc.lat, tc.lng, 8)
		if !Bounds(hash).Contains(tc.lat, tc.lng) {
			t.Errorf("cell %s does not contain (%v, %v)", hash, tc.lat, tc.lng)
		}
		lat, lng := Decode(hash)
		if math.Abs(lat-tc.lat) > 0.001 || math.Abs(lng-tc.lng) > 0.001 {
			t.Errorf("round trip failed: original (%v, %v), decoded (%v, %v)", tc.lat, tc.lng, lat, lng)
		}
	}
}

func TestBounds(t *testing.T) {
	b := Bounds("w283c")
	want := Box{MinLat: 3.1201171875, MaxLat: 3.1640625, MinLng: 101.6455078125, MaxLng: 101.689453125}
	if b != want {
		t.Errorf("Bounds(w283c) = %+v, want %+v", b, want)
	}
}

func TestValid(t *testing.T) {
	tests := map[string]bool{
		"w283c":         true,
		"":              false,
		"w283a":         false,
		"9q8yyk9q8yyk0": false,
	}
	for hash, want := range tests {
		if got := Valid(hash); got != want {
			t.Errorf("Valid(%q) = %v, want %v", hash, got, want)
		}
	}
}

func TestNeighbor(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{North, "9q8zn"},
		{South, "9q8yw"},
		{East, "9q8yz"},
		{West, "9q8yv"},
	}
	for _, tt := range tests {
		if got := Neighbor("9q8yy", tt.dir); got != tt.want {
			t.Errorf("Neighbor(9q8yy, %d) = %s, want %s", tt.dir, got, tt.want)
		}
	}
}

func TestNeighborWrapsAntimeridian(t *testing.T) {
	hash := Encode(0, 179.99, CoarsePrecision)
	if hash != "xbpbp" {
		t.Fatalf("unexpected cell %s", hash)
	}
	east := Neighbor(hash, East)
	if east != "80000" {
		t.Errorf("expected east neighbor 80000 across the antimeridian, got %s", east)
	}
}

func TestNeighborsAtPole(t *testing.T) {
	hash := Encode(89.99, 0, CoarsePrecision)
	if got := Neighbor(hash, North); got != hash {
		t.Errorf("expected the polar cell to be its own north neighbor, got %s", got)
	}
	cells := Neighbors(hash)
	if len(cells) != 6 {
		t.Errorf("expected 6 distinct cells at the pole, got %d: %v", len(cells), cells)
	}
}

func TestNeighbors(t *testing.T) {
	center := "9q8yyk"
	cells := Neighbors(center)

	if len(cells) != 9 {
		t.Fatalf("Expected 9 cells (including center), got %d", len(cells))
	}
	if cells[0] != center {
		t.Errorf("First cell should be center, got %s", cells[0])
	}

	got := append([]string(nil), cells...)
	sort.Strings(got)
	want := []string{"9q8yy5", "9q8yy7", "9q8yye", "9q8yyh", "9q8yyj", "9q8yyk", "9q8yym", "9q8yys", "9q8yyt"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("Neighbors(%s) = %v, want %v", center, got, want)
		}
	}
}

func TestCoverCells(t *testing.T) {
	fine := Encode(3.1390, 101.6869, FinePrecision)
	cells := CoverCells(fine, CoarsePrecision)

	sort.Strings(cells)
	if len(cells) != 2 || cells[0] != "w283c" || cells[1] != "w283f" {
		t.Errorf("CoverCells(%s) = %v, want [w283c w283f]", fine, cells)
	}
}

func BenchmarkEncode(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Encode(37.7749, -122.4194, 6)
	}
}

func BenchmarkNeighbors(b *testing.B) {
	for i := 0; i < b.N; i++ {
		Neighbors("9q8yyk")
	}
}
