package domain

import (
	"math"
	"time"
)

// Coordinate is a WGS 84 position in decimal degrees.
type Coordinate struct {
	Lon float64 `json:"lon"`
	Lat float64 `json:"lat"`
}

// Valid reports whether both components are finite and inside the WGS 84 range.
func (c Coordinate) Valid() bool {
	return validLatLon(c.Lat, c.Lon)
}

// Track is the extracted path of a trail. Segment boundaries of multi-line
// input are kept; generators consume the Flatten projection.
type Track struct {
	Segments [][]Coordinate `json:"segments"`
}

// Flatten concatenates all segments in order without removing shared endpoints.
func (t Track) Flatten() []Coordinate {
	n := 0
	for _, seg := range t.Segments {
		n += len(seg)
	}
	if n == 0 {
		return nil
	}
	out := make([]Coordinate, 0, n)
	for _, seg := range t.Segments {
		out = append(out, seg...)
	}
	return out
}

// Empty reports whether the track holds no coordinates at all.
func (t Track) Empty() bool {
	for _, seg := range t.Segments {
		if len(seg) > 0 {
			return false
		}
	}
	return true
}

// Bounds represents a geographic bounding box.
type Bounds struct {
	MinLat float64 `json:"min_lat"`
	MinLon float64 `json:"min_lon"`
	MaxLat float64 `json:"max_lat"`
	MaxLon float64 `json:"max_lon"`
}

// BoundsOf returns the bounding box of coords. ok is false for an empty slice.
func BoundsOf(coords []Coordinate) (b Bounds, ok bool) {
	if len(coords) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		MinLat: coords[0].Lat, MaxLat: coords[0].Lat,
		MinLon: coords[0].Lon, MaxLon: coords[0].Lon,
	}
	for _, c := range coords[1:] {
		b.MinLat = math.Min(b.MinLat, c.Lat)
		b.MaxLat = math.Max(b.MaxLat, c.Lat)
		b.MinLon = math.Min(b.MinLon, c.Lon)
		b.MaxLon = math.Max(b.MaxLon, c.Lon)
	}
	return b, true
}

// Center returns the midpoint of the box.
func (b Bounds) Center() Coordinate {
	return Coordinate{Lon: (b.MinLon + b.MaxLon) / 2, Lat: (b.MinLat + b.MaxLat) / 2}
}

// UserLocation is a position reported by the device location service.
type UserLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy"`
}

// Valid reports whether the location may be cached or handed to a generator.
func (l UserLocation) Valid() bool {
	return validLatLon(l.Latitude, l.Longitude)
}

// Coordinate returns the location as a track coordinate.
func (l UserLocation) Coordinate() Coordinate {
	return Coordinate{Lon: l.Longitude, Lat: l.Latitude}
}

// IsValidLocation is the nil-safe form of UserLocation.Valid.
func IsValidLocation(l *UserLocation) bool {
	return l != nil && l.Valid()
}

// CachedLocation is a location together with the moment it was acquired.
type CachedLocation struct {
	Location   UserLocation `json:"location"`
	AcquiredAt time.Time    `json:"acquired_at"`
}

// Fresh reports whether the entry is younger than ttl at now.
func (c CachedLocation) Fresh(now time.Time, ttl time.Duration) bool {
	return now.Sub(c.AcquiredAt) < ttl
}

func validLatLon(lat, lon float64) bool {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}
