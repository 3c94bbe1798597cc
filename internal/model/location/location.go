package location

import (
	"math"
	"time"
)

// Fix is a raw geolocation reading from the upstream location source.
// Cadence and accuracy are untrusted.
type Fix struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Accuracy  float64 `json:"accuracy,omitempty"`
}

// Snapshot is the last resolved location. Coordinates refresh more
// often than the place-name fields, which only change after a
// successful reverse resolution.
type Snapshot struct {
	City      string    `json:"city,omitempty"`
	State     string    `json:"state,omitempty"`
	Country   string    `json:"country,omitempty"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Timestamp time.Time `json:"timestamp"`
}

// RoundCoord truncates a coordinate to 3 decimal degrees (~100m) before
// it leaves the cache, as a privacy control.
func RoundCoord(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// Rounded returns a copy of the snapshot with coordinates rounded to
// consumer precision.
func (s Snapshot) Rounded() Snapshot {
	s.Latitude = RoundCoord(s.Latitude)
	s.Longitude = RoundCoord(s.Longitude)
	return s
}

const earthRadiusMeters = 6371000

// DistanceMeters computes the great-circle distance between two fixes.
func DistanceMeters(a, b Fix) float64 {
	lat1 := a.Latitude * math.Pi / 180
	lat2 := b.Latitude * math.Pi / 180
	dLat := (b.Latitude - a.Latitude) * math.Pi / 180
	dLon := (b.Longitude - a.Longitude) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}
