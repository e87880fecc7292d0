package models

import (
	"errors"
	"math"
	"time"
)

// ErrInvalidRunSpan is returned when a run does not end strictly after it starts.
var ErrInvalidRunSpan = errors.New("run end time must be after start time")

const (
	// earthRadiusMeters is the mean Earth radius used for great-circle distances.
	earthRadiusMeters = 6371000.0

	// RunningMET is the metabolic equivalent used for calorie estimates.
	RunningMET = 9.8

	// ReferenceWeightKg is the body weight assumed by the calorie estimate.
	ReferenceWeightKg = 70.0
)

// GeoPoint is a WGS84 coordinate.
type GeoPoint struct {
	Lat float64 `json:"lat"` // Latitude in degrees
	Lon float64 `json:"lon"` // Longitude in degrees
}

// Section is a continuous part of a recorded path. Pausing a run starts a new section.
type Section []GeoPoint

// Run is one completed activity session. It is immutable once constructed.
type Run struct {
	path  []Section
	start time.Time
	end   time.Time
}

// NewRun validates the time span and copies the path.
func NewRun(path []Section, start, end time.Time) (Run, error) {
	if !end.After(start) {
		return Run{}, ErrInvalidRunSpan
	}

	copied := make([]Section, len(path))
	for i, s := range path {
		copied[i] = append(Section(nil), s...)
	}

	return Run{path: copied, start: start.UTC(), end: end.UTC()}, nil
}

// StartTime is the history key of the run.
func (r Run) StartTime() time.Time { return r.start }

// EndTime returns when the run finished.
func (r Run) EndTime() time.Time { return r.end }

// Path returns a copy of the recorded sections.
func (r Run) Path() []Section {
	out := make([]Section, len(r.path))
	for i, s := range r.path {
		out[i] = append(Section(nil), s...)
	}
	return out
}

// Duration is end minus start.
func (r Run) Duration() time.Duration { return r.end.Sub(r.start) }

// Distance is the sum of great-circle segment lengths in meters.
// Gaps between sections are not counted.
func (r Run) Distance() float64 {
	var total float64
	for _, s := range r.path {
		for i := 1; i < len(s); i++ {
			total += haversine(s[i-1], s[i])
		}
	}
	return total
}

// AverageSpeed is in meters per second.
func (r Run) AverageSpeed() float64 {
	return r.Distance() / r.Duration().Seconds()
}

// Calories estimates burnt kilocalories from duration and a fixed MET.
func (r Run) Calories() float64 {
	return RunningMET * ReferenceWeightKg * r.Duration().Hours()
}

// PacePerKm is the time needed per kilometer, zero when no distance was covered.
func (r Run) PacePerKm() time.Duration {
	km := r.Distance() / 1000
	if km == 0 {
		return 0
	}
	return time.Duration(float64(r.Duration()) / km)
}

func haversine(a, b GeoPoint) float64 {
	lat1 := a.Lat * math.Pi / 180
	lat2 := b.Lat * math.Pi / 180
	dLat := lat2 - lat1
	dLon := (b.Lon - a.Lon) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	return 2 * earthRadiusMeters * math.Asin(math.Sqrt(h))
}

// RunView is the JSON representation of a Run with its derived properties.
type RunView struct {
	Path         []Section `json:"path"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
	Distance     float64   `json:"distance_m"`
	Duration     float64   `json:"duration_s"`
	AverageSpeed float64   `json:"average_speed_mps"`
	Calories     float64   `json:"calories"`
	PacePerKm    float64   `json:"pace_s_per_km"`
}

// View returns the serialisable form of r.
func (r Run) View() RunView {
	return RunView{
		Path:         r.Path(),
		StartTime:    r.start,
		EndTime:      r.end,
		Distance:     r.Distance(),
		Duration:     r.Duration().Seconds(),
		AverageSpeed: r.AverageSpeed(),
		Calories:     r.Calories(),
		PacePerKm:    r.PacePerKm().Seconds(),
	}
}
