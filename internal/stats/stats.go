// Package stats derives aggregates and milestones from daily goal history.
// All functions are pure; callers pass snapshots taken from the goal ledger.
package stats

import (
	"time"

	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// Totals is the reduction of a sequence of daily goals.
type Totals struct {
	Distance float64 `json:"distance_km"`
	Time     float64 `json:"time_min"`
	Paths    int     `json:"paths"`
	Reached  int     `json:"reached_goals"`
	Days     int     `json:"days"`
}

// AverageSpeed is the total distance per hour of active time, zero when no time was recorded.
func (t Totals) AverageSpeed() float64 {
	if t.Time <= 0 {
		return 0
	}
	return t.Distance / (t.Time / 60)
}

func (t Totals) add(g models.DailyGoal) Totals {
	t.Distance += g.Progress.Distance
	t.Time += g.Progress.Time
	t.Paths += g.Progress.Paths
	if g.Reached() {
		t.Reached++
	}
	t.Days++
	return t
}

// Aggregate reduces history to its totals.
func Aggregate(history []models.DailyGoal) Totals {
	var t Totals
	for _, g := range history {
		t = t.add(g)
	}
	return t
}

// TotalDistance sums progress distance.
func TotalDistance(history []models.DailyGoal) float64 { return Aggregate(history).Distance }

// TotalTime sums progress time.
func TotalTime(history []models.DailyGoal) float64 { return Aggregate(history).Time }

// TotalPaths sums progress path counts.
func TotalPaths(history []models.DailyGoal) int { return Aggregate(history).Paths }

// ReachedCount counts days whose progress met the target on all three dimensions.
func ReachedCount(history []models.DailyGoal) int { return Aggregate(history).Reached }

// AverageSpeed is TotalDistance per hour of TotalTime.
func AverageSpeed(history []models.DailyGoal) float64 { return Aggregate(history).AverageSpeed() }

// YearMonth identifies a calendar month.
type YearMonth struct {
	Year  int
	Month time.Month
}

// Breakdown maps a grouping unit to its totals. Missing units read as zero totals.
type Breakdown[K comparable] map[K]Totals

// At returns the totals of k, zero when k has no entries.
func (b Breakdown[K]) At(k K) Totals {
	return b[k]
}

// ByYear groups history by calendar year.
func ByYear(history []models.DailyGoal) Breakdown[int] {
	out := make(Breakdown[int])
	for _, g := range history {
		out[g.Date.Year] = out[g.Date.Year].add(g)
	}
	return out
}

// ByMonth groups history by calendar month.
func ByMonth(history []models.DailyGoal) Breakdown[YearMonth] {
	out := make(Breakdown[YearMonth])
	for _, g := range history {
		k := YearMonth{Year: g.Date.Year, Month: g.Date.Month}
		out[k] = out[k].add(g)
	}
	return out
}

// Summary is the statistics view returned to clients.
type Summary struct {
	Totals
	AverageSpeed float64           `json:"average_speed_kmh"`
	Months       map[string]Totals `json:"months"`
	Years        map[int]Totals    `json:"years"`
}

// Summarize builds the full statistics view of history.
func Summarize(history []models.DailyGoal) Summary {
	totals := Aggregate(history)

	months := make(map[string]Totals)
	for k, v := range ByMonth(history) {
		months[time.Date(k.Year, k.Month, 1, 0, 0, 0, 0, time.UTC).Format("2006-01")] = v
	}

	return Summary{
		Totals:       totals,
		AverageSpeed: totals.AverageSpeed(),
		Months:       months,
		Years:        ByYear(history),
	}
}
