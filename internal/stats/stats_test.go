package stats

import (
	"testing"
	"time"

	"github.com/sbilibin2017/gw-progress-store/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int, progress models.Triple) models.DailyGoal {
	return models.DailyGoal{
		Date:     models.Date{Year: y, Month: m, Day: d},
		Target:   models.DefaultGoals,
		Progress: progress,
	}
}

var history = []models.DailyGoal{
	day(2024, time.December, 31, models.Triple{Distance: 6, Time: 40, Paths: 1}),
	day(2025, time.January, 1, models.Triple{Distance: 2, Time: 20, Paths: 1}),
	day(2025, time.January, 15, models.Triple{Distance: 10, Time: 60, Paths: 2}),
	day(2025, time.February, 1, models.Triple{}),
}

func TestAggregate(t *testing.T) {
	totals := Aggregate(history)

	assert.Equal(t, 18.0, totals.Distance)
	assert.Equal(t, 120.0, totals.Time)
	assert.Equal(t, 4, totals.Paths)
	assert.Equal(t, 2, totals.Reached)
	assert.Equal(t, 4, totals.Days)

	assert.Equal(t, 18.0, TotalDistance(history))
	assert.Equal(t, 120.0, TotalTime(history))
	assert.Equal(t, 4, TotalPaths(history))
	assert.Equal(t, 2, ReachedCount(history))
	assert.InDelta(t, 9.0, AverageSpeed(history), 1e-9)
}

func TestAverageSpeed_NoTime(t *testing.T) {
	assert.Zero(t, AverageSpeed(nil))
	assert.Zero(t, AverageSpeed([]models.DailyGoal{day(2025, time.January, 1, models.Triple{Distance: 3})}))
}

func TestBreakdowns(t *testing.T) {
	years := ByYear(history)
	assert.Equal(t, 6.0, years.At(2024).Distance)
	assert.Equal(t, 12.0, years.At(2025).Distance)
	assert.Equal(t, Totals{}, years.At(1999))

	months := ByMonth(history)
	jan := months.At(YearMonth{Year: 2025, Month: time.January})
	assert.Equal(t, 2, jan.Days)
	assert.Equal(t, 3, jan.Paths)
	assert.Equal(t, 1, jan.Reached)
	assert.Equal(t, Totals{}, months.At(YearMonth{Year: 2025, Month: time.March}))
}

func TestSummarize(t *testing.T) {
	s := Summarize(history)

	assert.Equal(t, 18.0, s.Distance)
	assert.InDelta(t, 9.0, s.AverageSpeed, 1e-9)
	require.Contains(t, s.Months, "2025-01")
	assert.Equal(t, 12.0, s.Months["2025-01"].Distance)
	assert.Len(t, s.Years, 2)

	empty := Summarize(nil)
	assert.Zero(t, empty.AverageSpeed)
	assert.Empty(t, empty.Months)
}

func TestEvaluate_DatesComeFromHistory(t *testing.T) {
	result, newly := Evaluate(Catalogue, history, nil)
	require.Len(t, result, len(Catalogue))

	byName := map[string]models.Milestone{}
	for _, m := range result {
		byName[m.Name] = m
	}

	tests := []struct {
		name string
		on   models.Date
	}{
		{"distance_1km", models.Date{Year: 2024, Month: time.December, Day: 31}},
		{"paths_1", models.Date{Year: 2024, Month: time.December, Day: 31}},
		{"goals_reached_1", models.Date{Year: 2024, Month: time.December, Day: 31}},
		{"time_60min", models.Date{Year: 2025, Month: time.January, Day: 1}},
		{"distance_10km", models.Date{Year: 2025, Month: time.January, Day: 15}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := byName[tt.name]
			require.True(t, m.Achieved)
			assert.Equal(t, tt.on, *m.AchievedOn)
			assert.Equal(t, tt.on, newly[tt.name])
		})
	}

	assert.False(t, byName["distance_42.195km"].Achieved)
	assert.Nil(t, byName["distance_42.195km"].AchievedOn)
	assert.False(t, byName["goals_reached_7"].Achieved)
}

func TestEvaluate_HistoryOrderDoesNotMatter(t *testing.T) {
	reversed := make([]models.DailyGoal, len(history))
	for i, g := range history {
		reversed[len(history)-1-i] = g
	}

	a, _ := Evaluate(Catalogue, history, nil)
	b, _ := Evaluate(Catalogue, reversed, nil)
	assert.Equal(t, a, b)
}

func TestEvaluate_RecordedDateIsKept(t *testing.T) {
	recorded := models.Date{Year: 2025, Month: time.March, Day: 9}
	achieved := map[string]models.Date{"distance_10km": recorded}

	result, newly := Evaluate(Catalogue, history, achieved)

	assert.NotContains(t, newly, "distance_10km")
	assert.Contains(t, newly, "distance_1km")
	for _, m := range result {
		if m.Name == "distance_10km" {
			assert.Equal(t, recorded, *m.AchievedOn)
		}
	}
}
