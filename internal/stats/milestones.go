package stats

import (
	"fmt"
	"slices"

	"github.com/sbilibin2017/gw-progress-store/internal/models"
)

// Milestone is a named predicate over the totals of a user's history.
type Milestone struct {
	Name    string
	Reached func(Totals) bool
}

func distanceAtLeast(km float64) Milestone {
	return Milestone{
		Name:    fmt.Sprintf("distance_%gkm", km),
		Reached: func(t Totals) bool { return t.Distance >= km },
	}
}

func timeAtLeast(minutes float64) Milestone {
	return Milestone{
		Name:    fmt.Sprintf("time_%gmin", minutes),
		Reached: func(t Totals) bool { return t.Time >= minutes },
	}
}

func pathsAtLeast(n int) Milestone {
	return Milestone{
		Name:    fmt.Sprintf("paths_%d", n),
		Reached: func(t Totals) bool { return t.Paths >= n },
	}
}

func goalsReachedAtLeast(n int) Milestone {
	return Milestone{
		Name:    fmt.Sprintf("goals_reached_%d", n),
		Reached: func(t Totals) bool { return t.Reached >= n },
	}
}

// Catalogue is the default set of milestones.
var Catalogue = []Milestone{
	distanceAtLeast(1),
	distanceAtLeast(10),
	distanceAtLeast(42.195),
	distanceAtLeast(100),
	timeAtLeast(60),
	timeAtLeast(600),
	timeAtLeast(3000),
	pathsAtLeast(1),
	pathsAtLeast(10),
	pathsAtLeast(50),
	goalsReachedAtLeast(1),
	goalsReachedAtLeast(7),
	goalsReachedAtLeast(30),
}

// Evaluate checks every milestone against history. A milestone is dated with the first day,
// in date order, on which the running totals satisfy it. Milestones present in achieved keep their
// recorded date; the others found reached are returned in newly.
func Evaluate(catalogue []Milestone, history []models.DailyGoal, achieved map[string]models.Date) (result []models.Milestone, newly map[string]models.Date) {
	days := slices.Clone(history)
	slices.SortFunc(days, func(a, b models.DailyGoal) int {
		return a.Date.Time().Compare(b.Date.Time())
	})

	first := make(map[string]models.Date, len(catalogue))
	var running Totals
	for _, d := range days {
		running = running.add(d)
		for _, m := range catalogue {
			if _, ok := first[m.Name]; !ok && m.Reached(running) {
				first[m.Name] = d.Date
			}
		}
	}

	newly = make(map[string]models.Date)
	result = make([]models.Milestone, 0, len(catalogue))

	for _, m := range catalogue {
		if on, ok := achieved[m.Name]; ok {
			result = append(result, models.Milestone{Name: m.Name, Achieved: true, AchievedOn: &on})
			continue
		}
		if on, ok := first[m.Name]; ok {
			newly[m.Name] = on
			result = append(result, models.Milestone{Name: m.Name, Achieved: true, AchievedOn: &on})
			continue
		}
		result = append(result, models.Milestone{Name: m.Name})
	}
	return result, newly
}
