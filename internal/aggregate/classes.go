package aggregate

import (
	"sort"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

// AssignmentPerformanceByClass folds a student's graded submissions into one
// summary per class.
func AssignmentPerformanceByClass(rows []models.AssignmentPerformanceRow) []models.ClassAssignmentPerformance {
	type acc struct {
		name               string
		count, totalPoints int
		score, percentage  float64
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		g, ok := groups[r.ClassID]
		if !ok {
			g = &acc{name: r.ClassName}
			groups[r.ClassID] = g
		}
		g.count++
		g.score += r.Score
		g.percentage += float64(r.Percentage)
		g.totalPoints += r.TotalPoints
	}

	out := make([]models.ClassAssignmentPerformance, 0, len(groups))
	for id, g := range groups {
		out = append(out, models.ClassAssignmentPerformance{
			ClassID:           id,
			ClassName:         g.name,
			Count:             g.count,
			AverageScore:      mean(g.score, g.count),
			AveragePercentage: mean(g.percentage, g.count),
			TotalPoints:       g.totalPoints,
			EarnedPoints:      g.score,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out
}

// MediaConsumptionByClass folds a student's media views into one summary per class.
func MediaConsumptionByClass(rows []models.MediaConsumptionRow) []models.ClassMediaConsumption {
	type acc struct {
		name         string
		count, total int
	}
	groups := make(map[string]*acc)
	for _, r := range rows {
		g, ok := groups[r.ClassID]
		if !ok {
			g = &acc{name: r.ClassName}
			groups[r.ClassID] = g
		}
		g.count++
		g.total += r.Percentage
	}

	out := make([]models.ClassMediaConsumption, 0, len(groups))
	for id, g := range groups {
		out = append(out, models.ClassMediaConsumption{
			ClassID:                id,
			ClassName:              g.name,
			Count:                  g.count,
			AverageWatchPercentage: mean(float64(g.total), g.count),
			TotalWatchPercentage:   g.total,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ClassID < out[j].ClassID })
	return out
}
