package scoring

import (
	"math"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

const (
	practiceWeight   = 40
	assignmentWeight = 40
	mediaWeight      = 20
)

// OverallProgressScore combines practice accuracy, assignment percentage and
// media watch percentage with weights 40/40/20. Only categories with data
// count, and the result is rescaled over the weights present, so a student
// with only practice data can still reach 100. Returns 0 with no data at all.
func OverallProgressScore(practice []models.PracticeTypeStats, assignments []models.ClassAssignmentPerformance, media []models.ClassMediaConsumption) int {
	var earned, weights float64

	if len(practice) > 0 {
		sum := 0.0
		for _, p := range practice {
			sum += p.AverageAccuracy
		}
		earned += sum / float64(len(practice)) / 100 * practiceWeight
		weights += practiceWeight
	}
	if len(assignments) > 0 {
		sum := 0.0
		for _, a := range assignments {
			sum += a.AveragePercentage
		}
		earned += sum / float64(len(assignments)) / 100 * assignmentWeight
		weights += assignmentWeight
	}
	if len(media) > 0 {
		sum := 0.0
		for _, m := range media {
			sum += m.AverageWatchPercentage
		}
		earned += sum / float64(len(media)) / 100 * mediaWeight
		weights += mediaWeight
	}

	return int(math.Round(ratio(earned, weights) * 100))
}
