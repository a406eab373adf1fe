// Package scoring turns stored submissions and practice data into grades and
// progress metrics. Every function here is pure: callers fetch the inputs and
// persist the results.
package scoring

import (
	"math"

	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

const (
	// MaxScore is the score ceiling of a practice session.
	MaxScore = 100
	// CompletionAccuracy marks a practice session completed once reached.
	CompletionAccuracy = 80
	// CompletionAttempts marks a practice session completed after this many attempts.
	CompletionAttempts = 3
)

var (
	ErrSubmissionNotFound = appErrors.Clone(appErrors.ErrNotFound, "submission not found")
	ErrQuestionNotFound   = appErrors.Clone(appErrors.ErrNotFound, "question not found")
	ErrDuplicateAnswer    = appErrors.Clone(appErrors.ErrValidation, "question answered more than once")
)

// Percentage returns round(score/total*100), or 0 when total is not positive.
func Percentage(score, total float64) int {
	if total <= 0 {
		return 0
	}
	return int(math.Round(score / total * 100))
}

// ScoreFromAccuracy scales an accuracy percentage onto MaxScore.
func ScoreFromAccuracy(accuracy int) int {
	return int(math.Round(float64(clampPercent(accuracy)) / 100 * MaxScore))
}

// IsCompleted reports whether a practice session counts as completed.
func IsCompleted(accuracy, attempts int) bool {
	return accuracy >= CompletionAccuracy || attempts >= CompletionAttempts
}

func clampPercent(v int) int {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

func ratio(num, den float64) float64 {
	if den == 0 {
		return 0
	}
	return num / den
}
