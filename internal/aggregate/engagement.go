package aggregate

import (
	"sort"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

const (
	// RankingSize caps the top performer and struggling lists.
	RankingSize = 5
	// StrugglingAccuracy is the mean accuracy under which a student struggles.
	StrugglingAccuracy = 60
	// StrugglingSessions is the session count under which a student struggles.
	StrugglingSessions = 3
)

// Engagement groups class practice sessions per student, ordered by session
// count (most active first, ties by student id). Struggling students are
// picked from the same ordering independently of the top performers, so a
// student may appear in both lists.
func Engagement(sessions []models.PracticeSession, names map[string]string) models.ClassEngagement {
	type acc struct {
		count, time int
		accuracy    float64
	}
	groups := make(map[string]*acc)
	for _, s := range sessions {
		g, ok := groups[s.StudentID]
		if !ok {
			g = &acc{}
			groups[s.StudentID] = g
		}
		g.count++
		g.time += s.TimeSpent
		g.accuracy += float64(s.Accuracy)
	}

	students := make([]models.StudentEngagement, 0, len(groups))
	for id, g := range groups {
		students = append(students, models.StudentEngagement{
			StudentID:       id,
			StudentName:     names[id],
			Count:           g.count,
			AverageAccuracy: mean(g.accuracy, g.count),
			TotalTime:       g.time,
		})
	}
	sort.Slice(students, func(i, j int) bool {
		if students[i].Count != students[j].Count {
			return students[i].Count > students[j].Count
		}
		return students[i].StudentID < students[j].StudentID
	})

	top := students
	if len(top) > RankingSize {
		top = top[:RankingSize]
	}
	struggling := make([]models.StudentEngagement, 0, RankingSize)
	for _, s := range students {
		if len(struggling) == RankingSize {
			break
		}
		if s.AverageAccuracy < StrugglingAccuracy || s.Count < StrugglingSessions {
			struggling = append(struggling, s)
		}
	}

	return models.ClassEngagement{
		Students:      students,
		TopPerformers: append([]models.StudentEngagement(nil), top...),
		Struggling:    struggling,
	}
}
