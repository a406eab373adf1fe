package aggregate

import (
	"sort"
	"time"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

type practiceAcc struct {
	count, completed, time int
	accuracy, score        float64
}

func (a *practiceAcc) add(s models.PracticeSession) {
	a.count++
	a.accuracy += float64(s.Accuracy)
	a.score += float64(s.Score)
	a.time += s.TimeSpent
	if s.IsCompleted {
		a.completed++
	}
}

func (a *practiceAcc) stats(key string) models.PracticeTypeStats {
	return models.PracticeTypeStats{
		Key:             key,
		Count:           a.count,
		AverageAccuracy: mean(a.accuracy, a.count),
		AverageScore:    mean(a.score, a.count),
		TotalTimeSpent:  a.time,
		CompletedCount:  a.completed,
	}
}

// ByType groups sessions by practice type.
func ByType(sessions []models.PracticeSession) []models.PracticeTypeStats {
	return groupPractice(sessions, func(s models.PracticeSession) string { return string(s.Type) })
}

// ByCategory groups sessions by category.
func ByCategory(sessions []models.PracticeSession) []models.PracticeTypeStats {
	return groupPractice(sessions, func(s models.PracticeSession) string { return s.Category })
}

func groupPractice(sessions []models.PracticeSession, key func(models.PracticeSession) string) []models.PracticeTypeStats {
	groups := make(map[string]*practiceAcc)
	for _, s := range sessions {
		k := key(s)
		acc, ok := groups[k]
		if !ok {
			acc = &practiceAcc{}
			groups[k] = acc
		}
		acc.add(s)
	}
	out := make([]models.PracticeTypeStats, 0, len(groups))
	for k, acc := range groups {
		out = append(out, acc.stats(k))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

type activityKey struct {
	year, month, day, week int
}

type activityAcc struct {
	count, time int
	accuracy    float64
}

// DailyActivity buckets sessions by calendar day, oldest first.
func DailyActivity(sessions []models.PracticeSession) []models.ActivityBucket {
	return bucket(sessions, func(t time.Time) activityKey {
		return activityKey{year: t.Year(), month: int(t.Month()), day: t.Day()}
	})
}

// WeeklyActivity buckets sessions by ISO week, oldest first.
func WeeklyActivity(sessions []models.PracticeSession) []models.ActivityBucket {
	return bucket(sessions, func(t time.Time) activityKey {
		year, week := t.ISOWeek()
		return activityKey{year: year, week: week}
	})
}

func bucket(sessions []models.PracticeSession, keyOf func(time.Time) activityKey) []models.ActivityBucket {
	groups := make(map[activityKey]*activityAcc)
	for _, s := range sessions {
		k := keyOf(s.Date)
		acc, ok := groups[k]
		if !ok {
			acc = &activityAcc{}
			groups[k] = acc
		}
		acc.count++
		acc.time += s.TimeSpent
		acc.accuracy += float64(s.Accuracy)
	}

	keys := make([]activityKey, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.year != b.year {
			return a.year < b.year
		}
		if a.week != b.week {
			return a.week < b.week
		}
		if a.month != b.month {
			return a.month < b.month
		}
		return a.day < b.day
	})

	out := make([]models.ActivityBucket, 0, len(keys))
	for _, k := range keys {
		acc := groups[k]
		out = append(out, models.ActivityBucket{
			Year:            k.year,
			Month:           k.month,
			Day:             k.day,
			Week:            k.week,
			Count:           acc.count,
			TotalTime:       acc.time,
			AverageAccuracy: mean(acc.accuracy, acc.count),
		})
	}
	return out
}

// InWindow keeps the sessions dated inside w.
func InWindow(sessions []models.PracticeSession, w Window) []models.PracticeSession {
	out := make([]models.PracticeSession, 0, len(sessions))
	for _, s := range sessions {
		if w.Contains(s.Date) {
			out = append(out, s)
		}
	}
	return out
}

func mean(sum float64, n int) float64 {
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}
