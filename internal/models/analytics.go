package models

import "time"

// PracticeTypeStats is the rollup of practice sessions sharing a grouping key
// (type or category).
type PracticeTypeStats struct {
	Key             string  `json:"key"`
	Count           int     `json:"count"`
	AverageAccuracy float64 `json:"average_accuracy"`
	AverageScore    float64 `json:"average_score"`
	TotalTimeSpent  int     `json:"total_time_spent"`
	CompletedCount  int     `json:"completed_count"`
}

// ActivityBucket is practice activity for one day or one ISO week.
type ActivityBucket struct {
	Year            int     `json:"year"`
	Month           int     `json:"month,omitempty"`
	Day             int     `json:"day,omitempty"`
	Week            int     `json:"week,omitempty"`
	Count           int     `json:"count"`
	TotalTime       int     `json:"total_time"`
	AverageAccuracy float64 `json:"average_accuracy"`
}

// AssignmentPerformanceRow is one graded submission joined with its assignment and class.
type AssignmentPerformanceRow struct {
	ClassID     string  `db:"class_id"`
	ClassName   string  `db:"class_name"`
	Score       float64 `db:"score"`
	Percentage  int     `db:"percentage"`
	TotalPoints int     `db:"total_points"`
}

// ClassAssignmentPerformance summarises a student's submissions within one class.
type ClassAssignmentPerformance struct {
	ClassID           string  `json:"class_id"`
	ClassName         string  `json:"class_name"`
	Count             int     `json:"count"`
	AverageScore      float64 `json:"average_score"`
	AveragePercentage float64 `json:"average_percentage"`
	TotalPoints       int     `json:"total_points"`
	EarnedPoints      float64 `json:"earned_points"`
}

// MediaConsumptionRow is one media view joined with its media item and class.
type MediaConsumptionRow struct {
	ClassID    string `db:"class_id"`
	ClassName  string `db:"class_name"`
	Percentage int    `db:"percentage"`
}

// ClassMediaConsumption summarises a student's media views within one class.
type ClassMediaConsumption struct {
	ClassID                string  `json:"class_id"`
	ClassName              string  `json:"class_name"`
	Count                  int     `json:"count"`
	AverageWatchPercentage float64 `json:"average_watch_percentage"`
	TotalWatchPercentage   int     `json:"total_watch_percentage"`
}

// StudentEngagement is one student's practice activity inside a class.
type StudentEngagement struct {
	StudentID       string  `json:"student_id"`
	StudentName     string  `json:"student_name,omitempty"`
	Count           int     `json:"count"`
	AverageAccuracy float64 `json:"average_accuracy"`
	TotalTime       int     `json:"total_time"`
}

// ClassEngagement ranks the students of a class.
type ClassEngagement struct {
	Students      []StudentEngagement `json:"students"`
	TopPerformers []StudentEngagement `json:"top_performers"`
	Struggling    []StudentEngagement `json:"struggling"`
}

// PracticeStats is the response of the practice statistics endpoint.
type PracticeStats struct {
	Period     string              `json:"period"`
	From       time.Time           `json:"from"`
	To         time.Time           `json:"to"`
	Total      int                 `json:"total"`
	ByType     []PracticeTypeStats `json:"by_type"`
	ByCategory []PracticeTypeStats `json:"by_category"`
}

// PracticeProgress is the daily activity trend of a student.
type PracticeProgress struct {
	Period string           `json:"period"`
	From   time.Time        `json:"from"`
	To     time.Time        `json:"to"`
	Daily  []ActivityBucket `json:"daily"`
}

// StudentProgressReport is the full progress view of one student.
type StudentProgressReport struct {
	StudentID             string                       `json:"student_id"`
	StudentName           string                       `json:"student_name"`
	Period                string                       `json:"period"`
	From                  time.Time                    `json:"from"`
	To                    time.Time                    `json:"to"`
	OverallScore          int                          `json:"overall_score"`
	Practice              []PracticeTypeStats          `json:"practice"`
	AssignmentPerformance []ClassAssignmentPerformance `json:"assignment_performance"`
	MediaConsumption      []ClassMediaConsumption      `json:"media_consumption"`
	DailyActivity         []ActivityBucket             `json:"daily_activity"`
	WeeklyActivity        []ActivityBucket             `json:"weekly_activity"`
	GeneratedAt           time.Time                    `json:"generated_at"`
}

// AssignmentSubmissionStats summarises submissions for one assignment.
type AssignmentSubmissionStats struct {
	AssignmentID      string  `db:"assignment_id" json:"assignment_id"`
	Title             string  `db:"title" json:"title"`
	TotalPoints       int     `db:"total_points" json:"total_points"`
	SubmissionCount   int     `db:"submission_count" json:"submission_count"`
	AveragePercentage float64 `db:"average_percentage" json:"average_percentage"`
	SubmissionRate    float64 `db:"-" json:"submission_rate"`
}

// MediaViewStats summarises views for one media item.
type MediaViewStats struct {
	MediaID           string    `db:"media_id" json:"media_id"`
	Title             string    `db:"title" json:"title"`
	Type              MediaType `db:"type" json:"type"`
	ViewCount         int       `db:"view_count" json:"view_count"`
	AveragePercentage float64   `db:"average_percentage" json:"average_percentage"`
}

// ClassReport is the teacher view over a class.
type ClassReport struct {
	ClassID      string                      `json:"class_id"`
	ClassName    string                      `json:"class_name"`
	Period       string                      `json:"period"`
	From         time.Time                   `json:"from"`
	To           time.Time                   `json:"to"`
	StudentCount int                         `json:"student_count"`
	Engagement   ClassEngagement             `json:"engagement"`
	Assignments  []AssignmentSubmissionStats `json:"assignments"`
	Media        []MediaViewStats            `json:"media"`
	Practice     []PracticeTypeStats         `json:"practice"`
	GeneratedAt  time.Time                   `json:"generated_at"`
}

// ChildOverview is the parent-facing summary of one linked student.
type ChildOverview struct {
	StudentID    string   `json:"student_id"`
	FullName     string   `json:"full_name"`
	ClassIDs     []string `json:"class_ids"`
	OverallScore int      `json:"overall_score"`
	Sessions     int      `json:"practice_sessions"`
	Submissions  int      `json:"submissions"`
}

// SystemMetrics exposes a snapshot of instrumentation counters.
type SystemMetrics struct {
	CacheHitRatio            float64   `json:"cache_hit_ratio"`
	CacheHits                uint64    `json:"cache_hits"`
	CacheMisses              uint64    `json:"cache_misses"`
	RequestsTotal            uint64    `json:"requests_total"`
	AverageRequestDurationMs float64   `json:"average_request_duration_ms"`
	DBQueryCount             uint64    `json:"db_query_count"`
	AverageDBQueryDurationMs float64   `json:"average_db_query_duration_ms"`
	GradedSubmissions        uint64    `json:"graded_submissions"`
	PracticeSessions         uint64    `json:"practice_sessions"`
	MediaViews               uint64    `json:"media_views"`
	Goroutines               int       `json:"goroutines"`
	GeneratedAt              time.Time `json:"generated_at"`
}
