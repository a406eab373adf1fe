package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/edu-platform-api/internal/aggregate"
	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/scoring"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type analyticsUsers interface {
	studentLookup
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
	ListChildren(ctx context.Context, parentEmail string) ([]models.User, error)
	ClassIDs(ctx context.Context, studentID string) ([]string, error)
}

type analyticsClasses interface {
	classLookup
	teacherRoster
	CountStudents(ctx context.Context, classID string) (int, error)
}

type analyticsPractice interface {
	ListInRange(ctx context.Context, studentID string, from, to time.Time) ([]models.PracticeSession, error)
	ListByClassInRange(ctx context.Context, classID string, from, to time.Time) ([]models.PracticeSession, error)
	CountByStudent(ctx context.Context, studentID string) (int, error)
}

type analyticsAssignments interface {
	PerformanceRows(ctx context.Context, studentID string, from, to time.Time) ([]models.AssignmentPerformanceRow, error)
	SubmissionStatsByClass(ctx context.Context, classID string) ([]models.AssignmentSubmissionStats, error)
	CountSubmissions(ctx context.Context, studentID string) (int, error)
}

type analyticsMedia interface {
	ConsumptionRows(ctx context.Context, studentID string, from, to time.Time) ([]models.MediaConsumptionRow, error)
	ViewStatsByClass(ctx context.Context, classID string) ([]models.MediaViewStats, error)
}

// AnalyticsDeps groups the read-side collaborators of AnalyticsService.
type AnalyticsDeps struct {
	Users       analyticsUsers
	Classes     analyticsClasses
	Practice    analyticsPractice
	Assignments analyticsAssignments
	Media       analyticsMedia
}

// AnalyticsService builds progress, class and parent reports with cache integration.
type AnalyticsService struct {
	deps     AnalyticsDeps
	cache    *CacheService
	metrics  *MetricsService
	logger   *zap.Logger
	cacheTTL time.Duration
	now      func() time.Time
}

// NewAnalyticsService constructs an analytics service.
func NewAnalyticsService(deps AnalyticsDeps, cache *CacheService, metrics *MetricsService, logger *zap.Logger, cacheTTL time.Duration) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnalyticsService{
		deps:     deps,
		cache:    cache,
		metrics:  metrics,
		logger:   logger,
		cacheTTL: cacheTTL,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// StudentProgress returns the progress report of a student. The boolean
// indicates whether the report came from cache.
func (s *AnalyticsService) StudentProgress(ctx context.Context, actor Actor, studentID, period string) (*models.StudentProgressReport, bool, error) {
	student, err := authorizeStudentView(ctx, s.deps.Users, s.deps.Classes, studentID, actor)
	if err != nil {
		return nil, false, err
	}
	return s.studentProgress(ctx, student, period)
}

// BuildStudentProgress produces a progress report without an access check,
// for callers that authorised the request earlier (export jobs).
func (s *AnalyticsService) BuildStudentProgress(ctx context.Context, studentID, period string) (*models.StudentProgressReport, error) {
	student, err := s.deps.Users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, internalError(err, "failed to load student")
	}
	report, _, err := s.studentProgress(ctx, student, period)
	return report, err
}

func (s *AnalyticsService) studentProgress(ctx context.Context, student *models.User, period string) (*models.StudentProgressReport, bool, error) {
	window := aggregate.ReportWindow(aggregate.ParsePeriod(period, aggregate.PeriodMonth), s.now())
	return cacheAside(ctx, s.cache, studentReportKey(student.ID, window), s.cacheTTL, func(ctx context.Context) (*models.StudentProgressReport, error) {
		return s.buildProgress(ctx, student, window)
	})
}

// buildProgress fetches practice, assignment and media data concurrently and folds them into a report.
func (s *AnalyticsService) buildProgress(ctx context.Context, student *models.User, window aggregate.Window) (*models.StudentProgressReport, error) {
	var (
		sessions []models.PracticeSession
		perf     []models.AssignmentPerformanceRow
		views    []models.MediaConsumptionRow
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.deps.Practice.ListInRange(gctx, student.ID, window.From, window.To)
		return err
	})
	g.Go(func() error {
		var err error
		perf, err = s.deps.Assignments.PerformanceRows(gctx, student.ID, window.From, window.To)
		return err
	})
	g.Go(func() error {
		var err error
		views, err = s.deps.Media.ConsumptionRows(gctx, student.ID, window.From, window.To)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load progress data")
	}
	s.metrics.ObserveDBQuery("report_student_progress", time.Since(start))

	practice := aggregate.ByType(sessions)
	assignments := aggregate.AssignmentPerformanceByClass(perf)
	media := aggregate.MediaConsumptionByClass(views)
	return &models.StudentProgressReport{
		StudentID:             student.ID,
		StudentName:           student.FullName,
		Period:                string(window.Period),
		From:                  window.From,
		To:                    window.To,
		OverallScore:          scoring.OverallProgressScore(practice, assignments, media),
		Practice:              practice,
		AssignmentPerformance: assignments,
		MediaConsumption:      media,
		DailyActivity:         aggregate.DailyActivity(sessions),
		WeeklyActivity:        aggregate.WeeklyActivity(sessions),
		GeneratedAt:           s.now(),
	}, nil
}

// ClassReport returns the teacher's view of a class over the period.
func (s *AnalyticsService) ClassReport(ctx context.Context, actor Actor, classID, period string) (*models.ClassReport, bool, error) {
	class, err := authorizeClassOwner(ctx, s.deps.Classes, classID, actor)
	if err != nil {
		return nil, false, err
	}
	return s.classReport(ctx, class, period)
}

// BuildClassReport produces a class report without an access check.
func (s *AnalyticsService) BuildClassReport(ctx context.Context, classID, period string) (*models.ClassReport, error) {
	class, err := loadClass(ctx, s.deps.Classes, classID)
	if err != nil {
		return nil, err
	}
	report, _, err := s.classReport(ctx, class, period)
	return report, err
}

func (s *AnalyticsService) classReport(ctx context.Context, class *models.Class, period string) (*models.ClassReport, bool, error) {
	window := aggregate.ReportWindow(aggregate.ParsePeriod(period, aggregate.PeriodMonth), s.now())
	return cacheAside(ctx, s.cache, classReportKey(class.ID, window), s.cacheTTL, func(ctx context.Context) (*models.ClassReport, error) {
		return s.buildClassReport(ctx, class, window)
	})
}

// buildClassReport loads practice, assignment, media and roster data concurrently.
func (s *AnalyticsService) buildClassReport(ctx context.Context, class *models.Class, window aggregate.Window) (*models.ClassReport, error) {
	var (
		sessions    []models.PracticeSession
		assignments []models.AssignmentSubmissionStats
		media       []models.MediaViewStats
		students    int
	)
	start := time.Now()
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sessions, err = s.deps.Practice.ListByClassInRange(gctx, class.ID, window.From, window.To)
		return err
	})
	g.Go(func() error {
		var err error
		assignments, err = s.deps.Assignments.SubmissionStatsByClass(gctx, class.ID)
		return err
	})
	g.Go(func() error {
		var err error
		media, err = s.deps.Media.ViewStatsByClass(gctx, class.ID)
		return err
	})
	g.Go(func() error {
		var err error
		students, err = s.deps.Classes.CountStudents(gctx, class.ID)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, internalError(err, "failed to load class report data")
	}

	names, err := s.deps.Users.NamesByIDs(ctx, studentIDs(sessions))
	if err != nil {
		return nil, internalError(err, "failed to load student names")
	}
	s.metrics.ObserveDBQuery("report_class", time.Since(start))

	for i := range assignments {
		if students > 0 {
			assignments[i].SubmissionRate = float64(assignments[i].SubmissionCount) / float64(students) * 100
		}
	}

	return &models.ClassReport{
		ClassID:      class.ID,
		ClassName:    class.Name,
		Period:       string(window.Period),
		From:         window.From,
		To:           window.To,
		StudentCount: students,
		Engagement:   aggregate.Engagement(sessions, names),
		Assignments:  assignments,
		Media:        media,
		Practice:     aggregate.ByType(sessions),
		GeneratedAt:  s.now(),
	}, nil
}

// ParentOverview summarises every student linked to the parent's e-mail.
func (s *AnalyticsService) ParentOverview(ctx context.Context, actor Actor) ([]models.ChildOverview, error) {
	if actor.Role != models.RoleParent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only parents have linked children")
	}
	children, err := s.deps.Users.ListChildren(ctx, actor.Email)
	if err != nil {
		return nil, internalError(err, "failed to load children")
	}

	window := aggregate.ReportWindow(aggregate.PeriodMonth, s.now())
	out := make([]models.ChildOverview, 0, len(children))
	for i := range children {
		child := &children[i]
		overview := models.ChildOverview{StudentID: child.ID, FullName: child.FullName}

		g, gctx := errgroup.WithContext(ctx)
		g.Go(func() error {
			ids, err := s.deps.Users.ClassIDs(gctx, child.ID)
			overview.ClassIDs = ids
			return err
		})
		g.Go(func() error {
			n, err := s.deps.Practice.CountByStudent(gctx, child.ID)
			overview.Sessions = n
			return err
		})
		g.Go(func() error {
			n, err := s.deps.Assignments.CountSubmissions(gctx, child.ID)
			overview.Submissions = n
			return err
		})
		var progress *models.StudentProgressReport
		g.Go(func() error {
			var err error
			progress, err = s.buildProgress(gctx, child, window)
			return err
		})
		if err := g.Wait(); err != nil {
			return nil, internalError(err, "failed to load child overview")
		}
		overview.OverallScore = progress.OverallScore
		if overview.ClassIDs == nil {
			overview.ClassIDs = []string{}
		}
		out = append(out, overview)
	}
	return out, nil
}

// SystemMetrics returns the instrumentation snapshot.
func (s *AnalyticsService) SystemMetrics() models.SystemMetrics {
	return s.metrics.Snapshot()
}

func studentIDs(sessions []models.PracticeSession) []string {
	seen := make(map[string]struct{}, len(sessions))
	ids := make([]string, 0, len(sessions))
	for _, session := range sessions {
		if _, ok := seen[session.StudentID]; ok {
			continue
		}
		seen[session.StudentID] = struct{}{}
		ids = append(ids, session.StudentID)
	}
	return ids
}
