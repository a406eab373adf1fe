package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/aggregate"
	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/scoring"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type practiceRepository interface {
	Create(ctx context.Context, p *models.PracticeSession) error
	FindByID(ctx context.Context, id string) (*models.PracticeSession, error)
	Update(ctx context.Context, p *models.PracticeSession) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	List(ctx context.Context, filter models.PracticeFilter) ([]models.PracticeSession, int, error)
	ListInRange(ctx context.Context, studentID string, from, to time.Time) ([]models.PracticeSession, error)
}

type practiceUsers interface {
	studentLookup
	ClassIDs(ctx context.Context, studentID string) ([]string, error)
}

type practiceClasses interface {
	classLookup
	teacherRoster
}

// PracticeService records and evaluates writing, typing and drawing practice.
type PracticeService struct {
	repo      practiceRepository
	users     practiceUsers
	classes   practiceClasses
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cacheTTL  time.Duration
	now       func() time.Time
}

// NewPracticeService constructs PracticeService.
func NewPracticeService(repo practiceRepository, users practiceUsers, classes practiceClasses, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cacheTTL time.Duration) *PracticeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PracticeService{
		repo:      repo,
		users:     users,
		classes:   classes,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cacheTTL:  cacheTTL,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create evaluates and stores a new practice session for the calling student.
func (s *PracticeService) Create(ctx context.Context, actor Actor, req models.CreatePracticeRequest) (*models.PracticeSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid practice payload")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students record practice")
	}
	if req.ClassID != nil && *req.ClassID != "" {
		if _, err := authorizeClassMember(ctx, s.classes, *req.ClassID, actor); err != nil {
			return nil, err
		}
	}

	session := models.NewPracticeSession(actor.ID, req, s.now())
	if err := evaluatePractice(session, req.Accuracy, req.Keystrokes); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, session); err != nil {
		return nil, internalError(err, "failed to save practice session")
	}

	s.metrics.RecordPracticeSession(session.Type)
	s.invalidate(ctx, actor.ID)
	s.logger.Debug("practice session recorded",
		zap.String("session_id", session.ID),
		zap.String("type", string(session.Type)),
		zap.Int("accuracy", session.Accuracy),
	)
	return session, nil
}

// Retry re-evaluates a session with new content and counts another attempt.
func (s *PracticeService) Retry(ctx context.Context, actor Actor, id string, req models.RetryPracticeRequest) (*models.PracticeSession, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid practice payload")
	}
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleStudent || session.StudentID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the student who practised may retry")
	}

	now := s.now()
	session.Content = req.Content
	session.Strokes = req.Strokes
	session.TimeSpent = req.TimeSpent
	session.Attempts++
	session.Date = now
	session.UpdatedAt = now
	if err := evaluatePractice(session, req.Accuracy, req.Keystrokes); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, session); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "practice session not found")
		}
		return nil, internalError(err, "failed to update practice session")
	}

	s.metrics.RecordPracticeSession(session.Type)
	s.invalidate(ctx, actor.ID)
	return session, nil
}

// evaluatePractice derives accuracy, score and completion from the session content.
func evaluatePractice(session *models.PracticeSession, reportedAccuracy *int, keystrokes []models.Keystroke) error {
	var accuracy, score int
	switch session.Type {
	case models.PracticeWriting:
		if session.TargetContent == nil || strings.TrimSpace(*session.TargetContent) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "target_content is required for writing practice")
		}
		res := scoring.EvaluateWriting(session.Content, *session.TargetContent)
		accuracy, score = res.Accuracy, res.Score
	case models.PracticeTyping:
		res := scoring.EvaluateTyping(session.TimeSpent, keystrokes)
		session.Metadata = res.Metadata()
		switch {
		case len(keystrokes) > 0:
			accuracy = res.Accuracy
		case session.TargetContent != nil:
			accuracy = scoring.EvaluateWriting(session.Content, *session.TargetContent).Accuracy
		}
		score = scoring.ScoreFromAccuracy(accuracy)
	case models.PracticeDrawing:
		accuracy, score = scoring.EvaluateDrawing(session.Content, session.TargetContent, reportedAccuracy)
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown practice type")
	}
	session.Apply(accuracy, score, scoring.IsCompleted(accuracy, session.Attempts))
	return nil
}

// List returns a page of practice sessions. Without a student id the caller's own sessions are listed.
func (s *PracticeService) List(ctx context.Context, actor Actor, filter models.PracticeFilter) ([]models.PracticeSession, *models.Pagination, error) {
	if filter.StudentID == "" {
		filter.StudentID = actor.ID
	}
	if filter.Type != "" && filter.Type != models.PracticeWriting && filter.Type != models.PracticeTyping && filter.Type != models.PracticeDrawing {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown practice type")
	}
	if _, err := authorizeStudentView(ctx, s.users, s.classes, filter.StudentID, actor); err != nil {
		return nil, nil, err
	}
	filter.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list practice sessions")
	}
	return items, filter.Pagination(total), nil
}

// Get returns one session to anyone allowed to view its student.
func (s *PracticeService) Get(ctx context.Context, actor Actor, id string) (*models.PracticeSession, error) {
	session, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeStudentView(ctx, s.users, s.classes, session.StudentID, actor); err != nil {
		return nil, err
	}
	return session, nil
}

// Delete soft-deletes one of the caller's sessions.
func (s *PracticeService) Delete(ctx context.Context, actor Actor, id string) error {
	session, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if actor.Role != models.RoleStudent || session.StudentID != actor.ID {
		return appErrors.Clone(appErrors.ErrForbidden, "only the student who practised may delete")
	}
	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return internalError(err, "failed to delete practice session")
	}
	s.invalidate(ctx, actor.ID)
	return nil
}

// Stats groups a student's sessions in the period by type and by category.
// The period defaults to week and a month starts on the first of the month.
func (s *PracticeService) Stats(ctx context.Context, actor Actor, studentID, period string) (*models.PracticeStats, error) {
	if studentID == "" {
		studentID = actor.ID
	}
	if _, err := authorizeStudentView(ctx, s.users, s.classes, studentID, actor); err != nil {
		return nil, err
	}
	window := aggregate.PracticeWindow(aggregate.ParsePeriod(period, aggregate.PeriodWeek), s.now())
	stats, _, err := cacheAside(ctx, s.cache, practiceStatsKey(studentID, window), s.cacheTTL, func(ctx context.Context) (*models.PracticeStats, error) {
		sessions, err := s.sessionsIn(ctx, studentID, window)
		if err != nil {
			return nil, err
		}
		return &models.PracticeStats{
			Period:     string(window.Period),
			From:       window.From,
			To:         window.To,
			Total:      len(sessions),
			ByType:     aggregate.ByType(sessions),
			ByCategory: aggregate.ByCategory(sessions),
		}, nil
	})
	return stats, err
}

// Progress returns a student's practice activity per day over the period.
func (s *PracticeService) Progress(ctx context.Context, actor Actor, studentID, period string) (*models.PracticeProgress, error) {
	if studentID == "" {
		studentID = actor.ID
	}
	if _, err := authorizeStudentView(ctx, s.users, s.classes, studentID, actor); err != nil {
		return nil, err
	}
	window := aggregate.PracticeWindow(aggregate.ParsePeriod(period, aggregate.PeriodWeek), s.now())
	progress, _, err := cacheAside(ctx, s.cache, practiceProgressKey(studentID, window), s.cacheTTL, func(ctx context.Context) (*models.PracticeProgress, error) {
		sessions, err := s.sessionsIn(ctx, studentID, window)
		if err != nil {
			return nil, err
		}
		return &models.PracticeProgress{
			Period: string(window.Period),
			From:   window.From,
			To:     window.To,
			Daily:  aggregate.DailyActivity(sessions),
		}, nil
	})
	return progress, err
}

func (s *PracticeService) sessionsIn(ctx context.Context, studentID string, window aggregate.Window) ([]models.PracticeSession, error) {
	sessions, err := s.repo.ListInRange(ctx, studentID, window.From, window.To)
	if err != nil {
		return nil, internalError(err, "failed to load practice sessions")
	}
	return sessions, nil
}

// invalidate drops the student's cached analytics and the reports of every class they attend.
func (s *PracticeService) invalidate(ctx context.Context, studentID string) {
	if !s.cache.Enabled() {
		return
	}
	classIDs, err := s.users.ClassIDs(ctx, studentID)
	if err != nil {
		s.logger.Warn("failed to resolve classes for cache invalidation", zap.String("student_id", studentID), zap.Error(err))
	}
	s.cache.InvalidateStudent(ctx, studentID, classIDs...)
}

func (s *PracticeService) load(ctx context.Context, id string) (*models.PracticeSession, error) {
	session, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "practice session not found")
		}
		return nil, internalError(err, "failed to load practice session")
	}
	return session, nil
}
