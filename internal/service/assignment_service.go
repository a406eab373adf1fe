package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/scoring"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type assignmentRepository interface {
	Create(ctx context.Context, a *models.Assignment) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error)
	Update(ctx context.Context, a *models.Assignment) error
	SoftDelete(ctx context.Context, id string, at time.Time) error
	UpsertSubmission(ctx context.Context, sub *models.Submission) error
	UpdateGrade(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error)
}

// AssignmentService manages assignments and grades their submissions.
type AssignmentService struct {
	repo      assignmentRepository
	classes   classLookup
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewAssignmentService constructs AssignmentService.
func NewAssignmentService(repo assignmentRepository, classes classLookup, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:      repo,
		classes:   classes,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create publishes a new assignment to a class the teacher owns.
func (s *AssignmentService) Create(ctx context.Context, actor Actor, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	if _, err := authorizeClassOwner(ctx, s.classes, req.ClassID, actor); err != nil {
		return nil, err
	}

	a := models.NewAssignment(req.ClassID, actor.ID, strings.TrimSpace(req.Title), req.Description, req.DueDate, req.Questions, s.now())
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, internalError(err, "failed to create assignment")
	}
	s.logger.Info("assignment created", zap.String("assignment_id", a.ID), zap.String("class_id", a.ClassID), zap.Int("total_points", a.TotalPoints))
	return a, nil
}

// List returns a page of a class's assignments. Students never see correct answers.
func (s *AssignmentService) List(ctx context.Context, actor Actor, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	if _, err := authorizeClassMember(ctx, s.classes, filter.ClassID, actor); err != nil {
		return nil, nil, err
	}
	filter.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list assignments")
	}
	if actor.Role == models.RoleStudent {
		for i := range items {
			items[i].Questions = items[i].Questions.WithoutAnswers()
		}
	}
	return items, filter.Pagination(total), nil
}

// Get returns one assignment. The class teacher also receives all submissions.
func (s *AssignmentService) Get(ctx context.Context, actor Actor, id string) (*models.Assignment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	class, err := authorizeClassMember(ctx, s.classes, a.ClassID, actor)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleStudent {
		a.Questions = a.Questions.WithoutAnswers()
		return a, nil
	}
	if class.TeacherID == actor.ID {
		subs, err := s.repo.ListSubmissions(ctx, a.ID)
		if err != nil {
			return nil, internalError(err, "failed to load submissions")
		}
		a.Submissions = subs
	}
	return a, nil
}

// Update edits an assignment. Replacing the questions recomputes total points.
func (s *AssignmentService) Update(ctx context.Context, actor Actor, id string, req models.UpdateAssignmentRequest) (*models.Assignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid assignment payload")
	}
	a, err := s.loadForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if req.Title != nil {
		a.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		a.Description = req.Description
	}
	if req.DueDate != nil {
		a.DueDate = req.DueDate
	}
	if req.Questions != nil {
		a.SetQuestions(req.Questions, now)
	}
	if req.Active != nil {
		a.Active = *req.Active
	}
	a.UpdatedAt = now

	if err := s.repo.Update(ctx, a); err != nil {
		return nil, internalError(err, "failed to update assignment")
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("reports:class:%s:*", a.ClassID))
	return a, nil
}

// Delete deactivates an assignment.
func (s *AssignmentService) Delete(ctx context.Context, actor Actor, id string) error {
	a, err := s.loadForOwner(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, a.ID, s.now()); err != nil {
		return internalError(err, "failed to delete assignment")
	}
	s.cache.Invalidate(ctx, fmt.Sprintf("reports:class:%s:*", a.ClassID))
	return nil
}

// Submit auto-grades a student's answers. A new submission replaces the
// student's previous one and clears any manual grade.
func (s *AssignmentService) Submit(ctx context.Context, actor Actor, id string, req models.SubmitAssignmentRequest) (*scoring.GradeResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit assignments")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeClassMember(ctx, s.classes, a.ClassID, actor); err != nil {
		return nil, err
	}
	if err := s.attachSubmission(ctx, a, actor.ID); err != nil {
		return nil, err
	}

	now := s.now()
	result, err := scoring.GradeSubmission(a, actor.ID, req.Answers, now)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpsertSubmission(ctx, &result.Submission); err != nil {
		return nil, internalError(err, "failed to save submission")
	}

	s.metrics.RecordSubmissionGraded()
	s.cache.InvalidateStudent(ctx, actor.ID, a.ClassID)
	if a.IsPastDue(now) {
		s.logger.Info("late submission", zap.String("assignment_id", a.ID), zap.String("student_id", actor.ID))
	}
	return result, nil
}

// Grade stores the teacher's manual score and feedback on a submission.
func (s *AssignmentService) Grade(ctx context.Context, actor Actor, id string, req models.GradeSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	a, err := s.loadForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if a.TotalPoints > 0 && *req.Score > float64(a.TotalPoints) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("score cannot exceed %d points", a.TotalPoints))
	}
	if err := s.attachSubmission(ctx, a, req.StudentID); err != nil {
		return nil, err
	}

	sub, err := scoring.ManualGrade(a, req.StudentID, *req.Score, req.Feedback, actor.ID, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateGrade(ctx, sub); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scoring.ErrSubmissionNotFound
		}
		return nil, internalError(err, "failed to save grade")
	}

	s.metrics.RecordSubmissionGraded()
	s.cache.InvalidateStudent(ctx, req.StudentID, a.ClassID)
	s.logger.Info("submission graded", zap.String("assignment_id", a.ID), zap.String("student_id", req.StudentID), zap.Int("percentage", sub.Percentage))
	return sub, nil
}

// ListSubmissions returns every submission of an assignment to its teacher.
func (s *AssignmentService) ListSubmissions(ctx context.Context, actor Actor, id string) ([]models.Submission, error) {
	a, err := s.loadForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	subs, err := s.repo.ListSubmissions(ctx, a.ID)
	if err != nil {
		return nil, internalError(err, "failed to list submissions")
	}
	return subs, nil
}

// MySubmission returns the calling student's submission.
func (s *AssignmentService) MySubmission(ctx context.Context, actor Actor, id string) (*models.Submission, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students have submissions")
	}
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeClassMember(ctx, s.classes, a.ClassID, actor); err != nil {
		return nil, err
	}
	sub, err := s.repo.GetSubmission(ctx, a.ID, actor.ID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, scoring.ErrSubmissionNotFound
		}
		return nil, internalError(err, "failed to load submission")
	}
	return sub, nil
}

// attachSubmission loads the student's stored submission into a.Submissions.
func (s *AssignmentService) attachSubmission(ctx context.Context, a *models.Assignment, studentID string) error {
	sub, err := s.repo.GetSubmission(ctx, a.ID, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return internalError(err, "failed to load submission")
	}
	a.Submissions = append(a.Submissions, *sub)
	return nil
}

func (s *AssignmentService) load(ctx context.Context, id string) (*models.Assignment, error) {
	a, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, internalError(err, "failed to load assignment")
	}
	return a, nil
}

func (s *AssignmentService) loadForOwner(ctx context.Context, actor Actor, id string) (*models.Assignment, error) {
	a, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeClassOwner(ctx, s.classes, a.ClassID, actor); err != nil {
		return nil, err
	}
	return a, nil
}
