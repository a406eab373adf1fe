package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/repository"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

const classCodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

type classRepository interface {
	classLookup
	Create(ctx context.Context, class *models.Class) error
	FindByCode(ctx context.Context, code string) (*models.Class, error)
	ExistsByCode(ctx context.Context, code string) (bool, error)
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string, at time.Time) error
	AddStudent(ctx context.Context, classID, studentID string, maxStudents int, at time.Time) (bool, error)
	RemoveStudent(ctx context.Context, classID, studentID string) (bool, error)
	ListStudents(ctx context.Context, classID string) ([]models.StudentSummary, error)
}

// ClassConfig tunes class creation.
type ClassConfig struct {
	DefaultMaxStudents int
	CodeAttempts       int
}

// ClassService coordinates class lifecycle and enrolment.
type ClassService struct {
	repo      classRepository
	validator *validator.Validate
	logger    *zap.Logger
	cfg       ClassConfig
	newCode   func() (string, error)
}

// NewClassService constructs ClassService.
func NewClassService(repo classRepository, validate *validator.Validate, logger *zap.Logger, cfg ClassConfig) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DefaultMaxStudents <= 0 {
		cfg.DefaultMaxStudents = 50
	}
	if cfg.CodeAttempts <= 0 {
		cfg.CodeAttempts = 10
	}
	return &ClassService{repo: repo, validator: validate, logger: logger, cfg: cfg, newCode: randomClassCode}
}

// Create adds a class owned by the teacher with a freshly generated join code.
func (s *ClassService) Create(ctx context.Context, actor Actor, req models.CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	if actor.Role != models.RoleTeacher {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only teachers can create classes")
	}

	maxStudents := req.MaxStudents
	if maxStudents <= 0 {
		maxStudents = s.cfg.DefaultMaxStudents
	}
	now := time.Now().UTC()
	class := &models.Class{
		ID:          uuid.NewString(),
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Subject:     req.Subject,
		TeacherID:   actor.ID,
		MaxStudents: maxStudents,
		Active:      true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	for attempt := 0; attempt < s.cfg.CodeAttempts; attempt++ {
		code, err := s.generateClassCode(ctx)
		if err != nil {
			return nil, err
		}
		if code == "" {
			continue
		}
		class.ClassCode = code
		err = s.repo.Create(ctx, class)
		if err == nil {
			s.logger.Info("class created", zap.String("class_id", class.ID), zap.String("teacher_id", actor.ID))
			return class, nil
		}
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, internalError(err, "failed to create class")
		}
		s.logger.Debug("class code taken at insert, retrying", zap.String("code", code))
	}
	return nil, appErrors.Clone(appErrors.ErrConflict, "could not allocate a unique class code")
}

// generateClassCode draws one random code and returns "" when it is already taken.
func (s *ClassService) generateClassCode(ctx context.Context) (string, error) {
	code, err := s.newCode()
	if err != nil {
		return "", internalError(err, "failed to generate class code")
	}
	exists, err := s.repo.ExistsByCode(ctx, code)
	if err != nil {
		return "", internalError(err, "failed to check class code")
	}
	if exists {
		return "", nil
	}
	return code, nil
}

// List returns the classes a teacher owns or a student attends.
func (s *ClassService) List(ctx context.Context, actor Actor, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	switch actor.Role {
	case models.RoleTeacher:
		filter.TeacherID, filter.StudentID = actor.ID, ""
	case models.RoleStudent:
		filter.TeacherID, filter.StudentID = "", actor.ID
	default:
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "role cannot list classes")
	}
	filter.Normalize()
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list classes")
	}
	return classes, filter.Pagination(total), nil
}

// Get returns a class visible to its teacher and enrolled students.
func (s *ClassService) Get(ctx context.Context, actor Actor, id string) (*models.Class, error) {
	return authorizeClassMember(ctx, s.repo, id, actor)
}

// Update edits class fields. Capacity cannot drop below the current roster.
func (s *ClassService) Update(ctx context.Context, actor Actor, id string, req models.UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	class, err := authorizeClassOwner(ctx, s.repo, id, actor)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		class.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		class.Description = req.Description
	}
	if req.Subject != nil {
		class.Subject = req.Subject
	}
	if req.MaxStudents != nil {
		if *req.MaxStudents < class.StudentCount {
			return nil, appErrors.Clone(appErrors.ErrValidation, "max_students is below the current number of students")
		}
		class.MaxStudents = *req.MaxStudents
	}
	if req.Active != nil {
		class.Active = *req.Active
	}
	class.UpdatedAt = time.Now().UTC()

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, internalError(err, "failed to update class")
	}
	return class, nil
}

// Delete deactivates a class.
func (s *ClassService) Delete(ctx context.Context, actor Actor, id string) error {
	if _, err := authorizeClassOwner(ctx, s.repo, id, actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id, time.Now().UTC()); err != nil {
		return internalError(err, "failed to delete class")
	}
	s.logger.Info("class deleted", zap.String("class_id", id))
	return nil
}

// Join enrols the student in the class holding the code. Joining a class the
// student already belongs to succeeds without changes.
func (s *ClassService) Join(ctx context.Context, actor Actor, req models.JoinClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class code")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can join classes")
	}

	class, err := s.repo.FindByCode(ctx, strings.ToUpper(req.ClassCode))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no class with this code")
		}
		return nil, internalError(err, "failed to look up class code")
	}

	member, err := s.repo.IsMember(ctx, class.ID, actor.ID)
	if err != nil {
		return nil, internalError(err, "failed to check class membership")
	}
	if member {
		return class, nil
	}
	if !class.HasCapacity() {
		return nil, appErrors.Clone(appErrors.ErrClassFull, "class is full")
	}

	added, err := s.repo.AddStudent(ctx, class.ID, actor.ID, class.MaxStudents, time.Now().UTC())
	if err != nil {
		return nil, internalError(err, "failed to join class")
	}
	if !added {
		// lost a race: either a concurrent join of the same student or the last seat
		member, err = s.repo.IsMember(ctx, class.ID, actor.ID)
		if err != nil {
			return nil, internalError(err, "failed to check class membership")
		}
		if !member {
			return nil, appErrors.Clone(appErrors.ErrClassFull, "class is full")
		}
		return class, nil
	}
	class.StudentCount++
	s.logger.Info("student joined class", zap.String("class_id", class.ID), zap.String("student_id", actor.ID))
	return class, nil
}

// Leave removes the calling student from a class.
func (s *ClassService) Leave(ctx context.Context, actor Actor, classID string) error {
	if actor.Role != models.RoleStudent {
		return appErrors.Clone(appErrors.ErrForbidden, "only students can leave classes")
	}
	removed, err := s.repo.RemoveStudent(ctx, classID, actor.ID)
	if err != nil {
		return internalError(err, "failed to leave class")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "not enrolled in this class")
	}
	return nil
}

// RemoveStudent lets the class teacher drop a student.
func (s *ClassService) RemoveStudent(ctx context.Context, actor Actor, classID, studentID string) error {
	if _, err := authorizeClassOwner(ctx, s.repo, classID, actor); err != nil {
		return err
	}
	removed, err := s.repo.RemoveStudent(ctx, classID, studentID)
	if err != nil {
		return internalError(err, "failed to remove student")
	}
	if !removed {
		return appErrors.Clone(appErrors.ErrNotFound, "student is not enrolled in this class")
	}
	return nil
}

// Students returns the roster of a class.
func (s *ClassService) Students(ctx context.Context, actor Actor, classID string) ([]models.StudentSummary, error) {
	if _, err := authorizeClassMember(ctx, s.repo, classID, actor); err != nil {
		return nil, err
	}
	students, err := s.repo.ListStudents(ctx, classID)
	if err != nil {
		return nil, internalError(err, "failed to list students")
	}
	return students, nil
}

func randomClassCode() (string, error) {
	max := big.NewInt(int64(len(classCodeAlphabet)))
	buf := make([]byte, models.ClassCodeLength)
	for i := range buf {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		buf[i] = classCodeAlphabet[n.Int64()]
	}
	return string(buf), nil
}
