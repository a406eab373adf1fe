package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/noah-isme/edu-platform-api/internal/models"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

// Actor is the authenticated caller of a service operation.
type Actor struct {
	ID    string
	Role  models.UserRole
	Email string
}

// ActorFromClaims converts token claims into an Actor.
func ActorFromClaims(claims *models.JWTClaims) Actor {
	if claims == nil {
		return Actor{}
	}
	return Actor{ID: claims.UserID, Role: claims.Role, Email: claims.Email}
}

type classLookup interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	IsMember(ctx context.Context, classID, studentID string) (bool, error)
}

type studentLookup interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

type teacherRoster interface {
	TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error)
}

func loadClass(ctx context.Context, repo classLookup, classID string) (*models.Class, error) {
	class, err := repo.FindByID(ctx, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.ErrInternal.WithCause(err, "failed to load class")
	}
	return class, nil
}

// authorizeClassOwner loads the class and requires the actor to be its teacher.
func authorizeClassOwner(ctx context.Context, repo classLookup, classID string, actor Actor) (*models.Class, error) {
	class, err := loadClass(ctx, repo, classID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleTeacher || class.TeacherID != actor.ID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher may do this")
	}
	return class, nil
}

// authorizeClassMember loads the class and requires the actor to be its
// teacher or an enrolled student.
func authorizeClassMember(ctx context.Context, repo classLookup, classID string, actor Actor) (*models.Class, error) {
	class, err := loadClass(ctx, repo, classID)
	if err != nil {
		return nil, err
	}
	switch actor.Role {
	case models.RoleTeacher:
		if class.TeacherID == actor.ID {
			return class, nil
		}
	case models.RoleStudent:
		ok, err := repo.IsMember(ctx, classID, actor.ID)
		if err != nil {
			return nil, appErrors.ErrInternal.WithCause(err, "failed to check class membership")
		}
		if ok {
			return class, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "not a member of this class")
}

// authorizeStudentView resolves a student the actor may see analytics for:
// the student themself, a parent linked by e-mail, or a teacher of one of
// the student's classes.
func authorizeStudentView(ctx context.Context, users studentLookup, roster teacherRoster, studentID string, actor Actor) (*models.User, error) {
	student, err := users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.ErrInternal.WithCause(err, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
	}

	switch actor.Role {
	case models.RoleStudent:
		if actor.ID == student.ID {
			return student, nil
		}
	case models.RoleParent:
		if student.ParentEmail != nil && actor.Email != "" && strings.EqualFold(*student.ParentEmail, actor.Email) {
			return student, nil
		}
	case models.RoleTeacher:
		ok, err := roster.TeachesStudent(ctx, actor.ID, student.ID)
		if err != nil {
			return nil, appErrors.ErrInternal.WithCause(err, "failed to check class roster")
		}
		if ok {
			return student, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this student")
}

func validationError(err error, message string) error {
	return appErrors.ErrValidation.WithCause(err, message)
}

func internalError(err error, message string) error {
	return appErrors.ErrInternal.WithCause(err, message)
}
