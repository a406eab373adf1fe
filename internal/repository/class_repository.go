package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

const classSelect = `SELECT c.id, c.name, c.description, c.subject, c.teacher_id, c.class_code, c.max_students, c.active, c.created_at, c.updated_at,
(SELECT COUNT(*) FROM class_students cs WHERE cs.class_id = c.id) AS student_count
FROM classes c`

// ClassRepository handles persistence for classes and their rosters.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs a new ClassRepository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// Create inserts a class. A class_code collision surfaces as ErrDuplicate.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	const query = `INSERT INTO classes (id, name, description, subject, teacher_id, class_code, max_students, active, created_at, updated_at)
VALUES (:id, :name, :description, :subject, :teacher_id, :class_code, :max_students, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// FindByID returns an active class with its student count.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := classSelect + ` WHERE c.id = $1 AND c.active`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// FindByCode returns the active class holding a join code.
func (r *ClassRepository) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	query := classSelect + ` WHERE c.class_code = $1 AND c.active`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, strings.ToUpper(code)); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class by code: %w", err)
	}
	return &class, nil
}

// ExistsByCode reports whether any class (active or not) already uses the code.
func (r *ClassRepository) ExistsByCode(ctx context.Context, code string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM classes WHERE class_code = $1)`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, code); err != nil {
		return false, fmt.Errorf("check class code: %w", err)
	}
	return exists, nil
}

// List returns active classes taught by or attended by the filtered user.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	conditions := []string{"c.active"}
	var args []interface{}

	if filter.TeacherID != "" {
		args = append(args, filter.TeacherID)
		conditions = append(conditions, fmt.Sprintf("c.teacher_id = $%d", len(args)))
	}
	if filter.StudentID != "" {
		args = append(args, filter.StudentID)
		conditions = append(conditions, fmt.Sprintf("EXISTS (SELECT 1 FROM class_students m WHERE m.class_id = c.id AND m.student_id = $%d)", len(args)))
	}
	if filter.Search != "" {
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conditions, " AND ")

	offset := filter.Normalize()
	listQuery := fmt.Sprintf("%s%s ORDER BY c.created_at DESC LIMIT %d OFFSET %d", classSelect, where, filter.PageSize, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM classes c"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// Update persists mutable class fields.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	const query = `UPDATE classes SET name = :name, description = :description, subject = :subject, max_students = :max_students, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete deactivates a class.
func (r *ClassRepository) Delete(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE classes SET active = FALSE, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, at); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// AddStudent enrols a student while the class is below maxStudents.
// It reports false when nothing was inserted (already enrolled or full).
func (r *ClassRepository) AddStudent(ctx context.Context, classID, studentID string, maxStudents int, at time.Time) (bool, error) {
	const query = `INSERT INTO class_students (class_id, student_id, joined_at)
SELECT $1, $2, $3 WHERE (SELECT COUNT(*) FROM class_students WHERE class_id = $1) < $4
ON CONFLICT (class_id, student_id) DO NOTHING`
	res, err := r.db.ExecContext(ctx, query, classID, studentID, at, maxStudents)
	if err != nil {
		return false, fmt.Errorf("add class student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("add class student rows: %w", err)
	}
	return affected > 0, nil
}

// RemoveStudent drops a student from the roster and reports whether they were enrolled.
func (r *ClassRepository) RemoveStudent(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `DELETE FROM class_students WHERE class_id = $1 AND student_id = $2`
	res, err := r.db.ExecContext(ctx, query, classID, studentID)
	if err != nil {
		return false, fmt.Errorf("remove class student: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("remove class student rows: %w", err)
	}
	return affected > 0, nil
}

// IsMember reports whether the student belongs to the class.
func (r *ClassRepository) IsMember(ctx context.Context, classID, studentID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM class_students WHERE class_id = $1 AND student_id = $2)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, classID, studentID); err != nil {
		return false, fmt.Errorf("check class membership: %w", err)
	}
	return ok, nil
}

// ListStudents returns the roster of a class.
func (r *ClassRepository) ListStudents(ctx context.Context, classID string) ([]models.StudentSummary, error) {
	const query = `SELECT u.id, u.full_name, u.email, cs.joined_at FROM class_students cs
JOIN users u ON u.id = cs.student_id WHERE cs.class_id = $1 ORDER BY u.full_name`
	var students []models.StudentSummary
	if err := r.db.SelectContext(ctx, &students, query, classID); err != nil {
		return nil, fmt.Errorf("list class students: %w", err)
	}
	return students, nil
}

// CountStudents returns the roster size of a class.
func (r *ClassRepository) CountStudents(ctx context.Context, classID string) (int, error) {
	const query = `SELECT COUNT(*) FROM class_students WHERE class_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, classID); err != nil {
		return 0, fmt.Errorf("count class students: %w", err)
	}
	return total, nil
}

// TeachesStudent reports whether the student is enrolled in any active class of the teacher.
func (r *ClassRepository) TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM class_students cs JOIN classes c ON c.id = cs.class_id
WHERE c.teacher_id = $1 AND cs.student_id = $2 AND c.active)`
	var ok bool
	if err := r.db.GetContext(ctx, &ok, query, teacherID, studentID); err != nil {
		return false, fmt.Errorf("check teacher student: %w", err)
	}
	return ok, nil
}
