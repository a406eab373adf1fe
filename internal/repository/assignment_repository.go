package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

const (
	assignmentColumns = `id, title, description, class_id, created_by, due_date, questions, total_points, active, created_at, updated_at`
	submissionColumns = `id, assignment_id, student_id, answers, score, percentage, feedback, submitted_at, graded_at, graded_by`
)

// AssignmentRepository persists assignments and their submissions.
type AssignmentRepository struct {
	db *sqlx.DB
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db}
}

// Create inserts an assignment with its questions.
func (r *AssignmentRepository) Create(ctx context.Context, a *models.Assignment) error {
	query := `INSERT INTO assignments (` + assignmentColumns + `)
VALUES (:id, :title, :description, :class_id, :created_by, :due_date, :questions, :total_points, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}
	return nil
}

// FindByID returns an active assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1 AND active`
	var a models.Assignment
	if err := r.db.GetContext(ctx, &a, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &a, nil
}

// List returns active assignments of a class ordered by due date.
func (r *AssignmentRepository) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	offset := filter.Normalize()
	query := fmt.Sprintf(`SELECT %s FROM assignments WHERE class_id = $1 AND active ORDER BY due_date ASC NULLS LAST, created_at DESC LIMIT %d OFFSET %d`,
		assignmentColumns, filter.PageSize, offset)
	var items []models.Assignment
	if err := r.db.SelectContext(ctx, &items, query, filter.ClassID); err != nil {
		return nil, 0, fmt.Errorf("list assignments: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM assignments WHERE class_id = $1 AND active`, filter.ClassID); err != nil {
		return nil, 0, fmt.Errorf("count assignments: %w", err)
	}
	return items, total, nil
}

// Update persists assignment fields including questions and total points.
func (r *AssignmentRepository) Update(ctx context.Context, a *models.Assignment) error {
	const query = `UPDATE assignments SET title = :title, description = :description, due_date = :due_date, questions = :questions,
total_points = :total_points, active = :active, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	return nil
}

// SoftDelete deactivates an assignment.
func (r *AssignmentRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE assignments SET active = FALSE, updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// UpsertSubmission stores a student's submission, replacing any previous one.
// Grading fields are cleared because the new answers have not been reviewed.
func (r *AssignmentRepository) UpsertSubmission(ctx context.Context, sub *models.Submission) error {
	query := `INSERT INTO assignment_submissions (` + submissionColumns + `)
VALUES (:id, :assignment_id, :student_id, :answers, :score, :percentage, :feedback, :submitted_at, :graded_at, :graded_by)
ON CONFLICT (assignment_id, student_id) DO UPDATE
SET answers = EXCLUDED.answers, score = EXCLUDED.score, percentage = EXCLUDED.percentage, feedback = NULL,
submitted_at = EXCLUDED.submitted_at, graded_at = NULL, graded_by = NULL`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("upsert submission: %w", err)
	}
	return nil
}

// UpdateGrade stores a manual grade on an existing submission.
func (r *AssignmentRepository) UpdateGrade(ctx context.Context, sub *models.Submission) error {
	const query = `UPDATE assignment_submissions SET score = :score, percentage = :percentage, feedback = :feedback, graded_at = :graded_at, graded_by = :graded_by
WHERE assignment_id = :assignment_id AND student_id = :student_id`
	res, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// GetSubmission returns the submission of a student for an assignment.
func (r *AssignmentRepository) GetSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM assignment_submissions WHERE assignment_id = $1 AND student_id = $2`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, assignmentID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// ListSubmissions returns all submissions of an assignment.
func (r *AssignmentRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM assignment_submissions WHERE assignment_id = $1 ORDER BY submitted_at`
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// PerformanceRows joins a student's submissions in [from, to] with assignment and class.
func (r *AssignmentRepository) PerformanceRows(ctx context.Context, studentID string, from, to time.Time) ([]models.AssignmentPerformanceRow, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name, s.score, s.percentage, a.total_points
FROM assignment_submissions s
JOIN assignments a ON a.id = s.assignment_id
JOIN classes c ON c.id = a.class_id
WHERE s.student_id = $1 AND a.active AND s.submitted_at BETWEEN $2 AND $3`
	var rows []models.AssignmentPerformanceRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("assignment performance rows: %w", err)
	}
	return rows, nil
}

// SubmissionStatsByClass summarises submissions per active assignment of a class.
func (r *AssignmentRepository) SubmissionStatsByClass(ctx context.Context, classID string) ([]models.AssignmentSubmissionStats, error) {
	const query = `SELECT a.id AS assignment_id, a.title, a.total_points, COUNT(s.id) AS submission_count, COALESCE(AVG(s.percentage), 0) AS average_percentage
FROM assignments a
LEFT JOIN assignment_submissions s ON s.assignment_id = a.id
WHERE a.class_id = $1 AND a.active
GROUP BY a.id, a.title, a.total_points, a.created_at
ORDER BY a.created_at`
	var stats []models.AssignmentSubmissionStats
	if err := r.db.SelectContext(ctx, &stats, query, classID); err != nil {
		return nil, fmt.Errorf("submission stats: %w", err)
	}
	return stats, nil
}

// CountSubmissions counts all submissions a student has made.
func (r *AssignmentRepository) CountSubmissions(ctx context.Context, studentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM assignment_submissions WHERE student_id = $1`, studentID); err != nil {
		return 0, fmt.Errorf("count submissions: %w", err)
	}
	return total, nil
}
