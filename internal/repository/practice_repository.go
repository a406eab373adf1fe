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

const practiceColumns = `id, student_id, type, category, content, target_content, accuracy, strokes, time_spent, attempts, difficulty,
score, max_score, is_completed, class_id, assignment_id, metadata, is_active, date, created_at, updated_at`

// PracticeRepository persists practice sessions. Deleted sessions stay in the
// table with is_active = FALSE and are invisible to every read.
type PracticeRepository struct {
	db *sqlx.DB
}

// NewPracticeRepository constructs the repository.
func NewPracticeRepository(db *sqlx.DB) *PracticeRepository {
	return &PracticeRepository{db: db}
}

// Create inserts a session.
func (r *PracticeRepository) Create(ctx context.Context, p *models.PracticeSession) error {
	query := `INSERT INTO practice_sessions (` + practiceColumns + `)
VALUES (:id, :student_id, :type, :category, :content, :target_content, :accuracy, :strokes, :time_spent, :attempts, :difficulty,
:score, :max_score, :is_completed, :class_id, :assignment_id, :metadata, :is_active, :date, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, p); err != nil {
		return fmt.Errorf("create practice session: %w", err)
	}
	return nil
}

// FindByID returns an active session.
func (r *PracticeRepository) FindByID(ctx context.Context, id string) (*models.PracticeSession, error) {
	query := `SELECT ` + practiceColumns + ` FROM practice_sessions WHERE id = $1 AND is_active`
	var p models.PracticeSession
	if err := r.db.GetContext(ctx, &p, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find practice session: %w", err)
	}
	return &p, nil
}

// Update persists a re-evaluated session. A session deleted in the meantime
// yields sql.ErrNoRows.
func (r *PracticeRepository) Update(ctx context.Context, p *models.PracticeSession) error {
	const query = `UPDATE practice_sessions SET content = :content, accuracy = :accuracy, strokes = :strokes, time_spent = :time_spent,
attempts = :attempts, score = :score, is_completed = :is_completed, metadata = :metadata, date = :date, updated_at = :updated_at
WHERE id = :id AND is_active`
	res, err := r.db.NamedExecContext(ctx, query, p)
	if err != nil {
		return fmt.Errorf("update practice session: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SoftDelete flags a session inactive.
func (r *PracticeRepository) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE practice_sessions SET is_active = FALSE, updated_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("delete practice session: %w", err)
	}
	return nil
}

// List returns a student's sessions, newest first.
func (r *PracticeRepository) List(ctx context.Context, filter models.PracticeFilter) ([]models.PracticeSession, int, error) {
	where := ` WHERE student_id = $1 AND is_active`
	args := []interface{}{filter.StudentID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND type = $%d", len(args))
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		where += fmt.Sprintf(" AND category = $%d", len(args))
	}

	offset := filter.Normalize()
	query := fmt.Sprintf("SELECT %s FROM practice_sessions%s ORDER BY date DESC LIMIT %d OFFSET %d", practiceColumns, where, filter.PageSize, offset)
	var items []models.PracticeSession
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list practice sessions: %w", err)
	}
	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM practice_sessions"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count practice sessions: %w", err)
	}
	return items, total, nil
}

// ListInRange returns a student's active sessions dated in [from, to].
func (r *PracticeRepository) ListInRange(ctx context.Context, studentID string, from, to time.Time) ([]models.PracticeSession, error) {
	query := `SELECT ` + practiceColumns + ` FROM practice_sessions WHERE student_id = $1 AND is_active AND date BETWEEN $2 AND $3 ORDER BY date`
	var items []models.PracticeSession
	if err := r.db.SelectContext(ctx, &items, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("list practice in range: %w", err)
	}
	return items, nil
}

// ListByClassInRange returns the active sessions of a class's current students dated in [from, to].
func (r *PracticeRepository) ListByClassInRange(ctx context.Context, classID string, from, to time.Time) ([]models.PracticeSession, error) {
	query := `SELECT ` + practiceColumns + ` FROM practice_sessions p
WHERE p.is_active AND p.date BETWEEN $2 AND $3
AND (p.class_id = $1 OR p.student_id IN (SELECT student_id FROM class_students WHERE class_id = $1))
ORDER BY p.date`
	var items []models.PracticeSession
	if err := r.db.SelectContext(ctx, &items, query, classID, from, to); err != nil {
		return nil, fmt.Errorf("list class practice in range: %w", err)
	}
	return items, nil
}

// CountByStudent counts a student's active sessions.
func (r *PracticeRepository) CountByStudent(ctx context.Context, studentID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM practice_sessions WHERE student_id = $1 AND is_active`, studentID); err != nil {
		return 0, fmt.Errorf("count practice sessions: %w", err)
	}
	return total, nil
}
