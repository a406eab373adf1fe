package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

func TestAssignmentFindByIDDecodesQuestions(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	now := time.Now()
	cols := []string{"id", "title", "description", "class_id", "created_by", "due_date", "questions", "total_points", "active", "created_at", "updated_at"}
	mock.ExpectQuery(regexp.QuoteMeta("FROM assignments WHERE id = $1 AND active")).
		WithArgs("a1").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("a1", "Quiz", nil, "c1", "t1", nil,
			[]byte(`[{"id":"q1","text":"2+2","type":"short_answer","correct_answer":"4","points":3}]`), 3, true, now, now))

	a, err := repo.FindByID(context.Background(), "a1")
	require.NoError(t, err)
	require.Len(t, a.Questions, 1)
	assert.Equal(t, "4", a.Questions[0].CorrectAnswer)
	assert.Equal(t, 3, a.TotalPoints)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentUpsertSubmissionReplaces(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("ON CONFLICT (assignment_id, student_id) DO UPDATE")).
		WillReturnResult(sqlmock.NewResult(0, 1))

	sub := &models.Submission{ID: "sub-1", AssignmentID: "a1", StudentID: "s1", Answers: models.Answers{{QuestionID: "q1", Answer: "4"}}, Score: 3, Percentage: 100, SubmittedAt: time.Now()}
	require.NoError(t, repo.UpsertSubmission(context.Background(), sub))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentUpdateGradeMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE assignment_submissions SET score")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateGrade(context.Background(), &models.Submission{AssignmentID: "a1", StudentID: "s1"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAssignmentPerformanceRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewAssignmentRepository(db)

	from, to := time.Now().AddDate(0, 0, -30), time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE s.student_id = $1 AND a.active AND s.submitted_at BETWEEN $2 AND $3")).
		WithArgs("s1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "class_name", "score", "percentage", "total_points"}).
			AddRow("c1", "Math", 8.0, 80, 10))

	rows, err := repo.PerformanceRows(context.Background(), "s1", from, to)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, 80, rows[0].Percentage)
	assert.NoError(t, mock.ExpectationsWereMet())
}
