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

var practiceRowColumns = []string{"id", "student_id", "type", "category", "content", "target_content", "accuracy", "strokes", "time_spent", "attempts", "difficulty",
	"score", "max_score", "is_completed", "class_id", "assignment_id", "metadata", "is_active", "date", "created_at", "updated_at"}

func TestPracticeListFilters(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeRepository(db)

	now := time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("FROM practice_sessions WHERE student_id = $1 AND is_active AND type = $2 AND category = $3 ORDER BY date DESC LIMIT 20 OFFSET 0")).
		WithArgs("s1", "typing", "words").
		WillReturnRows(sqlmock.NewRows(practiceRowColumns).AddRow("p1", "s1", "typing", "words", "abc", nil, 90, 0, 60, 1, "easy",
			90, 100, true, nil, nil, []byte(`{"characters_per_minute":120,"words_per_minute":24,"error_count":2}`), true, now, now, now))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM practice_sessions WHERE student_id = $1 AND is_active AND type = $2 AND category = $3")).
		WithArgs("s1", "typing", "words").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	items, total, err := repo.List(context.Background(), models.PracticeFilter{StudentID: "s1", Type: models.PracticeTyping, Category: "words"})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 24, items[0].Metadata.WordsPerMinute)
	assert.Equal(t, 1, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPracticeUpdateOfInactiveSession(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeRepository(db)

	update := regexp.QuoteMeta("UPDATE practice_sessions SET content")
	session := &models.PracticeSession{ID: "p1", StudentID: "s1", Type: models.PracticeWriting, Attempts: 2, IsActive: true}

	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Update(context.Background(), session))

	mock.ExpectExec(update).WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Update(context.Background(), session)
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPracticeSoftDelete(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeRepository(db)

	at := time.Now()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE practice_sessions SET is_active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("p1", at).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.SoftDelete(context.Background(), "p1", at))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPracticeListByClassInRange(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewPracticeRepository(db)

	from, to := time.Now().AddDate(0, 0, -7), time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("p.student_id IN (SELECT student_id FROM class_students WHERE class_id = $1)")).
		WithArgs("c1", from, to).
		WillReturnRows(sqlmock.NewRows(practiceRowColumns))

	items, err := repo.ListByClassInRange(context.Background(), "c1", from, to)
	require.NoError(t, err)
	assert.Empty(t, items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
