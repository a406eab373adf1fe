package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
)

func TestMediaUpsertViewKeepsMaximum(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	upsert := regexp.QuoteMeta("ON CONFLICT (media_id, student_id) DO UPDATE SET percentage = GREATEST(media_views.percentage, EXCLUDED.percentage), viewed_at = EXCLUDED.viewed_at")
	cols := []string{"media_id", "student_id", "percentage", "viewed_at"}
	t0 := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery(upsert).WithArgs("m1", "s1", 40, t0).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("m1", "s1", 40, t0))
	mock.ExpectQuery(upsert).WithArgs("m1", "s1", 30, t0.Add(time.Hour)).
		WillReturnRows(sqlmock.NewRows(cols).AddRow("m1", "s1", 40, t0.Add(time.Hour)))

	first, err := repo.UpsertView(context.Background(), "m1", "s1", 40, t0)
	require.NoError(t, err)
	assert.Equal(t, 40, first.Percentage)

	second, err := repo.UpsertView(context.Background(), "m1", "s1", 30, t0.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 40, second.Percentage)
	assert.Equal(t, t0.Add(time.Hour), second.ViewedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaListByClassAndType(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	now := time.Now()
	cols := []string{"id", "title", "description", "type", "class_id", "uploaded_by", "file_path", "file_name", "mime_type", "size_bytes",
		"duration_seconds", "active", "created_at", "updated_at", "view_count"}
	mock.ExpectQuery(regexp.QuoteMeta("WHERE m.active AND m.class_id = $1 AND m.type = $2 ORDER BY m.created_at DESC LIMIT 10 OFFSET 10")).
		WithArgs("c1", "video").
		WillReturnRows(sqlmock.NewRows(cols).AddRow("m1", "Intro", nil, "video", "c1", "t1", "videos/1-intro.mp4", "intro.mp4", "video/mp4", 2048, 60, true, now, now, 3))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM media m WHERE m.active AND m.class_id = $1 AND m.type = $2")).
		WithArgs("c1", "video").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(11))

	items, total, err := repo.List(context.Background(), models.MediaFilter{ClassID: "c1", Type: models.MediaTypeVideo, PageQuery: models.PageQuery{Page: 2, PageSize: 10}})
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 3, items[0].ViewCount)
	assert.Equal(t, 11, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMediaConsumptionRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewMediaRepository(db)

	from, to := time.Now().Add(-time.Hour), time.Now()
	mock.ExpectQuery(regexp.QuoteMeta("WHERE v.student_id = $1 AND v.viewed_at BETWEEN $2 AND $3")).
		WithArgs("s1", from, to).
		WillReturnRows(sqlmock.NewRows([]string{"class_id", "class_name", "percentage"}).AddRow("c1", "Math", 80))

	rows, err := repo.ConsumptionRows(context.Background(), "s1", from, to)
	require.NoError(t, err)
	assert.Equal(t, []models.MediaConsumptionRow{{ClassID: "c1", ClassName: "Math", Percentage: 80}}, rows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
