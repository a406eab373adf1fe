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

const mediaSelect = `SELECT m.id, m.title, m.description, m.type, m.class_id, m.uploaded_by, m.file_path, m.file_name, m.mime_type, m.size_bytes,
m.duration_seconds, m.active, m.created_at, m.updated_at,
(SELECT COUNT(*) FROM media_views v WHERE v.media_id = m.id) AS view_count
FROM media m`

// MediaRepository persists media metadata and per-student views.
type MediaRepository struct {
	db *sqlx.DB
}

// NewMediaRepository constructs the repository.
func NewMediaRepository(db *sqlx.DB) *MediaRepository {
	return &MediaRepository{db: db}
}

// Create inserts media metadata.
func (r *MediaRepository) Create(ctx context.Context, media *models.Media) error {
	const query = `INSERT INTO media (id, title, description, type, class_id, uploaded_by, file_path, file_name, mime_type, size_bytes, duration_seconds, active, created_at, updated_at)
VALUES (:id, :title, :description, :type, :class_id, :uploaded_by, :file_path, :file_name, :mime_type, :size_bytes, :duration_seconds, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, media); err != nil {
		return fmt.Errorf("create media: %w", err)
	}
	return nil
}

// FindByID returns active media by id.
func (r *MediaRepository) FindByID(ctx context.Context, id string) (*models.Media, error) {
	query := mediaSelect + ` WHERE m.id = $1 AND m.active`
	var media models.Media
	if err := r.db.GetContext(ctx, &media, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find media: %w", err)
	}
	return &media, nil
}

// List returns active media of a class, newest first.
func (r *MediaRepository) List(ctx context.Context, filter models.MediaFilter) ([]models.Media, int, error) {
	where := ` WHERE m.active AND m.class_id = $1`
	args := []interface{}{filter.ClassID}
	if filter.Type != "" {
		args = append(args, filter.Type)
		where += fmt.Sprintf(" AND m.type = $%d", len(args))
	}

	offset := filter.Normalize()
	listQuery := fmt.Sprintf("%s%s ORDER BY m.created_at DESC LIMIT %d OFFSET %d", mediaSelect, where, filter.PageSize, offset)
	var items []models.Media
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list media: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) FROM media m"+where, args...); err != nil {
		return nil, 0, fmt.Errorf("count media: %w", err)
	}
	return items, total, nil
}

// Update persists editable metadata.
func (r *MediaRepository) Update(ctx context.Context, media *models.Media) error {
	const query = `UPDATE media SET title = :title, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, media); err != nil {
		return fmt.Errorf("update media: %w", err)
	}
	return nil
}

// Delete removes media and, by cascade, its views.
func (r *MediaRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM media WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete media: %w", err)
	}
	return nil
}

// UpsertView records a view keeping the highest percentage ever reported and
// the latest view time.
func (r *MediaRepository) UpsertView(ctx context.Context, mediaID, studentID string, percentage int, at time.Time) (*models.MediaView, error) {
	const query = `INSERT INTO media_views (media_id, student_id, percentage, viewed_at) VALUES ($1, $2, $3, $4)
ON CONFLICT (media_id, student_id) DO UPDATE
SET percentage = GREATEST(media_views.percentage, EXCLUDED.percentage), viewed_at = EXCLUDED.viewed_at
RETURNING media_id, student_id, percentage, viewed_at`
	var view models.MediaView
	if err := r.db.GetContext(ctx, &view, query, mediaID, studentID, percentage, at); err != nil {
		return nil, fmt.Errorf("upsert media view: %w", err)
	}
	return &view, nil
}

// ListViews returns every view recorded for a media item.
func (r *MediaRepository) ListViews(ctx context.Context, mediaID string) ([]models.MediaView, error) {
	const query = `SELECT media_id, student_id, percentage, viewed_at FROM media_views WHERE media_id = $1 ORDER BY viewed_at DESC`
	var views []models.MediaView
	if err := r.db.SelectContext(ctx, &views, query, mediaID); err != nil {
		return nil, fmt.Errorf("list media views: %w", err)
	}
	return views, nil
}

// ConsumptionRows joins a student's views in [from, to] with media and class.
func (r *MediaRepository) ConsumptionRows(ctx context.Context, studentID string, from, to time.Time) ([]models.MediaConsumptionRow, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name, v.percentage
FROM media_views v
JOIN media m ON m.id = v.media_id
JOIN classes c ON c.id = m.class_id
WHERE v.student_id = $1 AND v.viewed_at BETWEEN $2 AND $3`
	var rows []models.MediaConsumptionRow
	if err := r.db.SelectContext(ctx, &rows, query, studentID, from, to); err != nil {
		return nil, fmt.Errorf("media consumption rows: %w", err)
	}
	return rows, nil
}

// ViewStatsByClass summarises views per active media item of a class.
func (r *MediaRepository) ViewStatsByClass(ctx context.Context, classID string) ([]models.MediaViewStats, error) {
	const query = `SELECT m.id AS media_id, m.title, m.type, COUNT(v.student_id) AS view_count, COALESCE(AVG(v.percentage), 0) AS average_percentage
FROM media m
LEFT JOIN media_views v ON v.media_id = m.id
WHERE m.class_id = $1 AND m.active
GROUP BY m.id, m.title, m.type
ORDER BY m.title`
	var stats []models.MediaViewStats
	if err := r.db.SelectContext(ctx, &stats, query, classID); err != nil {
		return nil, fmt.Errorf("media view stats: %w", err)
	}
	return stats, nil
}
