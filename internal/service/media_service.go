package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/models"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
	"github.com/noah-isme/edu-platform-api/pkg/storage"
)

// sniffLength is how much of an upload is read to detect its MIME type.
const sniffLength = 3072

type mediaRepository interface {
	Create(ctx context.Context, media *models.Media) error
	FindByID(ctx context.Context, id string) (*models.Media, error)
	List(ctx context.Context, filter models.MediaFilter) ([]models.Media, int, error)
	Update(ctx context.Context, media *models.Media) error
	Delete(ctx context.Context, id string) error
	UpsertView(ctx context.Context, mediaID, studentID string, percentage int, at time.Time) (*models.MediaView, error)
	ListViews(ctx context.Context, mediaID string) ([]models.MediaView, error)
}

type mediaStorage interface {
	UploadName(dir, originalName string) string
	SaveStream(filename string, r io.Reader, limit int64) (int64, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
}

type urlSigner interface {
	Generate(resourceID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (*storage.SignedToken, error)
}

// MediaConfig limits what may be uploaded.
type MediaConfig struct {
	APIPrefix    string
	MaxFileBytes int64
	AllowedMIME  map[models.MediaType][]string
}

// UploadFile is the file part of an upload request.
type UploadFile struct {
	Name   string
	Size   int64
	Reader io.Reader
}

// MediaFile is an opened media file ready to be streamed.
type MediaFile struct {
	File     *os.File
	Name     string
	MimeType string
}

// MediaService manages class media and per-student viewing progress.
type MediaService struct {
	repo      mediaRepository
	classes   classLookup
	storage   mediaStorage
	signer    urlSigner
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       MediaConfig
}

// NewMediaService constructs a MediaService.
func NewMediaService(repo mediaRepository, classes classLookup, store mediaStorage, signer urlSigner, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg MediaConfig) *MediaService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 100 * 1024 * 1024
	}
	return &MediaService{
		repo:      repo,
		classes:   classes,
		storage:   store,
		signer:    signer,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Upload stores a file for a class and records its metadata. The stored file
// is removed again when the metadata cannot be saved.
func (s *MediaService) Upload(ctx context.Context, actor Actor, req models.UploadMediaRequest, file UploadFile) (*models.Media, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid media payload")
	}
	if file.Reader == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if _, err := authorizeClassOwner(ctx, s.classes, req.ClassID, actor); err != nil {
		return nil, err
	}
	if file.Size > s.cfg.MaxFileBytes {
		return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileBytes))
	}

	head := make([]byte, sniffLength)
	n, err := io.ReadFull(file.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, validationError(err, "failed to read upload")
	}
	head = head[:n]
	if n == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is empty")
	}
	detected := mimetype.Detect(head)
	if !s.allowed(req.Type, detected) {
		return nil, appErrors.Clone(appErrors.ErrUnsupportedMedia, fmt.Sprintf("%s is not an allowed %s type", detected.String(), req.Type))
	}

	relPath := s.storage.UploadName(req.Type.Dir(), file.Name)
	written, err := s.storage.SaveStream(relPath, io.MultiReader(bytes.NewReader(head), file.Reader), s.cfg.MaxFileBytes)
	if err != nil {
		if errors.Is(err, storage.ErrTooLarge) {
			return nil, appErrors.Clone(appErrors.ErrFileTooLarge, fmt.Sprintf("file exceeds %d bytes", s.cfg.MaxFileBytes))
		}
		return nil, internalError(err, "failed to store file")
	}

	now := time.Now().UTC()
	media := &models.Media{
		ID:              uuid.NewString(),
		Title:           strings.TrimSpace(req.Title),
		Description:     req.Description,
		Type:            req.Type,
		ClassID:         req.ClassID,
		UploadedBy:      actor.ID,
		FilePath:        relPath,
		FileName:        file.Name,
		MimeType:        detected.String(),
		SizeBytes:       written,
		DurationSeconds: req.DurationSeconds,
		Active:          true,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.repo.Create(ctx, media); err != nil {
		if delErr := s.storage.Delete(relPath); delErr != nil {
			s.logger.Warn("failed to roll back stored upload", zap.String("path", relPath), zap.Error(delErr))
		}
		return nil, internalError(err, "failed to save media")
	}
	s.metrics.RecordUpload(media.Type)
	s.logger.Info("media uploaded", zap.String("media_id", media.ID), zap.String("class_id", media.ClassID), zap.Int64("bytes", written))
	return media, nil
}

func (s *MediaService) allowed(t models.MediaType, detected *mimetype.MIME) bool {
	for m := detected; m != nil; m = m.Parent() {
		for _, candidate := range s.cfg.AllowedMIME[t] {
			if m.Is(candidate) {
				return true
			}
		}
	}
	return false
}

// List returns a page of a class's media for its members.
func (s *MediaService) List(ctx context.Context, actor Actor, filter models.MediaFilter) ([]models.Media, *models.Pagination, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, nil, appErrors.Clone(appErrors.ErrValidation, "unknown media type")
	}
	if _, err := authorizeClassMember(ctx, s.classes, filter.ClassID, actor); err != nil {
		return nil, nil, err
	}
	filter.Normalize()
	items, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, internalError(err, "failed to list media")
	}
	return items, filter.Pagination(total), nil
}

// Get returns one media item. The class teacher also receives the views.
func (s *MediaService) Get(ctx context.Context, actor Actor, id string) (*models.Media, error) {
	media, class, err := s.loadForMember(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if actor.Role == models.RoleTeacher && class.TeacherID == actor.ID {
		views, err := s.repo.ListViews(ctx, id)
		if err != nil {
			return nil, internalError(err, "failed to load media views")
		}
		media.Views = views
	}
	return media, nil
}

// Update edits media metadata.
func (s *MediaService) Update(ctx context.Context, actor Actor, id string, req models.UpdateMediaRequest) (*models.Media, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid media payload")
	}
	media, err := s.loadForOwner(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.Title != nil {
		media.Title = strings.TrimSpace(*req.Title)
	}
	if req.Description != nil {
		media.Description = req.Description
	}
	media.UpdatedAt = time.Now().UTC()
	if err := s.repo.Update(ctx, media); err != nil {
		return nil, internalError(err, "failed to update media")
	}
	return media, nil
}

// Delete removes the media record and its stored file.
func (s *MediaService) Delete(ctx context.Context, actor Actor, id string) error {
	media, err := s.loadForOwner(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return internalError(err, "failed to delete media")
	}
	if err := s.storage.Delete(media.FilePath); err != nil {
		s.logger.Warn("failed to delete media file", zap.String("media_id", id), zap.String("path", media.FilePath), zap.Error(err))
	}
	return nil
}

// AddView records how far the student watched. The stored percentage never decreases.
func (s *MediaService) AddView(ctx context.Context, actor Actor, id string, req models.AddViewRequest) (*models.MediaView, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid view payload")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students record views")
	}
	media, _, err := s.loadForMember(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	view, err := s.repo.UpsertView(ctx, media.ID, actor.ID, req.Percentage, time.Now().UTC())
	if err != nil {
		return nil, internalError(err, "failed to record view")
	}
	s.metrics.RecordMediaView()
	s.cache.InvalidateStudent(ctx, actor.ID, media.ClassID)
	return view, nil
}

// DownloadURL issues a signed, expiring link to the media file.
func (s *MediaService) DownloadURL(ctx context.Context, actor Actor, id string) (*models.MediaDownload, error) {
	media, _, err := s.loadForMember(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	token, expiresAt, err := s.signer.Generate(media.ID, media.FilePath)
	if err != nil {
		return nil, internalError(err, "failed to sign download url")
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	return &models.MediaDownload{URL: fmt.Sprintf("%s/media/download/%s", prefix, token), ExpiresAt: expiresAt}, nil
}

// OpenDownload validates a signed token and opens the referenced file.
func (s *MediaService) OpenDownload(ctx context.Context, token string) (*MediaFile, error) {
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired download link")
	}
	media, err := s.repo.FindByID(ctx, parsed.ResourceID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, internalError(err, "failed to load media")
	}
	if media.FilePath != parsed.Path {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "download link does not match media")
	}
	f, err := s.storage.Open(media.FilePath)
	if err != nil {
		return nil, internalError(err, "failed to open media file")
	}
	return &MediaFile{File: f, Name: media.FileName, MimeType: media.MimeType}, nil
}

func (s *MediaService) load(ctx context.Context, id string) (*models.Media, error) {
	media, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "media not found")
		}
		return nil, internalError(err, "failed to load media")
	}
	return media, nil
}

func (s *MediaService) loadForMember(ctx context.Context, actor Actor, id string) (*models.Media, *models.Class, error) {
	media, err := s.load(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	class, err := authorizeClassMember(ctx, s.classes, media.ClassID, actor)
	if err != nil {
		return nil, nil, err
	}
	return media, class, nil
}

func (s *MediaService) loadForOwner(ctx context.Context, actor Actor, id string) (*models.Media, error) {
	media, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, err := authorizeClassOwner(ctx, s.classes, media.ClassID, actor); err != nil {
		return nil, err
	}
	return media, nil
}
