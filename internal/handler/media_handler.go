package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/service"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
	"github.com/noah-isme/edu-platform-api/pkg/response"
)

type mediaService interface {
	Upload(ctx context.Context, actor service.Actor, req models.UploadMediaRequest, file service.UploadFile) (*models.Media, error)
	List(ctx context.Context, actor service.Actor, filter models.MediaFilter) ([]models.Media, *models.Pagination, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.Media, error)
	Update(ctx context.Context, actor service.Actor, id string, req models.UpdateMediaRequest) (*models.Media, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	AddView(ctx context.Context, actor service.Actor, id string, req models.AddViewRequest) (*models.MediaView, error)
	DownloadURL(ctx context.Context, actor service.Actor, id string) (*models.MediaDownload, error)
	OpenDownload(ctx context.Context, token string) (*service.MediaFile, error)
}

// MediaHandler exposes class media upload, viewing and streaming endpoints.
type MediaHandler struct {
	service mediaService
}

// NewMediaHandler constructs a media handler.
func NewMediaHandler(svc mediaService) *MediaHandler {
	return &MediaHandler{service: svc}
}

// Upload godoc
// @Summary Upload media to a class
// @Tags Media
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param title formData string true "Title"
// @Param description formData string false "Description"
// @Param type formData string true "video, audio, document or image"
// @Param class_id formData string true "Class ID"
// @Param duration_seconds formData int false "Duration for audio and video"
// @Param file formData file true "Media file"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Failure 415 {object} response.Envelope
// @Router /media [post]
func (h *MediaHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UploadMediaRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.ErrValidation.WithCause(err, "invalid media payload"))
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "file is required"))
		return
	}
	src, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.ErrInternal.WithCause(err, "failed to open file"))
		return
	}
	defer src.Close()

	media, err := h.service.Upload(c.Request.Context(), actor, req, service.UploadFile{
		Name:   fileHeader.Filename,
		Size:   fileHeader.Size,
		Reader: src,
	})
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, media)
}

// List godoc
// @Summary List class media
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Param class_id query string true "Class ID"
// @Param type query string false "Media type"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /media [get]
func (h *MediaHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	classID := c.Query("class_id")
	if classID == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "class_id is required"))
		return
	}
	filter := models.MediaFilter{ClassID: classID, Type: models.MediaType(c.Query("type")), PageQuery: pageQuery(c)}
	items, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get media detail
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope
// @Router /media/{id} [get]
func (h *MediaHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	media, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, media)
}

// Update godoc
// @Summary Update media metadata
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Param payload body models.UpdateMediaRequest true "Media changes"
// @Success 200 {object} response.Envelope
// @Router /media/{id} [put]
func (h *MediaHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.UpdateMediaRequest
	if !bindJSON(c, &req, "invalid media payload") {
		return
	}
	media, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, media)
}

// Delete godoc
// @Summary Delete media and its file
// @Tags Media
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 204
// @Router /media/{id} [delete]
func (h *MediaHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// AddView godoc
// @Summary Record viewing progress
// @Description The stored percentage only ever increases
// @Tags Media
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Param payload body models.AddViewRequest true "Watched percentage"
// @Success 200 {object} response.Envelope
// @Router /media/{id}/views [post]
func (h *MediaHandler) AddView(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.AddViewRequest
	if !bindJSON(c, &req, "invalid view payload") {
		return
	}
	view, err := h.service.AddView(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, view)
}

// DownloadURL godoc
// @Summary Issue a signed download link
// @Tags Media
// @Produce json
// @Security BearerAuth
// @Param id path string true "Media ID"
// @Success 200 {object} response.Envelope
// @Router /media/{id}/download-url [get]
func (h *MediaHandler) DownloadURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.service.DownloadURL(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, link)
}

// Download godoc
// @Summary Stream a media file
// @Description Serves the file behind a signed link; range requests are supported
// @Tags Media
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /media/download/{token} [get]
func (h *MediaHandler) Download(c *gin.Context) {
	file, err := h.service.OpenDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.File.Close() //nolint:errcheck

	modTime := time.Time{}
	if info, statErr := file.File.Stat(); statErr == nil {
		modTime = info.ModTime()
	}
	c.Header("Content-Type", file.MimeType)
	c.Header("Content-Disposition", fmt.Sprintf("inline; filename=%q", file.Name))
	c.Header("Cache-Control", "private, max-age=300")
	http.ServeContent(c.Writer, c.Request, file.Name, modTime, file.File)
}
