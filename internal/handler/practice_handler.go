package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/service"
	"github.com/noah-isme/edu-platform-api/pkg/response"
)

type practiceService interface {
	Create(ctx context.Context, actor service.Actor, req models.CreatePracticeRequest) (*models.PracticeSession, error)
	Retry(ctx context.Context, actor service.Actor, id string, req models.RetryPracticeRequest) (*models.PracticeSession, error)
	List(ctx context.Context, actor service.Actor, filter models.PracticeFilter) ([]models.PracticeSession, *models.Pagination, error)
	Get(ctx context.Context, actor service.Actor, id string) (*models.PracticeSession, error)
	Delete(ctx context.Context, actor service.Actor, id string) error
	Stats(ctx context.Context, actor service.Actor, studentID, period string) (*models.PracticeStats, error)
	Progress(ctx context.Context, actor service.Actor, studentID, period string) (*models.PracticeProgress, error)
}

// PracticeHandler exposes writing, typing and drawing practice endpoints.
type PracticeHandler struct {
	service practiceService
}

// NewPracticeHandler constructs a practice handler.
func NewPracticeHandler(svc practiceService) *PracticeHandler {
	return &PracticeHandler{service: svc}
}

// Create godoc
// @Summary Record a practice session
// @Description The session is scored on the server from its content
// @Tags Practice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body models.CreatePracticeRequest true "Practice payload"
// @Success 201 {object} response.Envelope
// @Router /practice [post]
func (h *PracticeHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.CreatePracticeRequest
	if !bindJSON(c, &req, "invalid practice payload") {
		return
	}
	session, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// List godoc
// @Summary List practice sessions
// @Tags Practice
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID, defaults to the caller"
// @Param type query string false "writing, typing or drawing"
// @Param category query string false "Category"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /practice [get]
func (h *PracticeHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter := models.PracticeFilter{
		StudentID: c.Query("student_id"),
		Type:      models.PracticeType(strings.ToLower(c.Query("type"))),
		Category:  strings.TrimSpace(c.Query("category")),
		PageQuery: pageQuery(c),
	}
	items, pagination, err := h.service.List(c.Request.Context(), actor, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get a practice session
// @Tags Practice
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 200 {object} response.Envelope
// @Router /practice/{id} [get]
func (h *PracticeHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	session, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Retry godoc
// @Summary Retry a practice session
// @Tags Practice
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Param payload body models.RetryPracticeRequest true "New attempt"
// @Success 200 {object} response.Envelope
// @Router /practice/{id}/retry [post]
func (h *PracticeHandler) Retry(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req models.RetryPracticeRequest
	if !bindJSON(c, &req, "invalid practice payload") {
		return
	}
	session, err := h.service.Retry(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, session)
}

// Delete godoc
// @Summary Delete a practice session
// @Tags Practice
// @Security BearerAuth
// @Param id path string true "Session ID"
// @Success 204
// @Router /practice/{id} [delete]
func (h *PracticeHandler) Delete(c *gin.Context) {
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

// Stats godoc
// @Summary Practice statistics by type and category
// @Tags Practice
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID, defaults to the caller"
// @Param period query string false "day, week, month, quarter or year (default week)"
// @Success 200 {object} response.Envelope
// @Router /practice/stats [get]
func (h *PracticeHandler) Stats(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	stats, err := h.service.Stats(c.Request.Context(), actor, c.Query("student_id"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, stats)
}

// Progress godoc
// @Summary Daily practice activity
// @Tags Practice
// @Produce json
// @Security BearerAuth
// @Param student_id query string false "Student ID, defaults to the caller"
// @Param period query string false "day, week, month, quarter or year (default week)"
// @Success 200 {object} response.Envelope
// @Router /practice/progress [get]
func (h *PracticeHandler) Progress(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	progress, err := h.service.Progress(c.Request.Context(), actor, c.Query("student_id"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, progress)
}
