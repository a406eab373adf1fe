package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/service"
	"github.com/noah-isme/edu-platform-api/pkg/response"
)

type analyticsService interface {
	StudentProgress(ctx context.Context, actor service.Actor, studentID, period string) (*models.StudentProgressReport, bool, error)
	ClassReport(ctx context.Context, actor service.Actor, classID, period string) (*models.ClassReport, bool, error)
	ParentOverview(ctx context.Context, actor service.Actor) ([]models.ChildOverview, error)
	SystemMetrics() models.SystemMetrics
}

// AnalyticsHandler exposes progress and class reports.
type AnalyticsHandler struct {
	analytics analyticsService
}

// NewAnalyticsHandler constructs the analytics handler.
func NewAnalyticsHandler(analytics analyticsService) *AnalyticsHandler {
	return &AnalyticsHandler{analytics: analytics}
}

// StudentProgress godoc
// @Summary Student progress report
// @Description Practice, assignments and media consumption with an overall score
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Student ID"
// @Param period query string false "day, week, month, quarter or year (default month)"
// @Success 200 {object} response.Envelope
// @Router /reports/students/{id}/progress [get]
func (h *AnalyticsHandler) StudentProgress(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, cacheHit, err := h.analytics.StudentProgress(c.Request.Context(), actor, c.Param("id"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, report, cacheHit)
}

// ClassReport godoc
// @Summary Class report
// @Description Engagement ranking, assignment submission rates and media views
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Param id path string true "Class ID"
// @Param period query string false "day, week, month, quarter or year (default month)"
// @Success 200 {object} response.Envelope
// @Router /reports/classes/{id} [get]
func (h *AnalyticsHandler) ClassReport(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	report, cacheHit, err := h.analytics.ClassReport(c.Request.Context(), actor, c.Param("id"), c.Query("period"))
	if err != nil {
		response.Error(c, err)
		return
	}
	cachedJSON(c, report, cacheHit)
}

// ParentOverview godoc
// @Summary Overview of a parent's children
// @Tags Reports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /reports/children [get]
func (h *AnalyticsHandler) ParentOverview(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	children, err := h.analytics.ParentOverview(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, children)
}

// SystemMetrics godoc
// @Summary Instrumentation snapshot
// @Tags Observability
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /metrics/summary [get]
func (h *AnalyticsHandler) SystemMetrics(c *gin.Context) {
	response.OK(c, h.analytics.SystemMetrics())
}
