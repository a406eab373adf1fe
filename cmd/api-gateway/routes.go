package main

import (
	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/middleware"
	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/pkg/config"
	"github.com/noah-isme/edu-platform-api/pkg/logger"
	corsmiddleware "github.com/noah-isme/edu-platform-api/pkg/middleware/cors"
	reqidmiddleware "github.com/noah-isme/edu-platform-api/pkg/middleware/requestid"
)

func newRouter(cfg *config.Config, app *application, logr *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(app.metrics))
	r.Use(middleware.WithResponseMeta())

	r.GET("/health", app.health.Health)
	r.GET("/ready", app.health.Ready)
	r.GET("/metrics", app.health.Prometheus)
	if cfg.Env != config.EnvProduction {
		r.GET("/docs/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	teacher := middleware.RequireRoles(models.RoleTeacher)
	student := middleware.RequireRoles(models.RoleStudent)

	api := r.Group(cfg.APIPrefix)

	authHandler := app.authHandler
	api.POST("/auth/register", authHandler.Register)
	api.POST("/auth/login", authHandler.Login)

	// Signed links carry their own authorisation.
	api.GET("/media/download/:token", app.media.Download)
	api.GET("/reports/download/:token", app.reports.Download)

	secured := api.Group("")
	secured.Use(middleware.JWT(app.auth))
	secured.GET("/auth/me", authHandler.Me)

	classes := secured.Group("/classes")
	classes.GET("", app.classes.List)
	classes.POST("", teacher, app.classes.Create)
	classes.POST("/join", student, app.classes.Join)
	classes.GET("/:id", app.classes.Get)
	classes.PUT("/:id", teacher, app.classes.Update)
	classes.DELETE("/:id", teacher, app.classes.Delete)
	classes.POST("/:id/leave", student, app.classes.Leave)
	classes.GET("/:id/students", app.classes.Students)
	classes.DELETE("/:id/students/:studentId", teacher, app.classes.RemoveStudent)

	assignments := secured.Group("/assignments")
	assignments.GET("", app.assignments.List)
	assignments.POST("", teacher, app.assignments.Create)
	assignments.GET("/:id", app.assignments.Get)
	assignments.PUT("/:id", teacher, app.assignments.Update)
	assignments.DELETE("/:id", teacher, app.assignments.Delete)
	assignments.POST("/:id/submit", student, app.assignments.Submit)
	assignments.GET("/:id/submission", student, app.assignments.MySubmission)
	assignments.POST("/:id/grade", teacher, app.assignments.Grade)
	assignments.GET("/:id/submissions", teacher, app.assignments.Submissions)

	media := secured.Group("/media")
	media.GET("", app.media.List)
	media.POST("", teacher, app.media.Upload)
	media.GET("/:id", app.media.Get)
	media.PUT("/:id", teacher, app.media.Update)
	media.DELETE("/:id", teacher, app.media.Delete)
	media.POST("/:id/views", student, app.media.AddView)
	media.GET("/:id/download-url", app.media.DownloadURL)

	practice := secured.Group("/practice")
	practice.GET("", app.practice.List)
	practice.POST("", student, app.practice.Create)
	practice.GET("/stats", app.practice.Stats)
	practice.GET("/progress", app.practice.Progress)
	practice.GET("/:id", app.practice.Get)
	practice.POST("/:id/retry", student, app.practice.Retry)
	practice.DELETE("/:id", student, app.practice.Delete)

	reports := secured.Group("/reports")
	reports.GET("/students/:id/progress", app.analytics.StudentProgress)
	reports.GET("/classes/:id", teacher, app.analytics.ClassReport)
	reports.GET("/children", middleware.RequireRoles(models.RoleParent), app.analytics.ParentOverview)
	reports.POST("/exports", app.reports.CreateExport)
	reports.GET("/exports/:id", app.reports.ExportStatus)

	secured.GET("/metrics/summary", app.analytics.SystemMetrics)

	return r
}
