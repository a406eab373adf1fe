package service

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/pkg/export"
)

type reportSource interface {
	BuildStudentProgress(ctx context.Context, studentID, period string) (*models.StudentProgressReport, error)
	BuildClassReport(ctx context.Context, classID, period string) (*models.ClassReport, error)
}

type exportStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Format       models.ReportFormat
}

// ExportService renders student and class reports to files and signs download links.
type ExportService struct {
	source    reportSource
	storage   exportStorage
	signer    urlSigner
	renderers map[models.ReportFormat]export.Renderer
	logger    *zap.Logger
	cfg       ExportConfig
	now       func() time.Time
}

// NewExportService constructs an ExportService. Without explicit renderers
// CSV, PDF and XLSX are available.
func NewExportService(source reportSource, storage exportStorage, signer urlSigner, cfg ExportConfig, logger *zap.Logger, renderers ...export.Renderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if len(renderers) == 0 {
		renderers = []export.Renderer{export.NewCSVExporter(), export.NewPDFExporter(), export.NewXLSXExporter()}
	}
	byFormat := make(map[models.ReportFormat]export.Renderer, len(renderers))
	for _, r := range renderers {
		byFormat[models.ReportFormat(r.Extension())] = r
	}
	return &ExportService{
		source:    source,
		storage:   storage,
		signer:    signer,
		renderers: byFormat,
		logger:    logger,
		cfg:       cfg,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Generate builds the report a job describes and stores the rendered file.
func (s *ExportService) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	renderer, ok := s.renderers[job.Params.Format]
	if !ok {
		return nil, fmt.Errorf("unsupported format %s", job.Params.Format)
	}

	var (
		doc     export.Report
		subject string
		err     error
	)
	switch job.Type {
	case models.ReportTypeStudentProgress:
		var report *models.StudentProgressReport
		report, err = s.source.BuildStudentProgress(ctx, job.Params.StudentID, job.Params.Period)
		if err == nil {
			doc, subject = studentProgressDocument(report), report.StudentName
		}
	case models.ReportTypeClass:
		var report *models.ClassReport
		report, err = s.source.BuildClassReport(ctx, job.Params.ClassID, job.Params.Period)
		if err == nil {
			doc, subject = classDocument(report), report.ClassName
		}
	default:
		err = fmt.Errorf("unsupported report type %s", job.Type)
	}
	if err != nil {
		return nil, err
	}

	payload, err := renderer.Render(doc)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", job.Params.Format, err)
	}
	relPath, err := s.storage.Save(s.buildFilename(job, subject, renderer.Extension()), payload)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("export rendered",
		zap.String("job_id", job.ID),
		zap.String("path", relPath),
		zap.Int("bytes", len(payload)),
	)
	return &ExportResult{RelativePath: relPath, Format: job.Params.Format}, nil
}

// SignedURL returns a fresh download link for a stored export.
func (s *ExportService) SignedURL(jobID, relPath string) (string, time.Time, error) {
	token, expiresAt, err := s.signer.Generate(jobID, relPath)
	if err != nil {
		return "", time.Time{}, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return fmt.Sprintf("%s/reports/download/%s", prefix, token), expiresAt, nil
}

// ParseToken validates a download token and returns the job id and stored path.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	parsed, err := s.signer.Parse(token, allowExpired)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return parsed.ResourceID, parsed.Path, parsed.ExpiresAt, nil
}

// ContentType reports the MIME type of a format.
func (s *ExportService) ContentType(format models.ReportFormat) string {
	if r, ok := s.renderers[format]; ok {
		return r.ContentType()
	}
	return "application/octet-stream"
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildFilename(job *models.ReportJob, subject, ext string) string {
	timestamp := s.now().Format("20060102_150405")
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, sanitizeFilename(subject), timestamp, ext)
}

func sanitizeFilename(raw string) string {
	if raw == "" {
		return "na"
	}
	replacer := strings.NewReplacer(" ", "_", "/", "-", "\\", "-", ":", "-", "..", ".", "__", "_")
	result := replacer.Replace(raw)
	if len(result) > 100 {
		return result[:100]
	}
	return result
}

func studentProgressDocument(r *models.StudentProgressReport) export.Report {
	doc := export.Report{
		Title: "Student Progress Report",
		Summary: []export.Field{
			{Label: "Student", Value: r.StudentName},
			{Label: "Period", Value: r.Period},
			{Label: "From", Value: formatReportTime(r.From)},
			{Label: "To", Value: formatReportTime(r.To)},
			{Label: "Overall score", Value: strconv.Itoa(r.OverallScore)},
			{Label: "Generated at", Value: formatReportTime(r.GeneratedAt)},
		},
	}
	doc.Datasets = append(doc.Datasets, practiceDataset("Practice by type", r.Practice))

	assignments := export.Dataset{
		Name:    "Assignments by class",
		Headers: []string{"Class", "Submissions", "Average Score", "Average (%)", "Earned Points", "Total Points"},
	}
	for _, a := range r.AssignmentPerformance {
		assignments.Rows = append(assignments.Rows, map[string]string{
			"Class":         a.ClassName,
			"Submissions":   strconv.Itoa(a.Count),
			"Average Score": formatFloat(a.AverageScore),
			"Average (%)":   formatFloat(a.AveragePercentage),
			"Earned Points": formatFloat(a.EarnedPoints),
			"Total Points":  strconv.Itoa(a.TotalPoints),
		})
	}

	media := export.Dataset{
		Name:    "Media by class",
		Headers: []string{"Class", "Views", "Average Watched (%)"},
	}
	for _, m := range r.MediaConsumption {
		media.Rows = append(media.Rows, map[string]string{
			"Class":               m.ClassName,
			"Views":               strconv.Itoa(m.Count),
			"Average Watched (%)": formatFloat(m.AverageWatchPercentage),
		})
	}

	daily := activityDataset("Daily activity", "Date", r.DailyActivity, func(b models.ActivityBucket) string {
		return fmt.Sprintf("%04d-%02d-%02d", b.Year, b.Month, b.Day)
	})
	weekly := activityDataset("Weekly activity", "Week", r.WeeklyActivity, func(b models.ActivityBucket) string {
		return fmt.Sprintf("%04d-W%02d", b.Year, b.Week)
	})
	doc.Datasets = append(doc.Datasets, assignments, media, daily, weekly)
	return doc
}

func classDocument(r *models.ClassReport) export.Report {
	doc := export.Report{
		Title: "Class Report",
		Summary: []export.Field{
			{Label: "Class", Value: r.ClassName},
			{Label: "Period", Value: r.Period},
			{Label: "Students", Value: strconv.Itoa(r.StudentCount)},
			{Label: "Generated at", Value: formatReportTime(r.GeneratedAt)},
		},
	}

	status := make(map[string]string)
	for _, e := range r.Engagement.TopPerformers {
		status[e.StudentID] = "top performer"
	}
	for _, e := range r.Engagement.Struggling {
		status[e.StudentID] = "struggling"
	}
	engagement := export.Dataset{
		Name:    "Engagement",
		Headers: []string{"Student", "Sessions", "Average Accuracy", "Time Spent (s)", "Status"},
	}
	for _, e := range r.Engagement.Students {
		name := e.StudentName
		if name == "" {
			name = e.StudentID
		}
		engagement.Rows = append(engagement.Rows, map[string]string{
			"Student":          name,
			"Sessions":         strconv.Itoa(e.Count),
			"Average Accuracy": formatFloat(e.AverageAccuracy),
			"Time Spent (s)":   strconv.Itoa(e.TotalTime),
			"Status":           status[e.StudentID],
		})
	}

	assignments := export.Dataset{
		Name:    "Assignments",
		Headers: []string{"Title", "Total Points", "Submissions", "Submission Rate (%)", "Average (%)"},
	}
	for _, a := range r.Assignments {
		assignments.Rows = append(assignments.Rows, map[string]string{
			"Title":               a.Title,
			"Total Points":        strconv.Itoa(a.TotalPoints),
			"Submissions":         strconv.Itoa(a.SubmissionCount),
			"Submission Rate (%)": formatFloat(a.SubmissionRate),
			"Average (%)":         formatFloat(a.AveragePercentage),
		})
	}

	media := export.Dataset{
		Name:    "Media",
		Headers: []string{"Title", "Type", "Views", "Average Watched (%)"},
	}
	for _, m := range r.Media {
		media.Rows = append(media.Rows, map[string]string{
			"Title":               m.Title,
			"Type":                string(m.Type),
			"Views":               strconv.Itoa(m.ViewCount),
			"Average Watched (%)": formatFloat(m.AveragePercentage),
		})
	}

	doc.Datasets = append(doc.Datasets, engagement, assignments, media, practiceDataset("Practice by type", r.Practice))
	return doc
}

func practiceDataset(name string, stats []models.PracticeTypeStats) export.Dataset {
	ds := export.Dataset{
		Name:    name,
		Headers: []string{"Type", "Sessions", "Average Accuracy", "Average Score", "Time Spent (s)", "Completed"},
	}
	for _, st := range stats {
		ds.Rows = append(ds.Rows, map[string]string{
			"Type":             st.Key,
			"Sessions":         strconv.Itoa(st.Count),
			"Average Accuracy": formatFloat(st.AverageAccuracy),
			"Average Score":    formatFloat(st.AverageScore),
			"Time Spent (s)":   strconv.Itoa(st.TotalTimeSpent),
			"Completed":        strconv.Itoa(st.CompletedCount),
		})
	}
	return ds
}

func activityDataset(name, label string, buckets []models.ActivityBucket, key func(models.ActivityBucket) string) export.Dataset {
	ds := export.Dataset{
		Name:    name,
		Headers: []string{label, "Sessions", "Time Spent (s)", "Average Accuracy"},
	}
	for _, b := range buckets {
		ds.Rows = append(ds.Rows, map[string]string{
			label:              key(b),
			"Sessions":         strconv.Itoa(b.Count),
			"Time Spent (s)":   strconv.Itoa(b.TotalTime),
			"Average Accuracy": formatFloat(b.AverageAccuracy),
		})
	}
	return ds
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func formatReportTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
