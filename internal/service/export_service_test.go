package service

import (
	"context"
	"encoding/csv"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/pkg/storage"
)

type reportSourceStub struct {
	progress *models.StudentProgressReport
	class    *models.ClassReport
	err      error
	periods  []string
}

func (r *reportSourceStub) BuildStudentProgress(ctx context.Context, studentID, period string) (*models.StudentProgressReport, error) {
	r.periods = append(r.periods, period)
	if r.err != nil {
		return nil, r.err
	}
	return r.progress, nil
}

func (r *reportSourceStub) BuildClassReport(ctx context.Context, classID, period string) (*models.ClassReport, error) {
	r.periods = append(r.periods, period)
	if r.err != nil {
		return nil, r.err
	}
	return r.class, nil
}

func sampleSource() *reportSourceStub {
	generated := time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC)
	return &reportSourceStub{
		progress: &models.StudentProgressReport{
			StudentID:    "s1",
			StudentName:  "Sari Dewi",
			Period:       "month",
			From:         generated.AddDate(0, 0, -30),
			To:           generated,
			OverallScore: 76,
			Practice:     []models.PracticeTypeStats{{Key: "typing", Count: 2, AverageAccuracy: 85, AverageScore: 85, TotalTimeSpent: 90, CompletedCount: 1}},
			AssignmentPerformance: []models.ClassAssignmentPerformance{
				{ClassID: "c1", ClassName: "Math", Count: 1, AverageScore: 6, AveragePercentage: 60, TotalPoints: 10, EarnedPoints: 6},
			},
			MediaConsumption: []models.ClassMediaConsumption{{ClassID: "c1", ClassName: "Math", Count: 1, AverageWatchPercentage: 100, TotalWatchPercentage: 100}},
			DailyActivity:    []models.ActivityBucket{{Year: 2024, Month: 5, Day: 14, Count: 1, TotalTime: 60, AverageAccuracy: 90}},
			WeeklyActivity:   []models.ActivityBucket{{Year: 2024, Week: 20, Count: 1, TotalTime: 60, AverageAccuracy: 90}},
			GeneratedAt:      generated,
		},
		class: &models.ClassReport{
			ClassID:      "c1",
			ClassName:    "Math 7A",
			Period:       "week",
			StudentCount: 4,
			Engagement: models.ClassEngagement{
				Students: []models.StudentEngagement{
					{StudentID: "s1", StudentName: "Sari", Count: 3, AverageAccuracy: 85},
					{StudentID: "s2", Count: 1, AverageAccuracy: 40},
				},
				TopPerformers: []models.StudentEngagement{{StudentID: "s1"}},
				Struggling:    []models.StudentEngagement{{StudentID: "s2"}},
			},
			Assignments: []models.AssignmentSubmissionStats{{AssignmentID: "a1", Title: "Quiz", TotalPoints: 10, SubmissionCount: 3, SubmissionRate: 75}},
			Media:       []models.MediaViewStats{{MediaID: "m1", Title: "Intro", Type: models.MediaTypeVideo, ViewCount: 2, AveragePercentage: 55}},
			GeneratedAt: generated,
		},
	}
}

func newExportServiceForTest(t *testing.T, source reportSource) (*ExportService, *storage.LocalStorage) {
	t.Helper()
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(source, store, signer, ExportConfig{APIPrefix: "/api/v1/", ResultTTL: time.Hour}, nil)
	svc.now = func() time.Time { return time.Date(2024, 5, 15, 12, 0, 0, 0, time.UTC) }
	return svc, store
}

func readCSV(t *testing.T, svc *ExportService, relPath string) [][]string {
	t.Helper()
	file, err := svc.Open(relPath)
	require.NoError(t, err)
	defer file.Close()
	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		records = append(records, rec)
	}
	return records
}

func TestExportGenerateStudentProgressCSV(t *testing.T) {
	source := sampleSource()
	svc, _ := newExportServiceForTest(t, source)

	result, err := svc.Generate(context.Background(), &models.ReportJob{
		ID:     "job-1",
		Type:   models.ReportTypeStudentProgress,
		Params: models.ReportJobParams{StudentID: "s1", Period: "month", Format: models.ReportFormatCSV},
	})
	require.NoError(t, err)
	assert.Equal(t, "student_progress_Sari_Dewi_20240515_120000.csv", result.RelativePath)
	assert.Equal(t, []string{"month"}, source.periods)

	var joined []string
	for _, rec := range readCSV(t, svc, result.RelativePath) {
		joined = append(joined, strings.Join(rec, "|"))
	}
	content := strings.Join(joined, "\n")
	assert.Contains(t, content, "Overall score|76")
	assert.Contains(t, content, "typing|2|85.00|85.00|90|1")
	assert.Contains(t, content, "Math|1|6.00|60.00|6.00|10")
	assert.Contains(t, content, "2024-05-14|1|60|90.00")
	assert.Contains(t, content, "2024-W20|1|60|90.00")
}

func TestExportGenerateClassFormats(t *testing.T) {
	for _, format := range []models.ReportFormat{models.ReportFormatPDF, models.ReportFormatXLSX} {
		t.Run(string(format), func(t *testing.T) {
			svc, _ := newExportServiceForTest(t, sampleSource())
			result, err := svc.Generate(context.Background(), &models.ReportJob{
				ID:     "job-2",
				Type:   models.ReportTypeClass,
				Params: models.ReportJobParams{ClassID: "c1", Period: "week", Format: format},
			})
			require.NoError(t, err)
			assert.True(t, strings.HasSuffix(result.RelativePath, "."+string(format)))

			file, err := svc.Open(result.RelativePath)
			require.NoError(t, err)
			info, err := file.Stat()
			require.NoError(t, err)
			file.Close()
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}

func TestExportClassDocumentMarksEngagement(t *testing.T) {
	doc := classDocument(sampleSource().class)
	require.NotEmpty(t, doc.Datasets)
	rows := doc.Datasets[0].Rows
	require.Len(t, rows, 2)
	assert.Equal(t, "top performer", rows[0]["Status"])
	assert.Equal(t, "s2", rows[1]["Student"])
	assert.Equal(t, "struggling", rows[1]["Status"])
}

func TestExportGenerateErrors(t *testing.T) {
	source := sampleSource()
	svc, _ := newExportServiceForTest(t, source)
	ctx := context.Background()

	_, err := svc.Generate(ctx, &models.ReportJob{Type: models.ReportTypeClass, Params: models.ReportJobParams{Format: "docx"}})
	assert.Error(t, err)
	_, err = svc.Generate(ctx, &models.ReportJob{Type: "grades", Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	assert.Error(t, err)

	source.err = errors.New("db down")
	_, err = svc.Generate(ctx, &models.ReportJob{Type: models.ReportTypeClass, Params: models.ReportJobParams{Format: models.ReportFormatCSV}})
	assert.ErrorIs(t, err, source.err)
}

func TestExportSignedURLRoundTrip(t *testing.T) {
	svc, _ := newExportServiceForTest(t, sampleSource())

	url, expiresAt, err := svc.SignedURL("job-1", "class_x.csv")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "/api/v1/reports/download/"))
	assert.True(t, expiresAt.After(time.Now()))

	token := strings.TrimPrefix(url, "/api/v1/reports/download/")
	jobID, relPath, _, err := svc.ParseToken(token, false)
	require.NoError(t, err)
	assert.Equal(t, "job-1", jobID)
	assert.Equal(t, "class_x.csv", relPath)
	assert.Equal(t, "text/csv", svc.ContentType(models.ReportFormatCSV))
	assert.Equal(t, "application/octet-stream", svc.ContentType("docx"))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "na", sanitizeFilename(""))
	assert.Equal(t, "Math_7-A", sanitizeFilename("Math 7/A"))
	assert.Len(t, sanitizeFilename(strings.Repeat("x", 150)), 100)
}
