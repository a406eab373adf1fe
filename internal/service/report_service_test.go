package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/repository"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
	"github.com/noah-isme/edu-platform-api/pkg/jobs"
)

type reportRepoStub struct {
	jobs     map[string]*models.ReportJob
	finished []models.ReportJob
}

func newReportRepoStub() *reportRepoStub {
	return &reportRepoStub{jobs: map[string]*models.ReportJob{}}
}

func (r *reportRepoStub) Create(ctx context.Context, job *models.ReportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	r.jobs[job.ID] = job
	return nil
}

func (r *reportRepoStub) GetByID(ctx context.Context, id string) (*models.ReportJob, error) {
	job, ok := r.jobs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return job, nil
}

func (r *reportRepoStub) Update(ctx context.Context, id string, upd repository.ReportJobUpdate) error {
	job, ok := r.jobs[id]
	if !ok {
		return sql.ErrNoRows
	}
	if upd.Status != nil {
		job.Status = *upd.Status
	}
	if upd.Progress != nil {
		job.Progress = *upd.Progress
	}
	if upd.ResultPath != nil {
		job.ResultPath = upd.ResultPath
	}
	if upd.ErrorMessage != nil {
		job.ErrorMessage = upd.ErrorMessage
	}
	if upd.FinishedAt != nil {
		job.FinishedAt = upd.FinishedAt
	}
	return nil
}

func (r *reportRepoStub) ListQueued(ctx context.Context, limit int) ([]models.ReportJob, error) {
	var queued []models.ReportJob
	for _, job := range r.jobs {
		if job.Status == models.ReportStatusQueued {
			queued = append(queued, *job)
		}
	}
	return queued, nil
}

func (r *reportRepoStub) ListFinishedBefore(ctx context.Context, cutoff time.Time, limit int) ([]models.ReportJob, error) {
	return r.finished, nil
}

type queueStub struct {
	jobs []jobs.Job
	err  error
}

func (q *queueStub) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type reportFixture struct {
	svc      *ReportService
	repo     *reportRepoStub
	queue    *queueStub
	exporter *ExportService
}

func newReportFixture(t *testing.T) *reportFixture {
	t.Helper()
	classes := newFakeClassRepo(activeClass("c1", "t1", 10))
	classes.enrol("c1", "s1")
	users := newFakeUserRepo(studentUser("s1", "Sari", strPtr("parent@example.com")))
	repo := newReportRepoStub()
	queue := &queueStub{}
	exporter, _ := newExportServiceForTest(t, sampleSource())
	svc := NewReportService(repo, users, classes, queue, exporter, nil, zap.NewNop(), ReportServiceConfig{
		ResultTTL:       time.Hour,
		CleanupInterval: time.Hour,
	})
	return &reportFixture{svc: svc, repo: repo, queue: queue, exporter: exporter}
}

func TestReportServiceCreateJob(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateJob(ctx, actorParent, models.CreateReportRequest{
		Type:      models.ReportTypeStudentProgress,
		StudentID: "s1",
		Format:    models.ReportFormatPDF,
	})
	require.NoError(t, err)
	require.NotEmpty(t, resp.ID)
	assert.Equal(t, models.ReportStatusQueued, resp.Status)
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, resp.ID, f.queue.jobs[0].ID)
	stored := f.repo.jobs[resp.ID]
	assert.Equal(t, "month", stored.Params.Period)
	assert.Equal(t, "s1", stored.Params.StudentID)
	assert.Equal(t, actorParent.ID, stored.CreatedBy)

	_, err = f.svc.CreateJob(ctx, actorTeacher, models.CreateReportRequest{
		Type:    models.ReportTypeClass,
		ClassID: "c1",
		Period:  "week",
		Format:  models.ReportFormatXLSX,
	})
	require.NoError(t, err)
}

func TestReportServiceCreateJobRejects(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	_, err := f.svc.CreateJob(ctx, actorTeacher, models.CreateReportRequest{Type: models.ReportTypeClass, Format: models.ReportFormatCSV})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(ctx, actorTeacher, models.CreateReportRequest{Type: models.ReportTypeClass, ClassID: "c1", Format: "docx"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(ctx, actorTeacher2, models.CreateReportRequest{Type: models.ReportTypeClass, ClassID: "c1", Format: models.ReportFormatCSV})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	_, err = f.svc.CreateJob(ctx, actorStudent2, models.CreateReportRequest{Type: models.ReportTypeStudentProgress, StudentID: "s1", Format: models.ReportFormatCSV})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	assert.Empty(t, f.queue.jobs)
}

func TestReportServiceCreateJobEnqueueFailure(t *testing.T) {
	f := newReportFixture(t)
	f.queue.err = jobs.ErrQueueStopped

	_, err := f.svc.CreateJob(context.Background(), actorStudent, models.CreateReportRequest{
		Type:      models.ReportTypeStudentProgress,
		StudentID: "s1",
		Format:    models.ReportFormatCSV,
	})
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
	require.Len(t, f.repo.jobs, 1)
	for _, job := range f.repo.jobs {
		assert.Equal(t, models.ReportStatusFailed, job.Status)
		assert.NotNil(t, job.FinishedAt)
	}
}

func TestReportServiceStatusAndDownload(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()

	resp, err := f.svc.CreateJob(ctx, actorTeacher, models.CreateReportRequest{Type: models.ReportTypeClass, ClassID: "c1", Format: models.ReportFormatCSV})
	require.NoError(t, err)

	status, err := f.svc.GetStatus(ctx, actorTeacher, resp.ID)
	require.NoError(t, err)
	assert.Nil(t, status.DownloadURL)

	_, err = f.svc.GetStatus(ctx, actorTeacher2, resp.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	_, err = f.svc.GetStatus(ctx, actorTeacher, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	worker := NewReportWorker(f.repo, f.exporter, 2, nil)
	require.NoError(t, worker.Handle(ctx, jobs.Job{ID: resp.ID}))

	status, err = f.svc.GetStatus(ctx, actorTeacher, resp.ID)
	require.NoError(t, err)
	assert.Equal(t, models.ReportStatusFinished, status.Status)
	assert.Equal(t, 100, status.Progress)
	require.NotNil(t, status.DownloadURL)
	require.NotNil(t, status.ExpiresAt)

	token := (*status.DownloadURL)[strings.LastIndex(*status.DownloadURL, "/")+1:]
	download, err := f.svc.ResolveDownload(ctx, token)
	require.NoError(t, err)
	defer download.File.Close()
	assert.Equal(t, "text/csv", download.ContentType)
	assert.True(t, strings.HasPrefix(download.Filename, "class_Math_7A_"))

	_, err = f.svc.ResolveDownload(ctx, token+"x")
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestReportServiceRecoverPendingJobs(t *testing.T) {
	f := newReportFixture(t)
	f.repo.jobs["queued"] = &models.ReportJob{ID: "queued", Type: models.ReportTypeClass, Status: models.ReportStatusQueued}
	f.repo.jobs["done"] = &models.ReportJob{ID: "done", Type: models.ReportTypeClass, Status: models.ReportStatusFinished}

	f.svc.RecoverPendingJobs(context.Background())
	require.Len(t, f.queue.jobs, 1)
	assert.Equal(t, "queued", f.queue.jobs[0].ID)
}

func TestReportServiceCleanupExpired(t *testing.T) {
	f := newReportFixture(t)
	ctx := context.Background()
	result, err := f.exporter.Generate(ctx, &models.ReportJob{
		ID:     "old",
		Type:   models.ReportTypeClass,
		Params: models.ReportJobParams{ClassID: "c1", Format: models.ReportFormatCSV},
	})
	require.NoError(t, err)
	f.repo.finished = []models.ReportJob{{ID: "old", ResultPath: &result.RelativePath}, {ID: "no-file"}}

	f.svc.cleanupExpired(ctx)
	_, err = f.exporter.Open(result.RelativePath)
	assert.Error(t, err)
}

type exportStub struct {
	result *ExportResult
	err    error
}

func (e exportStub) Generate(ctx context.Context, job *models.ReportJob) (*ExportResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func queuedJob(id string) *models.ReportJob {
	return &models.ReportJob{
		ID:     id,
		Type:   models.ReportTypeStudentProgress,
		Params: models.ReportJobParams{StudentID: "s1", Format: models.ReportFormatCSV},
		Status: models.ReportStatusQueued,
	}
}

func TestReportWorkerHandleSuccess(t *testing.T) {
	repo := newReportRepoStub()
	repo.jobs["job-1"] = queuedJob("job-1")
	worker := NewReportWorker(repo, exportStub{result: &ExportResult{RelativePath: "student_progress_x.csv"}}, 3, zap.NewNop())

	require.NoError(t, worker.Handle(context.Background(), jobs.Job{ID: "job-1"}))
	job := repo.jobs["job-1"]
	assert.Equal(t, models.ReportStatusFinished, job.Status)
	assert.Equal(t, 100, job.Progress)
	require.NotNil(t, job.ResultPath)
	assert.Equal(t, "student_progress_x.csv", *job.ResultPath)
	assert.NotNil(t, job.FinishedAt)
}

func TestReportWorkerHandleFailureRetries(t *testing.T) {
	repo := newReportRepoStub()
	repo.jobs["job-1"] = queuedJob("job-1")
	worker := NewReportWorker(repo, exportStub{err: errors.New("boom")}, 2, zap.NewNop())

	err := worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 1})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusQueued, repo.jobs["job-1"].Status)
	assert.Equal(t, "boom", *repo.jobs["job-1"].ErrorMessage)

	err = worker.Handle(context.Background(), jobs.Job{ID: "job-1", Attempt: 2})
	require.Error(t, err)
	assert.Equal(t, models.ReportStatusFailed, repo.jobs["job-1"].Status)
	assert.NotNil(t, repo.jobs["job-1"].FinishedAt)
}
