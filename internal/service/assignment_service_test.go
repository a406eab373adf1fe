package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type fakeAssignmentRepo struct {
	items       map[string]*models.Assignment
	submissions map[string]models.Submission
	upserts     int
	deleted     []string
}

func newFakeAssignmentRepo() *fakeAssignmentRepo {
	return &fakeAssignmentRepo{items: map[string]*models.Assignment{}, submissions: map[string]models.Submission{}}
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, a *models.Assignment) error {
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := f.items[id]
	if !ok || !a.Active {
		return nil, sql.ErrNoRows
	}
	cp := *a
	cp.Questions = append(models.Questions(nil), a.Questions...)
	cp.Submissions = nil
	return &cp, nil
}

func (f *fakeAssignmentRepo) List(ctx context.Context, filter models.AssignmentFilter) ([]models.Assignment, int, error) {
	var out []models.Assignment
	for _, a := range f.items {
		if a.Active && a.ClassID == filter.ClassID {
			cp := *a
			cp.Questions = append(models.Questions(nil), a.Questions...)
			out = append(out, cp)
		}
	}
	return out, len(out), nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, a *models.Assignment) error {
	cp := *a
	f.items[a.ID] = &cp
	return nil
}

func (f *fakeAssignmentRepo) SoftDelete(ctx context.Context, id string, at time.Time) error {
	if a, ok := f.items[id]; ok {
		a.Active = false
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeAssignmentRepo) UpsertSubmission(ctx context.Context, sub *models.Submission) error {
	f.upserts++
	stored := *sub
	stored.Feedback, stored.GradedAt, stored.GradedBy = nil, nil, nil
	f.submissions[sub.AssignmentID+"/"+sub.StudentID] = stored
	return nil
}

func (f *fakeAssignmentRepo) UpdateGrade(ctx context.Context, sub *models.Submission) error {
	key := sub.AssignmentID + "/" + sub.StudentID
	if _, ok := f.submissions[key]; !ok {
		return sql.ErrNoRows
	}
	f.submissions[key] = *sub
	return nil
}

func (f *fakeAssignmentRepo) GetSubmission(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	sub, ok := f.submissions[assignmentID+"/"+studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &sub, nil
}

func (f *fakeAssignmentRepo) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	var out []models.Submission
	for _, sub := range f.submissions {
		if sub.AssignmentID == assignmentID {
			out = append(out, sub)
		}
	}
	return out, nil
}

type assignmentFixture struct {
	svc     *AssignmentService
	repo    *fakeAssignmentRepo
	cache   *fakeCache
	metrics *MetricsService
}

func newAssignmentFixture() *assignmentFixture {
	classes := newFakeClassRepo(activeClass("c1", "t1", 10))
	classes.enrol("c1", "s1")
	repo := newFakeAssignmentRepo()
	cache := newFakeCache()
	metrics := NewMetricsService()
	svc := NewAssignmentService(repo, classes, NewCacheService(cache, metrics, time.Minute, nil, true), metrics, nil, nil)
	return &assignmentFixture{svc: svc, repo: repo, cache: cache, metrics: metrics}
}

func quizRequest() models.CreateAssignmentRequest {
	return models.CreateAssignmentRequest{
		Title:   " Capitals ",
		ClassID: "c1",
		Questions: []models.Question{
			{ID: "q1", Text: "Capital of France?", Type: models.QuestionShortAnswer, CorrectAnswer: "Paris", Points: 3},
			{ID: "q2", Text: "The sky is green", Type: models.QuestionTrueFalse, CorrectAnswer: "false", Points: 1},
		},
	}
}

func TestAssignmentCreateComputesTotals(t *testing.T) {
	f := newAssignmentFixture()
	a, err := f.svc.Create(context.Background(), actorTeacher, quizRequest())
	require.NoError(t, err)
	assert.Equal(t, "Capitals", a.Title)
	assert.Equal(t, 4, a.TotalPoints)
	assert.True(t, a.Active)

	_, err = f.svc.Create(context.Background(), actorTeacher2, quizRequest())
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	bad := quizRequest()
	bad.Questions[0].Points = 0
	_, err = f.svc.Create(context.Background(), actorTeacher, bad)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAssignmentStudentsDoNotSeeAnswers(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, actorTeacher, quizRequest())
	require.NoError(t, err)

	got, err := f.svc.Get(ctx, actorStudent, a.ID)
	require.NoError(t, err)
	for _, q := range got.Questions {
		assert.Empty(t, q.CorrectAnswer)
	}

	list, _, err := f.svc.List(ctx, actorStudent, models.AssignmentFilter{ClassID: "c1"})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Empty(t, list[0].Questions[0].CorrectAnswer)

	asTeacher, err := f.svc.Get(ctx, actorTeacher, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "Paris", asTeacher.Questions[0].CorrectAnswer)

	_, err = f.svc.Get(ctx, actorStudent2, a.ID)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentSubmitGradesAndReplaces(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, actorTeacher, quizRequest())
	require.NoError(t, err)
	f.cache.store["reports:class:c1:month:1"] = 1

	res, err := f.svc.Submit(ctx, actorStudent, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{
		{QuestionID: "q1", Answer: "  paris "},
		{QuestionID: "q2", Answer: "true"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 3.0, res.Score)
	assert.Equal(t, 75, res.Percentage)
	firstID := res.Submission.ID
	assert.Empty(t, f.cache.store)

	res, err = f.svc.Submit(ctx, actorStudent, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{
		{QuestionID: "q1", Answer: "Paris"},
		{QuestionID: "q2", Answer: "FALSE"},
	}})
	require.NoError(t, err)
	assert.Equal(t, 100, res.Percentage)
	assert.Equal(t, firstID, res.Submission.ID)
	assert.Len(t, f.repo.submissions, 1)
	assert.Equal(t, uint64(2), f.metrics.Snapshot().GradedSubmissions)

	_, err = f.svc.Submit(ctx, actorStudent, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{{QuestionID: "q9", Answer: "x"}}})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(ctx, actorStudent2, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{{QuestionID: "q1", Answer: "x"}}})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
	_, err = f.svc.Submit(ctx, actorTeacher, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{{QuestionID: "q1", Answer: "x"}}})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestAssignmentSubmitRejectsRepeatedQuestion(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, actorTeacher, quizRequest())
	require.NoError(t, err)

	_, err = f.svc.Submit(ctx, actorStudent, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{
		{QuestionID: "q1", Answer: "paris"},
		{QuestionID: "q1", Answer: "paris"},
		{QuestionID: "q1", Answer: "paris"},
	}})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	assert.Zero(t, f.repo.upserts)
	assert.Zero(t, f.metrics.Snapshot().GradedSubmissions)
}

func TestAssignmentManualGrade(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, actorTeacher, quizRequest())
	require.NoError(t, err)

	score := 2.0
	_, err = f.svc.Grade(ctx, actorTeacher, a.ID, models.GradeSubmissionRequest{StudentID: "s1", Score: &score})
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.Submit(ctx, actorStudent, a.ID, models.SubmitAssignmentRequest{Answers: []models.Answer{{QuestionID: "q1", Answer: "Lyon"}}})
	require.NoError(t, err)

	sub, err := f.svc.Grade(ctx, actorTeacher, a.ID, models.GradeSubmissionRequest{StudentID: "s1", Score: &score, Feedback: strPtr("close")})
	require.NoError(t, err)
	assert.Equal(t, 2.0, sub.Score)
	assert.Equal(t, 50, sub.Percentage)
	require.NotNil(t, sub.GradedBy)
	assert.Equal(t, "t1", *sub.GradedBy)

	mine, err := f.svc.MySubmission(ctx, actorStudent, a.ID)
	require.NoError(t, err)
	assert.Equal(t, "close", *mine.Feedback)

	tooHigh := 9.0
	_, err = f.svc.Grade(ctx, actorTeacher, a.ID, models.GradeSubmissionRequest{StudentID: "s1", Score: &tooHigh})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
	_, err = f.svc.Grade(ctx, actorTeacher2, a.ID, models.GradeSubmissionRequest{StudentID: "s1", Score: &score})
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	subs, err := f.svc.ListSubmissions(ctx, actorTeacher, a.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)
}

func TestAssignmentUpdateRecomputesAndDelete(t *testing.T) {
	f := newAssignmentFixture()
	ctx := context.Background()
	a, err := f.svc.Create(ctx, actorTeacher, quizRequest())
	require.NoError(t, err)

	updated, err := f.svc.Update(ctx, actorTeacher, a.ID, models.UpdateAssignmentRequest{Questions: []models.Question{
		{Text: "2+2", Type: models.QuestionShortAnswer, CorrectAnswer: "4", Points: 10},
	}})
	require.NoError(t, err)
	assert.Equal(t, 10, updated.TotalPoints)
	require.Len(t, updated.Questions, 1)
	assert.NotEmpty(t, updated.Questions[0].ID)

	require.NoError(t, f.svc.Delete(ctx, actorTeacher, a.ID))
	_, err = f.svc.Get(ctx, actorTeacher, a.ID)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	_, err = f.svc.MySubmission(ctx, actorStudent, "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
