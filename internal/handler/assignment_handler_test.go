package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/scoring"
	"github.com/noah-isme/edu-platform-api/internal/service"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type fakeAssignmentSrv struct {
	submitted models.SubmitAssignmentRequest
	graded    models.GradeSubmissionRequest
	gradeErr  error
	filter    models.AssignmentFilter
}

func (f *fakeAssignmentSrv) Create(_ context.Context, _ service.Actor, req models.CreateAssignmentRequest) (*models.Assignment, error) {
	return &models.Assignment{ID: "a1", Title: req.Title}, nil
}

func (f *fakeAssignmentSrv) List(_ context.Context, _ service.Actor, filter models.AssignmentFilter) ([]models.Assignment, *models.Pagination, error) {
	f.filter = filter
	return []models.Assignment{}, &models.Pagination{Page: 1}, nil
}

func (f *fakeAssignmentSrv) Get(_ context.Context, _ service.Actor, id string) (*models.Assignment, error) {
	return &models.Assignment{ID: id}, nil
}

func (f *fakeAssignmentSrv) Update(_ context.Context, _ service.Actor, id string, _ models.UpdateAssignmentRequest) (*models.Assignment, error) {
	return &models.Assignment{ID: id}, nil
}

func (f *fakeAssignmentSrv) Delete(context.Context, service.Actor, string) error { return nil }

func (f *fakeAssignmentSrv) Submit(_ context.Context, actor service.Actor, id string, req models.SubmitAssignmentRequest) (*scoring.GradeResult, error) {
	f.submitted = req
	return &scoring.GradeResult{
		Submission: models.Submission{AssignmentID: id, StudentID: actor.ID, Score: 5, Percentage: 50},
		Score:      5,
		Percentage: 50,
	}, nil
}

func (f *fakeAssignmentSrv) Grade(_ context.Context, _ service.Actor, id string, req models.GradeSubmissionRequest) (*models.Submission, error) {
	f.graded = req
	if f.gradeErr != nil {
		return nil, f.gradeErr
	}
	return &models.Submission{AssignmentID: id, StudentID: req.StudentID, Score: *req.Score}, nil
}

func (f *fakeAssignmentSrv) ListSubmissions(context.Context, service.Actor, string) ([]models.Submission, error) {
	return []models.Submission{}, nil
}

func (f *fakeAssignmentSrv) MySubmission(context.Context, service.Actor, string) (*models.Submission, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
}

func TestAssignmentHandlerSubmit(t *testing.T) {
	srv := &fakeAssignmentSrv{}
	handler := NewAssignmentHandler(srv)

	c, w := newGinContext(http.MethodPost, "/assignments/a1/submit", []byte(`{"answers":[{"question_id":"q1","answer":"B"}]}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, "s1", models.RoleStudent)

	handler.Submit(c)
	require.Equal(t, http.StatusOK, w.Code)
	require.Len(t, srv.submitted.Answers, 1)
	assert.Equal(t, "q1", srv.submitted.Answers[0].QuestionID)
	assert.Contains(t, w.Body.String(), `"percentage":50`)
}

func TestAssignmentHandlerGradeRejectsOverMax(t *testing.T) {
	srv := &fakeAssignmentSrv{gradeErr: appErrors.Clone(appErrors.ErrValidation, "score exceeds total points")}
	handler := NewAssignmentHandler(srv)

	c, w := newGinContext(http.MethodPost, "/assignments/a1/grade", []byte(`{"student_id":"s1","score":12}`))
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, "t1", models.RoleTeacher)

	handler.Grade(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	require.NotNil(t, srv.graded.Score)
	assert.Equal(t, 12.0, *srv.graded.Score)
}

func TestAssignmentHandlerListRequiresClass(t *testing.T) {
	srv := &fakeAssignmentSrv{}
	handler := NewAssignmentHandler(srv)

	c, w := newGinContext(http.MethodGet, "/assignments", nil)
	withClaims(c, "s1", models.RoleStudent)
	handler.List(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	c, w = newGinContext(http.MethodGet, "/assignments?class_id=c1", nil)
	withClaims(c, "s1", models.RoleStudent)
	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "c1", srv.filter.ClassID)
}

func TestAssignmentHandlerMySubmissionNotFound(t *testing.T) {
	handler := NewAssignmentHandler(&fakeAssignmentSrv{})

	c, w := newGinContext(http.MethodGet, "/assignments/a1/submission", nil)
	c.Params = gin.Params{{Key: "id", Value: "a1"}}
	withClaims(c, "s1", models.RoleStudent)

	handler.MySubmission(c)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
