package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/service"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type fakeClassSrv struct {
	joinErr     error
	joinedCode  string
	removed     [2]string
	listFilter  models.ClassFilter
	createActor service.Actor
}

func (f *fakeClassSrv) Create(_ context.Context, actor service.Actor, req models.CreateClassRequest) (*models.Class, error) {
	f.createActor = actor
	return &models.Class{ID: "c1", Name: req.Name, TeacherID: actor.ID}, nil
}

func (f *fakeClassSrv) List(_ context.Context, _ service.Actor, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	f.listFilter = filter
	return []models.Class{}, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize}, nil
}

func (f *fakeClassSrv) Get(_ context.Context, _ service.Actor, id string) (*models.Class, error) {
	return &models.Class{ID: id}, nil
}

func (f *fakeClassSrv) Update(_ context.Context, _ service.Actor, id string, _ models.UpdateClassRequest) (*models.Class, error) {
	return &models.Class{ID: id}, nil
}

func (f *fakeClassSrv) Delete(context.Context, service.Actor, string) error { return nil }

func (f *fakeClassSrv) Join(_ context.Context, _ service.Actor, req models.JoinClassRequest) (*models.Class, error) {
	f.joinedCode = req.ClassCode
	if f.joinErr != nil {
		return nil, f.joinErr
	}
	return &models.Class{ID: "c1", ClassCode: req.ClassCode}, nil
}

func (f *fakeClassSrv) Leave(context.Context, service.Actor, string) error { return nil }

func (f *fakeClassSrv) RemoveStudent(_ context.Context, _ service.Actor, classID, studentID string) error {
	f.removed = [2]string{classID, studentID}
	return nil
}

func (f *fakeClassSrv) Students(context.Context, service.Actor, string) ([]models.StudentSummary, error) {
	return []models.StudentSummary{}, nil
}

func TestClassHandlerCreate(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)

	c, w := newGinContext(http.MethodPost, "/classes", []byte(`{"name":"Math 7A","max_students":30}`))
	withClaims(c, "t1", models.RoleTeacher)

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "t1", srv.createActor.ID)
	assert.Equal(t, models.RoleTeacher, srv.createActor.Role)
}

func TestClassHandlerJoinClassFull(t *testing.T) {
	srv := &fakeClassSrv{joinErr: appErrors.ErrClassFull}
	handler := NewClassHandler(srv)

	c, w := newGinContext(http.MethodPost, "/classes/join", []byte(`{"class_code":"ABC123"}`))
	withClaims(c, "s1", models.RoleStudent)

	handler.Join(c)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "ABC123", srv.joinedCode)
	assert.Equal(t, appErrors.ErrClassFull.Code, decodeEnvelope(t, w).Error.Code)
}

func TestClassHandlerRemoveStudent(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)

	c, w := newGinContext(http.MethodDelete, "/classes/c1/students/s1", nil)
	c.Params = gin.Params{{Key: "id", Value: "c1"}, {Key: "studentId", Value: "s1"}}
	withClaims(c, "t1", models.RoleTeacher)

	handler.RemoveStudent(c)
	c.Writer.WriteHeaderNow()
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, [2]string{"c1", "s1"}, srv.removed)
}

func TestClassHandlerListPaging(t *testing.T) {
	srv := &fakeClassSrv{}
	handler := NewClassHandler(srv)

	c, w := newGinContext(http.MethodGet, "/classes?page=3&limit=10", nil)
	withClaims(c, "t1", models.RoleTeacher)

	handler.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, srv.listFilter.Page)
	assert.Equal(t, 10, srv.listFilter.PageSize)
}
