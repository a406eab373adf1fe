package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/edu-platform-api/internal/models"
	"github.com/noah-isme/edu-platform-api/internal/repository"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	createErr        error
	created          []*models.User
	classIDs         []string
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.userByID != nil && m.userByID.ID == id {
		return m.userByID, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockAuthRepo) Create(ctx context.Context, user *models.User) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, user)
	return nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) ClassIDs(ctx context.Context, studentID string) ([]string, error) {
	return m.classIDs, nil
}

func newAuthService(repo *mockAuthRepo) *AuthService {
	return NewAuthService(repo, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, Issuer: "edu-test"})
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)
	parent := "Parent@Example.com"

	res, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:       "kid@example.com",
		Password:    "secret1",
		FullName:    "Kid One",
		Role:        models.RoleStudent,
		ParentEmail: &parent,
	})
	require.NoError(t, err)
	require.Len(t, repo.created, 1)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.Equal(t, "parent@example.com", *repo.created[0].ParentEmail)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.created[0].PasswordHash), []byte("secret1")))
}

func TestAuthServiceRegisterTeacherDropsParentEmail(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthService(repo)
	parent := "parent@example.com"

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email: "t@example.com", Password: "secret1", FullName: "Teach", Role: models.RoleTeacher, ParentEmail: &parent,
	})
	require.NoError(t, err)
	assert.Nil(t, repo.created[0].ParentEmail)
}

func TestAuthServiceRegisterDuplicateAndInvalid(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{createErr: repository.ErrDuplicate})
	_, err := svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1", FullName: "Ann", Role: models.RoleStudent})
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)

	_, err = svc.Register(context.Background(), models.RegisterRequest{Email: "a@example.com", Password: "secret1", FullName: "Ann", Role: "admin"})
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleTeacher}}
	svc := newAuthService(repo)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "User@Example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.Equal(t, models.RoleTeacher, res.User.Role)
	assert.True(t, repo.lastLoginUpdated)
}

func TestAuthServiceLoginFailures(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)

	inactive := newAuthService(&mockAuthRepo{userByEmail: &models.User{ID: "1", PasswordHash: string(password), Active: false}})
	_, err := inactive.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErrors.FromError(err).Code)

	wrong := newAuthService(&mockAuthRepo{userByEmail: &models.User{ID: "1", PasswordHash: string(password), Active: true}})
	_, err = wrong.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)

	missing := newAuthService(&mockAuthRepo{})
	_, err = missing.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceMeIncludesClassesForStudents(t *testing.T) {
	repo := &mockAuthRepo{userByID: &models.User{ID: "s1", Role: models.RoleStudent}, classIDs: []string{"c1", "c2"}}
	svc := newAuthService(repo)

	profile, err := svc.Me(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, []string{"c1", "c2"}, profile.ClassIDs)

	_, err = svc.Me(context.Background(), "nobody")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthService(&mockAuthRepo{})
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleParent}
	issued, err := svc.issue(user)
	require.NoError(t, err)
	token := issued.AccessToken

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleParent, claims.Role)
	assert.Equal(t, "edu-test", claims.Issuer)

	foreign := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "secret", Issuer: "someone-else"})
	_, err = foreign.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	other := NewAuthService(&mockAuthRepo{}, nil, nil, AuthConfig{AccessTokenSecret: "different"})
	_, err = other.ValidateToken(token)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &models.JWTClaims{UserID: "u1", Role: models.RoleTeacher})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = svc.ValidateToken(unsigned)
	assert.Error(t, err)
}
