package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/edu-platform-api/internal/models"
	appErrors "github.com/noah-isme/edu-platform-api/pkg/errors"
)

type fakeClassRepo struct {
	classes    map[string]*models.Class
	members    map[string]map[string]time.Time
	codesTaken map[string]bool
	createErrs []error
	created    []*models.Class
	updated    []*models.Class
	deleted    []string
}

func newFakeClassRepo(classes ...*models.Class) *fakeClassRepo {
	repo := &fakeClassRepo{
		classes:    map[string]*models.Class{},
		members:    map[string]map[string]time.Time{},
		codesTaken: map[string]bool{},
	}
	for _, c := range classes {
		repo.classes[c.ID] = c
	}
	return repo
}

func (f *fakeClassRepo) enrol(classID string, studentIDs ...string) {
	if f.members[classID] == nil {
		f.members[classID] = map[string]time.Time{}
	}
	for _, id := range studentIDs {
		f.members[classID][id] = time.Now()
	}
}

func (f *fakeClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	c, ok := f.classes[id]
	if !ok || !c.Active {
		return nil, sql.ErrNoRows
	}
	cp := *c
	cp.StudentCount = len(f.members[id])
	return &cp, nil
}

func (f *fakeClassRepo) IsMember(ctx context.Context, classID, studentID string) (bool, error) {
	_, ok := f.members[classID][studentID]
	return ok, nil
}

func (f *fakeClassRepo) Create(ctx context.Context, class *models.Class) error {
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	cp := *class
	f.classes[class.ID] = &cp
	f.codesTaken[class.ClassCode] = true
	f.created = append(f.created, &cp)
	return nil
}

func (f *fakeClassRepo) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	for _, c := range f.classes {
		if c.Active && c.ClassCode == strings.ToUpper(code) {
			return f.FindByID(ctx, c.ID)
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeClassRepo) ExistsByCode(ctx context.Context, code string) (bool, error) {
	return f.codesTaken[code], nil
}

func (f *fakeClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	var out []models.Class
	for id, c := range f.classes {
		if !c.Active {
			continue
		}
		if filter.TeacherID != "" && c.TeacherID != filter.TeacherID {
			continue
		}
		if filter.StudentID != "" {
			if _, ok := f.members[id][filter.StudentID]; !ok {
				continue
			}
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (f *fakeClassRepo) Update(ctx context.Context, class *models.Class) error {
	cp := *class
	f.classes[class.ID] = &cp
	f.updated = append(f.updated, &cp)
	return nil
}

func (f *fakeClassRepo) Delete(ctx context.Context, id string, at time.Time) error {
	if c, ok := f.classes[id]; ok {
		c.Active = false
	}
	f.deleted = append(f.deleted, id)
	return nil
}

func (f *fakeClassRepo) AddStudent(ctx context.Context, classID, studentID string, maxStudents int, at time.Time) (bool, error) {
	if _, ok := f.members[classID][studentID]; ok {
		return false, nil
	}
	if maxStudents > 0 && len(f.members[classID]) >= maxStudents {
		return false, nil
	}
	f.enrol(classID, studentID)
	return true, nil
}

func (f *fakeClassRepo) RemoveStudent(ctx context.Context, classID, studentID string) (bool, error) {
	if _, ok := f.members[classID][studentID]; !ok {
		return false, nil
	}
	delete(f.members[classID], studentID)
	return true, nil
}

func (f *fakeClassRepo) ListStudents(ctx context.Context, classID string) ([]models.StudentSummary, error) {
	var out []models.StudentSummary
	for id, joined := range f.members[classID] {
		out = append(out, models.StudentSummary{ID: id, FullName: "Student " + id, JoinedAt: joined})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeClassRepo) CountStudents(ctx context.Context, classID string) (int, error) {
	return len(f.members[classID]), nil
}

func (f *fakeClassRepo) TeachesStudent(ctx context.Context, teacherID, studentID string) (bool, error) {
	for id, c := range f.classes {
		if c.Active && c.TeacherID == teacherID {
			if _, ok := f.members[id][studentID]; ok {
				return true, nil
			}
		}
	}
	return false, nil
}

type fakeUserRepo struct {
	users    map[string]*models.User
	classIDs map[string][]string
}

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	repo := &fakeUserRepo{users: map[string]*models.User{}, classIDs: map[string][]string{}}
	for _, u := range users {
		repo.users[u.ID] = u
	}
	return repo
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := f.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return u, nil
}

func (f *fakeUserRepo) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	names := map[string]string{}
	for _, id := range ids {
		if u, ok := f.users[id]; ok {
			names[id] = u.FullName
		}
	}
	return names, nil
}

func (f *fakeUserRepo) ListChildren(ctx context.Context, parentEmail string) ([]models.User, error) {
	var out []models.User
	for _, u := range f.users {
		if u.Role == models.RoleStudent && u.ParentEmail != nil && strings.EqualFold(*u.ParentEmail, parentEmail) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName < out[j].FullName })
	return out, nil
}

func (f *fakeUserRepo) ClassIDs(ctx context.Context, studentID string) ([]string, error) {
	return f.classIDs[studentID], nil
}

type fakeCache struct {
	store       map[string]interface{}
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{store: map[string]interface{}{}}
}

func (f *fakeCache) Get(ctx context.Context, key string, dest interface{}) error {
	v, ok := f.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dest)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	f.store[key] = value
	return nil
}

func (f *fakeCache) DeleteByPattern(ctx context.Context, pattern string) error {
	f.invalidated = append(f.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for k := range f.store {
		if strings.HasPrefix(k, prefix) {
			delete(f.store, k)
		}
	}
	return nil
}

func strPtr(s string) *string { return &s }

func intPtr(i int) *int { return &i }

var (
	actorTeacher  = Actor{ID: "t1", Role: models.RoleTeacher, Email: "t1@example.com"}
	actorTeacher2 = Actor{ID: "t2", Role: models.RoleTeacher, Email: "t2@example.com"}
	actorStudent  = Actor{ID: "s1", Role: models.RoleStudent, Email: "s1@example.com"}
	actorStudent2 = Actor{ID: "s2", Role: models.RoleStudent, Email: "s2@example.com"}
	actorParent   = Actor{ID: "p1", Role: models.RoleParent, Email: "parent@example.com"}
)

func studentUser(id, name string, parentEmail *string) *models.User {
	return &models.User{ID: id, FullName: name, Email: id + "@example.com", Role: models.RoleStudent, ParentEmail: parentEmail}
}

func activeClass(id, teacherID string, max int) *models.Class {
	return &models.Class{ID: id, Name: "Class " + id, TeacherID: teacherID, ClassCode: strings.ToUpper("CODE" + id)[:6], MaxStudents: max, Active: true}
}
