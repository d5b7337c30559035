package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type mockApplicationRepo struct {
	applications map[string]models.Application
	approved     map[string]bool
	created      *models.Application
	decided      map[string]models.ApplicationStatus
	updateOK     bool
}

func (m *mockApplicationRepo) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	var out []models.Application
	for _, a := range m.applications {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		out = append(out, a)
	}
	return out, len(out), nil
}

func (m *mockApplicationRepo) FindByID(ctx context.Context, id string) (*models.Application, error) {
	if a, ok := m.applications[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockApplicationRepo) ExistsApproved(ctx context.Context, studentID, courseCode, cycle string) (bool, error) {
	return m.approved[studentID+courseCode+cycle], nil
}

func (m *mockApplicationRepo) Create(ctx context.Context, application *models.Application) error {
	if m.applications == nil {
		m.applications = make(map[string]models.Application)
	}
	if application.ID == "" {
		application.ID = "new-app"
	}
	m.applications[application.ID] = *application
	m.created = application
	return nil
}

func (m *mockApplicationRepo) UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	if !m.updateOK {
		return false, nil
	}
	if m.decided == nil {
		m.decided = make(map[string]models.ApplicationStatus)
	}
	m.decided[id] = status
	return true, nil
}

type mockCourseReader struct {
	courses map[string]*models.Course
}

func (m *mockCourseReader) FindByCode(ctx context.Context, code string) (*models.Course, error) {
	if c, ok := m.courses[code]; ok {
		return c, nil
	}
	return nil, sql.ErrNoRows
}

type mockDashboardEvictor struct {
	patterns []string
}

func (m *mockDashboardEvictor) DeleteByPattern(ctx context.Context, pattern string) error {
	m.patterns = append(m.patterns, pattern)
	return nil
}

func TestApplicationServiceSubmit(t *testing.T) {
	repo := &mockApplicationRepo{}
	courses := &mockCourseReader{courses: map[string]*models.Course{"CS": {Code: "CS", Name: "Computer Science", Years: 3}}}
	svc := NewApplicationService(repo, courses, nil, validator.New(), zap.NewNop())

	app, err := svc.Submit(context.Background(), "s1", SubmitApplicationRequest{CourseCode: "CS", AcademicCycle: "2026/2027"})
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusPending, app.Status)
	assert.Equal(t, "2026/2027", app.AcademicCycle)
	assert.NotNil(t, repo.created)
}

func TestApplicationServiceSubmitDefaultsCycle(t *testing.T) {
	repo := &mockApplicationRepo{}
	courses := &mockCourseReader{courses: map[string]*models.Course{"CS": {Code: "CS"}}}
	svc := NewApplicationService(repo, courses, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC) }

	app, err := svc.Submit(context.Background(), "s1", SubmitApplicationRequest{CourseCode: "CS"})
	require.NoError(t, err)
	assert.Equal(t, "2026/2027", app.AcademicCycle)
}

func TestApplicationServiceSubmitDefaultsCycleBeforeSeptember(t *testing.T) {
	repo := &mockApplicationRepo{}
	courses := &mockCourseReader{courses: map[string]*models.Course{"CS": {Code: "CS"}}}
	svc := NewApplicationService(repo, courses, nil, validator.New(), zap.NewNop())
	svc.now = func() time.Time { return time.Date(2026, time.August, 15, 0, 0, 0, 0, time.UTC) }

	app, err := svc.Submit(context.Background(), "s1", SubmitApplicationRequest{CourseCode: "CS"})
	require.NoError(t, err)
	assert.Equal(t, "2025/2026", app.AcademicCycle)
}

func TestApplicationServiceSubmitUnknownCourse(t *testing.T) {
	svc := NewApplicationService(&mockApplicationRepo{}, &mockCourseReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Submit(context.Background(), "s1", SubmitApplicationRequest{CourseCode: "NOPE"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceSubmitDuplicateApproved(t *testing.T) {
	repo := &mockApplicationRepo{approved: map[string]bool{"s1CS2026/2027": true}}
	courses := &mockCourseReader{courses: map[string]*models.Course{"CS": {Code: "CS"}}}
	svc := NewApplicationService(repo, courses, nil, validator.New(), zap.NewNop())

	_, err := svc.Submit(context.Background(), "s1", SubmitApplicationRequest{CourseCode: "CS", AcademicCycle: "2026/2027"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDuplicateApplication.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceDecide(t *testing.T) {
	repo := &mockApplicationRepo{
		applications: map[string]models.Application{"a1": {ID: "a1", StudentID: "s1", CourseCode: "CS", AcademicCycle: "2026/2027", Status: models.ApplicationStatusPending}},
		updateOK:     true,
	}
	svc := NewApplicationService(repo, &mockCourseReader{}, nil, validator.New(), zap.NewNop())

	app, err := svc.Decide(context.Background(), "a1", DecideApplicationRequest{Decision: models.ApplicationDecisionApprove}, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, models.ApplicationStatusApproved, app.Status)
	require.NotNil(t, app.DecidedBy)
	assert.Equal(t, "admin-1", *app.DecidedBy)
	assert.Equal(t, models.ApplicationStatusApproved, repo.decided["a1"])
}

func TestApplicationServiceDecideEvictsDashboards(t *testing.T) {
	repo := &mockApplicationRepo{
		applications: map[string]models.Application{"a1": {ID: "a1", StudentID: "s1", CourseCode: "CS", Status: models.ApplicationStatusPending}},
		updateOK:     true,
	}
	evictor := &mockDashboardEvictor{}
	svc := NewApplicationService(repo, &mockCourseReader{}, evictor, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "a1", DecideApplicationRequest{Decision: models.ApplicationDecisionApprove}, "admin-1", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:student:s1", "dashboard:admin"}, evictor.patterns)
}

func TestApplicationServiceDecideRequiresAdmin(t *testing.T) {
	repo := &mockApplicationRepo{
		applications: map[string]models.Application{"a1": {ID: "a1", Status: models.ApplicationStatusPending}},
		updateOK:     true,
	}
	svc := NewApplicationService(repo, &mockCourseReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "a1", DecideApplicationRequest{Decision: models.ApplicationDecisionReject}, "l1", models.RoleLecturer)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorizedRole.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.decided)
}

func TestApplicationServiceDecideAlreadyDecided(t *testing.T) {
	repo := &mockApplicationRepo{
		applications: map[string]models.Application{"a1": {ID: "a1", Status: models.ApplicationStatusRejected}},
		updateOK:     true,
	}
	svc := NewApplicationService(repo, &mockCourseReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "a1", DecideApplicationRequest{Decision: models.ApplicationDecisionApprove}, "admin-1", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}

func TestApplicationServiceDecideLostRace(t *testing.T) {
	// Guarded update reports no row matched the pending state.
	repo := &mockApplicationRepo{
		applications: map[string]models.Application{"a1": {ID: "a1", Status: models.ApplicationStatusPending}},
		updateOK:     false,
	}
	svc := NewApplicationService(repo, &mockCourseReader{}, nil, validator.New(), zap.NewNop())

	_, err := svc.Decide(context.Background(), "a1", DecideApplicationRequest{Decision: models.ApplicationDecisionReject}, "admin-1", models.RoleAdmin)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
}
