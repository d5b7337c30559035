package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/pkg/config"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type mockRegistrationRepo struct {
	registrations map[string]models.Registration // keyed by student ID
	enrollments   map[string][]models.SubjectEnrollment
	failSubjects  map[string]bool
	created       *models.Registration
}

func (m *mockRegistrationRepo) FindActiveByStudent(ctx context.Context, studentID string) (*models.Registration, error) {
	if r, ok := m.registrations[studentID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockRegistrationRepo) Create(ctx context.Context, registration *models.Registration) error {
	if m.registrations == nil {
		m.registrations = make(map[string]models.Registration)
	}
	if registration.ID == "" {
		registration.ID = "new-reg"
	}
	m.registrations[registration.StudentID] = *registration
	m.created = registration
	return nil
}

func (m *mockRegistrationRepo) CreateEnrollment(ctx context.Context, enrollment *models.SubjectEnrollment) error {
	if m.failSubjects[enrollment.SubjectCode] {
		return errors.New("connection reset")
	}
	if m.enrollments == nil {
		m.enrollments = make(map[string][]models.SubjectEnrollment)
	}
	// ON CONFLICT DO NOTHING semantics.
	for _, existing := range m.enrollments[enrollment.RegistrationID] {
		if existing.SubjectCode == enrollment.SubjectCode {
			return nil
		}
	}
	m.enrollments[enrollment.RegistrationID] = append(m.enrollments[enrollment.RegistrationID], *enrollment)
	return nil
}

func (m *mockRegistrationRepo) ListEnrollments(ctx context.Context, registrationID string) ([]models.SubjectEnrollment, error) {
	return m.enrollments[registrationID], nil
}

type mockApprovedReader struct {
	approved map[string]*models.Application // keyed by studentID+courseCode
}

func (m *mockApprovedReader) FindApproved(ctx context.Context, studentID, courseCode string) (*models.Application, error) {
	if a, ok := m.approved[studentID+courseCode]; ok {
		return a, nil
	}
	return nil, sql.ErrNoRows
}

type mockSubjectCatalog struct {
	subjects map[string][]models.Subject
}

func (m *mockSubjectCatalog) ListByCourse(ctx context.Context, courseCode string) ([]models.Subject, error) {
	return m.subjects[courseCode], nil
}

func registrationFixtures() (*mockRegistrationRepo, *mockApprovedReader, *mockCourseReader, *mockSubjectCatalog) {
	repo := &mockRegistrationRepo{}
	apps := &mockApprovedReader{approved: map[string]*models.Application{
		"s1CS": {ID: "a1", StudentID: "s1", CourseCode: "CS", Status: models.ApplicationStatusApproved},
	}}
	courses := &mockCourseReader{courses: map[string]*models.Course{"CS": {Code: "CS", Years: 3}}}
	subjects := &mockSubjectCatalog{subjects: map[string][]models.Subject{
		"CS": {
			{Code: "CS101", Credits: 10, CourseCode: "CS"},
			{Code: "CS102", Credits: 10, CourseCode: "CS"},
			{Code: "CS103", Credits: 20, CourseCode: "CS"},
		},
	}}
	return repo, apps, courses, subjects
}

func TestRegistrationServiceFinalize(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	detail, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{
		CourseCode:   "CS",
		Year:         1,
		SubjectCodes: []string{"CS101", "CS102"},
	})
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationStatusActive, detail.Status)
	assert.Equal(t, 20, detail.TotalCredits)
	assert.Len(t, detail.Enrollments, 2)
}

func TestRegistrationServiceFinalizeEvictsDashboards(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	evictor := &mockDashboardEvictor{}
	svc := NewRegistrationService(repo, apps, courses, subjects, evictor, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"dashboard:student:s1", "dashboard:admin", "dashboard:finance"}, evictor.patterns)
}

func TestRegistrationServiceFinalizePartialStillEvicts(t *testing.T) {
	// The registration row is durable even when a membership write fails,
	// so cached cards are stale either way.
	repo, apps, courses, subjects := registrationFixtures()
	repo.failSubjects = map[string]bool{"CS102": true}
	evictor := &mockDashboardEvictor{}
	svc := NewRegistrationService(repo, apps, courses, subjects, evictor, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101", "CS102"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPartialRegistration.Code, appErrors.FromError(err).Code)
	assert.Contains(t, evictor.patterns, "dashboard:student:s1")
	assert.Contains(t, evictor.patterns, "dashboard:finance")
}

func TestRegistrationServiceFinalizeNoApprovedApplication(t *testing.T) {
	repo, _, courses, subjects := registrationFixtures()
	apps := &mockApprovedReader{}
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNoApprovedApplication.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceFinalizeAlreadyRegistered(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	repo.registrations = map[string]models.Registration{
		"s1": {ID: "r1", StudentID: "s1", CourseCode: "CS", SubjectCodes: pq.StringArray{"CS101"}, Status: models.RegistrationStatusActive},
	}
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErr.Code)
	assert.Equal(t, "r1", appErr.Details["registration_id"])
}

func TestRegistrationServiceFinalizeRepairsMissingEnrollments(t *testing.T) {
	// An earlier finalize stored the registration but lost a membership row.
	// Re-finalizing re-inserts it from subject_codes and still conflicts.
	repo, apps, courses, subjects := registrationFixtures()
	repo.registrations = map[string]models.Registration{
		"s1": {ID: "r1", StudentID: "s1", CourseCode: "CS", SubjectCodes: pq.StringArray{"CS101", "CS102"}, Status: models.RegistrationStatusActive},
	}
	repo.enrollments = map[string][]models.SubjectEnrollment{
		"r1": {{RegistrationID: "r1", StudentID: "s1", SubjectCode: "CS101", CourseCode: "CS"}},
	}
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101", "CS102"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.enrollments["r1"], 2)
}

func TestRegistrationServiceFinalizeEmptySelection(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidSubjectSelection.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceFinalizeUnknownSubjects(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101", "MA999"}})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInvalidSubjectSelection.Code, appErr.Code)
	assert.Equal(t, "MA999", appErr.Details["unknown_subjects"])
	assert.Nil(t, repo.created)
}

func TestRegistrationServiceFinalizeCreditBounds(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	policy := config.RegistrationConfig{MinCredits: 30, MaxCredits: 40}
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, policy, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidSubjectSelection.Code, appErrors.FromError(err).Code)

	_, err = svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101", "CS102", "CS103"}})
	require.NoError(t, err)
}

func TestRegistrationServiceFinalizeYearOutOfRange(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 4, SubjectCodes: []string{"CS101"}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegistrationServiceFinalizeDeduplicatesSelection(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	detail, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{
		CourseCode:   "CS",
		Year:         1,
		SubjectCodes: []string{"CS101", "CS101", "CS102"},
	})
	require.NoError(t, err)
	assert.Equal(t, 20, detail.TotalCredits)
	assert.Len(t, detail.Enrollments, 2)
}

func TestRegistrationServiceFinalizePartial(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	repo.failSubjects = map[string]bool{"CS102": true}
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	_, err := svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{
		CourseCode:   "CS",
		Year:         1,
		SubjectCodes: []string{"CS101", "CS102"},
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrPartialRegistration.Code, appErr.Code)
	assert.Equal(t, "CS102", appErr.Details["missing_subjects"])

	// The registration itself survived and repair succeeds once the store recovers.
	require.NotNil(t, repo.created)
	repo.failSubjects = nil
	_, err = svc.Finalize(context.Background(), "s1", FinalizeRegistrationRequest{CourseCode: "CS", Year: 1, SubjectCodes: []string{"CS101", "CS102"}})
	assert.Equal(t, appErrors.ErrAlreadyRegistered.Code, appErrors.FromError(err).Code)
	assert.Len(t, repo.enrollments[repo.created.ID], 2)
}

func TestRegistrationServiceGet(t *testing.T) {
	repo, apps, courses, subjects := registrationFixtures()
	repo.registrations = map[string]models.Registration{
		"s1": {ID: "r1", StudentID: "s1", CourseCode: "CS", SubjectCodes: pq.StringArray{"CS101"}, Status: models.RegistrationStatusActive},
	}
	repo.enrollments = map[string][]models.SubjectEnrollment{
		"r1": {{RegistrationID: "r1", SubjectCode: "CS101"}},
	}
	svc := NewRegistrationService(repo, apps, courses, subjects, nil, config.RegistrationConfig{}, validator.New(), zap.NewNop())

	detail, err := svc.Get(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, "r1", detail.ID)
	assert.Len(t, detail.Enrollments, 1)

	_, err = svc.Get(context.Background(), "s2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
