package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-core-api/internal/models"
)

func newRegistrationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestRegistrationRepositoryCreateAndFindActive(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO registrations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	registration := &models.Registration{
		StudentID:    "s1",
		CourseCode:   "CS",
		Year:         1,
		SubjectCodes: pq.StringArray{"CS101", "CS102"},
		TotalCredits: 20,
	}
	require.NoError(t, repo.Create(context.Background(), registration))
	require.NotEmpty(t, registration.ID)
	require.Equal(t, models.RegistrationStatusActive, registration.Status)

	rows := sqlmock.NewRows([]string{"id", "student_id", "course_code", "year", "subject_codes", "total_credits", "status", "created_at"}).
		AddRow(registration.ID, "s1", "CS", 1, "{CS101,CS102}", 20, "ACTIVE", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_code, year")).
		WithArgs("s1", "ACTIVE").
		WillReturnRows(rows)

	found, err := repo.FindActiveByStudent(context.Background(), "s1")
	require.NoError(t, err)
	require.Equal(t, registration.ID, found.ID)
	require.Equal(t, pq.StringArray{"CS101", "CS102"}, found.SubjectCodes)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryFindActiveMissing(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_code, year")).
		WithArgs("s-missing", "ACTIVE").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindActiveByStudent(context.Background(), "s-missing")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCreateEnrollmentIdempotent(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_enrollments")).
		WillReturnResult(sqlmock.NewResult(1, 1))
	// The conflicting insert affects zero rows but still succeeds.
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO subject_enrollments")).
		WillReturnResult(sqlmock.NewResult(0, 0))

	enrollment := &models.SubjectEnrollment{RegistrationID: "r1", StudentID: "s1", SubjectCode: "CS101", CourseCode: "CS"}
	require.NoError(t, repo.CreateEnrollment(context.Background(), enrollment))
	require.NotEmpty(t, enrollment.ID)
	require.NoError(t, repo.CreateEnrollment(context.Background(), enrollment))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryListEnrollments(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	rows := sqlmock.NewRows([]string{"id", "registration_id", "student_id", "subject_code", "course_code", "created_at"}).
		AddRow("e1", "r1", "s1", "CS101", "CS", time.Now()).
		AddRow("e2", "r1", "s1", "CS102", "CS", time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, registration_id, student_id, subject_code")).
		WithArgs("r1").
		WillReturnRows(rows)

	enrollments, err := repo.ListEnrollments(context.Background(), "r1")
	require.NoError(t, err)
	require.Len(t, enrollments, 2)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestRegistrationRepositoryCounts(t *testing.T) {
	db, mock, cleanup := newRegistrationRepoMock(t)
	defer cleanup()

	repo := NewRegistrationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM subject_enrollments se")).
		WithArgs("CS101", "ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(24))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM registrations")).
		WithArgs("ACTIVE").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(9))

	enrolled, err := repo.CountEnrolledBySubject(context.Background(), "CS101")
	require.NoError(t, err)
	require.Equal(t, 24, enrolled)

	active, err := repo.CountActive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 9, active)
	require.NoError(t, mock.ExpectationsWereMet())
}
