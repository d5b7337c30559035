package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/campus-core-api/internal/models"
)

func newApplicationRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func applicationRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "student_id", "course_code", "academic_cycle", "status", "decided_by", "decided_at", "submitted_at"})
}

func TestApplicationRepositoryListFilters(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	rows := applicationRows().
		AddRow("app-1", "s1", "CS", "2026/2027", "PENDING", nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("SELECT a.id, a.student_id, a.course_code")).
		WithArgs("s1", "PENDING").
		WillReturnRows(rows)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM applications a")).
		WithArgs("s1", "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	applications, total, err := repo.List(context.Background(), models.ApplicationFilter{
		StudentID: "s1",
		Status:    models.ApplicationStatusPending,
	})
	require.NoError(t, err)
	require.Len(t, applications, 1)
	require.Equal(t, 1, total)
	require.Equal(t, "app-1", applications[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryCreateAndFind(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO applications")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	application := &models.Application{StudentID: "s1", CourseCode: "CS", AcademicCycle: "2026/2027"}
	require.NoError(t, repo.Create(context.Background(), application))
	require.NotEmpty(t, application.ID)
	require.Equal(t, models.ApplicationStatusPending, application.Status)

	rows := applicationRows().
		AddRow(application.ID, "s1", "CS", "2026/2027", "PENDING", nil, nil, application.SubmittedAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, student_id, course_code")).
		WithArgs(application.ID).
		WillReturnRows(rows)

	found, err := repo.FindByID(context.Background(), application.ID)
	require.NoError(t, err)
	require.Equal(t, application.ID, found.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryExistsApproved(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications")).
		WithArgs("s1", "CS", "APPROVED", "2026/2027").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(1))

	exists, err := repo.ExistsApproved(context.Background(), "s1", "CS", "2026/2027")
	require.NoError(t, err)
	require.True(t, exists)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT 1 FROM applications")).
		WithArgs("s2", "CS", "APPROVED", "2026/2027").
		WillReturnError(sql.ErrNoRows)

	exists, err = repo.ExistsApproved(context.Background(), "s2", "CS", "2026/2027")
	require.NoError(t, err)
	require.False(t, exists)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationRepositoryUpdateDecisionGuarded(t *testing.T) {
	db, mock, cleanup := newApplicationRepoMock(t)
	defer cleanup()

	repo := NewApplicationRepository(db)
	decidedAt := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status")).
		WithArgs("app-1", "APPROVED", "admin-1", decidedAt, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 1))

	ok, err := repo.UpdateDecision(context.Background(), "app-1", models.ApplicationStatusApproved, "admin-1", decidedAt)
	require.NoError(t, err)
	require.True(t, ok)

	// A concurrent decision already moved the row out of PENDING.
	mock.ExpectExec(regexp.QuoteMeta("UPDATE applications SET status")).
		WithArgs("app-1", "REJECTED", "admin-2", decidedAt, "PENDING").
		WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err = repo.UpdateDecision(context.Background(), "app-1", models.ApplicationStatusRejected, "admin-2", decidedAt)
	require.NoError(t, err)
	require.False(t, ok)
	require.NoError(t, mock.ExpectationsWereMet())
}
