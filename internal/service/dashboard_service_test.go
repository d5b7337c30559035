package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/pkg/config"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type mockDashboardApps struct {
	applications []models.Application
	counts       map[models.ApplicationStatus]int
}

func (m *mockDashboardApps) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	var out []models.Application
	for _, a := range m.applications {
		if filter.StudentID != "" && a.StudentID != filter.StudentID {
			continue
		}
		out = append(out, a)
	}
	if filter.PageSize > 0 && len(out) > filter.PageSize {
		out = out[:filter.PageSize]
	}
	return out, len(out), nil
}

func (m *mockDashboardApps) CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error) {
	return m.counts[status], nil
}

type mockDashboardRegs struct {
	registrations map[string]models.Registration
	enrolled      map[string]int
	active        int
}

func (m *mockDashboardRegs) FindActiveByStudent(ctx context.Context, studentID string) (*models.Registration, error) {
	if r, ok := m.registrations[studentID]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockDashboardRegs) ListActive(ctx context.Context) ([]models.Registration, error) {
	out := make([]models.Registration, 0, len(m.registrations))
	for _, r := range m.registrations {
		out = append(out, r)
	}
	return out, nil
}

func (m *mockDashboardRegs) CountEnrolledBySubject(ctx context.Context, subjectCode string) (int, error) {
	return m.enrolled[subjectCode], nil
}

func (m *mockDashboardRegs) CountActive(ctx context.Context) (int, error) {
	return m.active, nil
}

type mockDashboardPayments struct {
	counts   map[models.PaymentStatus]int
	approved decimal.Decimal
}

func (m *mockDashboardPayments) CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error) {
	return m.counts[status], nil
}

func (m *mockDashboardPayments) SumApproved(ctx context.Context, studentID string) (decimal.Decimal, error) {
	return m.approved, nil
}

type mockDashboardSubjects struct {
	names map[string]string
}

func (m *mockDashboardSubjects) ListByCodes(ctx context.Context, codes []string) ([]models.Subject, error) {
	var out []models.Subject
	for _, code := range codes {
		if name, ok := m.names[code]; ok {
			out = append(out, models.Subject{Code: code, Name: name})
		}
	}
	return out, nil
}

type mockResultReader struct {
	results map[string][]models.Result
	pending map[string]int
}

func (m *mockResultReader) ListByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	return m.results[studentID], nil
}

func (m *mockResultReader) CountPendingBySubject(ctx context.Context, subjectCode string) (int, error) {
	return m.pending[subjectCode], nil
}

type mockAttendanceReader struct {
	summaries map[string]*models.AttendanceSummary
}

func (m *mockAttendanceReader) SummaryByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	if s, ok := m.summaries[studentID]; ok {
		return s, nil
	}
	return &models.AttendanceSummary{}, nil
}

type mockTimetableReader struct {
	entries []models.TimetableEntry
}

func (m *mockTimetableReader) ListForSubjectsOnDay(ctx context.Context, subjectCodes []string, dayOfWeek int) ([]models.TimetableEntry, error) {
	wanted := make(map[string]struct{}, len(subjectCodes))
	for _, code := range subjectCodes {
		wanted[code] = struct{}{}
	}
	var out []models.TimetableEntry
	for _, e := range m.entries {
		if _, ok := wanted[e.SubjectCode]; ok && e.DayOfWeek == dayOfWeek && e.Active {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *mockTimetableReader) ListByLecturer(ctx context.Context, lecturerID string) ([]models.TimetableEntry, error) {
	var out []models.TimetableEntry
	for _, e := range m.entries {
		if e.LecturerID == lecturerID {
			out = append(out, e)
		}
	}
	return out, nil
}

type mockUserCounter struct {
	counts map[models.UserRole]int
}

func (m *mockUserCounter) CountByRole(ctx context.Context, role models.UserRole) (int, error) {
	return m.counts[role], nil
}

type mockFinanceSummarizer struct {
	summaries map[string]*models.FinanceSummary
}

func (m *mockFinanceSummarizer) SummaryFor(ctx context.Context, studentID string) (*models.FinanceSummary, error) {
	if s, ok := m.summaries[studentID]; ok {
		return s, nil
	}
	return &models.FinanceSummary{StudentID: studentID, Status: models.FinanceStatusPaid}, nil
}

type mockDashboardCache struct {
	store map[string][]byte
	sets  int
	hits  int
}

func (m *mockDashboardCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	m.hits++
	return json.Unmarshal(data, dest)
}

func (m *mockDashboardCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = data
	m.sets++
	return nil
}

func newDashboardService(apps *mockDashboardApps, regs *mockDashboardRegs, payments *mockDashboardPayments, subjects *mockDashboardSubjects, results *mockResultReader, timetable *mockTimetableReader, cache *mockDashboardCache) *DashboardService {
	var cacheDep dashboardCache
	if cache != nil {
		cacheDep = cache
	}
	if subjects == nil {
		subjects = &mockDashboardSubjects{}
	}
	return NewDashboardService(
		apps,
		regs,
		payments,
		subjects,
		results,
		&mockAttendanceReader{},
		timetable,
		&mockUserCounter{},
		&mockFinanceSummarizer{},
		cacheDep,
		config.DashboardConfig{Enabled: true, CacheTTL: time.Minute},
		zap.NewNop(),
	)
}

func TestDashboardServiceStudent(t *testing.T) {
	grade := "A"
	apps := &mockDashboardApps{applications: []models.Application{
		{ID: "a1", StudentID: "s1", CourseCode: "CS", Status: models.ApplicationStatusApproved},
	}}
	regs := &mockDashboardRegs{registrations: map[string]models.Registration{
		"s1": {ID: "r1", StudentID: "s1", CourseCode: "CS", Year: 1, SubjectCodes: pq.StringArray{"CS101"}, TotalCredits: 10},
	}}
	results := &mockResultReader{results: map[string][]models.Result{
		"s1": {
			{ID: "g1", StudentID: "s1", SubjectCode: "CS101", Mark: 82, Grade: &grade},
			{ID: "g2", StudentID: "s1", SubjectCode: "CS102"},
		},
	}}
	timetable := &mockTimetableReader{entries: []models.TimetableEntry{
		{SubjectCode: "CS101", DayOfWeek: int(time.Now().Weekday()), StartTime: "09:00", EndTime: "11:00", Active: true},
	}}
	svc := newDashboardService(apps, regs, &mockDashboardPayments{}, nil, results, timetable, nil)

	dashboard, err := svc.StudentDashboard(context.Background(), "s1")
	require.NoError(t, err)
	require.NotNil(t, dashboard.Application)
	assert.Equal(t, models.ApplicationStatusApproved, dashboard.Application.Status)
	require.NotNil(t, dashboard.Registration)
	assert.Equal(t, "r1", dashboard.Registration.ID)
	assert.Len(t, dashboard.Timetable, 1)
	assert.Equal(t, 1, dashboard.Results.Graded)
	assert.Equal(t, 1, dashboard.Results.Pending)
	assert.InDelta(t, 82.0, dashboard.Results.AverageMark, 0.001)
	require.NotNil(t, dashboard.Finance)
}

func TestDashboardServiceStudentAverageMark(t *testing.T) {
	gradeA := "A"
	gradeC := "C"
	results := &mockResultReader{results: map[string][]models.Result{
		"s1": {
			{ID: "g1", StudentID: "s1", SubjectCode: "CS101", Mark: 90, Grade: &gradeA},
			{ID: "g2", StudentID: "s1", SubjectCode: "CS102", Mark: 60, Grade: &gradeC},
			{ID: "g3", StudentID: "s1", SubjectCode: "CS103"},
		},
	}}
	svc := newDashboardService(&mockDashboardApps{}, &mockDashboardRegs{}, &mockDashboardPayments{}, nil, results, &mockTimetableReader{}, nil)

	dashboard, err := svc.StudentDashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.Results.Graded)
	assert.Equal(t, 1, dashboard.Results.Pending)
	// Pending marks stay out of the average.
	assert.InDelta(t, 75.0, dashboard.Results.AverageMark, 0.001)
}

func TestDashboardServiceStudentZeroContribution(t *testing.T) {
	// A brand-new student gets empty sections, never an error.
	svc := newDashboardService(&mockDashboardApps{}, &mockDashboardRegs{}, &mockDashboardPayments{}, nil, &mockResultReader{}, &mockTimetableReader{}, nil)

	dashboard, err := svc.StudentDashboard(context.Background(), "s-new")
	require.NoError(t, err)
	assert.Nil(t, dashboard.Application)
	assert.Nil(t, dashboard.Registration)
	assert.Empty(t, dashboard.Timetable)
	assert.Equal(t, 0, dashboard.Results.Graded)
	assert.Equal(t, 0, dashboard.Results.Pending)
	assert.Zero(t, dashboard.Results.AverageMark)
}

func TestDashboardServiceStudentCached(t *testing.T) {
	apps := &mockDashboardApps{applications: []models.Application{
		{ID: "a1", StudentID: "s1", CourseCode: "CS", Status: models.ApplicationStatusPending},
	}}
	cache := &mockDashboardCache{}
	svc := newDashboardService(apps, &mockDashboardRegs{}, &mockDashboardPayments{}, nil, &mockResultReader{}, &mockTimetableReader{}, cache)

	first, err := svc.StudentDashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.sets)

	second, err := svc.StudentDashboard(context.Background(), "s1")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)
	assert.Equal(t, first.Application.ID, second.Application.ID)
}

func TestDashboardServiceLecturer(t *testing.T) {
	today := int(time.Now().Weekday())
	timetable := &mockTimetableReader{entries: []models.TimetableEntry{
		{SubjectCode: "CS101", LecturerID: "l1", DayOfWeek: today, Room: "B2", StartTime: "09:00", EndTime: "11:00", Active: true},
		{SubjectCode: "CS102", LecturerID: "l1", DayOfWeek: (today + 1) % 7, Active: true},
		{SubjectCode: "CS103", LecturerID: "l2", DayOfWeek: today, Active: true},
	}}
	regs := &mockDashboardRegs{enrolled: map[string]int{"CS101": 24, "CS102": 18}}
	results := &mockResultReader{pending: map[string]int{"CS101": 3, "CS102": 5}}
	subjects := &mockDashboardSubjects{names: map[string]string{"CS101": "Algorithms", "CS102": "Databases"}}
	svc := newDashboardService(&mockDashboardApps{}, regs, &mockDashboardPayments{}, subjects, results, timetable, nil)

	dashboard, err := svc.LecturerDashboard(context.Background(), "l1")
	require.NoError(t, err)
	assert.Equal(t, 2, dashboard.TotalSubjects)

	// Every subject the lecturer teaches gets a card, not just today's.
	require.Len(t, dashboard.Subjects, 2)
	assert.Equal(t, "CS101", dashboard.Subjects[0].SubjectCode)
	assert.Equal(t, "Algorithms", dashboard.Subjects[0].SubjectName)
	assert.Equal(t, 24, dashboard.Subjects[0].EnrolledCount)
	assert.Equal(t, 3, dashboard.Subjects[0].PendingResults)
	assert.Equal(t, "CS102", dashboard.Subjects[1].SubjectCode)
	assert.Equal(t, "Databases", dashboard.Subjects[1].SubjectName)
	assert.Equal(t, 18, dashboard.Subjects[1].EnrolledCount)
	assert.Equal(t, 5, dashboard.Subjects[1].PendingResults)

	require.Len(t, dashboard.SessionsToday, 1)
	session := dashboard.SessionsToday[0]
	assert.Equal(t, "CS101", session.SubjectCode)
	assert.Equal(t, "B2", session.Room)
	assert.Equal(t, "09:00", session.StartTime)
	assert.Equal(t, "11:00", session.EndTime)
}

func TestDashboardServiceAdmin(t *testing.T) {
	apps := &mockDashboardApps{counts: map[models.ApplicationStatus]int{
		models.ApplicationStatusPending:  4,
		models.ApplicationStatusApproved: 10,
		models.ApplicationStatusRejected: 2,
	}}
	regs := &mockDashboardRegs{active: 9}
	svc := NewDashboardService(apps, regs, &mockDashboardPayments{}, &mockDashboardSubjects{}, &mockResultReader{}, &mockAttendanceReader{}, &mockTimetableReader{}, &mockUserCounter{counts: map[models.UserRole]int{models.RoleStudent: 120, models.RoleLecturer: 14}}, &mockFinanceSummarizer{}, nil, config.DashboardConfig{}, zap.NewNop())

	dashboard, err := svc.AdminDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, dashboard.Applications.Pending)
	assert.Equal(t, 10, dashboard.Applications.Approved)
	assert.Equal(t, 2, dashboard.Applications.Rejected)
	assert.Equal(t, 9, dashboard.ActiveRegistrations)
	assert.Equal(t, 120, dashboard.Students)
	assert.Equal(t, 14, dashboard.Lecturers)
}

func TestDashboardServiceFinance(t *testing.T) {
	payments := &mockDashboardPayments{
		counts: map[models.PaymentStatus]int{
			models.PaymentStatusPending:  3,
			models.PaymentStatusApproved: 7,
			models.PaymentStatusRejected: 1,
		},
		approved: decimal.NewFromInt(15400),
	}
	svc := newDashboardService(&mockDashboardApps{}, &mockDashboardRegs{}, payments, nil, &mockResultReader{}, &mockTimetableReader{}, nil)

	dashboard, err := svc.FinanceDashboard(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, dashboard.PendingPayments)
	assert.Equal(t, 7, dashboard.ApprovedPayments)
	assert.Equal(t, 1, dashboard.RejectedPayments)
	assert.True(t, dashboard.CollectedAmount.Equal(decimal.NewFromInt(15400)))
	assert.True(t, dashboard.OutstandingTotal.IsZero())
}

func TestDashboardServiceFinanceOutstandingTotal(t *testing.T) {
	regs := &mockDashboardRegs{registrations: map[string]models.Registration{
		"s1": {ID: "r1", StudentID: "s1", CourseCode: "CS", Year: 1},
		"s2": {ID: "r2", StudentID: "s2", CourseCode: "CS", Year: 2},
	}}
	finance := &mockFinanceSummarizer{summaries: map[string]*models.FinanceSummary{
		"s1": {StudentID: "s1", OutstandingAmount: decimal.NewFromInt(300), Status: models.FinanceStatusPartial},
		// Overpayment shows as a negative outstanding and reduces the total.
		"s2": {StudentID: "s2", OutstandingAmount: decimal.NewFromInt(-50), Status: models.FinanceStatusPaid},
	}}
	svc := NewDashboardService(&mockDashboardApps{}, regs, &mockDashboardPayments{}, &mockDashboardSubjects{}, &mockResultReader{}, &mockAttendanceReader{}, &mockTimetableReader{}, &mockUserCounter{}, finance, nil, config.DashboardConfig{}, zap.NewNop())

	dashboard, err := svc.FinanceDashboard(context.Background())
	require.NoError(t, err)
	assert.True(t, dashboard.OutstandingTotal.Equal(decimal.NewFromInt(250)))
}
