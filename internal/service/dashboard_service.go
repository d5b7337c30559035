package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/dto"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/pkg/config"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type dashboardApplicationReader interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error)
}

type dashboardRegistrationReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Registration, error)
	ListActive(ctx context.Context) ([]models.Registration, error)
	CountEnrolledBySubject(ctx context.Context, subjectCode string) (int, error)
	CountActive(ctx context.Context) (int, error)
}

type dashboardPaymentReader interface {
	CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error)
	SumApproved(ctx context.Context, studentID string) (decimal.Decimal, error)
}

type dashboardSubjectReader interface {
	ListByCodes(ctx context.Context, codes []string) ([]models.Subject, error)
}

type resultReader interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Result, error)
	CountPendingBySubject(ctx context.Context, subjectCode string) (int, error)
}

type attendanceReader interface {
	SummaryByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error)
}

type timetableReader interface {
	ListForSubjectsOnDay(ctx context.Context, subjectCodes []string, dayOfWeek int) ([]models.TimetableEntry, error)
	ListByLecturer(ctx context.Context, lecturerID string) ([]models.TimetableEntry, error)
}

type userCounter interface {
	CountByRole(ctx context.Context, role models.UserRole) (int, error)
}

type financeSummarizer interface {
	SummaryFor(ctx context.Context, studentID string) (*models.FinanceSummary, error)
}

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// dashboardEvictor is what the writing services use to drop cached cards
// made stale by a state change. repository.CacheRepository implements it.
type dashboardEvictor interface {
	DeleteByPattern(ctx context.Context, pattern string) error
}

// evictDashboards drops cached dashboard cards matching the patterns.
// Eviction failure is logged, never propagated: a stale card expires with
// its TTL anyway.
func evictDashboards(ctx context.Context, evictor dashboardEvictor, logger *zap.Logger, patterns ...string) {
	if evictor == nil {
		return
	}
	for _, pattern := range patterns {
		if err := evictor.DeleteByPattern(ctx, pattern); err != nil {
			logger.Warn("dashboard cache eviction failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

// DashboardService aggregates per-role read models. Aggregation is purely
// read-only: a missing section contributes its zero value instead of
// failing the whole dashboard. Responses are cached per user with a short
// TTL; a cache outage degrades to recomputation, never to an error.
type DashboardService struct {
	applications  dashboardApplicationReader
	registrations dashboardRegistrationReader
	payments      dashboardPaymentReader
	subjects      dashboardSubjectReader
	results       resultReader
	attendance    attendanceReader
	timetable     timetableReader
	users         userCounter
	finance       financeSummarizer
	cache         dashboardCache
	cfg           config.DashboardConfig
	logger        *zap.Logger

	now func() time.Time
}

// NewDashboardService constructs DashboardService. cache may be nil, in
// which case every call recomputes.
func NewDashboardService(applications dashboardApplicationReader, registrations dashboardRegistrationReader, payments dashboardPaymentReader, subjects dashboardSubjectReader, results resultReader, attendance attendanceReader, timetable timetableReader, users userCounter, finance financeSummarizer, cache dashboardCache, cfg config.DashboardConfig, logger *zap.Logger) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{
		applications:  applications,
		registrations: registrations,
		payments:      payments,
		subjects:      subjects,
		results:       results,
		attendance:    attendance,
		timetable:     timetable,
		users:         users,
		finance:       finance,
		cache:         cache,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// StudentDashboard assembles the student's own view.
func (s *DashboardService) StudentDashboard(ctx context.Context, studentID string) (*dto.StudentDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:student:%s", studentID)
	var cached dto.StudentDashboard
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	out := &dto.StudentDashboard{Timetable: []models.TimetableEntry{}}

	apps, _, err := s.applications.List(ctx, models.ApplicationFilter{
		StudentID: studentID,
		Page:      1,
		PageSize:  1,
		SortBy:    "submitted_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load applications")
	}
	if len(apps) > 0 {
		out.Application = &dto.ApplicationCard{
			ID:         apps[0].ID,
			CourseCode: apps[0].CourseCode,
			Status:     apps[0].Status,
		}
	}

	registration, err := s.registrations.FindActiveByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration != nil {
		out.Registration = &dto.RegistrationCard{
			ID:           registration.ID,
			CourseCode:   registration.CourseCode,
			Year:         registration.Year,
			SubjectCodes: registration.SubjectCodes,
			TotalCredits: registration.TotalCredits,
		}

		entries, err := s.timetable.ListForSubjectsOnDay(ctx, registration.SubjectCodes, int(s.now().Weekday()))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
		}
		out.Timetable = entries
	}

	summary, err := s.finance.SummaryFor(ctx, studentID)
	if err != nil {
		return nil, err
	}
	out.Finance = summary

	attendanceSummary, err := s.attendance.SummaryByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load attendance")
	}
	out.Attendance = attendanceSummary

	results, err := s.results.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load results")
	}
	var markSum float64
	for _, result := range results {
		if result.Pending() {
			out.Results.Pending++
		} else {
			out.Results.Graded++
			markSum += result.Mark
		}
	}
	if out.Results.Graded > 0 {
		out.Results.AverageMark = markSum / float64(out.Results.Graded)
	}

	s.cacheSet(ctx, cacheKey, out)
	return out, nil
}

// LecturerDashboard assembles the lecturer's teaching view from the
// timetable entries that name them. Every taught subject gets a card;
// SessionsToday lists only the current weekday's active slots.
func (s *DashboardService) LecturerDashboard(ctx context.Context, lecturerID string) (*dto.LecturerDashboard, error) {
	cacheKey := fmt.Sprintf("dashboard:lecturer:%s", lecturerID)
	var cached dto.LecturerDashboard
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	entries, err := s.timetable.ListByLecturer(ctx, lecturerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	out := &dto.LecturerDashboard{
		Subjects:      []dto.LecturerSubjectCard{},
		SessionsToday: []dto.LecturerSessionCard{},
	}
	seen := make(map[string]struct{})
	codes := make([]string, 0, len(entries))
	today := int(s.now().Weekday())
	for _, entry := range entries {
		if _, ok := seen[entry.SubjectCode]; !ok {
			seen[entry.SubjectCode] = struct{}{}
			codes = append(codes, entry.SubjectCode)
		}
		if entry.DayOfWeek == today && entry.Active {
			out.SessionsToday = append(out.SessionsToday, dto.LecturerSessionCard{
				SubjectCode: entry.SubjectCode,
				Room:        entry.Room,
				StartTime:   entry.StartTime,
				EndTime:     entry.EndTime,
			})
		}
	}
	sort.Strings(codes)
	out.TotalSubjects = len(codes)

	// A subject missing from the catalog still gets a card, just without
	// a display name.
	names := make(map[string]string, len(codes))
	if len(codes) > 0 {
		subjects, err := s.subjects.ListByCodes(ctx, codes)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subjects")
		}
		for _, subject := range subjects {
			names[subject.Code] = subject.Name
		}
	}

	for _, code := range codes {
		enrolled, err := s.registrations.CountEnrolledBySubject(ctx, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count enrollments")
		}
		pending, err := s.results.CountPendingBySubject(ctx, code)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending results")
		}
		out.Subjects = append(out.Subjects, dto.LecturerSubjectCard{
			SubjectCode:    code,
			SubjectName:    names[code],
			EnrolledCount:  enrolled,
			PendingResults: pending,
		})
	}

	s.cacheSet(ctx, cacheKey, out)
	return out, nil
}

// AdminDashboard assembles institution-wide lifecycle counts.
func (s *DashboardService) AdminDashboard(ctx context.Context) (*dto.AdminDashboard, error) {
	cacheKey := "dashboard:admin"
	var cached dto.AdminDashboard
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	out := &dto.AdminDashboard{}
	var err error
	if out.Applications.Pending, err = s.applications.CountByStatus(ctx, models.ApplicationStatusPending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	if out.Applications.Approved, err = s.applications.CountByStatus(ctx, models.ApplicationStatusApproved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	if out.Applications.Rejected, err = s.applications.CountByStatus(ctx, models.ApplicationStatusRejected); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count applications")
	}
	if out.ActiveRegistrations, err = s.registrations.CountActive(ctx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count registrations")
	}
	if out.Students, err = s.users.CountByRole(ctx, models.RoleStudent); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	if out.Lecturers, err = s.users.CountByRole(ctx, models.RoleLecturer); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}

	s.cacheSet(ctx, cacheKey, out)
	return out, nil
}

// FinanceDashboard assembles ledger totals for the finance back office.
// OutstandingTotal aggregates per-student reconciliation over every active
// registration, so collected and outstanding move together.
func (s *DashboardService) FinanceDashboard(ctx context.Context) (*dto.FinanceDashboard, error) {
	cacheKey := "dashboard:finance"
	var cached dto.FinanceDashboard
	if s.cacheGet(ctx, cacheKey, &cached) {
		return &cached, nil
	}

	out := &dto.FinanceDashboard{}
	var err error
	if out.PendingPayments, err = s.payments.CountByStatus(ctx, models.PaymentStatusPending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count payments")
	}
	if out.ApprovedPayments, err = s.payments.CountByStatus(ctx, models.PaymentStatusApproved); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count payments")
	}
	if out.RejectedPayments, err = s.payments.CountByStatus(ctx, models.PaymentStatusRejected); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count payments")
	}
	collected, err := s.payments.SumApproved(ctx, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sum payments")
	}
	out.CollectedAmount = collected

	registrations, err := s.registrations.ListActive(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list registrations")
	}
	outstanding := decimal.Zero
	for _, registration := range registrations {
		summary, err := s.finance.SummaryFor(ctx, registration.StudentID)
		if err != nil {
			return nil, err
		}
		outstanding = outstanding.Add(summary.OutstandingAmount)
	}
	out.OutstandingTotal = outstanding

	s.cacheSet(ctx, cacheKey, out)
	return out, nil
}

func (s *DashboardService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	err := s.cache.Get(ctx, key, dest)
	if err == nil {
		return true
	}
	if !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("dashboard cache read failed", zap.String("key", key), zap.Error(err))
	}
	return false
}

func (s *DashboardService) cacheSet(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
	}
}
