package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/pkg/config"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type registrationRepository interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Registration, error)
	Create(ctx context.Context, registration *models.Registration) error
	CreateEnrollment(ctx context.Context, enrollment *models.SubjectEnrollment) error
	ListEnrollments(ctx context.Context, registrationID string) ([]models.SubjectEnrollment, error)
}

type approvedApplicationReader interface {
	FindApproved(ctx context.Context, studentID, courseCode string) (*models.Application, error)
}

type subjectCatalog interface {
	ListByCourse(ctx context.Context, courseCode string) ([]models.Subject, error)
}

// FinalizeRegistrationRequest carries the student's course/year/subject choice.
type FinalizeRegistrationRequest struct {
	CourseCode   string   `json:"course_code" validate:"required"`
	Year         int      `json:"year" validate:"required,min=1"`
	SubjectCodes []string `json:"subject_codes"`
}

// RegistrationDetail bundles a registration with its membership rows.
type RegistrationDetail struct {
	models.Registration
	Enrollments []models.SubjectEnrollment `json:"enrollments"`
}

// RegistrationService turns an approved application into an active
// registration plus per-subject enrollment rows. The store offers no
// multi-document transactions, so the membership writes run as a
// best-effort sequence with an idempotent repair path.
type RegistrationService struct {
	repo         registrationRepository
	applications approvedApplicationReader
	courses      courseReader
	subjects     subjectCatalog
	dashboards   dashboardEvictor
	policy       config.RegistrationConfig
	validator    *validator.Validate
	logger       *zap.Logger
}

// NewRegistrationService constructs RegistrationService. dashboards may
// be nil when no cache is configured.
func NewRegistrationService(repo registrationRepository, applications approvedApplicationReader, courses courseReader, subjects subjectCatalog, dashboards dashboardEvictor, policy config.RegistrationConfig, validate *validator.Validate, logger *zap.Logger) *RegistrationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistrationService{
		repo:         repo,
		applications: applications,
		courses:      courses,
		subjects:     subjects,
		dashboards:   dashboards,
		policy:       policy,
		validator:    validate,
		logger:       logger,
	}
}

// Get returns the student's active registration with its membership rows.
func (s *RegistrationService) Get(ctx context.Context, studentID string) (*RegistrationDetail, error) {
	registration, err := s.repo.FindActiveByStudent(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "no active registration"), map[string]string{"student_id": studentID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	enrollments, err := s.repo.ListEnrollments(ctx, registration.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	return &RegistrationDetail{Registration: *registration, Enrollments: enrollments}, nil
}

// Finalize creates the registration and its subject enrollments.
// Preconditions run in order; the first failure wins. The approved
// application is always re-read from the store rather than trusted from a
// cached value, so a decision is observably durable before registration
// proceeds.
func (s *RegistrationService) Finalize(ctx context.Context, studentID string, req FinalizeRegistrationRequest) (*RegistrationDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	if studentID == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{"field": "student_id"})
	}

	if _, err := s.applications.FindApproved(ctx, studentID, req.CourseCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.ErrNoApprovedApplication, map[string]string{
				"student_id":  studentID,
				"course_code": req.CourseCode,
			})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}

	existing, err := s.repo.FindActiveByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check registration")
	}
	if existing != nil {
		// Duplicate finalize never creates a second registration, but it is
		// the documented retry path for membership rows that failed earlier.
		if repairErr := s.repairEnrollments(ctx, existing); repairErr != nil {
			s.logger.Warn("enrollment repair failed", zap.String("registration_id", existing.ID), zap.Error(repairErr))
		}
		return nil, appErrors.WithDetails(appErrors.ErrAlreadyRegistered, map[string]string{
			"student_id":      studentID,
			"registration_id": existing.ID,
		})
	}

	course, err := s.courses.FindByCode(ctx, req.CourseCode)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "course not found"), map[string]string{"course_code": req.CourseCode})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}
	if course.Years > 0 && req.Year > course.Years {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{
			"field": "year",
			"max":   fmt.Sprintf("%d", course.Years),
		})
	}

	selection, totalCredits, err := s.resolveSelection(ctx, req.CourseCode, req.SubjectCodes)
	if err != nil {
		return nil, err
	}

	registration := &models.Registration{
		StudentID:    studentID,
		CourseCode:   req.CourseCode,
		Year:         req.Year,
		SubjectCodes: selection,
		TotalCredits: totalCredits,
		Status:       models.RegistrationStatusActive,
	}
	if err := s.repo.Create(ctx, registration); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create registration")
	}
	// The registration row is durable from here on, even if membership
	// writes below fail, so cached cards are already stale.
	evictDashboards(ctx, s.dashboards, s.logger,
		fmt.Sprintf("dashboard:student:%s", studentID),
		"dashboard:admin",
		"dashboard:finance")

	var missing []string
	var firstErr error
	for _, code := range selection {
		enrollment := &models.SubjectEnrollment{
			RegistrationID: registration.ID,
			StudentID:      studentID,
			SubjectCode:    code,
			CourseCode:     req.CourseCode,
		}
		if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
			missing = append(missing, code)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	if len(missing) > 0 {
		s.logger.Error("registration enrollments incomplete",
			zap.String("registration_id", registration.ID),
			zap.Strings("missing_subjects", missing),
			zap.Error(firstErr))
		return nil, appErrors.WithDetails(
			appErrors.Wrap(firstErr, appErrors.ErrPartialRegistration.Code, appErrors.ErrPartialRegistration.Status, appErrors.ErrPartialRegistration.Message),
			map[string]string{
				"registration_id":  registration.ID,
				"missing_subjects": strings.Join(missing, ","),
			})
	}

	enrollments, err := s.repo.ListEnrollments(ctx, registration.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load enrollments")
	}
	s.logger.Info("registration finalized",
		zap.String("registration_id", registration.ID),
		zap.String("student_id", studentID),
		zap.Int("subjects", len(selection)),
		zap.Int("total_credits", totalCredits))
	return &RegistrationDetail{Registration: *registration, Enrollments: enrollments}, nil
}

// resolveSelection validates the subject selection against the course
// catalog and returns the deduplicated codes with their credit total.
func (s *RegistrationService) resolveSelection(ctx context.Context, courseCode string, codes []string) ([]string, int, error) {
	if len(codes) == 0 {
		return nil, 0, appErrors.WithDetails(appErrors.ErrInvalidSubjectSelection, map[string]string{"reason": "empty selection"})
	}

	catalog, err := s.subjects.ListByCourse(ctx, courseCode)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load subject catalog")
	}
	byCode := make(map[string]models.Subject, len(catalog))
	for _, subject := range catalog {
		byCode[subject.Code] = subject
	}

	seen := make(map[string]struct{}, len(codes))
	selection := make([]string, 0, len(codes))
	var unknown []string
	totalCredits := 0
	for _, code := range codes {
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		subject, ok := byCode[code]
		if !ok {
			unknown = append(unknown, code)
			continue
		}
		selection = append(selection, code)
		totalCredits += subject.Credits
	}
	if len(unknown) > 0 {
		return nil, 0, appErrors.WithDetails(appErrors.ErrInvalidSubjectSelection, map[string]string{
			"course_code":      courseCode,
			"unknown_subjects": strings.Join(unknown, ","),
		})
	}

	if s.policy.MinCredits > 0 && totalCredits < s.policy.MinCredits {
		return nil, 0, appErrors.WithDetails(appErrors.ErrInvalidSubjectSelection, map[string]string{
			"total_credits": fmt.Sprintf("%d", totalCredits),
			"min_credits":   fmt.Sprintf("%d", s.policy.MinCredits),
		})
	}
	if s.policy.MaxCredits > 0 && totalCredits > s.policy.MaxCredits {
		return nil, 0, appErrors.WithDetails(appErrors.ErrInvalidSubjectSelection, map[string]string{
			"total_credits": fmt.Sprintf("%d", totalCredits),
			"max_credits":   fmt.Sprintf("%d", s.policy.MaxCredits),
		})
	}

	return selection, totalCredits, nil
}

// repairEnrollments re-attempts membership rows recorded on the
// registration. The insert is a no-op for rows that already exist, so the
// call is safe to run any number of times.
func (s *RegistrationService) repairEnrollments(ctx context.Context, registration *models.Registration) error {
	existing, err := s.repo.ListEnrollments(ctx, registration.ID)
	if err != nil {
		return fmt.Errorf("list enrollments: %w", err)
	}
	present := make(map[string]struct{}, len(existing))
	for _, enrollment := range existing {
		present[enrollment.SubjectCode] = struct{}{}
	}
	for _, code := range registration.SubjectCodes {
		if _, ok := present[code]; ok {
			continue
		}
		enrollment := &models.SubjectEnrollment{
			RegistrationID: registration.ID,
			StudentID:      registration.StudentID,
			SubjectCode:    code,
			CourseCode:     registration.CourseCode,
		}
		if err := s.repo.CreateEnrollment(ctx, enrollment); err != nil {
			return fmt.Errorf("repair enrollment %s: %w", code, err)
		}
		s.logger.Info("enrollment repaired",
			zap.String("registration_id", registration.ID),
			zap.String("subject_code", code))
	}
	return nil
}
