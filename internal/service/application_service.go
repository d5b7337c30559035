package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
)

type applicationRepository interface {
	List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error)
	FindByID(ctx context.Context, id string) (*models.Application, error)
	ExistsApproved(ctx context.Context, studentID, courseCode, cycle string) (bool, error)
	Create(ctx context.Context, application *models.Application) error
	UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, decidedBy string, decidedAt time.Time) (bool, error)
}

type courseReader interface {
	FindByCode(ctx context.Context, code string) (*models.Course, error)
}

// SubmitApplicationRequest describes an admission submission.
type SubmitApplicationRequest struct {
	CourseCode    string `json:"course_code" validate:"required"`
	AcademicCycle string `json:"academic_cycle"`
}

// DecideApplicationRequest carries the admin decision payload.
type DecideApplicationRequest struct {
	Decision models.ApplicationDecision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
}

// ApplicationService owns the pending → approved/rejected transition.
type ApplicationService struct {
	repo       applicationRepository
	courses    courseReader
	dashboards dashboardEvictor
	validator  *validator.Validate
	logger     *zap.Logger
	now        func() time.Time
}

// NewApplicationService constructs ApplicationService. dashboards may be
// nil when no cache is configured.
func NewApplicationService(repo applicationRepository, courses courseReader, dashboards dashboardEvictor, validate *validator.Validate, logger *zap.Logger) *ApplicationService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ApplicationService{repo: repo, courses: courses, dashboards: dashboards, validator: validate, logger: logger, now: time.Now}
}

// List returns applications with pagination metadata.
func (s *ApplicationService) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, *models.Pagination, error) {
	applications, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list applications")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	pagination := &models.Pagination{Page: page, PageSize: size, TotalCount: total}
	return applications, pagination, nil
}

// Submit creates a pending application for the acting student.
// A rejected application never blocks resubmission; only an existing approved
// one for the same course and cycle does.
func (s *ApplicationService) Submit(ctx context.Context, studentID string, req SubmitApplicationRequest) (*models.Application, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid application payload")
	}
	if studentID == "" {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{"field": "student_id"})
	}
	if _, err := s.courses.FindByCode(ctx, req.CourseCode); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "course not found"), map[string]string{"course_code": req.CourseCode})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load course")
	}

	cycle := req.AcademicCycle
	if cycle == "" {
		cycle = currentAcademicCycle(s.now())
	}

	exists, err := s.repo.ExistsApproved(ctx, studentID, req.CourseCode, cycle)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate application")
	}
	if exists {
		return nil, appErrors.WithDetails(appErrors.ErrDuplicateApplication, map[string]string{
			"student_id":  studentID,
			"course_code": req.CourseCode,
		})
	}

	application := &models.Application{
		StudentID:     studentID,
		CourseCode:    req.CourseCode,
		AcademicCycle: cycle,
		Status:        models.ApplicationStatusPending,
		SubmittedAt:   s.now().UTC(),
	}
	if err := s.repo.Create(ctx, application); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create application")
	}
	s.logger.Info("application submitted",
		zap.String("application_id", application.ID),
		zap.String("student_id", studentID),
		zap.String("course_code", req.CourseCode))
	return application, nil
}

// Decide transitions a pending application to approved or rejected.
// The role check runs before any read or write.
func (s *ApplicationService) Decide(ctx context.Context, id string, req DecideApplicationRequest, actorID string, actorRole models.UserRole) (*models.Application, error) {
	if actorRole != models.RoleAdmin {
		return nil, appErrors.WithDetails(appErrors.ErrUnauthorizedRole, map[string]string{"required_role": string(models.RoleAdmin), "actor_role": string(actorRole)})
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	application, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "application not found"), map[string]string{"application_id": id})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load application")
	}
	if application.Status != models.ApplicationStatusPending {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]string{
			"application_id": id,
			"status":         string(application.Status),
		})
	}

	status := models.ApplicationStatusRejected
	if req.Decision == models.ApplicationDecisionApprove {
		status = models.ApplicationStatusApproved
		exists, err := s.repo.ExistsApproved(ctx, application.StudentID, application.CourseCode, application.AcademicCycle)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to validate decision")
		}
		if exists {
			return nil, appErrors.WithDetails(appErrors.ErrDuplicateApplication, map[string]string{
				"student_id":  application.StudentID,
				"course_code": application.CourseCode,
			})
		}
	}

	decidedAt := s.now().UTC()
	ok, err := s.repo.UpdateDecision(ctx, id, status, actorID, decidedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store decision")
	}
	if !ok {
		// Lost the race: another decision landed between read and write.
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]string{"application_id": id})
	}

	application.Status = status
	application.DecidedBy = &actorID
	application.DecidedAt = &decidedAt
	evictDashboards(ctx, s.dashboards, s.logger,
		fmt.Sprintf("dashboard:student:%s", application.StudentID),
		"dashboard:admin")
	s.logger.Info("application decided",
		zap.String("application_id", id),
		zap.String("decision", string(req.Decision)),
		zap.String("decided_by", actorID))
	return application, nil
}

// The academic year rolls over on September 1.
func currentAcademicCycle(now time.Time) string {
	year := now.Year()
	if now.Month() < time.September {
		year--
	}
	return fmt.Sprintf("%d/%d", year, year+1)
}
