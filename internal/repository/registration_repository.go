package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// RegistrationRepository handles persistence of registrations and their
// subject-enrollment membership rows. The two writes are never wrapped in a
// transaction; the service layer owns the repair protocol.
type RegistrationRepository struct {
	db *sqlx.DB
}

// NewRegistrationRepository constructs the repository.
func NewRegistrationRepository(db *sqlx.DB) *RegistrationRepository {
	return &RegistrationRepository{db: db}
}

// FindActiveByStudent returns the student's active registration if one exists.
func (r *RegistrationRepository) FindActiveByStudent(ctx context.Context, studentID string) (*models.Registration, error) {
	const query = `SELECT id, student_id, course_code, year, subject_codes, total_credits, status, created_at
        FROM registrations WHERE student_id = $1 AND status = $2 LIMIT 1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, studentID, models.RegistrationStatusActive); err != nil {
		return nil, err
	}
	return &registration, nil
}

// FindByID returns a registration by its ID.
func (r *RegistrationRepository) FindByID(ctx context.Context, id string) (*models.Registration, error) {
	const query = `SELECT id, student_id, course_code, year, subject_codes, total_credits, status, created_at
        FROM registrations WHERE id = $1`
	var registration models.Registration
	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		return nil, err
	}
	return &registration, nil
}

// Create persists a new registration record.
func (r *RegistrationRepository) Create(ctx context.Context, registration *models.Registration) error {
	if registration.ID == "" {
		registration.ID = uuid.NewString()
	}
	if registration.CreatedAt.IsZero() {
		registration.CreatedAt = time.Now().UTC()
	}
	if registration.Status == "" {
		registration.Status = models.RegistrationStatusActive
	}
	const query = `INSERT INTO registrations (id, student_id, course_code, year, subject_codes, total_credits, status, created_at)
        VALUES (:id, :student_id, :course_code, :year, :subject_codes, :total_credits, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, registration); err != nil {
		return fmt.Errorf("create registration: %w", err)
	}
	return nil
}

// CreateEnrollment writes one membership row. Writing the same membership
// twice is a no-op, which is what makes the repair protocol retryable.
func (r *RegistrationRepository) CreateEnrollment(ctx context.Context, enrollment *models.SubjectEnrollment) error {
	if enrollment.ID == "" {
		enrollment.ID = uuid.NewString()
	}
	if enrollment.CreatedAt.IsZero() {
		enrollment.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO subject_enrollments (id, registration_id, student_id, subject_code, course_code, created_at)
        VALUES (:id, :registration_id, :student_id, :subject_code, :course_code, :created_at)
        ON CONFLICT (registration_id, subject_code) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, enrollment); err != nil {
		return fmt.Errorf("create subject enrollment: %w", err)
	}
	return nil
}

// ListEnrollments returns the membership rows for a registration.
func (r *RegistrationRepository) ListEnrollments(ctx context.Context, registrationID string) ([]models.SubjectEnrollment, error) {
	const query = `SELECT id, registration_id, student_id, subject_code, course_code, created_at
        FROM subject_enrollments WHERE registration_id = $1`
	var enrollments []models.SubjectEnrollment
	if err := r.db.SelectContext(ctx, &enrollments, query, registrationID); err != nil {
		return nil, fmt.Errorf("list subject enrollments: %w", err)
	}
	return enrollments, nil
}

// CountEnrolledBySubject counts active students carrying the subject.
func (r *RegistrationRepository) CountEnrolledBySubject(ctx context.Context, subjectCode string) (int, error) {
	const query = `SELECT COUNT(*) FROM subject_enrollments se
        JOIN registrations reg ON reg.id = se.registration_id
        WHERE se.subject_code = $1 AND reg.status = $2`
	var total int
	if err := r.db.GetContext(ctx, &total, query, subjectCode, models.RegistrationStatusActive); err != nil {
		return 0, fmt.Errorf("count subject enrollments: %w", err)
	}
	return total, nil
}

// CountActive returns the number of active registrations.
func (r *RegistrationRepository) CountActive(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM registrations WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, models.RegistrationStatusActive); err != nil {
		return 0, fmt.Errorf("count active registrations: %w", err)
	}
	return total, nil
}

// ListActive streams all active registrations, used by portfolio aggregation.
func (r *RegistrationRepository) ListActive(ctx context.Context) ([]models.Registration, error) {
	const query = `SELECT id, student_id, course_code, year, subject_codes, total_credits, status, created_at
        FROM registrations WHERE status = $1 ORDER BY created_at ASC`
	var registrations []models.Registration
	if err := r.db.SelectContext(ctx, &registrations, query, models.RegistrationStatusActive); err != nil {
		return nil, fmt.Errorf("list active registrations: %w", err)
	}
	return registrations, nil
}
