package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// ApplicationRepository handles persistence of admission applications.
type ApplicationRepository struct {
	db *sqlx.DB
}

// NewApplicationRepository constructs the repository.
func NewApplicationRepository(db *sqlx.DB) *ApplicationRepository {
	return &ApplicationRepository{db: db}
}

// List returns applications filtered by the provided criteria.
func (r *ApplicationRepository) List(ctx context.Context, filter models.ApplicationFilter) ([]models.Application, int, error) {
	base := "FROM applications a"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("a.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("a.course_code = $%d", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("a.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"submitted_at": "a.submitted_at",
		"course_code":  "a.course_code",
		"status":       "a.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "submitted_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "a.submitted_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT a.id, a.student_id, a.course_code, a.academic_cycle, a.status, a.decided_by, a.decided_at, a.submitted_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var applications []models.Application
	if err := r.db.SelectContext(ctx, &applications, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list applications: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count applications: %w", err)
	}
	return applications, total, nil
}

// FindByID returns an application by its ID.
func (r *ApplicationRepository) FindByID(ctx context.Context, id string) (*models.Application, error) {
	const query = `SELECT id, student_id, course_code, academic_cycle, status, decided_by, decided_at, submitted_at FROM applications WHERE id = $1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, id); err != nil {
		return nil, err
	}
	return &application, nil
}

// FindApproved returns the approved application for a student/course pair if one exists.
func (r *ApplicationRepository) FindApproved(ctx context.Context, studentID, courseCode string) (*models.Application, error) {
	const query = `SELECT id, student_id, course_code, academic_cycle, status, decided_by, decided_at, submitted_at
        FROM applications WHERE student_id = $1 AND course_code = $2 AND status = $3
        ORDER BY submitted_at DESC LIMIT 1`
	var application models.Application
	if err := r.db.GetContext(ctx, &application, query, studentID, courseCode, models.ApplicationStatusApproved); err != nil {
		return nil, err
	}
	return &application, nil
}

// ExistsApproved checks the uniqueness invariant for approved applications within a cycle.
func (r *ApplicationRepository) ExistsApproved(ctx context.Context, studentID, courseCode, cycle string) (bool, error) {
	query := "SELECT 1 FROM applications WHERE student_id = $1 AND course_code = $2 AND status = $3"
	args := []interface{}{studentID, courseCode, models.ApplicationStatusApproved}
	if cycle != "" {
		query += fmt.Sprintf(" AND academic_cycle = $%d", len(args)+1)
		args = append(args, cycle)
	}
	query += " LIMIT 1"
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check approved application: %w", err)
	}
	return true, nil
}

// Create persists a new pending application record.
func (r *ApplicationRepository) Create(ctx context.Context, application *models.Application) error {
	if application.ID == "" {
		application.ID = uuid.NewString()
	}
	if application.SubmittedAt.IsZero() {
		application.SubmittedAt = time.Now().UTC()
	}
	if application.Status == "" {
		application.Status = models.ApplicationStatusPending
	}
	const query = `INSERT INTO applications (id, student_id, course_code, academic_cycle, status, decided_by, decided_at, submitted_at)
        VALUES (:id, :student_id, :course_code, :academic_cycle, :status, :decided_by, :decided_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, application); err != nil {
		return fmt.Errorf("create application: %w", err)
	}
	return nil
}

// UpdateDecision transitions a pending application to its terminal state.
// The status guard makes the write race-safe: zero rows means the row was
// no longer pending.
func (r *ApplicationRepository) UpdateDecision(ctx context.Context, id string, status models.ApplicationStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	const query = `UPDATE applications SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedBy, decidedAt, models.ApplicationStatusPending)
	if err != nil {
		return false, fmt.Errorf("decide application: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide application result: %w", err)
	}
	return affected > 0, nil
}

// CountByStatus returns the number of applications in the given state.
func (r *ApplicationRepository) CountByStatus(ctx context.Context, status models.ApplicationStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM applications WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count applications by status: %w", err)
	}
	return total, nil
}
