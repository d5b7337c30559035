package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// SubjectRepository reads the subject catalog. The lifecycle engine never
// writes catalog entries.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository constructs the repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// List returns catalog subjects filtered by the provided criteria.
func (r *SubjectRepository) List(ctx context.Context, filter models.SubjectFilter) ([]models.Subject, int, error) {
	base := "FROM subjects s"
	var conditions []string
	var args []interface{}

	if filter.CourseCode != "" {
		conditions = append(conditions, fmt.Sprintf("s.course_code = $%d", len(args)+1))
		args = append(args, filter.CourseCode)
	}
	if filter.Semester > 0 {
		conditions = append(conditions, fmt.Sprintf("s.semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(s.code ILIKE $%d OR s.name ILIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+filter.Search+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"code":     "s.code",
		"name":     "s.name",
		"credits":  "s.credits",
		"semester": "s.semester",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "code"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "s.code"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
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

	query := fmt.Sprintf(`SELECT s.code, s.name, s.credits, s.course_code, s.semester, s.created_at, s.updated_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list subjects: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count subjects: %w", err)
	}
	return subjects, total, nil
}

// ListByCourse returns the full catalog offered under a course.
func (r *SubjectRepository) ListByCourse(ctx context.Context, courseCode string) ([]models.Subject, error) {
	const query = `SELECT code, name, credits, course_code, semester, created_at, updated_at
        FROM subjects WHERE course_code = $1 ORDER BY code ASC`
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, courseCode); err != nil {
		return nil, fmt.Errorf("list course subjects: %w", err)
	}
	return subjects, nil
}

// FindByCode returns a single catalog subject.
func (r *SubjectRepository) FindByCode(ctx context.Context, code string) (*models.Subject, error) {
	const query = `SELECT code, name, credits, course_code, semester, created_at, updated_at FROM subjects WHERE code = $1`
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, query, code); err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListByCodes returns the catalog entries for the provided codes.
func (r *SubjectRepository) ListByCodes(ctx context.Context, codes []string) ([]models.Subject, error) {
	if len(codes) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT code, name, credits, course_code, semester, created_at, updated_at
        FROM subjects WHERE code IN (?)`, codes)
	if err != nil {
		return nil, fmt.Errorf("build subject codes query: %w", err)
	}
	query = r.db.Rebind(query)
	var subjects []models.Subject
	if err := r.db.SelectContext(ctx, &subjects, query, args...); err != nil {
		return nil, fmt.Errorf("list subjects by code: %w", err)
	}
	return subjects, nil
}
