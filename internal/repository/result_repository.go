package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// ResultRepository reads grade records for dashboard aggregation.
type ResultRepository struct {
	db *sqlx.DB
}

// NewResultRepository constructs the repository.
func NewResultRepository(db *sqlx.DB) *ResultRepository {
	return &ResultRepository{db: db}
}

// ListByStudent returns all result rows for a student.
func (r *ResultRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Result, error) {
	const query = `SELECT id, student_id, subject_code, mark, grade, created_at, updated_at
        FROM results WHERE student_id = $1 ORDER BY subject_code ASC`
	var results []models.Result
	if err := r.db.SelectContext(ctx, &results, query, studentID); err != nil {
		return nil, fmt.Errorf("list student results: %w", err)
	}
	return results, nil
}

// CountPendingBySubject counts ungraded results for a subject.
func (r *ResultRepository) CountPendingBySubject(ctx context.Context, subjectCode string) (int, error) {
	const query = `SELECT COUNT(*) FROM results WHERE subject_code = $1 AND (mark = 0 OR grade IS NULL OR grade = '')`
	var total int
	if err := r.db.GetContext(ctx, &total, query, subjectCode); err != nil {
		return 0, fmt.Errorf("count pending results: %w", err)
	}
	return total, nil
}
