package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// FeePolicyRepository reads the required-fee baselines per course and year.
type FeePolicyRepository struct {
	db *sqlx.DB
}

// NewFeePolicyRepository constructs the repository.
func NewFeePolicyRepository(db *sqlx.DB) *FeePolicyRepository {
	return &FeePolicyRepository{db: db}
}

// FindByCourseYear returns the fee baseline for a course/year pair.
func (r *FeePolicyRepository) FindByCourseYear(ctx context.Context, courseCode string, year int) (*models.FeePolicy, error) {
	const query = `SELECT id, course_code, year, total_fees, created_at, updated_at
        FROM fee_policies WHERE course_code = $1 AND year = $2`
	var policy models.FeePolicy
	if err := r.db.GetContext(ctx, &policy, query, courseCode, year); err != nil {
		return nil, err
	}
	return &policy, nil
}

// List returns all fee baselines ordered by course and year.
func (r *FeePolicyRepository) List(ctx context.Context) ([]models.FeePolicy, error) {
	const query = `SELECT id, course_code, year, total_fees, created_at, updated_at
        FROM fee_policies ORDER BY course_code ASC, year ASC`
	var policies []models.FeePolicy
	if err := r.db.SelectContext(ctx, &policies, query); err != nil {
		return nil, fmt.Errorf("list fee policies: %w", err)
	}
	return policies, nil
}
