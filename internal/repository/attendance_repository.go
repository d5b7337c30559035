package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// AttendanceRepository reads attendance rows for dashboard aggregation.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

// SummaryByStudent aggregates a student's attendance counts store-side.
func (r *AttendanceRepository) SummaryByStudent(ctx context.Context, studentID string) (*models.AttendanceSummary, error) {
	const query = `SELECT
        COUNT(*) FILTER (WHERE status = $2) AS present,
        COUNT(*) AS total
        FROM attendance_records WHERE student_id = $1`
	var row struct {
		Present int `db:"present"`
		Total   int `db:"total"`
	}
	if err := r.db.GetContext(ctx, &row, query, studentID, models.AttendanceStatusPresent); err != nil {
		if err == sql.ErrNoRows {
			return &models.AttendanceSummary{}, nil
		}
		return nil, fmt.Errorf("summarise attendance: %w", err)
	}
	summary := &models.AttendanceSummary{Present: row.Present, Total: row.Total}
	if row.Total > 0 {
		summary.Rate = float64(row.Present) / float64(row.Total)
	}
	return summary, nil
}

// ListByStudent returns all attendance rows for a student.
func (r *AttendanceRepository) ListByStudent(ctx context.Context, studentID string) ([]models.AttendanceRecord, error) {
	const query = `SELECT id, student_id, subject_code, date, status, created_at
        FROM attendance_records WHERE student_id = $1 ORDER BY date DESC`
	var records []models.AttendanceRecord
	if err := r.db.SelectContext(ctx, &records, query, studentID); err != nil {
		return nil, fmt.Errorf("list attendance records: %w", err)
	}
	return records, nil
}
