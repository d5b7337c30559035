package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/campus-core-api/internal/models"
)

// TimetableRepository reads scheduled slots for dashboard aggregation.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs the repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

// ListForSubjectsOnDay returns entries for the given subjects on a weekday.
func (r *TimetableRepository) ListForSubjectsOnDay(ctx context.Context, subjectCodes []string, dayOfWeek int) ([]models.TimetableEntry, error) {
	if len(subjectCodes) == 0 {
		return nil, nil
	}
	query, args, err := sqlx.In(`SELECT id, subject_code, lecturer_id, day_of_week, start_time, end_time, room, active, created_at
        FROM timetable_entries WHERE subject_code IN (?) AND day_of_week = ? ORDER BY start_time ASC`, subjectCodes, dayOfWeek)
	if err != nil {
		return nil, fmt.Errorf("build timetable query: %w", err)
	}
	query = r.db.Rebind(query)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// ListByLecturer returns every entry owned by the lecturer.
func (r *TimetableRepository) ListByLecturer(ctx context.Context, lecturerID string) ([]models.TimetableEntry, error) {
	const query = `SELECT id, subject_code, lecturer_id, day_of_week, start_time, end_time, room, active, created_at
        FROM timetable_entries WHERE lecturer_id = $1 ORDER BY day_of_week ASC, start_time ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, lecturerID); err != nil {
		return nil, fmt.Errorf("list lecturer timetable: %w", err)
	}
	return entries, nil
}
