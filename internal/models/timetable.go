package models

import "time"

// TimetableEntry is a read-only scheduled slot for a subject. The lecturer
// listed on the entry owns the subject for roster purposes.
type TimetableEntry struct {
	ID          string    `db:"id" json:"id"`
	SubjectCode string    `db:"subject_code" json:"subject_code"`
	LecturerID  string    `db:"lecturer_id" json:"lecturer_id"`
	DayOfWeek   int       `db:"day_of_week" json:"day_of_week"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	Room        string    `db:"room" json:"room"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}
