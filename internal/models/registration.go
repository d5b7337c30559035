package models

import (
	"time"

	"github.com/lib/pq"
)

// RegistrationStatus represents the registration lifecycle state.
type RegistrationStatus string

// RegistrationStatusActive is the only status this engine ever writes;
// subject add/drop after finalisation is handled elsewhere.
const RegistrationStatusActive RegistrationStatus = "ACTIVE"

// Registration is the finalized, active enrollment of a student into a
// course/year with a chosen subject set. The subject_codes column is the
// source of truth used to repair missing enrollment membership rows.
type Registration struct {
	ID           string             `db:"id" json:"id"`
	StudentID    string             `db:"student_id" json:"student_id"`
	CourseCode   string             `db:"course_code" json:"course_code"`
	Year         int                `db:"year" json:"year"`
	SubjectCodes pq.StringArray     `db:"subject_codes" json:"subject_codes"`
	TotalCredits int                `db:"total_credits" json:"total_credits"`
	Status       RegistrationStatus `db:"status" json:"status"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
}

// SubjectEnrollment is one membership row linking a registration to a subject.
// Rows are written idempotently; the pair (registration_id, subject_code) is unique.
type SubjectEnrollment struct {
	ID             string    `db:"id" json:"id"`
	RegistrationID string    `db:"registration_id" json:"registration_id"`
	StudentID      string    `db:"student_id" json:"student_id"`
	SubjectCode    string    `db:"subject_code" json:"subject_code"`
	CourseCode     string    `db:"course_code" json:"course_code"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
