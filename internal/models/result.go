package models

import "time"

// Result is a read-only grade record consumed by dashboard aggregation.
// A zero mark or missing grade string marks the result as not yet graded.
type Result struct {
	ID          string    `db:"id" json:"id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	SubjectCode string    `db:"subject_code" json:"subject_code"`
	Mark        float64   `db:"mark" json:"mark"`
	Grade       *string   `db:"grade" json:"grade,omitempty"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// Pending reports whether the result still awaits grading.
func (r Result) Pending() bool {
	return r.Mark == 0 || r.Grade == nil || *r.Grade == ""
}
