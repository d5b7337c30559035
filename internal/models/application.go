package models

import "time"

// ApplicationStatus represents the admission application lifecycle state.
type ApplicationStatus string

const (
	ApplicationStatusPending  ApplicationStatus = "PENDING"
	ApplicationStatusApproved ApplicationStatus = "APPROVED"
	ApplicationStatusRejected ApplicationStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	default:
		return false
	}
}

// ApplicationDecision is the terminal outcome an admin assigns to a pending application.
type ApplicationDecision string

const (
	ApplicationDecisionApprove ApplicationDecision = "APPROVE"
	ApplicationDecisionReject  ApplicationDecision = "REJECT"
)

// Application represents a student's request for admission to a course.
// Once decided it is immutable; a rejected application never blocks resubmission.
type Application struct {
	ID            string            `db:"id" json:"id"`
	StudentID     string            `db:"student_id" json:"student_id"`
	CourseCode    string            `db:"course_code" json:"course_code"`
	AcademicCycle string            `db:"academic_cycle" json:"academic_cycle"`
	Status        ApplicationStatus `db:"status" json:"status"`
	DecidedBy     *string           `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt     *time.Time        `db:"decided_at" json:"decided_at,omitempty"`
	SubmittedAt   time.Time         `db:"submitted_at" json:"submitted_at"`
}

// ApplicationFilter captures supported filters for listing applications.
type ApplicationFilter struct {
	StudentID  string
	CourseCode string
	Status     ApplicationStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
