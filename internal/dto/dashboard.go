package dto

import (
	"github.com/shopspring/decimal"

	"github.com/campuskit/campus-core-api/internal/models"
)

// StudentDashboard is the aggregated read model for the STUDENT role.
// Every section degrades to a zero value when the underlying records are
// missing; absence of data is never an error on a dashboard.
type StudentDashboard struct {
	Application  *ApplicationCard          `json:"application"`
	Registration *RegistrationCard         `json:"registration"`
	Finance      *models.FinanceSummary    `json:"finance"`
	Timetable    []models.TimetableEntry   `json:"timetable_today"`
	Attendance   *models.AttendanceSummary `json:"attendance"`
	Results      ResultsCard               `json:"results"`
}

// ApplicationCard is the dashboard projection of the latest application.
type ApplicationCard struct {
	ID         string                   `json:"id"`
	CourseCode string                   `json:"course_code"`
	Status     models.ApplicationStatus `json:"status"`
}

// RegistrationCard is the dashboard projection of the active registration.
type RegistrationCard struct {
	ID           string   `json:"id"`
	CourseCode   string   `json:"course_code"`
	Year         int      `json:"year"`
	SubjectCodes []string `json:"subject_codes"`
	TotalCredits int      `json:"total_credits"`
}

// ResultsCard summarises grading progress for a student. AverageMark
// covers graded results only and is zero when nothing is graded yet.
type ResultsCard struct {
	Graded      int     `json:"graded"`
	Pending     int     `json:"pending"`
	AverageMark float64 `json:"average_mark"`
}

// LecturerDashboard is the aggregated read model for the LECTURER role.
// Subjects covers every subject the lecturer teaches; SessionsToday only
// the slots scheduled for the current weekday.
type LecturerDashboard struct {
	Subjects      []LecturerSubjectCard `json:"subjects"`
	SessionsToday []LecturerSessionCard `json:"sessions_today"`
	TotalSubjects int                   `json:"total_subjects"`
}

// LecturerSubjectCard pairs a taught subject with its roster size and
// outstanding grading load.
type LecturerSubjectCard struct {
	SubjectCode    string `json:"subject_code"`
	SubjectName    string `json:"subject_name"`
	EnrolledCount  int    `json:"enrolled_count"`
	PendingResults int    `json:"pending_results"`
}

// LecturerSessionCard is one timetable slot scheduled for today.
type LecturerSessionCard struct {
	SubjectCode string `json:"subject_code"`
	Room        string `json:"room"`
	StartTime   string `json:"start_time"`
	EndTime     string `json:"end_time"`
}

// AdminDashboard is the aggregated read model for the ADMIN role.
type AdminDashboard struct {
	Applications        ApplicationCounts `json:"applications"`
	ActiveRegistrations int               `json:"active_registrations"`
	Students            int               `json:"students"`
	Lecturers           int               `json:"lecturers"`
}

// ApplicationCounts breaks applications down by lifecycle state.
type ApplicationCounts struct {
	Pending  int `json:"pending"`
	Approved int `json:"approved"`
	Rejected int `json:"rejected"`
}

// FinanceDashboard is the aggregated read model for the FINANCE role.
// OutstandingTotal sums per-student outstanding balances across every
// active registration; overpaid students subtract from it.
type FinanceDashboard struct {
	PendingPayments  int             `json:"pending_payments"`
	ApprovedPayments int             `json:"approved_payments"`
	RejectedPayments int             `json:"rejected_payments"`
	CollectedAmount  decimal.Decimal `json:"collected_amount"`
	OutstandingTotal decimal.Decimal `json:"outstanding_total"`
}
