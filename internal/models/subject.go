package models

import "time"

// Subject represents a catalog course-unit with a credit weight.
// The lifecycle engine treats the catalog as read-only.
type Subject struct {
	Code       string    `db:"code" json:"code"`
	Name       string    `db:"name" json:"name"`
	Credits    int       `db:"credits" json:"credits"`
	CourseCode string    `db:"course_code" json:"course_code"`
	Semester   int       `db:"semester" json:"semester"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// SubjectFilter captures supported filters for listing subjects.
type SubjectFilter struct {
	CourseCode string
	Semester   int
	Search     string
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
