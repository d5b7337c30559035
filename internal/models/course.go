package models

import "time"

// Course represents a degree programme under which subjects are offered.
type Course struct {
	Code      string    `db:"code" json:"code"`
	Name      string    `db:"name" json:"name"`
	Faculty   string    `db:"faculty" json:"faculty"`
	Years     int       `db:"years" json:"years"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}
