package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// StatementType enumerates supported asynchronous finance statements.
type StatementType string

const (
	// StatementTypeStudent renders one student's payment history and balance.
	StatementTypeStudent StatementType = "student"
	// StatementTypePortfolio renders the institution-wide reconciliation table.
	StatementTypePortfolio StatementType = "portfolio"
)

// StatementFormat enumerates supported export formats.
type StatementFormat string

const (
	StatementFormatCSV StatementFormat = "csv"
	StatementFormatPDF StatementFormat = "pdf"
)

// StatementStatus captures background job lifecycle states.
type StatementStatus string

const (
	StatementStatusQueued     StatementStatus = "QUEUED"
	StatementStatusProcessing StatementStatus = "PROCESSING"
	StatementStatusFinished   StatementStatus = "FINISHED"
	StatementStatusFailed     StatementStatus = "FAILED"
)

// StatementJob is persisted background job metadata for statement generation.
type StatementJob struct {
	ID           string             `db:"id" json:"id"`
	Type         StatementType      `db:"type" json:"type"`
	Params       StatementJobParams `db:"params" json:"params"`
	Status       StatementStatus    `db:"status" json:"status"`
	Progress     int                `db:"progress" json:"progress"`
	ResultURL    *string            `db:"result_url" json:"result_url,omitempty"`
	CreatedBy    string             `db:"created_by" json:"created_by"`
	CreatedAt    time.Time          `db:"created_at" json:"created_at"`
	FinishedAt   *time.Time         `db:"finished_at" json:"finished_at,omitempty"`
	ErrorMessage *string            `db:"error_message" json:"error_message,omitempty"`
}

// StatementJobParams stores request-scoped options persisted as JSONB.
type StatementJobParams struct {
	StudentID *string         `json:"studentId,omitempty"`
	Format    StatementFormat `json:"format"`
}

// Value marshals params to JSON for persistence.
func (p StatementJobParams) Value() (driver.Value, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal statement job params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSON payloads into the params struct.
func (p *StatementJobParams) Scan(value interface{}) error {
	if value == nil {
		*p = StatementJobParams{}
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for StatementJobParams", value)
	}
	if len(data) == 0 {
		*p = StatementJobParams{}
		return nil
	}
	if err := json.Unmarshal(data, p); err != nil {
		return fmt.Errorf("unmarshal statement job params: %w", err)
	}
	return nil
}
