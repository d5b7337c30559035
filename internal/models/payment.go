package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// PaymentStatus represents the payment lifecycle state.
type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "PENDING"
	PaymentStatusApproved PaymentStatus = "APPROVED"
	PaymentStatusRejected PaymentStatus = "REJECTED"
)

// Valid returns true when the status is a supported value.
func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusApproved, PaymentStatusRejected:
		return true
	default:
		return false
	}
}

// PaymentType categorises what a payment settles.
type PaymentType string

const (
	PaymentTypeTuition       PaymentType = "TUITION"
	PaymentTypeRegistration  PaymentType = "REGISTRATION"
	PaymentTypeAccommodation PaymentType = "ACCOMMODATION"
	PaymentTypeOther         PaymentType = "OTHER"
)

// Valid returns true when the type is a supported value.
func (t PaymentType) Valid() bool {
	switch t {
	case PaymentTypeTuition, PaymentTypeRegistration, PaymentTypeAccommodation, PaymentTypeOther:
		return true
	default:
		return false
	}
}

// PaymentDecision is the terminal outcome a finance actor assigns to a pending payment.
type PaymentDecision string

const (
	PaymentDecisionApprove PaymentDecision = "APPROVE"
	PaymentDecisionReject  PaymentDecision = "REJECT"
)

// Payment represents one financial submission by a student.
// Status starts at PENDING and is terminal once decided; a correction
// requires a new Payment record.
type Payment struct {
	ID          string          `db:"id" json:"id"`
	StudentID   string          `db:"student_id" json:"student_id"`
	Amount      decimal.Decimal `db:"amount" json:"amount"`
	Type        PaymentType     `db:"type" json:"type"`
	Description string          `db:"description" json:"description"`
	Status      PaymentStatus   `db:"status" json:"status"`
	ProofRef    *string         `db:"proof_ref" json:"proof_ref,omitempty"`
	DecidedBy   *string         `db:"decided_by" json:"decided_by,omitempty"`
	DecidedAt   *time.Time      `db:"decided_at" json:"decided_at,omitempty"`
	SubmittedAt time.Time       `db:"submitted_at" json:"submitted_at"`
}

// PaymentFilter captures supported filters for listing payments.
type PaymentFilter struct {
	StudentID string
	Status    PaymentStatus
	Type      PaymentType
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
