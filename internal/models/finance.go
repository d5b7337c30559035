package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// FinanceStatus is the derived settlement state for a student.
type FinanceStatus string

const (
	FinanceStatusPaid    FinanceStatus = "PAID"
	FinanceStatusPartial FinanceStatus = "PARTIAL"
)

// FeePolicy is the required-fee baseline for a course and year.
// Policies are data, not constants: the refund/overpayment question
// stays with the finance team.
type FeePolicy struct {
	ID         string          `db:"id" json:"id"`
	CourseCode string          `db:"course_code" json:"course_code"`
	Year       int             `db:"year" json:"year"`
	TotalFees  decimal.Decimal `db:"total_fees" json:"total_fees"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time       `db:"updated_at" json:"updated_at"`
}

// FinanceSummary is the derived, non-persisted reconciliation of approved
// payments against required fees. OutstandingAmount may go negative on
// overpayment; that is surfaced, never treated as an error.
type FinanceSummary struct {
	StudentID         string          `json:"student_id"`
	TotalFees         decimal.Decimal `json:"total_fees"`
	PaidAmount        decimal.Decimal `json:"paid_amount"`
	OutstandingAmount decimal.Decimal `json:"outstanding_amount"`
	Status            FinanceStatus   `json:"status"`
}

// ComputeFinanceSummary reconciles approved payments against the fee baseline.
// It is a pure function of its inputs: only APPROVED payments contribute, and
// exact settlement (outstanding == 0) counts as paid.
func ComputeFinanceSummary(studentID string, totalFees decimal.Decimal, payments []Payment) FinanceSummary {
	paid := decimal.Zero
	for _, p := range payments {
		if p.Status == PaymentStatusApproved {
			paid = paid.Add(p.Amount)
		}
	}
	outstanding := totalFees.Sub(paid)
	status := FinanceStatusPartial
	if outstanding.Sign() <= 0 {
		status = FinanceStatusPaid
	}
	return FinanceSummary{
		StudentID:         studentID,
		TotalFees:         totalFees,
		PaidAmount:        paid,
		OutstandingAmount: outstanding,
		Status:            status,
	}
}
