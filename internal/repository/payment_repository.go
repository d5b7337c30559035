package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/campuskit/campus-core-api/internal/models"
)

// PaymentRepository handles persistence of payment submissions.
type PaymentRepository struct {
	db *sqlx.DB
}

// NewPaymentRepository constructs the repository.
func NewPaymentRepository(db *sqlx.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

// List returns payments filtered by the provided criteria.
func (r *PaymentRepository) List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	base := "FROM payments p"
	var conditions []string
	var args []interface{}

	if filter.StudentID != "" {
		conditions = append(conditions, fmt.Sprintf("p.student_id = $%d", len(args)+1))
		args = append(args, filter.StudentID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("p.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Type != "" {
		conditions = append(conditions, fmt.Sprintf("p.type = $%d", len(args)+1))
		args = append(args, filter.Type)
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"submitted_at": "p.submitted_at",
		"amount":       "p.amount",
		"status":       "p.status",
	}
	sortBy := filter.SortBy
	if sortBy == "" {
		sortBy = "submitted_at"
	}
	orderBy := allowedSorts[sortBy]
	if orderBy == "" {
		orderBy = "p.submitted_at"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "DESC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT p.id, p.student_id, p.amount, p.type, p.description, p.status, p.proof_ref, p.decided_by, p.decided_at, p.submitted_at
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}
	return payments, total, nil
}

// FindByID returns a payment by its ID.
func (r *PaymentRepository) FindByID(ctx context.Context, id string) (*models.Payment, error) {
	const query = `SELECT id, student_id, amount, type, description, status, proof_ref, decided_by, decided_at, submitted_at FROM payments WHERE id = $1`
	var payment models.Payment
	if err := r.db.GetContext(ctx, &payment, query, id); err != nil {
		return nil, err
	}
	return &payment, nil
}

// ListByStudent returns every payment the student has submitted.
func (r *PaymentRepository) ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error) {
	const query = `SELECT id, student_id, amount, type, description, status, proof_ref, decided_by, decided_at, submitted_at
        FROM payments WHERE student_id = $1 ORDER BY submitted_at ASC`
	var payments []models.Payment
	if err := r.db.SelectContext(ctx, &payments, query, studentID); err != nil {
		return nil, fmt.Errorf("list student payments: %w", err)
	}
	return payments, nil
}

// Create persists a new pending payment record.
func (r *PaymentRepository) Create(ctx context.Context, payment *models.Payment) error {
	if payment.ID == "" {
		payment.ID = uuid.NewString()
	}
	if payment.SubmittedAt.IsZero() {
		payment.SubmittedAt = time.Now().UTC()
	}
	if payment.Status == "" {
		payment.Status = models.PaymentStatusPending
	}
	const query = `INSERT INTO payments (id, student_id, amount, type, description, status, proof_ref, decided_by, decided_at, submitted_at)
        VALUES (:id, :student_id, :amount, :type, :description, :status, :proof_ref, :decided_by, :decided_at, :submitted_at)`
	if _, err := r.db.NamedExecContext(ctx, query, payment); err != nil {
		return fmt.Errorf("create payment: %w", err)
	}
	return nil
}

// UpdateDecision transitions a pending payment to its terminal state.
// Zero affected rows means the payment was no longer pending.
func (r *PaymentRepository) UpdateDecision(ctx context.Context, id string, status models.PaymentStatus, decidedBy string, decidedAt time.Time) (bool, error) {
	const query = `UPDATE payments SET status = $2, decided_by = $3, decided_at = $4 WHERE id = $1 AND status = $5`
	res, err := r.db.ExecContext(ctx, query, id, status, decidedBy, decidedAt, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("decide payment: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("decide payment result: %w", err)
	}
	return affected > 0, nil
}

// UpdateProofRef attaches an opaque proof-of-payment handle to a pending payment.
func (r *PaymentRepository) UpdateProofRef(ctx context.Context, id, proofRef string) (bool, error) {
	const query = `UPDATE payments SET proof_ref = $2 WHERE id = $1 AND status = $3`
	res, err := r.db.ExecContext(ctx, query, id, proofRef, models.PaymentStatusPending)
	if err != nil {
		return false, fmt.Errorf("attach payment proof: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("attach payment proof result: %w", err)
	}
	return affected > 0, nil
}

// SumApproved totals approved payment amounts, optionally scoped to one student.
// COALESCE keeps the result decimal-clean when no rows match.
func (r *PaymentRepository) SumApproved(ctx context.Context, studentID string) (decimal.Decimal, error) {
	query := "SELECT COALESCE(SUM(amount), 0) FROM payments WHERE status = $1"
	args := []interface{}{models.PaymentStatusApproved}
	if studentID != "" {
		query += " AND student_id = $2"
		args = append(args, studentID)
	}
	var total decimal.Decimal
	if err := r.db.GetContext(ctx, &total, query, args...); err != nil {
		return decimal.Zero, fmt.Errorf("sum approved payments: %w", err)
	}
	return total, nil
}

// CountByStatus returns the number of payments in the given state.
func (r *PaymentRepository) CountByStatus(ctx context.Context, status models.PaymentStatus) (int, error) {
	const query = `SELECT COUNT(*) FROM payments WHERE status = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, status); err != nil {
		return 0, fmt.Errorf("count payments by status: %w", err)
	}
	return total, nil
}
