package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/pkg/config"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/storage"
)

type paymentRepository interface {
	List(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error)
	FindByID(ctx context.Context, id string) (*models.Payment, error)
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
	Create(ctx context.Context, payment *models.Payment) error
	UpdateDecision(ctx context.Context, id string, status models.PaymentStatus, decidedBy string, decidedAt time.Time) (bool, error)
	UpdateProofRef(ctx context.Context, id, proofRef string) (bool, error)
}

type feePolicyReader interface {
	FindByCourseYear(ctx context.Context, courseCode string, year int) (*models.FeePolicy, error)
}

type activeRegistrationReader interface {
	FindActiveByStudent(ctx context.Context, studentID string) (*models.Registration, error)
}

type proofStore interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

// SubmitPaymentRequest records one financial submission by a student.
type SubmitPaymentRequest struct {
	Amount      decimal.Decimal    `json:"amount" validate:"required"`
	Type        models.PaymentType `json:"type" validate:"required"`
	Description string             `json:"description" validate:"max=500"`
}

// DecidePaymentRequest carries the finance actor's verdict on a pending payment.
type DecidePaymentRequest struct {
	Decision models.PaymentDecision `json:"decision" validate:"required,oneof=APPROVE REJECT"`
}

// FinanceService owns the payment ledger and the derived settlement
// summary. Decisions are one-shot transitions out of PENDING; corrections
// enter the ledger as new records, never as edits.
type FinanceService struct {
	payments      paymentRepository
	registrations activeRegistrationReader
	policies      feePolicyReader
	proofs        proofStore
	signer        *storage.SignedURLSigner
	dashboards    dashboardEvictor
	proofsCfg     config.ProofsConfig
	validator     *validator.Validate
	logger        *zap.Logger

	now func() time.Time
}

// NewFinanceService constructs FinanceService. dashboards may be nil when
// no cache is configured.
func NewFinanceService(payments paymentRepository, registrations activeRegistrationReader, policies feePolicyReader, proofs proofStore, signer *storage.SignedURLSigner, dashboards dashboardEvictor, proofsCfg config.ProofsConfig, validate *validator.Validate, logger *zap.Logger) *FinanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FinanceService{
		payments:      payments,
		registrations: registrations,
		policies:      policies,
		proofs:        proofs,
		signer:        signer,
		dashboards:    dashboards,
		proofsCfg:     proofsCfg,
		validator:     validate,
		logger:        logger,
		now:           time.Now,
	}
}

// ListPayments returns payments for back-office review.
func (s *FinanceService) ListPayments(ctx context.Context, filter models.PaymentFilter) ([]models.Payment, int, error) {
	payments, total, err := s.payments.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, total, nil
}

// ListStudentPayments returns the student's own ledger entries.
func (s *FinanceService) ListStudentPayments(ctx context.Context, studentID string) ([]models.Payment, error) {
	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}
	return payments, nil
}

// SubmitPayment appends a PENDING payment to the ledger.
func (s *FinanceService) SubmitPayment(ctx context.Context, studentID string, req SubmitPaymentRequest) (*models.Payment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid payment payload")
	}
	if req.Amount.Sign() <= 0 {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{
			"field":  "amount",
			"reason": "must be positive",
		})
	}
	if !req.Type.Valid() {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{"field": "type"})
	}

	payment := &models.Payment{
		StudentID:   studentID,
		Amount:      req.Amount,
		Type:        req.Type,
		Description: req.Description,
		Status:      models.PaymentStatusPending,
		SubmittedAt: s.now(),
	}
	if err := s.payments.Create(ctx, payment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create payment")
	}
	evictDashboards(ctx, s.dashboards, s.logger, "dashboard:finance")
	s.logger.Info("payment submitted",
		zap.String("payment_id", payment.ID),
		zap.String("student_id", studentID),
		zap.String("amount", payment.Amount.String()),
		zap.String("type", string(payment.Type)))
	return payment, nil
}

// DecidePayment applies an APPROVE/REJECT verdict to a pending payment.
// Only FINANCE actors may decide, and the role check runs before the
// record is even looked up.
func (s *FinanceService) DecidePayment(ctx context.Context, actorID string, actorRole models.UserRole, paymentID string, req DecidePaymentRequest) (*models.Payment, error) {
	if actorRole != models.RoleFinance {
		return nil, appErrors.WithDetails(appErrors.ErrUnauthorizedRole, map[string]string{
			"required_role": string(models.RoleFinance),
			"actor_role":    string(actorRole),
		})
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid decision payload")
	}

	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "payment not found"), map[string]string{"payment_id": paymentID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]string{
			"payment_id":     paymentID,
			"current_status": string(payment.Status),
		})
	}

	status := models.PaymentStatusRejected
	if req.Decision == models.PaymentDecisionApprove {
		status = models.PaymentStatusApproved
	}
	decidedAt := s.now()
	ok, err := s.payments.UpdateDecision(ctx, paymentID, status, actorID, decidedAt)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to decide payment")
	}
	if !ok {
		// Lost the race against a concurrent decision.
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]string{"payment_id": paymentID})
	}

	payment.Status = status
	payment.DecidedBy = &actorID
	payment.DecidedAt = &decidedAt
	evictDashboards(ctx, s.dashboards, s.logger,
		fmt.Sprintf("dashboard:student:%s", payment.StudentID),
		"dashboard:finance")
	s.logger.Info("payment decided",
		zap.String("payment_id", paymentID),
		zap.String("decided_by", actorID),
		zap.String("status", string(status)))
	return payment, nil
}

// AttachProof stores a proof-of-payment document for the student's own
// pending payment and records its reference on the ledger entry.
func (s *FinanceService) AttachProof(ctx context.Context, studentID, paymentID, filename string, data []byte) (*models.Payment, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "payment not found"), map[string]string{"payment_id": paymentID})
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if payment.StudentID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	if payment.Status != models.PaymentStatusPending {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]string{
			"payment_id":     paymentID,
			"current_status": string(payment.Status),
		})
	}

	if s.proofsCfg.MaxFileSizeBytes > 0 && int64(len(data)) > s.proofsCfg.MaxFileSizeBytes {
		return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{
			"field":     "file",
			"max_bytes": fmt.Sprintf("%d", s.proofsCfg.MaxFileSizeBytes),
		})
	}
	if len(s.proofsCfg.AllowedMIMEs) > 0 {
		detected := http.DetectContentType(data)
		allowed := false
		for _, mime := range s.proofsCfg.AllowedMIMEs {
			if detected == mime {
				allowed = true
				break
			}
		}
		if !allowed {
			return nil, appErrors.WithDetails(appErrors.ErrValidation, map[string]string{
				"field":         "file",
				"detected_mime": detected,
			})
		}
	}

	proofRef := fmt.Sprintf("%s%s", paymentID, filepath.Ext(filename))
	if _, err := s.proofs.Save(proofRef, data); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store proof")
	}
	ok, err := s.payments.UpdateProofRef(ctx, paymentID, proofRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record proof")
	}
	if !ok {
		return nil, appErrors.WithDetails(appErrors.ErrInvalidTransition, map[string]string{"payment_id": paymentID})
	}

	payment.ProofRef = &proofRef
	s.logger.Info("payment proof attached",
		zap.String("payment_id", paymentID),
		zap.String("proof_ref", proofRef))
	return payment, nil
}

// ProofURL returns a short-lived signed download link for a payment's proof.
// Students may only link their own payments; finance actors may link any.
func (s *FinanceService) ProofURL(ctx context.Context, actorID string, actorRole models.UserRole, paymentID string) (string, time.Time, error) {
	payment, err := s.payments.FindByID(ctx, paymentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", time.Time{}, appErrors.WithDetails(appErrors.Clone(appErrors.ErrNotFound, "payment not found"), map[string]string{"payment_id": paymentID})
		}
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load payment")
	}
	if actorRole == models.RoleStudent && payment.StudentID != actorID {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrForbidden, "payment belongs to another student")
	}
	if payment.ProofRef == nil {
		return "", time.Time{}, appErrors.Clone(appErrors.ErrNotFound, "payment has no proof attached")
	}
	token, expiresAt, err := s.signer.Generate(payment.ID, *payment.ProofRef)
	if err != nil {
		return "", time.Time{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign proof url")
	}
	return token, expiresAt, nil
}

// OpenProof validates a signed token and opens the referenced proof file.
func (s *FinanceService) OpenProof(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid or expired proof link")
	}
	file, err := s.proofs.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "proof file not found")
	}
	return file, nil
}

// SummaryFor reconciles the student's approved payments against the fee
// baseline for their active registration. A student with no registration
// or no matching fee policy reconciles against a zero baseline rather
// than failing.
func (s *FinanceService) SummaryFor(ctx context.Context, studentID string) (*models.FinanceSummary, error) {
	totalFees := decimal.Zero
	registration, err := s.registrations.FindActiveByStudent(ctx, studentID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registration")
	}
	if registration != nil {
		policy, err := s.policies.FindByCourseYear(ctx, registration.CourseCode, registration.Year)
		if err != nil && !errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load fee policy")
		}
		if policy != nil {
			totalFees = policy.TotalFees
		}
	}

	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list payments")
	}

	summary := models.ComputeFinanceSummary(studentID, totalFees, payments)
	return &summary, nil
}
