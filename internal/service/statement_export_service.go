package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/pkg/export"
	"github.com/campuskit/campus-core-api/pkg/storage"
)

type statementPaymentLister interface {
	ListByStudent(ctx context.Context, studentID string) ([]models.Payment, error)
}

type statementRegistrationLister interface {
	ListActive(ctx context.Context) ([]models.Registration, error)
}

type fileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// StatementExportConfig tunes statement export behaviour.
type StatementExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// StatementResult captures successful generation metadata.
type StatementResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.StatementFormat
	ExpiresAt    time.Time
}

// StatementExportService builds finance statement datasets and persists
// rendered files behind signed download tokens.
type StatementExportService struct {
	payments      statementPaymentLister
	registrations statementRegistrationLister
	finance       financeSummarizer
	storage       fileStorage
	csv           csvRenderer
	pdf           pdfRenderer
	signer        *storage.SignedURLSigner
	logger        *zap.Logger
	cfg           StatementExportConfig
}

// NewStatementExportService constructs a StatementExportService.
func NewStatementExportService(payments statementPaymentLister, registrations statementRegistrationLister, finance financeSummarizer, store fileStorage, signer *storage.SignedURLSigner, cfg StatementExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *StatementExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &StatementExportService{
		payments:      payments,
		registrations: registrations,
		finance:       finance,
		storage:       store,
		csv:           csv,
		pdf:           pdf,
		signer:        signer,
		logger:        logger,
		cfg:           cfg,
	}
}

// Generate builds the dataset for the job and stores the rendered export.
func (s *StatementExportService) Generate(ctx context.Context, job *models.StatementJob) (*StatementResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.StatementFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.StatementFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := s.buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	signedURL := strings.TrimRight(s.cfg.APIPrefix, "/")
	if signedURL == "" {
		signedURL = "/api/v1"
	}
	signedURL = fmt.Sprintf("%s/finance/statements/download/%s", signedURL, token)

	return &StatementResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *StatementExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *StatementExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *StatementExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *StatementExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *StatementExportService) buildFilename(job *models.StatementJob) string {
	stamp := time.Now().UTC().Format("20060102T150405")
	scope := "portfolio"
	if job.Params.StudentID != nil && *job.Params.StudentID != "" {
		scope = sanitizeFilename(*job.Params.StudentID)
	}
	return fmt.Sprintf("statement_%s_%s_%s.%s", job.Type, scope, stamp, job.Params.Format)
}

func sanitizeFilename(raw string) string {
	replacer := strings.NewReplacer("/", "-", "\\", "-", " ", "_", "..", "-")
	return replacer.Replace(raw)
}

func (s *StatementExportService) buildDataset(ctx context.Context, job *models.StatementJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.StatementTypeStudent:
		return s.buildStudentDataset(ctx, job.Params)
	case models.StatementTypePortfolio:
		return s.buildPortfolioDataset(ctx)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported statement type %s", job.Type)
	}
}

func (s *StatementExportService) buildStudentDataset(ctx context.Context, params models.StatementJobParams) (export.Dataset, string, error) {
	if params.StudentID == nil || *params.StudentID == "" {
		return export.Dataset{}, "", fmt.Errorf("student statement requires studentId")
	}
	studentID := *params.StudentID

	payments, err := s.payments.ListByStudent(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", err
	}
	summary, err := s.finance.SummaryFor(ctx, studentID)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(payments)+3)
	for _, payment := range payments {
		rows = append(rows, map[string]string{
			"Date":        payment.SubmittedAt.Format("2006-01-02"),
			"Type":        string(payment.Type),
			"Description": payment.Description,
			"Amount":      payment.Amount.StringFixed(2),
			"Status":      string(payment.Status),
		})
	}
	rows = append(rows,
		map[string]string{"Description": "Total fees", "Amount": summary.TotalFees.StringFixed(2)},
		map[string]string{"Description": "Paid", "Amount": summary.PaidAmount.StringFixed(2)},
		map[string]string{"Description": "Outstanding", "Amount": summary.OutstandingAmount.StringFixed(2), "Status": string(summary.Status)},
	)

	dataset := export.Dataset{
		Headers: []string{"Date", "Type", "Description", "Amount", "Status"},
		Rows:    rows,
	}
	title := fmt.Sprintf("Finance Statement - Student %s", studentID)
	return dataset, title, nil
}

func (s *StatementExportService) buildPortfolioDataset(ctx context.Context) (export.Dataset, string, error) {
	registrations, err := s.registrations.ListActive(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}

	rows := make([]map[string]string, 0, len(registrations))
	for _, registration := range registrations {
		summary, err := s.finance.SummaryFor(ctx, registration.StudentID)
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows = append(rows, map[string]string{
			"Student":     registration.StudentID,
			"Course":      registration.CourseCode,
			"Year":        fmt.Sprintf("%d", registration.Year),
			"Total Fees":  summary.TotalFees.StringFixed(2),
			"Paid":        summary.PaidAmount.StringFixed(2),
			"Outstanding": summary.OutstandingAmount.StringFixed(2),
			"Status":      string(summary.Status),
		})
	}

	dataset := export.Dataset{
		Headers: []string{"Student", "Course", "Year", "Total Fees", "Paid", "Outstanding", "Status"},
		Rows:    rows,
	}
	return dataset, "Finance Statement - Portfolio", nil
}
