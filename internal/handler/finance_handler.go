package handler

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/service"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/response"
)

// FinanceHandler exposes payment ledger and reconciliation endpoints.
type FinanceHandler struct {
	service *service.FinanceService
}

// NewFinanceHandler creates a new handler.
func NewFinanceHandler(svc *service.FinanceService) *FinanceHandler {
	return &FinanceHandler{service: svc}
}

// ListPayments godoc
// @Summary List payments
// @Description Back-office payment listing with filters
// @Tags Finance
// @Produce json
// @Param student_id query string false "Filter by student"
// @Param status query string false "Filter by status"
// @Param type query string false "Filter by type"
// @Success 200 {object} response.Envelope
// @Router /finance/payments [get]
func (h *FinanceHandler) ListPayments(c *gin.Context) {
	filter := models.PaymentFilter{
		StudentID: c.Query("student_id"),
		Status:    models.PaymentStatus(c.Query("status")),
		Type:      models.PaymentType(c.Query("type")),
		Page:      queryInt(c, "page", 1),
		PageSize:  queryInt(c, "page_size", 20),
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}

	payments, total, err := h.service.ListPayments(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, payments, pagination)
}

// MyPayments godoc
// @Summary Current student's payments
// @Tags Finance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /finance/payments/me [get]
func (h *FinanceHandler) MyPayments(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	payments, err := h.service.ListStudentPayments(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payments, nil)
}

// SubmitPayment godoc
// @Summary Submit a payment
// @Tags Finance
// @Accept json
// @Produce json
// @Param payload body service.SubmitPaymentRequest true "Payment payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /finance/payments [post]
func (h *FinanceHandler) SubmitPayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payment payload"))
		return
	}

	payment, err := h.service.SubmitPayment(c.Request.Context(), claims.UserID, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, payment)
}

// DecidePayment godoc
// @Summary Decide a pending payment
// @Description Apply an APPROVE or REJECT verdict; finance only
// @Tags Finance
// @Accept json
// @Produce json
// @Param id path string true "Payment ID"
// @Param payload body service.DecidePaymentRequest true "Decision payload"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /finance/payments/{id}/decision [patch]
func (h *FinanceHandler) DecidePayment(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req service.DecidePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid decision payload"))
		return
	}

	payment, err := h.service.DecidePayment(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// AttachProof godoc
// @Summary Attach proof of payment
// @Description Upload a proof document for the student's own pending payment
// @Tags Finance
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Payment ID"
// @Param file formData file true "Proof document"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /finance/payments/{id}/proof [post]
func (h *FinanceHandler) AttachProof(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "proof file required"))
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read proof file"))
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "failed to read proof file"))
		return
	}

	payment, err := h.service.AttachProof(c.Request.Context(), claims.UserID, c.Param("id"), fileHeader.Filename, data)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payment, nil)
}

// ProofURL godoc
// @Summary Signed proof download link
// @Tags Finance
// @Produce json
// @Param id path string true "Payment ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /finance/payments/{id}/proof-url [get]
func (h *FinanceHandler) ProofURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	token, expiresAt, err := h.service.ProofURL(c.Request.Context(), claims.UserID, claims.Role, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"token": token, "expires_at": expiresAt}, nil)
}

// DownloadProof godoc
// @Summary Download a payment proof
// @Description Serve the proof file referenced by a signed token
// @Tags Finance
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /finance/proofs/{token} [get]
func (h *FinanceHandler) DownloadProof(c *gin.Context) {
	file, err := h.service.OpenProof(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat proof file"))
		return
	}
	c.Header("Content-Disposition", "attachment; filename=\""+info.Name()+"\"")
	c.DataFromReader(http.StatusOK, info.Size(), "application/octet-stream", file, nil)
}

// MySummary godoc
// @Summary Current student's finance summary
// @Tags Finance
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /finance/summary/me [get]
func (h *FinanceHandler) MySummary(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	summary, err := h.service.SummaryFor(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}

// StudentSummary godoc
// @Summary Finance summary for a student
// @Description Back-office view of a student's reconciliation
// @Tags Finance
// @Produce json
// @Param id path string true "Student ID"
// @Success 200 {object} response.Envelope
// @Router /finance/summary/{id} [get]
func (h *FinanceHandler) StudentSummary(c *gin.Context) {
	summary, err := h.service.SummaryFor(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, summary, nil)
}
