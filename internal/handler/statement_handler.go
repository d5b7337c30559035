package handler

import (
	"context"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/dto"
	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/service"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/response"
)

type statementService interface {
	CreateJob(ctx context.Context, req dto.StatementRequest, actorID string, role models.UserRole) (*dto.StatementJobResponse, error)
	GetStatus(ctx context.Context, id string, actorID string, role models.UserRole) (*dto.StatementStatusResponse, error)
	ResolveDownload(ctx context.Context, token string) (*service.StatementDownload, error)
}

// StatementHandler exposes asynchronous finance statement endpoints.
type StatementHandler struct {
	service statementService
}

// NewStatementHandler creates a new handler.
func NewStatementHandler(svc statementService) *StatementHandler {
	return &StatementHandler{service: svc}
}

// Generate godoc
// @Summary Request a finance statement
// @Description Queue asynchronous generation of a CSV or PDF statement
// @Tags Statements
// @Accept json
// @Produce json
// @Param payload body dto.StatementRequest true "Statement request"
// @Success 202 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /finance/statements [post]
func (h *StatementHandler) Generate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.StatementRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid statement payload"))
		return
	}

	job, err := h.service.CreateJob(c.Request.Context(), req, claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// Status godoc
// @Summary Statement job status
// @Tags Statements
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /finance/statements/{id} [get]
func (h *StatementHandler) Status(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	status, err := h.service.GetStatus(c.Request.Context(), c.Param("id"), claims.UserID, claims.Role)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status, nil)
}

// Download godoc
// @Summary Download a finished statement
// @Description Serve the export referenced by a signed token
// @Tags Statements
// @Produce octet-stream
// @Param token path string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /finance/statements/download/{token} [get]
func (h *StatementHandler) Download(c *gin.Context) {
	result, err := h.service.ResolveDownload(c.Request.Context(), c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer result.File.Close()

	info, err := result.File.Stat()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to stat export file"))
		return
	}

	mime := "text/csv"
	if result.Format == models.StatementFormatPDF {
		mime = "application/pdf"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=\"%s\"", result.Filename))
	c.DataFromReader(http.StatusOK, info.Size(), mime, result.File, nil)
}
