package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/models"
	"github.com/campuskit/campus-core-api/internal/service"
	appErrors "github.com/campuskit/campus-core-api/pkg/errors"
	"github.com/campuskit/campus-core-api/pkg/response"
)

// DashboardHandler exposes per-role aggregated dashboards.
type DashboardHandler struct {
	service *service.DashboardService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc *service.DashboardService) *DashboardHandler {
	return &DashboardHandler{service: svc}
}

// Dashboard godoc
// @Summary Role-scoped dashboard
// @Description Returns the aggregated dashboard matching the caller's role
// @Tags Dashboard
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /dashboard [get]
func (h *DashboardHandler) Dashboard(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	ctx := c.Request.Context()
	var (
		payload interface{}
		err     error
	)
	switch claims.Role {
	case models.RoleStudent:
		payload, err = h.service.StudentDashboard(ctx, claims.UserID)
	case models.RoleLecturer:
		payload, err = h.service.LecturerDashboard(ctx, claims.UserID)
	case models.RoleAdmin:
		payload, err = h.service.AdminDashboard(ctx)
	case models.RoleFinance:
		payload, err = h.service.FinanceDashboard(ctx)
	default:
		err = appErrors.ErrForbidden
	}
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, payload, nil)
}
