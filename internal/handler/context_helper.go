package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/campuskit/campus-core-api/internal/middleware"
	"github.com/campuskit/campus-core-api/internal/models"
)

// claimsFromContext returns the authenticated caller's claims, or nil when
// the route was reached without passing the JWT middleware.
func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}
