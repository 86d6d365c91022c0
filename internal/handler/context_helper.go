package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/nitj-alumni/alumni-erp-api/internal/middleware"
	"github.com/nitj-alumni/alumni-erp-api/internal/models"
	appErrors "github.com/nitj-alumni/alumni-erp-api/pkg/errors"
	"github.com/nitj-alumni/alumni-erp-api/pkg/response"
)

// requireClaims returns the caller's claims or writes 401 and returns nil.
func requireClaims(c *gin.Context) *models.JWTClaims {
	claims := middleware.Claims(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return claims
}
