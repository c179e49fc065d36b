package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/cafe-roster-api/internal/middleware"
	"github.com/noah-isme/cafe-roster-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.Claims(c)
}

// actorID is the user id recorded as created_by or approved_by.
func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}
