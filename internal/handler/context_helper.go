package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/edu-admin-console/internal/middleware"
	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/service"
	"github.com/noah-isme/edu-admin-console/internal/session"
	appErrors "github.com/noah-isme/edu-admin-console/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// actorFromContext combines verified claims with the forwarded session.
func actorFromContext(c *gin.Context) (service.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.UserID == "" {
		return service.Actor{}, appErrors.Clone(appErrors.ErrUnauthorized, "missing user context")
	}
	sess, _ := session.FromContext(c.Request.Context())
	return service.Actor{UserID: claims.UserID, Role: claims.Role, Session: sess}, nil
}

func boolQuery(c *gin.Context, key string) bool {
	switch c.Query(key) {
	case "1", "true", "TRUE", "True", "yes":
		return true
	}
	return false
}
