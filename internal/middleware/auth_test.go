package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/edu-admin-console/internal/models"
	"github.com/noah-isme/edu-admin-console/internal/session"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, role models.UserRole) string {
	t.Helper()
	claims := models.JWTClaims{
		UserID: "u1",
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func newProtectedRouter(roles ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(WithResponseMeta(), JWT(session.NewVerifier(testSecret)))
	router.GET("/pages", RequireRoles(roles...), func(c *gin.Context) {
		sess, _ := session.FromContext(c.Request.Context())
		c.JSON(http.StatusOK, gin.H{"token": sess.Token, "user": c.GetString("user_id"), "meta": ExtractMeta(c)})
	})
	return router
}

func TestJWTRejectsMissingAndForgedTokens(t *testing.T) {
	router := newProtectedRouter(models.RoleAdmin)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pages", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, "someone-else", models.RoleAdmin))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set("Authorization", "Token abc")
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestJWTForwardsTokenAndGatesRoles(t *testing.T) {
	router := newProtectedRouter(models.RoleAdmin, models.RoleFinance)

	token := signToken(t, testSecret, models.RoleFinance)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), token)
	assert.Contains(t, rec.Body.String(), `"user":"u1"`)
	assert.Contains(t, rec.Body.String(), "processing_time_ms")

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/pages", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, testSecret, models.RoleTeacher))
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
