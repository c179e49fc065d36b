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

	"github.com/noah-isme/cafe-roster-api/internal/models"
	"github.com/noah-isme/cafe-roster-api/internal/service"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims models.JWTClaims) string {
	t.Helper()
	claims.RegisteredClaims = jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	return token
}

func protectedRouter(allowed ...models.UserRole) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(JWT(service.NewAuthService(testSecret)))
	r.GET("/staff/:id/availability", RBAC(allowed...), func(c *gin.Context) {
		c.String(http.StatusOK, Claims(c).UserID)
	})
	return r
}

func get(r http.Handler, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

func TestJWTRejectsMissingAndInvalidTokens(t *testing.T) {
	r := protectedRouter(models.RoleManager)

	assert.Equal(t, http.StatusUnauthorized, get(r, "/staff/s1/availability", "").Code)
	assert.Equal(t, http.StatusUnauthorized, get(r, "/staff/s1/availability", "not-a-jwt").Code)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/staff/s1/availability", nil)
	req.Header.Set("Authorization", "Token abc")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRBACRoles(t *testing.T) {
	r := protectedRouter(models.RoleManager, models.RoleAdmin)

	manager := signToken(t, models.JWTClaims{UserID: "m1", Role: models.RoleManager})
	w := get(r, "/staff/s1/availability", manager)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "m1", w.Body.String())

	staff := signToken(t, models.JWTClaims{UserID: "u1", StaffID: "s1", Role: models.RoleStaff})
	assert.Equal(t, http.StatusForbidden, get(r, "/staff/s1/availability", staff).Code)
}

func TestRBACSelf(t *testing.T) {
	r := protectedRouter(RoleSelf, models.RoleManager)
	staff := signToken(t, models.JWTClaims{UserID: "u1", StaffID: "s1", Role: models.RoleStaff})

	assert.Equal(t, http.StatusOK, get(r, "/staff/s1/availability", staff).Code)
	assert.Equal(t, http.StatusForbidden, get(r, "/staff/s2/availability", staff).Code)
}

func TestRBACWithoutClaims(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.GET("/x", RBAC(models.RoleAdmin), func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusUnauthorized, get(r, "/x", "").Code)
}
