package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"boxoffice/internal/shared/config"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func holderEngine() *gin.Engine {
	gin.SetMode(gin.TestMode)
	cfg := &config.Config{JWT: config.JWTConfig{Secret: testSecret}}

	engine := gin.New()
	engine.GET("/whoami", OptionalAuthWithConfig(cfg), RequireHolder(), func(c *gin.Context) {
		holder, ok := HolderFromContext(c)
		if !ok {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.String(http.StatusOK, holder.Key())
	})
	engine.GET("/admin", JWTAuthWithConfig(cfg), RequireAdmin(), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return engine
}

func TestRequireHolderPrefersAuthenticatedUser(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, jwt.MapClaims{
		"type":    "access",
		"user_id": userID.String(),
		"role":    RoleCustomer,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})

	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	holderEngine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user:"+userID.String(), rec.Body.String())
}

func TestRequireHolderFallsBackToSession(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer not-a-jwt")
	req.Header.Set(SessionHeader, "guest-1")
	rec := httptest.NewRecorder()
	holderEngine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "session:guest-1", rec.Body.String())
}

func TestRequireHolderRejectsAnonymous(t *testing.T) {
	rec := httptest.NewRecorder()
	holderEngine().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRefreshTokenIsNotAccepted(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"type":    "refresh",
		"user_id": uuid.NewString(),
		"role":    RoleAdmin,
	})

	req := httptest.NewRequest(http.MethodGet, "/admin", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	holderEngine().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAdmin(t *testing.T) {
	cases := []struct {
		role string
		want int
	}{
		{RoleAdmin, http.StatusNoContent},
		{RoleStaff, http.StatusForbidden},
	}

	for _, tc := range cases {
		t.Run(tc.role, func(t *testing.T) {
			token := signToken(t, jwt.MapClaims{
				"type":    "access",
				"user_id": uuid.NewString(),
				"role":    tc.role,
			})
			req := httptest.NewRequest(http.MethodGet, "/admin", nil)
			req.Header.Set("Authorization", "Bearer "+token)
			rec := httptest.NewRecorder()
			holderEngine().ServeHTTP(rec, req)

			assert.Equal(t, tc.want, rec.Code)
		})
	}
}
