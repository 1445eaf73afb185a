package middleware

import (
	"net/http"
	"strings"

	"boxoffice/internal/shared/access"
	"boxoffice/internal/shared/config"
	"boxoffice/internal/shared/utils/response"
	"boxoffice/pkg/logger"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// Roles carried in the access token
const (
	RoleCustomer = "CUSTOMER"
	RoleStaff    = "STAFF"
	RoleAdmin    = "ADMIN"
)

// SessionHeader identifies a guest checkout
const SessionHeader = "X-Session-ID"

const holderContextKey = "holder"

// JWTAuth creates a JWT authentication middleware
func JWTAuth() gin.HandlerFunc {
	return JWTAuthWithConfig(config.Load())
}

// JWTAuthWithConfig creates a JWT authentication middleware with config
func JWTAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "Authorization header is required", nil, nil)
			c.Abort()
			return
		}

		tokenString, ok := bearerToken(authHeader)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "authorization header format must be Bearer {token}", nil, nil)
			c.Abort()
			return
		}

		claims, reason := parseAccessToken(tokenString, cfg.JWT.Secret)
		if claims == nil {
			logger.GetDefault().LogAuthFailure(c.Request.Context(), reason, c.ClientIP())
			response.RespondJSON(c, "error", http.StatusUnauthorized, reason, nil, nil)
			c.Abort()
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth middleware validates JWT token if present but doesn't require it
func OptionalAuth() gin.HandlerFunc {
	return OptionalAuthWithConfig(config.Load())
}

func OptionalAuthWithConfig(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString, ok := bearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.Next()
			return
		}

		if claims, _ := parseAccessToken(tokenString, cfg.JWT.Secret); claims != nil {
			setClaims(c, claims)
		}

		c.Next()
	}
}

func bearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}

// parseAccessToken returns the claims of a valid access token, or a reason it was rejected.
func parseAccessToken(tokenString, secret string) (jwt.MapClaims, string) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return nil, "invalid or expired token"
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, "invalid token claims"
	}
	if tokenType, ok := claims["type"]; !ok || tokenType != "access" {
		return nil, "invalid token type"
	}
	return claims, ""
}

func setClaims(c *gin.Context, claims jwt.MapClaims) {
	c.Set("user_id", claims["user_id"])
	c.Set("user_email", claims["email"])
	c.Set("user_role", claims["role"])
}

// RequireRoles middleware checks if user has any of the required roles
func RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userRole, exists := c.Get("user_role")
		if !exists {
			response.RespondJSON(c, "error", http.StatusUnauthorized, "user role not found in context", nil, nil)
			c.Abort()
			return
		}

		role, _ := userRole.(string)
		for _, required := range requiredRoles {
			if role == required {
				c.Next()
				return
			}
		}

		response.RespondJSON(c, "error", http.StatusForbidden, "Insufficient permissions", nil, nil)
		c.Abort()
	}
}

// RequireAdmin middleware that requires admin role
func RequireAdmin() gin.HandlerFunc {
	return RequireRoles(RoleAdmin)
}

// RequireHolder resolves the customer behind the request: the authenticated
// user when a token was accepted, otherwise the guest session header.
// Must run after OptionalAuth or JWTAuth.
func RequireHolder() gin.HandlerFunc {
	return func(c *gin.Context) {
		holder, ok := resolveHolder(c)
		if !ok {
			response.RespondJSON(c, "error", http.StatusUnauthorized,
				"a bearer token or "+SessionHeader+" header is required", nil, nil)
			c.Abort()
			return
		}

		c.Set(holderContextKey, holder)
		c.Next()
	}
}

func resolveHolder(c *gin.Context) (access.Holder, bool) {
	if raw, exists := c.Get("user_id"); exists {
		if s, ok := raw.(string); ok {
			if id, err := uuid.Parse(s); err == nil {
				return access.UserHolder(id), true
			}
		}
	}

	session := strings.TrimSpace(c.GetHeader(SessionHeader))
	if session == "" || len(session) > 128 {
		return access.Holder{}, false
	}
	return access.SessionHolder(session), true
}

// HolderFromContext returns the holder stored by RequireHolder.
func HolderFromContext(c *gin.Context) (access.Holder, bool) {
	raw, exists := c.Get(holderContextKey)
	if !exists {
		return access.Holder{}, false
	}
	holder, ok := raw.(access.Holder)
	return holder, ok
}
