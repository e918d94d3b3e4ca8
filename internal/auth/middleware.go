package auth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/mesikahq/clinic-desk/internal/audit"
)

type Middleware struct {
	service Service
}

func NewMiddleware(service Service) *Middleware {
	return &Middleware{service: service}
}

// RequireRoles validates the bearer token and, when roles are given, checks
// the caller holds one of them. User identity is placed into the gin context
// for downstream handlers.
func (m *Middleware) RequireRoles(requiredRoles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "AUTH", "message": "missing authorization header"})
			return
		}

		token := strings.TrimPrefix(authHeader, "Bearer ")
		claims, err := m.service.ValidateToken(c.Request.Context(), token)
		if err != nil {
			message := "invalid token"
			if errors.Is(err, ErrTokenExpired) {
				message = "token expired"
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"kind": "AUTH", "message": message})
			return
		}

		if len(requiredRoles) > 0 {
			hasRole := false
			for _, required := range requiredRoles {
				if claims.Role == required {
					hasRole = true
					break
				}
			}
			if !hasRole {
				c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"kind": "AUTH", "message": "insufficient permissions"})
				return
			}
		}

		c.Set("user_id", claims.UserID)
		c.Set("role", claims.Role)
		c.Request = c.Request.WithContext(
			context.WithValue(c.Request.Context(), audit.ContextUserID, claims.UserID),
		)

		c.Next()
	}
}

// GetUserID retrieves the authenticated user's ID from the gin context.
func GetUserID(c *gin.Context) string {
	return c.GetString("user_id")
}

// GetUserRole retrieves the authenticated user's role from the gin context.
func GetUserRole(c *gin.Context) string {
	return c.GetString("role")
}
