package middleware

import (
	"net/http"
	"strings"

	"adwall/config"
	"adwall/internal/auth"
	"adwall/internal/domain"

	"github.com/gin-gonic/gin"
)

// AuthRequired validates the Bearer token and sets user_id, username and
// role in the gin context.
func AuthRequired(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := claimsFromHeader(cfg, c)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or missing token"})
			return
		}
		setClaims(c, claims)
		c.Next()
	}
}

// OptionalAuth resolves the user when a valid token is present but lets
// anonymous visitors through. Public gallery routes use this so admins get
// their privileged view from the same endpoints.
func OptionalAuth(cfg *config.JWTConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := claimsFromHeader(cfg, c); ok {
			setClaims(c, claims)
		}
		c.Next()
	}
}

func claimsFromHeader(cfg *config.JWTConfig, c *gin.Context) (*auth.Claims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		return nil, false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, false
	}
	claims, err := auth.ParseAccessToken(cfg, parts[1])
	if err != nil {
		return nil, false
	}
	return claims, true
}

func setClaims(c *gin.Context, claims *auth.Claims) {
	c.Set("user_id", claims.UserID)
	c.Set("username", claims.Username)
	c.Set("role", claims.Role)
}

// GetUserID returns the authenticated user ID, or 0 for anonymous visitors.
func GetUserID(c *gin.Context) uint {
	v, _ := c.Get("user_id")
	if v == nil {
		return 0
	}
	return v.(uint)
}

func GetUsername(c *gin.Context) string {
	v, _ := c.Get("username")
	if v == nil {
		return ""
	}
	return v.(string)
}

func GetRole(c *gin.Context) string {
	v, _ := c.Get("role")
	if v == nil {
		return ""
	}
	return v.(string)
}

func IsAdmin(c *gin.Context) bool { return GetRole(c) == domain.RoleAdmin }
