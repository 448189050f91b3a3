package middleware

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// AdminClaims is the token payload expected on admin-only actions.
type AdminClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

type AdminGuard struct {
	secret []byte
}

// NewAdminGuard returns nil when no secret is configured; a nil guard lets
// every request through.
func NewAdminGuard(secret string) *AdminGuard {
	if secret == "" {
		return nil
	}
	return &AdminGuard{secret: []byte(secret)}
}

func (g *AdminGuard) Enabled() bool {
	return g != nil
}

// Authorize checks the bearer token and aborts the request when it is not an
// admin token. A disabled guard authorizes everything.
func (g *AdminGuard) Authorize(c *gin.Context) bool {
	if !g.Enabled() {
		return true
	}

	tokenString := ""
	authHeader := c.GetHeader("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) == 2 && parts[0] == "Bearer" {
			tokenString = parts[1]
		}
	}
	if tokenString == "" {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "authorization required"})
		return false
	}

	claims := &AdminClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return g.secret, nil
	})
	if err != nil || !token.Valid {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid or expired token"})
		return false
	}

	if claims.Role != "admin" {
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "admin access required"})
		return false
	}

	c.Set("admin_subject", claims.Subject)
	return true
}
