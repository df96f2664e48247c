package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"eventix/internal/logger"
	"eventix/internal/models"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

// Context keys for the authenticated user
const (
	ContextKeyUserID = "user_id"
	ContextKeyRole   = "user_role"
)

// Claims carried by access tokens. Tokens are issued by the auth service.
type Claims struct {
	UserID string `json:"id"`
	jwt.RegisteredClaims
}

// UserLookup resolves the user a token was issued for
type UserLookup interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Auth verifies the bearer token and loads its user. The role always comes
// from the stored user, never from the token.
func Auth(secret string, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		const bearerPrefix = "Bearer "
		if !strings.HasPrefix(header, bearerPrefix) || len(header) == len(bearerPrefix) {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.MessageResponse{Message: "Not authorized, no token"})
			return
		}

		claims, err := ParseToken(header[len(bearerPrefix):], secret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.MessageResponse{Message: "Not authorized, token failed"})
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			slog.Error("Failed to load user for token", "error", err, "user_id", claims.UserID)
			c.AbortWithStatusJSON(http.StatusInternalServerError, models.MessageResponse{Message: "Internal server error"})
			return
		}
		if user == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, models.MessageResponse{Message: "Not authorized, user not found"})
			return
		}

		c.Set(ContextKeyUserID, user.ID)
		c.Set(ContextKeyRole, user.Role)
		c.Request = c.Request.WithContext(logger.ContextWithUserID(c.Request.Context(), user.ID))

		c.Next()
	}
}

// ParseToken validates an HS256 token and returns its claims
func ParseToken(token, secret string) (*Claims, error) {
	if secret == "" {
		return nil, errors.New("token secret is not configured")
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, err
	}
	if claims.UserID == "" {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

// RequireRole lets through only users holding one of roles
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		role := UserRole(c)
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, models.MessageResponse{Message: "Not authorized as an admin"})
	}
}

func UserID(c *gin.Context) string {
	return c.GetString(ContextKeyUserID)
}

func UserRole(c *gin.Context) string {
	return c.GetString(ContextKeyRole)
}
