package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"deepsight/api/internal/config"
	"deepsight/api/internal/models"
	"deepsight/api/internal/repository"
	"deepsight/api/internal/security"
)

const currentUserKey = "current_user"

// CurrentUser returns the authenticated user set by Auth or
// OptionalAuth, or nil for anonymous requests.
func CurrentUser(c *gin.Context) *models.User {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return nil
	}
	user, ok := val.(models.User)
	if !ok {
		return nil
	}
	return &user
}

// Auth rejects requests without a valid bearer token.
func Auth(cfg *config.AppConfig, users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, errCode := resolveBearer(c, cfg, users)
		if errCode != "" {
			status := http.StatusUnauthorized
			if errCode == "user_inactive" {
				status = http.StatusForbidden
			}
			c.AbortWithStatusJSON(status, gin.H{"error": errCode})
			return
		}

		c.Set(currentUserKey, *user)
		c.Next()
	}
}

// OptionalAuth resolves a bearer token when one is present but lets
// anonymous requests through. A malformed or expired token is treated as
// anonymous rather than rejected, so the analysis surface degrades to
// the free tier instead of erroring.
func OptionalAuth(cfg *config.AppConfig, users *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if user, errCode := resolveBearer(c, cfg, users); errCode == "" {
			c.Set(currentUserKey, *user)
		}
		c.Next()
	}
}

func resolveBearer(c *gin.Context, cfg *config.AppConfig, users *repository.UserRepository) (*models.User, string) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
		return nil, "missing_token"
	}

	tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
	claims, err := security.ParseAccessToken(tokenStr, cfg.Security.JWTSecret)
	if err != nil {
		return nil, "invalid_token"
	}

	user, err := users.GetByID(c.Request.Context(), claims.UserID)
	if err != nil {
		return nil, "user_not_found"
	}
	if user.Status != models.UserStatusActive {
		return nil, "user_inactive"
	}

	return &user, ""
}
