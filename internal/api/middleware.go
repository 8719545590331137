package api

import (
	"alcyxob/personal-coach/internal/domain"
	"alcyxob/personal-coach/internal/identity"
	"alcyxob/personal-coach/internal/service"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
)

// Constants for context keys
const (
	ContextUserIDKey  = "userID"
	ContextClientKey  = "identityClient"
	ContextProfileKey = "userProfile"
)

// AuthMiddleware resolves the bearer token into an identity client bound to
// the caller. Handlers act through that client, so the services see the
// caller's session exactly as they would in-process.
func AuthMiddleware(directory *identity.Directory) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header is missing")
			return
		}

		// Expecting "Bearer <token>"
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
			abortWithError(c, http.StatusUnauthorized, "Authorization header format must be Bearer {token}")
			return
		}

		client, err := directory.Resume(c.Request.Context(), parts[1])
		if err != nil {
			if identity.ErrorCode(err) == "" {
				abortWithError(c, http.StatusInternalServerError, "Could not verify session")
				return
			}
			abortWithError(c, http.StatusUnauthorized, fmt.Sprintf("Invalid token: %v", err))
			return
		}
		session := client.CurrentSession()
		if session == nil || session.Disposable {
			abortWithError(c, http.StatusUnauthorized, "Invalid token or missing claims")
			return
		}

		c.Set(ContextClientKey, client)
		c.Set(ContextUserIDKey, session.UID)
		c.Next()
	}
}

// Helper to return JSON error response and abort request
func abortWithError(c *gin.Context, code int, message string) {
	c.AbortWithStatusJSON(code, gin.H{"error": message})
}

// RoleMiddleware loads the caller's profile and checks its type.
// Must run AFTER AuthMiddleware.
func RoleMiddleware(profiles service.RosterService, allowed ...domain.UserType) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, err := getUserIDFromContext(c)
		if err != nil {
			abortWithError(c, http.StatusInternalServerError, "User ID not found in context")
			return
		}

		profile, err := profiles.GetProfile(c.Request.Context(), uid)
		if err != nil {
			if errors.Is(err, service.ErrProfileNotFound) {
				abortWithError(c, http.StatusForbidden, "User data not found")
				return
			}
			abortWithError(c, http.StatusInternalServerError, "Could not load user profile")
			return
		}

		for _, t := range allowed {
			if profile.UserType == t {
				c.Set(ContextProfileKey, profile)
				c.Next()
				return
			}
		}
		abortWithError(c, http.StatusForbidden, fmt.Sprintf("Access denied: user type '%s' does not have permission", profile.UserType))
	}
}

// RequestLogger writes one structured line per request.
func RequestLogger(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration", time.Since(start),
		}
		if uid := c.GetString(ContextUserIDKey); uid != "" {
			attrs = append(attrs, "uid", uid)
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			logger.Error("request", attrs...)
		case c.Writer.Status() >= http.StatusBadRequest:
			logger.Warn("request", attrs...)
		default:
			logger.Info("request", attrs...)
		}
	}
}

// Helper function to get User ID from context (used by handlers)
func getUserIDFromContext(c *gin.Context) (string, error) {
	idRaw, exists := c.Get(ContextUserIDKey)
	if !exists {
		return "", errors.New("user ID not found in context")
	}
	idStr, ok := idRaw.(string)
	if !ok {
		return "", errors.New("invalid user ID type in context")
	}
	return idStr, nil
}

func getClientFromContext(c *gin.Context) (*identity.Client, error) {
	raw, exists := c.Get(ContextClientKey)
	if !exists {
		return nil, errors.New("identity client not found in context")
	}
	client, ok := raw.(*identity.Client)
	if !ok {
		return nil, errors.New("invalid identity client type in context")
	}
	return client, nil
}

func getProfileFromContext(c *gin.Context) (*domain.User, bool) {
	raw, exists := c.Get(ContextProfileKey)
	if !exists {
		return nil, false
	}
	profile, ok := raw.(*domain.User)
	return profile, ok
}
