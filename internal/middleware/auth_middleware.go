package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/staybook/reservation-engine/pkg/jwt"
)

// UserContextKey is the key used to store user information in Gin context
const UserContextKey = "user"

// RoleAdmin grants access to the alert console
const RoleAdmin = "admin"

// UserContext represents the authenticated user's information
type UserContext struct {
	UserID uuid.UUID `json:"user_id"`
	Email  string    `json:"email"`
	Name   string    `json:"name"`
	Roles  []string  `json:"roles"`
}

type authFailure struct {
	status  int
	errName string
	message string
	code    string
}

// bearerClaims extracts and validates the bearer token of the request
func bearerClaims(c *gin.Context, jwtService *jwt.Service) (*jwt.Claims, *authFailure) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return nil, &authFailure{http.StatusUnauthorized, "unauthorized", "Authorization header is required", "MISSING_AUTH_HEADER"}
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || strings.TrimSpace(parts[1]) == "" {
		return nil, &authFailure{http.StatusUnauthorized, "unauthorized", "Invalid authorization header format. Expected: Bearer <token>", "INVALID_AUTH_FORMAT"}
	}

	claims, err := jwtService.ValidateAccessToken(strings.TrimSpace(parts[1]))
	if err != nil {
		fields := logrus.Fields{"path": c.Request.URL.Path, "ip": c.ClientIP()}
		if errors.Is(err, jwt.ErrTokenExpired) {
			logrus.WithFields(fields).Info("Auth failed: token expired")
			return nil, &authFailure{http.StatusUnauthorized, "token_expired", "Access token has expired. Please sign in again.", "TOKEN_EXPIRED"}
		}
		logrus.WithFields(fields).WithError(err).Warn("Auth failed: invalid token")
		return nil, &authFailure{http.StatusUnauthorized, "invalid_token", "Invalid access token", "INVALID_TOKEN"}
	}

	return claims, nil
}

func setUserContext(c *gin.Context, claims *jwt.Claims) {
	c.Set(UserContextKey, UserContext{
		UserID: claims.UserID,
		Email:  claims.Email,
		Name:   claims.Name,
		Roles:  claims.Roles,
	})
}

// AuthMiddleware creates a middleware that requires a valid access token
func AuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, failure := bearerClaims(c, jwtService)
		if failure != nil {
			c.AbortWithStatusJSON(failure.status, gin.H{
				"error":   failure.errName,
				"message": failure.message,
				"code":    failure.code,
			})
			return
		}

		setUserContext(c, claims)
		c.Next()
	}
}

// OptionalAuthMiddleware attaches the user context when a valid token is
// present and lets anonymous requests through. A token that is present but
// invalid is still rejected.
func OptionalAuthMiddleware(jwtService *jwt.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") == "" {
			c.Next()
			return
		}

		claims, failure := bearerClaims(c, jwtService)
		if failure != nil {
			c.AbortWithStatusJSON(failure.status, gin.H{
				"error":   failure.errName,
				"message": failure.message,
				"code":    failure.code,
			})
			return
		}

		setUserContext(c, claims)
		c.Next()
	}
}

// RequireRole creates a middleware that checks if user has required role
func RequireRole(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		userCtx, exists := GetUserContext(c)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "unauthorized",
				"message": "User context not found. Auth middleware may not be applied.",
				"code":    "MISSING_USER_CONTEXT",
			})
			return
		}

		for _, requiredRole := range roles {
			for _, userRole := range userCtx.Roles {
				if userRole == requiredRole {
					c.Next()
					return
				}
			}
		}

		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
			"error":   "forbidden",
			"message": "You don't have permission to access this resource",
			"code":    "INSUFFICIENT_PERMISSIONS",
		})
	}
}

// GetUserContext retrieves the user context from Gin context
func GetUserContext(c *gin.Context) (UserContext, bool) {
	value, exists := c.Get(UserContextKey)
	if !exists {
		return UserContext{}, false
	}

	userCtx, ok := value.(UserContext)
	if !ok {
		return UserContext{}, false
	}

	return userCtx, true
}

// CallerID returns the authenticated user id, or nil for anonymous requests
func CallerID(c *gin.Context) *uuid.UUID {
	userCtx, ok := GetUserContext(c)
	if !ok {
		return nil
	}
	id := userCtx.UserID
	return &id
}
