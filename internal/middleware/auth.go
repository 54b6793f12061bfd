package middleware

import (
	"errors"
	"net/http"
	"strings"

	"codesherpa/internal/auth"

	"github.com/gin-gonic/gin"
)

// Context keys set by RequireAuth
const (
	ContextUserID = "user_id"
	ContextEmail  = "email"
	ContextClaims = "token_claims"
)

// RequireAuth validates the bearer access token and stores the caller in the context
func RequireAuth(authService *auth.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, err := extractBearerToken(c.GetHeader("Authorization"))
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			abort(c, http.StatusUnauthorized, err.Error())
			return
		}

		claims, err := authService.ValidateAccessToken(token)
		if err != nil {
			c.Header("WWW-Authenticate", "Bearer")
			if errors.Is(err, auth.ErrTokenExpired) {
				abort(c, http.StatusUnauthorized, "Token has expired")
				return
			}
			abort(c, http.StatusUnauthorized, "Could not validate credentials")
			return
		}

		c.Set(ContextUserID, claims.UserID)
		c.Set(ContextEmail, claims.Email)
		c.Set(ContextClaims, claims)
		c.Next()
	}
}

func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", errors.New("Not authenticated")
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", errors.New("Invalid authorization header format")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", errors.New("Not authenticated")
	}
	return token, nil
}

// GetUserID returns the authenticated user's id
func GetUserID(c *gin.Context) (uint, bool) {
	v, ok := c.Get(ContextUserID)
	if !ok {
		return 0, false
	}
	id, ok := v.(uint)
	return id, ok
}

// GetUserEmail returns the authenticated user's email
func GetUserEmail(c *gin.Context) (string, bool) {
	v, ok := c.Get(ContextEmail)
	if !ok {
		return "", false
	}
	email, ok := v.(string)
	return email, ok
}
