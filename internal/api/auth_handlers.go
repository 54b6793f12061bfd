package api

import (
	"errors"
	"net/http"

	"codesherpa/internal/auth"
	"codesherpa/internal/metrics"
	"codesherpa/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// LoginResponse is returned by login and refresh
type LoginResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	User         *models.User `json:"user"`
}

// Register creates a new account
func (s *Server) Register(c *gin.Context) {
	var req auth.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	user, err := s.auth.CreateUser(&req)
	if err != nil {
		fail(c, http.StatusBadRequest, err.Error())
		return
	}

	var count int64
	if err := s.db.DB.Model(&models.User{}).Where("email = ?", user.Email).Count(&count).Error; err != nil {
		s.log.Error("failed to check existing user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to register user")
		return
	}
	if count > 0 {
		fail(c, http.StatusBadRequest, "Email already registered")
		return
	}

	if err := s.db.DB.Create(user).Error; err != nil {
		s.log.Error("failed to create user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to register user")
		return
	}

	metrics.Get().RecordSignup()
	s.log.Info("user registered", zap.Uint("user_id", user.ID))
	respond(c, http.StatusCreated, user, "User registered successfully")
}

// Login exchanges credentials for a token pair
func (s *Server) Login(c *gin.Context) {
	var req auth.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	var user models.User
	err := s.db.DB.Where("email = ?", auth.NormalizeEmail(req.Email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	if err != nil {
		s.log.Error("failed to load user", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	switch err := s.auth.Authenticate(&user, req.Password); {
	case errors.Is(err, auth.ErrUserInactive):
		fail(c, http.StatusForbidden, "User account is inactive")
		return
	case err != nil:
		fail(c, http.StatusUnauthorized, "Invalid credentials")
		return
	}

	tokens, err := s.auth.GenerateTokens(&user)
	if err != nil {
		s.log.Error("failed to issue tokens", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Login failed")
		return
	}

	respond(c, http.StatusOK, LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		User:         &user,
	}, "Login successful")
}

// Refresh issues a new token pair from a refresh token
func (s *Server) Refresh(c *gin.Context) {
	var req auth.RefreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	claims, err := s.auth.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	var user models.User
	if err := s.db.DB.First(&user, claims.UserID).Error; err != nil {
		fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	tokens, err := s.auth.RefreshTokens(req.RefreshToken, &user)
	if errors.Is(err, auth.ErrUserInactive) {
		fail(c, http.StatusForbidden, "User account is inactive")
		return
	}
	if err != nil {
		fail(c, http.StatusUnauthorized, "Invalid refresh token")
		return
	}

	respond(c, http.StatusOK, LoginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		TokenType:    tokens.TokenType,
		User:         &user,
	}, "Token refreshed successfully")
}
