package api

import (
	"errors"
	"net/http"
	"strings"

	"codesherpa/internal/auth"
	"codesherpa/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// UpdateUserRequest carries the editable profile fields
type UpdateUserRequest struct {
	Name  *string `json:"name"`
	Email *string `json:"email" binding:"omitempty,email"`
}

// GetMe returns the authenticated user
func (s *Server) GetMe(c *gin.Context) {
	user, ok := s.loadCurrentUser(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, user, "User information retrieved")
}

// UpdateMe edits the authenticated user's name or email
func (s *Server) UpdateMe(c *gin.Context) {
	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	user, ok := s.loadCurrentUser(c)
	if !ok {
		return
	}

	updates := map[string]interface{}{}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			fail(c, http.StatusBadRequest, "Name cannot be empty")
			return
		}
		updates["name"] = name
	}
	if req.Email != nil {
		email := auth.NormalizeEmail(*req.Email)
		if email != user.Email {
			var count int64
			if err := s.db.DB.Model(&models.User{}).Where("email = ? AND id <> ?", email, user.ID).Count(&count).Error; err != nil {
				s.log.Error("failed to check email", zap.Error(err))
				fail(c, http.StatusInternalServerError, "Failed to update user")
				return
			}
			if count > 0 {
				fail(c, http.StatusBadRequest, "Email already registered")
				return
			}
			updates["email"] = email
		}
	}

	if len(updates) > 0 {
		if err := s.db.DB.Model(user).Updates(updates).Error; err != nil {
			s.log.Error("failed to update user", zap.Uint("user_id", user.ID), zap.Error(err))
			fail(c, http.StatusInternalServerError, "Failed to update user")
			return
		}
		if name, ok := updates["name"].(string); ok {
			user.Name = name
		}
		if email, ok := updates["email"].(string); ok {
			user.Email = email
		}
	}

	respond(c, http.StatusOK, user, "User information updated successfully")
}

func (s *Server) loadCurrentUser(c *gin.Context) (*models.User, bool) {
	userID, ok := currentUserID(c)
	if !ok {
		fail(c, http.StatusUnauthorized, "Not authenticated")
		return nil, false
	}

	var user models.User
	err := s.db.DB.First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "User not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("failed to load user", zap.Uint("user_id", userID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to load user")
		return nil, false
	}
	return &user, true
}
