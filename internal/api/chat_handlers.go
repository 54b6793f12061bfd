package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"codesherpa/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	defaultChatLimit = 50
	maxChatLimit     = 200
)

// CreateChatRequest is the body of POST /chat
type CreateChatRequest struct {
	Message string `json:"message" binding:"required"`
}

// ListChats returns the caller's most recent chats, oldest first
func (s *Server) ListChats(c *gin.Context) {
	limit := defaultChatLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			fail(c, http.StatusBadRequest, "Invalid limit")
			return
		}
		if n > maxChatLimit {
			n = maxChatLimit
		}
		limit = n
	}

	userID, _ := currentUserID(c)
	var chats []models.Chat
	err := s.db.DB.Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Limit(limit).
		Find(&chats).Error
	if err != nil {
		s.log.Error("failed to list chats", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to retrieve chat history")
		return
	}

	for i, j := 0, len(chats)-1; i < j; i, j = i+1, j-1 {
		chats[i], chats[j] = chats[j], chats[i]
	}

	respond(c, http.StatusOK, gin.H{"chats": chats, "count": len(chats)}, "Chat history retrieved successfully")
}

// CreateChat stores a chat message without a response
func (s *Server) CreateChat(c *gin.Context) {
	var req CreateChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	userID, _ := currentUserID(c)
	chat := models.Chat{Message: req.Message, UserID: userID}
	if err := s.db.DB.Create(&chat).Error; err != nil {
		s.log.Error("failed to create chat", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create chat message")
		return
	}

	respond(c, http.StatusCreated, chat, "Chat message created successfully")
}

// GetChat returns one of the caller's chats
func (s *Server) GetChat(c *gin.Context) {
	chat, ok := s.findChat(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, chat, "Chat message retrieved successfully")
}

// RespondToChat runs the orchestrator on a stored message and saves the result
func (s *Server) RespondToChat(c *gin.Context) {
	if s.orchestrator == nil {
		fail(c, http.StatusInternalServerError, "Orchestrator not initialized")
		return
	}

	chat, ok := s.findChat(c)
	if !ok {
		return
	}

	sessionID := fmt.Sprintf("user_%d", chat.UserID)
	result, err := s.orchestrator.Process(c.Request.Context(), map[string]interface{}{"message": chat.Message}, sessionID)
	if err != nil {
		s.log.Error("chat processing failed", zap.Uint("chat_id", chat.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Error processing chat")
		return
	}

	if err := s.updateChatResponse(chat, result); err != nil {
		s.log.Error("failed to store chat response", zap.Uint("chat_id", chat.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to store chat response")
		return
	}

	respond(c, http.StatusOK, chat, "Chat response generated successfully")
}

// updateChatResponse stores result as the JSON response of chat
func (s *Server) updateChatResponse(chat *models.Chat, result map[string]interface{}) error {
	encoded, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode response: %w", err)
	}
	response := string(encoded)
	if err := s.db.DB.Model(chat).Update("response", response).Error; err != nil {
		return err
	}
	chat.Response = &response
	return nil
}

func (s *Server) findChat(c *gin.Context) (*models.Chat, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		fail(c, http.StatusNotFound, "Chat message not found")
		return nil, false
	}
	userID, _ := currentUserID(c)

	var chat models.Chat
	err := s.db.DB.Where("id = ? AND user_id = ?", id, userID).First(&chat).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "Chat message not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("failed to load chat", zap.Uint("chat_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to retrieve chat message")
		return nil, false
	}
	return &chat, true
}

// ProcessRequest is the body of POST /process
type ProcessRequest struct {
	Message     string `json:"message"`
	SessionID   string `json:"session_id"`
	CodeContext string `json:"code_context"`
}

const defaultProcessSession = "default_session"

// ProcessChat routes a message through the orchestrator
func (s *Server) ProcessChat(c *gin.Context) {
	var req ProcessRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if s.orchestrator == nil {
		fail(c, http.StatusInternalServerError, "Orchestrator not initialized")
		return
	}

	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = defaultProcessSession
	}
	input := map[string]interface{}{"message": req.Message}
	if req.CodeContext != "" {
		input["code_context"] = req.CodeContext
	}

	result, err := s.orchestrator.Process(c.Request.Context(), input, sessionID)
	if err != nil {
		s.log.Error("chat processing failed", zap.String("session_id", sessionID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Error processing chat")
		return
	}

	respond(c, http.StatusOK, result, "Chat processed successfully")
}
