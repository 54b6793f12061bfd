package api

import (
	"errors"
	"net/http"
	"strings"

	"codesherpa/pkg/models"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// CreateAgentRequest is the body of POST /agents
type CreateAgentRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

// UpdateAgentRequest is the body of PUT /agents/:id
type UpdateAgentRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

// ListAgents returns the caller's agents
func (s *Server) ListAgents(c *gin.Context) {
	userID, _ := currentUserID(c)

	var agents []models.Agent
	if err := s.db.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&agents).Error; err != nil {
		s.log.Error("failed to list agents", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to retrieve agents")
		return
	}

	respond(c, http.StatusOK, gin.H{"agents": agents, "count": len(agents)}, "Agents retrieved successfully")
}

// CreateAgent stores a new agent for the caller
func (s *Server) CreateAgent(c *gin.Context) {
	var req CreateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = models.AgentStatusActive
	}
	if !models.IsValidAgentStatus(status) {
		fail(c, http.StatusBadRequest, "Invalid agent status")
		return
	}

	userID, _ := currentUserID(c)
	agent := models.Agent{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		Status:      status,
		UserID:      userID,
	}
	if err := s.db.DB.Create(&agent).Error; err != nil {
		s.log.Error("failed to create agent", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create agent")
		return
	}

	respond(c, http.StatusCreated, agent, "Agent created successfully")
}

// GetAgent returns one of the caller's agents
func (s *Server) GetAgent(c *gin.Context) {
	agent, ok := s.findAgent(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, agent, "Agent retrieved successfully")
}

// UpdateAgent edits one of the caller's agents
func (s *Server) UpdateAgent(c *gin.Context) {
	var req UpdateAgentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}
	if req.Status != nil && !models.IsValidAgentStatus(*req.Status) {
		fail(c, http.StatusBadRequest, "Invalid agent status")
		return
	}

	agent, ok := s.findAgent(c)
	if !ok {
		return
	}

	if req.Name != nil {
		agent.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		agent.Description = *req.Description
	}
	if req.Status != nil {
		agent.Status = *req.Status
	}

	if err := s.db.DB.Save(agent).Error; err != nil {
		s.log.Error("failed to update agent", zap.Uint("agent_id", agent.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update agent")
		return
	}

	respond(c, http.StatusOK, agent, "Agent updated successfully")
}

// DeleteAgent removes one of the caller's agents
func (s *Server) DeleteAgent(c *gin.Context) {
	agent, ok := s.findAgent(c)
	if !ok {
		return
	}

	if err := s.db.DB.Delete(agent).Error; err != nil {
		s.log.Error("failed to delete agent", zap.Uint("agent_id", agent.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to delete agent")
		return
	}

	respond(c, http.StatusOK, nil, "Agent deleted successfully")
}

// findAgent loads the :id agent owned by the caller, writing 404 otherwise
func (s *Server) findAgent(c *gin.Context) (*models.Agent, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		fail(c, http.StatusNotFound, "Agent not found")
		return nil, false
	}
	userID, _ := currentUserID(c)

	var agent models.Agent
	err := s.db.DB.Where("id = ? AND user_id = ?", id, userID).First(&agent).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "Agent not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("failed to load agent", zap.Uint("agent_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to retrieve agent")
		return nil, false
	}
	return &agent, true
}
