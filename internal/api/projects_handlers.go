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

// CreateProjectRequest is the body of POST /projects
type CreateProjectRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

// UpdateProjectRequest is the body of PUT /projects/:id
type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

// ListProjects returns the caller's projects
func (s *Server) ListProjects(c *gin.Context) {
	userID, _ := currentUserID(c)

	var projects []models.Project
	if err := s.db.DB.Where("user_id = ?", userID).Order("created_at DESC").Find(&projects).Error; err != nil {
		s.log.Error("failed to list projects", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to retrieve projects")
		return
	}

	respond(c, http.StatusOK, gin.H{"projects": projects, "count": len(projects)}, "Projects retrieved successfully")
}

// CreateProject stores a new project for the caller
func (s *Server) CreateProject(c *gin.Context) {
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	userID, _ := currentUserID(c)
	project := models.Project{
		Name:        strings.TrimSpace(req.Name),
		Description: req.Description,
		UserID:      userID,
	}
	if err := s.db.DB.Create(&project).Error; err != nil {
		s.log.Error("failed to create project", zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to create project")
		return
	}

	respond(c, http.StatusCreated, project, "Project created successfully")
}

// GetProject returns one of the caller's projects
func (s *Server) GetProject(c *gin.Context) {
	project, ok := s.findProject(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, project, "Project retrieved successfully")
}

// UpdateProject edits one of the caller's projects
func (s *Server) UpdateProject(c *gin.Context) {
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, "Invalid request: "+err.Error())
		return
	}

	project, ok := s.findProject(c)
	if !ok {
		return
	}
	if req.Name != nil {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = *req.Description
	}

	if err := s.db.DB.Save(project).Error; err != nil {
		s.log.Error("failed to update project", zap.Uint("project_id", project.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to update project")
		return
	}

	respond(c, http.StatusOK, project, "Project updated successfully")
}

// DeleteProject removes one of the caller's projects
func (s *Server) DeleteProject(c *gin.Context) {
	project, ok := s.findProject(c)
	if !ok {
		return
	}

	if err := s.db.DB.Delete(project).Error; err != nil {
		s.log.Error("failed to delete project", zap.Uint("project_id", project.ID), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to delete project")
		return
	}

	respond(c, http.StatusOK, nil, "Project deleted successfully")
}

func (s *Server) findProject(c *gin.Context) (*models.Project, bool) {
	id, ok := idParam(c, "id")
	if !ok {
		fail(c, http.StatusNotFound, "Project not found")
		return nil, false
	}
	userID, _ := currentUserID(c)

	var project models.Project
	err := s.db.DB.Where("id = ? AND user_id = ?", id, userID).First(&project).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		fail(c, http.StatusNotFound, "Project not found")
		return nil, false
	}
	if err != nil {
		s.log.Error("failed to load project", zap.Uint("project_id", id), zap.Error(err))
		fail(c, http.StatusInternalServerError, "Failed to retrieve project")
		return nil, false
	}
	return &project, true
}
