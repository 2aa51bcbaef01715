package handlers

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"screenlens/models"
)

type ProjectsHandler struct {
	db *gorm.DB
}

func NewProjectsHandler(db *gorm.DB) *ProjectsHandler {
	return &ProjectsHandler{db: db}
}

type projectRequest struct {
	Name             *string `json:"name"`
	Description      *string `json:"description"`
	WorkingDirectory *string `json:"workingDirectory"`
}

type projectResponse struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Description      string    `json:"description"`
	WorkingDirectory string    `json:"workingDirectory,omitempty"`
	ScreenCount      int64     `json:"screenCount"`
	CreatedAt        time.Time `json:"createdAt"`
	UpdatedAt        time.Time `json:"updatedAt"`
}

func (h *ProjectsHandler) toResponse(p *models.Project) projectResponse {
	return projectResponse{
		ID:               p.ID,
		Name:             p.Name,
		Description:      p.Description,
		WorkingDirectory: p.WorkingDirectory,
		ScreenCount:      h.screenCount(p.ID),
		CreatedAt:        p.CreatedAt,
		UpdatedAt:        p.UpdatedAt,
	}
}

func (h *ProjectsHandler) screenCount(projectID string) int64 {
	var count int64
	h.db.Model(&models.Screen{}).Where("project_id = ?", projectID).Count(&count)
	return count
}

func (h *ProjectsHandler) List(c *gin.Context) {
	var projects []models.Project
	if err := h.db.Order("name ASC").Find(&projects).Error; err != nil {
		log.Printf("List projects error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch projects"})
		return
	}

	out := make([]projectResponse, 0, len(projects))
	for i := range projects {
		out = append(out, h.toResponse(&projects[i]))
	}
	c.JSON(http.StatusOK, gin.H{"projects": out})
}

func (h *ProjectsHandler) Create(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	name := ""
	if req.Name != nil {
		name = strings.TrimSpace(*req.Name)
	}
	if name == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "name is required"})
		return
	}

	project := models.Project{Name: name}
	if req.Description != nil {
		project.Description = strings.TrimSpace(*req.Description)
	}
	if req.WorkingDirectory != nil {
		project.WorkingDirectory = strings.TrimSpace(*req.WorkingDirectory)
	}

	if err := h.db.Create(&project).Error; err != nil {
		log.Printf("Create project error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create project"})
		return
	}

	c.JSON(http.StatusCreated, h.toResponse(&project))
}

func (h *ProjectsHandler) Update(c *gin.Context) {
	var req projectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	var project models.Project
	if err := h.db.First(&project, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	if req.Name != nil {
		project.Name = strings.TrimSpace(*req.Name)
	}
	if req.Description != nil {
		project.Description = strings.TrimSpace(*req.Description)
	}
	if req.WorkingDirectory != nil {
		project.WorkingDirectory = strings.TrimSpace(*req.WorkingDirectory)
	}

	if err := h.db.Save(&project).Error; err != nil {
		log.Printf("Update project error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update project"})
		return
	}

	c.JSON(http.StatusOK, h.toResponse(&project))
}

func (h *ProjectsHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	if h.screenCount(id) > 0 {
		c.JSON(http.StatusConflict, gin.H{
			"error": "Project has screens. Reassign or delete those screens first.",
		})
		return
	}

	result := h.db.Delete(&models.Project{}, "id = ?", id)
	if result.Error != nil {
		log.Printf("Delete project error: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete project"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Project not found"})
		return
	}

	c.Status(http.StatusNoContent)
}
