package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"screenlens/models"
	"screenlens/services"
)

type ScreensHandler struct {
	db       *gorm.DB
	describe *services.DescribeService
}

func NewScreensHandler(db *gorm.DB, describe *services.DescribeService) *ScreensHandler {
	return &ScreensHandler{db: db, describe: describe}
}

type screenRequest struct {
	ProjectID      *string `json:"projectId"`
	Name           *string `json:"name"`
	Notes          *string `json:"notes"`
	PreviewURL     *string `json:"previewUrl"`
	Analysis       *string `json:"analysis"`
	AnalysisStatus *string `json:"analysisStatus"`
	AnalysisError  *string `json:"analysisError"`
}

type screenResponse struct {
	ID                      string                `json:"id"`
	ProjectID               string                `json:"projectId"`
	Name                    string                `json:"name"`
	Notes                   string                `json:"notes"`
	PreviewURL              string                `json:"previewUrl,omitempty"`
	Analysis                string                `json:"analysis,omitempty"`
	AnalysisStatus          models.AnalysisStatus `json:"analysisStatus"`
	AnalysisError           string                `json:"analysisError,omitempty"`
	ProjectName             string                `json:"projectName,omitempty"`
	ProjectDescription      string                `json:"projectDescription,omitempty"`
	ProjectWorkingDirectory string                `json:"projectWorkingDirectory,omitempty"`
	CreatedAt               time.Time             `json:"createdAt"`
	UpdatedAt               time.Time             `json:"updatedAt"`
}

func mapScreen(s *models.Screen, p *models.Project) screenResponse {
	resp := screenResponse{
		ID:             s.ID,
		ProjectID:      s.ProjectID,
		Name:           s.Name,
		Notes:          s.Notes,
		PreviewURL:     s.PreviewURL,
		Analysis:       s.Analysis,
		AnalysisStatus: s.AnalysisStatus,
		AnalysisError:  s.AnalysisError,
		CreatedAt:      s.CreatedAt,
		UpdatedAt:      s.UpdatedAt,
	}
	if p != nil {
		resp.ProjectName = p.Name
		resp.ProjectDescription = p.Description
		resp.ProjectWorkingDirectory = p.WorkingDirectory
	}
	return resp
}

func (h *ScreensHandler) List(c *gin.Context) {
	query := h.db.Preload("Project").Order("created_at DESC")
	if projectID := strings.TrimSpace(c.Query("projectId")); projectID != "" {
		query = query.Where("project_id = ?", projectID)
	}

	var screens []models.Screen
	if err := query.Find(&screens).Error; err != nil {
		log.Printf("List saved screens error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch saved screens"})
		return
	}

	out := make([]screenResponse, 0, len(screens))
	for i := range screens {
		out = append(out, mapScreen(&screens[i], &screens[i].Project))
	}
	c.JSON(http.StatusOK, gin.H{"screens": out})
}

func (h *ScreensHandler) Create(c *gin.Context) {
	var req screenRequest
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

	projectID := ""
	if req.ProjectID != nil {
		projectID = strings.TrimSpace(*req.ProjectID)
	}
	if projectID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "projectId is required"})
		return
	}

	var project models.Project
	if err := h.db.First(&project, "id = ?", projectID).Error; err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid projectId"})
		return
	}

	status := models.AnalysisIdle
	if req.AnalysisStatus != nil {
		status = models.AnalysisStatus(strings.TrimSpace(*req.AnalysisStatus))
		if !status.Valid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysisStatus: " + string(status)})
			return
		}
	}

	screen := models.Screen{
		ProjectID:      projectID,
		Name:           name,
		AnalysisStatus: status,
	}
	if req.Notes != nil {
		screen.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.PreviewURL != nil {
		screen.PreviewURL = *req.PreviewURL
	}
	if req.Analysis != nil {
		screen.Analysis = *req.Analysis
	}
	if req.AnalysisError != nil {
		screen.AnalysisError = *req.AnalysisError
	}

	if err := h.db.Create(&screen).Error; err != nil {
		log.Printf("Create saved screen error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save screen"})
		return
	}

	c.JSON(http.StatusCreated, mapScreen(&screen, &project))
}

func (h *ScreensHandler) Update(c *gin.Context) {
	var req screenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.AnalysisStatus != nil && !models.AnalysisStatus(*req.AnalysisStatus).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid analysisStatus: " + *req.AnalysisStatus})
		return
	}
	if req.ProjectID != nil {
		projectID := strings.TrimSpace(*req.ProjectID)
		if projectID != "" {
			var project models.Project
			if err := h.db.First(&project, "id = ?", projectID).Error; err != nil {
				c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid projectId"})
				return
			}
		}
	}

	var screen models.Screen
	if err := h.db.First(&screen, "id = ?", c.Param("id")).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Screen not found"})
		return
	}

	if req.ProjectID != nil && strings.TrimSpace(*req.ProjectID) != "" {
		screen.ProjectID = strings.TrimSpace(*req.ProjectID)
	}
	if req.Name != nil {
		screen.Name = strings.TrimSpace(*req.Name)
	}
	if req.Notes != nil {
		screen.Notes = strings.TrimSpace(*req.Notes)
	}
	if req.PreviewURL != nil {
		screen.PreviewURL = *req.PreviewURL
	}
	if req.Analysis != nil {
		screen.Analysis = *req.Analysis
	}
	if req.AnalysisStatus != nil {
		screen.AnalysisStatus = models.AnalysisStatus(*req.AnalysisStatus)
	}
	if req.AnalysisError != nil {
		screen.AnalysisError = *req.AnalysisError
	}

	if err := h.db.Save(&screen).Error; err != nil {
		log.Printf("Update saved screen error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update screen"})
		return
	}

	var project models.Project
	h.db.First(&project, "id = ?", screen.ProjectID)
	c.JSON(http.StatusOK, mapScreen(&screen, &project))
}

func (h *ScreensHandler) Delete(c *gin.Context) {
	result := h.db.Delete(&models.Screen{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		log.Printf("Delete saved screen error: %v", result.Error)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete screen"})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "Screen not found"})
		return
	}
	c.Status(http.StatusNoContent)
}

type describeRequest struct {
	ImageBase64   string `json:"imageBase64"`
	ImageMimeType string `json:"imageMimeType"`
}

func (h *ScreensHandler) Describe(c *gin.Context) {
	var req describeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	imageBase64 := strings.TrimSpace(req.ImageBase64)
	imageMimeType := strings.ToLower(strings.TrimSpace(req.ImageMimeType))
	if imageBase64 == "" || imageMimeType == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "imageBase64 and imageMimeType are required"})
		return
	}
	if !services.SupportedImageMimeType(imageMimeType) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported imageMimeType: " + imageMimeType})
		return
	}

	record, err := h.describe.Describe(c.Request.Context(), imageBase64, imageMimeType)
	if err != nil {
		switch {
		case errors.Is(err, services.ErrUnsupportedMime):
			c.JSON(http.StatusBadRequest, gin.H{"error": "Unsupported imageMimeType: " + imageMimeType})
		case errors.Is(err, services.ErrNoDescription):
			c.JSON(http.StatusUnprocessableEntity, gin.H{
				"error": "Unable to process this pasted image. Try pasting a PNG/JPEG screenshot again.",
			})
		default:
			log.Printf("Screen describe error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to describe screen"})
		}
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":          record.ID,
		"description": record.Description,
		"model":       record.Model,
		"createdAt":   record.CreatedAt,
	})
}
