package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"screenlens/models"
	"screenlens/services"
)

type SettingsHandler struct {
	db           *gorm.DB
	provider     services.ModelProvider
	defaultModel string
}

func NewSettingsHandler(db *gorm.DB, provider services.ModelProvider, defaultModel string) *SettingsHandler {
	return &SettingsHandler{db: db, provider: provider, defaultModel: defaultModel}
}

func (h *SettingsHandler) current() (model string, theme models.Theme) {
	model = h.defaultModel
	theme = models.ThemeSystem

	var settings models.Settings
	if err := h.db.First(&settings, "id = ?", models.SettingsID).Error; err != nil {
		return model, theme
	}
	if settings.Model != "" {
		model = settings.Model
	}
	if settings.Theme != "" {
		theme = settings.Theme
	}
	return model, theme
}

func (h *SettingsHandler) Get(c *gin.Context) {
	model, theme := h.current()
	c.JSON(http.StatusOK, gin.H{"model": model, "theme": theme})
}

type updateSettingsRequest struct {
	Model *string `json:"model"`
	Theme *string `json:"theme"`
}

func (h *SettingsHandler) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	if req.Theme != nil && !models.Theme(*req.Theme).Valid() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid theme: " + *req.Theme})
		return
	}

	var settings models.Settings
	err := h.db.First(&settings, "id = ?", models.SettingsID).Error
	exists := err == nil
	if errors.Is(err, gorm.ErrRecordNotFound) {
		settings = models.Settings{ID: models.SettingsID, Theme: models.ThemeSystem}
	} else if err != nil {
		log.Printf("Get settings error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
		return
	}

	if req.Model != nil {
		settings.Model = *req.Model
	}
	if req.Theme != nil {
		settings.Theme = models.Theme(*req.Theme)
	}

	if exists {
		err = h.db.Save(&settings).Error
	} else {
		err = h.db.Create(&settings).Error
	}
	if err != nil {
		log.Printf("Update settings error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
		return
	}

	model, theme := h.current()
	c.JSON(http.StatusOK, gin.H{"model": model, "theme": theme})
}

func (h *SettingsHandler) Models(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"models": h.provider.SupportedModels()})
}
