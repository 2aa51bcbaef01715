package handlers

import (
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"screenlens/models"
)

type ConversationsHandler struct {
	db *gorm.DB
}

func NewConversationsHandler(db *gorm.DB) *ConversationsHandler {
	return &ConversationsHandler{db: db}
}

func (h *ConversationsHandler) List(c *gin.Context) {
	var conversations []models.Conversation
	if err := h.db.Order("updated_at DESC").Find(&conversations).Error; err != nil {
		log.Printf("List conversations error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
		return
	}

	out := make([]gin.H, 0, len(conversations))
	for _, conv := range conversations {
		out = append(out, gin.H{
			"id":        conv.ID,
			"title":     conv.Title,
			"createdAt": conv.CreatedAt,
			"updatedAt": conv.UpdatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{"conversations": out})
}

type createConversationRequest struct {
	Title string `json:"title"`
}

func (h *ConversationsHandler) Create(c *gin.Context) {
	var req createConversationRequest
	if err := c.ShouldBindJSON(&req); err != nil && c.Request.ContentLength > 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	conv := models.Conversation{Title: req.Title}
	if err := h.db.Create(&conv).Error; err != nil {
		log.Printf("Create conversation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"id":        conv.ID,
		"title":     conv.Title,
		"createdAt": conv.CreatedAt,
	})
}

func (h *ConversationsHandler) Get(c *gin.Context) {
	var conv models.Conversation
	err := h.db.Preload("Messages", func(db *gorm.DB) *gorm.DB {
		return db.Order("created_at ASC")
	}).First(&conv, "id = ?", c.Param("id")).Error
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Conversation not found"})
		return
	}

	messages := make([]gin.H, 0, len(conv.Messages))
	for _, m := range conv.Messages {
		messages = append(messages, gin.H{
			"id":        m.ID,
			"role":      m.Role,
			"content":   m.Content,
			"createdAt": m.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"id":       conv.ID,
		"title":    conv.Title,
		"messages": messages,
	})
}

func (h *ConversationsHandler) Delete(c *gin.Context) {
	id := c.Param("id")

	// Cascade is declared on the FK, but sqlite setups without foreign_keys
	// enabled would orphan rows; delete messages explicitly.
	if err := h.db.Delete(&models.ChatMessage{}, "conversation_id = ?", id).Error; err != nil {
		log.Printf("Delete conversation messages error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
		return
	}
	if err := h.db.Delete(&models.Conversation{}, "id = ?", id).Error; err != nil {
		log.Printf("Delete conversation error: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
		return
	}

	c.Status(http.StatusNoContent)
}
