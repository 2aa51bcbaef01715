package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Conversation struct {
	ID              string    `gorm:"size:36;primaryKey" json:"id"`
	Title           string    `gorm:"size:255;not null;default:'New Chat'" json:"title"`
	ClaudeSessionID string    `gorm:"size:255" json:"claudeSessionId,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
	UpdatedAt       time.Time `json:"updatedAt"`

	Messages []ChatMessage `gorm:"foreignKey:ConversationID" json:"messages,omitempty"`
}

func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.Title == "" {
		c.Title = "New Chat"
	}
	return nil
}

type ChatMessage struct {
	ID             string    `gorm:"size:36;primaryKey" json:"id"`
	ConversationID string    `gorm:"size:36;not null;index" json:"conversationId"`
	Role           string    `gorm:"size:16;not null" json:"role"`
	Content        string    `gorm:"not null" json:"content"`
	CreatedAt      time.Time `json:"createdAt"`

	Conversation Conversation `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"-"`
}

func (m *ChatMessage) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	return nil
}
