package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"screenlens/models"
	"screenlens/services"
)

const chatSystemPrompt = "You are a helpful coding assistant. Be concise and practical."

// ChatHandler relays one model turn to the client as a line-oriented chunked
// body: `0:` text delta, `3:` error, `d:` finish marker. The transcript is
// persisted strictly after the stream closes; a client disconnect does not
// cancel the turn.
type ChatHandler struct {
	db           *gorm.DB
	provider     services.ModelProvider
	defaultModel string
}

func NewChatHandler(db *gorm.DB, provider services.ModelProvider, defaultModel string) *ChatHandler {
	return &ChatHandler{db: db, provider: provider, defaultModel: defaultModel}
}

type chatPart struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type chatTurnMessage struct {
	Role    string     `json:"role"`
	Content string     `json:"content"`
	Parts   []chatPart `json:"parts"`
}

type chatRequest struct {
	Messages       []chatTurnMessage `json:"messages"`
	ConversationID string            `json:"conversationId"`
}

func messageText(m chatTurnMessage) string {
	var b strings.Builder
	for _, p := range m.Parts {
		if p.Type == "text" {
			b.WriteString(p.Text)
		}
	}
	if b.Len() > 0 {
		return b.String()
	}
	return m.Content
}

// extractText returns the latest user message's text.
func extractText(messages []chatTurnMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messageText(messages[i])
		}
	}
	return ""
}

// buildPrompt flattens the full history for a fresh session. Resumed sessions
// keep context server-side, so they get extractText instead.
func buildPrompt(messages []chatTurnMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		text := messageText(m)
		if text == "" {
			continue
		}
		speaker := "Assistant"
		if m.Role == "user" {
			speaker = "User"
		}
		lines = append(lines, speaker+": "+text)
	}
	return strings.Join(lines, "\n\n")
}

func (h *ChatHandler) Handle(c *gin.Context) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	modelID := h.defaultModel
	var settings models.Settings
	if err := h.db.First(&settings, "id = ?", models.SettingsID).Error; err == nil && settings.Model != "" {
		modelID = settings.Model
	}

	var conv models.Conversation
	isNew := false
	if req.ConversationID == "" {
		conv = models.Conversation{}
		if err := h.db.Create(&conv).Error; err != nil {
			log.Printf("Create conversation error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
			return
		}
		isNew = true
	} else if err := h.db.First(&conv, "id = ?", req.ConversationID).Error; err != nil {
		conv = models.Conversation{ID: req.ConversationID}
		if err := h.db.Create(&conv).Error; err != nil {
			log.Printf("Create conversation error: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "An error occurred"})
			return
		}
		isNew = true
	}

	sessionID := conv.ClaudeSessionID
	prompt := buildPrompt(req.Messages)
	if sessionID != "" {
		prompt = extractText(req.Messages)
	}
	if strings.TrimSpace(prompt) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No messages provided"})
		return
	}

	c.Header("X-Conversation-Id", conv.ID)
	c.Header("Content-Type", "text/plain; charset=utf-8")
	c.Header("Cache-Control", "no-cache")
	c.Status(http.StatusOK)

	emit := func(tag string, value any) {
		data, err := json.Marshal(value)
		if err != nil {
			return
		}
		fmt.Fprintf(c.Writer, "%s:%s\n", tag, data)
		c.Writer.Flush()
	}

	fullText := ""
	capturedSessionID := sessionID
	streamErr := ""

	// The turn runs to completion even if the client goes away.
	ctx := context.WithoutCancel(c.Request.Context())
	events, err := h.provider.Query(ctx, services.QueryRequest{
		Prompt:       prompt,
		Model:        modelID,
		SystemPrompt: chatSystemPrompt,
		Resume:       sessionID,
		AllowTools:   true,
	})
	if err != nil {
		streamErr = err.Error()
	} else {
		for ev := range events {
			switch ev.Kind {
			case services.EventInit:
				capturedSessionID = ev.SessionID
			case services.EventTextDelta:
				fullText += ev.Text
				emit("0", ev.Text)
			case services.EventResult:
				if ev.Result != "" {
					fullText = ev.Result
				}
			case services.EventError:
				streamErr = ev.Err
			}
		}
	}

	if streamErr != "" {
		log.Printf("Chat stream error: %v", streamErr)
		emit("3", streamErr)
	} else {
		emit("d", gin.H{"finishReason": "stop"})
	}

	// Persistence is ordered strictly after the client-visible stream; a
	// failed turn still leaves a record rather than a gap.
	h.persistTurn(&conv, extractText(req.Messages), fullText, capturedSessionID, isNew)
}

func (h *ChatHandler) persistTurn(conv *models.Conversation, userText, assistantText, sessionID string, isNew bool) {
	userMsg := models.ChatMessage{ConversationID: conv.ID, Role: "user", Content: userText}
	if err := h.db.Create(&userMsg).Error; err != nil {
		log.Printf("Persist user message error: %v", err)
	}

	assistantMsg := models.ChatMessage{ConversationID: conv.ID, Role: "assistant", Content: assistantText}
	if err := h.db.Create(&assistantMsg).Error; err != nil {
		log.Printf("Persist assistant message error: %v", err)
	}

	updates := map[string]any{"updated_at": time.Now()}
	if sessionID != "" && sessionID != conv.ClaudeSessionID {
		updates["claude_session_id"] = sessionID
	}
	if isNew && userText != "" {
		runes := []rune(userText)
		title := userText
		if len(runes) > 50 {
			title = string(runes[:50]) + "…"
		}
		updates["title"] = title
	}
	if err := h.db.Model(conv).Updates(updates).Error; err != nil {
		log.Printf("Update conversation error: %v", err)
	}
}
