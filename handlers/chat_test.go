package handlers_test

import (
	"net/http"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenlens/models"
	"screenlens/services"
)

func userMessage(text string) gin.H {
	return gin.H{"role": "user", "content": text}
}

func TestChatNewConversationStreamsAndPersists(t *testing.T) {
	db := setupDB(t)
	provider := &fakeProvider{}
	provider.script(
		services.AgentEvent{Kind: services.EventInit, SessionID: "sess-1"},
		services.AgentEvent{Kind: services.EventTextDelta, Text: "Hel"},
		services.AgentEvent{Kind: services.EventTextDelta, Text: "lo"},
		services.AgentEvent{Kind: services.EventResult, Result: "Hello!"},
	)
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{
		"messages": []gin.H{userMessage("hi")},
	})
	require.Equal(t, http.StatusOK, w.Code)

	convID := w.Header().Get("X-Conversation-Id")
	require.NotEmpty(t, convID)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/plain")

	lines := strings.Split(strings.TrimRight(w.Body.String(), "\n"), "\n")
	require.Equal(t, []string{`0:"Hel"`, `0:"lo"`, `d:{"finishReason":"stop"}`}, lines)

	var conv models.Conversation
	require.NoError(t, db.First(&conv, "id = ?", convID).Error)
	assert.Equal(t, "hi", conv.Title)
	assert.Equal(t, "sess-1", conv.ClaudeSessionID)

	var messages []models.ChatMessage
	require.NoError(t, db.Find(&messages, "conversation_id = ?", convID).Error)
	require.Len(t, messages, 2)

	var userMsg, assistantMsg models.ChatMessage
	require.NoError(t, db.First(&userMsg, "conversation_id = ? AND role = ?", convID, "user").Error)
	require.NoError(t, db.First(&assistantMsg, "conversation_id = ? AND role = ?", convID, "assistant").Error)
	assert.Equal(t, "hi", userMsg.Content)
	assert.Equal(t, "Hello!", assistantMsg.Content, "terminal result wins over deltas")
}

func TestChatTitleTruncatedAtFifty(t *testing.T) {
	db := setupDB(t)
	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventResult, Result: "ok"})
	r := newTestRouter(t, db, provider)

	long := strings.Repeat("a", 60)
	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{
		"messages": []gin.H{userMessage(long)},
	})
	require.Equal(t, http.StatusOK, w.Code)

	var conv models.Conversation
	require.NoError(t, db.First(&conv, "id = ?", w.Header().Get("X-Conversation-Id")).Error)
	assert.Equal(t, strings.Repeat("a", 50)+"…", conv.Title)
}

func TestChatResumeSendsOnlyLatestMessage(t *testing.T) {
	db := setupDB(t)
	conv := models.Conversation{Title: "existing", ClaudeSessionID: "sess-9"}
	require.NoError(t, db.Create(&conv).Error)

	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventResult, Result: "sure"})
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{
		"conversationId": conv.ID,
		"messages": []gin.H{
			userMessage("first question"),
			{"role": "assistant", "content": "first answer"},
			userMessage("follow-up"),
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	calls := provider.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "follow-up", calls[0].Prompt, "resumed sessions get only the new message")
	assert.Equal(t, "sess-9", calls[0].Resume)

	var updated models.Conversation
	require.NoError(t, db.First(&updated, "id = ?", conv.ID).Error)
	assert.Equal(t, "existing", updated.Title, "resumed conversations keep their title")
}

func TestChatFirstTurnSendsFullHistory(t *testing.T) {
	db := setupDB(t)
	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventResult, Result: "ok"})
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{
		"messages": []gin.H{
			userMessage("question"),
			{"role": "assistant", "content": "answer"},
			userMessage("more"),
		},
	})
	require.Equal(t, http.StatusOK, w.Code)

	calls := provider.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "User: question\n\nAssistant: answer\n\nUser: more", calls[0].Prompt)
	assert.Empty(t, calls[0].Resume)
}

func TestChatPartsPreferredOverContent(t *testing.T) {
	provider := &fakeProvider{}
	provider.script(services.AgentEvent{Kind: services.EventResult, Result: "ok"})
	r := newTestRouter(t, setupDB(t), provider)

	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{
		"messages": []gin.H{{
			"role":    "user",
			"content": "ignored",
			"parts": []gin.H{
				{"type": "text", "text": "from "},
				{"type": "image", "text": "skipped"},
				{"type": "text", "text": "parts"},
			},
		}},
	})
	require.Equal(t, http.StatusOK, w.Code)

	calls := provider.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, "User: from parts", calls[0].Prompt)
}

func TestChatErrorStreamsErrorLineAndStillPersists(t *testing.T) {
	db := setupDB(t)
	provider := &fakeProvider{}
	provider.script(
		services.AgentEvent{Kind: services.EventTextDelta, Text: "part"},
		services.AgentEvent{Kind: services.EventError, Err: "boom"},
	)
	r := newTestRouter(t, db, provider)

	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{
		"messages": []gin.H{userMessage("hi")},
	})
	require.Equal(t, http.StatusOK, w.Code)

	body := w.Body.String()
	assert.Contains(t, body, `3:"boom"`)
	assert.NotContains(t, body, `d:`)

	convID := w.Header().Get("X-Conversation-Id")
	var messages []models.ChatMessage
	require.NoError(t, db.Find(&messages, "conversation_id = ?", convID).Error)
	require.Len(t, messages, 2, "a failed turn still leaves a record")

	var assistantMsg models.ChatMessage
	require.NoError(t, db.First(&assistantMsg, "conversation_id = ? AND role = ?", convID, "assistant").Error)
	assert.Equal(t, "part", assistantMsg.Content)
}

func TestChatEmptyMessagesRejected(t *testing.T) {
	r := newTestRouter(t, setupDB(t), &fakeProvider{})

	w := doJSON(t, r, http.MethodPost, "/api/chat", gin.H{"messages": []gin.H{}})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "No messages provided", decodeBody(t, w)["error"])
}
