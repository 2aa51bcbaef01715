package services

import (
	"context"
	"encoding/json"
)

type AgentEventKind string

const (
	EventInit      AgentEventKind = "init"
	EventTextDelta AgentEventKind = "text_delta"
	EventResult    AgentEventKind = "result"
	EventError     AgentEventKind = "error"
)

// AgentEvent is one message from a streaming model query. Exactly one of the
// payload fields is meaningful, selected by Kind.
type AgentEvent struct {
	Kind      AgentEventKind
	SessionID string          // EventInit: session token usable as a resume handle
	Text      string          // EventTextDelta
	Result    string          // EventResult: authoritative final text
	Err       string          // EventError
	Raw       json.RawMessage // original wire line for init/result events
}

// ImageBlock attaches a base64 image to the prompt.
type ImageBlock struct {
	MediaType string
	Data      string
}

type QueryRequest struct {
	Prompt       string
	Image        *ImageBlock
	Model        string
	SystemPrompt string
	Resume       string
	AllowTools   bool
}

type ModelOption struct {
	Value       string `json:"value"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
}

// ModelProvider abstracts the external model service. Query returns a channel
// that is closed after the terminal event; the caller owns consuming it fully.
type ModelProvider interface {
	Query(ctx context.Context, req QueryRequest) (<-chan AgentEvent, error)
	SupportedModels() []ModelOption
	AccountInfo(ctx context.Context) (map[string]any, error)
}
