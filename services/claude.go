package services

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"time"
)

// ClaudeService runs queries through the Claude Code CLI in stream-json mode.
// Each Query is one subprocess; the CLI keeps multi-turn context server-side
// when a resume token is passed back, so transcripts never need resending.
type ClaudeService struct {
	bin          string
	defaultModel string
}

func NewClaudeService(bin, defaultModel string) *ClaudeService {
	return &ClaudeService{bin: bin, defaultModel: defaultModel}
}

type cliDelta struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type cliStreamEvent struct {
	Type  string   `json:"type"`
	Delta cliDelta `json:"delta"`
}

type cliMessage struct {
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	SessionID string          `json:"session_id"`
	Result    string          `json:"result"`
	Errors    []string        `json:"errors"`
	Event     *cliStreamEvent `json:"event"`
}

type cliContentBlock struct {
	Type   string          `json:"type"`
	Text   string          `json:"text,omitempty"`
	Source *cliImageSource `json:"source,omitempty"`
}

type cliImageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type cliUserMessage struct {
	Type    string `json:"type"`
	Message struct {
		Role    string            `json:"role"`
		Content []cliContentBlock `json:"content"`
	} `json:"message"`
}

func (s *ClaudeService) Query(ctx context.Context, req QueryRequest) (<-chan AgentEvent, error) {
	model := req.Model
	if model == "" {
		model = s.defaultModel
	}

	args := []string{
		"-p",
		"--verbose",
		"--output-format", "stream-json",
		"--include-partial-messages",
		"--model", model,
		"--dangerously-skip-permissions",
	}
	if req.SystemPrompt != "" {
		args = append(args, "--append-system-prompt", req.SystemPrompt)
	}
	if req.Resume != "" {
		args = append(args, "--resume", req.Resume)
	}
	if !req.AllowTools {
		args = append(args, "--disallowed-tools", "*")
	}
	if req.Image != nil {
		args = append(args, "--input-format", "stream-json")
	}

	cmd := exec.CommandContext(ctx, s.bin, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("claude stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("claude stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start claude: %w", err)
	}

	go func() {
		defer stdin.Close()
		if req.Image != nil {
			writeImagePrompt(stdin, req.Prompt, req.Image)
			return
		}
		io.WriteString(stdin, req.Prompt)
	}()

	events := make(chan AgentEvent)
	go func() {
		defer close(events)
		terminal := false

		scanner := bufio.NewScanner(stdout)
		scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			var msg cliMessage
			if err := json.Unmarshal(line, &msg); err != nil {
				continue
			}
			switch {
			case msg.Type == "system" && msg.Subtype == "init":
				events <- AgentEvent{Kind: EventInit, SessionID: msg.SessionID, Raw: append(json.RawMessage(nil), line...)}
			case msg.Type == "stream_event":
				if msg.Event != nil && msg.Event.Type == "content_block_delta" && msg.Event.Delta.Type == "text_delta" {
					events <- AgentEvent{Kind: EventTextDelta, Text: msg.Event.Delta.Text}
				}
			case msg.Type == "result" && msg.Subtype == "success":
				terminal = true
				events <- AgentEvent{Kind: EventResult, Result: msg.Result, Raw: append(json.RawMessage(nil), line...)}
			case msg.Type == "result":
				terminal = true
				errText := strings.Join(msg.Errors, " ")
				if errText == "" {
					errText = "Model execution failed"
				}
				events <- AgentEvent{Kind: EventError, Err: errText, Raw: append(json.RawMessage(nil), line...)}
			}
		}

		if err := cmd.Wait(); err != nil && !terminal {
			events <- AgentEvent{Kind: EventError, Err: err.Error()}
		} else if err != nil {
			log.Printf("claude exited with error after result: %v", err)
		}
	}()

	return events, nil
}

func writeImagePrompt(w io.Writer, prompt string, img *ImageBlock) {
	var msg cliUserMessage
	msg.Type = "user"
	msg.Message.Role = "user"
	msg.Message.Content = []cliContentBlock{
		{Type: "text", Text: prompt},
		{Type: "image", Source: &cliImageSource{
			Type:      "base64",
			MediaType: img.MediaType,
			Data:      img.Data,
		}},
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return
	}
	w.Write(data)
	io.WriteString(w, "\n")
}

func (s *ClaudeService) SupportedModels() []ModelOption {
	return []ModelOption{
		{
			Value:       "claude-sonnet-4-20250514",
			DisplayName: "Claude Sonnet 4",
			Description: "Balanced speed and quality",
		},
		{
			Value:       "claude-opus-4-20250514",
			DisplayName: "Claude Opus 4",
			Description: "Highest quality, slower",
		},
		{
			Value:       "claude-3-5-haiku-20241022",
			DisplayName: "Claude Haiku 3.5",
			Description: "Fastest responses",
		},
	}
}

// AccountInfo runs a one-turn ping and reports the init event's account
// fields (model, API key source, permission mode).
func (s *ClaudeService) AccountInfo(ctx context.Context) (map[string]any, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	events, err := s.Query(ctx, QueryRequest{Prompt: "ping", Model: s.defaultModel})
	if err != nil {
		return nil, err
	}

	var info map[string]any
	for ev := range events {
		if ev.Kind == EventInit && info == nil {
			if err := json.Unmarshal(ev.Raw, &info); err != nil {
				return nil, fmt.Errorf("parse account info: %w", err)
			}
			cancel()
		}
	}
	if info == nil {
		return nil, fmt.Errorf("no account info received")
	}
	return info, nil
}
