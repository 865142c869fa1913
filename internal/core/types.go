package core

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ChatRequest represents the incoming chat completion request
type ChatRequest struct {
	Model       string          `json:"model"`
	Messages    []ChatMessage   `json:"messages"`
	Temperature *float64        `json:"temperature,omitempty"`
	TopP        *float64        `json:"top_p,omitempty"`
	Seed        *int64          `json:"seed,omitempty"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Functions   json.RawMessage `json:"functions,omitempty"`
	Tools       json.RawMessage `json:"tools,omitempty"`
}

// ChatMessage represents a single message in the chat. Content is either a
// plain string or an ordered list of typed parts.
type ChatMessage struct {
	Role    string         `json:"role"`
	Content MessageContent `json:"content"`
}

// ResponseMessage is the assistant message in a completion choice. Unlike
// request messages its content is always plain text.
type ResponseMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Choice represents a single completion choice
type Choice struct {
	Index        int             `json:"index"`
	Message      ResponseMessage `json:"message"`
	FinishReason string          `json:"finish_reason"`
}

// Usage represents token usage information
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse represents the chat completion response envelope
type ChatResponse struct {
	ID      string   `json:"id"`
	Object  string   `json:"object"`
	Created int64    `json:"created"`
	Model   string   `json:"model"`
	Choices []Choice `json:"choices"`
	Usage   *Usage   `json:"usage,omitempty"`
}

// NewChatResponse wraps generated text in a single-choice stop envelope.
func NewChatResponse(model, text string) *ChatResponse {
	return &ChatResponse{
		ID:      uuid.NewString(),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   model,
		Choices: []Choice{
			{
				Index:        0,
				Message:      ResponseMessage{Role: "assistant", Content: text},
				FinishReason: "stop",
			},
		},
	}
}

// ModelCard describes a single hosted model for GET /v1/models
type ModelCard struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Created int64  `json:"created"`
	OwnedBy string `json:"owned_by"`
}

// ModelList is the response of GET /v1/models
type ModelList struct {
	Object string      `json:"object"`
	Data   []ModelCard `json:"data"`
}
