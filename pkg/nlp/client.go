package nlp

import (
	"context"

	"github.com/donbr/graphrag-platform/pkg/types"
)

// Client defines the interface for language model operations. The core
// consumes it for two things only: answer synthesis and NL-to-Cypher
// translation.
type Client interface {
	// Chat sends a chat completion request and returns the response.
	Chat(ctx context.Context, messages []types.Message) (*types.Response, error)

	// Close cleans up any resources.
	Close() error
}

const (
	// RoleSystem represents a system message.
	RoleSystem types.Role = "system"
	// RoleUser represents a user message.
	RoleUser types.Role = "user"
	// RoleAssistant represents an assistant message.
	RoleAssistant types.Role = "assistant"
)

// Config holds configuration for LLM clients.
type Config struct {
	Model       string   `json:"model"`
	Temperature *float32 `json:"temperature,omitempty"`
	MaxTokens   *int     `json:"max_tokens,omitempty"`
	BaseURL     string   `json:"base_url,omitempty"`
}

// NewMessage creates a new message with the specified role and content.
func NewMessage(role types.Role, content string) types.Message {
	return types.Message{
		Role:    role,
		Content: content,
	}
}

// NewSystemMessage creates a new system message.
func NewSystemMessage(content string) types.Message {
	return NewMessage(RoleSystem, content)
}

// NewUserMessage creates a new user message.
func NewUserMessage(content string) types.Message {
	return NewMessage(RoleUser, content)
}
