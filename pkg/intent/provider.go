// Package intent turns free-form operator utterances into robot
// commands.
//
// A chat model behind an OpenAI-compatible API decides whether an
// utterance is a movement request. Movement requests come back as one
// JSON object naming the command, value, and unit; anything else is
// ordinary dialogue and is passed through untouched. The Interpreter
// owns the prompt, the JSON extraction, and the spoken acknowledgement
// for each command.
package intent

import "context"

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ChatRequest asks a provider for a completion.
type ChatRequest struct {
	Messages    []Message
	Model       string // overrides the configured model when set
	MaxTokens   int
	Temperature float64
}

// Usage reports token consumption for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatResponse is a provider's completion.
type ChatResponse struct {
	Content   string
	Model     string
	Usage     Usage
	LatencyMs int64
}

// Provider produces chat completions.
type Provider interface {
	// Chat generates a completion for the given messages.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Health checks API connectivity.
	Health(ctx context.Context) error

	// Close releases resources.
	Close() error
}
