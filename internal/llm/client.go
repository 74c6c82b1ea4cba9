// Package llm wraps chat completion generation behind a small interface so
// the answering pipeline does not depend on a concrete API vendor.
package llm

import "context"

// Message is one turn of a chat exchange.
type Message struct {
	Role    string
	Content string
}

// Chat message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Options tunes a single completion request.
type Options struct {
	MaxTokens   int
	Temperature float64
}

// Client generates chat completions.
type Client interface {
	// Complete sends the system instruction and conversation turns and
	// returns the assistant's reply text.
	Complete(ctx context.Context, system string, messages []Message, opts Options) (string, error)
}
